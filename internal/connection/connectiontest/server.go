// Package connectiontest provides an in-process Mumble server for tests.
package connectiontest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/glizzus/mumble-voice/internal/connection"
	"github.com/glizzus/mumble-voice/internal/frame"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
)

// Server is the far end of a net.Pipe speaking the control protocol.
type Server struct {
	conn   net.Conn
	client net.Conn
	frames chan frame.Frame

	writeMu sync.Mutex
	dialed  bool
	dialMu  sync.Mutex
}

// NewServer starts reading frames from the pipe. Pass Dial to
// connection.Options to connect to it.
func NewServer() *Server {
	server, client := net.Pipe()
	s := &Server{
		conn:   server,
		client: client,
		frames: make(chan frame.Frame, 4096),
	}
	go s.read()
	return s
}

func (s *Server) read() {
	defer close(s.frames)
	var dec frame.Decoder
	buf := make([]byte, 16*1024)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			frames, ferr := dec.Feed(buf[:n])
			for _, f := range frames {
				s.frames <- f
			}
			if ferr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Dial hands out the client end of the pipe once.
func (s *Server) Dial(ctx context.Context, addr string) (net.Conn, error) {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()
	if s.dialed {
		return nil, errors.New("connectiontest: pipe already dialed")
	}
	s.dialed = true
	return s.client, nil
}

var _ connection.DialFunc = (*Server)(nil).Dial

// Next returns the next frame the client wrote.
func (s *Server) Next(ctx context.Context) (frame.Frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return frame.Frame{}, net.ErrClosed
		}
		return f, nil
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	}
}

// NextOfType returns the next frame of type typ, discarding others.
func (s *Server) NextOfType(ctx context.Context, typ uint16) (frame.Frame, error) {
	for {
		f, err := s.Next(ctx)
		if err != nil {
			return f, err
		}
		if f.Type == typ {
			return f, nil
		}
	}
}

// NextMessage returns the next message of kind, discarding others.
func (s *Server) NextMessage(ctx context.Context, kind mumbleproto.Kind) (mumbleproto.Message, error) {
	f, err := s.NextOfType(ctx, uint16(kind))
	if err != nil {
		return nil, err
	}
	return mumbleproto.Unmarshal(f.Type, f.Payload)
}

// Send writes msg to the client.
func (s *Server) Send(msg mumbleproto.Message) error {
	return s.writeFrame(uint16(msg.Kind()), mumbleproto.Marshal(msg))
}

// SendTunnel writes a UDPTunnel frame to the client.
func (s *Server) SendTunnel(payload []byte) error {
	return s.writeFrame(frame.TypeTunnel, payload)
}

func (s *Server) writeFrame(typ uint16, payload []byte) error {
	b, err := frame.Encode(typ, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.Write(b)
	return err
}

// Accept completes the handshake: it reads Version and Authenticate, sends
// prelude, then ServerSync assigning session.
func (s *Server) Accept(ctx context.Context, session uint32, prelude ...mumbleproto.Message) (*mumbleproto.Authenticate, error) {
	if _, err := s.NextMessage(ctx, mumbleproto.KindVersion); err != nil {
		return nil, fmt.Errorf("waiting for Version: %w", err)
	}
	msg, err := s.NextMessage(ctx, mumbleproto.KindAuthenticate)
	if err != nil {
		return nil, fmt.Errorf("waiting for Authenticate: %w", err)
	}
	for _, m := range prelude {
		if err := s.Send(m); err != nil {
			return nil, err
		}
	}
	serverSync := &mumbleproto.ServerSync{
		Session:      mumbleproto.Ptr(session),
		MaxBandwidth: mumbleproto.Ptr(uint32(72000)),
		WelcomeText:  mumbleproto.Ptr("welcome"),
	}
	if err := s.Send(serverSync); err != nil {
		return nil, err
	}
	return msg.(*mumbleproto.Authenticate), nil
}

// Close closes the server end, which the client sees as a lost connection.
func (s *Server) Close() error {
	return s.conn.Close()
}
