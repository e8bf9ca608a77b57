// Package connection owns the TLS control connection to a Mumble server.
//
// A Conn dials, performs the Version/Authenticate handshake, keeps the
// session alive with a periodic Ping and demultiplexes inbound frames onto a
// Bus: UDPTunnel frames are published raw, every other frame is decoded into
// its mumbleproto message. All outbound bytes go through one write path so
// two frames are never interleaved on the socket.
//
// A Conn is used once. When the socket fails it moves to Disconnected, closes
// Done and fails every later send; reconnecting means building a new Conn.
package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glizzus/mumble-voice/internal/frame"
	"github.com/glizzus/mumble-voice/internal/metrics"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
	"github.com/glizzus/mumble-voice/internal/schedule"
)

const (
	DefaultPort              = 64738
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultWriteTimeout      = 10 * time.Second

	readBufferSize = 32 * 1024
)

var (
	// ErrNotReady is returned by sends attempted before the handshake
	// completed.
	ErrNotReady = errors.New("connection not ready")
	// ErrConnectionLost is returned once the socket has failed.
	ErrConnectionLost = errors.New("connection lost")
	// ErrClosed is returned by sends after Close.
	ErrClosed = errors.New("connection closed")
)

// RejectedError is returned by Connect when the server refuses the
// credentials.
type RejectedError struct {
	Type   mumbleproto.RejectType
	Reason string
}

var _ error = (*RejectedError)(nil)

func (e *RejectedError) Error() string {
	return fmt.Sprintf("server rejected connection (type %d): %s", e.Type, e.Reason)
}

// State is the lifecycle position of a Conn.
type State int32

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// DialFunc opens the transport. The default dials TLS over TCP.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// Options configures a Conn.
type Options struct {
	// Addr is host:port of the server.
	Addr     string
	Username string
	Password string
	Tokens   []string

	// TLSConfig is used by the default dialer. Nil means a config with
	// InsecureSkipVerify set, as most servers run self-signed certificates.
	TLSConfig *tls.Config
	Dial      DialFunc

	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	Clock             schedule.Clock
	Logger            *slog.Logger
	// Debug logs every message sent and received.
	Debug bool
	// Release is the client name reported in the Version message.
	Release string
}

// Conn is one control connection.
type Conn struct {
	opts   Options
	logger *slog.Logger
	bus    *Bus
	seq    SequenceCounter

	state        atomic.Int32
	session      atomic.Uint32
	maxBandwidth atomic.Uint32

	writeMu sync.Mutex
	nc      net.Conn

	mu        sync.Mutex
	started   bool
	closing   bool
	cancel    context.CancelCauseFunc
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	err       error
	closeOnce sync.Once
}

var _ Subscriber = (*Conn)(nil)

// New returns a disconnected Conn. Subscribe before calling Connect so no
// message of the handshake is missed.
func New(opts Options) *Conn {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Clock == nil {
		opts.Clock = schedule.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Release == "" {
		opts.Release = "mumble-voice"
	}
	if opts.Dial == nil {
		opts.Dial = tlsDialer(opts.TLSConfig)
	}
	logger := opts.Logger.With("server", opts.Addr)
	return &Conn{
		opts:   opts,
		logger: logger,
		bus:    NewBus(logger),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func tlsDialer(cfg *tls.Config) DialFunc {
	if cfg == nil {
		cfg = &tls.Config{InsecureSkipVerify: true}
	}
	return func(ctx context.Context, addr string) (net.Conn, error) {
		d := &tls.Dialer{Config: cfg}
		return d.DialContext(ctx, "tcp", addr)
	}
}

func (c *Conn) Subscribe(kind mumbleproto.Kind, fn Handler) { c.bus.Subscribe(kind, fn) }

func (c *Conn) SubscribeTunnel(fn TunnelHandler) { c.bus.SubscribeTunnel(fn) }

// State reports where the connection is in its lifecycle.
func (c *Conn) State() State { return State(c.state.Load()) }

// Session is the id the server assigned to this client, valid once Ready.
func (c *Conn) Session() uint32 { return c.session.Load() }

// MaxBandwidth is the server's voice bandwidth limit in bits per second, or
// zero if the server did not announce one.
func (c *Conn) MaxBandwidth() uint32 { return c.maxBandwidth.Load() }

// Sequence is the voice sequence counter shared by every stream on this
// connection.
func (c *Conn) Sequence() *SequenceCounter { return &c.seq }

// Done is closed when the connection has shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the connection shut down. It is nil while the connection
// is running and after a Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		c.logger.Debug("connection state changed", "from", old, "to", s)
	}
	metrics.SetConnectionUp(s == Ready)
}

// Connect dials the server and blocks until the handshake finishes. It
// returns a *RejectedError when the server refuses the login. Cancelling ctx
// aborts the handshake but does not affect an established connection.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("connect called twice")
	}
	c.started = true
	c.mu.Unlock()

	c.setState(Connecting)
	nc, err := c.opts.Dial(ctx, c.opts.Addr)
	if err != nil {
		c.finish(fmt.Errorf("dial %s: %w", c.opts.Addr, err))
		return c.terminalErr()
	}
	c.nc = nc
	c.setState(Authenticating)

	life, cancel := context.WithCancelCause(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	if c.closing {
		cancel(ErrClosed)
	}
	c.mu.Unlock()

	ticker := c.opts.Clock.NewTicker(c.opts.HeartbeatInterval)
	g, gctx := errgroup.WithContext(life)
	g.Go(func() error {
		<-gctx.Done()
		ticker.Stop()
		_ = nc.Close()
		return nil
	})
	g.Go(func() error { return c.readLoop() })
	g.Go(func() error { return c.heartbeat(gctx, ticker) })
	go func() {
		err := g.Wait()
		if cause := context.Cause(life); cause != nil {
			err = cause
		}
		cancel(nil)
		c.finish(err)
	}()

	if err := c.handshake(); err != nil {
		cancel(err)
		<-c.done
		return c.terminalErr()
	}

	select {
	case <-c.ready:
		c.logger.Info("connected", "session", c.Session())
		return nil
	case <-c.done:
		return c.terminalErr()
	case <-ctx.Done():
		cancel(ctx.Err())
		<-c.done
		return ctx.Err()
	}
}

func (c *Conn) handshake() error {
	version := mumbleproto.ClientVersion(c.opts.Release, runtime.GOOS, runtime.GOARCH)
	if err := c.write(version); err != nil {
		return err
	}
	return c.write(&mumbleproto.Authenticate{
		Username: c.opts.Username,
		Password: c.opts.Password,
		Tokens:   c.opts.Tokens,
		Opus:     true,
	})
}

// Close shuts the connection down and waits for its goroutines to exit.
func (c *Conn) Close() error {
	c.mu.Lock()
	started, cancel := c.started, c.cancel
	c.started = true
	c.closing = true
	c.mu.Unlock()

	if !started {
		c.finish(ErrClosed)
		return nil
	}
	if cancel != nil {
		cancel(ErrClosed)
	}
	<-c.done
	return nil
}

func (c *Conn) finish(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		switch {
		case errors.Is(cause, ErrClosed):
			c.err = nil
		case cause == nil:
			c.err = ErrConnectionLost
		default:
			var rejected *RejectedError
			if errors.As(cause, &rejected) {
				c.err = rejected
			} else {
				c.err = fmt.Errorf("%w: %w", ErrConnectionLost, cause)
			}
		}
		c.mu.Unlock()

		c.setState(Disconnected)
		if c.err != nil {
			c.logger.Error("connection terminated", "error", c.err)
		} else {
			c.logger.Info("connection closed")
		}
		close(c.done)
	})
}

// fail tears the connection down from a write path.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel(err)
	}
}

func (c *Conn) terminalErr() error {
	if err := c.Err(); err != nil {
		return err
	}
	return ErrClosed
}

func (c *Conn) checkReady() error {
	select {
	case <-c.done:
		return c.terminalErr()
	default:
	}
	if c.State() != Ready {
		return ErrNotReady
	}
	return nil
}

// Send encodes msg and writes it as one frame.
func (c *Conn) Send(msg mumbleproto.Message) error {
	if err := c.checkReady(); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind(), err)
	}
	return c.write(msg)
}

// SendTunnel writes payload as a UDPTunnel frame.
func (c *Conn) SendTunnel(payload []byte) error {
	if err := c.checkReady(); err != nil {
		return fmt.Errorf("send voice: %w", err)
	}
	return c.writeFrame(frame.TypeTunnel, payload)
}

func (c *Conn) write(msg mumbleproto.Message) error {
	kind := msg.Kind()
	if c.opts.Debug {
		c.logger.Debug("send", "kind", kind, "message", msg)
	}
	if err := c.writeFrame(uint16(kind), mumbleproto.Marshal(msg)); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	metrics.RecordMessage("out", kind.String())
	return nil
}

func (c *Conn) writeFrame(typ uint16, payload []byte) error {
	b, err := frame.Encode(typ, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return c.terminalErr()
	default:
	}
	if c.opts.WriteTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if _, err := c.nc.Write(b); err != nil {
		c.fail(err)
		return fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	return nil
}

func (c *Conn) readLoop() error {
	var dec frame.Decoder
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			frames, ferr := dec.Feed(buf[:n])
			for _, f := range frames {
				if herr := c.handleFrame(f); herr != nil {
					return herr
				}
			}
			if ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (c *Conn) handleFrame(f frame.Frame) error {
	if f.Type == frame.TypeTunnel {
		c.bus.PublishTunnel(f.Payload)
		return nil
	}

	msg, err := mumbleproto.Unmarshal(f.Type, f.Payload)
	if err != nil {
		c.logger.Warn("dropping malformed message", "type", f.Type, "error", err)
		return nil
	}
	kind := msg.Kind()
	metrics.RecordMessage("in", kind.String())
	if c.opts.Debug {
		c.logger.Debug("receive", "kind", kind, "message", msg)
	}

	switch m := msg.(type) {
	case *mumbleproto.Unknown:
		return nil
	case *mumbleproto.Reject:
		return &RejectedError{Type: m.Type, Reason: m.Reason}
	case *mumbleproto.ServerSync:
		c.session.Store(m.GetSession())
		c.maxBandwidth.Store(m.GetMaxBandwidth())
		c.readyOnce.Do(func() {
			c.setState(Ready)
			close(c.ready)
		})
	case *mumbleproto.CodecVersion:
		if !m.Opus {
			c.logger.Warn("server does not advertise opus support")
		}
	}

	c.bus.Publish(msg)
	return nil
}

func (c *Conn) heartbeat(ctx context.Context, ticker schedule.Ticker) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			ping := &mumbleproto.Ping{Timestamp: uint64(now.UnixMilli())}
			if err := c.write(ping); err != nil {
				return err
			}
		}
	}
}
