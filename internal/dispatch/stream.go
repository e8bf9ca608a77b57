// Package dispatch paces outbound voice.
//
// A Stream accepts PCM of any length through Write, cuts it into 10 ms
// frames and sends one encoded frame per 10 ms of clock time. Writers block
// while ten frames are queued and resume in the order they called Write.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glizzus/mumble-voice/internal/metrics"
	"github.com/glizzus/mumble-voice/internal/opus"
	"github.com/glizzus/mumble-voice/internal/schedule"
	"github.com/glizzus/mumble-voice/internal/tunnel"
)

const (
	FrameSize     = opus.FrameBytes
	QueueCapacity = 10
	FrameInterval = 10 * time.Millisecond
	// IdleReset is the gap after which the cadence restarts from now
	// instead of catching up.
	IdleReset = 200 * time.Millisecond
)

// ErrClosed is returned by writes to a stream that is not open, and to
// writers blocked when the stream closes.
var ErrClosed = errors.New("dispatch stream closed")

// TunnelSender writes a UDPTunnel payload to the server.
type TunnelSender interface {
	SendTunnel(payload []byte) error
}

// Sequencer hands out connection-wide voice sequence numbers. Stamp holds
// the number until send returns.
type Sequencer interface {
	Stamp(send func(seq uint64) error) error
}

// Encoder turns one PCM frame into an Opus packet.
type Encoder interface {
	Encode(pcm []byte) ([]byte, error)
}

// Options configures a Stream.
type Options struct {
	Sender   TunnelSender
	Sequence Sequencer
	Encoder  Encoder
	// Target is the whisper target, zero for the current channel.
	Target uint8
	// Volume is the initial gain. Zero means 1.
	Volume float64
	Clock  schedule.Clock
	Logger *slog.Logger
}

// Stream is a paced voice sink. The zero value is not usable; call New.
type Stream struct {
	sender  TunnelSender
	seq     Sequencer
	encoder Encoder
	target  uint8
	clock   schedule.Clock
	logger  *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	open   bool
	gen    uint64
	volume float64

	scratch  []byte
	queue    [][]byte
	inflight int
	cursor   time.Time
	err      error

	// Writers take tickets so they resume in call order.
	nextTicket uint64
	serving    uint64

	stop     chan struct{}
	loopDone chan struct{}
}

var _ interface {
	Write(p []byte) (int, error)
} = (*Stream)(nil)

// New returns a closed stream.
func New(opts Options) *Stream {
	if opts.Clock == nil {
		opts.Clock = schedule.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Volume == 0 {
		opts.Volume = 1
	}
	s := &Stream{
		sender:  opts.Sender,
		seq:     opts.Sequence,
		encoder: opts.Encoder,
		target:  opts.Target,
		clock:   opts.Clock,
		logger:  opts.Logger.With("target", opts.Target),
		volume:  opts.Volume,
		scratch: make([]byte, 0, FrameSize),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Open arms the frame timer. Opening an open stream closes it first, which
// discards anything queued.
func (s *Stream) Open() {
	s.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.err = nil
	s.stop = make(chan struct{})
	s.loopDone = make(chan struct{})
	ticker := s.clock.NewTicker(FrameInterval)
	go s.loop(ticker, s.stop, s.loopDone)
}

// Reset closes and reopens the stream.
func (s *Stream) Reset() {
	s.Open()
}

// Close stops the timer and drops queued audio. Blocked writers return
// ErrClosed.
func (s *Stream) Close() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.open = false
	stop, done := s.stop, s.loopDone
	s.gen++
	s.queue = nil
	s.scratch = make([]byte, 0, FrameSize)
	s.cursor = time.Time{}
	s.nextTicket, s.serving = 0, 0
	s.cond.Broadcast()
	s.mu.Unlock()

	close(stop)
	<-done
}

// IsOpen reports whether the frame timer is armed.
func (s *Stream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// SetVolume sets the gain applied to frames dispatched from now on.
func (s *Stream) SetVolume(gain float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = gain
}

func (s *Stream) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Queued reports how many full frames wait for dispatch.
func (s *Stream) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Write queues PCM for dispatch. It blocks while the frame queue is full.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrClosed
	}

	gen := s.gen
	ticket := s.nextTicket
	s.nextTicket++
	for s.serving != ticket {
		s.cond.Wait()
		if s.gen != gen {
			return 0, ErrClosed
		}
	}
	defer func() {
		if s.gen == gen {
			s.serving++
			s.cond.Broadcast()
		}
	}()

	written := 0
	for len(p) > 0 {
		n := copy(s.scratch[len(s.scratch):FrameSize], p)
		s.scratch = s.scratch[:len(s.scratch)+n]
		p = p[n:]
		written += n

		if len(s.scratch) == FrameSize {
			if err := s.pushLocked(gen); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// pushLocked moves the full scratch frame onto the queue, waiting for room.
func (s *Stream) pushLocked(gen uint64) error {
	for len(s.queue) >= QueueCapacity {
		s.cond.Wait()
		if s.gen != gen {
			return ErrClosed
		}
	}
	s.queue = append(s.queue, s.scratch)
	s.scratch = make([]byte, 0, FrameSize)
	return nil
}

// Drain pads any partial frame with silence, then waits until every queued
// frame has been sent. It returns the first send error since the stream
// was opened.
func (s *Stream) Drain(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrClosed
	}
	gen := s.gen

	// Take a writer ticket so the padding lands after pending writes.
	ticket := s.nextTicket
	s.nextTicket++
	for s.serving != ticket {
		s.cond.Wait()
		if s.gen != gen {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			s.abandonTicket(gen, ticket)
			return err
		}
	}

	var err error
	if len(s.scratch) > 0 {
		n := len(s.scratch)
		s.scratch = s.scratch[:FrameSize]
		clear(s.scratch[n:])
		err = s.pushLocked(gen)
	}
	if s.gen == gen {
		s.serving++
		s.cond.Broadcast()
	}
	if err != nil {
		return err
	}

	for len(s.queue) > 0 || s.inflight > 0 {
		s.cond.Wait()
		if s.gen != gen {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return s.err
}

// abandonTicket lets later writers through when a Drain gives up waiting
// for its turn.
func (s *Stream) abandonTicket(gen, ticket uint64) {
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for s.gen == gen && s.serving != ticket {
			s.cond.Wait()
		}
		if s.gen == gen {
			s.serving++
			s.cond.Broadcast()
		}
	}()
}

func (s *Stream) loop(ticker schedule.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C():
			s.tick(now)
		}
	}
}

type outFrame struct {
	pcm        []byte
	terminator bool
}

// tick sends one queued frame for every full FrameInterval since the last
// dispatch.
func (s *Stream) tick(now time.Time) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	if s.cursor.IsZero() || now.Sub(s.cursor) > IdleReset {
		s.cursor = now
		s.mu.Unlock()
		return
	}

	var out []outFrame
	for !now.Before(s.cursor.Add(FrameInterval)) {
		s.cursor = s.cursor.Add(FrameInterval)
		if len(s.queue) == 0 {
			continue
		}
		pcm := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		out = append(out, outFrame{pcm: pcm, terminator: len(s.queue) == 0})
	}
	if len(out) == 0 {
		s.mu.Unlock()
		return
	}
	gen, gain := s.gen, s.volume
	s.inflight += len(out)
	// Room in the queue for blocked writers.
	s.cond.Broadcast()
	s.mu.Unlock()

	var sendErr error
	for _, f := range out {
		if err := s.dispatch(f, gain); err != nil && sendErr == nil {
			sendErr = err
		}
	}

	s.mu.Lock()
	s.inflight -= len(out)
	if sendErr != nil && s.err == nil && s.gen == gen {
		s.err = sendErr
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Stream) dispatch(f outFrame, gain float64) error {
	if gain != 1 {
		opus.Scale(f.pcm, gain)
	}
	packet, err := s.encoder.Encode(f.pcm)
	if err != nil {
		metrics.RecordVoiceFrame("error")
		s.logger.Error("failed to encode voice frame", "error", err)
		return err
	}

	err = s.seq.Stamp(func(seq uint64) error {
		payload, err := tunnel.VoicePacket{
			Target:     s.target,
			Sequence:   seq,
			Terminator: f.terminator,
			Payload:    packet,
		}.Marshal()
		if err != nil {
			return err
		}
		return s.sender.SendTunnel(payload)
	})
	if err != nil {
		metrics.RecordVoiceFrame("error")
		s.logger.Error("failed to send voice frame", "error", err)
		return fmt.Errorf("dispatch frame: %w", err)
	}
	metrics.RecordVoiceFrame("success")
	return nil
}
