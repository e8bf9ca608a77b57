// Package capture turns inbound voice packets into finished utterances.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/glizzus/mumble-voice/internal/generator"
	"github.com/glizzus/mumble-voice/internal/metrics"
	"github.com/glizzus/mumble-voice/internal/opus"
	"github.com/glizzus/mumble-voice/internal/pipeline"
	"github.com/glizzus/mumble-voice/internal/queue"
	"github.com/glizzus/mumble-voice/internal/schedule"
	"github.com/glizzus/mumble-voice/internal/tunnel"
)

// Decoder turns one Opus packet into PCM.
type Decoder interface {
	Decode(packet []byte) ([]byte, error)
}

// Transcoder converts a raw PCM file into a container other tools accept.
type Transcoder interface {
	PCMToWAV(ctx context.Context, in, out string) error
}

type Options struct {
	// Dir holds the per-utterance artifacts.
	Dir string
	// NewDecoder creates the decoder for a sender. Each sender gets its own,
	// since Opus decoders carry state between packets.
	NewDecoder func() (Decoder, error)
	Transcoder Transcoder
	Output     *queue.Queue[pipeline.AudioInputJob]
	IDs        generator.Generator[string]
	Clock      schedule.Clock
	Logger     *slog.Logger
}

type utterance struct {
	start   time.Time
	context pipeline.AudioContext
	pcm     []byte
}

// Aggregator keeps at most one open utterance per sender. A packet with the
// terminator flag closes the sender's utterance and starts its flush; flushes
// for different senders run concurrently.
type Aggregator struct {
	dir        string
	newDecoder func() (Decoder, error)
	transcoder Transcoder
	output     *queue.Queue[pipeline.AudioInputJob]
	ids        generator.Generator[string]
	namer      generator.ArtifactNamer
	clock      schedule.Clock
	logger     *slog.Logger

	mu       sync.Mutex
	open     map[uint32]*utterance
	decoders map[uint32]Decoder

	ctx     context.Context
	cancel  context.CancelFunc
	flushes sync.WaitGroup
}

func NewAggregator(opts Options) *Aggregator {
	if opts.NewDecoder == nil {
		opts.NewDecoder = func() (Decoder, error) { return opus.NewDecoder() }
	}
	if opts.IDs == nil {
		opts.IDs = &generator.UUIDV7Generator{}
	}
	if opts.Clock == nil {
		opts.Clock = schedule.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		dir:        opts.Dir,
		newDecoder: opts.NewDecoder,
		transcoder: opts.Transcoder,
		output:     opts.Output,
		ids:        opts.IDs,
		namer:      generator.ArtifactNamer{Dir: opts.Dir},
		clock:      opts.Clock,
		logger:     opts.Logger,
		open:       make(map[uint32]*utterance),
		decoders:   make(map[uint32]Decoder),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// HandleTunnel parses a UDPTunnel payload and feeds Opus frames to
// HandleFrame. Pings are ignored. Unsupported or malformed packets are
// logged and dropped.
func (a *Aggregator) HandleTunnel(payload []byte) {
	packet, err := tunnel.Parse(payload)
	switch {
	case errors.Is(err, tunnel.ErrUnsupportedCodec):
		metrics.RecordTunnelPacket("unsupported")
		a.logger.Warn("dropping voice packet", "error", err)
		return
	case err != nil:
		metrics.RecordTunnelPacket("malformed")
		a.logger.Warn("dropping malformed voice packet", "error", err)
		return
	case packet.IsPing():
		metrics.RecordTunnelPacket("ping")
		return
	}
	metrics.RecordTunnelPacket("audio")
	a.HandleFrame(packet.Audio)
}

// HandleFrame appends the decoded frame to the sender's utterance, opening
// one if needed, and flushes it when the frame is a terminator.
func (a *Aggregator) HandleFrame(f tunnel.AudioFrame) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, ok := a.open[f.Sender]
	if !ok {
		u = &utterance{start: a.clock.Now(), context: pipeline.ContextForTarget(f.Target)}
		a.open[f.Sender] = u
	}

	if len(f.Payload) > 0 {
		pcm, err := a.decodeLocked(f.Sender, f.Payload)
		if err != nil {
			a.logger.Warn("failed to decode voice frame", "session", f.Sender, "sequence", f.Sequence, "error", err)
		} else {
			u.pcm = append(u.pcm, pcm...)
		}
	}

	if !f.Terminator {
		return
	}
	delete(a.open, f.Sender)
	if len(u.pcm) == 0 {
		return
	}
	a.flushes.Add(1)
	go func() {
		defer a.flushes.Done()
		a.flush(f.Sender, u)
	}()
}

func (a *Aggregator) decodeLocked(sender uint32, payload []byte) ([]byte, error) {
	dec, ok := a.decoders[sender]
	if !ok {
		var err error
		dec, err = a.newDecoder()
		if err != nil {
			return nil, fmt.Errorf("create decoder: %w", err)
		}
		a.decoders[sender] = dec
	}
	return dec.Decode(payload)
}

func (a *Aggregator) flush(sender uint32, u *utterance) {
	raw := a.namer.Path(sender, u.start, "pcm")
	wav := a.namer.Path(sender, u.start, "wav")
	duration := float64(len(u.pcm)) / float64(opus.SampleRate*2*opus.Channels)

	logger := a.logger.With("session", sender, "artifact", wav)
	defer func() {
		if err := os.Remove(raw); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove raw capture", "error", err)
		}
	}()

	if err := a.writeWAV(raw, wav, u.pcm); err != nil {
		metrics.RecordUtterance("failed", duration)
		logger.Error("dropping utterance", "error", err)
		_ = os.Remove(wav)
		return
	}

	id, err := a.ids.Next()
	if err != nil {
		metrics.RecordUtterance("failed", duration)
		logger.Error("failed to generate job id", "error", err)
		_ = os.Remove(wav)
		return
	}

	metrics.RecordUtterance("flushed", duration)
	logger.Info("captured utterance", "seconds", duration)
	a.output.Enqueue(pipeline.AudioInputJob{
		ID:      id,
		Path:    wav,
		Context: u.context,
		Sender:  sender,
	})
}

func (a *Aggregator) writeWAV(raw, wav string, pcm []byte) error {
	if err := os.WriteFile(raw, pcm, 0o644); err != nil {
		return fmt.Errorf("write raw capture: %w", err)
	}
	if err := a.transcoder.PCMToWAV(a.ctx, raw, wav); err != nil {
		return fmt.Errorf("transcode capture: %w", err)
	}
	return nil
}

// Discard drops the sender's open utterance and decoder, for example when
// the user leaves before sending a terminator.
func (a *Aggregator) Discard(sender uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.open, sender)
	delete(a.decoders, sender)
}

// Pending reports how many senders have an open utterance.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.open)
}

// Wait blocks until every started flush has finished.
func (a *Aggregator) Wait() {
	a.flushes.Wait()
}

// Close cancels running transcodes and waits for their flushes.
func (a *Aggregator) Close() {
	a.cancel()
	a.flushes.Wait()
}
