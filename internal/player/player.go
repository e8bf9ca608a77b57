// Package player plays audio files into the voice channel, one at a time.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glizzus/mumble-voice/internal/metrics"
	"github.com/glizzus/mumble-voice/internal/pipeline"
	"github.com/glizzus/mumble-voice/internal/queue"
	"github.com/glizzus/mumble-voice/internal/runner"
	"github.com/glizzus/mumble-voice/internal/schedule"
)

// ErrClosed is returned for jobs handed to a closed player.
var ErrClosed = errors.New("player closed")

// DefaultSettle is long enough for the last frames of a drained stream to
// reach the server before the next job starts.
const DefaultSettle = 20 * time.Millisecond

// Source decodes the artifact at path to 48 kHz mono s16le PCM.
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Sink is a paced voice stream, normally a *dispatch.Stream.
type Sink interface {
	io.Writer
	Open()
	Close()
	Drain(ctx context.Context) error
}

type Options struct {
	Source Source
	// NewSink creates the stream for a whisper target. Streams are reused
	// across jobs with the same target.
	NewSink func(target uint8) (Sink, error)
	Runner  *runner.Runner
	// Dir is where the synthesis stage leaves its output. Relative job paths
	// are resolved against it.
	Dir string
	// Settle is waited after a drain. Zero waits nothing.
	Settle time.Duration
	// KeepArtifacts leaves played files on disk.
	KeepArtifacts bool
	Clock         schedule.Clock
	Logger        *slog.Logger
}

// Player serialises playback through a runner so two jobs never share the
// channel at once.
type Player struct {
	source  Source
	newSink func(target uint8) (Sink, error)
	runner  *runner.Runner
	dir     string
	settle  time.Duration
	keep    bool
	clock   schedule.Clock
	logger  *slog.Logger

	mu     sync.Mutex
	sinks  map[uint8]Sink
	closed bool

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

func New(opts Options) *Player {
	if opts.Runner == nil {
		opts.Runner = runner.New(opts.Logger)
	}
	if opts.Clock == nil {
		opts.Clock = schedule.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		source:  opts.Source,
		newSink: opts.NewSink,
		runner:  opts.Runner,
		dir:     opts.Dir,
		settle:  opts.Settle,
		keep:    opts.KeepArtifacts,
		clock:   opts.Clock,
		logger:  opts.Logger,
		sinks:   make(map[uint8]Sink),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Play waits for its turn, then plays job and returns once every frame has
// been sent.
func (p *Player) Play(ctx context.Context, job pipeline.AudioOutputJob) error {
	if p.isClosed() {
		return ErrClosed
	}
	return p.runner.Run(ctx, func(ctx context.Context) error {
		return p.play(ctx, job)
	})
}

// Attach makes the player the consumer of q. Jobs are queued on the runner
// in the order they were enqueued; failures are logged.
func (p *Player) Attach(q *queue.Queue[pipeline.AudioOutputJob]) {
	pipeline.Claim(q, func(job pipeline.AudioOutputJob) {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.logger.Warn("dropping job for closed player", "job", job.ID, "path", job.Path)
			return
		}
		p.pending.Add(1)
		p.mu.Unlock()

		done := p.runner.Submit(p.ctx, func(ctx context.Context) error {
			return p.play(ctx, job)
		})
		go func() {
			defer p.pending.Done()
			if err := <-done; err != nil {
				p.logger.Error("playback failed", "job", job.ID, "path", job.Path, "error", err)
			}
		}()
	})
}

// Wait blocks until every attached job has finished.
func (p *Player) Wait() {
	p.pending.Wait()
}

// Close abandons queued jobs and closes the streams. Jobs claimed after
// Close are dropped.
func (p *Player) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.pending.Wait()
	p.runner.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for target, sink := range p.sinks {
		sink.Close()
		delete(p.sinks, target)
	}
}

func (p *Player) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// resolve places a relative artifact path in the output directory.
func (p *Player) resolve(path string) string {
	if p.dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.dir, path)
}

func (p *Player) sink(target uint8) (Sink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sinks[target]; ok {
		return s, nil
	}
	s, err := p.newSink(target)
	if err != nil {
		return nil, fmt.Errorf("create stream for target %d: %w", target, err)
	}
	p.sinks[target] = s
	return s, nil
}

func (p *Player) play(ctx context.Context, job pipeline.AudioOutputJob) (err error) {
	job.Path = p.resolve(job.Path)
	start := p.clock.Now()
	logger := p.logger.With("job", job.ID, "path", job.Path, "target", job.Target)
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.RecordPlayback(status, p.clock.Now().Sub(start).Seconds())
		if !p.keep {
			if rerr := os.Remove(job.Path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				logger.Warn("failed to remove artifact", "error", rerr)
			}
		}
	}()

	logger.Info("playing")
	pcm, err := p.source.Open(ctx, job.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", job.Path, err)
	}
	defer pcm.Close()

	sink, err := p.sink(job.Target)
	if err != nil {
		return err
	}
	sink.Open()
	defer sink.Close()

	if _, err := io.Copy(sink, contextReader{ctx: ctx, r: pcm}); err != nil {
		return fmt.Errorf("stream %s: %w", job.Path, err)
	}
	if err := sink.Drain(ctx); err != nil {
		return fmt.Errorf("drain %s: %w", job.Path, err)
	}
	return schedule.Sleep(ctx, p.clock, p.settle)
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
