package player_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/mumble-voice/internal/pipeline"
	"github.com/glizzus/mumble-voice/internal/player"
	"github.com/glizzus/mumble-voice/internal/queue"
	"github.com/glizzus/mumble-voice/internal/runner"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fileSource serves the raw file content as PCM.
type fileSource struct{}

func (fileSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

type playLog struct {
	mu      sync.Mutex
	events  []string
	active  int
	overlap bool
}

func (l *playLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *playLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeSink struct {
	target uint8
	log    *playLog
	delay  time.Duration
	data   []byte
}

func (s *fakeSink) Open() {
	s.log.mu.Lock()
	s.log.active++
	if s.log.active > 1 {
		s.log.overlap = true
	}
	s.log.mu.Unlock()
	s.data = nil
}

func (s *fakeSink) Close() {
	s.log.mu.Lock()
	if s.log.active > 0 {
		s.log.active--
	}
	s.log.mu.Unlock()
}

func (s *fakeSink) Write(p []byte) (int, error) {
	s.data = append(s.data, p...)
	return len(p), nil
}

func (s *fakeSink) Drain(context.Context) error {
	time.Sleep(s.delay)
	s.log.add(string(s.data))
	return nil
}

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newPlayer(l *playLog, keep bool, delay time.Duration) (*player.Player, map[uint8]*fakeSink) {
	sinks := map[uint8]*fakeSink{}
	p := player.New(player.Options{
		Source: fileSource{},
		NewSink: func(target uint8) (player.Sink, error) {
			s := &fakeSink{target: target, log: l, delay: delay}
			sinks[target] = s
			return s, nil
		},
		Runner:        runner.New(discard),
		Settle:        time.Millisecond,
		KeepArtifacts: keep,
		Logger:        discard,
	})
	return p, sinks
}

func TestPlay(t *testing.T) {
	dir := t.TempDir()
	l := &playLog{}
	p, sinks := newPlayer(l, false, 0)
	defer p.Close()

	path := writeArtifact(t, dir, "1-1.wav", "hello")
	if err := p.Play(context.Background(), pipeline.AudioOutputJob{ID: "a", Path: path, Target: 3}); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}

	if diff := cmp.Diff([]string{"hello"}, l.get()); diff != "" {
		t.Errorf("played mismatch (-want +got):\n%s", diff)
	}
	if _, ok := sinks[3]; !ok {
		t.Error("no stream created for target 3")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("artifact not removed: %v", err)
	}
}

func TestPlayKeepsArtifacts(t *testing.T) {
	dir := t.TempDir()
	p, _ := newPlayer(&playLog{}, true, 0)
	defer p.Close()

	path := writeArtifact(t, dir, "1-1.wav", "hello")
	if err := p.Play(context.Background(), pipeline.AudioOutputJob{Path: path}); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact removed with KeepArtifacts set: %v", err)
	}
}

func TestAttachPlaysInOrderWithoutOverlap(t *testing.T) {
	dir := t.TempDir()
	l := &playLog{}
	p, _ := newPlayer(l, false, 10*time.Millisecond)
	defer p.Close()

	q := queue.New[pipeline.AudioOutputJob]()
	p.Attach(q)

	q.Enqueue(pipeline.AudioOutputJob{ID: "1", Path: writeArtifact(t, dir, "1.wav", "one")})
	q.Enqueue(pipeline.AudioOutputJob{ID: "missing", Path: filepath.Join(dir, "missing.wav")})
	q.Enqueue(pipeline.AudioOutputJob{ID: "2", Path: writeArtifact(t, dir, "2.wav", "two"), Target: 1})
	q.Enqueue(pipeline.AudioOutputJob{ID: "3", Path: writeArtifact(t, dir, "3.wav", "three")})
	p.Wait()

	if diff := cmp.Diff([]string{"one", "two", "three"}, l.get()); diff != "" {
		t.Errorf("playback order mismatch (-want +got):\n%s", diff)
	}
	if l.overlap {
		t.Error("two jobs played at the same time")
	}
	if q.Len() != 0 {
		t.Errorf("queue still holds %d jobs", q.Len())
	}
}

func TestPlayMissingFile(t *testing.T) {
	p, _ := newPlayer(&playLog{}, false, 0)
	defer p.Close()

	err := p.Play(context.Background(), pipeline.AudioOutputJob{Path: filepath.Join(t.TempDir(), "nope.wav")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Play error = %v, want os.ErrNotExist", err)
	}
}

func TestPlayCancelled(t *testing.T) {
	dir := t.TempDir()
	p, _ := newPlayer(&playLog{}, false, 0)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Play(ctx, pipeline.AudioOutputJob{Path: writeArtifact(t, dir, "x.wav", "x")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Play error = %v, want context.Canceled", err)
	}
}

func TestPlayResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "reply.wav", "synthesized")

	l := &playLog{}
	p := player.New(player.Options{
		Source: fileSource{},
		NewSink: func(target uint8) (player.Sink, error) {
			return &fakeSink{target: target, log: l}, nil
		},
		Dir:    dir,
		Logger: discard,
	})
	defer p.Close()

	if err := p.Play(context.Background(), pipeline.AudioOutputJob{Path: "reply.wav"}); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"synthesized"}, l.get()); diff != "" {
		t.Errorf("played mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "reply.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("artifact still present: %v", err)
	}
}

func TestClosedPlayerRefusesJobs(t *testing.T) {
	dir := t.TempDir()
	l := &playLog{}
	p, _ := newPlayer(l, false, 0)
	q := queue.New[pipeline.AudioOutputJob]()
	p.Attach(q)
	p.Close()

	path := writeArtifact(t, dir, "late.wav", "late")
	q.Enqueue(pipeline.AudioOutputJob{ID: "late", Path: path})
	p.Wait()

	if err := p.Play(context.Background(), pipeline.AudioOutputJob{Path: path}); !errors.Is(err, player.ErrClosed) {
		t.Errorf("Play error = %v, want player.ErrClosed", err)
	}
	if got := l.get(); len(got) != 0 {
		t.Errorf("played %v after Close, want nothing", got)
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0", q.Len())
	}
}

func TestCloseWhileAttaching(t *testing.T) {
	dir := t.TempDir()
	p, _ := newPlayer(&playLog{}, true, 0)
	q := queue.New[pipeline.AudioOutputJob]()
	p.Attach(q)
	path := writeArtifact(t, dir, "a.wav", "a")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				q.Enqueue(pipeline.AudioOutputJob{Path: path})
			}
		}()
	}
	p.Close()
	wg.Wait()
	p.Wait()
}
