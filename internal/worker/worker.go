// Package worker holds consumers for the pipeline stages that run outside
// this process, such as transcription and speech synthesis.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/glizzus/mumble-voice/internal/pipeline"
	"github.com/glizzus/mumble-voice/internal/queue"
)

// JobHandler consumes jobs from a pipeline queue.
type JobHandler[T any] interface {
	HandleJobs(ctx context.Context, jobs ...T) error
}

// PrintingJobHandler logs every job and drops it. It stands in for a stage
// whose real consumer is not attached.
type PrintingJobHandler[T any] struct {
	Stage  string
	Logger *slog.Logger
}

func (h *PrintingJobHandler[T]) HandleJobs(ctx context.Context, jobs ...T) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, job := range jobs {
		logger.InfoContext(ctx, "Dropping job with no consumer", "stage", h.Stage, "job", job)
	}
	return nil
}

var _ JobHandler[pipeline.AudioGenerationJob] = (*PrintingJobHandler[pipeline.AudioGenerationJob])(nil)

// MemoryJobHandler keeps every job it is given.
type MemoryJobHandler[T any] struct {
	mu   sync.Mutex
	jobs []T
}

func NewMemoryJobHandler[T any]() *MemoryJobHandler[T] {
	return &MemoryJobHandler[T]{}
}

func (h *MemoryJobHandler[T]) HandleJobs(ctx context.Context, jobs ...T) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = append(h.jobs, jobs...)
	return nil
}

// Jobs returns a copy of what has been handled so far.
func (h *MemoryJobHandler[T]) Jobs() []T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]T(nil), h.jobs...)
}

// Attach claims every job enqueued on q and hands it to h on the enqueuing
// goroutine. Errors are logged.
func Attach[T any](ctx context.Context, q *queue.Queue[T], h JobHandler[T], logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	pipeline.Claim(q, func(job T) {
		if err := h.HandleJobs(ctx, job); err != nil {
			logger.ErrorContext(ctx, "Failed to handle job", "job", job, "error", err)
		}
	})
}
