// Package pipeline holds the job records passed between the voice pipeline
// stages and the queues that carry them.
//
// Capture feeds AudioInput. Whatever turns speech into a reply (external to
// this module) feeds AudioGeneration and AudioOutput. The player drains
// AudioOutput. Text flows through TextInput and TextOutput the same way.
package pipeline

import (
	"log/slog"

	"github.com/glizzus/mumble-voice/internal/metrics"
	"github.com/glizzus/mumble-voice/internal/queue"
)

// AudioContext is how a burst of voice was addressed.
type AudioContext uint8

const (
	ContextNormal AudioContext = iota
	ContextShout
	ContextWhisper
	ContextListen
)

func (c AudioContext) String() string {
	switch c {
	case ContextNormal:
		return "normal"
	case ContextShout:
		return "shout"
	case ContextWhisper:
		return "whisper"
	case ContextListen:
		return "listen"
	default:
		return "unknown"
	}
}

// ContextForTarget maps the target field of an inbound voice packet to its
// context. The server uses 1 for channel whispers and 2 for direct ones.
func ContextForTarget(target uint8) AudioContext {
	switch target {
	case 1:
		return ContextShout
	case 2:
		return ContextWhisper
	default:
		return ContextNormal
	}
}

// AudioInputJob is a finished utterance ready for transcription.
type AudioInputJob struct {
	ID      string
	Path    string
	Context AudioContext
	Sender  uint32
}

// AudioGenerationJob asks for Text to be spoken to Target.
type AudioGenerationJob struct {
	ID      string
	Text    string
	Context AudioContext
	Target  uint8
}

// AudioOutputJob is an audio file to play. Target is the whisper target,
// zero for the bot's channel.
type AudioOutputJob struct {
	ID      string
	Path    string
	Context AudioContext
	Target  uint8
}

// TextInputJob is a chat message received from Actor.
type TextInputJob struct {
	ID         string
	Actor      uint32
	Message    string
	Sessions   []uint32
	ChannelIDs []uint32
	TreeIDs    []uint32
}

// TextOutputJob is a chat message to send. Empty fields are filled in by
// the sender: no recipients means the bot's channel, no actor means the bot.
type TextOutputJob struct {
	ID         string
	Actor      *uint32
	Message    string
	Sessions   []uint32
	ChannelIDs []uint32
	TreeIDs    []uint32
	IsError    bool
}

// Queues connects the pipeline stages.
type Queues struct {
	AudioInput      *queue.Queue[AudioInputJob]
	AudioGeneration *queue.Queue[AudioGenerationJob]
	AudioOutput     *queue.Queue[AudioOutputJob]
	TextInput       *queue.Queue[TextInputJob]
	TextOutput      *queue.Queue[TextOutputJob]
}

// NewQueues creates the pipeline queues. Queue depth is exported as a
// metric; with debug set every enqueue and dequeue is logged too.
func NewQueues(logger *slog.Logger, debug bool) *Queues {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queues{
		AudioInput:      queue.New[AudioInputJob](),
		AudioGeneration: queue.New[AudioGenerationJob](),
		AudioOutput:     queue.New[AudioOutputJob](),
		TextInput:       queue.New[TextInputJob](),
		TextOutput:      queue.New[TextOutputJob](),
	}
	instrument(q.AudioInput, "audio_input", logger, debug)
	instrument(q.AudioGeneration, "audio_generation", logger, debug)
	instrument(q.AudioOutput, "audio_output", logger, debug)
	instrument(q.TextInput, "text_input", logger, debug)
	instrument(q.TextOutput, "text_output", logger, debug)
	return q
}

func instrument[T any](q *queue.Queue[T], name string, logger *slog.Logger, debug bool) {
	q.OnEnqueue(func(item T) {
		metrics.SetQueueDepth(name, q.Len())
		if debug {
			logger.Debug("enqueue", "queue", name, "item", item)
		}
	})
	q.OnDequeue(func(item T) {
		metrics.SetQueueDepth(name, q.Len())
		if debug {
			logger.Debug("dequeue", "queue", name, "item", item)
		}
	})
}

// Claim makes fn the consumer of q. Each enqueue is followed by a Dequeue and
// fn runs with the claimed item on the enqueuing goroutine. fn must not block
// for long; hand slow work to a goroutine or a runner.
func Claim[T any](q *queue.Queue[T], fn func(T)) {
	q.OnEnqueue(func(T) {
		if item, ok := q.Dequeue(); ok {
			fn(item)
		}
	})
}

// Relay claims every item enqueued on in, converts it with fn and enqueues
// the result on out. Items for which fn reports false are dropped.
func Relay[In, Out any](in *queue.Queue[In], out *queue.Queue[Out], fn func(In) (Out, bool)) {
	Claim(in, func(item In) {
		if next, ok := fn(item); ok {
			out.Enqueue(next)
		}
	})
}

// Echo is a Relay conversion that plays a captured utterance straight back
// to the channel it was heard in.
func Echo(job AudioInputJob) (AudioOutputJob, bool) {
	return AudioOutputJob{
		ID:      job.ID,
		Path:    job.Path,
		Context: job.Context,
		Target:  0,
	}, true
}
