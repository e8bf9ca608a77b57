package pipeline_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/mumble-voice/internal/pipeline"
)

func TestRelayEcho(t *testing.T) {
	q := pipeline.NewQueues(nil, false)
	pipeline.Relay(q.AudioInput, q.AudioOutput, pipeline.Echo)

	var played []pipeline.AudioOutputJob
	pipeline.Claim(q.AudioOutput, func(job pipeline.AudioOutputJob) { played = append(played, job) })

	q.AudioInput.Enqueue(pipeline.AudioInputJob{ID: "a", Path: "/tmp/7-1.wav", Context: pipeline.ContextWhisper, Sender: 7})
	q.AudioInput.Enqueue(pipeline.AudioInputJob{ID: "b", Path: "/tmp/8-2.wav", Sender: 8})

	want := []pipeline.AudioOutputJob{
		{ID: "a", Path: "/tmp/7-1.wav", Context: pipeline.ContextWhisper},
		{ID: "b", Path: "/tmp/8-2.wav"},
	}
	if diff := cmp.Diff(want, played); diff != "" {
		t.Errorf("played jobs mismatch (-want +got):\n%s", diff)
	}
	if q.AudioInput.Len() != 0 || q.AudioOutput.Len() != 0 {
		t.Errorf("queues not drained: input %d, output %d", q.AudioInput.Len(), q.AudioOutput.Len())
	}
}

func TestRelayDrop(t *testing.T) {
	q := pipeline.NewQueues(nil, false)
	pipeline.Relay(q.TextInput, q.TextOutput, func(in pipeline.TextInputJob) (pipeline.TextOutputJob, bool) {
		if in.Message == "" {
			return pipeline.TextOutputJob{}, false
		}
		return pipeline.TextOutputJob{Message: strings.ToUpper(in.Message)}, true
	})

	q.TextInput.Enqueue(pipeline.TextInputJob{Message: ""})
	q.TextInput.Enqueue(pipeline.TextInputJob{Message: "hi"})

	if q.TextOutput.Len() != 1 {
		t.Fatalf("TextOutput.Len() = %d, want 1", q.TextOutput.Len())
	}
	got, _ := q.TextOutput.Peek()
	if got.Message != "HI" {
		t.Errorf("Message = %q, want HI", got.Message)
	}
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	q := pipeline.NewQueues(logger, true)

	q.AudioOutput.Enqueue(pipeline.AudioOutputJob{ID: "job-1"})
	q.AudioOutput.Dequeue()

	out := buf.String()
	for _, want := range []string{"msg=enqueue queue=audio_output", "msg=dequeue queue=audio_output", "job-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestContextForTarget(t *testing.T) {
	tc := []struct {
		target uint8
		want   pipeline.AudioContext
	}{
		{0, pipeline.ContextNormal},
		{1, pipeline.ContextShout},
		{2, pipeline.ContextWhisper},
		{31, pipeline.ContextNormal},
	}
	for _, test := range tc {
		if got := pipeline.ContextForTarget(test.target); got != test.want {
			t.Errorf("ContextForTarget(%d) = %s, want %s", test.target, got, test.want)
		}
	}
}
