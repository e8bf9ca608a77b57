package text_test

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/mumble-voice/internal/connection"
	"github.com/glizzus/mumble-voice/internal/directory"
	"github.com/glizzus/mumble-voice/internal/generator"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
	"github.com/glizzus/mumble-voice/internal/pipeline"
	"github.com/glizzus/mumble-voice/internal/queue"
	"github.com/glizzus/mumble-voice/internal/text"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSender struct {
	mu   sync.Mutex
	sent []mumbleproto.Message
	err  error
}

func (r *recordingSender) Send(msg mumbleproto.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestReceiver(t *testing.T) {
	bus := connection.NewBus(discard)
	q := queue.New[pipeline.TextInputJob]()
	text.NewReceiver(q, generator.Static[string]{Value: "id"}, discard).Attach(bus)

	bus.Publish(&mumbleproto.TextMessage{Actor: mumbleproto.Ptr(uint32(4)), ChannelID: []uint32{1}, Message: "hello"})

	got, ok := q.Dequeue()
	if !ok {
		t.Fatal("no job enqueued")
	}
	want := pipeline.TextInputJob{ID: "id", Actor: 4, Message: "hello", ChannelIDs: []uint32{1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("job mismatch (-want +got):\n%s", diff)
	}
}

func selfUsers() *directory.Users {
	users := directory.NewUsers("bot")
	users.SetSelf(9)
	users.Apply(&mumbleproto.UserState{Session: mumbleproto.Ptr(uint32(9)), Name: mumbleproto.Ptr("bot"), ChannelID: mumbleproto.Ptr(uint32(5))})
	return users
}

func TestSenderDefaults(t *testing.T) {
	tc := []struct {
		name string
		job  pipeline.TextOutputJob
		want *mumbleproto.TextMessage
	}{
		{
			name: "everything defaulted",
			job:  pipeline.TextOutputJob{},
			want: &mumbleproto.TextMessage{Actor: mumbleproto.Ptr(uint32(9)), ChannelID: []uint32{5}, Message: text.DefaultMessage},
		},
		{
			name: "private message",
			job:  pipeline.TextOutputJob{Message: "psst", Sessions: []uint32{3}},
			want: &mumbleproto.TextMessage{Actor: mumbleproto.Ptr(uint32(9)), Session: []uint32{3}, Message: "psst"},
		},
		{
			name: "explicit actor and channel",
			job:  pipeline.TextOutputJob{Message: "hi", Actor: mumbleproto.Ptr(uint32(1)), ChannelIDs: []uint32{2}},
			want: &mumbleproto.TextMessage{Actor: mumbleproto.Ptr(uint32(1)), ChannelID: []uint32{2}, Message: "hi"},
		},
	}
	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			conn := &recordingSender{}
			if err := text.NewSender(conn, selfUsers(), discard).Send(test.job); err != nil {
				t.Fatalf("Send returned error: %v", err)
			}
			if diff := cmp.Diff([]mumbleproto.Message{test.want}, conn.sent); diff != "" {
				t.Errorf("sent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSenderSelfUnknown(t *testing.T) {
	conn := &recordingSender{}
	err := text.NewSender(conn, directory.NewUsers("bot"), discard).Send(pipeline.TextOutputJob{Message: "hi"})
	if !errors.Is(err, text.ErrSelfUnknown) {
		t.Errorf("Send error = %v, want ErrSelfUnknown", err)
	}
	if len(conn.sent) != 0 {
		t.Errorf("sent %d messages", len(conn.sent))
	}
}

func TestSenderAttach(t *testing.T) {
	conn := &recordingSender{}
	q := queue.New[pipeline.TextOutputJob]()
	text.NewSender(conn, selfUsers(), discard).Attach(q)

	q.Enqueue(pipeline.TextOutputJob{Message: "one"})
	q.Enqueue(pipeline.TextOutputJob{Message: "two"})

	if q.Len() != 0 {
		t.Errorf("queue holds %d jobs after sending", q.Len())
	}
	var got []string
	for _, m := range conn.sent {
		got = append(got, m.(*mumbleproto.TextMessage).Message)
	}
	if diff := cmp.Diff([]string{"one", "two"}, got); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}
