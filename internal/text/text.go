// Package text moves chat messages between the connection and the text
// queues of the pipeline.
package text

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/glizzus/mumble-voice/internal/connection"
	"github.com/glizzus/mumble-voice/internal/directory"
	"github.com/glizzus/mumble-voice/internal/generator"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
	"github.com/glizzus/mumble-voice/internal/pipeline"
	"github.com/glizzus/mumble-voice/internal/queue"
)

// DefaultMessage is sent in place of an empty message.
const DefaultMessage = "No Text given?"

// ErrSelfUnknown is returned when a default needs the bot's own session
// before the server has announced it.
var ErrSelfUnknown = errors.New("own session not known yet")

// MessageSender writes a control message to the server.
type MessageSender interface {
	Send(msg mumbleproto.Message) error
}

// Receiver turns inbound chat messages into TextInputJobs.
type Receiver struct {
	out    *queue.Queue[pipeline.TextInputJob]
	ids    generator.Generator[string]
	logger *slog.Logger
}

func NewReceiver(out *queue.Queue[pipeline.TextInputJob], ids generator.Generator[string], logger *slog.Logger) *Receiver {
	if ids == nil {
		ids = &generator.UUIDV7Generator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{out: out, ids: ids, logger: logger}
}

func (r *Receiver) Attach(s connection.Subscriber) {
	connection.On(s, r.Handle)
}

func (r *Receiver) Handle(m *mumbleproto.TextMessage) {
	id, err := r.ids.Next()
	if err != nil {
		r.logger.Error("failed to generate job id", "error", err)
		return
	}
	r.out.Enqueue(pipeline.TextInputJob{
		ID:         id,
		Actor:      m.GetActor(),
		Message:    m.Message,
		Sessions:   m.Session,
		ChannelIDs: m.ChannelID,
		TreeIDs:    m.TreeID,
	})
}

// Sender sends TextOutputJobs, filling in what the job leaves out.
type Sender struct {
	conn   MessageSender
	users  *directory.Users
	logger *slog.Logger
}

func NewSender(conn MessageSender, users *directory.Users, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{conn: conn, users: users, logger: logger}
}

// Attach makes the sender the consumer of q.
func (s *Sender) Attach(q *queue.Queue[pipeline.TextOutputJob]) {
	pipeline.Claim(q, func(job pipeline.TextOutputJob) {
		if err := s.Send(job); err != nil {
			s.logger.Error("failed to send text message", "job", job.ID, "error", err)
		}
	})
}

// Send sends job. An empty message becomes DefaultMessage, no recipients
// means the bot's current channel and no actor means the bot itself.
func (s *Sender) Send(job pipeline.TextOutputJob) error {
	msg := &mumbleproto.TextMessage{
		Actor:     job.Actor,
		Message:   job.Message,
		Session:   job.Sessions,
		ChannelID: job.ChannelIDs,
		TreeID:    job.TreeIDs,
	}
	if msg.Message == "" {
		msg.Message = DefaultMessage
	}

	noRecipients := len(msg.Session) == 0 && len(msg.ChannelID) == 0 && len(msg.TreeID) == 0
	if noRecipients || msg.Actor == nil {
		self, ok := s.users.Self()
		if !ok {
			return ErrSelfUnknown
		}
		if noRecipients {
			s.logger.Debug("no recipients given, sending to current channel", "channel", self.ChannelID)
			msg.ChannelID = []uint32{self.ChannelID}
		}
		if msg.Actor == nil {
			msg.Actor = mumbleproto.Ptr(self.Session)
		}
	}

	if err := s.conn.Send(msg); err != nil {
		return fmt.Errorf("send text message: %w", err)
	}
	return nil
}
