package control_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/mumble-voice/internal/control"
	"github.com/glizzus/mumble-voice/internal/directory"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
)

type recordingSender struct {
	sent []mumbleproto.Message
}

func (r *recordingSender) Send(msg mumbleproto.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func setup(self *mumbleproto.UserState) (*control.Controller, *recordingSender) {
	users := directory.NewUsers("bot")
	channels := directory.NewChannels()
	channels.Apply(&mumbleproto.ChannelState{ChannelID: mumbleproto.Ptr(uint32(0)), Name: mumbleproto.Ptr("Root")})
	channels.Apply(&mumbleproto.ChannelState{ChannelID: mumbleproto.Ptr(uint32(4)), Name: mumbleproto.Ptr("Lobby")})
	if self != nil {
		users.SetSelf(self.GetSession())
		users.Apply(self)
	}
	conn := &recordingSender{}
	return control.New(conn, users, channels), conn
}

func state(mods ...func(*mumbleproto.UserState)) *mumbleproto.UserState {
	s := &mumbleproto.UserState{Session: mumbleproto.Ptr(uint32(9)), Name: mumbleproto.Ptr("bot"), ChannelID: mumbleproto.Ptr(uint32(0))}
	for _, m := range mods {
		m(s)
	}
	return s
}

func muted(s *mumbleproto.UserState) {
	s.SelfMute = mumbleproto.Ptr(true)
}

func deafened(s *mumbleproto.UserState) {
	s.SelfDeaf = mumbleproto.Ptr(true)
	s.SelfMute = mumbleproto.Ptr(true)
}

func TestController(t *testing.T) {
	tc := []struct {
		name    string
		self    *mumbleproto.UserState
		action  func(*control.Controller) error
		wantErr error
		want    *mumbleproto.UserState
	}{
		{
			name:   "join channel",
			self:   state(),
			action: func(c *control.Controller) error { return c.JoinChannel(4) },
			want:   &mumbleproto.UserState{Session: mumbleproto.Ptr(uint32(9)), ChannelID: mumbleproto.Ptr(uint32(4))},
		},
		{
			name:   "join channel by name",
			self:   state(),
			action: func(c *control.Controller) error { return c.JoinChannelByName("Lobby") },
			want:   &mumbleproto.UserState{Session: mumbleproto.Ptr(uint32(9)), ChannelID: mumbleproto.Ptr(uint32(4))},
		},
		{
			name:    "already in channel",
			self:    state(),
			action:  func(c *control.Controller) error { return c.JoinChannel(0) },
			wantErr: control.ErrAlreadyInChannel,
		},
		{
			name:    "unknown channel",
			self:    state(),
			action:  func(c *control.Controller) error { return c.JoinChannel(77) },
			wantErr: control.ErrChannelNotFound,
		},
		{
			name:    "unknown channel name",
			self:    state(),
			action:  func(c *control.Controller) error { return c.JoinChannelByName("lobby") },
			wantErr: control.ErrChannelNotFound,
		},
		{
			name:   "mute",
			self:   state(),
			action: (*control.Controller).Mute,
			want:   &mumbleproto.UserState{Session: mumbleproto.Ptr(uint32(9)), SelfMute: mumbleproto.Ptr(true)},
		},
		{
			name:    "already muted",
			self:    state(muted),
			action:  (*control.Controller).Mute,
			wantErr: control.ErrAlreadyMuted,
		},
		{
			name:   "unmute",
			self:   state(muted),
			action: (*control.Controller).Unmute,
			want:   &mumbleproto.UserState{Session: mumbleproto.Ptr(uint32(9)), SelfMute: mumbleproto.Ptr(false)},
		},
		{
			name:    "already unmuted",
			self:    state(),
			action:  (*control.Controller).Unmute,
			wantErr: control.ErrAlreadyUnmuted,
		},
		{
			name:   "deafen mutes too",
			self:   state(),
			action: (*control.Controller).Deafen,
			want:   &mumbleproto.UserState{Session: mumbleproto.Ptr(uint32(9)), SelfMute: mumbleproto.Ptr(true), SelfDeaf: mumbleproto.Ptr(true)},
		},
		{
			name:    "already deafened",
			self:    state(deafened),
			action:  (*control.Controller).Deafen,
			wantErr: control.ErrAlreadyDeafened,
		},
		{
			name:   "undeafen unmutes too",
			self:   state(deafened),
			action: (*control.Controller).Undeafen,
			want:   &mumbleproto.UserState{Session: mumbleproto.Ptr(uint32(9)), SelfMute: mumbleproto.Ptr(false), SelfDeaf: mumbleproto.Ptr(false)},
		},
		{
			name:    "already undeafened",
			self:    state(),
			action:  (*control.Controller).Undeafen,
			wantErr: control.ErrAlreadyUndeafened,
		},
		{
			name:    "self unknown",
			action:  (*control.Controller).Mute,
			wantErr: control.ErrSelfUnknown,
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			c, conn := setup(test.self)
			err := test.action(c)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("error = %v, want %v", err, test.wantErr)
				}
				if len(conn.sent) != 0 {
					t.Errorf("sent %d messages on a rejected action", len(conn.sent))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff([]mumbleproto.Message{test.want}, conn.sent); diff != "" {
				t.Errorf("sent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
