// Package control changes the bot's own state on the server: its channel
// and its self mute and deafen flags.
package control

import (
	"errors"
	"fmt"

	"github.com/glizzus/mumble-voice/internal/directory"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
)

var (
	ErrSelfUnknown       = errors.New("own session not known yet")
	ErrAlreadyInChannel  = errors.New("already in channel")
	ErrChannelNotFound   = errors.New("channel not found")
	ErrAlreadyMuted      = errors.New("already muted")
	ErrAlreadyUnmuted    = errors.New("already unmuted")
	ErrAlreadyDeafened   = errors.New("already deafened")
	ErrAlreadyUndeafened = errors.New("already undeafened")
)

// MessageSender writes a control message to the server.
type MessageSender interface {
	Send(msg mumbleproto.Message) error
}

// Controller checks each action against the directories before sending it,
// so a no-op request is reported instead of sent.
type Controller struct {
	conn     MessageSender
	users    *directory.Users
	channels *directory.Channels
}

func New(conn MessageSender, users *directory.Users, channels *directory.Channels) *Controller {
	return &Controller{conn: conn, users: users, channels: channels}
}

func (c *Controller) self() (directory.User, error) {
	self, ok := c.users.Self()
	if !ok {
		return directory.User{}, ErrSelfUnknown
	}
	return self, nil
}

func (c *Controller) send(self directory.User, apply func(*mumbleproto.UserState)) error {
	msg := &mumbleproto.UserState{Session: mumbleproto.Ptr(self.Session)}
	apply(msg)
	if err := c.conn.Send(msg); err != nil {
		return fmt.Errorf("update own state: %w", err)
	}
	return nil
}

// JoinChannel moves the bot to channel id.
func (c *Controller) JoinChannel(id uint32) error {
	self, err := c.self()
	if err != nil {
		return err
	}
	if self.ChannelID == id {
		return ErrAlreadyInChannel
	}
	if _, ok := c.channels.Get(id); !ok {
		return fmt.Errorf("%w: %d", ErrChannelNotFound, id)
	}
	return c.send(self, func(m *mumbleproto.UserState) { m.ChannelID = mumbleproto.Ptr(id) })
}

// JoinChannelByName looks the channel up by exact name and joins it.
func (c *Controller) JoinChannelByName(name string) error {
	ch, ok := c.channels.FindByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrChannelNotFound, name)
	}
	return c.JoinChannel(ch.ID)
}

func (c *Controller) Mute() error {
	self, err := c.self()
	if err != nil {
		return err
	}
	if self.SelfMute {
		return ErrAlreadyMuted
	}
	return c.send(self, func(m *mumbleproto.UserState) { m.SelfMute = mumbleproto.Ptr(true) })
}

func (c *Controller) Unmute() error {
	self, err := c.self()
	if err != nil {
		return err
	}
	if !self.SelfMute {
		return ErrAlreadyUnmuted
	}
	return c.send(self, func(m *mumbleproto.UserState) { m.SelfMute = mumbleproto.Ptr(false) })
}

// Deafen also mutes, as the server would.
func (c *Controller) Deafen() error {
	self, err := c.self()
	if err != nil {
		return err
	}
	if self.SelfDeaf {
		return ErrAlreadyDeafened
	}
	return c.send(self, func(m *mumbleproto.UserState) {
		m.SelfDeaf = mumbleproto.Ptr(true)
		m.SelfMute = mumbleproto.Ptr(true)
	})
}

// Undeafen also unmutes.
func (c *Controller) Undeafen() error {
	self, err := c.self()
	if err != nil {
		return err
	}
	if !self.SelfDeaf {
		return ErrAlreadyUndeafened
	}
	return c.send(self, func(m *mumbleproto.UserState) {
		m.SelfDeaf = mumbleproto.Ptr(false)
		m.SelfMute = mumbleproto.Ptr(false)
	})
}
