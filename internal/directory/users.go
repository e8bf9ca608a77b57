// Package directory keeps local snapshots of the users and channels on the
// server, updated from the connection's message bus.
package directory

import (
	"strings"
	"sync"

	"github.com/glizzus/mumble-voice/internal/connection"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
	"github.com/glizzus/mumble-voice/internal/util"
)

// User is the last known state of a connected session.
type User struct {
	Session   uint32
	UserID    *uint32
	Name      string
	ChannelID uint32
	Mute      bool
	Deaf      bool
	Suppress  bool
	SelfMute  bool
	SelfDeaf  bool
	Recording bool
	Comment   string
}

// Users is safe for concurrent use.
type Users struct {
	username string

	mu    sync.RWMutex
	users map[uint32]User
	// self comes from ServerSync, named from a UserState carrying the
	// configured username.
	self, named       uint32
	hasSelf, hasNamed bool
}

// NewUsers returns an empty directory. A UserState whose name equals
// username marks the bot's own session until ServerSync confirms it.
func NewUsers(username string) *Users {
	return &Users{username: username, users: make(map[uint32]User)}
}

// Attach subscribes the directory to UserState, UserRemove and ServerSync.
// Call it before Connect so the initial state dump is not missed.
func (u *Users) Attach(s connection.Subscriber) {
	connection.On(s, u.Apply)
	connection.On(s, func(m *mumbleproto.UserRemove) { u.Remove(m.Session) })
	connection.On(s, func(m *mumbleproto.ServerSync) {
		if m.Session != nil {
			u.SetSelf(*m.Session)
		}
	})
}

// Apply merges the fields present in m into the user's entry, creating it if
// needed.
func (u *Users) Apply(m *mumbleproto.UserState) {
	if m.Session == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[*m.Session]
	if !ok {
		user.Session = *m.Session
	}
	if m.Name != nil {
		user.Name = *m.Name
	}
	if m.UserID != nil {
		id := *m.UserID
		user.UserID = &id
	}
	if m.ChannelID != nil {
		user.ChannelID = *m.ChannelID
	}
	mergeBool(&user.Mute, m.Mute)
	mergeBool(&user.Deaf, m.Deaf)
	mergeBool(&user.Suppress, m.Suppress)
	mergeBool(&user.SelfMute, m.SelfMute)
	mergeBool(&user.SelfDeaf, m.SelfDeaf)
	mergeBool(&user.Recording, m.Recording)
	if m.Comment != nil {
		user.Comment = *m.Comment
	}
	u.users[user.Session] = user

	if u.username != "" && user.Name == u.username {
		u.named, u.hasNamed = user.Session, true
	}
}

func mergeBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (u *Users) Remove(session uint32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.users, session)
	if u.hasNamed && u.named == session {
		u.hasNamed = false
	}
}

// SetSelf records the bot's own session id.
func (u *Users) SetSelf(session uint32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.self = session
	u.hasSelf = true
}

// SelfID returns the bot's session id, if known.
func (u *Users) SelfID() (uint32, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.hasSelf {
		return u.self, true
	}
	return u.named, u.hasNamed
}

// Self returns the bot's own entry.
func (u *Users) Self() (User, bool) {
	id, ok := u.SelfID()
	if !ok {
		return User{}, false
	}
	return u.Get(id)
}

func (u *Users) Get(session uint32) (User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.users[session]
	return user, ok
}

// FindByName matches names case-insensitively.
func (u *Users) FindByName(name string) (User, bool) {
	return util.FindFirst(u.All(), func(user User) bool {
		return strings.EqualFold(user.Name, name)
	})
}

// All returns every user ordered by session id.
func (u *Users) All() []User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return util.SortedValues(u.users)
}

func (u *Users) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.users)
}
