package directory

import (
	"sync"

	"github.com/glizzus/mumble-voice/internal/connection"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
	"github.com/glizzus/mumble-voice/internal/util"
)

type Channel struct {
	ID          uint32
	Parent      uint32
	Name        string
	Description string
	Temporary   bool
	Position    int32
	MaxUsers    uint32
}

// Channels is safe for concurrent use.
type Channels struct {
	mu       sync.RWMutex
	channels map[uint32]Channel
}

func NewChannels() *Channels {
	return &Channels{channels: make(map[uint32]Channel)}
}

// Attach subscribes the directory to ChannelState and ChannelRemove.
func (c *Channels) Attach(s connection.Subscriber) {
	connection.On(s, c.Apply)
	connection.On(s, func(m *mumbleproto.ChannelRemove) { c.Remove(m.ChannelID) })
}

// Apply merges the fields present in m into the channel's entry.
func (c *Channels) Apply(m *mumbleproto.ChannelState) {
	if m.ChannelID == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.channels[*m.ChannelID]
	if !ok {
		ch.ID = *m.ChannelID
	}
	if m.Parent != nil {
		ch.Parent = *m.Parent
	}
	if m.Name != nil {
		ch.Name = *m.Name
	}
	if m.Description != nil {
		ch.Description = *m.Description
	}
	if m.Temporary != nil {
		ch.Temporary = *m.Temporary
	}
	if m.Position != nil {
		ch.Position = *m.Position
	}
	if m.MaxUsers != nil {
		ch.MaxUsers = *m.MaxUsers
	}
	c.channels[ch.ID] = ch
}

func (c *Channels) Remove(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, id)
}

func (c *Channels) Get(id uint32) (Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.channels[id]
	return ch, ok
}

// FindByName matches names exactly.
func (c *Channels) FindByName(name string) (Channel, bool) {
	return util.FindFirst(c.All(), func(ch Channel) bool { return ch.Name == name })
}

// All returns every channel ordered by id.
func (c *Channels) All() []Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return util.SortedValues(c.channels)
}
