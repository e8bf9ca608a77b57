package directory_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/mumble-voice/internal/connection"
	"github.com/glizzus/mumble-voice/internal/directory"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func u32(v uint32) *uint32 { return mumbleproto.Ptr(v) }

func TestUsers(t *testing.T) {
	bus := connection.NewBus(discard)
	users := directory.NewUsers("bot")
	users.Attach(bus)

	bus.Publish(&mumbleproto.UserState{Session: u32(1), Name: mumbleproto.Ptr("Alice"), ChannelID: u32(0)})
	bus.Publish(&mumbleproto.UserState{Session: u32(9), Name: mumbleproto.Ptr("bot"), ChannelID: u32(0)})
	bus.Publish(&mumbleproto.UserState{Session: u32(4), Name: mumbleproto.Ptr("Bob"), ChannelID: u32(2)})

	// A partial update only changes the fields it carries.
	bus.Publish(&mumbleproto.UserState{Session: u32(1), ChannelID: u32(2), SelfMute: mumbleproto.Ptr(true)})

	want := []directory.User{
		{Session: 1, Name: "Alice", ChannelID: 2, SelfMute: true},
		{Session: 4, Name: "Bob", ChannelID: 2},
		{Session: 9, Name: "bot"},
	}
	if diff := cmp.Diff(want, users.All()); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}

	if got, ok := users.FindByName("alice"); !ok || got.Session != 1 {
		t.Errorf("FindByName(alice) = %+v, %v", got, ok)
	}
	if _, ok := users.FindByName("carol"); ok {
		t.Error("FindByName(carol) found a user")
	}

	bus.Publish(&mumbleproto.UserRemove{Session: 4})
	if _, ok := users.Get(4); ok {
		t.Error("user 4 still present after UserRemove")
	}
	if users.Len() != 2 {
		t.Errorf("Len() = %d, want 2", users.Len())
	}
}

func TestUsersSelf(t *testing.T) {
	bus := connection.NewBus(discard)
	users := directory.NewUsers("bot")
	users.Attach(bus)

	if _, ok := users.SelfID(); ok {
		t.Fatal("SelfID known before any message")
	}

	bus.Publish(&mumbleproto.UserState{Session: u32(3), Name: mumbleproto.Ptr("bot"), ChannelID: u32(5)})
	if id, ok := users.SelfID(); !ok || id != 3 {
		t.Errorf("SelfID from username = %d, %v; want 3", id, ok)
	}

	// ServerSync is authoritative.
	bus.Publish(&mumbleproto.UserState{Session: u32(7), Name: mumbleproto.Ptr("bot2"), ChannelID: u32(1)})
	bus.Publish(&mumbleproto.ServerSync{Session: u32(7)})
	self, ok := users.Self()
	if !ok || self.Session != 7 || self.ChannelID != 1 {
		t.Errorf("Self() = %+v, %v", self, ok)
	}
}

func TestUsersIgnoreStateWithoutSession(t *testing.T) {
	users := directory.NewUsers("bot")
	users.Apply(&mumbleproto.UserState{Name: mumbleproto.Ptr("ghost")})
	if users.Len() != 0 {
		t.Errorf("Len() = %d, want 0", users.Len())
	}
}

func TestChannels(t *testing.T) {
	bus := connection.NewBus(discard)
	channels := directory.NewChannels()
	channels.Attach(bus)

	bus.Publish(&mumbleproto.ChannelState{ChannelID: u32(0), Name: mumbleproto.Ptr("Root")})
	bus.Publish(&mumbleproto.ChannelState{ChannelID: u32(3), Parent: u32(0), Name: mumbleproto.Ptr("Lobby")})
	bus.Publish(&mumbleproto.ChannelState{ChannelID: u32(2), Parent: u32(0), Name: mumbleproto.Ptr("AFK")})
	bus.Publish(&mumbleproto.ChannelState{ChannelID: u32(3), Description: mumbleproto.Ptr("talk here")})

	want := []directory.Channel{
		{ID: 0, Name: "Root"},
		{ID: 2, Name: "AFK"},
		{ID: 3, Name: "Lobby", Description: "talk here"},
	}
	if diff := cmp.Diff(want, channels.All()); diff != "" {
		t.Errorf("channels mismatch (-want +got):\n%s", diff)
	}

	if ch, ok := channels.FindByName("Lobby"); !ok || ch.ID != 3 {
		t.Errorf("FindByName(Lobby) = %+v, %v", ch, ok)
	}
	if _, ok := channels.FindByName("lobby"); ok {
		t.Error("channel names should match exactly")
	}

	bus.Publish(&mumbleproto.ChannelRemove{ChannelID: 2})
	if _, ok := channels.Get(2); ok {
		t.Error("channel 2 still present after ChannelRemove")
	}
}
