package connection

import (
	"log/slog"
	"sync"

	"github.com/glizzus/mumble-voice/internal/mumbleproto"
)

// Handler receives one decoded control message.
type Handler func(mumbleproto.Message)

// TunnelHandler receives the raw payload of one UDPTunnel frame.
type TunnelHandler func(payload []byte)

// Subscriber is the capability components use to observe the connection.
type Subscriber interface {
	Subscribe(kind mumbleproto.Kind, fn Handler)
	SubscribeTunnel(fn TunnelHandler)
}

// Bus fans decoded messages out to subscribers. Handlers for a kind run in
// the order they subscribed, on the goroutine that publishes. Messages
// published before a handler subscribes are not replayed.
type Bus struct {
	mu     sync.RWMutex
	byKind map[mumbleproto.Kind][]Handler
	tunnel []TunnelHandler
	logger *slog.Logger
}

var _ Subscriber = (*Bus)(nil)

// NewBus returns an empty bus. A handler panic is logged to logger and does
// not stop delivery to later handlers.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		byKind: make(map[mumbleproto.Kind][]Handler),
		logger: logger,
	}
}

func (b *Bus) Subscribe(kind mumbleproto.Kind, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byKind[kind] = append(b.byKind[kind], fn)
}

func (b *Bus) SubscribeTunnel(fn TunnelHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tunnel = append(b.tunnel, fn)
}

// Publish delivers msg to every handler subscribed to its kind.
func (b *Bus) Publish(msg mumbleproto.Message) {
	b.mu.RLock()
	handlers := b.byKind[msg.Kind()]
	b.mu.RUnlock()

	for _, fn := range handlers {
		b.call(msg.Kind().String(), func() { fn(msg) })
	}
}

// PublishTunnel delivers a tunnel payload to every tunnel handler.
func (b *Bus) PublishTunnel(payload []byte) {
	b.mu.RLock()
	handlers := b.tunnel
	b.mu.RUnlock()

	for _, fn := range handlers {
		b.call("UDPTunnel", func() { fn(payload) })
	}
}

func (b *Bus) call(topic string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked", "topic", topic, "panic", r)
		}
	}()
	fn()
}

// On subscribes fn to messages of type T.
func On[T mumbleproto.Message](s Subscriber, fn func(T)) {
	var zero T
	s.Subscribe(zero.Kind(), func(m mumbleproto.Message) {
		if typed, ok := m.(T); ok {
			fn(typed)
		}
	})
}
