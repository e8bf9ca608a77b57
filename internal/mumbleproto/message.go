// Package mumbleproto encodes and decodes the protobuf messages exchanged on
// the Mumble control channel.
//
// The message set is closed: every type the client understands is a struct
// in this package, and Unmarshal resolves a frame's type id to one of them
// with an exhaustive switch. Type ids the client does not model decode to
// *Unknown so callers can log and drop them.
package mumbleproto

import (
	"fmt"
)

// Message is implemented by every protocol message in this package.
type Message interface {
	Kind() Kind
	appendTo(b []byte) []byte
	unmarshal(b []byte) error
}

// Marshal encodes m into its protobuf wire form.
func Marshal(m Message) []byte {
	return m.appendTo(nil)
}

// Unmarshal decodes payload as the message registered for typ.
func Unmarshal(typ uint16, payload []byte) (Message, error) {
	m := newMessage(Kind(typ))
	if err := m.unmarshal(payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", Kind(typ), err)
	}
	return m, nil
}

func newMessage(k Kind) Message {
	switch k {
	case KindVersion:
		return &Version{}
	case KindAuthenticate:
		return &Authenticate{}
	case KindPing:
		return &Ping{}
	case KindReject:
		return &Reject{}
	case KindServerSync:
		return &ServerSync{}
	case KindChannelRemove:
		return &ChannelRemove{}
	case KindChannelState:
		return &ChannelState{}
	case KindUserRemove:
		return &UserRemove{}
	case KindUserState:
		return &UserState{}
	case KindTextMessage:
		return &TextMessage{}
	case KindPermissionDenied:
		return &PermissionDenied{}
	case KindCryptSetup:
		return &CryptSetup{}
	case KindCodecVersion:
		return &CodecVersion{}
	case KindServerConfig:
		return &ServerConfig{}
	default:
		return &Unknown{Type: k}
	}
}

// Ptr returns a pointer to v, for filling optional fields.
func Ptr[T any](v T) *T {
	return &v
}

// Unknown holds a message whose type id has no struct in this package.
type Unknown struct {
	Type Kind
	Raw  []byte
}

func (m *Unknown) Kind() Kind { return m.Type }

func (m *Unknown) appendTo(b []byte) []byte { return append(b, m.Raw...) }

func (m *Unknown) unmarshal(b []byte) error {
	m.Raw = append([]byte(nil), b...)
	return nil
}
