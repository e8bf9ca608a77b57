// Package tunnel parses and builds the voice packets carried inside
// UDPTunnel frames on the control connection.
//
// A packet is one control byte holding the audio type in its top three bits
// and the routing target in the low five, followed by protocol varints for
// the sender session, the sequence number and a header whose low 13 bits are
// the payload length and whose bit 13 marks the last frame of a burst.
package tunnel

import (
	"errors"
	"fmt"

	"github.com/glizzus/mumble-voice/internal/varint"
)

// AudioType is the codec tag in the top three bits of the control byte.
type AudioType uint8

const (
	AudioCELTAlpha AudioType = 0
	AudioPing      AudioType = 1
	AudioSpeex     AudioType = 2
	AudioCELTBeta  AudioType = 3
	AudioOpus      AudioType = 4
)

func (t AudioType) String() string {
	switch t {
	case AudioCELTAlpha:
		return "celt-alpha"
	case AudioPing:
		return "ping"
	case AudioSpeex:
		return "speex"
	case AudioCELTBeta:
		return "celt-beta"
	case AudioOpus:
		return "opus"
	default:
		return fmt.Sprintf("AudioType(%d)", uint8(t))
	}
}

const (
	// TargetNormal routes audio to the sender's current channel.
	TargetNormal uint8 = 0
	// TargetLoopback is echoed back to the sender by the server.
	TargetLoopback uint8 = 31

	lengthMask     = 0x1FFF
	terminatorFlag = 0x2000

	// MaxPayloadSize is the largest payload the 13-bit length field holds.
	MaxPayloadSize = lengthMask
)

var (
	// ErrUnsupportedCodec is returned for audio types other than Opus and
	// ping. Callers log and drop the packet.
	ErrUnsupportedCodec = errors.New("unsupported voice codec")
	// ErrTruncated is returned when the packet ends before its declared
	// payload.
	ErrTruncated = errors.New("truncated voice packet")
	// ErrFrameTooLarge is returned when a payload does not fit the 13-bit
	// length field.
	ErrFrameTooLarge = errors.New("voice payload exceeds 8191 bytes")
)

// AudioFrame is one decoded Opus packet from a speaking session.
type AudioFrame struct {
	Target     uint8
	Sender     uint32
	Sequence   uint64
	Terminator bool
	Payload    []byte
}

// Packet is the result of Parse. Audio is only filled for AudioOpus.
type Packet struct {
	Type   AudioType
	Target uint8
	Audio  AudioFrame
}

// IsPing reports whether the packet is a tunnel ping, which carries nothing
// to decode.
func (p Packet) IsPing() bool {
	return p.Type == AudioPing
}

// Parse decodes a tunnel payload. The returned frame payload does not alias
// p.
func Parse(p []byte) (Packet, error) {
	if len(p) == 0 {
		return Packet{}, ErrTruncated
	}
	pkt := Packet{
		Type:   AudioType(p[0] >> 5),
		Target: p[0] & 0x1F,
	}
	switch pkt.Type {
	case AudioPing:
		return pkt, nil
	case AudioOpus:
	default:
		return pkt, fmt.Errorf("%w: %s", ErrUnsupportedCodec, pkt.Type)
	}

	rest := p[1:]
	sender, n, err := varint.DecodeUint(rest)
	if err != nil {
		return pkt, fmt.Errorf("sender: %w", errors.Join(ErrTruncated, err))
	}
	rest = rest[n:]

	seq, n, err := varint.DecodeUint(rest)
	if err != nil {
		return pkt, fmt.Errorf("sequence: %w", errors.Join(ErrTruncated, err))
	}
	rest = rest[n:]

	header, n, err := varint.DecodeUint(rest)
	if err != nil {
		return pkt, fmt.Errorf("opus header: %w", errors.Join(ErrTruncated, err))
	}
	rest = rest[n:]

	size := int(header & lengthMask)
	if len(rest) < size {
		return pkt, fmt.Errorf("%w: header declares %d bytes, %d remain", ErrTruncated, size, len(rest))
	}

	pkt.Audio = AudioFrame{
		Target:     pkt.Target,
		Sender:     uint32(sender),
		Sequence:   seq,
		Terminator: header&terminatorFlag != 0,
		Payload:    append([]byte(nil), rest[:size]...),
	}
	return pkt, nil
}

// VoicePacket is an outbound Opus packet. The server fills in the sender.
type VoicePacket struct {
	Target     uint8
	Sequence   uint64
	Terminator bool
	Payload    []byte
}

// Marshal encodes the packet in the tunnel layout with the audio type fixed
// to Opus.
func (v VoicePacket) Marshal() ([]byte, error) {
	if len(v.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(v.Payload))
	}
	header := int64(len(v.Payload))
	if v.Terminator {
		header |= terminatorFlag
	}

	b := make([]byte, 0, 1+varint.Size(int64(v.Sequence))+varint.Size(header)+len(v.Payload))
	b = append(b, byte(AudioOpus)<<5|v.Target&0x1F)
	b = varint.Append(b, int64(v.Sequence))
	b = varint.Append(b, header)
	return append(b, v.Payload...), nil
}
