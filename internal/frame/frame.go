// Package frame implements the length-prefixed framing of the Mumble TCP
// control channel.
//
// Every frame is a 6-byte header followed by its payload:
//
//	Type    [2 bytes] - message type id (big-endian)
//	Length  [4 bytes] - payload length (big-endian)
//
// Frames of type TypeTunnel carry an audio packet that is not a protobuf
// message; this package hands those bytes through untouched.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 6

	// TypeTunnel is the reserved type id for tunnelled voice packets.
	TypeTunnel uint16 = 1

	// MaxPayloadSize bounds a single frame. The reference server refuses
	// anything larger, so a bigger declared length means a corrupt stream.
	MaxPayloadSize = 8 * 1024 * 1024
)

// ErrFrameTooLarge is returned when a frame payload exceeds MaxPayloadSize.
var ErrFrameTooLarge = errors.New("frame payload exceeds maximum size")

// Frame is one decoded unit of the control channel.
type Frame struct {
	Type    uint16
	Payload []byte
}

// Encode returns the header followed by payload.
func Encode(typ uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, HeaderSize+len(payload))
	PutHeader(buf, typ, len(payload))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// PutHeader writes a frame header into the first HeaderSize bytes of dst.
func PutHeader(dst []byte, typ uint16, length int) {
	binary.BigEndian.PutUint16(dst[0:2], typ)
	binary.BigEndian.PutUint32(dst[2:6], uint32(length))
}

// Decoder reassembles frames from arbitrary chunks of a byte stream.
// A frame is only emitted once all of its bytes have arrived; a partial
// frame stays buffered until the next Feed.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// Feed appends p to the internal buffer and returns every complete frame it
// now holds, in stream order. Returned payloads do not alias p or the
// decoder's buffer.
func (d *Decoder) Feed(p []byte) ([]Frame, error) {
	d.buf = append(d.buf, p...)

	var frames []Frame
	off := 0
	for len(d.buf)-off >= HeaderSize {
		typ := binary.BigEndian.Uint16(d.buf[off : off+2])
		length := binary.BigEndian.Uint32(d.buf[off+2 : off+6])
		if length > MaxPayloadSize {
			d.buf = nil
			return frames, fmt.Errorf("%w: declared %d bytes for type %d", ErrFrameTooLarge, length, typ)
		}
		end := off + HeaderSize + int(length)
		if len(d.buf) < end {
			break
		}
		payload := make([]byte, length)
		copy(payload, d.buf[off+HeaderSize:end])
		frames = append(frames, Frame{Type: typ, Payload: payload})
		off = end
	}

	// Compact so the buffer does not grow without bound on a long stream.
	if off > 0 {
		n := copy(d.buf, d.buf[off:])
		d.buf = d.buf[:n]
	}
	return frames, nil
}

// Buffered reports how many bytes of an incomplete frame are being held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
