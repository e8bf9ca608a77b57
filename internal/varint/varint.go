// Package varint implements the variable-length integer format used inside
// Mumble voice packets. It is unrelated to protobuf varints.
//
// The leading bits of the first byte select the size class:
//
//	0xxxxxxx                 7-bit positive number
//	10xxxxxx + 1 byte        14-bit positive number
//	110xxxxx + 2 bytes       21-bit positive number
//	1110xxxx + 3 bytes       28-bit positive number
//	111100__ + 4 bytes       32-bit positive number
//	111101__ + 8 bytes       64-bit number
//	111110__ + varint        negative recursive varint
//	111111xx                 byte-inverted negative two bit number (~xx)
package varint

import (
	"encoding/binary"
	"errors"
)

// MaxLen is the longest encoding Append can produce.
const MaxLen = 9

// ErrShortBuffer is returned when the input ends inside an encoded value.
var ErrShortBuffer = errors.New("varint: buffer too short")

// Encode returns the encoding of v.
func Encode(v int64) []byte {
	return Append(make([]byte, 0, Size(v)), v)
}

// Append appends the encoding of v to dst and returns the extended slice.
func Append(dst []byte, v int64) []byte {
	if v < 0 {
		inv := ^v
		if inv <= 0x3 {
			return append(dst, 0xFC|byte(inv))
		}
		if inv < 0x100000000 {
			return appendPositive(append(dst, 0xF8), uint64(inv))
		}
		// Large negatives travel as a raw two's-complement 64-bit value.
		dst = append(dst, 0xF4)
		return binary.BigEndian.AppendUint64(dst, uint64(v))
	}
	return appendPositive(dst, uint64(v))
}

func appendPositive(dst []byte, u uint64) []byte {
	switch {
	case u < 0x80:
		return append(dst, byte(u))
	case u < 0x4000:
		return append(dst, byte(u>>8)|0x80, byte(u))
	case u < 0x200000:
		return append(dst, byte(u>>16)|0xC0, byte(u>>8), byte(u))
	case u < 0x10000000:
		return append(dst, byte(u>>24)|0xE0, byte(u>>16), byte(u>>8), byte(u))
	case u < 0x100000000:
		dst = append(dst, 0xF0)
		return binary.BigEndian.AppendUint32(dst, uint32(u))
	default:
		dst = append(dst, 0xF4)
		return binary.BigEndian.AppendUint64(dst, u)
	}
}

// Size reports how many bytes Encode(v) produces.
func Size(v int64) int {
	if v < 0 {
		inv := ^v
		switch {
		case inv <= 0x3:
			return 1
		case inv < 0x100000000:
			return 1 + positiveSize(uint64(inv))
		default:
			return 9
		}
	}
	return positiveSize(uint64(v))
}

func positiveSize(u uint64) int {
	switch {
	case u < 0x80:
		return 1
	case u < 0x4000:
		return 2
	case u < 0x200000:
		return 3
	case u < 0x10000000:
		return 4
	case u < 0x100000000:
		return 5
	default:
		return 9
	}
}

// Decode reads one value from the front of b and reports how many bytes it
// consumed so the caller can advance its cursor.
func Decode(b []byte) (value int64, n int, err error) {
	if len(b) == 0 {
		return 0, 0, ErrShortBuffer
	}

	lead := b[0]
	switch {
	case lead < 0x80:
		return int64(lead), 1, nil
	case lead < 0xC0:
		if len(b) < 2 {
			return 0, 0, ErrShortBuffer
		}
		return int64(lead&0x3F)<<8 | int64(b[1]), 2, nil
	case lead < 0xE0:
		if len(b) < 3 {
			return 0, 0, ErrShortBuffer
		}
		return int64(lead&0x1F)<<16 | int64(b[1])<<8 | int64(b[2]), 3, nil
	case lead < 0xF0:
		if len(b) < 4 {
			return 0, 0, ErrShortBuffer
		}
		return int64(lead&0x0F)<<24 | int64(b[1])<<16 | int64(b[2])<<8 | int64(b[3]), 4, nil
	case lead < 0xF4:
		if len(b) < 5 {
			return 0, 0, ErrShortBuffer
		}
		return int64(binary.BigEndian.Uint32(b[1:5])), 5, nil
	case lead < 0xF8:
		if len(b) < 9 {
			return 0, 0, ErrShortBuffer
		}
		return int64(binary.BigEndian.Uint64(b[1:9])), 9, nil
	case lead < 0xFC:
		inner, m, err := Decode(b[1:])
		if err != nil {
			return 0, 0, err
		}
		return ^inner, m + 1, nil
	default:
		return ^int64(lead & 0x03), 1, nil
	}
}

// DecodeUint is Decode for fields that are unsigned on the wire, such as
// session ids and sequence numbers.
func DecodeUint(b []byte) (uint64, int, error) {
	v, n, err := Decode(b)
	return uint64(v), n, err
}
