package mumbleproto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendUint(b, num, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUint(b, num, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// Repeated scalars are written unpacked, matching the proto2 schema.
func appendUint32s(b []byte, num protowire.Number, vs []uint32) []byte {
	for _, v := range vs {
		b = appendUint(b, num, uint64(v))
	}
	return b
}

func appendOptUint32(b []byte, num protowire.Number, v *uint32) []byte {
	if v == nil {
		return b
	}
	return appendUint(b, num, uint64(*v))
}

func appendOptUint64(b []byte, num protowire.Number, v *uint64) []byte {
	if v == nil {
		return b
	}
	return appendUint(b, num, *v)
}

func appendOptInt32(b []byte, num protowire.Number, v *int32) []byte {
	if v == nil {
		return b
	}
	return appendInt32(b, num, *v)
}

func appendOptBool(b []byte, num protowire.Number, v *bool) []byte {
	if v == nil {
		return b
	}
	return appendBool(b, num, *v)
}

func appendOptString(b []byte, num protowire.Number, v *string) []byte {
	if v == nil {
		return b
	}
	return appendString(b, num, *v)
}

// fieldReader walks the fields of one encoded message. After next returns
// true exactly one value accessor (or skip) must be called.
type fieldReader struct {
	b   []byte
	num protowire.Number
	typ protowire.Type
	err error
}

func (r *fieldReader) next() bool {
	if r.err != nil || len(r.b) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(r.b)
	if n < 0 {
		r.err = protowire.ParseError(n)
		return false
	}
	r.num, r.typ = num, typ
	r.b = r.b[n:]
	return true
}

func (r *fieldReader) fail(n int) {
	if r.err == nil {
		r.err = fmt.Errorf("field %d: %w", r.num, protowire.ParseError(n))
	}
	r.b = nil
}

func (r *fieldReader) wrongType(want protowire.Type) {
	if r.err == nil {
		r.err = fmt.Errorf("field %d: wire type %d, want %d", r.num, r.typ, want)
	}
	r.b = nil
}

func (r *fieldReader) skip() {
	n := protowire.ConsumeFieldValue(r.num, r.typ, r.b)
	if n < 0 {
		r.fail(n)
		return
	}
	r.b = r.b[n:]
}

func (r *fieldReader) uint64() uint64 {
	if r.typ != protowire.VarintType {
		r.wrongType(protowire.VarintType)
		return 0
	}
	v, n := protowire.ConsumeVarint(r.b)
	if n < 0 {
		r.fail(n)
		return 0
	}
	r.b = r.b[n:]
	return v
}

func (r *fieldReader) uint32() uint32 { return uint32(r.uint64()) }

func (r *fieldReader) int32() int32 { return int32(r.uint64()) }

func (r *fieldReader) bool() bool { return protowire.DecodeBool(r.uint64()) }

func (r *fieldReader) bytes() []byte {
	if r.typ != protowire.BytesType {
		r.wrongType(protowire.BytesType)
		return nil
	}
	v, n := protowire.ConsumeBytes(r.b)
	if n < 0 {
		r.fail(n)
		return nil
	}
	r.b = r.b[n:]
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (r *fieldReader) string() string {
	return string(r.bytes())
}

func (r *fieldReader) float32() float32 {
	if r.typ != protowire.Fixed32Type {
		r.wrongType(protowire.Fixed32Type)
		return 0
	}
	v, n := protowire.ConsumeFixed32(r.b)
	if n < 0 {
		r.fail(n)
		return 0
	}
	r.b = r.b[n:]
	return math.Float32frombits(v)
}

// uint32s accepts both the unpacked and the packed encoding.
func (r *fieldReader) uint32s(dst []uint32) []uint32 {
	if r.typ != protowire.BytesType {
		return append(dst, r.uint32())
	}
	packed, n := protowire.ConsumeBytes(r.b)
	if n < 0 {
		r.fail(n)
		return dst
	}
	r.b = r.b[n:]
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			r.fail(m)
			return dst
		}
		dst = append(dst, uint32(v))
		packed = packed[m:]
	}
	return dst
}
