package frame_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/mumble-voice/internal/frame"
)

func mustEncode(t *testing.T, typ uint16, payload []byte) []byte {
	t.Helper()
	b, err := frame.Encode(typ, payload)
	if err != nil {
		t.Fatalf("Encode(%d) returned error: %v", typ, err)
	}
	return b
}

func TestEncodeHeader(t *testing.T) {
	got := mustEncode(t, 11, []byte("hi"))
	want := []byte{0x00, 0x0B, 0x00, 0x00, 0x00, 0x02, 'h', 'i'}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		typ     uint16
		payload []byte
	}{
		{name: "empty payload", typ: 3, payload: []byte{}},
		{name: "tunnel payload", typ: frame.TypeTunnel, payload: []byte{0x80, 0x01, 0x05, 0x20, 0x05, 1, 2, 3, 4, 5}},
		{name: "large payload", typ: 9, payload: bytes.Repeat([]byte{0xAB}, 70000)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d frame.Decoder
			frames, err := d.Feed(mustEncode(t, tc.typ, tc.payload))
			if err != nil {
				t.Fatalf("Feed returned error: %v", err)
			}
			want := []frame.Frame{{Type: tc.typ, Payload: tc.payload}}
			if diff := cmp.Diff(want, frames); diff != "" {
				t.Errorf("Feed mismatch (-want +got):\n%s", diff)
			}
			if d.Buffered() != 0 {
				t.Errorf("Buffered() = %d after a complete frame, want 0", d.Buffered())
			}
		})
	}
}

func TestDecodeSplitReads(t *testing.T) {
	encoded := mustEncode(t, 7, []byte("channel state payload"))
	want := []frame.Frame{{Type: 7, Payload: []byte("channel state payload")}}

	for split := 1; split < len(encoded); split++ {
		var d frame.Decoder
		first, err := d.Feed(encoded[:split])
		if err != nil {
			t.Fatalf("split %d: first Feed returned error: %v", split, err)
		}
		if len(first) != 0 {
			t.Fatalf("split %d: emitted %d frames from a partial read", split, len(first))
		}
		if d.Buffered() != split {
			t.Fatalf("split %d: Buffered() = %d", split, d.Buffered())
		}
		second, err := d.Feed(encoded[split:])
		if err != nil {
			t.Fatalf("split %d: second Feed returned error: %v", split, err)
		}
		if diff := cmp.Diff(want, second); diff != "" {
			t.Fatalf("split %d: mismatch (-want +got):\n%s", split, diff)
		}
	}
}

func TestDecodeConcatenatedFrames(t *testing.T) {
	stream := append(mustEncode(t, 9, []byte("first")), mustEncode(t, 11, []byte("second"))...)
	stream = append(stream, mustEncode(t, 3, nil)[:4]...)

	var d frame.Decoder
	frames, err := d.Feed(stream)
	if err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	want := []frame.Frame{
		{Type: 9, Payload: []byte("first")},
		{Type: 11, Payload: []byte("second")},
	}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Errorf("Feed mismatch (-want +got):\n%s", diff)
	}
	if d.Buffered() != 4 {
		t.Errorf("Buffered() = %d, want 4 trailing header bytes", d.Buffered())
	}
}

func TestDecodePayloadDoesNotAliasInput(t *testing.T) {
	encoded := mustEncode(t, 11, []byte("abc"))
	var d frame.Decoder
	frames, err := d.Feed(encoded)
	if err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	encoded[frame.HeaderSize] = 'z'
	if string(frames[0].Payload) != "abc" {
		t.Errorf("payload changed with the input buffer: %q", frames[0].Payload)
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	header := make([]byte, frame.HeaderSize)
	frame.PutHeader(header, 9, frame.MaxPayloadSize+1)

	var d frame.Decoder
	if _, err := d.Feed(header); !errors.Is(err, frame.ErrFrameTooLarge) {
		t.Errorf("Feed error = %v, want ErrFrameTooLarge", err)
	}
}
