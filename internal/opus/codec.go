package opus

import (
	"encoding/binary"
	"fmt"

	"layeh.com/gopus"
)

const (
	SampleRate   = 48000
	Channels     = 1
	FrameSamples = SampleRate / 100
	FrameBytes   = FrameSamples * 2

	// MaxPacketSize bounds one encoded frame.
	MaxPacketSize = 4000
	// maxDecodeSamples is the longest Opus frame, 120 ms.
	maxDecodeSamples = SampleRate * 120 / 1000

	MinBitrate = 8000
	MaxBitrate = 96000

	packetsPerSecond = 100
	// Bytes on the wire per voice packet besides the Opus payload: IP and
	// UDP headers, the crypt header and the voice packet header.
	packetOverhead = 20 + 8 + 4 + 1 + 4
)

// BitrateForBandwidth derives an encoder bitrate from the server's
// bandwidth limit in bits per second.
func BitrateForBandwidth(maxBandwidth int) int {
	bitrate := maxBandwidth - packetOverhead*8*packetsPerSecond
	return min(max(bitrate, MinBitrate), MaxBitrate)
}

// Encoder turns 10 ms PCM frames into Opus packets.
type Encoder struct {
	enc     *gopus.Encoder
	samples []int16
}

// NewEncoder returns a voice encoder. A bitrate of zero keeps the codec
// default.
func NewEncoder(bitrate int) (*Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	e := &Encoder{enc: enc, samples: make([]int16, FrameSamples)}
	if bitrate > 0 {
		e.SetBitrate(bitrate)
	}
	return e, nil
}

// SetBitrate changes the target bitrate in bits per second.
func (e *Encoder) SetBitrate(bitrate int) {
	e.enc.SetBitrate(min(max(bitrate, MinBitrate), MaxBitrate))
}

// Encode encodes exactly one frame of PCM.
func (e *Encoder) Encode(pcm []byte) ([]byte, error) {
	if len(pcm) != FrameBytes {
		return nil, fmt.Errorf("encode: got %d bytes of pcm, want %d", len(pcm), FrameBytes)
	}
	BytesToSamples(e.samples, pcm)
	packet, err := e.enc.Encode(e.samples, FrameSamples, MaxPacketSize)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return packet, nil
}

// Decoder turns Opus packets from one speaker back into PCM. Opus decoding
// is stateful, so each speaker needs its own Decoder.
type Decoder struct {
	dec *gopus.Decoder
}

func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode returns the PCM carried by packet.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	samples, err := d.dec.Decode(packet, maxDecodeSamples, false)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return SamplesToBytes(samples), nil
}

// BytesToSamples reads little-endian PCM from src into dst.
func BytesToSamples(dst []int16, src []byte) {
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[2*i:]))
	}
}

// SamplesToBytes encodes samples as little-endian PCM.
func SamplesToBytes(samples []int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

// Scale multiplies every sample of pcm by gain in place, saturating at the
// int16 range.
func Scale(pcm []byte, gain float64) {
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
		v := int(s * gain)
		v = min(max(v, -32768), 32767)
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(v)))
	}
}
