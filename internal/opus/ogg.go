package opus

import (
	"errors"
	"io"

	"github.com/jonas747/ogg"
)

// PacketDecoder decodes one Opus packet to PCM. *Decoder implements it.
type PacketDecoder interface {
	Decode(packet []byte) ([]byte, error)
}

// oggHeaderPackets is the OpusHead and OpusTags pair that starts every
// Ogg Opus stream.
const oggHeaderPackets = 2

// DecodeOgg demuxes an Ogg Opus stream from r, decodes every audio packet
// with dec and returns the PCM. Closing the reader stops decoding; it does
// not close r.
func DecodeOgg(r io.Reader, dec PacketDecoder) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()

		decoder := ogg.NewPacketDecoder(ogg.NewDecoder(r))

		skip := oggHeaderPackets
		for {
			packet, _, err := decoder.Decode()
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					pw.CloseWithError(err)
				}
				return
			}
			if skip > 0 {
				skip--
				continue
			}

			pcm, err := dec.Decode(packet)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if _, err := pw.Write(pcm); err != nil {
				return
			}
		}
	}()

	return pr
}
