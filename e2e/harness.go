// Package e2e wires a complete bot session against an in-process server.
package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/mumble-voice/internal/capture"
	"github.com/glizzus/mumble-voice/internal/connection"
	"github.com/glizzus/mumble-voice/internal/connection/connectiontest"
	"github.com/glizzus/mumble-voice/internal/directory"
	"github.com/glizzus/mumble-voice/internal/dispatch"
	"github.com/glizzus/mumble-voice/internal/frame"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
	"github.com/glizzus/mumble-voice/internal/pipeline"
	"github.com/glizzus/mumble-voice/internal/player"
	"github.com/glizzus/mumble-voice/internal/runner"
	"github.com/glizzus/mumble-voice/internal/text"
	"github.com/glizzus/mumble-voice/internal/tunnel"
	"github.com/glizzus/mumble-voice/internal/varint"
)

const (
	BotName    = "bot"
	BotSession = uint32(9)
)

// SequentialIDs hands out "job-1", "job-2", ...
type SequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (g *SequentialIDs) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("job-%d", g.n), nil
}

// Harness is a connected bot. Voice is passed through unchanged: the
// decoder and encoder copy their input, so a burst of PCM-sized packets
// comes back out of the dispatch stream byte for byte.
type Harness struct {
	Server     *connectiontest.Server
	Conn       *connection.Conn
	Users      *directory.Users
	Channels   *directory.Channels
	Queues     *pipeline.Queues
	Aggregator *capture.Aggregator
	Player     *player.Player
	Dir        string
}

// Start connects a bot to a fresh server. prelude is sent before
// ServerSync, the way a server describes its channels and users.
func Start(t testing.TB, prelude ...mumbleproto.Message) *Harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	server := connectiontest.NewServer()
	t.Cleanup(func() { server.Close() })

	conn := connection.New(connection.Options{
		Addr:     "pipe",
		Username: BotName,
		Dial:     server.Dial,
		Logger:   logger,
	})

	users := directory.NewUsers(BotName)
	users.Attach(conn)
	channels := directory.NewChannels()
	channels.Attach(conn)

	queues := pipeline.NewQueues(logger, true)
	ids := &SequentialIDs{}

	aggregator := capture.NewAggregator(capture.Options{
		Dir:        dir,
		NewDecoder: func() (capture.Decoder, error) { return passthrough{}, nil },
		Transcoder: copyTranscoder{},
		Output:     queues.AudioInput,
		IDs:        ids,
		Logger:     logger,
	})
	conn.SubscribeTunnel(aggregator.HandleTunnel)

	text.NewReceiver(queues.TextInput, ids, logger).Attach(conn)
	text.NewSender(conn, users, logger).Attach(queues.TextOutput)

	audioPlayer := player.New(player.Options{
		Source: fileSource{},
		NewSink: func(target uint8) (player.Sink, error) {
			return dispatch.New(dispatch.Options{
				Sender:   conn,
				Sequence: conn.Sequence(),
				Encoder:  passthrough{},
				Target:   target,
				Logger:   logger,
			}), nil
		},
		Runner: runner.New(logger),
		Settle: player.DefaultSettle,
		Logger: logger,
	})
	audioPlayer.Attach(queues.AudioOutput)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	accepted := make(chan error, 1)
	go func() {
		_, err := server.Accept(ctx, BotSession, prelude...)
		accepted <- err
	}()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if err := <-accepted; err != nil {
		t.Fatalf("server handshake failed: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		aggregator.Close()
		audioPlayer.Close()
	})

	return &Harness{
		Server:     server,
		Conn:       conn,
		Users:      users,
		Channels:   channels,
		Queues:     queues,
		Aggregator: aggregator,
		Player:     audioPlayer,
		Dir:        dir,
	}
}

// SendVoice sends one Opus packet per payload from sender, flagging the
// last one as the end of the utterance.
func (h *Harness) SendVoice(sender uint32, payloads [][]byte) error {
	for i, p := range payloads {
		packet, err := InboundVoice(sender, uint64(i), i == len(payloads)-1, p)
		if err != nil {
			return err
		}
		if err := h.Server.SendTunnel(packet); err != nil {
			return err
		}
	}
	return nil
}

// InboundVoice builds a server-to-client Opus packet, which carries the
// sender's session after the header byte.
func InboundVoice(sender uint32, seq uint64, terminator bool, payload []byte) ([]byte, error) {
	outbound, err := tunnel.VoicePacket{
		Sequence:   seq,
		Terminator: terminator,
		Payload:    payload,
	}.Marshal()
	if err != nil {
		return nil, err
	}
	b := []byte{outbound[0]}
	b = varint.Append(b, int64(sender))
	return append(b, outbound[1:]...), nil
}

// NextVoice reads the next tunnel frame the bot sent and parses it as if
// the server had relayed it from session 0.
func (h *Harness) NextVoice(ctx context.Context) (tunnel.AudioFrame, error) {
	f, err := h.Server.NextOfType(ctx, frame.TypeTunnel)
	if err != nil {
		return tunnel.AudioFrame{}, err
	}
	relayed := append([]byte{f.Payload[0], 0x00}, f.Payload[1:]...)
	p, err := tunnel.Parse(relayed)
	if err != nil {
		return tunnel.AudioFrame{}, err
	}
	return p.Audio, nil
}

type passthrough struct{}

func (passthrough) Decode(packet []byte) ([]byte, error) {
	return bytes.Clone(packet), nil
}

func (passthrough) Encode(pcm []byte) ([]byte, error) {
	return bytes.Clone(pcm), nil
}

type copyTranscoder struct{}

func (copyTranscoder) PCMToWAV(_ context.Context, in, out string) error {
	b, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

type fileSource struct{}

func (fileSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(filepath.Clean(path))
}
