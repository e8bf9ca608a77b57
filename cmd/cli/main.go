package main

import (
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/glizzus/mumble-voice/internal/config"
	"github.com/glizzus/mumble-voice/internal/connection"
	"github.com/glizzus/mumble-voice/internal/directory"
	"github.com/glizzus/mumble-voice/internal/dispatch"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
	"github.com/glizzus/mumble-voice/internal/opus"
	"github.com/glizzus/mumble-voice/internal/pipeline"
	"github.com/glizzus/mumble-voice/internal/player"
	"github.com/glizzus/mumble-voice/internal/tunnel"
	"github.com/glizzus/mumble-voice/internal/varint"
)

func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(s)
	return hex.DecodeString(s)
}

// connect dials the server configured in the environment.
func connect(users *directory.Users, channels *directory.Channels) (*connection.Conn, error) {
	cfg, err := config.NewMumbleConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load mumble config: %w", err)
	}
	conn := connection.New(connection.Options{
		Addr:              cfg.Addr(),
		Username:          cfg.Username,
		Password:          cfg.Password,
		TLSConfig:         &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		HeartbeatInterval: cfg.HeartbeatInterval,
		Debug:             cfg.Debug,
		Release:           "mumble-voice-cli",
	})
	users.Attach(conn)
	channels.Attach(conn)
	return conn, nil
}

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	app := &cli.App{
		Name:        "mumble-voice-cli",
		Description: "A development CLI tool for poking at the voice protocol and a live server",
		Commands: []*cli.Command{
			{
				Name:  "varint",
				Usage: "Encode or decode voice packet varints",
				Subcommands: []*cli.Command{
					{
						Name:      "encode",
						Usage:     "Print the encoding of a signed integer",
						ArgsUsage: "<number>",
						Action: func(c *cli.Context) error {
							n, err := strconv.ParseInt(c.Args().First(), 0, 64)
							if err != nil {
								return cli.Exit("Invalid number: "+err.Error(), 1)
							}
							fmt.Println(hex.EncodeToString(varint.Encode(n)))
							return nil
						},
					},
					{
						Name:      "decode",
						Usage:     "Decode the varint at the start of a hex string",
						ArgsUsage: "<hex>",
						Action: func(c *cli.Context) error {
							b, err := parseHex(c.Args().First())
							if err != nil {
								return cli.Exit("Invalid hex: "+err.Error(), 1)
							}
							v, n, err := varint.Decode(b)
							if err != nil {
								return cli.Exit("Failed to decode: "+err.Error(), 1)
							}
							fmt.Printf("value=%d consumed=%d\n", v, n)
							return nil
						},
					},
				},
			},
			{
				Name:  "tunnel",
				Usage: "Work with UDPTunnel voice packets",
				Subcommands: []*cli.Command{
					{
						Name:      "inspect",
						Usage:     "Parse a voice packet given as hex",
						ArgsUsage: "<hex>",
						Action: func(c *cli.Context) error {
							b, err := parseHex(c.Args().First())
							if err != nil {
								return cli.Exit("Invalid hex: "+err.Error(), 1)
							}
							p, err := tunnel.Parse(b)
							if err != nil {
								return cli.Exit("Failed to parse: "+err.Error(), 1)
							}
							fmt.Printf("type=%s target=%d\n", p.Type, p.Target)
							if !p.IsPing() {
								a := p.Audio
								fmt.Printf("sender=%d sequence=%d terminator=%t payload=%s\n",
									a.Sender, a.Sequence, a.Terminator, hex.EncodeToString(a.Payload))
							}
							return nil
						},
					},
				},
			},
			{
				Name:  "listen",
				Usage: "Connect and print users, channels and chat until interrupted",
				Action: func(c *cli.Context) error {
					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
					defer stop()

					users, channels := directory.NewUsers(""), directory.NewChannels()
					conn, err := connect(users, channels)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					connection.On(conn, func(m *mumbleproto.TextMessage) {
						name := strconv.FormatUint(uint64(m.GetActor()), 10)
						if u, ok := users.Get(m.GetActor()); ok {
							name = u.Name
						}
						log.Printf("<%s> %s", name, m.Message)
					})
					if err := conn.Connect(ctx); err != nil {
						return cli.Exit("Failed to connect: "+err.Error(), 1)
					}
					defer conn.Close()

					for _, ch := range channels.All() {
						log.Printf("channel %d: %s", ch.ID, ch.Name)
					}
					for _, u := range users.All() {
						log.Printf("user %d: %s (channel %d)", u.Session, u.Name, u.ChannelID)
					}

					select {
					case <-ctx.Done():
						return nil
					case <-conn.Done():
						return conn.Err()
					}
				},
			},
			{
				Name:      "play",
				Usage:     "Connect and play one audio file into the bot's channel",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "target",
						Usage: "Whisper target, 0 for the current channel",
					},
					&cli.Float64Flag{
						Name:  "volume",
						Usage: "Gain applied to the audio",
						Value: 1,
					},
				},
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						return cli.Exit("Please provide a file to play", 1)
					}
					audioConfig, err := config.NewAudioConfigFromEnv()
					if err != nil {
						return cli.Exit("Failed to load audio config: "+err.Error(), 1)
					}

					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
					defer stop()

					conn, err := connect(directory.NewUsers(""), directory.NewChannels())
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					if err := conn.Connect(ctx); err != nil {
						return cli.Exit("Failed to connect: "+err.Error(), 1)
					}
					defer conn.Close()

					p := player.New(player.Options{
						Source: opus.FileSource{Transcoder: opus.Transcoder{Path: audioConfig.FFmpeg}},
						NewSink: func(target uint8) (player.Sink, error) {
							encoder, err := opus.NewEncoder(opus.BitrateForBandwidth(int(conn.MaxBandwidth())))
							if err != nil {
								return nil, err
							}
							return dispatch.New(dispatch.Options{
								Sender:   conn,
								Sequence: conn.Sequence(),
								Encoder:  encoder,
								Target:   target,
								Volume:   c.Float64("volume"),
							}), nil
						},
						Settle:        player.DefaultSettle,
						KeepArtifacts: true,
					})
					defer p.Close()

					job := pipeline.AudioOutputJob{Path: path, Target: uint8(c.Int("target"))}
					if err := p.Play(ctx, job); err != nil {
						return cli.Exit("Failed to play: "+err.Error(), 1)
					}
					log.Println("Playback finished.")
					return nil
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
