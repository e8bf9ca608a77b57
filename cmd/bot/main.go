package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/glizzus/mumble-voice/internal/capture"
	"github.com/glizzus/mumble-voice/internal/config"
	"github.com/glizzus/mumble-voice/internal/connection"
	"github.com/glizzus/mumble-voice/internal/directory"
	"github.com/glizzus/mumble-voice/internal/dispatch"
	"github.com/glizzus/mumble-voice/internal/metrics"
	"github.com/glizzus/mumble-voice/internal/mumbleproto"
	"github.com/glizzus/mumble-voice/internal/opus"
	"github.com/glizzus/mumble-voice/internal/pipeline"
	"github.com/glizzus/mumble-voice/internal/player"
	"github.com/glizzus/mumble-voice/internal/runner"
	"github.com/glizzus/mumble-voice/internal/text"
	"github.com/glizzus/mumble-voice/internal/worker"
)

var echo = flag.Bool("echo", false, "play every captured utterance back to the channel")

type settings struct {
	mumble *config.MumbleConfig
	audio  *config.AudioConfig
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	mumbleConfig, err := config.NewMumbleConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load mumble config: %w", err)
	}
	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load audio config: %w", err)
	}
	metricsConfig, err := config.NewMetricsConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load metrics config: %w", err)
	}

	if mumbleConfig.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	if err := audioConfig.EnsureDirs(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsConfig.Enabled() {
		exporter := metrics.NewExporter(metricsConfig.Addr)
		go func() {
			if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics exporter stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := exporter.Shutdown(shutdownCtx); err != nil {
				slog.Warn("failed to shut down metrics exporter", "error", err)
			}
		}()
	}

	s := settings{mumble: mumbleConfig, audio: audioConfig}

	// The connection does not reconnect by itself; each session gets a
	// fresh one and the backoff decides when to try again.
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	policy.MaxInterval = time.Minute

	err = backoff.RetryNotify(
		func() error {
			err := runSession(ctx, s)
			var rejected *connection.RejectedError
			if errors.As(err, &rejected) {
				return backoff.Permanent(err)
			}
			if err != nil {
				return err
			}
			if ctx.Err() == nil {
				// The server closed a healthy session; start over.
				policy.Reset()
				return connection.ErrConnectionLost
			}
			return nil
		},
		backoff.WithContext(policy, ctx),
		func(err error, wait time.Duration) {
			slog.Warn("session ended, reconnecting", "error", err, "wait", wait)
		},
	)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// runSession connects once and serves until the connection drops or ctx is
// cancelled.
func runSession(ctx context.Context, s settings) error {
	logger := slog.Default()

	conn := connection.New(connection.Options{
		Addr:              s.mumble.Addr(),
		Username:          s.mumble.Username,
		Password:          s.mumble.Password,
		TLSConfig:         &tls.Config{InsecureSkipVerify: s.mumble.InsecureSkipVerify},
		HeartbeatInterval: s.mumble.HeartbeatInterval,
		Logger:            logger,
		Debug:             s.mumble.Debug,
	})

	users := directory.NewUsers(s.mumble.Username)
	users.Attach(conn)
	channels := directory.NewChannels()
	channels.Attach(conn)

	queues := pipeline.NewQueues(logger, s.mumble.Debug)
	transcoder := opus.Transcoder{Path: s.audio.FFmpeg}

	aggregator := capture.NewAggregator(capture.Options{
		Dir:        s.audio.InputDir,
		Transcoder: transcoder,
		Output:     queues.AudioInput,
		Logger:     logger,
	})
	defer aggregator.Close()
	conn.SubscribeTunnel(aggregator.HandleTunnel)
	connection.On(conn, func(m *mumbleproto.UserRemove) { aggregator.Discard(m.Session) })

	text.NewReceiver(queues.TextInput, nil, logger).Attach(conn)
	text.NewSender(conn, users, logger).Attach(queues.TextOutput)

	audioPlayer := player.New(player.Options{
		Source:        opus.FileSource{Transcoder: transcoder},
		NewSink:       sinkFactory(conn, s.audio, logger),
		Runner:        runner.New(logger),
		Dir:           s.audio.OutputDir,
		Settle:        player.DefaultSettle,
		KeepArtifacts: s.audio.KeepArtifacts,
		Logger:        logger,
	})
	defer audioPlayer.Close()
	audioPlayer.Attach(queues.AudioOutput)

	// Transcription, the agent and speech synthesis run elsewhere. Without
	// them, jobs for those stages are logged and dropped.
	if *echo {
		pipeline.Relay(queues.AudioInput, queues.AudioOutput, pipeline.Echo)
	} else {
		worker.Attach(ctx, queues.AudioInput, &worker.PrintingJobHandler[pipeline.AudioInputJob]{Stage: "audio_input", Logger: logger}, logger)
	}
	worker.Attach(ctx, queues.AudioGeneration, &worker.PrintingJobHandler[pipeline.AudioGenerationJob]{Stage: "audio_generation", Logger: logger}, logger)
	worker.Attach(ctx, queues.TextInput, &worker.PrintingJobHandler[pipeline.TextInputJob]{Stage: "text_input", Logger: logger}, logger)

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Warn("failed to close connection", "error", err)
		}
	}()

	self, _ := users.Self()
	channel, _ := channels.Get(self.ChannelID)
	slog.Info("connected", "session", conn.Session(), "channel", channel.Name, "users", users.Len())

	select {
	case <-ctx.Done():
		return nil
	case <-conn.Done():
		return conn.Err()
	}
}

// sinkFactory builds a dispatch stream per whisper target, each with its
// own encoder at the configured or bandwidth-derived bitrate.
func sinkFactory(conn *connection.Conn, cfg *config.AudioConfig, logger *slog.Logger) func(uint8) (player.Sink, error) {
	return func(target uint8) (player.Sink, error) {
		bitrate := cfg.Bitrate
		if bw := conn.MaxBandwidth(); bitrate == 0 && bw > 0 {
			bitrate = opus.BitrateForBandwidth(int(bw))
		}
		encoder, err := opus.NewEncoder(bitrate)
		if err != nil {
			return nil, err
		}
		logger.Debug("created voice stream", "target", target, "bitrate", bitrate)
		return dispatch.New(dispatch.Options{
			Sender:   conn,
			Sequence: conn.Sequence(),
			Encoder:  encoder,
			Target:   target,
			Volume:   cfg.Volume,
			Logger:   logger,
		}), nil
	}
}

func main() {
	flag.Parse()
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
