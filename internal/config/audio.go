package config

import (
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
)

type AudioConfig struct {
	InputDir  string  `env:"AUDIO_INPUT_DIR, default=artifacts/input"`
	// OutputDir is where synthesized replies are left for playback. Output
	// jobs with relative paths are resolved against it.
	OutputDir string  `env:"AUDIO_OUTPUT_DIR, default=artifacts/output"`
	FFmpeg    string  `env:"FFMPEG_PATH, default=ffmpeg"`
	Volume    float64 `env:"AUDIO_VOLUME, default=1.0"`
	// Bitrate pins the Opus bitrate. Zero derives it from the server's
	// bandwidth limit.
	Bitrate       int  `env:"AUDIO_BITRATE, default=0"`
	KeepArtifacts bool `env:"AUDIO_KEEP_ARTIFACTS"`
}

func NewAudioConfigFromEnv() (*AudioConfig, error) {
	return NewAudioConfig(nil)
}

func NewAudioConfig(l envconfig.Lookuper) (*AudioConfig, error) {
	var cfg AudioConfig
	if err := process(&cfg, l); err != nil {
		return nil, err
	}
	if cfg.Volume < 0 {
		return nil, fmt.Errorf("AUDIO_VOLUME must not be negative")
	}
	if cfg.Bitrate < 0 {
		return nil, fmt.Errorf("AUDIO_BITRATE must not be negative")
	}
	return &cfg, nil
}

// EnsureDirs creates the artifact directories.
func (c *AudioConfig) EnsureDirs() error {
	for _, dir := range []string{c.InputDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
