package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"

	"github.com/glizzus/mumble-voice/internal/config"
)

func TestMumbleConfigDefaults(t *testing.T) {
	cfg, err := config.NewMumbleConfig(envconfig.MapLookuper(map[string]string{
		"MUMBLE_USERNAME": "bot",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &config.MumbleConfig{
		Host:               "localhost",
		Port:               64738,
		Username:           "bot",
		InsecureSkipVerify: true,
		HeartbeatInterval:  15 * time.Second,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Addr() != "localhost:64738" {
		t.Errorf("Addr() = %s", cfg.Addr())
	}
}

func TestMumbleConfigErrors(t *testing.T) {
	tc := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing username", env: map[string]string{}},
		{name: "port out of range", env: map[string]string{"MUMBLE_USERNAME": "bot", "MUMBLE_PORT": "70000"}},
		{name: "zero heartbeat", env: map[string]string{"MUMBLE_USERNAME": "bot", "MUMBLE_HEARTBEAT_INTERVAL": "0s"}},
	}
	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			if _, err := config.NewMumbleConfig(envconfig.MapLookuper(test.env)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestAudioConfig(t *testing.T) {
	cfg, err := config.NewAudioConfig(envconfig.MapLookuper(map[string]string{
		"AUDIO_VOLUME":         "0.5",
		"AUDIO_KEEP_ARTIFACTS": "true",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &config.AudioConfig{
		InputDir:      "artifacts/input",
		OutputDir:     "artifacts/output",
		FFmpeg:        "ffmpeg",
		Volume:        0.5,
		KeepArtifacts: true,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if _, err := config.NewAudioConfig(envconfig.MapLookuper(map[string]string{"AUDIO_VOLUME": "-1"})); err == nil {
		t.Error("expected an error for a negative volume")
	}
}

func TestAudioConfigEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := &config.AudioConfig{InputDir: filepath.Join(root, "in"), OutputDir: filepath.Join(root, "out", "nested")}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}

func TestMetricsConfig(t *testing.T) {
	cfg, err := config.NewMetricsConfig(envconfig.MapLookuper(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enabled() {
		t.Error("exporter enabled without METRICS_ADDR")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("MUMBLE_VOICE_TEST_KEY=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MUMBLE_VOICE_TEST_KEY", "")
	os.Unsetenv("MUMBLE_VOICE_TEST_KEY")

	if err := config.LoadEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("MUMBLE_VOICE_TEST_KEY"); got != "from-file" {
		t.Errorf("MUMBLE_VOICE_TEST_KEY = %q, want from-file", got)
	}
}
