package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type MumbleConfig struct {
	Host     string `env:"MUMBLE_HOST, default=localhost"`
	Port     int    `env:"MUMBLE_PORT, default=64738"`
	Username string `env:"MUMBLE_USERNAME, required"`
	Password string `env:"MUMBLE_PASSWORD"`
	// Most servers use self-signed certificates.
	InsecureSkipVerify bool          `env:"MUMBLE_INSECURE_SKIP_VERIFY, default=true"`
	Debug              bool          `env:"MUMBLE_DEBUG"`
	HeartbeatInterval  time.Duration `env:"MUMBLE_HEARTBEAT_INTERVAL, default=15s"`
}

func NewMumbleConfigFromEnv() (*MumbleConfig, error) {
	return NewMumbleConfig(nil)
}

// NewMumbleConfig reads the config through l. A nil l reads the process
// environment.
func NewMumbleConfig(l envconfig.Lookuper) (*MumbleConfig, error) {
	var cfg MumbleConfig
	if err := process(&cfg, l); err != nil {
		return nil, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MUMBLE_PORT %d is out of range", cfg.Port)
	}
	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("MUMBLE_HEARTBEAT_INTERVAL must be positive")
	}
	return &cfg, nil
}

func (c *MumbleConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
