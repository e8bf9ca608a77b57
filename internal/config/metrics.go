package config

import "github.com/sethvargo/go-envconfig"

type MetricsConfig struct {
	// Addr is where /metrics is served. Empty disables the exporter.
	Addr string `env:"METRICS_ADDR"`
}

func NewMetricsConfigFromEnv() (*MetricsConfig, error) {
	return NewMetricsConfig(nil)
}

func NewMetricsConfig(l envconfig.Lookuper) (*MetricsConfig, error) {
	var cfg MetricsConfig
	if err := process(&cfg, l); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *MetricsConfig) Enabled() bool {
	return c.Addr != ""
}
