package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type SessionConfig struct {
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"5s"`
	CapabilityTTL     time.Duration `env:"CAPABILITY_TTL" envDefault:"60s"`

	PresenceSweepEnabled  bool          `env:"PRESENCE_SWEEP_ENABLED" envDefault:"false"`
	PresenceStaleAfter    time.Duration `env:"PRESENCE_STALE_AFTER" envDefault:"30s"`
	PresenceSweepInterval time.Duration `env:"PRESENCE_SWEEP_INTERVAL" envDefault:"10s"`
}

func LoadSession() (SessionConfig, error) {
	var cfg SessionConfig
	err := env.Parse(&cfg)
	return cfg, err
}
