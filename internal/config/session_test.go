package config

import (
	"testing"
	"time"
)

func TestLoadSessionDefaults(t *testing.T) {
	cfg, err := LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Fatalf("HeartbeatInterval = %v, want 5s", cfg.HeartbeatInterval)
	}
	if cfg.CapabilityTTL != 60*time.Second {
		t.Fatalf("CapabilityTTL = %v, want 60s", cfg.CapabilityTTL)
	}
	if cfg.PresenceSweepEnabled {
		t.Fatal("presence sweep should be off by default")
	}
}

func TestLoadSessionDurations(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "250ms")
	t.Setenv("PRESENCE_SWEEP_ENABLED", "true")
	t.Setenv("PRESENCE_STALE_AFTER", "2m")

	cfg, err := LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if cfg.HeartbeatInterval != 250*time.Millisecond {
		t.Fatalf("HeartbeatInterval = %v", cfg.HeartbeatInterval)
	}
	if !cfg.PresenceSweepEnabled || cfg.PresenceStaleAfter != 2*time.Minute {
		t.Fatalf("unexpected sweep config: %+v", cfg)
	}
}
