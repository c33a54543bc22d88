package music

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("LAVALINK_ADDRESS", "localhost:2333")
	t.Setenv("LAVALINK_PASSWORD", "youshallnotpass")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LavalinkAddress != "localhost:2333" {
		t.Errorf("unexpected address: %q", cfg.LavalinkAddress)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("expected default idle timeout 60s, got %v", cfg.IdleTimeout)
	}
}

func TestLoadConfigCustomIdleTimeout(t *testing.T) {
	t.Setenv("LAVALINK_ADDRESS", "localhost:2333")
	t.Setenv("LAVALINK_PASSWORD", "youshallnotpass")
	t.Setenv("MUSIC_IDLE_TIMEOUT", "5m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IdleTimeout != 5*time.Minute {
		t.Errorf("expected 5m idle timeout, got %v", cfg.IdleTimeout)
	}
}

func TestLoadConfigMissingAddress(t *testing.T) {
	t.Setenv("LAVALINK_ADDRESS", "")
	t.Setenv("LAVALINK_PASSWORD", "youshallnotpass")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for missing Lavalink address")
	}
}
