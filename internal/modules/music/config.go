package music

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the music module configuration loaded from environment
// variables.
type Config struct {
	LavalinkAddress  string        `env:"LAVALINK_ADDRESS,notEmpty"`
	LavalinkPassword string        `env:"LAVALINK_PASSWORD,notEmpty"`
	IdleTimeout      time.Duration `env:"MUSIC_IDLE_TIMEOUT" envDefault:"60s"`
}

// LoadConfig loads configuration from environment variables.
// Returns an error if required fields are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
