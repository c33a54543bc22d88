package bot

import "github.com/caarlos0/env/v11"

// Config carries the process-level settings every module shares.
// Module-specific settings (Lavalink credentials, timeouts) are loaded
// by the owning module via ConfigurableModule.
type Config struct {
	// DiscordToken authenticates the gateway session.
	DiscordToken string `env:"DISCORD_TOKEN,notEmpty"`
}

// LoadConfig reads the bot configuration from the environment; a missing
// required variable is an error.
func LoadConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
