package config

import (
	"fmt"
	"os"
)

// Config holds all bot configuration, sourced from environment variables.
type Config struct {
	// Discord bot token. Required.
	Token string

	// Optional guild ID. If set, slash commands are registered against
	// that guild only, which makes them show up instantly during
	// development. Left empty, commands are registered globally.
	GuildID string

	// IANA timezone name used whenever neither a birthday record nor its
	// guild carries a timezone of its own.
	DefaultTimezone string

	// SQLite database file path.
	DBPath string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Token:           os.Getenv("DISCORD_TOKEN"),
		GuildID:         os.Getenv("GUILD_ID"),
		DefaultTimezone: os.Getenv("DEFAULT_TZ"),
		DBPath:          os.Getenv("DB_PATH"),
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "Europe/London"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "birthdays.db"
	}

	return cfg, nil
}
