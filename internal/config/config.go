// Package config reads CLI defaults from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds defaults that flags may override.
type Config struct {
	Database    string `env:"STATERES_DB"           envDefault:"stateres.db"`
	Format      string `env:"STATERES_FORMAT"       envDefault:"text"`
	Verbose     bool   `env:"STATERES_VERBOSE"`
	RoomVersion string `env:"STATERES_ROOM_VERSION" envDefault:"10"`
	RulesFile   string `env:"STATERES_RULES"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
