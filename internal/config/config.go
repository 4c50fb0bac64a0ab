// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the process-wide configuration. All fields come from the
// environment; a local .env file is loaded by main before parsing.
type Config struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL"`

	RuleSet  string `env:"FABLE_RULESET" envDefault:"d20"`
	DiceSeed int64  `env:"FABLE_DICE_SEED"`

	Zone       string `env:"FABLE_ZONE" envDefault:"greenhollow"`
	StartScene string `env:"FABLE_START_SCENE" envDefault:"village_gate"`
	PlayerName string `env:"FABLE_PLAYER_NAME" envDefault:"Adventurer"`

	DatabasePath string `env:"FABLE_DB" envDefault:"fablecore.db"`
	LogPath      string `env:"FABLE_LOG" envDefault:"fablecore.log"`
	Debug        bool   `env:"FABLE_DEBUG"`
	Telemetry    bool   `env:"FABLE_TELEMETRY"`

	ExitThreshold      float64 `env:"FABLE_EXIT_THRESHOLD"`
	TargetThreshold    float64 `env:"FABLE_TARGET_THRESHOLD"`
	MaxInvalidAttempts int     `env:"FABLE_MAX_INVALID_ATTEMPTS"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
