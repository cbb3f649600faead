// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable of the chat server.
type Config struct {
	Port               string        `envconfig:"PORT" default:"3000"`
	DBPath             string        `envconfig:"DB_PATH" default:"chat.db"`
	DBDebug            bool          `envconfig:"DB_DEBUG" default:"false"`
	PublicDir          string        `envconfig:"PUBLIC_DIR" default:"public"`
	HistoryLimit       int           `envconfig:"HISTORY_LIMIT" default:"100"`
	SendBuffer         int           `envconfig:"SEND_BUFFER" default:"256"`
	RateLimit          float64       `envconfig:"RATE_LIMIT" default:"10"`
	RateBurst          int           `envconfig:"RATE_BURST" default:"20"`
	CORSAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > 1000 {
		return fmt.Errorf("HISTORY_LIMIT must be in 1..1000, got %d", c.HistoryLimit)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.New("RATE_LIMIT and RATE_BURST must not be negative")
	}
	return nil
}
