package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/storypath.db"`
	// RedisURL is optional; without it positions are kept in memory.
	RedisURL string `env:"REDIS_URL"`

	BackendURL   string `env:"BACKEND_URL" envDefault:"https://0b5ff8b0.uqcloud.net/api"`
	BackendToken string `env:"BACKEND_TOKEN,required"`

	TickInterval     time.Duration `env:"TICK_INTERVAL" envDefault:"5s"`
	CheckinRadius    float64       `env:"CHECKIN_RADIUS_M" envDefault:"100"`
	CallTimeout      time.Duration `env:"CALL_TIMEOUT" envDefault:"10s"`
	PositionTTL      time.Duration `env:"POSITION_TTL" envDefault:"2m"`
	LenientPositions bool          `env:"LENIENT_POSITIONS" envDefault:"false"`

	// SessionIdleTimeout unmounts sessions without a position fix for this
	// long. Zero disables it.
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"10m"`
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment take precedence over the file.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.CheckinRadius <= 0 {
		return nil, fmt.Errorf("CHECKIN_RADIUS_M must be positive, got %v", cfg.CheckinRadius)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL must be positive, got %v", cfg.TickInterval)
	}
	return &cfg, nil
}
