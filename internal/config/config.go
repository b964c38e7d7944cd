package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	JWTSecret   string `env:"JWT_SECRET" envDefault:"dev-only-secret"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// MilestonesFile optionally overrides the built-in milestone table with
	// a versioned JSON file. Validated against the embedded schema at boot.
	MilestonesFile string `env:"MILESTONES_FILE"`

	PointsPerPound int `env:"POINTS_PER_POUND" envDefault:"1"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
