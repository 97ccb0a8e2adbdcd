// Package config loads engine settings from the environment.
//
// Variables use the COHORT_ prefix. An optional .env file is read first;
// variables already set in the process environment win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/roach88/cohort/internal/delivery"
	"github.com/roach88/cohort/internal/drip"
	"github.com/roach88/cohort/internal/progress"
)

// Config is the full set of environment-driven settings.
type Config struct {
	Script string `env:"COHORT_SCRIPT"`
	DB     string `env:"COHORT_DB" envDefault:"cohort.db"`

	DayCap          int    `env:"COHORT_DAY_CAP" envDefault:"30"`
	RevealHour      int    `env:"COHORT_REVEAL_HOUR" envDefault:"9"`
	Timezone        string `env:"COHORT_TIMEZONE" envDefault:"UTC"`
	ProgressMaxDays int    `env:"COHORT_PROGRESS_MAX_DAYS" envDefault:"0"`

	ReadDelayMin   time.Duration `env:"COHORT_READ_DELAY_MIN" envDefault:"5s"`
	ReadDelayMax   time.Duration `env:"COHORT_READ_DELAY_MAX" envDefault:"10s"`
	TypingDelayMin time.Duration `env:"COHORT_TYPING_DELAY_MIN" envDefault:"8s"`
	TypingDelayMax time.Duration `env:"COHORT_TYPING_DELAY_MAX" envDefault:"15s"`
	BurstPause     time.Duration `env:"COHORT_BURST_PAUSE" envDefault:"1500ms"`
	FallbackDelay  time.Duration `env:"COHORT_FALLBACK_DELAY" envDefault:"2s"`
	ReplyTimeout   time.Duration `env:"COHORT_REPLY_TIMEOUT" envDefault:"20s"`

	ReplyURL    string `env:"COHORT_REPLY_URL"`
	MetricsAddr string `env:"COHORT_METRICS_ADDR"`
	// Seed fixes the pacing random source; 0 draws a fresh seed.
	Seed int64 `env:"COHORT_SEED" envDefault:"0"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads dotenv (if the file exists), parses the environment and
// validates the result. An empty dotenv path skips the file.
func Load(dotenv string) (Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c Config) Validate() error {
	var problems []string
	if c.DayCap < 0 {
		problems = append(problems, fmt.Sprintf("COHORT_DAY_CAP must be >= 0, got %d", c.DayCap))
	}
	if c.RevealHour < 0 || c.RevealHour > 23 {
		problems = append(problems, fmt.Sprintf("COHORT_REVEAL_HOUR must be 0-23, got %d", c.RevealHour))
	}
	if c.ProgressMaxDays < 0 {
		problems = append(problems, fmt.Sprintf("COHORT_PROGRESS_MAX_DAYS must be >= 0, got %d", c.ProgressMaxDays))
	}
	if c.ReadDelayMin < 0 || c.ReadDelayMax < c.ReadDelayMin {
		problems = append(problems, "COHORT_READ_DELAY_MIN/MAX must satisfy 0 <= min <= max")
	}
	if c.TypingDelayMin < 0 || c.TypingDelayMax < c.TypingDelayMin {
		problems = append(problems, "COHORT_TYPING_DELAY_MIN/MAX must satisfy 0 <= min <= max")
	}
	if c.BurstPause < 0 || c.FallbackDelay < 0 {
		problems = append(problems, "COHORT_BURST_PAUSE and COHORT_FALLBACK_DELAY must be >= 0")
	}
	if c.ReplyTimeout <= 0 {
		problems = append(problems, "COHORT_REPLY_TIMEOUT must be > 0")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("COHORT_TIMEZONE %q: %v", c.Timezone, err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Schedule returns the drip schedule.
func (c Config) Schedule() (drip.Schedule, error) {
	loc, err := c.Location()
	if err != nil {
		return drip.Schedule{}, err
	}
	return drip.Schedule{DayCap: c.DayCap, RevealHour: c.RevealHour, Location: loc}, nil
}

// Pacing returns the reply pacing.
func (c Config) Pacing() delivery.Pacing {
	return delivery.Pacing{
		ReadDelay:     delivery.Range{Min: c.ReadDelayMin, Max: c.ReadDelayMax},
		TypingDelay:   delivery.Range{Min: c.TypingDelayMin, Max: c.TypingDelayMax},
		BurstPause:    c.BurstPause,
		FallbackDelay: c.FallbackDelay,
		ReplyTimeout:  c.ReplyTimeout,
	}
}

// Simulator returns the persona progress simulator.
func (c Config) Simulator() progress.Simulator {
	return progress.Simulator{MaxDays: c.ProgressMaxDays}
}
