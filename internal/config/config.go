// Package config loads runtime configuration for the invoice batch runner.
//
// Two sources are combined: a YAML file for the portal profile (URLs,
// timeouts, settle delays, retry counts) and environment variables for
// credentials. Credentials never live in the YAML file; they come from the
// environment, optionally seeded from a .env file via godotenv.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credential environment variables.
const (
	EnvUsername = "TRADESHIFT_USERNAME"
	EnvPassword = "TRADESHIFT_PASSWORD"
)

// Timeouts bounds every wait the portal layer performs. Zero values are
// replaced with defaults by Normalize.
type Timeouts struct {
	Navigation time.Duration `yaml:"navigation"` // page navigation upper bound
	Element    time.Duration `yaml:"element"`    // wait-for-visible upper bound
	Login      time.Duration `yaml:"login"`      // authenticated-state wait after submit
}

// Settles are the fixed delays inserted where the portal UI gives no
// completion signal. They are floors, not waits-for-readiness; element
// presence is still confirmed separately.
type Settles struct {
	Toggle     time.Duration `yaml:"toggle"`      // after each filter toggle
	Search     time.Duration `yaml:"search"`      // after filling the search box
	Frame      time.Duration `yaml:"frame"`       // after entering a view/frame
	Attachment time.Duration `yaml:"attachment"`  // after setting the upload file
	Submission time.Duration `yaml:"submission"`  // after save-as-draft
	NavRetry   time.Duration `yaml:"nav_retry"`   // between navigation attempts
	PassDelay  time.Duration `yaml:"pass_delay"`  // between orchestration passes
}

// Config is the full runtime profile.
type Config struct {
	BaseURL         string   `yaml:"base_url"`
	DocumentManager string   `yaml:"document_manager_url"`
	Headless        bool     `yaml:"headless"`
	NavAttempts     int      `yaml:"nav_attempts"`
	MaxPasses       int      `yaml:"max_passes"`
	ScreenshotDir   string   `yaml:"screenshot_dir"`
	Timeouts        Timeouts `yaml:"timeouts"`
	Settles         Settles  `yaml:"settles"`

	// Populated from the environment, never from YAML.
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// Default returns the profile used when no YAML file is given. The URLs and
// delay values mirror the production portal's observed behavior.
func Default() Config {
	return Config{
		BaseURL:         "https://go.tradeshift.com",
		DocumentManager: "https://go.tradeshift.com/#/Tradeshift.DocumentManager",
		Headless:        true,
		NavAttempts:     3,
		MaxPasses:       3,
		ScreenshotDir:   "screenshots",
		Timeouts: Timeouts{
			Navigation: 30 * time.Second,
			Element:    20 * time.Second,
			Login:      15 * time.Second,
		},
		Settles: Settles{
			Toggle:     time.Second,
			Search:     5 * time.Second,
			Frame:      3 * time.Second,
			Attachment: 5 * time.Second,
			Submission: 15 * time.Second,
			NavRetry:   2 * time.Second,
			PassDelay:  10 * time.Second,
		},
	}
}

// Load builds a Config from an optional YAML file and the environment.
// envFile, when non-empty, is loaded into the process environment first;
// a missing .env file is not an error (the variables may already be set).
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	} else {
		// Best-effort default .env in the working directory.
		_ = godotenv.Load()
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	cfg.Username = os.Getenv(EnvUsername)
	cfg.Password = os.Getenv(EnvPassword)

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize fills zero values with defaults so a sparse YAML file only
// needs to name what it overrides.
func (c *Config) Normalize() {
	def := Default()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.DocumentManager == "" {
		c.DocumentManager = def.DocumentManager
	}
	if c.NavAttempts <= 0 {
		c.NavAttempts = def.NavAttempts
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = def.MaxPasses
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = def.ScreenshotDir
	}
	if c.Timeouts.Navigation <= 0 {
		c.Timeouts.Navigation = def.Timeouts.Navigation
	}
	if c.Timeouts.Element <= 0 {
		c.Timeouts.Element = def.Timeouts.Element
	}
	if c.Timeouts.Login <= 0 {
		c.Timeouts.Login = def.Timeouts.Login
	}
	if c.Settles.Toggle <= 0 {
		c.Settles.Toggle = def.Settles.Toggle
	}
	if c.Settles.Search <= 0 {
		c.Settles.Search = def.Settles.Search
	}
	if c.Settles.Frame <= 0 {
		c.Settles.Frame = def.Settles.Frame
	}
	if c.Settles.Attachment <= 0 {
		c.Settles.Attachment = def.Settles.Attachment
	}
	if c.Settles.Submission <= 0 {
		c.Settles.Submission = def.Settles.Submission
	}
	if c.Settles.NavRetry <= 0 {
		c.Settles.NavRetry = def.Settles.NavRetry
	}
	if c.Settles.PassDelay <= 0 {
		c.Settles.PassDelay = def.Settles.PassDelay
	}
}

// Validate reports configuration that cannot produce a working run.
func (c *Config) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("config: %s is not set", EnvUsername)
	}
	if c.Password == "" {
		return fmt.Errorf("config: %s is not set", EnvPassword)
	}
	if c.BaseURL == "" || c.DocumentManager == "" {
		return fmt.Errorf("config: portal URLs must not be empty")
	}
	return nil
}
