// Package config loads the daemon configuration. Values come from a TOML
// file, with INTAKED_* environment variables layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
)

// Config is the full daemon configuration.
type Config struct {
	Roots    []string `toml:"roots" env:"INTAKED_ROOTS" envSeparator:":"`
	Patterns []string `toml:"patterns" env:"INTAKED_PATTERNS" envSeparator:","`

	DebounceMS int    `toml:"debounce_ms" env:"INTAKED_DEBOUNCE_MS"`
	LogLevel   string `toml:"log_level" env:"INTAKED_LOG_LEVEL"`

	JournalPath string `toml:"journal_path" env:"INTAKED_JOURNAL_PATH"`
	StatePath   string `toml:"state_path" env:"INTAKED_STATE_PATH"`

	ProfileDir string `toml:"profile_dir" env:"INTAKED_PROFILE_DIR"`
	Profile    string `toml:"profile" env:"INTAKED_PROFILE"`

	ListenAddr     string   `toml:"listen_addr" env:"INTAKED_LISTEN_ADDR"`
	APIToken       string   `toml:"api_token" env:"INTAKED_API_TOKEN"`
	AllowedOrigins []string `toml:"allowed_origins" env:"INTAKED_ALLOWED_ORIGINS" envSeparator:","`

	SweepSchedule string `toml:"sweep_schedule" env:"INTAKED_SWEEP_SCHEDULE"`
}

// Default returns the configuration used when no file or environment
// overrides are present. Paths are rooted under the user state directory.
func Default() Config {
	return Config{
		Patterns:      []string{"*.md"},
		DebounceMS:    250,
		LogLevel:      "info",
		JournalPath:   filepath.Join(stateDir(), "journal.log"),
		StatePath:     filepath.Join(stateDir(), "state.db"),
		ProfileDir:    filepath.Join(stateDir(), "profiles"),
		Profile:       "default",
		ListenAddr:    "127.0.0.1:7710",
		SweepSchedule: "@every 15m",
	}
}

// Load reads the TOML file at path (missing files are fine) and applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg, err := load(path)
	if err != nil {
		return Config{}, err
	}
	if len(cfg.Roots) == 0 {
		return Config{}, errors.New("no intake roots configured")
	}
	return cfg, nil
}

// LoadLenient is Load without the root requirement, for one-shot invocations
// that name their target file directly.
func LoadLenient(path string) (Config, error) {
	return load(path)
}

func load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, cfg.validate()
}

// Debounce returns the watcher debounce as a duration.
func (cfg Config) Debounce() time.Duration {
	return time.Duration(cfg.DebounceMS) * time.Millisecond
}

func (cfg Config) validate() error {
	if cfg.DebounceMS < 0 {
		return errors.New("debounce_ms must not be negative")
	}
	for _, pattern := range cfg.Patterns {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	if override := os.Getenv("INTAKED_CONFIG"); override != "" {
		return override
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "intaked.toml"
	}
	return filepath.Join(base, "intaked", "intaked.toml")
}

func stateDir() string {
	base, err := os.UserHomeDir()
	if err != nil {
		return ".intaked"
	}
	return filepath.Join(base, ".intaked")
}
