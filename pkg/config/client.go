package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Client modes select where the terminal client keeps durable history.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// ClientConfig is the terminal client's configuration. It is read from a
// TOML file, then PRICE_FINDER_* environment variables override single fields.
type ClientConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	Mode     string `toml:"mode"`

	Local   LocalConfig   `toml:"local"`
	Remote  RemoteConfig  `toml:"remote"`
	Catalog CatalogConfig `toml:"catalog"`
}

// LocalConfig configures the SQLite-backed history slot.
type LocalConfig struct {
	Path     string `toml:"path"`
	SlotName string `toml:"slot_name"`
}

// RemoteConfig configures the session-backed history service.
type RemoteConfig struct {
	BaseURL      string   `toml:"base_url"`
	SessionToken string   `toml:"session_token"`
	Timeout      Duration `toml:"timeout"`
	RetryMax     int      `toml:"retry_max"`
}

// CatalogConfig configures direct catalog access (local mode only).
type CatalogConfig struct {
	BaseURL         string   `toml:"base_url"`
	ExchangeRateURL string   `toml:"exchange_rate_url"`
	Timeout         Duration `toml:"timeout"`
	RetryMax        int      `toml:"retry_max"`
	RequestsPerSec  int      `toml:"requests_per_second"`
}

// Duration lets TOML files carry values like "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultClientConfig returns the built-in client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Env:      "dev",
		LogLevel: "warn",
		Mode:     ModeLocal,
		Local: LocalConfig{
			Path:     "data/price_finder.db",
			SlotName: "search_history",
		},
		Remote: RemoteConfig{
			BaseURL:  "http://localhost:5000",
			Timeout:  Duration{15 * time.Second},
			RetryMax: 1,
		},
		Catalog: CatalogConfig{
			BaseURL:         "https://www.uniqlo.com",
			ExchangeRateURL: "https://www.google.com/finance/quote/JPY-TWD",
			Timeout:         Duration{15 * time.Second},
			RetryMax:        2,
			RequestsPerSec:  2,
		},
	}
}

// LoadClient reads path (a missing file is not an error), applies env
// overrides and validates the result.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read client config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	applyClientEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyClientEnv(cfg *ClientConfig) {
	cfg.Env = GetEnv("PRICE_FINDER_ENV", cfg.Env)
	cfg.LogLevel = GetEnv("PRICE_FINDER_LOG_LEVEL", cfg.LogLevel)
	cfg.Mode = GetEnv("PRICE_FINDER_MODE", cfg.Mode)
	cfg.Local.Path = GetEnv("PRICE_FINDER_LOCAL_PATH", cfg.Local.Path)
	cfg.Local.SlotName = GetEnv("PRICE_FINDER_SLOT_NAME", cfg.Local.SlotName)
	cfg.Remote.BaseURL = GetEnv("PRICE_FINDER_API_URL", cfg.Remote.BaseURL)
	cfg.Remote.SessionToken = GetEnv("PRICE_FINDER_SESSION", cfg.Remote.SessionToken)
	cfg.Catalog.BaseURL = GetEnv("PRICE_FINDER_CATALOG_URL", cfg.Catalog.BaseURL)
	cfg.Catalog.ExchangeRateURL = GetEnv("PRICE_FINDER_EXCHANGE_RATE_URL", cfg.Catalog.ExchangeRateURL)
}

// Validate checks the mode and the settings that mode depends on.
func (c *ClientConfig) Validate() error {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	switch c.Mode {
	case ModeLocal:
		if strings.TrimSpace(c.Local.Path) == "" {
			return fmt.Errorf("local.path is required in local mode")
		}
		if strings.TrimSpace(c.Local.SlotName) == "" {
			return fmt.Errorf("local.slot_name is required in local mode")
		}
		if strings.TrimSpace(c.Catalog.BaseURL) == "" {
			return fmt.Errorf("catalog.base_url is required in local mode")
		}
	case ModeRemote:
		if strings.TrimSpace(c.Remote.BaseURL) == "" {
			return fmt.Errorf("remote.base_url is required in remote mode")
		}
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeLocal, ModeRemote, c.Mode)
	}
	return nil
}
