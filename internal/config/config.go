// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; credentials go to the session store.
// The file may be TOML (config.toml, preferred when present) or JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/store"
	"tokenkeeper/cli/internal/xdg"
)

// Environment overrides, applied after the file is read.
const (
	EnvStore       = "TOKENKEEPER_STORE"
	EnvAPIKey      = "TOKENKEEPER_API_KEY"
	EnvRedisAddr   = "TOKENKEEPER_REDIS_ADDR"
	EnvPostgresDSN = "TOKENKEEPER_POSTGRES_DSN"
	EnvVerbose     = "TOKENKEEPER_VERBOSE"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel     string         `toml:"log_level" json:"log_level"`
	LogFormat    string         `toml:"log_format" json:"log_format"`
	ExpiryMargin Duration       `toml:"expiry_margin" json:"expiry_margin"`
	Store        StoreConfig    `toml:"store" json:"store"`
	Identity     IdentityConfig `toml:"identity" json:"identity"`
}

// StoreConfig selects and configures the durable session store.
// Namespace prefixes keyring item names and Redis keys, and fills the SQL
// namespace column. Empty means "tokenkeeper". The file and memory stores
// hold a single session and ignore it.
type StoreConfig struct {
	Backend     string `toml:"backend" json:"backend"`
	Namespace   string `toml:"namespace,omitempty" json:"namespace,omitempty"`
	FilePath    string `toml:"file_path,omitempty" json:"file_path,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty" json:"sqlite_path,omitempty"`
	RedisAddr   string `toml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisDB     int    `toml:"redis_db,omitempty" json:"redis_db,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty" json:"postgres_dsn,omitempty"`
}

// IdentityConfig points at the identity provider.
type IdentityConfig struct {
	BaseURL string `toml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey  string `toml:"api_key,omitempty" json:"api_key,omitempty"`
}

// Duration is a time.Duration written as "1h30m". Bare numbers are seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var secs float64
		if nerr := json.Unmarshal(b, &secs); nerr != nil {
			return fmt.Errorf("duration must be a string like \"1h\": %w", err)
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		LogLevel:     "warn",
		LogFormat:    "text",
		ExpiryMargin: Duration(time.Hour),
		Store:        StoreConfig{Backend: store.BackendKeyring},
	}
}

// Path returns the path to the config file: config.toml when it exists,
// otherwise config.json.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	tomlPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	return filepath.Join(dir, "config.json"), nil
}

func isTOML(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".toml")
}

// Load reads configuration from the default path.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(p)
}

// LoadFile reads configuration from p; a missing file yields defaults.
// Environment overrides are applied and the result is validated.
func LoadFile(p string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, err
	}
	if err == nil {
		if isTOML(p) {
			_, err = toml.Decode(string(data), &c)
		} else {
			err = json.Unmarshal(data, &c)
		}
		if err != nil {
			return c, apperrors.Wrap(apperrors.ConfigInvalid, "parse "+p, err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvStore); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Identity.APIKey = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Store.PostgresDSN = v
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvVerbose)); err == nil && v {
		c.LogLevel = "debug"
	}
}

// Validate rejects settings the CLI cannot act on.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case store.BackendKeyring, store.BackendFile, store.BackendSQLite, store.BackendMemory:
	case store.BackendRedis:
		if c.Store.RedisAddr == "" {
			return apperrors.New(apperrors.ConfigInvalid, "redis store needs store.redis_addr")
		}
	case store.BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return apperrors.New(apperrors.ConfigInvalid, "postgres store needs store.postgres_dsn")
		}
	default:
		return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if c.ExpiryMargin < 0 {
		return apperrors.New(apperrors.ConfigInvalid, "expiry_margin must not be negative")
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("unknown log format %q", c.LogFormat))
	}
	return nil
}

// Save writes configuration to the default path.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(p, c)
}

// SaveFile writes configuration with 0600 permissions, as TOML when p
// ends in .toml and as JSON otherwise.
func SaveFile(p string, c Config) error {
	if isTOML(p) {
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		if err := toml.NewEncoder(f).Encode(c); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return f.Close()
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
