// Package config loads moon's process configuration: store location, key
// material, HTTP server settings and logging.
//
// Files may be YAML (.yaml, .yml) or CUE (.cue). Environment variables
// override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Config holds all moon configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" json:"store"`
	Keys    KeysConfig    `yaml:"keys" json:"keys"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// KeysConfig holds X25519 key material, base64 encoded. Each key may be
// given inline or as a file path, not both.
type KeysConfig struct {
	Public      string `yaml:"public" json:"public"`
	Private     string `yaml:"private" json:"private"`
	PublicFile  string `yaml:"public_file" json:"public_file"`
	PrivateFile string `yaml:"private_file" json:"private_file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string  `yaml:"addr" json:"addr"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
}

// Environment variables that override file values.
const (
	EnvDB         = "MOON_DB"
	EnvPublicKey  = "MOON_PUBLIC_KEY"
	EnvPrivateKey = "MOON_PRIVATE_KEY"
	EnvAddr       = "MOON_ADDR"
	EnvLogLevel   = "MOON_LOG_LEVEL"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "moon.db"},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8787",
			RateLimitRPS:   30,
			RateLimitBurst: 60,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from path on top of the defaults, then applies
// environment overrides. An empty path or a file that does not exist
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			// An empty document decodes to io.EOF; keep the defaults.
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		return nil
	case ".cue":
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return err
		}
		return v.Decode(cfg)
	default:
		return fmt.Errorf("unsupported config extension %q (want .yaml, .yml or .cue)", ext)
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvDB); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvPublicKey); v != "" {
		c.Keys.Public = v
		c.Keys.PublicFile = ""
	}
	if v := os.Getenv(EnvPrivateKey); v != "" {
		c.Keys.Private = v
		c.Keys.PrivateFile = ""
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is empty"))
	}
	if c.Keys.Public != "" && c.Keys.PublicFile != "" {
		errs = append(errs, errors.New("keys.public and keys.public_file are both set"))
	}
	if c.Keys.Private != "" && c.Keys.PrivateFile != "" {
		errs = append(errs, errors.New("keys.private and keys.private_file are both set"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_rps must be positive, got %v", c.Server.RateLimitRPS))
	}
	if c.Server.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("server.rate_limit_burst must be at least 1, got %d", c.Server.RateLimitBurst))
	}
	if !slices.Contains(validLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (valid: %v)", c.Logging.Level, validLevels))
	}
	if !slices.Contains(validFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (valid: %v)", c.Logging.Format, validFormats))
	}
	return errors.Join(errs...)
}

// KeyMaterial returns the base64 public and private keys, reading them
// from files where configured. Missing keys come back empty.
func (c *Config) KeyMaterial() (public, private string, err error) {
	public, err = inlineOrFile(c.Keys.Public, c.Keys.PublicFile)
	if err != nil {
		return "", "", fmt.Errorf("public key: %w", err)
	}
	private, err = inlineOrFile(c.Keys.Private, c.Keys.PrivateFile)
	if err != nil {
		return "", "", fmt.Errorf("private key: %w", err)
	}
	return public, private, nil
}

func inlineOrFile(inline, path string) (string, error) {
	if inline != "" || path == "" {
		return inline, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SlogLevel converts Level to a slog.Level. Unknown values map to Info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
