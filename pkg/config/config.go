// Package config loads the eastworld CLI configuration. Later sources win:
// defaults, the YAML file, a .env file, EASTWORLD_* environment variables,
// and finally command line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nstogner/eastworld-studio/pkg/backend"
	"github.com/nstogner/eastworld-studio/pkg/client"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "EASTWORLD_"

// Config represents the complete CLI configuration.
type Config struct {
	// BaseURL is the Content Service address.
	BaseURL string `yaml:"base_url"`
	// Token is sent as a bearer token when set.
	Token string `yaml:"token"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFile receives logs while the chat tester owns the terminal.
	LogFile string `yaml:"log_file"`
	// TranscriptsDir holds recorded chat transcripts.
	TranscriptsDir string `yaml:"transcripts_dir"`

	Serve   ServeConfig   `yaml:"serve"`
	Backend BackendConfig `yaml:"backend"`
}

// ServeConfig configures the dev server.
type ServeConfig struct {
	Addr string `yaml:"addr"`
	// Target is where /api is proxied. Defaults to BaseURL.
	Target    string `yaml:"target"`
	StaticDir string `yaml:"static_dir"`
}

// BackendConfig configures the locally launched Content Service.
type BackendConfig struct {
	Image string            `yaml:"image"`
	Port  int               `yaml:"port"`
	Env   map[string]string `yaml:"env"`
}

// Dir returns the directory holding the default config file and state.
func Dir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "eastworld")
	}
	return ".eastworld"
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		BaseURL:        client.DefaultBaseURL,
		LogLevel:       "info",
		LogFile:        filepath.Join(Dir(), "eastworld.log"),
		TranscriptsDir: filepath.Join(Dir(), "transcripts"),
		Serve: ServeConfig{
			Addr: "127.0.0.1:5173",
		},
		Backend: BackendConfig{
			Image: backend.DefaultImage,
			Port:  backend.DefaultPort,
		},
	}
}

// Options says where Load looks.
type Options struct {
	// File is an explicit config file, which must exist. When empty the
	// DefaultPath is read if present.
	File string
	// DotEnv is the .env file to read if present. Defaults to ".env".
	DotEnv string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds the configuration from every source but flags.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	path, required := opts.File, true
	if path == "" {
		path, required = DefaultPath(), false
	}
	if err := cfg.mergeFile(path, required); err != nil {
		return nil, err
	}

	dotenvPath := opts.DotEnv
	if dotenvPath == "" {
		dotenvPath = ".env"
	}
	dotenv, err := godotenv.Read(dotenvPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	// Real environment variables take precedence over .env entries.
	lookup := func(key string) string {
		if v := getenv(EnvPrefix + key); v != "" {
			return v
		}
		return dotenv[EnvPrefix+key]
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return nil, err
	}

	if cfg.Serve.Target == "" {
		cfg.Serve.Target = cfg.BaseURL
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	slog.Debug("Loaded config file", "path", path)
	return nil
}

func (c *Config) mergeEnv(lookup func(string) string) error {
	strs := map[string]*string{
		"BASE_URL":         &c.BaseURL,
		"TOKEN":            &c.Token,
		"LOG_LEVEL":        &c.LogLevel,
		"LOG_FILE":         &c.LogFile,
		"TRANSCRIPTS_DIR":  &c.TranscriptsDir,
		"SERVE_ADDR":       &c.Serve.Addr,
		"SERVE_TARGET":     &c.Serve.Target,
		"SERVE_STATIC_DIR": &c.Serve.StaticDir,
		"BACKEND_IMAGE":    &c.Backend.Image,
	}
	for key, dst := range strs {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}
	if v := lookup("BACKEND_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBACKEND_PORT: %w", EnvPrefix, err)
		}
		c.Backend.Port = port
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"base_url": c.BaseURL, "serve.target": c.Serve.Target} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Backend.Port < 0 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend.port out of range: %d", c.Backend.Port)
	}
	return nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ParseLevel parses a slog level name, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return l, fmt.Errorf("invalid log_level %q", s)
	}
	return l, nil
}

// ClientConfig returns the options for the Content Service client.
func (c *Config) ClientConfig() client.Config {
	return client.Config{BaseURL: c.BaseURL, Token: c.Token}
}

// BackendOptions returns the options for launching the Content Service.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{Image: c.Backend.Image, Port: c.Backend.Port, Env: c.Backend.Env}
}
