// Package config loads gridsync settings from a YAML file with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full gridsync configuration.
type Config struct {
	Remote  Remote  `yaml:"remote"`
	Auth    Auth    `yaml:"auth"`
	Session Session `yaml:"session"`
	Server  Server  `yaml:"server"`
}

// Remote is where an editing session sends its batches.
type Remote struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Auth holds the shared token secret and the session's user.
type Auth struct {
	User     string        `yaml:"user"`
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Session tunes the flush scheduler.
type Session struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
	Cooldown      time.Duration `yaml:"cooldown"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
	SchemaDir     string        `yaml:"schema_dir"`
}

// Server configures the listing store server.
type Server struct {
	Addr        string   `yaml:"addr"`
	Database    string   `yaml:"database"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Remote: Remote{
			URL:     "http://localhost:8787",
			Timeout: 15 * time.Second,
		},
		Auth: Auth{
			User:     "",
			Secret:   "gridsync-dev-secret",
			TokenTTL: time.Hour,
		},
		Session: Session{
			FlushInterval: 5 * time.Second,
			Cooldown:      10 * time.Second,
			CallTimeout:   20 * time.Second,
		},
		Server: Server{
			Addr:     ":8787",
			Database: "./gridsync.db",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Remote.URL = getenv("GRIDSYNC_REMOTE_URL", c.Remote.URL)
	c.Remote.Timeout = getenvDuration("GRIDSYNC_REMOTE_TIMEOUT", c.Remote.Timeout)
	c.Auth.User = getenv("GRIDSYNC_USER", c.Auth.User)
	c.Auth.Secret = getenv("GRIDSYNC_SECRET", c.Auth.Secret)
	c.Auth.TokenTTL = getenvDuration("GRIDSYNC_TOKEN_TTL", c.Auth.TokenTTL)
	c.Session.FlushInterval = getenvDuration("GRIDSYNC_FLUSH_INTERVAL", c.Session.FlushInterval)
	c.Session.Cooldown = getenvDuration("GRIDSYNC_COOLDOWN", c.Session.Cooldown)
	c.Session.CallTimeout = getenvDuration("GRIDSYNC_CALL_TIMEOUT", c.Session.CallTimeout)
	c.Session.SchemaDir = getenv("GRIDSYNC_SCHEMA_DIR", c.Session.SchemaDir)
	c.Server.Addr = getenv("GRIDSYNC_ADDR", c.Server.Addr)
	c.Server.Database = getenv("GRIDSYNC_DB", c.Server.Database)
	if origins := getenv("GRIDSYNC_CORS_ORIGINS", ""); origins != "" {
		c.Server.CORSOrigins = strings.Split(origins, ",")
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"remote.timeout", c.Remote.Timeout},
		{"auth.token_ttl", c.Auth.TokenTTL},
		{"session.flush_interval", c.Session.FlushInterval},
		{"session.call_timeout", c.Session.CallTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", p.name, p.d))
		}
	}
	if c.Session.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("session.cooldown must not be negative, got %s", c.Session.Cooldown))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

// getenvDuration accepts a Go duration ("30s") or whole seconds ("30").
// Unparseable values keep the fallback.
func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
