// ABOUTME: Configuration loading and parsing for compliance-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults and env-only mode

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrNoConfigFile is returned by Resolve when no config file exists.
var ErrNoConfigFile = errors.New("no config file found")

// ErrNoCredential is returned by Validate when HTTP auth has no credential
// and is not explicitly disabled.
var ErrNoCredential = errors.New("auth.api_key or auth.jwt_secret is required (or set auth.disabled: true)")

// LoadOption adjusts loading.
type LoadOption func(*loadOptions)

type loadOptions struct {
	streamOnly bool
}

// StreamOnly skips the credential check. The stream transport never
// authenticates, so a stdio-only process may run without one.
func StreamOnly() LoadOption {
	return func(o *loadOptions) { o.streamOnly = true }
}

// Default values applied before validation.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = "8200"
	DefaultDatabasePath      = "compliance.db"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
	DefaultMaxBodyBytes      = 1 << 20
	DefaultCacheTTL          = 5 * time.Minute
	DefaultCacheMaxEntries   = 1024
	DefaultCacheKeyPrefix    = "compliance:"
	DefaultMaxReadBytes      = 10 << 20
)

// Config represents the complete compliance-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Cache    CacheConfig    `yaml:"cache" toml:"cache"`
	Files    FilesConfig    `yaml:"files" toml:"files"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	HTTPAddr     string `yaml:"http_addr" toml:"http_addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`

	ReadHeaderTimeout time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeout   time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout" toml:"read_header_timeout"`
	ShutdownTimeoutRaw   string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig selects and tunes the data store
type DatabaseConfig struct {
	Driver       string `yaml:"driver" toml:"driver"` // sqlite, postgres or memory
	Path         string `yaml:"path" toml:"path"`     // sqlite file
	URL          string `yaml:"url" toml:"url"`       // postgres DSN
	MaxOpenConns int    `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" toml:"max_idle_conns"`
	SeedDemoData bool   `yaml:"seed_demo_data" toml:"seed_demo_data"`

	ConnMaxLifetime    time.Duration `yaml:"-" toml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
}

// AuthConfig holds HTTP credential configuration
type AuthConfig struct {
	APIKey    string `yaml:"api_key" toml:"api_key"`
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	// Disabled must be set explicitly to run without credentials
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

// HasCredential reports whether an API key or JWT secret is configured.
func (a AuthConfig) HasCredential() bool {
	return a.APIKey != "" || a.JWTSecret != ""
}

// CacheConfig configures the lookup cache in front of the store
type CacheConfig struct {
	Driver        string `yaml:"driver" toml:"driver"` // none, memory or redis
	MaxEntries    int    `yaml:"max_entries" toml:"max_entries"`
	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix" toml:"key_prefix"`

	TTL    time.Duration `yaml:"-" toml:"-"`
	TTLRaw string        `yaml:"ttl" toml:"ttl"`
}

// FilesConfig enables the file tools when Root is set
type FilesConfig struct {
	Root         string `yaml:"root" toml:"root"`
	MaxReadBytes int64  `yaml:"max_read_bytes" toml:"max_read_bytes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string, opts ...LoadOption) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(&cfg, opts)
}

// LoadFromEnv builds a config from defaults plus MCP_API_KEY, MCP_JWT_SECRET,
// MCP_HOST, MCP_PORT and DATABASE_URL. Used when no config file exists.
func LoadFromEnv(opts ...LoadOption) (*Config, error) {
	host := envOr("MCP_HOST", DefaultHost)
	port := envOr("MCP_PORT", DefaultPort)

	cfg := Config{
		Server: ServerConfig{HTTPAddr: net.JoinHostPort(host, port)},
		Auth: AuthConfig{
			APIKey:    os.Getenv("MCP_API_KEY"),
			JWTSecret: os.Getenv("MCP_JWT_SECRET"),
		},
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		switch {
		case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
			cfg.Database.Driver = "postgres"
			cfg.Database.URL = url
		case strings.HasPrefix(url, "sqlite://"):
			cfg.Database.Driver = "sqlite"
			// sqlite:///rel.db is relative, sqlite:////abs.db is absolute
			cfg.Database.Path = strings.TrimPrefix(strings.TrimPrefix(url, "sqlite://"), "/")
		default:
			return nil, fmt.Errorf("DATABASE_URL: unsupported scheme in %q", url)
		}
	}

	return finish(&cfg, opts)
}

// Resolve returns the config file path to use. Priority: the explicit flag
// value, COMPLIANCE_CONFIG, then XDG_CONFIG_HOME/compliance-gateway/config.yaml.
// An explicit path is returned even when missing so Load reports it.
// Returns ErrNoConfigFile when only the default location was tried and it
// does not exist.
func Resolve(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if envPath := os.Getenv("COMPLIANCE_CONFIG"); envPath != "" {
		return envPath, nil
	}

	path := DefaultPath()
	if _, err := os.Stat(path); err != nil {
		return path, ErrNoConfigFile
	}
	return path, nil
}

// DefaultPath returns XDG_CONFIG_HOME/compliance-gateway/config.yaml,
// falling back to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "compliance-gateway", "config.yaml")
}

// LoadResolved loads the file Resolve picks, or falls back to LoadFromEnv
// when there is none. Returns the path used, empty in env mode.
func LoadResolved(flagPath string, opts ...LoadOption) (*Config, string, error) {
	path, err := Resolve(flagPath)
	if errors.Is(err, ErrNoConfigFile) {
		cfg, err := LoadFromEnv(opts...)
		return cfg, "", err
	}
	cfg, err := Load(path, opts...)
	return cfg, path, err
}

func finish(cfg *Config, opts []LoadOption) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	err := cfg.Validate()
	if errors.Is(err, ErrNoCredential) && o.streamOnly {
		err = cfg.validate(false)
	}
	if err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = net.JoinHostPort(DefaultHost, DefaultPort)
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "none"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = DefaultCacheKeyPrefix
	}

	if c.Files.MaxReadBytes == 0 {
		c.Files.MaxReadBytes = DefaultMaxReadBytes
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(requireCredential bool) error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or memory, got %q", c.Database.Driver)
	}

	if requireCredential && !c.Auth.HasCredential() && !c.Auth.Disabled {
		return ErrNoCredential
	}

	switch c.Cache.Driver {
	case "none", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("cache.driver must be none, memory or redis, got %q", c.Cache.Driver)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// SlogLevel maps the configured level name onto a slog.Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", l.Level)
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_header_timeout", cfg.Server.ReadHeaderTimeoutRaw, &cfg.Server.ReadHeaderTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"database.conn_max_lifetime", cfg.Database.ConnMaxLifetimeRaw, &cfg.Database.ConnMaxLifetime},
		{"cache.ttl", cfg.Cache.TTLRaw, &cfg.Cache.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
