// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the application configuration.
type Config struct {
	Environment string `toml:"environment"`

	// Local server settings
	Host string `toml:"host"`
	Port string `toml:"port"`

	// Upstream locations
	BackendURL  string `toml:"backend_url"`
	FrontendURL string `toml:"frontend_url"`

	// Client storage
	DBPath           string `toml:"db_path"`
	EncryptionSecret string `toml:"encryption_secret"` // Used for encrypting the stored token

	Polling   PollingConfig   `toml:"polling"`
	Client    ClientConfig    `toml:"client"`
	Logging   LoggingConfig   `toml:"logging"`
	Redis     RedisConfig     `toml:"redis"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// PollingConfig holds the refresh interval of each view. A zero interval
// fetches once on mount.
type PollingConfig struct {
	Holdings     string `toml:"holdings"`
	Positions    string `toml:"positions"`
	Orders       string `toml:"orders"`
	Watchlist    string `toml:"watchlist"`
	DiscardStale bool   `toml:"discard_stale"`
}

// ClientConfig tunes outgoing backend requests.
type ClientConfig struct {
	Timeout   string  `toml:"timeout"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
	Burst     int     `toml:"burst"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// RedisConfig configures the cross-process logout relay. Empty URL disables it.
type RedisConfig struct {
	URL     string `toml:"url"`
	Channel string `toml:"channel"`
}

// RateLimitConfig limits requests against the local API.
type RateLimitConfig struct {
	Auth float64 `toml:"auth"` // per second
	API  float64 `toml:"api"`  // per second
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Environment:      "development",
		Host:             "localhost",
		Port:             "8080",
		BackendURL:       "http://localhost:3002",
		FrontendURL:      "http://localhost:5173",
		DBPath:           filepath.Join("data", "dashboard.db"),
		EncryptionSecret: "change-me-in-production-32chars!",
		Polling: PollingConfig{
			Holdings:  "2s",
			Positions: "2s",
			Orders:    "0s",
			Watchlist: "5s",
		},
		Client: ClientConfig{
			Timeout:   "10s",
			RateLimit: 10,
			Burst:     20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "",
		},
		Redis: RedisConfig{
			Channel: "dashboard:logout",
		},
		RateLimit: RateLimitConfig{
			Auth: 5.0 / 60.0,
			API:  20,
		},
	}
}

// Load builds the configuration from defaults, the given TOML files (later
// files override earlier ones, missing files are skipped), a .env file and
// DASH_* environment variables.
func Load(paths ...string) (*Config, error) {
	cfg := New()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Environment = getEnv("DASH_ENV", cfg.Environment)
	cfg.Host = getEnv("DASH_HOST", cfg.Host)
	cfg.Port = getEnv("DASH_PORT", cfg.Port)
	cfg.BackendURL = getEnv("DASH_BACKEND_URL", cfg.BackendURL)
	cfg.FrontendURL = getEnv("DASH_FRONTEND_URL", cfg.FrontendURL)
	cfg.DBPath = getEnv("DASH_DB_PATH", cfg.DBPath)
	cfg.EncryptionSecret = getEnv("DASH_ENCRYPTION_SECRET", cfg.EncryptionSecret)

	cfg.Polling.Holdings = getEnv("DASH_POLL_HOLDINGS", cfg.Polling.Holdings)
	cfg.Polling.Positions = getEnv("DASH_POLL_POSITIONS", cfg.Polling.Positions)
	cfg.Polling.Orders = getEnv("DASH_POLL_ORDERS", cfg.Polling.Orders)
	cfg.Polling.Watchlist = getEnv("DASH_POLL_WATCHLIST", cfg.Polling.Watchlist)
	if v := os.Getenv("DASH_POLL_DISCARD_STALE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Polling.DiscardStale = b
		}
	}

	cfg.Client.Timeout = getEnv("DASH_CLIENT_TIMEOUT", cfg.Client.Timeout)
	if v := os.Getenv("DASH_CLIENT_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Client.RateLimit = f
		}
	}

	cfg.Logging.Level = getEnv("DASH_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("DASH_LOG_FORMAT", cfg.Logging.Format)

	cfg.Redis.URL = getEnv("DASH_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Channel = getEnv("DASH_REDIS_CHANNEL", cfg.Redis.Channel)
}

// Validate checks that required values are usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("backend_url is required")
	}
	for name, value := range map[string]string{
		"polling.holdings":  c.Polling.Holdings,
		"polling.positions": c.Polling.Positions,
		"polling.orders":    c.Polling.Orders,
		"polling.watchlist": c.Polling.Watchlist,
		"client.timeout":    c.Client.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// Address returns the full address to bind the server to.
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// LogFormat returns the configured log format. When unset, development
// logs to the console and every other environment logs JSON.
func (c *Config) LogFormat() string {
	if c.Logging.Format != "" {
		return c.Logging.Format
	}
	if c.IsDevelopment() {
		return "console"
	}
	return "json"
}

// IsDevelopment reports whether the engine runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// LoginURL is where unauthenticated users are sent.
func (c *Config) LoginURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/login"
}

// HomeURL is where a forced logout lands.
func (c *Config) HomeURL() string {
	if c.FrontendURL == "" {
		return "/"
	}
	return c.FrontendURL
}

// HoldingsInterval returns the holdings refresh interval.
func (p PollingConfig) HoldingsInterval() time.Duration { return parseDuration(p.Holdings, 2*time.Second) }

// PositionsInterval returns the positions refresh interval.
func (p PollingConfig) PositionsInterval() time.Duration { return parseDuration(p.Positions, 2*time.Second) }

// OrdersInterval returns the orders refresh interval.
func (p PollingConfig) OrdersInterval() time.Duration { return parseDuration(p.Orders, 0) }

// WatchlistInterval returns the watchlist refresh interval.
func (p PollingConfig) WatchlistInterval() time.Duration { return parseDuration(p.Watchlist, 5*time.Second) }

// GetTimeout parses and returns the request timeout.
func (c ClientConfig) GetTimeout() time.Duration { return parseDuration(c.Timeout, 10*time.Second) }

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
