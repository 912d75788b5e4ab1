package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppName string
	Env     string

	APIBaseURL  string
	BrokerURL   string
	HTTPTimeout time.Duration

	StorePath   string
	StoreSecret string

	ReconnectDelay time.Duration
	RateLimit      float64
	RateBurst      int

	LogLevel    string
	Debug       bool
	MetricsAddr string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppName: getEnv("PING_APP_NAME", "ping"),
		Env:     getEnv("PING_ENV", "development"),

		APIBaseURL:  strings.TrimRight(getEnv("PING_API_URL", "http://localhost:8081"), "/"),
		BrokerURL:   getEnv("PING_BROKER_URL", "ws://localhost:8081/ws/websocket"),
		HTTPTimeout: getEnvAsDuration("PING_HTTP_TIMEOUT", 0),

		StorePath:   getEnv("PING_STORE_PATH", defaultStorePath()),
		StoreSecret: os.Getenv("PING_STORE_SECRET"),

		ReconnectDelay: getEnvAsDuration("PING_RECONNECT_DELAY", 5*time.Second),
		RateLimit:      getEnvAsFloat("PING_RATE_LIMIT", 0),
		RateBurst:      getEnvAsInt("PING_RATE_BURST", 1),

		LogLevel:    getEnv("PING_LOG_LEVEL", "info"),
		Debug:       getEnvAsBool("PING_DEBUG", false),
		MetricsAddr: os.Getenv("PING_METRICS_ADDR"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail late, on first use.
func (c *Config) Validate() error {
	if err := checkURL("PING_API_URL", c.APIBaseURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("PING_BROKER_URL", c.BrokerURL, "ws", "wss"); err != nil {
		return err
	}
	if c.StorePath == "" {
		return fmt.Errorf("PING_STORE_PATH is required")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("PING_RECONNECT_DELAY must be positive, got %s", c.ReconnectDelay)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("PING_HTTP_TIMEOUT must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("PING_RATE_LIMIT must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("PING_RATE_BURST must be at least 1 when PING_RATE_LIMIT is set")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host in %q", key, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme must be one of %s, got %q", key, strings.Join(schemes, ", "), u.Scheme)
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ping.db"
	}
	return filepath.Join(dir, "ping", "credentials.db")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
