// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Drops     DropsConfig     `yaml:"drops"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Access    AccessConfig    `yaml:"access"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type StoreConfig struct {
	Type  string      `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DropsConfig struct {
	MaxTTL            time.Duration `yaml:"max_ttl"`
	BurnTimerMax      int           `yaml:"burn_timer_max"`
	MaxPayloadBytes   int           `yaml:"max_payload_bytes"`
	MaxFailedAttempts int           `yaml:"max_failed_attempts"`
}

type RateLimitConfig struct {
	Enabled  bool         `yaml:"enabled"`
	Upload   WindowConfig `yaml:"upload"`
	Retrieve WindowConfig `yaml:"retrieve"`
	Report   WindowConfig `yaml:"report"`
}

// WindowConfig is a fixed-window budget: Requests per Window.
type WindowConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type AccessConfig struct {
	Enabled    bool   `yaml:"enabled"`
	AdminToken string `yaml:"admin_token"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Store: StoreConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
		},
		Drops: DropsConfig{
			MaxTTL:            24 * time.Hour,
			BurnTimerMax:      300,
			MaxPayloadBytes:   33554432, // ~25MB of base64
			MaxFailedAttempts: 3,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Upload:   WindowConfig{Requests: 10, Window: time.Minute},
			Retrieve: WindowConfig{Requests: 5, Window: 5 * time.Minute},
			Report:   WindowConfig{Requests: 10, Window: time.Minute},
		},
		Access: AccessConfig{
			Enabled:    false,
			AdminToken: "",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}

	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}

	if v := os.Getenv("MAX_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Drops.MaxTTL = ttl
		}
	}
	if v := os.Getenv("BURN_TIMER_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Drops.BurnTimerMax = n
		}
	}
	if v := os.Getenv("MAX_PAYLOAD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Drops.MaxPayloadBytes = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("ACCESS_CODES_ENABLED"); v != "" {
		c.Access.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Access.AdminToken = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if c.Store.Type != "memory" && c.Store.Type != "redis" {
		return fmt.Errorf("invalid store type: %s (must be 'memory' or 'redis')", c.Store.Type)
	}

	if c.Store.Type == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when store type is 'redis'")
	}

	if c.Drops.MaxTTL <= 0 {
		return fmt.Errorf("max_ttl must be positive")
	}

	if c.Drops.BurnTimerMax < 0 {
		return fmt.Errorf("burn_timer_max must not be negative")
	}

	if c.Drops.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max_payload_bytes must be positive")
	}

	if c.Drops.MaxFailedAttempts < 1 {
		return fmt.Errorf("max_failed_attempts must be at least 1")
	}

	if c.RateLimit.Enabled {
		for name, w := range map[string]WindowConfig{
			"upload":   c.RateLimit.Upload,
			"retrieve": c.RateLimit.Retrieve,
			"report":   c.RateLimit.Report,
		} {
			if w.Requests < 1 || w.Window <= 0 {
				return fmt.Errorf("invalid rate limit window for %s", name)
			}
		}
	}

	if c.Access.Enabled && c.Access.AdminToken == "" {
		return fmt.Errorf("admin_token is required when access codes are enabled")
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
