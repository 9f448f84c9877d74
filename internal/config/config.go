package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "configs/config.yaml"
	PathEnv     = "SHOPVISIT_CONFIG_PATH"
)

const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

type Config struct {
	Backend struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
		Burst           int     `yaml:"burst"`
	} `yaml:"backend"`

	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Schedule struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"schedule"`

	Merge struct {
		MaxParallel int `yaml:"max_parallel"`
	} `yaml:"merge"`

	API struct {
		Port int `yaml:"port"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
}

// PathFromEnv returns the config path from SHOPVISIT_CONFIG_PATH or the default.
func PathFromEnv() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML config at path. A .env file next to the working directory is
// loaded first so its variables can be referenced as ${VAR}.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageSQLite
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/shopvisit.db"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "shopvisit"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == StorageSQLite {
		if err = os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// Validate checks fields that have no usable default.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	switch c.Storage.Driver {
	case StorageSQLite:
	case StorageRedis:
		if c.Redis.Address == "" {
			return errors.New("redis.address is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	if c.Backend.CacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Backend.CacheTTLSeconds) * time.Second
}

func (c *Config) RateLimit() (perSecond float64, burst int) {
	perSecond, burst = c.Backend.RatePerSecond, c.Backend.Burst
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = 5
	}
	return perSecond, burst
}

// Location is the zone candidate slots are interpreted in; empty means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) MergeParallelism() int {
	if c.Merge.MaxParallel <= 0 {
		return 4
	}
	return c.Merge.MaxParallel
}

func (c *Config) UseRedis() bool {
	return c.Redis.Address != ""
}
