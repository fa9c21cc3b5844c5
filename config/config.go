// Package config loads the request governance settings from a yaml file
// and the environment, with documented defaults for every value.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/dashops/secret"
)

// Config stores all the governance-layer configuration.
type Config struct {
	Cache     CacheConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Sweep     SweepConfig
	Observe   ObserveConfig
}

// CacheConfig stores the cache TTL policy.
type CacheConfig struct {
	DefaultTTL time.Duration `mapstructure:"defaultTTL"`
	MaxTTL     time.Duration `mapstructure:"maxTTL"`
}

// RedisConfig stores the durable tier connection settings. The durable tier
// is optional; with Enabled false the cache runs volatile-only.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig stores the default quota.
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"maxRequests"`
	Window      time.Duration `mapstructure:"window"`
}

// SweepConfig stores the cleanup cadence.
type SweepConfig struct {
	Interval time.Duration
}

// ObserveConfig stores telemetry settings.
type ObserveConfig struct {
	ServiceName     string  `mapstructure:"serviceName"`
	Version         string  `mapstructure:"version"`
	LogLevel        string  `mapstructure:"logLevel"`
	MetricsExporter string  `mapstructure:"metricsExporter"`
	TracingExporter string  `mapstructure:"tracingExporter"`
	SamplePct       float64 `mapstructure:"samplePct"`
}

// Load reads configuration from dashops.yaml in the given directory (or the
// working directory when empty) plus matching environment variables. A
// missing file is not an error; defaults cover every value.
func Load(dir string) (*Config, error) {
	v := viper.New()

	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	v.SetConfigName("dashops")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("dashops")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	// Connection settings may reference credentials as ${VAR}
	var err error
	if cfg.Redis.Addr, err = secret.ExpandEnv(cfg.Redis.Addr); err != nil {
		return nil, fmt.Errorf("config: redis.addr: %w", err)
	}
	if cfg.Redis.Password, err = secret.ExpandEnv(cfg.Redis.Password); err != nil {
		return nil, fmt.Errorf("config: redis.password: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.defaultTTL", 5*time.Minute)
	v.SetDefault("cache.maxTTL", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.maxRequests", 60)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("sweep.interval", time.Minute)

	v.SetDefault("observe.serviceName", "dashops")
	v.SetDefault("observe.version", "")
	v.SetDefault("observe.logLevel", "info")
	v.SetDefault("observe.metricsExporter", "none")
	v.SetDefault("observe.tracingExporter", "none")
	v.SetDefault("observe.samplePct", 1.0)
}
