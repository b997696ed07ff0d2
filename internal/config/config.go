package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"track-finder/internal/filter"
	"track-finder/internal/overpass"
	"track-finder/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Filter    FilterConfig    `yaml:"filter" mapstructure:"filter"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the region store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OverpassConfig configures the map data service client.
type OverpassConfig struct {
	URL              string  `yaml:"url" mapstructure:"url"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutMs        int     `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	QueryTimeoutSecs int     `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// NominatimConfig configures the county lookup fallback.
type NominatimConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	URL     string `yaml:"url" mapstructure:"url"`
}

// FilterConfig configures the road filter.
type FilterConfig struct {
	MinLengthMiles float64  `yaml:"min_length_miles" mapstructure:"min_length_miles"`
	ExcludeAccess  []string `yaml:"exclude_access" mapstructure:"exclude_access"`
}

// CacheConfig configures the query result cache. An empty Addr disables it.
type CacheConfig struct {
	Addr       string `yaml:"addr" mapstructure:"addr"`
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// Load reads configuration from file and environment. With an empty path
// an optional config.yaml in the working directory is used.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("TRACKFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.path", "data/regions.db")
	v.SetDefault("overpass.url", overpass.DefaultBaseURL)
	v.SetDefault("overpass.user_agent", overpass.DefaultUserAgent)
	v.SetDefault("overpass.timeout_ms", 60000)
	v.SetDefault("overpass.max_retries", 2)
	v.SetDefault("overpass.initial_backoff_ms", 500)
	v.SetDefault("overpass.query_timeout_secs", overpass.DefaultQueryTimeoutSecs)
	v.SetDefault("overpass.rate_per_sec", 0.5)
	v.SetDefault("nominatim.enabled", true)
	v.SetDefault("nominatim.url", "https://nominatim.openstreetmap.org")
	v.SetDefault("filter.min_length_miles", 1.0)
	v.SetDefault("filter.exclude_access", filter.DefaultExcludeAccess)
	v.SetDefault("cache.addr", "")
	v.SetDefault("cache.ttl_minutes", 60)

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Overpass.TimeoutMs <= 0 {
		return eris.New("config: overpass.timeout_ms must be positive")
	}
	if c.Overpass.MaxRetries < 0 {
		return eris.New("config: overpass.max_retries must not be negative")
	}
	if c.Filter.MinLengthMiles < 0 {
		return eris.New("config: filter.min_length_miles must not be negative")
	}
	return nil
}

// Retry returns the executor retry settings.
func (c OverpassConfig) Retry() resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig()
	retry.MaxRetries = c.MaxRetries
	retry.Timeout = time.Duration(c.TimeoutMs) * time.Millisecond
	if c.InitialBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	return retry
}

// Options returns the Overpass client options.
func (c OverpassConfig) Options() overpass.Options {
	return overpass.Options{
		BaseURL:    c.URL,
		UserAgent:  c.UserAgent,
		Retry:      c.Retry(),
		RatePerSec: c.RatePerSec,
	}
}

// QueryOptions returns the query builder settings.
func (c *Config) QueryOptions() overpass.QueryOptions {
	return overpass.QueryOptions{
		TimeoutSecs:   c.Overpass.QueryTimeoutSecs,
		ExcludeAccess: c.Filter.ExcludeAccess,
	}
}

// Rules returns the filter rules.
func (c FilterConfig) Rules() filter.Rules {
	return filter.Rules{
		MinLengthMiles: c.MinLengthMiles,
		ExcludeAccess:  c.ExcludeAccess,
	}
}

// CacheTTL returns the cache entry lifetime.
func (c CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
