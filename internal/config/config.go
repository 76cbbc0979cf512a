// Package config loads radar configuration from a YAML file, .env and RADAR_* variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"volatility-radar/internal/feed"
	"volatility-radar/internal/pipeline"
	"volatility-radar/internal/publish"
	"volatility-radar/internal/scoring"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// EnvPrefix prefixes environment overrides, e.g. RADAR_SCORING_QUOTE_SUFFIX.
const EnvPrefix = "RADAR"

type Config struct {
	Feed    FeedConfig    `mapstructure:"feed"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Supply  SupplyConfig  `mapstructure:"supply"`
	Publish PublishConfig `mapstructure:"publish"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
}

type FeedConfig struct {
	URL               string        `mapstructure:"url"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type ScoringConfig struct {
	QuoteSuffix         string              `mapstructure:"quote_suffix"`
	VolatilityThreshold float64             `mapstructure:"volatility_threshold"`
	VolatilityTopN      int                 `mapstructure:"volatility_top_n"`
	MarketCapTopN       int                 `mapstructure:"market_cap_top_n"`
	Magnitudes          []scoring.Magnitude `mapstructure:"magnitudes"`
}

type SupplyConfig struct {
	// File is a YAML seed loaded at startup. Optional.
	File string `mapstructure:"file"`
	// PostgresDSN selects the postgres store. Empty keeps supply in memory.
	PostgresDSN     string        `mapstructure:"postgres_dsn"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type PublishConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
	Redis RedisConfig `mapstructure:"redis"`
}

// KafkaConfig enables the Kafka sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RedisConfig enables the Redis sink when Addr is non-empty.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	fc := feed.DefaultConfig()
	v.SetDefault("feed.url", feed.DefaultURL)
	v.SetDefault("feed.reconnect_delay", fc.ReconnectDelay)
	v.SetDefault("feed.max_reconnect_delay", fc.MaxReconnectDelay)
	v.SetDefault("feed.ping_interval", fc.PingInterval)
	v.SetDefault("feed.read_timeout", fc.ReadTimeout)
	v.SetDefault("feed.write_timeout", fc.WriteTimeout)

	pc := pipeline.DefaultConfig()
	v.SetDefault("scoring.quote_suffix", pc.QuoteSuffix)
	v.SetDefault("scoring.volatility_threshold", pc.VolatilityThreshold)
	v.SetDefault("scoring.volatility_top_n", pc.VolatilityTopN)
	v.SetDefault("scoring.market_cap_top_n", pc.MarketCapTopN)
	v.SetDefault("scoring.magnitudes", pc.Magnitudes)

	v.SetDefault("supply.file", "")
	v.SetDefault("supply.postgres_dsn", "")
	v.SetDefault("supply.refresh_interval", 5*time.Minute)

	v.SetDefault("publish.kafka.brokers", []string{})
	v.SetDefault("publish.kafka.topic", publish.DefaultKafkaTopic)
	v.SetDefault("publish.redis.addr", "")
	v.SetDefault("publish.redis.password", "")
	v.SetDefault("publish.redis.db", 0)
	v.SetDefault("publish.redis.key", publish.DefaultRedisKey)
	v.SetDefault("publish.redis.ttl", publish.DefaultRedisTTL)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration in increasing priority: defaults, the YAML file at
// path (skipped when path is empty), then RADAR_* environment variables.
// A .env file in the working directory is loaded first and never overrides
// variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges. Errors wrap ErrInvalid.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("%w: feed.url is empty", ErrInvalid)
	}
	if c.Feed.ReconnectDelay <= 0 || c.Feed.MaxReconnectDelay < c.Feed.ReconnectDelay {
		return fmt.Errorf("%w: feed reconnect delays %v/%v", ErrInvalid, c.Feed.ReconnectDelay, c.Feed.MaxReconnectDelay)
	}
	if c.Feed.PingInterval <= 0 || c.Feed.ReadTimeout <= 0 || c.Feed.WriteTimeout <= 0 {
		return fmt.Errorf("%w: feed intervals and timeouts must be positive", ErrInvalid)
	}

	s := c.Scoring
	if s.QuoteSuffix == "" {
		return fmt.Errorf("%w: scoring.quote_suffix is empty", ErrInvalid)
	}
	if math.IsNaN(s.VolatilityThreshold) || s.VolatilityThreshold < 0 {
		return fmt.Errorf("%w: scoring.volatility_threshold %v", ErrInvalid, s.VolatilityThreshold)
	}
	if s.VolatilityTopN < 0 || s.MarketCapTopN < 0 {
		return fmt.Errorf("%w: top-n sizes must not be negative", ErrInvalid)
	}
	for i, m := range s.Magnitudes {
		if m.Threshold <= 0 || m.Suffix == "" {
			return fmt.Errorf("%w: scoring.magnitudes[%d] needs a positive threshold and a suffix", ErrInvalid, i)
		}
		if i > 0 && m.Threshold <= s.Magnitudes[i-1].Threshold {
			return fmt.Errorf("%w: scoring.magnitudes must be ascending", ErrInvalid)
		}
	}

	if c.Supply.RefreshInterval < 0 {
		return fmt.Errorf("%w: supply.refresh_interval %v", ErrInvalid, c.Supply.RefreshInterval)
	}
	if len(c.Publish.Kafka.Brokers) > 0 && c.Publish.Kafka.Topic == "" {
		return fmt.Errorf("%w: publish.kafka.topic is empty", ErrInvalid)
	}
	if c.Publish.Redis.Addr != "" && c.Publish.Redis.TTL <= 0 {
		return fmt.Errorf("%w: publish.redis.ttl must be positive", ErrInvalid)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr is empty", ErrInvalid)
	}
	return nil
}

// PipelineConfig projects the engine settings.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		QuoteSuffix:         c.Scoring.QuoteSuffix,
		VolatilityThreshold: c.Scoring.VolatilityThreshold,
		VolatilityTopN:      c.Scoring.VolatilityTopN,
		MarketCapTopN:       c.Scoring.MarketCapTopN,
		Magnitudes:          c.Scoring.Magnitudes,
	}
}

// FeedClientConfig projects the feed client settings.
func (c *Config) FeedClientConfig() feed.Config {
	fc := feed.DefaultConfig()
	fc.ReconnectDelay = c.Feed.ReconnectDelay
	fc.MaxReconnectDelay = c.Feed.MaxReconnectDelay
	fc.PingInterval = c.Feed.PingInterval
	fc.ReadTimeout = c.Feed.ReadTimeout
	fc.WriteTimeout = c.Feed.WriteTimeout
	return fc
}
