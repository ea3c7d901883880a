package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration shared by cmd/server and cmd/syncctl.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Fanout      FanoutConfig   `mapstructure:"fanout"`
	Fetch       FetchConfig    `mapstructure:"fetch"`
	Sync        SyncConfig     `mapstructure:"sync"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds the Postgres DSN. An empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection settings. An empty URL selects the
// in-process lease.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig enables the event mirror when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	Partitions int32    `mapstructure:"partitions"`
	Buffer     int      `mapstructure:"buffer"`
}

type AuthConfig struct {
	SigningKey string `mapstructure:"signing_key"`
	Issuer     string `mapstructure:"issuer"`
	Audience   string `mapstructure:"audience"`
	AdminToken string `mapstructure:"admin_token"`
}

type FanoutConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	OverflowPolicy string        `mapstructure:"overflow_policy"`
	SnapshotWindow time.Duration `mapstructure:"snapshot_window"`
	SnapshotLimit  int           `mapstructure:"snapshot_limit"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
}

type FetchConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	RTSURL       string        `mapstructure:"rts_url"`
	FormsURL     string        `mapstructure:"forms_url"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	// FallbackURLs are community sources; their data is never trusted as verified.
	FallbackURLs []string `mapstructure:"fallback_urls"`
}

type SyncConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	LiveSchedule     string        `mapstructure:"live_schedule"`
	ResultsSchedule  string        `mapstructure:"results_schedule"`
	AnnounceSchedule string        `mapstructure:"announce_schedule"`
	ArchiveSchedule  string        `mapstructure:"archive_schedule"`
	LeaseTTL         time.Duration `mapstructure:"lease_ttl"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	ArchiveAfter     time.Duration `mapstructure:"archive_after"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads an optional config file, then .env and ELECTION_* environment
// variables, on top of defaults.
func Load(configPath string) (*Config, error) {
	// .env is a development convenience; a missing file is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("ELECTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "election.events")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.buffer", 1024)

	v.SetDefault("auth.signing_key", "dev-secret-key-change-in-production")
	v.SetDefault("auth.issuer", "election-accounts")
	v.SetDefault("auth.audience", "election-monitor")
	v.SetDefault("auth.admin_token", "")

	v.SetDefault("fanout.queue_size", 256)
	v.SetDefault("fanout.overflow_policy", "drop_oldest")
	v.SetDefault("fanout.snapshot_window", "1h")
	v.SetDefault("fanout.snapshot_limit", 50)
	v.SetDefault("fanout.write_timeout", "10s")
	v.SetDefault("fanout.ping_interval", "30s")

	v.SetDefault("fetch.base_url", "https://www.iebc.or.ke")
	v.SetDefault("fetch.rts_url", "https://www.iebc.or.ke/election/?rts=")
	v.SetDefault("fetch.forms_url", "https://forms.iebc.or.ke")
	v.SetDefault("fetch.min_interval", "2s")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.user_agent", "Kenya Elections Tracker - Civic Tech Platform")
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("fetch.fallback_urls", []string{})

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.live_schedule", "*/5 * * * *")
	v.SetDefault("sync.results_schedule", "0 * * * *")
	v.SetDefault("sync.announce_schedule", "0 6 * * *")
	v.SetDefault("sync.archive_schedule", "0 3 * * 0")
	v.SetDefault("sync.lease_ttl", "15m")
	v.SetDefault("sync.max_concurrent", 2)
	v.SetDefault("sync.archive_after", "17520h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.max_backups", 5)
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key is required")
	}
	if c.Environment == "production" && c.Auth.SigningKey == "dev-secret-key-change-in-production" {
		return errors.New("auth.signing_key must be overridden in production")
	}
	if c.Fanout.QueueSize <= 0 {
		return errors.New("fanout.queue_size must be positive")
	}
	switch c.Fanout.OverflowPolicy {
	case "drop_oldest", "disconnect":
	default:
		return fmt.Errorf("fanout.overflow_policy must be drop_oldest or disconnect, got %q", c.Fanout.OverflowPolicy)
	}
	if c.Fanout.SnapshotWindow <= 0 {
		return errors.New("fanout.snapshot_window must be positive")
	}
	if c.Fetch.MinInterval < 0 {
		return errors.New("fetch.min_interval must not be negative")
	}
	if c.Fetch.Timeout <= 0 {
		return errors.New("fetch.timeout must be positive")
	}
	if c.Sync.MaxConcurrent <= 0 {
		return errors.New("sync.max_concurrent must be positive")
	}
	if c.Sync.LeaseTTL <= 0 {
		return errors.New("sync.lease_ttl must be positive")
	}
	return nil
}
