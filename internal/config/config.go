package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/messaging/redis"
	"github.com/jwalitptl/care-api/pkg/worker"
)

const envPrefix = "CARE"

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Access   AccessConfig   `mapstructure:"access"`
	Log      LogConfig      `mapstructure:"log"`
	Ops      OpsConfig      `mapstructure:"ops"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"HOST"`
	Port     int    `mapstructure:"port" envconfig:"PORT"`
	User     string `mapstructure:"user" envconfig:"USER"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"SSLMODE"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"URL"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"MIN_IDLE_CONNS"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size" envconfig:"BATCH_SIZE"`
	PollInterval  time.Duration `mapstructure:"poll_interval" envconfig:"POLL_INTERVAL"`
	RetryAttempts int           `mapstructure:"retry_attempts" envconfig:"RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" envconfig:"RETRY_DELAY"`
	PublishRPS    float64       `mapstructure:"publish_rps" envconfig:"PUBLISH_RPS"`
	Channel       string        `mapstructure:"channel" envconfig:"CHANNEL"`
	RetentionDays int           `mapstructure:"retention_days" envconfig:"RETENTION_DAYS"`
	CleanupEvery  time.Duration `mapstructure:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
}

type AccessConfig struct {
	CacheTTL        time.Duration `mapstructure:"cache_ttl" envconfig:"CACHE_TTL"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" envconfig:"LEVEL"`
	Console bool   `mapstructure:"console" envconfig:"CONSOLE"`
}

type OpsConfig struct {
	Port int `mapstructure:"port" envconfig:"PORT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "care")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", "5s")
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", "1s")
	v.SetDefault("outbox.publish_rps", 200)
	v.SetDefault("outbox.channel", "care.events")
	v.SetDefault("outbox.retention_days", 7)
	v.SetDefault("outbox.cleanup_interval", "1h")

	v.SetDefault("access.cache_ttl", "5m")
	v.SetDefault("access.cleanup_interval", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("ops.port", 8081)
}

// LoadConfig reads config.yml from path (or the standard search paths when
// path is empty) and then applies CARE_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Outbox.BatchSize <= 0 {
		problems = append(problems, "outbox.batch_size must be greater than 0")
	}
	if c.Outbox.PollInterval <= 0 {
		problems = append(problems, "outbox.poll_interval must be greater than 0")
	}
	if c.Outbox.RetryAttempts <= 0 {
		problems = append(problems, "outbox.retry_attempts must be greater than 0")
	}
	if c.Outbox.RetryDelay <= 0 {
		problems = append(problems, "outbox.retry_delay must be greater than 0")
	}
	if c.Outbox.PublishRPS <= 0 {
		problems = append(problems, "outbox.publish_rps must be greater than 0")
	}
	if c.Access.CacheTTL <= 0 {
		problems = append(problems, "access.cache_ttl must be greater than 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.Redis.URL,
		MaxRetries:   c.Redis.MaxRetries,
		RetryBackoff: c.Redis.RetryBackoff,
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: c.Redis.MinIdleConns,
	}
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		PublishRPS:    c.PublishRPS,
		Channel:       c.Channel,
	}
}

func (c *LogConfig) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      logger.ParseLevel(c.Level),
		TimeFormat: time.RFC3339,
		Console:    c.Console,
	}
}
