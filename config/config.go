// Package config resolves runtime settings in priority order:
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"disputeflow/dispute"
)

const envPrefix = "DISPUTEFLOW"

// MinJWTSecretLen is the shortest HS256 key the service will sign with.
const MinJWTSecretLen = 32

const (
	PolicyAllowAll = "allow_all"
	PolicyTable    = "table"
)

type Config struct {
	ServiceID string `mapstructure:"service_id"`
	HTTPPort  int    `mapstructure:"http_port"`
	GRPCPort  int    `mapstructure:"grpc_port"`
	LogLevel  string `mapstructure:"log_level"`

	DatabaseURL string `mapstructure:"database_url"`
	MaxDBConns  int32  `mapstructure:"max_db_conns"`

	RedisURL        string        `mapstructure:"redis_url"`
	CatalogCacheTTL time.Duration `mapstructure:"catalog_cache_ttl"`

	KafkaBrokers      []string      `mapstructure:"kafka_brokers"`
	KafkaClientID     string        `mapstructure:"kafka_client_id"`
	KafkaWriteTimeout time.Duration `mapstructure:"kafka_write_timeout"`
	TopicCreated      string        `mapstructure:"topic_created"`
	TopicUpdated      string        `mapstructure:"topic_updated"`

	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	OutboxMaxAttempts  int           `mapstructure:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `mapstructure:"outbox_retry_delay"`

	JWTSecret        string        `mapstructure:"jwt_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	AllowAdminSignup bool          `mapstructure:"allow_admin_signup"`

	TransitionPolicy string              `mapstructure:"transition_policy"`
	Transitions      map[string][]string `mapstructure:"transitions"`

	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	RateBurst    int     `mapstructure:"rate_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_id", "disputeflow")
	v.SetDefault("http_port", 8080)
	v.SetDefault("grpc_port", 9090)
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("max_db_conns", 20)
	v.SetDefault("redis_url", "")
	v.SetDefault("catalog_cache_ttl", 5*time.Minute)
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_client_id", "disputeflow")
	v.SetDefault("kafka_write_timeout", 10*time.Second)
	v.SetDefault("topic_created", dispute.TopicCreated)
	v.SetDefault("topic_updated", dispute.TopicUpdated)
	v.SetDefault("outbox_poll_interval", 2*time.Second)
	v.SetDefault("outbox_batch_size", 100)
	v.SetDefault("outbox_max_attempts", 10)
	v.SetDefault("outbox_retry_delay", 5*time.Second)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("allow_admin_signup", false)
	v.SetDefault("transition_policy", PolicyAllowAll)
	v.SetDefault("rate_limit_rps", 20.0)
	v.SetDefault("rate_burst", 40)
}

// Load reads path when it is non-empty and exists. DISPUTEFLOW_* variables
// override file values; the unprefixed DATABASE_URL, REDIS_URL,
// KAFKA_BROKERS and JWT_SECRET are honoured too.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range map[string]string{
		"database_url":  "DATABASE_URL",
		"redis_url":     "REDIS_URL",
		"kafka_brokers": "KAFKA_BROKERS",
		"jwt_secret":    "JWT_SECRET",
	} {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), alias); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	return cfg, cfg.validate()
}

// splitList accepts both YAML lists and a comma separated env value.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c Config) validate() error {
	switch {
	case c.HTTPPort <= 0 || c.GRPCPort <= 0:
		return fmt.Errorf("config: ports must be positive")
	case c.OutboxBatchSize <= 0:
		return fmt.Errorf("config: outbox_batch_size must be positive")
	case c.OutboxPollInterval <= 0:
		return fmt.Errorf("config: outbox_poll_interval must be positive")
	case c.TransitionPolicy != PolicyAllowAll && c.TransitionPolicy != PolicyTable:
		return fmt.Errorf("config: unknown transition_policy %q", c.TransitionPolicy)
	case c.JWTSecret != "" && len(c.JWTSecret) < MinJWTSecretLen:
		return fmt.Errorf("config: jwt_secret must be at least %d bytes", MinJWTSecretLen)
	}
	return nil
}

// RequireDatabase reports a missing DSN for commands that need Postgres.
func (c Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("config: database_url (or DATABASE_URL) is required")
	}
	return nil
}

// RequireJWTSecret reports a missing signing key for commands that issue or
// verify tokens.
func (c Config) RequireJWTSecret() error {
	if len(c.JWTSecret) < MinJWTSecretLen {
		return fmt.Errorf("config: jwt_secret (or JWT_SECRET) of at least %d bytes is required", MinJWTSecretLen)
	}
	return nil
}

// Policy builds the dispute transition policy. An empty transitions map
// with the table policy falls back to the default review workflow.
func (c Config) Policy() (dispute.TransitionPolicy, error) {
	if c.TransitionPolicy != PolicyTable {
		return dispute.AllowAll{}, nil
	}
	if len(c.Transitions) == 0 {
		return dispute.DefaultTransitionTable(), nil
	}
	return dispute.ParseTransitionTable(c.Transitions)
}

// NewLogger returns the process-wide JSON logger tagged with the service id.
func (c Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", c.ServiceID)
}
