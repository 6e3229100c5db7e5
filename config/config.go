package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Security       SecurityConfig       `mapstructure:"security"`
	Log            LogConfig            `mapstructure:"log"`
	Pricing        PricingConfig        `mapstructure:"pricing"`
	Providers      ProvidersConfig      `mapstructure:"providers"`
	BankFeed       BankFeedConfig       `mapstructure:"bankfeed"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Retry          RetryConfig          `mapstructure:"retry"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	Migrate         bool          `mapstructure:"migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"` // false falls back to in-process caches
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type SecurityConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTIssuer string        `mapstructure:"jwt_issuer"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"` // lifetime of locally minted dev tokens
	MasterKey string        `mapstructure:"master_key"` // 32-byte hex, subkeys derived with HKDF
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// PricingConfig maps verification method names to prices in the wallet currency.
// Prices are strings so that decimal amounts survive YAML and env parsing unchanged.
type PricingConfig struct {
	Currency   string            `mapstructure:"currency"`
	Methods    map[string]string `mapstructure:"methods"`
	Revalidate string            `mapstructure:"revalidate"`
}

type ProvidersConfig struct {
	Timeout time.Duration     `mapstructure:"timeout"`
	URLs    map[string]string `mapstructure:"urls"` // method -> base URL
	Token   string            `mapstructure:"token"`
}

type BankFeedConfig struct {
	URL               string        `mapstructure:"url"`
	Token             string        `mapstructure:"token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 = unthrottled
}

type ReconciliationConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	LeaseTTL          time.Duration `mapstructure:"lease_ttl"`
	ExpireAfter       time.Duration `mapstructure:"expire_after"`       // 0 = never fail pending top-ups
	StaleVerification time.Duration `mapstructure:"stale_verification"` // pending verifications older than this are failed and refunded
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: AVG_ (Age Verification Gateway).
// Nested keys use underscore: AVG_DATABASE_HOST, AVG_SECURITY_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "age_verification")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "3s")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "500ms")
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_issuer", "age-verification-gateway")
	v.SetDefault("security.jwt_expiry", "24h")
	v.SetDefault("security.master_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("pricing.currency", "CZK")
	v.SetDefault("pricing.methods", map[string]string{
		"bankid":   "20",
		"mojeid":   "15",
		"ocr":      "10",
		"facescan": "8",
	})
	v.SetDefault("pricing.revalidate", "2")
	v.SetDefault("providers.timeout", "15s")
	v.SetDefault("bankfeed.timeout", "10s")
	v.SetDefault("bankfeed.requests_per_second", 10)
	v.SetDefault("reconciliation.concurrency", 4)
	v.SetDefault("reconciliation.lease_ttl", "5m")
	v.SetDefault("reconciliation.expire_after", "0s")
	v.SetDefault("reconciliation.stale_verification", "10m")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff", "200ms")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: AVG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("AVG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings that services cannot repair at runtime.
// A stale verification sweep must never overtake a provider call still in flight.
func (c *Config) Validate() error {
	var errs []error
	if c.Providers.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("providers.timeout must be positive, got %s", c.Providers.Timeout))
	}
	if stale := c.Reconciliation.StaleVerification; stale < 0 || (stale > 0 && stale <= c.Providers.Timeout) {
		errs = append(errs, fmt.Errorf("reconciliation.stale_verification (%s) must exceed providers.timeout (%s) or be 0",
			stale, c.Providers.Timeout))
	}
	if c.Reconciliation.ExpireAfter < 0 {
		errs = append(errs, fmt.Errorf("reconciliation.expire_after must not be negative, got %s", c.Reconciliation.ExpireAfter))
	}
	if c.Reconciliation.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("reconciliation.concurrency must be at least 1, got %d", c.Reconciliation.Concurrency))
	}
	if c.Reconciliation.LeaseTTL <= 0 {
		errs = append(errs, fmt.Errorf("reconciliation.lease_ttl must be positive, got %s", c.Reconciliation.LeaseTTL))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Backoff < 0 {
		errs = append(errs, fmt.Errorf("retry.backoff must not be negative, got %s", c.Retry.Backoff))
	}
	return errors.Join(errs...)
}
