package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BOOKWORM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	LocalBackendSQLite   = "sqlite"
	LocalBackendPostgres = "postgres"
	LocalBackendRedis    = "redis"

	EnvAppEnv             = "BOOKWORM_APP_ENV"
	EnvPort               = "BOOKWORM_APP_PORT"
	EnvProfileID          = "BOOKWORM_PROFILE_ID"
	EnvStorefrontBaseURL  = "BOOKWORM_STOREFRONT_BASE_URL"
	EnvLocalStoreBackend  = "BOOKWORM_LOCAL_STORE_BACKEND"
	EnvDBDSN              = "BOOKWORM_DB_DSN"
	EnvRedisURL           = "BOOKWORM_REDIS_URL"
	EnvCartFlushOnShutdwn = "BOOKWORM_CART_FLUSH_ON_SHUTDOWN"
)

type Config struct {
	App        AppConfig
	Storefront StorefrontConfig
	LocalStore LocalStoreConfig
	DB         DBConfig
	Redis      RedisConfig
	Cart       CartConfig
	Metrics    MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BOOKWORM_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKWORM_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"BOOKWORM_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BOOKWORM_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BOOKWORM_LOG_WARN_STACK" default:"false"`
	// ProfileID scopes persisted client state to one device profile.
	ProfileID string `envconfig:"BOOKWORM_PROFILE_ID" default:"default"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StorefrontConfig points at the remote catalog/order/auth service.
type StorefrontConfig struct {
	BaseURL        string        `envconfig:"BOOKWORM_STOREFRONT_BASE_URL" default:"http://localhost:8000"`
	RequestTimeout time.Duration `envconfig:"BOOKWORM_STOREFRONT_REQUEST_TIMEOUT" default:"10s"`
	RatePerSecond  float64       `envconfig:"BOOKWORM_STOREFRONT_RATE_PER_SECOND" default:"10"`
	RateBurst      int           `envconfig:"BOOKWORM_STOREFRONT_RATE_BURST" default:"5"`
}

type LocalStoreConfig struct {
	Backend      string        `envconfig:"BOOKWORM_LOCAL_STORE_BACKEND" default:"sqlite"`
	SQLitePath   string        `envconfig:"BOOKWORM_LOCAL_STORE_SQLITE_PATH" default:"bookworm-profile.db"`
	WriteTimeout time.Duration `envconfig:"BOOKWORM_LOCAL_STORE_WRITE_TIMEOUT" default:"2s"`
}

type DBConfig struct {
	DSN             string        `envconfig:"BOOKWORM_DB_DSN"`
	MaxOpenConns    int           `envconfig:"BOOKWORM_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"BOOKWORM_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKWORM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKWORM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKWORM_REDIS_URL"`
	Address      string        `envconfig:"BOOKWORM_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKWORM_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKWORM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKWORM_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"BOOKWORM_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"BOOKWORM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKWORM_REDIS_READ_TIMEOUT" default:"2s"`
	WriteTimeout time.Duration `envconfig:"BOOKWORM_REDIS_WRITE_TIMEOUT" default:"2s"`
}

type CartConfig struct {
	FlushOnShutdown bool `envconfig:"BOOKWORM_CART_FLUSH_ON_SHUTDOWN" default:"true"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"BOOKWORM_METRICS_ENABLED" default:"true"`
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.App.ProfileID) == "" {
		return fmt.Errorf("%s must not be blank", EnvProfileID)
	}
	if strings.TrimSpace(c.Storefront.BaseURL) == "" {
		return fmt.Errorf("%s is required", EnvStorefrontBaseURL)
	}

	c.LocalStore.Backend = strings.ToLower(strings.TrimSpace(c.LocalStore.Backend))
	switch c.LocalStore.Backend {
	case LocalBackendSQLite:
	case LocalBackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("%s is required for the %s local store", EnvDBDSN, LocalBackendPostgres)
		}
	case LocalBackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s is required for the %s local store", EnvRedisURL, LocalBackendRedis)
		}
	default:
		return fmt.Errorf("%s must be one of sqlite, postgres, redis (got %q)", EnvLocalStoreBackend, c.LocalStore.Backend)
	}
	return nil
}
