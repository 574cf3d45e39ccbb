package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Storage      StorageConfig
	DB           DBConfig
	Redis        RedisConfig
	Cart         CartConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"GOMARKETPLACE_APP_ENV" default:"dev"`
	Port         string `envconfig:"GOMARKETPLACE_APP_PORT" default:"8787"`
	LogLevel     string `envconfig:"GOMARKETPLACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GOMARKETPLACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type StorageConfig struct {
	Backend string `envconfig:"GOMARKETPLACE_STORAGE_BACKEND" default:"sqlite"`
}

// Kind returns the normalized backend name.
func (s StorageConfig) Kind() string {
	kind := strings.ToLower(strings.TrimSpace(s.Backend))
	if kind == "" {
		return BackendSQLite
	}
	return kind
}

type DBConfig struct {
	DSN    string `envconfig:"GOMARKETPLACE_DB_DSN" default:"gomarketplace.db"`
	Driver string `envconfig:"GOMARKETPLACE_DB_DRIVER"`

	MaxOpenConns    int           `envconfig:"GOMARKETPLACE_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"GOMARKETPLACE_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"GOMARKETPLACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GOMARKETPLACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GOMARKETPLACE_REDIS_URL"`
	Address      string        `envconfig:"GOMARKETPLACE_REDIS_ADDR"`
	Password     string        `envconfig:"GOMARKETPLACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"GOMARKETPLACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GOMARKETPLACE_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"GOMARKETPLACE_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"GOMARKETPLACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GOMARKETPLACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GOMARKETPLACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CartConfig struct {
	StorageKey     string        `envconfig:"GOMARKETPLACE_CART_STORAGE_KEY"`
	ClearOnLoad    bool          `envconfig:"GOMARKETPLACE_CART_CLEAR_ON_LOAD" default:"false"`
	PersistTimeout time.Duration `envconfig:"GOMARKETPLACE_CART_PERSIST_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GOMARKETPLACE_AUTO_MIGRATE" default:"true"`
}

// Dialect resolves the SQL driver for the configured backend. An explicit
// driver wins over the backend name.
func (db DBConfig) Dialect(backend string) string {
	if d := strings.ToLower(strings.TrimSpace(db.Driver)); d != "" {
		return d
	}
	if backend == BackendPostgres {
		return DriverPostgres
	}
	return DriverSQLite
}

func (c *Config) validate() error {
	switch c.Storage.Kind() {
	case BackendMemory:
		return nil
	case BackendSQLite, BackendPostgres:
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("%s is required for the %s backend", EnvDBDSN, c.Storage.Kind())
		}
		switch c.DB.Dialect(c.Storage.Kind()) {
		case DriverSQLite, DriverPostgres:
		default:
			return fmt.Errorf("unsupported %s %q", EnvDBDriver, c.DB.Driver)
		}
		return nil
	case BackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis backend", EnvRedisURL, EnvRedisAddr)
		}
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageBackend, c.Storage.Backend)
	}
}
