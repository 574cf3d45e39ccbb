package config

// EnvPrefix is handed to envconfig; every field carries its full name anyway.
const EnvPrefix = "GOMARKETPLACE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	EnvAppEnv          = "GOMARKETPLACE_APP_ENV"
	EnvPort            = "GOMARKETPLACE_APP_PORT"
	EnvLogLevel        = "GOMARKETPLACE_LOG_LEVEL"
	EnvStorageBackend  = "GOMARKETPLACE_STORAGE_BACKEND"
	EnvDBDSN           = "GOMARKETPLACE_DB_DSN"
	EnvDBDriver        = "GOMARKETPLACE_DB_DRIVER"
	EnvRedisURL        = "GOMARKETPLACE_REDIS_URL"
	EnvRedisAddr       = "GOMARKETPLACE_REDIS_ADDR"
	EnvCartStorageKey  = "GOMARKETPLACE_CART_STORAGE_KEY"
	EnvCartClearOnLoad = "GOMARKETPLACE_CART_CLEAR_ON_LOAD"
	EnvCartPersistTO   = "GOMARKETPLACE_CART_PERSIST_TIMEOUT"
)
