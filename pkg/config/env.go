package config

const (
	EnvPrefix = "FARMCART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"

	EnvAppEnv          = "FARMCART_APP_ENV"
	EnvStoreDriver     = "FARMCART_STORE_DRIVER"
	EnvStoreSQLitePath = "FARMCART_STORE_SQLITE_PATH"
	EnvDBDSN           = "FARMCART_DB_DSN"
	EnvRedisURL        = "FARMCART_REDIS_URL"
	EnvRedisAddr       = "FARMCART_REDIS_ADDR"
	EnvRemoteBaseURL   = "FARMCART_REMOTE_BASE_URL"
	EnvSyncConcurrency = "FARMCART_SYNC_PUSH_CONCURRENCY"
)
