package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	Remote    RemoteConfig
	JWT       JWTConfig
	Session   SessionConfig
	Sync      SyncConfig
	ReadModel ReadModelConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(cfg.DB, cfg.Redis); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FARMCART_APP_ENV" default:"dev"`
	Port         string `envconfig:"FARMCART_APP_PORT" default:"8790"`
	Host         string `envconfig:"FARMCART_APP_HOST" default:"127.0.0.1"`
	LogLevel     string `envconfig:"FARMCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMCART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Addr returns the listen address for the companion API.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// StoreConfig selects the durable local store backend.
type StoreConfig struct {
	Driver      string `envconfig:"FARMCART_STORE_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"FARMCART_STORE_SQLITE_PATH" default:"farmcart.db"`
	AutoMigrate bool   `envconfig:"FARMCART_STORE_AUTO_MIGRATE" default:"true"`
}

func (s StoreConfig) validate(db DBConfig, redis RedisConfig) error {
	switch s.NormalizedDriver() {
	case StoreDriverSQLite:
		if strings.TrimSpace(s.SQLitePath) == "" {
			return fmt.Errorf("%s is required for the sqlite store", EnvStoreSQLitePath)
		}
	case StoreDriverPostgres:
		if db.DSN == "" {
			return fmt.Errorf("%s is required for the postgres store", EnvDBDSN)
		}
	case StoreDriverRedis:
		if redis.URL == "" && redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis store", EnvRedisURL, EnvRedisAddr)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported %s %q", EnvStoreDriver, s.Driver)
	}
	return nil
}

// NormalizedDriver returns the lower-cased driver name, defaulting to sqlite.
func (s StoreConfig) NormalizedDriver() string {
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	if driver == "" {
		return StoreDriverSQLite
	}
	return driver
}

type DBConfig struct {
	DSN             string        `envconfig:"FARMCART_DB_DSN"`
	MaxOpenConns    int           `envconfig:"FARMCART_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"FARMCART_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"FARMCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMCART_REDIS_URL"`
	Address      string        `envconfig:"FARMCART_REDIS_ADDR"`
	Password     string        `envconfig:"FARMCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMCART_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"FARMCART_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"FARMCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// RemoteConfig points at the marketplace REST backend. A zero timeout means
// remote calls are bounded only by the caller's context.
type RemoteConfig struct {
	BaseURL string        `envconfig:"FARMCART_REMOTE_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"FARMCART_REMOTE_TIMEOUT" default:"0s"`
}

// JWTConfig verifies session tokens locally when a secret is present.
type JWTConfig struct {
	Secret string `envconfig:"FARMCART_JWT_SECRET"`
	Issuer string `envconfig:"FARMCART_JWT_ISSUER"`
}

// Verifies reports whether tokens should be signature-checked.
func (j JWTConfig) Verifies() bool {
	return strings.TrimSpace(j.Secret) != ""
}

type SessionConfig struct {
	ClearOnLogout bool   `envconfig:"FARMCART_SESSION_CLEAR_ON_LOGOUT" default:"true"`
	GuestOwner    string `envconfig:"FARMCART_SESSION_GUEST_OWNER" default:"guest"`
}

type SyncConfig struct {
	PushConcurrency int           `envconfig:"FARMCART_SYNC_PUSH_CONCURRENCY" default:"1"`
	PageSize        int           `envconfig:"FARMCART_SYNC_PAGE_SIZE" default:"50"`
	LockTTL         time.Duration `envconfig:"FARMCART_SYNC_LOCK_TTL" default:"5m"`
}

type ReadModelConfig struct {
	RemoteTTL time.Duration `envconfig:"FARMCART_READMODEL_REMOTE_TTL" default:"30s"`
	PageSize  int           `envconfig:"FARMCART_READMODEL_PAGE_SIZE" default:"100"`
}
