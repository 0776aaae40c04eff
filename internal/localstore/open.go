package localstore

import (
	"fmt"

	"github.com/angelmondragon/farmcart-sync/pkg/config"
	"github.com/angelmondragon/farmcart-sync/pkg/db"
	pkgredis "github.com/angelmondragon/farmcart-sync/pkg/redis"
)

// Backends carries the already-connected clients a Store may be built from.
type Backends struct {
	DB    *db.Client
	Redis *pkgredis.Client
}

// FromConfig picks the Store implementation named by the store driver.
func FromConfig(cfg config.StoreConfig, backends Backends) (Store, error) {
	switch cfg.NormalizedDriver() {
	case config.StoreDriverSQLite, config.StoreDriverPostgres:
		if backends.DB == nil {
			return nil, fmt.Errorf("store driver %q requires a database client", cfg.NormalizedDriver())
		}
		return NewGormStore(backends.DB.DB()), nil
	case config.StoreDriverRedis:
		if backends.Redis == nil {
			return nil, fmt.Errorf("store driver %q requires a redis client", cfg.NormalizedDriver())
		}
		return NewRedisStore(backends.Redis), nil
	case config.StoreDriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
