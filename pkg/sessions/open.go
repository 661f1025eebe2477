package sessions

import (
	"fmt"

	"github.com/synaptica-ai/risk-gateway/pkg/common/config"
	"github.com/synaptica-ai/risk-gateway/pkg/common/database"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreLevelDB  = "leveldb"
)

// Open selects the strategy named by cfg.SessionStore.
func Open(cfg *config.Config) (Repository, error) {
	switch cfg.SessionStore {
	case "", StoreMemory:
		logger.Log.WithField("capacity", cfg.SessionCapacity).Info("Using in-memory session log")
		return NewMemoryLog(cfg.SessionCapacity), nil
	case StorePostgres:
		db, err := database.GetPostgres(cfg)
		if err != nil {
			return nil, &PersistenceError{Store: StorePostgres, Err: err}
		}
		store := NewPostgresStore(db)
		if err := store.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate session table: %w", err)
		}
		return store, nil
	case StoreLevelDB:
		logger.Log.WithField("path", cfg.SessionLevelDBPath).Info("Using leveldb session store")
		return OpenLevelStore(cfg.SessionLevelDBPath)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
