package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Coldness00/Fumes-Detector/internal/adapters/store"
	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/Coldness00/Fumes-Detector/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates verdict stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateVerdictStore creates a verdict store based on the configuration
func (f *StoreFactory) CreateVerdictStore() (core.VerdictStore, error) {
	storeCfg := f.cfg.GetStore()

	var (
		verdictStore core.VerdictStore
		err          error
	)
	switch storeCfg.Type {
	case "memory":
		f.logger.Warn("Using in-memory verdict store, verdicts will not survive a restart")
		return store.NewMemoryStore(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		verdictStore, err = store.NewSQLiteStore(storeCfg.SQLitePath, storeCfg.SQLiteDriver, f.logger)
	case "mysql":
		verdictStore, err = store.NewMySQLStore(storeCfg.MySQLDSN, f.logger)
	case "redis":
		verdictStore, err = store.NewRedisStore(storeCfg.RedisAddr, storeCfg.RedisPassword, storeCfg.RedisDB, storeCfg.RedisKey, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return verdictStore, nil
}
