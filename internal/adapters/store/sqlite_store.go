package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver
	DriverCGO = "sqlite3"
	// DriverPureGo is the modernc.org/sqlite driver
	DriverPureGo = "sqlite"
)

// SQLiteStore is a SQLite implementation of the VerdictStore interface
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens (and if needed creates) the verdict database at dbPath
func NewSQLiteStore(dbPath, driver string, logger *zap.Logger) (*SQLiteStore, error) {
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPureGo {
		return nil, fmt.Errorf("unsupported SQLite driver: %s", driver)
	}

	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// One connection keeps pragmas in effect and avoids writer contention
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS processed (
			filename TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("Opened SQLite verdict store", zap.String("path", dbPath), zap.String("driver", driver))

	return &SQLiteStore{
		sqlStore: &sqlStore{
			db:      db,
			logger:  logger,
			backend: "SQLite",
			upsertQuery: `
				INSERT INTO processed (filename, result, timestamp)
				VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(filename) DO UPDATE SET
					result = excluded.result,
					timestamp = CURRENT_TIMESTAMP
			`,
		},
	}, nil
}
