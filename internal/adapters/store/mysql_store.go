package store

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the VerdictStore interface
type MySQLStore struct {
	*sqlStore
}

// NewMySQLStore connects to MySQL and creates the verdict table if needed
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS processed (
			filename VARCHAR(255) PRIMARY KEY,
			result MEDIUMTEXT NOT NULL,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("Connected to MySQL verdict store")

	return &MySQLStore{
		sqlStore: &sqlStore{
			db:      db,
			logger:  logger,
			backend: "MySQL",
			upsertQuery: `
				INSERT INTO processed (filename, result, timestamp)
				VALUES (?, ?, CURRENT_TIMESTAMP)
				ON DUPLICATE KEY UPDATE
					result = VALUES(result),
					timestamp = CURRENT_TIMESTAMP
			`,
		},
	}, nil
}
