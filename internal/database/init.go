package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/fund-backtester/internal/config"
)

// Initialize creates a database connection pool and makes sure the
// market data and run tables exist
func Initialize(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var funds int
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM fund_info").Scan(&funds); err == nil && funds == 0 && logger != nil {
		logger.Warn("fund_info is empty; money-market detection will treat every fund as non money-market")
	}

	return db, nil
}

// EnsureSchema creates any missing tables inside one transaction
func (db *DB) EnsureSchema(ctx context.Context) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
