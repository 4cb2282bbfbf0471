package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/dock-slot-reservation/internal/config"
	"github.com/iliyamo/dock-slot-reservation/internal/database"
)

// openMigrated loads configuration, connects to MySQL and applies pending
// migrations.  Commands that touch tables go through here.
func openMigrated(ctx context.Context) (*sql.DB, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, cfg, fmt.Errorf("db open: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, cfg, err
	}
	return db, cfg, nil
}
