package app

import (
	"context"
	"database/sql"
	"fmt"

	"alertline/internal/config"
	"alertline/internal/db"
	"alertline/internal/engine"
	"alertline/internal/logging"
	"alertline/internal/migrate"
)

// Bootstrap opens the workspace database, applies migrations, loads
// alertline.yml (falling back to the built-in default when absent), and
// returns a wired engine with seed users applied.
func Bootstrap(ctx context.Context, workspace string) (*engine.Engine, *sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if cfg == nil {
		cfg = config.Default("alertline")
	}
	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	e := engine.New(conn, cfg, log)
	if err := e.SeedFromConfig(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("seed: %w", err)
	}
	return e, conn, nil
}
