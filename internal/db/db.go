package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Config locates the sqlite database inside a workspace. The database lives
// at <workspace>/.alertline/alertline.db.
type Config struct {
	Workspace string
}

func (c Config) file() string {
	ws := c.Workspace
	if ws == "" {
		ws = "."
	}
	return filepath.Join(ws, ".alertline", "alertline.db")
}

// EnsureWorkspace creates the .alertline directory under workspace if missing
// and returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(workspace, ".alertline")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

// Open ensures the workspace exists and opens the database with foreign key
// enforcement on.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", cfg.file())
	return sql.Open("sqlite", dsn)
}
