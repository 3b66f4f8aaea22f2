package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/config"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS assessment_sessions (
	test_id TEXT PRIMARY KEY,
	started_at_ms INTEGER NOT NULL,
	violation_count INTEGER NOT NULL DEFAULT 0,
	registration TEXT,
	updated_at_ms INTEGER NOT NULL
);`

// NewSQLiteDB opens the local session database file and ensures its schema.
func NewSQLiteDB(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sql.DB, error) {
	return OpenSQLite(ctx, cfg.SQLitePath, log)
}

// OpenSQLite opens path (":memory:" is allowed) with a single writer connection.
func OpenSQLite(ctx context.Context, path string, log zerolog.Logger) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		path = "assessment_sessions.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	log.Info().Str("path", path).Msg("SQLite session store opened")

	return db, nil
}
