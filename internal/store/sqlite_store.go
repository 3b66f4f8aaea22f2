package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/assessment-session/internal/model"
)

// SQLiteStore keeps one row per test in a local database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps a database opened by database.OpenSQLite.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, testID string) (*model.SessionRecord, error) {
	var (
		startedMS int64
		count     int
		regRaw    sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT started_at_ms, violation_count, registration
		 FROM assessment_sessions
		 WHERE test_id = ?`, testID,
	).Scan(&startedMS, &count, &regRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	rec := &model.SessionRecord{
		StartedAt:      time.UnixMilli(startedMS),
		ViolationCount: count,
	}
	if regRaw.Valid && regRaw.String != "" {
		var reg model.Registration
		if err := json.Unmarshal([]byte(regRaw.String), &reg); err != nil {
			return nil, fmt.Errorf("decode registration: %w", err)
		}
		rec.Registration = &reg
	}
	return rec, nil
}

func (s *SQLiteStore) Set(ctx context.Context, testID string, rec model.SessionRecord) error {
	var reg sql.NullString
	if rec.Registration != nil {
		raw, err := json.Marshal(rec.Registration)
		if err != nil {
			return fmt.Errorf("encode registration: %w", err)
		}
		reg = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assessment_sessions (test_id, started_at_ms, violation_count, registration, updated_at_ms)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (test_id) DO UPDATE
		 SET started_at_ms = excluded.started_at_ms,
		     violation_count = excluded.violation_count,
		     registration = excluded.registration,
		     updated_at_ms = excluded.updated_at_ms`,
		testID, rec.StartedAt.UnixMilli(), rec.ViolationCount, reg, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, testID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM assessment_sessions WHERE test_id = ?`, testID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
