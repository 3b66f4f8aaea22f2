package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/assessment-session/internal/model"
)

// PostgresStore keeps one row per test in assessment_sessions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, testID string) (*model.SessionRecord, error) {
	rec := &model.SessionRecord{}
	var regRaw []byte

	err := s.pool.QueryRow(ctx,
		`SELECT started_at, violation_count, registration
		 FROM assessment_sessions
		 WHERE test_id = $1`, testID,
	).Scan(&rec.StartedAt, &rec.ViolationCount, &regRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	if len(regRaw) > 0 {
		var reg model.Registration
		if err := json.Unmarshal(regRaw, &reg); err != nil {
			return nil, fmt.Errorf("decode registration: %w", err)
		}
		rec.Registration = &reg
	}

	return rec, nil
}

func (s *PostgresStore) Set(ctx context.Context, testID string, rec model.SessionRecord) error {
	var regRaw []byte
	if rec.Registration != nil {
		var err error
		if regRaw, err = json.Marshal(rec.Registration); err != nil {
			return fmt.Errorf("encode registration: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO assessment_sessions (test_id, started_at, violation_count, registration)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (test_id) DO UPDATE
		 SET started_at = EXCLUDED.started_at,
		     violation_count = EXCLUDED.violation_count,
		     registration = EXCLUDED.registration,
		     updated_at = NOW()`,
		testID, rec.StartedAt, rec.ViolationCount, regRaw,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, testID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM assessment_sessions WHERE test_id = $1`, testID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
