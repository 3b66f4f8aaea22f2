package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/config"
	"github.com/stemsi/assessment-session/internal/database"
)

// Open connects the backend named by cfg.SessionStore. The returned
// function releases its connections.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (SessionStore, func(), error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(rdb), func() { _ = rdb.Close() }, nil

	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(pool), pool.Close, nil

	case config.StoreSQLite:
		db, err := database.NewSQLiteDB(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLiteStore(db), func() { _ = db.Close() }, nil

	case config.StoreMemory:
		log.Warn().Msg("Using in-memory session store; sessions will not survive a restart")
		return NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
