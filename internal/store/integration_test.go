//go:build integration
// +build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// These tests need live services:
//
//	REDIS_URL=redis://localhost:6379/15 DATABASE_URL=postgres://... go test -tags integration ./internal/store
//
// The PostgreSQL database must have the migrations applied (cmd/migrate up).

func TestRedisStoreContract(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	s := NewRedisStore(rdb)
	_ = s.Clear(context.Background(), "T1")
	runStoreContract(t, s)
}

func TestPostgresStoreContract(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	s := NewPostgresStore(pool)
	_ = s.Clear(context.Background(), "T1")
	runStoreContract(t, s)
}
