package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/assessment-session/internal/config"
	"github.com/stemsi/assessment-session/internal/model"
)

// RedisStore keeps each field of the record under its own key, as the
// browser kept them in local storage.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, testID string) (*model.SessionRecord, error) {
	vals, err := s.rdb.MGet(ctx, config.StoreKey.SessionKeys(testID)...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget session keys: %w", err)
	}

	startRaw, _ := vals[0].(string)
	countRaw, _ := vals[1].(string)
	regRaw, _ := vals[2].(string)

	if startRaw == "" && countRaw == "" && regRaw == "" {
		return nil, ErrNotFound
	}

	rec := &model.SessionRecord{}

	if startRaw != "" {
		ms, err := strconv.ParseInt(startRaw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start time format in store: %w", err)
		}
		rec.StartedAt = time.UnixMilli(ms)
	}

	if countRaw != "" {
		n, err := strconv.Atoi(countRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid violation count in store: %w", err)
		}
		rec.ViolationCount = n
	}

	if regRaw != "" {
		var reg model.Registration
		if err := json.Unmarshal([]byte(regRaw), &reg); err != nil {
			return nil, fmt.Errorf("decode registration: %w", err)
		}
		rec.Registration = &reg
	}

	return rec, nil
}

func (s *RedisStore) Set(ctx context.Context, testID string, rec model.SessionRecord) error {
	var regRaw []byte
	if rec.Registration != nil {
		var err error
		if regRaw, err = json.Marshal(rec.Registration); err != nil {
			return fmt.Errorf("encode registration: %w", err)
		}
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, config.StoreKey.SessionStartKey(testID), rec.StartedAt.UnixMilli(), 0)
		pipe.Set(ctx, config.StoreKey.TabSwitchesKey(testID), rec.ViolationCount, 0)
		if regRaw != nil {
			pipe.Set(ctx, config.StoreKey.RegistrationKey(testID), regRaw, 0)
		} else {
			pipe.Del(ctx, config.StoreKey.RegistrationKey(testID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write session keys: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, testID string) error {
	if err := s.rdb.Del(ctx, config.StoreKey.SessionKeys(testID)...).Err(); err != nil {
		return fmt.Errorf("delete session keys: %w", err)
	}
	return nil
}
