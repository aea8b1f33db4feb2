package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go-damage-assessor/internal/repository"
	"go-damage-assessor/pkg/models"
)

// RedisConfig addresses the result keyspace
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisResultStore keeps one JSON value per job plus a sorted index by
// creation time for latest-result lookups
type RedisResultStore struct {
	client *redis.Client
	prefix string
}

// NewRedisResultStore connects and pings the server
func NewRedisResultStore(ctx context.Context, cfg RedisConfig) (*RedisResultStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis result store: address is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "damage:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis result store: ping: %w", err)
	}
	return &RedisResultStore{client: client, prefix: prefix}, nil
}

func (s *RedisResultStore) resultKey(jobID string) string {
	return s.prefix + "result:" + jobID
}

func (s *RedisResultStore) indexKey() string {
	return s.prefix + "results"
}

func (s *RedisResultStore) Save(ctx context.Context, jobID string, result *models.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("save result %s: nil result", jobID)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.resultKey(jobID), payload, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(createdAt.UnixMilli()), Member: jobID})
		return nil
	})
	return err
}

func (s *RedisResultStore) Load(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	payload, err := s.client.Get(ctx, s.resultKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeResult(payload)
}

func (s *RedisResultStore) Latest(ctx context.Context) (*models.AnalysisResult, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, repository.ErrResultNotFound
	}
	return s.Load(ctx, ids[0])
}

func (s *RedisResultStore) Delete(ctx context.Context, jobID string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.resultKey(jobID))
		pipe.ZRem(ctx, s.indexKey(), jobID)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return repository.ErrResultNotFound
	}
	return nil
}

func (s *RedisResultStore) Close() error {
	return s.client.Close()
}
