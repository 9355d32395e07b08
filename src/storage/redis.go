package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mxshs/oddscrawler/src/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "odds:"

// RedisStorage pushes JSON encoded records onto the list odds:<session> and
// keeps session metadata in the hash odds:<session>:meta.
type RedisStorage struct {
	session
	options

	client *redis.Client
}

func NewRedisStorage(o options) *RedisStorage {
	return &RedisStorage{options: o}
}

func (s *RedisStorage) listKey() string {
	return redisKeyPrefix + s.id
}

func (s *RedisStorage) metaKey() string {
	return redisKeyPrefix + s.id + ":meta"
}

func (s *RedisStorage) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}
	s.assign(s.options)

	if s.redisAddr == "" {
		return fmt.Errorf("%w: redis storage needs an address", domain.ErrInvalidConfig)
	}

	if s.client == nil {
		s.client = redis.NewClient(&redis.Options{
			Addr:     s.redisAddr,
			Password: s.redisPassword,
			DB:       s.redisDB,
		})
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("%w: connect to redis: %w", domain.ErrStorage, err)
	}

	err := s.client.HSet(ctx, s.metaKey(),
		"session_id", s.id,
		"label", s.label,
		"started_at", s.now().UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: write session metadata: %w", domain.ErrStorage, err)
	}
	if err := s.expire(ctx, s.metaKey()); err != nil {
		return err
	}

	s.initialized = true

	s.logger.Info("redis storage initialized",
		zap.String("session_id", s.id),
		zap.String("key", s.listKey()),
	)

	return nil
}

func (s *RedisStorage) expire(ctx context.Context, key string) error {
	if s.redisTTL <= 0 {
		return nil
	}
	if err := s.client.Expire(ctx, key, s.redisTTL).Err(); err != nil {
		return fmt.Errorf("%w: expire %s: %w", domain.ErrStorage, key, err)
	}
	return nil
}

// Store pushes records one by one; a failed push leaves earlier ones in place.
func (s *RedisStorage) Store(ctx context.Context, records ...domain.OddsRecord) error {
	if err := s.ready(); err != nil {
		return err
	}

	var errs []error
	for _, rec := range records {
		rec, err := s.prepare(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		data, err := json.Marshal(rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: marshal record: %w", domain.ErrStorage, err))
			continue
		}

		if err := s.client.RPush(ctx, s.listKey(), data).Err(); err != nil {
			errs = append(errs, fmt.Errorf("%w: push %s: %w", domain.ErrStorage, s.listKey(), err))
			continue
		}

		if err := s.client.HIncrBy(ctx, s.metaKey(), "records", 1).Err(); err != nil {
			s.logger.Warn("update session metadata", zap.Error(err))
		}
	}

	// pushed records are stored even if the TTL could not be refreshed
	if err := s.expire(ctx, s.listKey()); err != nil {
		s.logger.Warn("refresh session ttl", zap.Error(err))
	}

	return errors.Join(errs...)
}

func (s *RedisStorage) Close() error {
	if s.closed || s.client == nil {
		return nil
	}
	s.closed = true

	var errs []error
	if s.initialized {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := s.client.HSet(ctx, s.metaKey(), "closed_at", s.now().UTC().Format(time.RFC3339)).Err()
		errs = append(errs, err)
	}
	errs = append(errs, s.client.Close())

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: close redis: %w", domain.ErrStorage, err)
	}

	return nil
}

func (s *RedisStorage) Path() string {
	return "redis://" + s.redisAddr + "/" + s.listKey()
}

// ReadRedis returns the records stored under a session, oldest first.
func ReadRedis(ctx context.Context, client *redis.Client, sessionID string) ([]domain.OddsRecord, error) {
	items, err := client.LRange(ctx, redisKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]domain.OddsRecord, 0, len(items))
	for i, item := range items {
		var rec domain.OddsRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("item %d of %s: %w", i, sessionID, err)
		}
		records = append(records, rec)
	}

	return records, nil
}
