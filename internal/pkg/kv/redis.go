package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// metadataSuffix names the hash that carries a record's metadata.
const metadataSuffix = ":meta"

// RedisStore stores records in a dedicated redis database. Each of the two
// stores uses its own database number so their key spaces never mix.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis at addr using database db.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping checks the connection and logs the outcome.
func (s *RedisStore) Ping(ctx context.Context) error {
	pong, err := s.client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Store] Could not connect to redis db %d: %v", s.client.Options().DB, err)
		return err
	}
	log.Infof("[Store] Connected to redis db %d: %s", s.client.Options().DB, pong)
	return nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		if len(metadata) > 0 {
			fields := make(map[string]interface{}, len(metadata))
			for k, v := range metadata {
				fields[k] = v
			}
			pipe.Del(ctx, key+metadataSuffix)
			pipe.HSet(ctx, key+metadataSuffix, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Metadata returns the metadata hash stored next to key.
func (s *RedisStore) Metadata(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key+metadataSuffix).Result()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
