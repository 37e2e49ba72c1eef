package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

const (
	DefaultRedisPrefix = "archive-scout:results:"
	connectionTimeout  = 5 * time.Second
	clearBatchSize     = 100
)

// ErrEmptyAddress is returned when the redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Redis stores records as plain keys under a shared prefix so several
// machines can share one result cache.
type Redis struct {
	client *redis.Client
	prefix string
	log    logger.Logger
}

// NewRedisClient connects to address and verifies the connection.
func NewRedisClient(address, password string, db int) (*redis.Client, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis ping failed: %w", ErrCache, err)
	}

	return client, nil
}

func NewRedis(client *redis.Client, prefix string, log logger.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Redis{client: client, prefix: prefix, log: log}
}

func (store *Redis) Get(ctx context.Context, key string) ([]archive.Entry, bool) {
	data, err := store.client.Get(ctx, store.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		store.log.Warn("Cache read failed, treating as miss", logger.String("key", key), logger.Error(err))
		return nil, false
	}

	entries, err := decode(data)
	if err != nil {
		store.log.Warn("Corrupt cache record, treating as miss", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return entries, true
}

func (store *Redis) Set(ctx context.Context, key string, entries []archive.Entry) error {
	data, err := encode(entries)
	if err != nil {
		return fmt.Errorf("%w: unable to encode cache record: %w", ErrCache, err)
	}
	if err := store.client.Set(ctx, store.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: unable to write cache record: %w", ErrCache, err)
	}
	return nil
}

func (store *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := store.client.Scan(ctx, cursor, store.prefix+"*", clearBatchSize).Result()
		if err != nil {
			return fmt.Errorf("%w: unable to scan cache keys: %w", ErrCache, err)
		}
		if len(keys) > 0 {
			if err := store.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: unable to delete cache keys: %w", ErrCache, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (store *Redis) Close() error {
	return store.client.Close()
}
