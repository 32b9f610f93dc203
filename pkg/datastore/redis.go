package datastore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding identity -> JSON record.
const DefaultRedisKey = "soarsocket:users"

// Redis stores the mapping as a single hash.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis connects using a redis:// URL.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("datastore: parse redis url: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opts), DefaultRedisKey), nil
}

// NewRedisWithClient wraps an existing client with a custom hash key.
func NewRedisWithClient(client redis.UniversalClient, key string) *Redis {
	return &Redis{client: client, key: key}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Load(ctx context.Context) (Records, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("datastore: redis hgetall: %w", err)
	}
	records := make(Records, len(fields))
	for id, raw := range fields {
		rec, err := unmarshalRecord(id, []byte(raw))
		if err != nil {
			return nil, err
		}
		records[id] = rec
	}
	return records, nil
}

// Save replaces the hash atomically with MULTI/EXEC.
func (r *Redis) Save(ctx context.Context, records Records) error {
	values := make(map[string]any, len(records))
	for id, rec := range records {
		data, err := marshalRecord(rec)
		if err != nil {
			return err
		}
		values[id] = string(data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("datastore: redis save: %w", err)
	}
	return nil
}
