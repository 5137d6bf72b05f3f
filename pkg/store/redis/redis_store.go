package redistore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/moonwalker/entitycache/pkg/store"
)

const (
	DefaultPoolSize       = 8
	defaultConnectTimeout = 10 * time.Second
	idleTimeout           = 240 * time.Second
)

type Store struct {
	pool *redis.Pool
}

type Option func(*redis.Pool)

// WithPoolSize bounds the number of active and idle connections.
func WithPoolSize(n int) Option {
	return func(p *redis.Pool) {
		if n > 0 {
			p.MaxActive = n
			p.MaxIdle = n
		}
	}
}

func New(redisURL string, opts ...Option) *Store {
	pool := &redis.Pool{
		MaxActive:   DefaultPoolSize,
		MaxIdle:     DefaultPoolSize,
		IdleTimeout: idleTimeout,
		Wait:        true,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, redisURL, redis.DialConnectTimeout(defaultConnectTimeout))
		},
	}
	for _, opt := range opts {
		opt(pool)
	}
	return &Store{pool: pool}
}

func (s *Store) GetInternalStore() interface{} {
	return s.pool
}

func (s *Store) do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	defer debugDuration(time.Now(), cmd, args...)

	c, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return redis.DoContext(c, ctx, cmd, args...)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := s.do(ctx, "GET", key)
	if err != nil || res == nil {
		return nil, err
	}
	return redis.Bytes(res, err)
}

func (s *Store) Set(ctx context.Context, key string, value []byte, options *store.WriteOptions) error {
	var err error
	if options != nil && options.TTL > 0 {
		_, err = s.do(ctx, "SETEX", key, options.TTL, value)
	} else {
		_, err = s.do(ctx, "SET", key, value)
	}
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.do(ctx, "DEL", key)
	return err
}

func (s *Store) ScanPage(ctx context.Context, cursor string, pattern string, count int) (string, []string, error) {
	if cursor == "" {
		cursor = store.CursorStart
	}

	args := []interface{}{cursor, "MATCH", pattern}
	if count > 0 {
		args = append(args, "COUNT", count)
	}

	values, err := redis.Values(s.do(ctx, "SCAN", args...))
	if err != nil {
		return "", nil, err
	}

	var (
		next string
		keys []string
	)
	_, err = redis.Scan(values, &next, &keys)
	if err != nil {
		return "", nil, err
	}

	return next, keys, nil
}

func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return [][]byte{}, nil
	}

	args := make([]interface{}, len(keys))
	for i, key := range keys {
		args[i] = key
	}

	values, err := redis.Values(s.do(ctx, "MGET", args...))
	if err != nil {
		return nil, err
	}

	res := make([][]byte, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case nil:
		case []byte:
			res[i] = v
		case string:
			res[i] = []byte(v)
		default:
			return nil, fmt.Errorf("redis: unexpected MGET element type %T", v)
		}
	}
	return res, nil
}

func (s *Store) Close() error {
	return s.pool.Close()
}

func debugDuration(start time.Time, cmd string, args ...interface{}) {
	elapsed := time.Since(start)
	slog.Debug("redis command", "cmd", cmd, "args", len(args), "took", elapsed.String())
}
