package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moonwalker/entitycache/pkg/store"
)

// defaultCount mirrors the Redis SCAN default.
const defaultCount = 10

type entry struct {
	value  []byte
	expire time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expire.IsZero() && !now.Before(e.expire)
}

type memstore struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

type Option func(*memstore)

// WithClock replaces time.Now, used to drive expiry in tests.
func WithClock(now func() time.Time) Option {
	return func(s *memstore) {
		s.now = now
	}
}

func New(opts ...Option) store.Store {
	s := &memstore{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memstore) GetInternalStore() interface{} {
	return nil
}

func (s *memstore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.get(key), nil
}

func (s *memstore) get(key string) []byte {
	e, ok := s.data[key]
	if !ok || e.expired(s.now()) {
		return nil
	}
	val := make([]byte, len(e.value))
	copy(val, e.value)
	return val
}

func (s *memstore) Set(ctx context.Context, key string, value []byte, options *store.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if options != nil && options.TTL > 0 {
		e.expire = s.now().Add(time.Duration(options.TTL) * time.Second)
	}

	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()

	return nil
}

func (s *memstore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	return nil
}

// ScanPage walks keys in sorted order; the cursor encodes the last key
// returned.
func (s *memstore) ScanPage(ctx context.Context, cursor string, pattern string, count int) (string, []string, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	if err := store.CheckPattern(pattern); err != nil {
		return "", nil, err
	}

	after, resume, err := store.DecodeCursor(cursor)
	if err != nil {
		return "", nil, err
	}
	if count <= 0 {
		count = defaultCount
	}

	s.mu.RLock()
	now := s.now()
	keys := make([]string, 0)
	for k, e := range s.data {
		if e.expired(now) || (resume && k <= after) || !store.Match(pattern, k) {
			continue
		}
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	if len(keys) <= count {
		return store.CursorStart, keys, nil
	}

	page := keys[:count]
	return store.EncodeCursor(page[len(page)-1]), page, nil
}

func (s *memstore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	vals := make([][]byte, len(keys))
	for i, key := range keys {
		vals[i] = s.get(key)
	}
	return vals, nil
}

func (s *memstore) Close() error {
	return nil
}
