package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/moonwalker/entitycache/pkg/store"
	memstore "github.com/moonwalker/entitycache/pkg/store/memory"
)

type address struct {
	City string `json:"city"`
	Zip  string `json:"zip"`
}

type testEntity struct {
	ID      uuid.UUID `json:"id"`
	Date    time.Time `json:"date"`
	Name    string    `json:"name"`
	Score   float64   `json:"score"`
	Address address   `json:"address"`
	Tags    []string  `json:"tags"`
}

func newEntity(name string) testEntity {
	return testEntity{
		ID:      uuid.New(),
		Date:    time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC),
		Name:    name,
		Score:   4.5,
		Address: address{City: "Malta", Zip: "SLM 1549"},
		Tags:    []string{"a", "b"},
	}
}

var errConnReset = errors.New("connection reset by peer")

// recordingStore counts calls and injects failures into a wrapped store.
type recordingStore struct {
	store.Store

	pages    int
	mgets    int
	failPage int // 1 based, 0 never fails
	failMGet bool
	failAll  bool
	expire   bool // every MGet slot comes back empty
}

func (s *recordingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failAll {
		return nil, errConnReset
	}
	return s.Store.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte, options *store.WriteOptions) error {
	if s.failAll {
		return errConnReset
	}
	return s.Store.Set(ctx, key, value, options)
}

func (s *recordingStore) Delete(ctx context.Context, key string) error {
	if s.failAll {
		return errConnReset
	}
	return s.Store.Delete(ctx, key)
}

func (s *recordingStore) ScanPage(ctx context.Context, cursor string, pattern string, count int) (string, []string, error) {
	s.pages++
	if s.failAll || s.pages == s.failPage {
		return "", nil, errConnReset
	}
	return s.Store.ScanPage(ctx, cursor, pattern, count)
}

func (s *recordingStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	s.mgets++
	if s.failAll || s.failMGet {
		return nil, errConnReset
	}
	if s.expire {
		return make([][]byte, len(keys)), nil
	}
	return s.Store.MGet(ctx, keys)
}

func newTestClient(t *testing.T) (*Client, *recordingStore) {
	t.Helper()

	rs := &recordingStore{Store: memstore.New()}
	return New(rs, "Test"), rs
}
