package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/robfig/cron/v3"

	"github.com/moonwalker/entitycache/pkg/store"
)

// records are stored as an 8 byte big endian expiry (unix nanos, 0 for
// none) followed by the value
const headerSize = 8

var ErrNotBoltStore = errors.New("boltstore: not a bolt store")

type boltstore struct {
	storePath  string
	bucketName []byte
	purgeSpec  string
	now        func() time.Time

	mu     sync.Mutex
	db     *bolt.DB
	purger *cron.Cron
}

type Option func(*boltstore)

// WithPurgeSchedule removes expired records on a cron schedule
// (e.g. "@every 1m") once the store is opened.
func WithPurgeSchedule(spec string) Option {
	return func(s *boltstore) {
		s.purgeSpec = spec
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *boltstore) {
		s.now = now
	}
}

func New(storePath string, bucketName string, opts ...Option) store.Store {
	s := &boltstore{storePath: storePath, bucketName: []byte(bucketName), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *boltstore) open() (*bolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := bolt.Open(s.storePath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if len(s.purgeSpec) > 0 {
		c := cron.New()
		_, err = c.AddFunc(s.purgeSpec, func() {
			n, err := s.purge(db)
			if err != nil {
				slog.Error("bolt purge failed", "path", s.storePath, "error", err)
				return
			}
			slog.Debug("bolt purge", "path", s.storePath, "removed", n)
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		c.Start()
		s.purger = c
	}

	s.db = db
	return db, nil
}

// GetInternalStore returns nil when the database cannot be opened, DB
// reports the error.
func (s *boltstore) GetInternalStore() interface{} {
	db, err := s.open()
	if err != nil {
		slog.Error("bolt open failed", "path", s.storePath, "error", err)
		return nil
	}
	return db
}

// DB opens st and returns its database handle.
func DB(st store.Store) (*bolt.DB, error) {
	s, ok := st.(*boltstore)
	if !ok {
		return nil, ErrNotBoltStore
	}
	return s.open()
}

func (s *boltstore) Get(ctx context.Context, key string) (val []byte, err error) {
	if err = ctx.Err(); err != nil {
		return
	}

	db, err := s.open()
	if err != nil {
		return
	}

	err = db.View(func(tx *bolt.Tx) error {
		val = s.value(tx.Bucket(s.bucketName).Get([]byte(key)))
		return nil
	})

	return
}

func (s *boltstore) Set(ctx context.Context, key string, val []byte, options *store.WriteOptions) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}

	db, err := s.open()
	if err != nil {
		return
	}

	var expire int64
	if options != nil && options.TTL > 0 {
		expire = s.now().Add(time.Duration(options.TTL) * time.Second).UnixNano()
	}

	rec := make([]byte, headerSize+len(val))
	binary.BigEndian.PutUint64(rec, uint64(expire))
	copy(rec[headerSize:], val)

	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucketName).Put([]byte(key), rec)
	})
}

func (s *boltstore) Delete(ctx context.Context, key string) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}

	db, err := s.open()
	if err != nil {
		return
	}

	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucketName).Delete([]byte(key))
	})
}

// ScanPage seeks to the literal prefix of pattern (or past the cursor key)
// and collects up to count live matching keys. The cursor is exhausted
// when no further match exists.
func (s *boltstore) ScanPage(ctx context.Context, cursor string, pattern string, count int) (next string, keys []string, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	if err = store.CheckPattern(pattern); err != nil {
		return
	}

	after, resume, err := store.DecodeCursor(cursor)
	if err != nil {
		return
	}
	if count <= 0 {
		count = 10
	}

	db, err := s.open()
	if err != nil {
		return
	}

	next = store.CursorStart
	keys = make([]string, 0, count)
	prefix := []byte(store.LiteralPrefix(pattern))

	err = db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucketName).Cursor()

		seek := prefix
		if resume {
			seek = []byte(after)
		}

		for k, v := c.Seek(seek); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if resume && string(k) == after {
				continue
			}
			if s.value(v) == nil || !store.Match(pattern, string(k)) {
				continue
			}
			if len(keys) == count {
				next = store.EncodeCursor(keys[len(keys)-1])
				break
			}
			keys = append(keys, string(k))
		}
		return nil
	})

	return
}

func (s *boltstore) MGet(ctx context.Context, keys []string) (vals [][]byte, err error) {
	if err = ctx.Err(); err != nil {
		return
	}

	db, err := s.open()
	if err != nil {
		return
	}

	vals = make([][]byte, len(keys))
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucketName)
		for i, key := range keys {
			vals[i] = s.value(b.Get([]byte(key)))
		}
		return nil
	})

	return
}

// Purge removes expired records and reports how many were removed.
func Purge(st store.Store) (int, error) {
	s, ok := st.(*boltstore)
	if !ok {
		return 0, ErrNotBoltStore
	}
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	return s.purge(db)
}

func (s *boltstore) purge(db *bolt.DB) (n int, err error) {
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucketName)

		// deleting through the cursor while iterating skips keys
		var expired [][]byte
		b.ForEach(func(k, v []byte) error {
			if len(v) >= headerSize && s.value(v) == nil {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(expired)
		return nil
	})
	return
}

// value strips the header and returns a copy of the payload, or nil when
// the record is missing or expired.
func (s *boltstore) value(rec []byte) []byte {
	if len(rec) < headerSize {
		return nil
	}
	expire := int64(binary.BigEndian.Uint64(rec))
	if expire > 0 && s.now().UnixNano() >= expire {
		return nil
	}
	val := make([]byte, len(rec)-headerSize)
	copy(val, rec[headerSize:])
	return val
}

func (s *boltstore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.purger != nil {
		<-s.purger.Stop().Done()
		s.purger = nil
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
