package pgstore

import (
	"context"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"

	"github.com/moonwalker/entitycache/pkg/store"
)

const DefaultTable = "entity_cache"

type record struct {
	Key       string `gorm:"primary_key"`
	Value     []byte
	ExpiresAt *time.Time `gorm:"index"`
}

type pgstore struct {
	db    *gorm.DB
	table string
	now   func() time.Time
}

type Option func(*pgstore)

func WithTable(name string) Option {
	return func(s *pgstore) {
		if len(name) > 0 {
			s.table = name
		}
	}
}

// New opens the database and creates the record table if needed.
func New(connectionString string, opts ...Option) (store.Store, error) {
	db, err := gorm.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}

	s := &pgstore{db: db, table: DefaultTable, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.Table(s.table).AutoMigrate(&record{}).Error; err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *pgstore) GetInternalStore() interface{} {
	return s.db
}

// live scopes a query to the table and to records that have not expired.
func (s *pgstore) live() *gorm.DB {
	return s.db.Table(s.table).
		Where("expires_at IS NULL OR expires_at > ?", s.now())
}

func (s *pgstore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var row record
	err := s.live().Where("key = ?", key).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.Value, nil
}

func (s *pgstore) Set(ctx context.Context, key string, value []byte, options *store.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := record{Key: key, Value: value}
	if options != nil && options.TTL > 0 {
		at := s.now().Add(time.Duration(options.TTL) * time.Second)
		row.ExpiresAt = &at
	}

	return s.db.Table(s.table).Save(&row).Error
}

func (s *pgstore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Table(s.table).Where("key = ?", key).Delete(&record{}).Error
}

// ScanPage reads keys in order after the cursor key. One extra row is
// fetched to know whether the walk is exhausted.
func (s *pgstore) ScanPage(ctx context.Context, cursor string, pattern string, count int) (string, []string, error) {
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
		count = 10
	}

	q := s.live().Where("key LIKE ?", likePattern(pattern))
	if resume {
		q = q.Where("key > ?", after)
	}

	var rows []record
	err = q.Select("key").Order("key").Limit(count + 1).Find(&rows).Error
	if err != nil {
		return "", nil, err
	}

	next := store.CursorStart
	if len(rows) > count {
		rows = rows[:count]
		next = store.EncodeCursor(rows[len(rows)-1].Key)
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		if store.Match(pattern, row.Key) {
			keys = append(keys, row.Key)
		}
	}

	return next, keys, nil
}

func (s *pgstore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vals := make([][]byte, len(keys))
	if len(keys) == 0 {
		return vals, nil
	}

	var rows []record
	err := s.live().Where("key IN (?)", keys).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byKey := make(map[string][]byte, len(rows))
	for _, row := range rows {
		byKey[row.Key] = row.Value
	}
	for i, key := range keys {
		vals[i] = byKey[key]
	}
	return vals, nil
}

func (s *pgstore) Close() error {
	return s.db.Close()
}

// likePattern translates a glob into a LIKE pattern; exact glob semantics
// are applied afterwards with store.Match.
func likePattern(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '%', '_', '\\':
			b.WriteRune('\\')
			b.WriteRune(r)
		case '*':
			b.WriteRune('%')
		case '?':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
