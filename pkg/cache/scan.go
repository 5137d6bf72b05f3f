package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/moonwalker/entitycache/pkg/store"
)

const (
	DefaultChunkSize = 100

	// LegacyLimit caps ScanAll, which takes no options.
	LegacyLimit = 1000
)

// ScanOptions bound a scan. Zero values take the defaults: ChunkSize
// DefaultChunkSize and no Limit.
//
// Limit counts records returned by the store for each page, including
// records that fail to decode, and is checked after each page. A scan may
// therefore return up to ChunkSize-1 records past the limit, or fewer than
// the limit when records were skipped.
type ScanOptions struct {
	ChunkSize int
	Limit     int
}

func (o *ScanOptions) resolve() (chunk int, limit int, err error) {
	chunk = DefaultChunkSize
	if o == nil {
		return
	}
	if o.ChunkSize < 0 || o.Limit < 0 {
		return 0, 0, fmt.Errorf("%w: chunk size %d, limit %d", ErrInvalidOptions, o.ChunkSize, o.Limit)
	}
	if o.ChunkSize > 0 {
		chunk = o.ChunkSize
	}
	return chunk, o.Limit, nil
}

// Scan returns every record matching the store glob pattern that decodes
// into a T, in store enumeration order. Records that fail to decode are
// skipped. A store failure aborts the scan and no records are returned.
//
// Only Redis evaluates character classes ("[ab]"). The other backends
// filter keys themselves and fail such patterns with
// store.ErrUnsupportedPattern.
func Scan[T any](ctx context.Context, c *Client, pattern string, opts *ScanOptions) ([]T, error) {
	res := make([]T, 0)
	err := Each(ctx, c, pattern, opts, func(v T) {
		res = append(res, v)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ScanAll is Scan with the default chunk size and LegacyLimit.
func ScanAll[T any](ctx context.Context, c *Client, pattern string) ([]T, error) {
	return Scan[T](ctx, c, pattern, &ScanOptions{ChunkSize: DefaultChunkSize, Limit: LegacyLimit})
}

// ScanPrefix scans every entity of prefix in the client namespace.
func ScanPrefix[T any](ctx context.Context, c *Client, prefix Prefix, opts *ScanOptions) ([]T, error) {
	return Scan[T](ctx, c, Pattern(c.namespace, prefix), opts)
}

// Each is the streaming form of Scan: fn is called for every decoded
// record as pages arrive. On error fn may already have seen some records.
func Each[T any](ctx context.Context, c *Client, pattern string, opts *ScanOptions, fn func(T)) error {
	chunk, limit, err := opts.resolve()
	if err != nil {
		return err
	}

	retrieved := 0
	return c.walk(ctx, pattern, chunk, func(keys []string) (bool, error) {
		if len(keys) > 0 {
			vals, err := c.store.MGet(ctx, keys)
			if err != nil {
				return false, &TransportError{Op: "mget", Key: pattern, Err: err}
			}

			for i, val := range vals {
				// expired or removed since the page was listed
				if val == nil {
					continue
				}
				v, err := Decode[T](val)
				if err != nil {
					if i < len(keys) {
						c.log.Debug("skipping undecodable record", "key", keys[i], "error", err)
					}
					continue
				}
				fn(v)
			}

			retrieved += len(vals)
		}
		return limit > 0 && retrieved >= limit, nil
	})
}

// walk pages through the keys matching pattern until the store reports
// the end of the enumeration or fn asks to stop.
func (c *Client) walk(ctx context.Context, pattern string, chunk int, fn func(keys []string) (stop bool, err error)) error {
	cursor := store.CursorStart
	for {
		start := time.Now()
		next, keys, err := c.store.ScanPage(ctx, cursor, pattern, chunk)
		if err != nil {
			return &TransportError{Op: "scan", Key: pattern, Err: err}
		}
		c.log.Debug("scan page", "pattern", pattern, "cursor", cursor, "keys", len(keys), "took", time.Since(start).String())

		stop, err := fn(keys)
		if err != nil {
			return err
		}
		if stop || next == store.CursorStart || next == "" {
			return nil
		}
		cursor = next
	}
}
