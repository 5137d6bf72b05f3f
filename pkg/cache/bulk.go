package cache

import (
	"context"
)

// Record is a raw key and value as held by the store.
type Record struct {
	Key   string
	Value []byte
}

// Count returns the number of keys of prefix in the client namespace.
// Backends that may repeat keys during a walk (Redis while rehashing) can
// overcount.
func (c *Client) Count(ctx context.Context, prefix Prefix) (int, error) {
	n := 0
	err := c.walk(ctx, Pattern(c.namespace, prefix), DefaultChunkSize, func(keys []string) (bool, error) {
		n += len(keys)
		return false, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// RemoveAll deletes every key of prefix in the client namespace and
// returns how many deletes were issued.
func (c *Client) RemoveAll(ctx context.Context, prefix Prefix) (int, error) {
	n := 0
	err := c.walk(ctx, Pattern(c.namespace, prefix), DefaultChunkSize, func(keys []string) (bool, error) {
		for _, key := range keys {
			if err := c.store.Delete(ctx, key); err != nil {
				return false, &TransportError{Op: "delete", Key: key, Err: err}
			}
			n++
		}
		return false, nil
	})
	return n, err
}

// All returns every raw record in the client namespace.
func (c *Client) All(ctx context.Context) ([]Record, error) {
	pattern := string(c.namespace) + Delimiter + "*"

	res := make([]Record, 0)
	err := c.walk(ctx, pattern, DefaultChunkSize, func(keys []string) (bool, error) {
		if len(keys) == 0 {
			return false, nil
		}

		vals, err := c.store.MGet(ctx, keys)
		if err != nil {
			return false, &TransportError{Op: "mget", Key: pattern, Err: err}
		}
		for i, val := range vals {
			if val != nil && i < len(keys) {
				res = append(res, Record{Key: keys[i], Value: val})
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
