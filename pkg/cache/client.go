// Package cache is a namespaced entity cache on top of a store.Store.
//
// Entities are JSON encoded under "namespace:prefix:id" keys. Single entity
// operations treat a corrupt record as an error; bulk scans skip records
// that do not decode and keep going.
package cache

import (
	"context"
	"log/slog"

	"github.com/moonwalker/entitycache/pkg/store"
)

const contentType = "application/json"

// Client is safe for concurrent use. It holds no state besides the store
// handle, so copies share the same backend.
type Client struct {
	store     store.Store
	namespace Namespace
	log       *slog.Logger
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(s store.Store, ns Namespace, opts ...Option) *Client {
	c := &Client{
		store:     s,
		namespace: ns,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Namespace() Namespace {
	return c.namespace
}

func (c *Client) Store() store.Store {
	return c.store
}

// Key composes the store key of an entity in the client namespace.
func (c *Client) Key(prefix Prefix, id ID) string {
	return Key(c.namespace, prefix, id)
}

func (c *Client) Close() error {
	return c.store.Close()
}

type SaveOptions struct {
	TTL int64 // seconds, 0 keeps the record until removed
}

// GetEntity returns nil, nil when the entity does not exist.
func GetEntity[T any](ctx context.Context, c *Client, prefix Prefix, id ID) (*T, error) {
	key := c.Key(prefix, id)

	val, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, &TransportError{Op: "get", Key: key, Err: err}
	}
	if val == nil {
		return nil, nil
	}

	v, err := Decode[T](val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SaveEntity overwrites the entity unconditionally.
func SaveEntity[T any](ctx context.Context, c *Client, prefix Prefix, id ID, value T, opts *SaveOptions) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}

	wo := &store.WriteOptions{ContentType: contentType}
	if opts != nil && opts.TTL > 0 {
		wo.TTL = opts.TTL
	}

	key := c.Key(prefix, id)
	if err := c.store.Set(ctx, key, data, wo); err != nil {
		return &TransportError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// RemoveEntity deletes the entity; removing an absent entity is not an
// error.
func RemoveEntity(ctx context.Context, c *Client, prefix Prefix, id ID) error {
	key := c.Key(prefix, id)
	if err := c.store.Delete(ctx, key); err != nil {
		return &TransportError{Op: "delete", Key: key, Err: err}
	}
	return nil
}
