package cache

import (
	"context"
)

// Repo is a typed view of one prefix in the client namespace.
type Repo[T any] struct {
	client *Client
	prefix Prefix
}

func NewRepo[T any](c *Client, prefix Prefix) *Repo[T] {
	return &Repo[T]{client: c, prefix: prefix}
}

func (r *Repo[T]) Prefix() Prefix {
	return r.prefix
}

func (r *Repo[T]) Get(ctx context.Context, id ID) (*T, error) {
	return GetEntity[T](ctx, r.client, r.prefix, id)
}

func (r *Repo[T]) Save(ctx context.Context, id ID, value T, opts *SaveOptions) error {
	return SaveEntity(ctx, r.client, r.prefix, id, value, opts)
}

func (r *Repo[T]) Remove(ctx context.Context, id ID) error {
	return RemoveEntity(ctx, r.client, r.prefix, id)
}

func (r *Repo[T]) Each(ctx context.Context, opts *ScanOptions, fn func(T)) error {
	return Each(ctx, r.client, Pattern(r.client.namespace, r.prefix), opts, fn)
}

func (r *Repo[T]) List(ctx context.Context, opts *ScanOptions) ([]T, error) {
	return ScanPrefix[T](ctx, r.client, r.prefix, opts)
}

func (r *Repo[T]) Count(ctx context.Context) (int, error) {
	return r.client.Count(ctx, r.prefix)
}

func (r *Repo[T]) RemoveAll(ctx context.Context) (int, error) {
	return r.client.RemoveAll(ctx, r.prefix)
}
