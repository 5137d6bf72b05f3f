// Package kv implements store.Store on Cloudflare Workers KV through the
// Cloudflare REST API.
package kv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/moonwalker/entitycache/pkg/store"
)

const (
	baseURLFmt = "https://api.cloudflare.com/client/v4/accounts/%s/storage/kv/namespaces/%s"

	// limits imposed by the API
	minTTL      = 60
	minListSize = 10
	maxListSize = 1000
)

type kvstore struct {
	client *req.Client
}

type Option func(*req.Client)

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *req.Client) {
		c.SetBaseURL(u)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *req.Client) {
		c.SetTimeout(d)
	}
}

func New(accountID, namespaceID, token string, opts ...Option) store.Store {
	c := req.C().
		SetBaseURL(fmt.Sprintf(baseURLFmt, accountID, namespaceID)).
		SetCommonBearerAuthToken(token).
		SetTimeout(10 * time.Second)
	for _, opt := range opts {
		opt(c)
	}
	return &kvstore{client: c}
}

func (s *kvstore) GetInternalStore() interface{} {
	return s.client
}

func (s *kvstore) Get(ctx context.Context, key string) ([]byte, error) {
	defer debugDuration(time.Now(), "get", key)

	resp, err := s.client.R().
		SetContext(ctx).
		Get(valuePath(key))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsErrorState() {
		return nil, apiError(resp)
	}
	return resp.Bytes(), nil
}

// Set writes the raw value. TTLs below the API minimum of 60 seconds are
// raised to it.
func (s *kvstore) Set(ctx context.Context, key string, value []byte, options *store.WriteOptions) error {
	defer debugDuration(time.Now(), "put", key)

	r := s.client.R().
		SetContext(ctx).
		SetHeader("content-type", "application/octet-stream").
		SetBody(value)

	if options != nil && options.TTL > 0 {
		ttl := options.TTL
		if ttl < minTTL {
			ttl = minTTL
		}
		r.SetQueryParam("expiration_ttl", strconv.FormatInt(ttl, 10))
	}

	resp, err := r.Put(valuePath(key))
	if err != nil {
		return err
	}
	if resp.IsErrorState() {
		return apiError(resp)
	}
	return nil
}

func (s *kvstore) Delete(ctx context.Context, key string) error {
	defer debugDuration(time.Now(), "delete", key)

	resp, err := s.client.R().
		SetContext(ctx).
		Delete(valuePath(key))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.IsErrorState() {
		return apiError(resp)
	}
	return nil
}

// ScanPage lists keys under the literal prefix of pattern. The API bounds
// a page to 10..1000 keys, count is clamped into that range.
func (s *kvstore) ScanPage(ctx context.Context, cursor string, pattern string, count int) (string, []string, error) {
	defer debugDuration(time.Now(), "list", pattern)

	if err := store.CheckPattern(pattern); err != nil {
		return "", nil, err
	}
	if count < minListSize {
		count = minListSize
	}
	if count > maxListSize {
		count = maxListSize
	}

	r := s.client.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(count))
	if prefix := store.LiteralPrefix(pattern); len(prefix) > 0 {
		r.SetQueryParam("prefix", prefix)
	}
	if cursor != store.CursorStart && cursor != "" {
		r.SetQueryParam("cursor", cursor)
	}

	resp, err := r.Get("/keys")
	if err != nil {
		return "", nil, err
	}
	if resp.IsErrorState() {
		return "", nil, apiError(resp)
	}

	body := resp.Bytes()
	if !gjson.GetBytes(body, "success").Bool() {
		return "", nil, apiError(resp)
	}

	names := gjson.GetBytes(body, "result.#.name").Array()
	keys := make([]string, 0, len(names))
	for _, name := range names {
		if store.Match(pattern, name.String()) {
			keys = append(keys, name.String())
		}
	}

	next := gjson.GetBytes(body, "result_info.cursor").String()
	if len(next) == 0 {
		next = store.CursorStart
	}

	return next, keys, nil
}

func (s *kvstore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	vals := make([][]byte, len(keys))
	for i, key := range keys {
		val, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		vals[i] = val
	}
	return vals, nil
}

func (s *kvstore) Close() error {
	return nil
}

func valuePath(key string) string {
	return fmt.Sprintf("/values/%s", url.PathEscape(key))
}

func apiError(resp *req.Response) error {
	msg := gjson.GetBytes(resp.Bytes(), "errors.0.message").String()
	if len(msg) == 0 {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("cloudflare kv: %d %s", resp.StatusCode, msg)
}

func debugDuration(start time.Time, op string, key string) {
	slog.Debug("cloudflare kv request", "op", op, "key", key, "took", time.Since(start).String())
}
