// Package config loads client settings from an optional YAML file and the
// environment, and opens the configured backend.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/moonwalker/entitycache/pkg/cache"
	"github.com/moonwalker/entitycache/pkg/cloudflare/kv"
	"github.com/moonwalker/entitycache/pkg/env"
	"github.com/moonwalker/entitycache/pkg/store"
	boltstore "github.com/moonwalker/entitycache/pkg/store/bolt"
	memstore "github.com/moonwalker/entitycache/pkg/store/memory"
	pgstore "github.com/moonwalker/entitycache/pkg/store/postgres"
	redistore "github.com/moonwalker/entitycache/pkg/store/redis"
	s3store "github.com/moonwalker/entitycache/pkg/store/s3"
)

const (
	BackendRedis      = "redis"
	BackendBolt       = "bolt"
	BackendS3         = "s3"
	BackendCloudflare = "cloudflare"
	BackendPostgres   = "postgres"
	BackendMemory     = "memory"
)

var ErrMissingSetting = errors.New("config: missing setting")

type Config struct {
	Namespace string `yaml:"namespace"`
	Backend   string `yaml:"backend"`
	LogLevel  string `yaml:"log_level"`

	Redis struct {
		URL      string `yaml:"url"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Bolt struct {
		Path          string `yaml:"path"`
		Bucket        string `yaml:"bucket"`
		PurgeSchedule string `yaml:"purge_schedule"`
	} `yaml:"bolt"`

	S3 struct {
		Bucket string `yaml:"bucket"`
		Region string `yaml:"region"`
	} `yaml:"s3"`

	Cloudflare struct {
		AccountID   string `yaml:"account_id"`
		NamespaceID string `yaml:"namespace_id"`
		Token       string `yaml:"token"`
	} `yaml:"cloudflare"`

	Postgres struct {
		URL   string `yaml:"url"`
		Table string `yaml:"table"`
	} `yaml:"postgres"`
}

func defaults() *Config {
	c := &Config{Backend: BackendRedis, LogLevel: "info"}
	c.Redis.PoolSize = redistore.DefaultPoolSize
	c.Bolt.Bucket = "entitycache"
	c.S3.Region = s3store.DefaultRegion
	c.Postgres.Table = pgstore.DefaultTable
	return c
}

// Load reads path when it is not empty, then applies environment
// overrides.
func Load(path string) (*Config, error) {
	c := defaults()

	if len(path) > 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	c.Namespace = env.Get("ENTITYCACHE_NAMESPACE", c.Namespace)
	c.Backend = env.Get("ENTITYCACHE_BACKEND", c.Backend)
	c.LogLevel = env.Get("ENTITYCACHE_LOG_LEVEL", c.LogLevel)

	c.Redis.URL = env.Get("REDIS_URL", c.Redis.URL)
	c.Redis.PoolSize = env.Int("REDIS_POOL_SIZE", c.Redis.PoolSize)

	c.Bolt.Path = env.Get("ENTITYCACHE_BOLT_PATH", c.Bolt.Path)
	c.Bolt.Bucket = env.Get("ENTITYCACHE_BOLT_BUCKET", c.Bolt.Bucket)
	c.Bolt.PurgeSchedule = env.Get("ENTITYCACHE_BOLT_PURGE_SCHEDULE", c.Bolt.PurgeSchedule)

	c.S3.Bucket = env.Get("ENTITYCACHE_S3_BUCKET", c.S3.Bucket)
	c.S3.Region = env.Get("AWS_REGION", c.S3.Region)

	c.Cloudflare.AccountID = env.Get("CFL_ACCOUNT_ID", c.Cloudflare.AccountID)
	c.Cloudflare.NamespaceID = env.Get("CFL_KV_NS_ID", c.Cloudflare.NamespaceID)
	c.Cloudflare.Token = env.Get("CFL_WORKERS_TOKEN", c.Cloudflare.Token)

	c.Postgres.URL = env.Get("DATABASE_URL", c.Postgres.URL)
	c.Postgres.Table = env.Get("ENTITYCACHE_POSTGRES_TABLE", c.Postgres.Table)
}

// Validate reports the first setting the selected backend needs but
// does not have.
func (c *Config) Validate() error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s", ErrMissingSetting, name)
	}

	if len(c.Namespace) == 0 {
		return missing("namespace")
	}

	switch c.Backend {
	case BackendRedis:
		if len(c.Redis.URL) == 0 {
			return missing("redis.url")
		}
	case BackendBolt:
		if len(c.Bolt.Path) == 0 {
			return missing("bolt.path")
		}
	case BackendS3:
		if len(c.S3.Bucket) == 0 {
			return missing("s3.bucket")
		}
	case BackendCloudflare:
		if len(c.Cloudflare.AccountID) == 0 || len(c.Cloudflare.NamespaceID) == 0 || len(c.Cloudflare.Token) == 0 {
			return missing("cloudflare.account_id, cloudflare.namespace_id and cloudflare.token")
		}
	case BackendPostgres:
		if len(c.Postgres.URL) == 0 {
			return missing("postgres.url")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	return nil
}

// OpenStore builds the backend selected by Backend.
func (c *Config) OpenStore() (store.Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Backend {
	case BackendRedis:
		return redistore.New(c.Redis.URL, redistore.WithPoolSize(c.Redis.PoolSize)), nil
	case BackendBolt:
		var opts []boltstore.Option
		if len(c.Bolt.PurgeSchedule) > 0 {
			opts = append(opts, boltstore.WithPurgeSchedule(c.Bolt.PurgeSchedule))
		}
		return boltstore.New(c.Bolt.Path, c.Bolt.Bucket, opts...), nil
	case BackendS3:
		return s3store.New(c.S3.Bucket, s3store.WithRegion(c.S3.Region)), nil
	case BackendCloudflare:
		return kv.New(c.Cloudflare.AccountID, c.Cloudflare.NamespaceID, c.Cloudflare.Token), nil
	case BackendPostgres:
		return pgstore.New(c.Postgres.URL, pgstore.WithTable(c.Postgres.Table))
	default:
		return memstore.New(), nil
	}
}

// NewClient opens the store and wraps it in a cache client using the
// configured namespace and log level.
func (c *Config) NewClient() (*cache.Client, error) {
	s, err := c.OpenStore()
	if err != nil {
		return nil, err
	}
	return cache.New(s, cache.Namespace(c.Namespace), cache.WithLogger(c.Logger())), nil
}

// Logger returns a JSON slog logger at LogLevel.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
