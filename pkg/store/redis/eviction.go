package redistore

import (
	"context"
	"fmt"

	"github.com/gomodule/redigo/redis"
)

type EvictionPolicy int

const (
	NoEviction EvictionPolicy = iota
	AllKeysLRU
	AllKeysLFU
	AllKeysRandom
	VolatileLRU
	VolatileLFU
	VolatileRandom
	VolatileTTL
)

var evictionPolicyNames = map[EvictionPolicy]string{
	NoEviction:     "noeviction",
	AllKeysLRU:     "allkeys-lru",
	AllKeysLFU:     "allkeys-lfu",
	AllKeysRandom:  "allkeys-random",
	VolatileLRU:    "volatile-lru",
	VolatileLFU:    "volatile-lfu",
	VolatileRandom: "volatile-random",
	VolatileTTL:    "volatile-ttl",
}

func (p EvictionPolicy) String() string {
	if name, ok := evictionPolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("EvictionPolicy(%d)", int(p))
}

func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	for p, name := range evictionPolicyNames {
		if name == s {
			return p, nil
		}
	}
	return NoEviction, fmt.Errorf("unknown eviction policy: %q", s)
}

// EvictionPolicy reads maxmemory-policy from the server.
func (s *Store) EvictionPolicy(ctx context.Context) (EvictionPolicy, error) {
	// CONFIG GET replies with a flat [name, value] list
	values, err := redis.Strings(s.do(ctx, "CONFIG", "GET", "maxmemory-policy"))
	if err != nil {
		return NoEviction, err
	}
	if len(values) != 2 {
		return NoEviction, fmt.Errorf("unexpected CONFIG GET reply: %v", values)
	}
	return ParseEvictionPolicy(values[1])
}

// SetEvictionPolicy updates maxmemory-policy and returns the policy the
// server reports afterwards.
func (s *Store) SetEvictionPolicy(ctx context.Context, p EvictionPolicy) (EvictionPolicy, error) {
	if _, ok := evictionPolicyNames[p]; !ok {
		return NoEviction, fmt.Errorf("unknown eviction policy: %d", int(p))
	}
	if _, err := s.do(ctx, "CONFIG", "SET", "maxmemory-policy", p.String()); err != nil {
		return NoEviction, err
	}
	return s.EvictionPolicy(ctx)
}
