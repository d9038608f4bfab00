// Package cache holds encoded entities keyed by id. Values are opaque bytes so
// the same interface fronts an in-process LRU and a shared memcached pool.
package cache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache stores values by key. Misses and backend failures both read as a miss.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(keys ...string)
}

// GetJSON decodes a cached JSON value into v.
func GetJSON(c Cache, key string, v any) bool {
	raw, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// SetJSON encodes v as JSON and stores it.
func SetJSON(c Cache, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(key, raw)
}

// LRU is a size-bounded in-process cache with a per-entry TTL.
type LRU struct {
	entries *expirable.LRU[string, []byte]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	return &LRU{entries: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *LRU) Get(key string) ([]byte, bool) { return c.entries.Get(key) }

func (c *LRU) Set(key string, value []byte) { c.entries.Add(key, value) }

func (c *LRU) Delete(keys ...string) {
	for _, k := range keys {
		c.entries.Remove(k)
	}
}

// Memcache is a cache shared by every instance through memcached.
type Memcache struct {
	client *memcache.Client
	ttl    int32
	logger *slog.Logger
}

// NewMemcache connects to a comma separated list of memcached servers.
func NewMemcache(servers string, ttl time.Duration, logger *slog.Logger) *Memcache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memcache{
		client: memcache.New(strings.Split(servers, ",")...),
		ttl:    expiration(ttl),
		logger: logger,
	}
}

// expiration converts ttl to memcached seconds. memcached reads 0 as "never
// expire", so a positive ttl under a second rounds up to one.
func expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl < time.Second {
		return 1
	}
	return int32(ttl / time.Second)
}

func (c *Memcache) Get(key string) ([]byte, bool) {
	item, err := c.client.Get(key)
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			c.logger.Warn("memcache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return item.Value, true
}

func (c *Memcache) Set(key string, value []byte) {
	err := c.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: c.ttl,
	})
	if err != nil {
		c.logger.Warn("memcache set failed", "key", key, "error", err)
	}
}

func (c *Memcache) Delete(keys ...string) {
	for _, k := range keys {
		if err := c.client.Delete(k); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			c.logger.Warn("memcache delete failed", "key", k, "error", err)
		}
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(string) ([]byte, bool) { return nil, false }
func (Nop) Set(string, []byte)        {}
func (Nop) Delete(...string)          {}
