package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Transcript cache: L1 in-memory + optional L2 Redis.
// L1 is lost on restart; L2 survives restarts and is shared between replicas.
var (
	transcriptCache *tieredCache
	cacheMu         sync.Mutex
)

var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

type tieredCache struct {
	l1         sync.Map      // key → *cacheEntry
	rdb        *redis.Client // nil if Redis unavailable
	ttl        time.Duration
	maxEntries int
	size       atomic.Int64
	stop       chan struct{}
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// InitCache sets up the cache. redisURL can be empty to disable L2.
// Calling it again replaces the previous cache.
func InitCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) {
	c := &tieredCache{ttl: ttl, maxEntries: maxEntries, stop: make(chan struct{})}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
				_ = rdb.Close()
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	cacheMu.Lock()
	prev := transcriptCache
	transcriptCache = c
	cacheMu.Unlock()
	if prev != nil {
		prev.close()
	}

	slog.Info("cache: initialized", slog.Duration("ttl", ttl), slog.Bool("redis", c.rdb != nil), slog.Int("max_entries", maxEntries))
	go c.cleanupLoop(cleanupInterval)
}

func currentCache() *tieredCache {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	return transcriptCache
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("gt:%x", hash[:12])
}

// CacheGet tries L1, then L2. An L2 hit repopulates L1.
func CacheGet(ctx context.Context, key string) ([]byte, bool) {
	c := currentCache()
	if c == nil {
		cacheMisses.Add(1)
		return nil, false
	}

	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			slog.Debug("cache: L1 hit", slog.String("key", key))
			cacheHits.Add(1)
			return entry.data, true
		}
		c.delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			slog.Debug("cache: L2 hit", slog.String("key", key))
			cacheHits.Add(1)
			c.store(key, data)
			return data, true
		}
		if err != redis.Nil {
			slog.Debug("cache: L2 get failed", slog.Any("error", err))
		}
	}

	cacheMisses.Add(1)
	return nil, false
}

// CacheSet stores data in both tiers.
func CacheSet(ctx context.Context, key string, data []byte) {
	c := currentCache()
	if c == nil {
		return
	}
	c.evictIfNeeded()
	c.store(key, data)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

func (c *tieredCache) store(key string, data []byte) {
	_, loaded := c.l1.Swap(key, &cacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)})
	if !loaded {
		c.size.Add(1)
	}
}

func (c *tieredCache) delete(key string) {
	if _, loaded := c.l1.LoadAndDelete(key); loaded {
		c.size.Add(-1)
	}
}

// evictIfNeeded drops expired entries, then the entries closest to expiry,
// until L1 is below maxEntries.
func (c *tieredCache) evictIfNeeded() {
	if c.maxEntries <= 0 || c.size.Load() < int64(c.maxEntries) {
		return
	}
	c.removeExpired(time.Now())

	for c.size.Load() >= int64(c.maxEntries) {
		var oldestKey any
		var oldestAt time.Time
		c.l1.Range(func(key, val any) bool {
			entry := val.(*cacheEntry)
			if oldestKey == nil || entry.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt = key, entry.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			return
		}
		c.delete(oldestKey.(string))
	}
}

func (c *tieredCache) removeExpired(now time.Time) {
	c.l1.Range(func(key, val any) bool {
		if entry := val.(*cacheEntry); now.After(entry.expiresAt) {
			c.delete(key.(string))
		}
		return true
	})
}

func (c *tieredCache) cleanupLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.removeExpired(time.Now())
		case <-c.stop:
			return
		}
	}
}

func (c *tieredCache) close() {
	close(c.stop)
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
}
