package search

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache stores suggestion lists by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool)
	Set(ctx context.Context, key string, v []string, ttl time.Duration)
}

// LocalLRU is an in-process LRU with per-entry expiry.
type LocalLRU struct {
	mu   sync.Mutex
	cap  int
	list *list.List
	m    map[string]*list.Element
	now  func() time.Time
}

type lruEntry struct {
	key string
	val []string
	exp time.Time
}

func NewLocalLRU(capacity int) *LocalLRU {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LocalLRU{cap: capacity, list: list.New(), m: make(map[string]*list.Element, capacity), now: time.Now}
}

func (l *LocalLRU) Get(_ context.Context, key string) ([]string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.m[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(lruEntry)
	if !ent.exp.After(l.now()) {
		l.list.Remove(el)
		delete(l.m, key)
		return nil, false
	}
	l.list.MoveToFront(el)
	return append([]string(nil), ent.val...), true
}

func (l *LocalLRU) Set(_ context.Context, key string, v []string, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ent := lruEntry{key: key, val: append([]string(nil), v...), exp: l.now().Add(ttl)}
	if el, ok := l.m[key]; ok {
		el.Value = ent
		l.list.MoveToFront(el)
		return
	}
	l.m[key] = l.list.PushFront(ent)
	if l.list.Len() > l.cap {
		if back := l.list.Back(); back != nil {
			delete(l.m, back.Value.(lruEntry).key)
			l.list.Remove(back)
		}
	}
}

// Len reports the number of cached entries, expired or not.
func (l *LocalLRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list.Len()
}

// RedisCache keeps suggestion lists as JSON strings.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "libreplexity:ac:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]string, bool) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (r *RedisCache) Set(ctx context.Context, key string, v []string, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, r.prefix+key, b, ttl).Err()
}

// CachedAutocompleter memoizes another Autocompleter by exact query.
type CachedAutocompleter struct {
	next  Autocompleter
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedAutocompleter(next Autocompleter, cache Cache, ttl time.Duration, logger *zerolog.Logger) *CachedAutocompleter {
	c := &CachedAutocompleter{next: next, cache: cache, ttl: ttl, log: zerolog.Nop()}
	if logger != nil {
		c.log = logger.With().Str("component", "autocomplete").Logger()
	}
	return c
}

// Suggest implements Autocompleter. Errors are never cached.
func (c *CachedAutocompleter) Suggest(ctx context.Context, query, locale string) ([]string, error) {
	if c.next == nil {
		return nil, errors.New("autocomplete: no provider")
	}
	key := locale + "|" + query
	if v, ok := c.cache.Get(ctx, key); ok {
		c.log.Debug().Str("query", query).Msg("autocomplete cache hit")
		return v, nil
	}
	v, err := c.next.Suggest(ctx, query, locale)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, v, c.ttl)
	return v, nil
}
