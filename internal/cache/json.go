package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	applog "landledger/internal/log"
)

// JSONCache memoizes JSON-encoded results in a Store. Concurrent misses on the
// same key share one computation.
type JSONCache struct {
	store Store
	group singleflight.Group
	// bumped by Invalidate; results computed across a bump are not stored
	gen atomic.Int64
}

func NewJSONCache(store Store) *JSONCache {
	return &JSONCache{store: store}
}

// Load returns the cached encoding of key, computing and storing it on a miss.
// Store failures degrade to computing the value directly.
func (c *JSONCache) Load(ctx context.Context, key string, compute func(context.Context) (any, error)) ([]byte, error) {
	if b, ok, err := c.store.Get(ctx, key); err != nil {
		slog.WarnContext(ctx, "Cache read failed", applog.FieldComponent, applog.ComponentCache, "key", key, applog.FieldError, err)
	} else if ok {
		return b, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		gen := c.gen.Load()
		val, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		if gen != c.gen.Load() {
			return b, nil
		}
		if err := c.store.Set(ctx, key, b); err != nil {
			slog.WarnContext(ctx, "Cache write failed", applog.FieldComponent, applog.ComponentCache, "key", key, applog.FieldError, err)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate drops every cached result.
func (c *JSONCache) Invalidate(ctx context.Context) {
	c.gen.Add(1)
	if err := c.store.Clear(ctx); err != nil {
		slog.ErrorContext(ctx, "Cache invalidation failed", applog.FieldComponent, applog.ComponentCache, applog.FieldError, err)
	}
}
