package runtime

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wasmship/wasmship/registry"
)

// Cache shares one compiled Runtime per module digest. Instances are still
// created per Invoke, so cached runtimes never share mutable state.
type Cache struct {
	kind    Kind
	cfg     Config
	group   singleflight.Group
	entries map[string]*Runtime
	mu      sync.RWMutex
	closed  bool
}

// NewCache creates an empty cache compiling with kind and cfg.
func NewCache(kind Kind, cfg Config) *Cache {
	return &Cache{
		kind:    kind,
		cfg:     cfg,
		entries: make(map[string]*Runtime),
	}
}

// Get returns the runtime for mod, compiling it on first use. Concurrent
// callers for the same digest wait on a single compilation.
func (c *Cache) Get(ctx context.Context, mod *registry.Module) (*Runtime, error) {
	key := mod.Digest.String()

	c.mu.RLock()
	rt, ok := c.entries[key]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, errCacheClosed
	}
	if ok {
		return rt, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		rt, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return rt, nil
		}

		rt, err := New(ctx, c.kind, mod, c.cfg)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = rt.Close(ctx)
			return nil, errCacheClosed
		}
		c.entries[key] = rt
		Logger().Debug("compiled module", zap.String("hash", mod.Hash()))
		return rt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Runtime), nil
}

// Len returns the number of compiled modules held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close releases every cached runtime. Get fails afterwards.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*Runtime)
	c.closed = true
	c.mu.Unlock()

	var errs []error
	for _, rt := range entries {
		if err := rt.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

var errCacheClosed = stderrors.New("runtime cache closed")
