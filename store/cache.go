package store

import (
	"context"
	"errors"
	"time"

	"github.com/alphadose/haxmap"
)

// DefaultConfigTTL is how long a configuration lookup is cached.
const DefaultConfigTTL = 5 * time.Minute

var _ AgentConfigStore = (*CachedConfigs)(nil)

type cacheEntry struct {
	config   AgentConfig
	found    bool
	loadedAt time.Time
}

// CachedConfigs caches GetLatest results, including misses, for a fixed TTL.
// Create writes through and drops the cached entry.
type CachedConfigs struct {
	next    AgentConfigStore
	ttl     time.Duration
	entries *haxmap.Map[string, cacheEntry]
	now     func() time.Time
}

func NewCachedConfigs(next AgentConfigStore, ttl time.Duration) *CachedConfigs {
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	return &CachedConfigs{
		next:    next,
		ttl:     ttl,
		entries: haxmap.New[string, cacheEntry](),
		now:     time.Now,
	}
}

func (c *CachedConfigs) GetLatest(ctx context.Context, id string) (AgentConfig, error) {
	if e, ok := c.entries.Get(id); ok && c.now().Sub(e.loadedAt) < c.ttl {
		if !e.found {
			return AgentConfig{}, ErrNotFound
		}
		return e.config, nil
	}

	cfg, err := c.next.GetLatest(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		c.entries.Set(id, cacheEntry{loadedAt: c.now()})
		return AgentConfig{}, ErrNotFound
	case err != nil:
		return AgentConfig{}, err
	}
	c.entries.Set(id, cacheEntry{config: cfg, found: true, loadedAt: c.now()})
	return cfg, nil
}

func (c *CachedConfigs) Create(ctx context.Context, cfg NewAgentConfig) (AgentConfig, error) {
	created, err := c.next.Create(ctx, cfg)
	if err != nil {
		return AgentConfig{}, err
	}
	c.entries.Del(created.ID)
	return created, nil
}
