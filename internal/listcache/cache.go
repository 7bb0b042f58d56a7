package listcache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source is the read side of the persistent list store.
type Source interface {
	ListWhitelistPatterns(ctx context.Context, guildID string) ([]string, error)
	ListBlacklistPatterns(ctx context.Context, guildID string) ([]string, error)
}

// GuildLists is a cached snapshot of one guild's allow/deny patterns.
// Pattern sets are never mutated after construction, so readers can hold
// them without copying.
type GuildLists struct {
	Whitelist map[string]struct{}
	Blacklist map[string]struct{}
}

// Cache serves per-guild allow/deny lists with a bounded TTL and a shared
// remote blacklist snapshot. Guild entries are populated lazily on first
// use, deduped through singleflight, and dropped on explicit invalidation
// or TTL expiry. The remote snapshot is swapped atomically so readers never
// block on a refresh.
type Cache struct {
	source  Source
	logger  *zap.Logger
	entries *expirable.LRU[string, *GuildLists]
	group   singleflight.Group
	remote  atomic.Pointer[remoteSnapshot]
	fetcher RemoteFetcher
}

type remoteSnapshot struct {
	patterns  map[string]struct{}
	fetchedAt time.Time
}

// RemoteFetcher retrieves the shared threat-intelligence blacklist.
type RemoteFetcher interface {
	FetchPatterns(ctx context.Context) ([]string, error)
}

func New(source Source, fetcher RemoteFetcher, maxGuilds int, ttl time.Duration, logger *zap.Logger) *Cache {
	c := &Cache{
		source:  source,
		logger:  logger,
		fetcher: fetcher,
		entries: expirable.NewLRU[string, *GuildLists](maxGuilds, nil, ttl),
	}
	c.remote.Store(&remoteSnapshot{patterns: map[string]struct{}{}})
	return c
}

func (c *Cache) GetWhitelist(ctx context.Context, guildID string) (map[string]struct{}, error) {
	lists, err := c.guildLists(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return lists.Whitelist, nil
}

// GetBlacklist returns the guild's manual blacklist. The shared remote
// blacklist is exposed separately via Remote.
func (c *Cache) GetBlacklist(ctx context.Context, guildID string) (map[string]struct{}, error) {
	lists, err := c.guildLists(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return lists.Blacklist, nil
}

// Remote returns the current remote blacklist snapshot. Lock-free read.
func (c *Cache) Remote() map[string]struct{} {
	return c.remote.Load().patterns
}

// Invalidate drops the cached entry for a guild. Called after any admin
// edit to the guild's lists.
func (c *Cache) Invalidate(guildID string) {
	c.entries.Remove(guildID)
}

func (c *Cache) guildLists(ctx context.Context, guildID string) (*GuildLists, error) {
	if lists, ok := c.entries.Get(guildID); ok {
		return lists, nil
	}

	value, err, _ := c.group.Do(guildID, func() (any, error) {
		if lists, ok := c.entries.Get(guildID); ok {
			return lists, nil
		}
		white, err := c.source.ListWhitelistPatterns(ctx, guildID)
		if err != nil {
			return nil, err
		}
		black, err := c.source.ListBlacklistPatterns(ctx, guildID)
		if err != nil {
			return nil, err
		}
		lists := &GuildLists{
			Whitelist: toSet(white),
			Blacklist: toSet(black),
		}
		c.entries.Add(guildID, lists)
		return lists, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*GuildLists), nil
}

// RefreshRemoteFeed fetches the shared blacklist and swaps the snapshot in
// one atomic store. On failure the previous snapshot stays in place.
func (c *Cache) RefreshRemoteFeed(ctx context.Context) error {
	if c.fetcher == nil {
		return nil
	}
	patterns, err := c.fetcher.FetchPatterns(ctx)
	if err != nil {
		c.logger.Warn("remote feed refresh failed", zap.Error(err))
		return err
	}
	c.remote.Store(&remoteSnapshot{patterns: toSet(patterns), fetchedAt: time.Now()})
	c.logger.Info("remote feed refreshed", zap.Int("patterns", len(patterns)))
	return nil
}

// StartRefreshLoop refreshes the remote feed on a fixed interval until ctx
// is cancelled. One initial refresh runs immediately.
func (c *Cache) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if c.fetcher == nil || interval <= 0 {
		return
	}
	go func() {
		_ = c.RefreshRemoteFeed(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = c.RefreshRemoteFeed(ctx)
			}
		}
	}()
}

func toSet(patterns []string) map[string]struct{} {
	set := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}
