package pipeline

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"modguard/internal/config"
)

// ConfigSource is the persistent side of guild moderation config.
type ConfigSource interface {
	GetGuildConfig(ctx context.Context, guildID string, defaults config.GuildConfig) (config.GuildConfig, error)
}

// ConfigCache keeps per-guild moderation config with a bounded TTL.
// Entries are invalidated explicitly on admin edits, so reads between
// edits can be served without touching storage.
type ConfigCache struct {
	source   ConfigSource
	defaults config.GuildConfig
	entries  *expirable.LRU[string, config.GuildConfig]
	group    singleflight.Group
}

func NewConfigCache(source ConfigSource, defaults config.GuildConfig, maxGuilds int, ttl time.Duration) *ConfigCache {
	return &ConfigCache{
		source:   source,
		defaults: defaults,
		entries:  expirable.NewLRU[string, config.GuildConfig](maxGuilds, nil, ttl),
	}
}

func (c *ConfigCache) Get(ctx context.Context, guildID string) (config.GuildConfig, error) {
	if cfg, ok := c.entries.Get(guildID); ok {
		return cfg, nil
	}
	value, err, _ := c.group.Do(guildID, func() (any, error) {
		if cfg, ok := c.entries.Get(guildID); ok {
			return cfg, nil
		}
		cfg, err := c.source.GetGuildConfig(ctx, guildID, c.defaults)
		if err != nil {
			return config.GuildConfig{}, err
		}
		c.entries.Add(guildID, cfg)
		return cfg, nil
	})
	if err != nil {
		return config.GuildConfig{}, err
	}
	return value.(config.GuildConfig), nil
}

func (c *ConfigCache) Invalidate(guildID string) {
	c.entries.Remove(guildID)
}
