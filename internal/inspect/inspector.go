package inspect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"modguard/internal/config"
	"modguard/internal/listcache"
	"modguard/internal/metrics"
	"modguard/internal/moderation"
	"modguard/internal/signature"
)

// Inspector classifies attachments and links as dangerous. It is stateless
// apart from its signature table and the shared allow/deny cache; every
// decision fails open so a network hiccup never blocks legitimate traffic.
type Inspector struct {
	table        *signature.Table
	cache        *listcache.Cache
	client       *http.Client
	fetchTimeout time.Duration
	logger       *zap.Logger
}

func New(table *signature.Table, cache *listcache.Cache, fetchTimeout time.Duration, logger *zap.Logger) *Inspector {
	if fetchTimeout <= 0 {
		fetchTimeout = 3 * time.Second
	}
	return &Inspector{
		table:        table,
		cache:        cache,
		client:       &http.Client{Timeout: fetchTimeout},
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// IsDangerousAttachment applies the ordered attachment policy: size
// exemption, whitelist, extension, then the byte-signature fetch. The
// first conclusive step wins.
func (i *Inspector) IsDangerousAttachment(ctx context.Context, guildID string, att moderation.Attachment, cfg config.GuildConfig) bool {
	// Oversized attachments are exempt from deep inspection; size
	// enforcement belongs to the platform.
	if cfg.MaxFileSizeMB > 0 && att.SizeBytes > int64(cfg.MaxFileSizeMB)<<20 {
		return false
	}

	whitelist := i.whitelist(ctx, guildID)
	if matchesAny(att.Filename, whitelist) {
		return false
	}

	if i.table.DangerousExtension(fileExt(att.Filename), cfg.CustomExtensionSet(), cfg.StrictMode) {
		return true
	}

	// Extension inconclusive: check the real bytes when a source exists.
	if att.URL == "" {
		return false
	}
	prefix, err := i.fetchPrefix(ctx, att.URL)
	if err != nil {
		metrics.SignatureFetches.WithLabelValues("error").Inc()
		i.logger.Warn("signature fetch failed, failing open",
			zap.String("guild_id", guildID),
			zap.String("filename", att.Filename),
			zap.Error(err),
		)
		return false
	}
	metrics.SignatureFetches.WithLabelValues("ok").Inc()
	return i.table.MatchesMagic(prefix)
}

// FindDangerousLinks scans message text for URLs and returns the ones that
// hit the domain blacklists or carry a dangerous filename. Malformed URLs
// are skipped; the rest of the text is still scanned.
func (i *Inspector) FindDangerousLinks(ctx context.Context, guildID, text string, cfg config.GuildConfig) []string {
	urls := ExtractURLs(text)
	if len(urls) == 0 {
		return nil
	}

	whitelist := i.whitelist(ctx, guildID)
	blacklist := i.blacklist(ctx, guildID)
	remote := i.cache.Remote()

	var dangerous []string
	for _, raw := range urls {
		parsed, host, err := NormalizeURL(raw)
		if err != nil {
			i.logger.Debug("skipping malformed url", zap.String("url", raw), zap.Error(err))
			continue
		}

		if matchesAny(host, whitelist) {
			continue
		}
		if matchesAny(host, blacklist) || matchesAny(host, remote) {
			dangerous = append(dangerous, raw)
			continue
		}

		filename := candidateFilename(parsed)
		if filename == "" {
			continue
		}
		if matchesAny(filename, whitelist) {
			continue
		}
		if matchesAny(filename, blacklist) || matchesAny(filename, remote) {
			dangerous = append(dangerous, raw)
			continue
		}
		// Never fetch bytes for arbitrary link targets; extension only.
		if i.table.DangerousExtension(fileExt(filename), cfg.CustomExtensionSet(), cfg.StrictMode) {
			dangerous = append(dangerous, raw)
		}
	}
	return dangerous
}

// fetchPrefix issues a bounded range request for the first bytes of a file.
func (i *Inspector) fetchPrefix(ctx context.Context, sourceURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, i.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", signature.PrefixLen-1))

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	prefix := make([]byte, signature.PrefixLen)
	n, err := io.ReadFull(resp.Body, prefix)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return prefix[:n], nil
}

func (i *Inspector) whitelist(ctx context.Context, guildID string) map[string]struct{} {
	set, err := i.cache.GetWhitelist(ctx, guildID)
	if err != nil {
		i.logger.Warn("whitelist lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return nil
	}
	return set
}

func (i *Inspector) blacklist(ctx context.Context, guildID string) map[string]struct{} {
	set, err := i.cache.GetBlacklist(ctx, guildID)
	if err != nil {
		i.logger.Warn("blacklist lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return nil
	}
	return set
}
