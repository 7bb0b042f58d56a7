package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"modguard/internal/config"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite handles one writer; a second pooled connection would also see
	// a different database entirely for :memory: paths.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetGuildConfig loads the guild's moderation config, falling back to
// defaults when the guild has no row. The result is always normalized.
func (s *Store) GetGuildConfig(ctx context.Context, guildID string, defaults config.GuildConfig) (config.GuildConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT enabled, check_links, strict_mode,
		freq_limit, freq_window_seconds,
		identical_limit, identical_window_seconds,
		similar_limit, similar_window_seconds, similar_threshold,
		sticker_limit, sticker_window_seconds,
		timeout_minutes, delete_message, notify_admin, warn_user,
		notify_channel_id, response_message,
		max_file_size_mb, custom_extensions
		FROM guild_moderation_config WHERE guild_id = ?`, guildID)

	result := defaults
	var enabled, checkLinks, strictMode, deleteMessage, notifyAdmin, warnUser int
	var customExtensions string
	err := row.Scan(
		&enabled,
		&checkLinks,
		&strictMode,
		&result.FreqLimit,
		&result.FreqWindowSeconds,
		&result.IdenticalLimit,
		&result.IdenticalWindowSeconds,
		&result.SimilarLimit,
		&result.SimilarWindowSeconds,
		&result.SimilarThreshold,
		&result.StickerLimit,
		&result.StickerWindowSeconds,
		&result.TimeoutMinutes,
		&deleteMessage,
		&notifyAdmin,
		&warnUser,
		&result.NotifyChannelID,
		&result.ResponseMessage,
		&result.MaxFileSizeMB,
		&customExtensions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result.Normalized(), nil
		}
		return config.GuildConfig{}, err
	}
	result.Enabled = enabled == 1
	result.CheckLinks = checkLinks == 1
	result.StrictMode = strictMode == 1
	result.DeleteMessage = deleteMessage == 1
	result.NotifyAdmin = notifyAdmin == 1
	result.WarnUser = warnUser == 1
	result.CustomDangerousExtensions = splitExtensions(customExtensions)
	return result.Normalized(), nil
}

func (s *Store) UpsertGuildConfig(ctx context.Context, guildID string, cfg config.GuildConfig) error {
	cfg = cfg.Normalized()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_moderation_config (
			guild_id, enabled, check_links, strict_mode,
			freq_limit, freq_window_seconds,
			identical_limit, identical_window_seconds,
			similar_limit, similar_window_seconds, similar_threshold,
			sticker_limit, sticker_window_seconds,
			timeout_minutes, delete_message, notify_admin, warn_user,
			notify_channel_id, response_message,
			max_file_size_mb, custom_extensions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			enabled = excluded.enabled,
			check_links = excluded.check_links,
			strict_mode = excluded.strict_mode,
			freq_limit = excluded.freq_limit,
			freq_window_seconds = excluded.freq_window_seconds,
			identical_limit = excluded.identical_limit,
			identical_window_seconds = excluded.identical_window_seconds,
			similar_limit = excluded.similar_limit,
			similar_window_seconds = excluded.similar_window_seconds,
			similar_threshold = excluded.similar_threshold,
			sticker_limit = excluded.sticker_limit,
			sticker_window_seconds = excluded.sticker_window_seconds,
			timeout_minutes = excluded.timeout_minutes,
			delete_message = excluded.delete_message,
			notify_admin = excluded.notify_admin,
			warn_user = excluded.warn_user,
			notify_channel_id = excluded.notify_channel_id,
			response_message = excluded.response_message,
			max_file_size_mb = excluded.max_file_size_mb,
			custom_extensions = excluded.custom_extensions
	`,
		guildID,
		boolToInt(cfg.Enabled),
		boolToInt(cfg.CheckLinks),
		boolToInt(cfg.StrictMode),
		cfg.FreqLimit,
		cfg.FreqWindowSeconds,
		cfg.IdenticalLimit,
		cfg.IdenticalWindowSeconds,
		cfg.SimilarLimit,
		cfg.SimilarWindowSeconds,
		cfg.SimilarThreshold,
		cfg.StickerLimit,
		cfg.StickerWindowSeconds,
		cfg.TimeoutMinutes,
		boolToInt(cfg.DeleteMessage),
		boolToInt(cfg.NotifyAdmin),
		boolToInt(cfg.WarnUser),
		cfg.NotifyChannelID,
		cfg.ResponseMessage,
		cfg.MaxFileSizeMB,
		joinExtensions(cfg.CustomDangerousExtensions),
	)
	return err
}

func splitExtensions(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinExtensions(exts []string) string {
	return strings.Join(exts, ",")
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
