package storage

import (
	"context"
	"strings"
)

// Whitelist and blacklist patterns are substring-matched against filenames
// and domains at evaluation time; they are stored lower-cased.

func (s *Store) AddWhitelistPattern(ctx context.Context, guildID, pattern string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO whitelist_patterns (guild_id, pattern) VALUES (?, ?)`, guildID, strings.ToLower(pattern))
	return err
}

func (s *Store) RemoveWhitelistPattern(ctx context.Context, guildID, pattern string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM whitelist_patterns WHERE guild_id = ? AND pattern = ?`, guildID, strings.ToLower(pattern))
	return err
}

func (s *Store) ListWhitelistPatterns(ctx context.Context, guildID string) ([]string, error) {
	return s.listPatterns(ctx, `SELECT pattern FROM whitelist_patterns WHERE guild_id = ? ORDER BY pattern`, guildID)
}

func (s *Store) AddBlacklistPattern(ctx context.Context, guildID, pattern string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO blacklist_patterns (guild_id, pattern) VALUES (?, ?)`, guildID, strings.ToLower(pattern))
	return err
}

func (s *Store) RemoveBlacklistPattern(ctx context.Context, guildID, pattern string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blacklist_patterns WHERE guild_id = ? AND pattern = ?`, guildID, strings.ToLower(pattern))
	return err
}

func (s *Store) ListBlacklistPatterns(ctx context.Context, guildID string) ([]string, error) {
	return s.listPatterns(ctx, `SELECT pattern FROM blacklist_patterns WHERE guild_id = ? ORDER BY pattern`, guildID)
}

func (s *Store) listPatterns(ctx context.Context, query, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []string
	for rows.Next() {
		var pattern string
		if err := rows.Scan(&pattern); err != nil {
			return nil, err
		}
		patterns = append(patterns, pattern)
	}
	return patterns, rows.Err()
}
