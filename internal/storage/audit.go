package storage

import (
	"context"
	"time"
)

type AuditEntry struct {
	ID        int64
	GuildID   string
	UserID    string
	MessageID string
	Kind      string
	Evidence  string
	Actions   string
	CreatedAt time.Time
}

func (s *Store) AddAuditEntry(ctx context.Context, entry AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (guild_id, user_id, message_id, kind, evidence, actions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.GuildID, entry.UserID, entry.MessageID, entry.Kind, entry.Evidence, entry.Actions, entry.CreatedAt.Unix())
	return err
}

func (s *Store) ListAuditEntries(ctx context.Context, guildID string, since time.Time) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, message_id, kind, evidence, actions, created_at
		FROM audit_entries
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var created int64
		if err := rows.Scan(&entry.ID, &entry.GuildID, &entry.UserID, &entry.MessageID, &entry.Kind, &entry.Evidence, &entry.Actions, &created); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(created, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) CleanupAuditEntries(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_entries WHERE created_at < ?`, cutoff.Unix())
	return err
}
