package storage

import "context"

// Per-guild counters read by the dashboard: attachments_blocked,
// links_blocked, frequency_blocked, duplicate_blocked, similar_blocked,
// sticker_blocked, plus suppressed/failed action totals.

func (s *Store) IncrementCounter(ctx context.Context, guildID, counter string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_counters (guild_id, counter, value)
		VALUES (?, ?, 1)
		ON CONFLICT(guild_id, counter) DO UPDATE SET value = value + 1
	`, guildID, counter)
	return err
}

func (s *Store) GetCounters(ctx context.Context, guildID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT counter, value FROM guild_counters WHERE guild_id = ?`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counters := make(map[string]int64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		counters[name] = value
	}
	return counters, rows.Err()
}
