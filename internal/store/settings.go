// ABOUTME: System settings key-value storage and admin dashboard statistics
// ABOUTME: Settings use upsert semantics; stats aggregate entity counts over time windows

package store

import (
	"context"
	"fmt"
	"time"
)

// GetSettings returns all system settings as a key-value map.
func (s *SQLiteStore) GetSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// SetSetting creates or replaces a setting value.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("upserting setting: %w", err)
	}
	return nil
}

// GetStats aggregates dashboard counters over 7- and 30-day windows.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	now := time.Now().UTC()
	sevenDaysAgo := formatTime(now.Add(-7 * 24 * time.Hour))
	thirtyDaysAgo := formatTime(now.Add(-30 * 24 * time.Hour))

	stats := &Stats{}
	queries := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.Users, `SELECT COUNT(*) FROM users`, nil},
		{&stats.Chats, `SELECT COUNT(*) FROM chats`, nil},
		{&stats.Messages, `SELECT COUNT(*) FROM messages`, nil},
		{&stats.Agents, `SELECT COUNT(*) FROM agents`, nil},
		{&stats.UsersLast7Days, `SELECT COUNT(*) FROM users WHERE created_at >= ?`, []any{sevenDaysAgo}},
		{&stats.UsersLast30Days, `SELECT COUNT(*) FROM users WHERE created_at >= ?`, []any{thirtyDaysAgo}},
		{&stats.ChatsLast7Days, `SELECT COUNT(*) FROM chats WHERE created_at >= ?`, []any{sevenDaysAgo}},
		{&stats.ActiveUsers7Days, `SELECT COUNT(DISTINCT user_id) FROM chats WHERE updated_at >= ?`, []any{sevenDaysAgo}},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("aggregating stats: %w", err)
		}
	}
	return stats, nil
}
