package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/basket/tzwatch/internal/model"
)

// GetChat loads a chat's projection record. Returns ErrNotFound if absent.
func (s *Store) GetChat(ctx context.Context, platform model.Platform, chatID string) (*model.ChatState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT platform, chat_id, default_tz, user_timezones, active_timezones
		FROM chats WHERE platform = ? AND chat_id = ?;
	`, string(platform), chatID)

	var c model.ChatState
	var platformStr, userTzJSON, activeTzJSON string
	if err := row.Scan(&platformStr, &c.ChatID, &c.DefaultTz, &userTzJSON, &activeTzJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chat %s/%s: %w", platform, chatID, err)
	}
	c.Platform = model.Platform(platformStr)
	if err := json.Unmarshal([]byte(userTzJSON), &c.UserTimezones); err != nil {
		return nil, fmt.Errorf("decode chat user_timezones: %w", err)
	}
	if err := json.Unmarshal([]byte(activeTzJSON), &c.ActiveTimezones); err != nil {
		return nil, fmt.Errorf("decode chat active_timezones: %w", err)
	}
	return &c, nil
}

// UpdateUserTimezoneInChat performs the chat-side projection update for one
// user's resolved timezone: it loads the chat row (creating it if absent),
// sets user_timezones[userID], recomputes the deduplicated active_timezones
// projection, and writes both back in a single update — so the projection
// can never be observed half-updated relative to the membership map.
func (s *Store) UpdateUserTimezoneInChat(ctx context.Context, platform model.Platform, chatID, userID, tzIANA string, now time.Time) error {
	return retryOnBusy(ctx, 3, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		var userTzJSON string
		row := tx.QueryRowContext(ctx, `SELECT user_timezones FROM chats WHERE platform = ? AND chat_id = ?;`, string(platform), chatID)
		err = row.Scan(&userTzJSON)
		state := model.ChatState{Platform: platform, ChatID: chatID, UserTimezones: map[string]string{}}
		switch {
		case err == sql.ErrNoRows:
			// first time this chat is seen
		case err != nil:
			return fmt.Errorf("load chat for update: %w", err)
		default:
			if err := json.Unmarshal([]byte(userTzJSON), &state.UserTimezones); err != nil {
				return fmt.Errorf("decode existing user_timezones: %w", err)
			}
		}

		state.UserTimezones[userID] = tzIANA
		state.RecomputeActiveTimezones()

		newUserTzJSON, err := json.Marshal(state.UserTimezones)
		if err != nil {
			return fmt.Errorf("encode user_timezones: %w", err)
		}
		newActiveTzJSON, err := json.Marshal(state.ActiveTimezones)
		if err != nil {
			return fmt.Errorf("encode active_timezones: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chats (platform, chat_id, default_tz, user_timezones, active_timezones, updated_at)
			VALUES (?, ?, '', ?, ?, ?)
			ON CONFLICT(platform, chat_id) DO UPDATE SET
				user_timezones = excluded.user_timezones,
				active_timezones = excluded.active_timezones,
				updated_at = excluded.updated_at;
		`, string(platform), chatID, string(newUserTzJSON), string(newActiveTzJSON), now); err != nil {
			return fmt.Errorf("write chat projection: %w", err)
		}

		return tx.Commit()
	})
}

// SetChatDefaultTz sets (or clears, with tzIANA = "") a chat's fallback
// timezone used when no participant's identity can be resolved.
func (s *Store) SetChatDefaultTz(ctx context.Context, platform model.Platform, chatID, tzIANA string, now time.Time) error {
	return retryOnBusy(ctx, 3, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO chats (platform, chat_id, default_tz, user_timezones, active_timezones, updated_at)
			VALUES (?, ?, ?, '{}', '[]', ?)
			ON CONFLICT(platform, chat_id) DO UPDATE SET
				default_tz = excluded.default_tz,
				updated_at = excluded.updated_at;
		`, string(platform), chatID, tzIANA, now)
		if err != nil {
			return fmt.Errorf("set chat default tz %s/%s: %w", platform, chatID, err)
		}
		return nil
	})
}
