package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/basket/tzwatch/internal/model"
)

// GetUser loads a user's timezone identity record. Returns ErrNotFound if
// absent, which callers treat as "unknown timezone" rather than an error.
func (s *Store) GetUser(ctx context.Context, platform model.Platform, userID string) (*model.UserTzState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT platform, user_id, tz_iana, confidence, source, created_at, updated_at, last_verified_at
		FROM users WHERE platform = ? AND user_id = ?;
	`, string(platform), userID)

	var u model.UserTzState
	var platformStr, sourceStr string
	var lastVerified sql.NullTime
	if err := row.Scan(&platformStr, &u.UserID, &u.TzIANA, &u.Confidence, &sourceStr, &u.CreatedAt, &u.UpdatedAt, &lastVerified); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s/%s: %w", platform, userID, err)
	}
	u.Platform = model.Platform(platformStr)
	u.Source = model.TzSource(sourceStr)
	if lastVerified.Valid {
		t := lastVerified.Time
		u.LastVerifiedAt = &t
	}
	return &u, nil
}

// UpsertUserTimezone sets a user's timezone identity from source, applying
// InitialConfidence(source), and stamps last_verified_at for sources that
// represent a fresh verification (web_verified, city_pick,
// relocation_confirmed).
func (s *Store) UpsertUserTimezone(ctx context.Context, platform model.Platform, userID, tzIANA string, source model.TzSource, now time.Time) error {
	confidence := model.InitialConfidence(source)
	verifies := source == model.SourceWebVerified || source == model.SourceCityPick || source == model.SourceRelocationConfirmed

	return retryOnBusy(ctx, 3, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO users (platform, user_id, tz_iana, confidence, source, created_at, updated_at, last_verified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, CASE WHEN ? THEN ? ELSE NULL END)
			ON CONFLICT(platform, user_id) DO UPDATE SET
				tz_iana = excluded.tz_iana,
				confidence = excluded.confidence,
				source = excluded.source,
				updated_at = excluded.updated_at,
				last_verified_at = CASE WHEN ? THEN excluded.last_verified_at ELSE users.last_verified_at END;
		`, string(platform), userID, tzIANA, confidence, string(source), now, now, verifies, now, verifies)
		if err != nil {
			return fmt.Errorf("upsert user timezone %s/%s: %w", platform, userID, err)
		}
		return nil
	})
}

// DecayConfidence applies a confidence multiplier to a user's current
// timezone record without changing its source or tz_iana, used by the
// background staleness sweep.
func (s *Store) DecayConfidence(ctx context.Context, platform model.Platform, userID string, multiplier float64, now time.Time) error {
	return retryOnBusy(ctx, 3, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE users SET confidence = confidence * ?, updated_at = ?
			WHERE platform = ? AND user_id = ?;
		`, multiplier, now, string(platform), userID)
		if err != nil {
			return fmt.Errorf("decay confidence %s/%s: %w", platform, userID, err)
		}
		return nil
	})
}

// InvalidateUserTimezone zeroes a user's confidence, keeping tz_iana and
// source as historical reference. Used when a relocation is confirmed,
// forcing the next tz-dependent message to re-verify instead of trusting
// a confidence the user already disavowed.
func (s *Store) InvalidateUserTimezone(ctx context.Context, platform model.Platform, userID string, now time.Time) error {
	return retryOnBusy(ctx, 3, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE users SET confidence = 0, updated_at = ?
			WHERE platform = ? AND user_id = ?;
		`, now, string(platform), userID)
		if err != nil {
			return fmt.Errorf("invalidate user timezone %s/%s: %w", platform, userID, err)
		}
		return nil
	})
}

// StaleUsers returns users whose last_verified_at is older than cutoff (or
// who were never verified), for the confidence-decay maintenance sweep.
func (s *Store) StaleUsers(ctx context.Context, cutoff time.Time, limit int) ([]model.UserTzState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT platform, user_id, tz_iana, confidence, source, created_at, updated_at, last_verified_at
		FROM users
		WHERE tz_iana != '' AND (last_verified_at IS NULL OR last_verified_at < ?)
		ORDER BY updated_at ASC
		LIMIT ?;
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale users: %w", err)
	}
	defer rows.Close()

	var out []model.UserTzState
	for rows.Next() {
		var u model.UserTzState
		var platformStr, sourceStr string
		var lastVerified sql.NullTime
		if err := rows.Scan(&platformStr, &u.UserID, &u.TzIANA, &u.Confidence, &sourceStr, &u.CreatedAt, &u.UpdatedAt, &lastVerified); err != nil {
			return nil, fmt.Errorf("scan stale user: %w", err)
		}
		u.Platform = model.Platform(platformStr)
		u.Source = model.TzSource(sourceStr)
		if lastVerified.Valid {
			t := lastVerified.Time
			u.LastVerifiedAt = &t
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
