package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/basket/tzwatch/internal/model"
)

// MarkProcessed records (platform, event_id) as admitted past the dedup
// gate. Returns (false, nil) without error if the event was already
// recorded — the insert-or-ignore race is the at-most-once boundary under
// concurrent webhook redelivery, so the caller must treat a "not inserted"
// result the same as "already handled" rather than retry.
func (s *Store) MarkProcessed(ctx context.Context, evt model.DedupEvent) (inserted bool, err error) {
	err = retryOnBusy(ctx, 3, func() error {
		res, execErr := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO dedupe_events (platform, event_id, chat_id, created_at)
			VALUES (?, ?, ?, ?);
		`, string(evt.Platform), evt.EventID, evt.ChatID, evt.CreatedAt)
		if execErr != nil {
			return fmt.Errorf("mark processed %s/%s: %w", evt.Platform, evt.EventID, execErr)
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("rows affected: %w", raErr)
		}
		inserted = n > 0
		return nil
	})
	return inserted, err
}

// WasProcessed reports whether (platform, event_id) has already been
// admitted, without attempting to insert.
func (s *Store) WasProcessed(ctx context.Context, platform model.Platform, eventID string) (bool, error) {
	var x int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM dedupe_events WHERE platform = ? AND event_id = ?;
	`, string(platform), eventID).Scan(&x)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("was processed %s/%s: %w", platform, eventID, err)
	}
	return true, nil
}

// PruneDedupeEvents deletes dedup markers older than cutoff, bounding the
// table's growth; called from the maintenance sweep on a fixed interval.
func (s *Store) PruneDedupeEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, 3, func() error {
		res, execErr := s.db.ExecContext(ctx, `DELETE FROM dedupe_events WHERE created_at < ?;`, cutoff)
		if execErr != nil {
			return fmt.Errorf("prune dedupe events: %w", execErr)
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("rows affected: %w", raErr)
		}
		affected = n
		return nil
	})
	return affected, err
}
