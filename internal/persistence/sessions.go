package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/basket/tzwatch/internal/model"
)

// ErrSessionAlreadyActive is returned by CreateSession when the
// (platform, chat, user) tuple already has an ACTIVE session, enforced by
// the sessions table's partial unique index.
var ErrSessionAlreadyActive = errors.New("persistence: an active session already exists for this user")

// GetActiveSession returns the ACTIVE session for (platform, chat, user), if
// any. Returns ErrNotFound if there is none.
func (s *Store) GetActiveSession(ctx context.Context, platform model.Platform, chatID, userID string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, platform, chat_id, user_id, goal, status, context, created_at, updated_at, expires_at
		FROM sessions WHERE platform = ? AND chat_id = ? AND user_id = ? AND status = 'ACTIVE';
	`, string(platform), chatID, userID)
	return scanSession(row)
}

// GetSession loads a session by ID, regardless of status.
func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, platform, chat_id, user_id, goal, status, context, created_at, updated_at, expires_at
		FROM sessions WHERE id = ?;
	`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*model.Session, error) {
	var sess model.Session
	var platformStr, goalStr, statusStr, contextJSON string
	if err := row.Scan(&sess.ID, &platformStr, &sess.ChatID, &sess.UserID, &goalStr, &statusStr, &contextJSON, &sess.CreatedAt, &sess.UpdatedAt, &sess.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.Platform = model.Platform(platformStr)
	sess.Goal = model.SessionGoal(goalStr)
	sess.Status = model.SessionStatus(statusStr)
	if err := json.Unmarshal([]byte(contextJSON), &sess.Context); err != nil {
		return nil, fmt.Errorf("decode session context: %w", err)
	}
	return &sess, nil
}

// CreateSession inserts a new ACTIVE session. Returns ErrSessionAlreadyActive
// if the (platform, chat, user) tuple already has one, per the at-most-one
// active session invariant.
func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("encode session context: %w", err)
	}

	return retryOnBusy(ctx, 3, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO sessions (id, platform, chat_id, user_id, goal, status, context, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
		`, sess.ID, string(sess.Platform), sess.ChatID, sess.UserID, string(sess.Goal), string(sess.Status),
			string(contextJSON), sess.CreatedAt, sess.UpdatedAt, sess.ExpiresAt)
		if execErr != nil {
			if isUniqueViolation(execErr) {
				return ErrSessionAlreadyActive
			}
			return fmt.Errorf("create session: %w", execErr)
		}
		return nil
	})
}

// UpdateSessionContext persists a session's mutated context (e.g. after
// appending a turn or incrementing the attempt counter) and bumps
// updated_at, without changing goal or status.
func (s *Store) UpdateSessionContext(ctx context.Context, id string, sessCtx model.SessionContext, now time.Time) error {
	contextJSON, err := json.Marshal(sessCtx)
	if err != nil {
		return fmt.Errorf("encode session context: %w", err)
	}
	return retryOnBusy(ctx, 3, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			UPDATE sessions SET context = ?, updated_at = ? WHERE id = ?;
		`, string(contextJSON), now, id)
		if execErr != nil {
			return fmt.Errorf("update session context %s: %w", id, execErr)
		}
		return nil
	})
}

// CloseSession transitions a session to a terminal status (COMPLETED,
// FAILED, or EXPIRED), freeing the (platform, chat, user) tuple for a new
// ACTIVE session.
func (s *Store) CloseSession(ctx context.Context, id string, status model.SessionStatus, now time.Time) error {
	if status == model.SessionActive {
		return fmt.Errorf("close session %s: %q is not a terminal status", id, status)
	}
	return retryOnBusy(ctx, 3, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?;
		`, string(status), now, id)
		if err != nil {
			return fmt.Errorf("close session %s: %w", id, err)
		}
		return nil
	})
}

// ExpiredSessions returns ACTIVE sessions whose expires_at is before now,
// for the maintenance sweep to mark EXPIRED.
func (s *Store) ExpiredSessions(ctx context.Context, now time.Time, limit int) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, platform, chat_id, user_id, goal, status, context, created_at, updated_at, expires_at
		FROM sessions WHERE status = 'ACTIVE' AND expires_at < ?
		ORDER BY expires_at ASC
		LIMIT ?;
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var sess model.Session
		var platformStr, goalStr, statusStr, contextJSON string
		if err := rows.Scan(&sess.ID, &platformStr, &sess.ChatID, &sess.UserID, &goalStr, &statusStr, &contextJSON, &sess.CreatedAt, &sess.UpdatedAt, &sess.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		sess.Platform = model.Platform(platformStr)
		sess.Goal = model.SessionGoal(goalStr)
		sess.Status = model.SessionStatus(statusStr)
		if err := json.Unmarshal([]byte(contextJSON), &sess.Context); err != nil {
			return nil, fmt.Errorf("decode expired session context: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
