// Package session persists UserSession rows: one per logged-in device, keyed
// by user and holding only a hash of the refresh token.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/tableside/internal/models"
)

var ErrNotFound = errors.New("session not found")

const sessionColumns = "id, user_id, refresh_token_hash, device_info, expires_at, last_used_at, created_at"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create inserts s and fills in its generated ID and CreatedAt.
func (s *Store) Create(ctx context.Context, sess *models.UserSession) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO user_sessions (user_id, refresh_token_hash, device_info, expires_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		sess.UserID, sess.RefreshTokenHash, sess.DeviceInfo, sess.ExpiresAt, sess.LastUsedAt,
	).Scan(&sess.ID, &sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ListActive returns the user's sessions that expire after now, newest first.
func (s *Store) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.UserSession, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions
		 WHERE user_id = $1 AND expires_at > $2
		 ORDER BY created_at DESC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.UserSession
	for rows.Next() {
		var ss models.UserSession
		if err := rows.Scan(&ss.ID, &ss.UserID, &ss.RefreshTokenHash, &ss.DeviceInfo, &ss.ExpiresAt, &ss.LastUsedAt, &ss.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *Store) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, "UPDATE user_sessions SET last_used_at = $1 WHERE id = $2", at, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM user_sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM user_sessions WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes every session that expired at or before cutoff.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM user_sessions WHERE expires_at <= $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
