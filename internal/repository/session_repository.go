package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pipeline-crm/internal/model"
)

// SessionRepo persists refresh-token sessions in the `sessions` table.
// The row id is the refresh token value.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, role, expires_at, created_at) VALUES (?,?,?,?,?)",
		s.ID, s.UserID, s.Role, s.ExpiresAt.UTC(), s.CreatedAt.UTC())
	return err
}

// Redeem consumes the live session id and returns it.
//
// MySQL has no DELETE ... RETURNING, so the owner columns are read first
// and the conditional delete decides the winner: only the caller whose
// DELETE affects the row gets the session back.  user_id and role never
// change after insert, so the earlier read cannot hand out stale data.
func (r *SessionRepo) Redeem(ctx context.Context, id string, now time.Time) (*model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, role, expires_at, created_at FROM sessions WHERE id=? LIMIT 1", id).
		Scan(&s.ID, &s.UserID, &s.Role, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM sessions WHERE id=? AND expires_at > ?", id, now.UTC())
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// Delete removes the session id.  Deleting a missing row is not an error.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE id=?", id)
	return err
}

// DeleteExpired removes every session whose expiry is at or before now and
// reports how many rows went away.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
