package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pipeline-crm/internal/model"
)

var (
	selectSession = regexp.QuoteMeta("SELECT id, user_id, role, expires_at, created_at FROM sessions WHERE id=? LIMIT 1")
	redeemSession = regexp.QuoteMeta("DELETE FROM sessions WHERE id=? AND expires_at > ?")
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func sessionRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "role", "expires_at", "created_at"}).
		AddRow("sess-1", "user-1", "USER", now.Add(time.Hour), now.Add(-time.Hour))
}

func TestSessionRedeemWinner(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(selectSession).WithArgs("sess-1").WillReturnRows(sessionRows(now))
	mock.ExpectExec(redeemSession).WithArgs("sess-1", now).WillReturnResult(sqlmock.NewResult(0, 1))

	s, err := NewSessionRepo(db).Redeem(context.Background(), "sess-1", now)
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "USER", s.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRedeemLoserGetsNotFound(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	// Another caller deleted the row between the read and the delete.
	mock.ExpectQuery(selectSession).WithArgs("sess-1").WillReturnRows(sessionRows(now))
	mock.ExpectExec(redeemSession).WithArgs("sess-1", now).WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewSessionRepo(db).Redeem(context.Background(), "sess-1", now)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRedeemMissing(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(selectSession).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := NewSessionRepo(db).Redeem(context.Background(), "nope", now)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCreateAndSweep(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := NewSessionRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions (id, user_id, role, expires_at, created_at) VALUES (?,?,?,?,?)")).
		WithArgs("sess-2", "user-1", "ADMIN", now.Add(time.Hour), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE expires_at <= ?")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id=?")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Create(context.Background(), &model.Session{
		ID: "sess-2", UserID: "user-1", Role: "ADMIN", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))
	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, repo.Delete(context.Background(), "gone"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
