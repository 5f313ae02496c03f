package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pipeline-crm/internal/model"
)

var clientCols = []string{"id", "name", "company", "email", "phone", "deal_value", "stage", "user_id", "creator_name", "notes", "created_at", "updated_at"}

func TestClientCreateStampsCreatorFromUsers(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO clients .* SELECT .* FROM users u WHERE u.id = \\?").
		WithArgs("c-1", "Acme Deal", "Acme", "", "", int64(500), "lead", "", now, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+clientColumns+" FROM clients WHERE id=?")).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows(clientCols).
			AddRow("c-1", "Acme Deal", "Acme", nil, nil, 500, "lead", "user-1", "Dana", nil, now, nil))

	c := &model.Client{ID: "c-1", Name: "Acme Deal", Company: "Acme", DealValue: 500, Stage: model.StageLead, CreatedAt: now}
	require.NoError(t, NewClientRepo(db).Create(context.Background(), c, "user-1"))

	assert.Equal(t, "user-1", c.UserID)
	assert.Equal(t, "Dana", c.CreatorName)
	assert.Equal(t, model.StageLead, c.Stage)
	assert.Nil(t, c.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientCreateUnknownCreator(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("INSERT INTO clients").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewClientRepo(db).Create(context.Background(), &model.Client{Name: "x", Stage: model.StageLead}, "ghost")
	assert.ErrorIs(t, err, ErrNoCreator)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientListAndMutations(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := NewClientRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+clientColumns+" FROM clients ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows(clientCols).
			AddRow("c-1", "A", "", "", "", 10, "won", "u", "U", "", now, now).
			AddRow("c-2", "B", "", "", "", 20, "lost", "u", "U", "", now, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE clients SET stage=?, updated_at=? WHERE id=?")).
		WithArgs("lead", now, "c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE clients SET name=?, company=?, deal_value=?, email=?, notes=?, phone=?, updated_at=? WHERE id=?")).
		WithArgs("A2", "Co", int64(30), "a@x.io", "n", "1", now, "c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM clients WHERE id=?")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.StageWon, list[0].Stage)
	require.NotNil(t, list[0].UpdatedAt)
	assert.Nil(t, list[1].UpdatedAt)

	n, err := repo.UpdateStage(context.Background(), "c-1", model.StageLead, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.Update(context.Background(), model.Client{
		ID: "c-1", Name: "A2", Company: "Co", DealValue: 30, Email: "a@x.io", Notes: "n", Phone: "1",
	}, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, name, email, password, role, is_active, created_at) VALUES (?,?,?,?,?,?,?)")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := NewUserRepo(db).Create(context.Background(), &model.User{Name: "A", Email: " A@X.io ", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserLookups(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := NewUserRepo(db)
	cols := []string{"id", "name", "email", "password", "role", "is_active", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1")).
		WithArgs("dana@x.io").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u-1", "Dana", "dana@x.io", "hash", "ADMIN", true, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active=? WHERE id=?")).
		WithArgs(false, "nobody").
		WillReturnResult(sqlmock.NewResult(0, 0))

	u, err := repo.GetByEmail(context.Background(), "  Dana@X.io")
	require.NoError(t, err)
	assert.Equal(t, "Dana", u.Name)
	assert.True(t, u.IsActive)

	_, err = repo.GetByID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.SetActive(context.Background(), "nobody", false), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
