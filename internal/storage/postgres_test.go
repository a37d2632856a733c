package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"user_service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	firstID  = "6f1c2d3e-4a5b-4c6d-8e7f-901234567890"
	secondID = "0a9b8c7d-6e5f-4a3b-9c1d-2e3f4a5b6c7d"
)

var userColumns = []string{"id", "email", "password", "status", "last_login", "fields"}

func newStorageWithMock(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return newPostgresStorage(db), mock
}

func TestPostgres_Migrate(t *testing.T) {
	st, mock := newStorageWithMock(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertUser(t *testing.T) {
	st, mock := newStorageWithMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users(id, email, password, status, fields) VALUES ($1, $2, $3, $4, $5);")).
		WithArgs(sqlmock.AnyArg(), "a@x.com", "hash", "active", []byte(`{"name":"Alice"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := st.InsertUser(context.Background(), models.User{
		Email:    "a@x.com",
		Password: "hash",
		Status:   models.StatusActive,
		Fields:   map[string]any{"name": "Alice"},
	})
	require.NoError(t, err)

	assert.True(t, res.Acknowledged)
	assert.Len(t, res.InsertedID, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertUser_NilFields(t *testing.T) {
	st, mock := newStorageWithMock(t)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "a@x.com", "hash", "active", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := st.InsertUser(context.Background(), models.User{Email: "a@x.com", Password: "hash", Status: models.StatusActive})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertUser_DBError(t *testing.T) {
	st, mock := newStorageWithMock(t)

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := st.InsertUser(context.Background(), models.User{Email: "a@x.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.InsertUser: db down")
}

func TestPostgres_ListUsers(t *testing.T) {
	st, mock := newStorageWithMock(t)

	login := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(userColumns).
		AddRow(firstID, "a@x.com", "hash-a", "blocked", login, []byte(`{"name":"Alice"}`)).
		AddRow(secondID, "b@x.com", "hash-b", "active", nil, []byte(`{}`))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password, status, last_login, fields FROM users;")).
		WillReturnRows(rows)

	users, err := st.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, firstID, users[0].ID)
	assert.Equal(t, models.StatusBlocked, users[0].Status)
	require.NotNil(t, users[0].LastLogin)
	assert.True(t, login.Equal(*users[0].LastLogin))
	assert.Equal(t, "Alice", users[0].Fields["name"])

	assert.Equal(t, secondID, users[1].ID)
	assert.Equal(t, models.StatusActive, users[1].Status)
	assert.Nil(t, users[1].LastLogin)
	assert.Empty(t, users[1].Fields)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListUsers_Empty(t *testing.T) {
	st, mock := newStorageWithMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM users`).WillReturnRows(sqlmock.NewRows(userColumns))

	users, err := st.ListUsers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestPostgres_ListUsers_BadFields(t *testing.T) {
	st, mock := newStorageWithMock(t)

	rows := sqlmock.NewRows(userColumns).
		AddRow(firstID, "a@x.com", "hash", "active", nil, []byte(`{broken`))
	mock.ExpectQuery(`SELECT (.+) FROM users`).WillReturnRows(rows)

	_, err := st.ListUsers(context.Background())
	assert.Error(t, err)
}

func TestPostgres_GetUserByEmail(t *testing.T) {
	st, mock := newStorageWithMock(t)

	rows := sqlmock.NewRows(userColumns).
		AddRow(firstID, "a@x.com", "hash", "", nil, []byte(`{"role":"admin"}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password, status, last_login, fields FROM users WHERE email=$1 LIMIT 1;")).
		WithArgs("a@x.com").
		WillReturnRows(rows)

	user, err := st.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	assert.Equal(t, firstID, user.ID)
	assert.Equal(t, "hash", user.Password)
	assert.Equal(t, models.StatusActive, user.Status)
	assert.Equal(t, "admin", user.Fields["role"])
}

func TestPostgres_GetUserByEmail_NotFound(t *testing.T) {
	st, mock := newStorageWithMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
		WithArgs("nobody@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := st.GetUserByEmail(context.Background(), "nobody@x.com")
	assert.True(t, errors.Is(err, ErrUserNotFound), "got %v", err)
}

func TestPostgres_TouchLastLogin(t *testing.T) {
	st, mock := newStorageWithMock(t)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login=$1 WHERE id = (SELECT id FROM users WHERE email=$2 LIMIT 1);")).
		WithArgs(at, "a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, st.TouchLastLogin(context.Background(), "a@x.com", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetStatus(t *testing.T) {
	tests := []struct {
		name   string
		status models.Status
	}{
		{"block", models.StatusBlocked},
		{"unblock", models.StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, mock := newStorageWithMock(t)

			mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET status=$1 WHERE id IN ($2, $3);")).
				WithArgs(string(tt.status), firstID, secondID).
				WillReturnResult(sqlmock.NewResult(0, 2))

			res, err := st.SetStatus(context.Background(), []string{firstID, strings.ToUpper(secondID)}, tt.status)
			require.NoError(t, err)

			assert.Equal(t, models.UpdateResult{Acknowledged: true, MatchedCount: 2, ModifiedCount: 2}, res)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgres_SetStatus_InvalidID(t *testing.T) {
	st, mock := newStorageWithMock(t)

	_, err := st.SetStatus(context.Background(), []string{firstID, "507f1f77bcf86cd799439011"}, models.StatusBlocked)
	assert.True(t, errors.Is(err, ErrInvalidID), "got %v", err)

	// nothing must reach the database
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetStatus_Empty(t *testing.T) {
	st, mock := newStorageWithMock(t)

	res, err := st.SetStatus(context.Background(), []string{}, models.StatusBlocked)
	require.NoError(t, err)
	assert.Equal(t, models.UpdateResult{Acknowledged: true}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteUsers(t *testing.T) {
	st, mock := newStorageWithMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id IN ($1, $2);")).
		WithArgs(firstID, secondID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := st.DeleteUsers(context.Background(), []string{firstID, secondID})
	require.NoError(t, err)

	assert.Equal(t, models.DeleteResult{Acknowledged: true, DeletedCount: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteUsers_DBError(t *testing.T) {
	st, mock := newStorageWithMock(t)

	mock.ExpectExec(`DELETE FROM users`).WillReturnError(errors.New("db down"))

	_, err := st.DeleteUsers(context.Background(), []string{firstID})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidID))
}

func TestPostgres_DeleteUsers_InvalidID(t *testing.T) {
	st, _ := newStorageWithMock(t)

	_, err := st.DeleteUsers(context.Background(), []string{""})
	assert.True(t, errors.Is(err, ErrInvalidID), "got %v", err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholders(1, 1))
	assert.Equal(t, "$2, $3, $4", placeholders(2, 3))
	assert.Equal(t, "", placeholders(1, 0))
}
