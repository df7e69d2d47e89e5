package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CCodeCommunity/CardGameBackend/internal/account/domain"
)

var columns = []string{"id", "name", "email", "password_hash", "role", "state", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(conn), mock, conn
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, conn := newRepoWithMock(t)
	defer conn.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(columns).AddRow("a-1", "Alice", "alice@example.com", "hash", "User", "Active", now, now)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, domain.RoleUser, got.Role)
	assert.Equal(t, domain.StateActive, got.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, conn := newRepoWithMock(t)
	defer conn.Close()

	mock.ExpectQuery(`FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, conn := newRepoWithMock(t)
	defer conn.Close()

	mock.ExpectQuery(`FROM\s+accounts`).WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), "a-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestCreate(t *testing.T) {
	repo, mock, conn := newRepoWithMock(t)
	defer conn.Close()

	now := time.Now().UTC()
	a := &domain.Account{ID: "a-1", Name: "Alice", Email: "alice@example.com", PasswordHash: "h",
		Role: domain.RoleUser, State: domain.StatePendingApproval, CreatedAt: now, UpdatedAt: now}
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+accounts\s*\(.*\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8\)$`).
		WithArgs("a-1", "Alice", "alice@example.com", "h", "User", "PendingApproval", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, conn := newRepoWithMock(t)
	defer conn.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	err := repo.Create(context.Background(), &domain.Account{ID: "a-2"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUpdateState(t *testing.T) {
	repo, mock, conn := newRepoWithMock(t)
	defer conn.Close()

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE\s+accounts\s+SET\s+state\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("a-1", "Suspended", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+accounts`).
		WithArgs("missing", "Active", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateState(context.Background(), "a-1", domain.StateSuspended, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateState(context.Background(), "missing", domain.StateActive, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAndCount(t *testing.T) {
	repo, mock, conn := newRepoWithMock(t)
	defer conn.Close()

	t1 := time.Now().UTC()
	t2 := t1.Add(time.Second)
	rows := sqlmock.NewRows(columns).
		AddRow("a-1", "Alice", "alice@example.com", "h", "User", "Active", t1, t1).
		AddRow("a-2", "Bob", "bob@example.com", "h", "Admin", "PendingApproval", t2, t2)
	mock.ExpectQuery(`ORDER\s+BY\s+created_at,\s*id\s+LIMIT\s+\$1\s+OFFSET\s+\$2`).
		WithArgs(5, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT\s+COUNT\(\*\)\s+FROM\s+accounts`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	list, err := repo.List(context.Background(), 5, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a-1", list[0].ID)
	assert.Equal(t, domain.RoleAdmin, list[1].Role)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
