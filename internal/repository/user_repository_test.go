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

	"github.com/hsuzuki/taskbox-api/internal/models"
)

func userRows(user *models.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at", "updated_at"}).
		AddRow(user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (id, email, password_hash, created_at, updated_at)`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Email: "a@x.com", PasswordHash: "$2a$10$hash"}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.False(t, user.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	stored := &models.User{ID: "user-1", Email: "a@x.com", PasswordHash: "$2a$10$hash", CreatedAt: now, UpdatedAt: now}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = $1 LIMIT 1`)).
		WithArgs("a@x.com").
		WillReturnRows(userRows(stored))

	user, err := repo.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = $1 LIMIT 1`)).
		WithArgs("ghost@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	stored := &models.User{ID: "user-1", Email: "a@x.com", PasswordHash: "$2a$10$hash", CreatedAt: now, UpdatedAt: now}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`)).
		WithArgs("user-1").
		WillReturnRows(userRows(stored))

	user, err := repo.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}
