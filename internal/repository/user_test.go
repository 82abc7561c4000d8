package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
)

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepository(db, observability.NewNoopLogger(), observability.NoopStartSpan)

	now := time.Now().UTC()
	user := &models.User{
		ID:          uuid.New(),
		Username:    "root",
		DisplayName: "Root User",
		Roles:       []models.Role{models.RoleRoot},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec(`INSERT INTO "user"`).
		WithArgs(user.ID, user.Username, nil, user.DisplayName, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_role`).
		WithArgs(user.ID, "ROOT").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepository(db, observability.NewNoopLogger(), observability.NoopStartSpan)

	id := uuid.New()
	email := "root@example.com"
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT user_id, username, email, display_name, created_at, updated_at`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(
			[]string{"user_id", "username", "email", "display_name", "created_at", "updated_at"},
		).AddRow(id, "root", email, "Root User", now, now))
	mock.ExpectQuery(`SELECT user_id, role FROM user_role`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role"}).
			AddRow(id, "ROOT").
			AddRow(id, "USER"))

	user, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "root", user.Username)
	require.NotNil(t, user.Email)
	assert.Equal(t, email, *user.Email)
	assert.ElementsMatch(t, []models.Role{models.RoleRoot, models.RoleUser}, user.Roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUsername_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepository(db, observability.NewNoopLogger(), observability.NoopStartSpan)

	mock.ExpectQuery(`SELECT user_id, username, email, display_name, created_at, updated_at`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(
			[]string{"user_id", "username", "email", "display_name", "created_at", "updated_at"},
		))

	_, err := repo.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepository(db, observability.NewNoopLogger(), observability.NoopStartSpan)

	id1, id2 := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT user_id, username, email, display_name, created_at, updated_at`).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(
			[]string{"user_id", "username", "email", "display_name", "created_at", "updated_at"},
		).
			AddRow(id1, "alice", nil, "Alice", now, now).
			AddRow(id2, "bob", nil, "Bob", now, now))
	mock.ExpectQuery(`SELECT user_id, role FROM user_role`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role"}).
			AddRow(id1, "USER").
			AddRow(id2, "USER"))

	users, err := repo.List(context.Background(), repository.UserFilter{}, repository.Page{})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, []models.Role{models.RoleUser}, users[0].Roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}
