package services_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/models"
)

func rootCtx(id uuid.UUID) context.Context {
	return auth.NewContext(context.Background(), &auth.Principal{
		UserID:   id,
		Username: "root",
		Roles:    []models.Role{models.RoleRoot},
	})
}

func userCtx(id uuid.UUID) context.Context {
	return auth.NewContext(context.Background(), &auth.Principal{
		UserID:   id,
		Username: "user-" + id.String()[:8],
		Roles:    []models.Role{models.RoleUser},
	})
}

func pageAll() repository.Page {
	return repository.Page{Limit: 1000}
}

// newTxDB returns a sqlx handle whose transactions always succeed. Services
// run repository fakes inside the transaction, so only begin and commit
// reach the driver.
func newTxDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Logf("Failed to close mock db: %v", closeErr)
		}
	})
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 16; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	return sqlx.NewDb(db, "sqlmock")
}
