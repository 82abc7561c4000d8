package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
)

type userRepository struct {
	q      querier
	logger observability.Logger
	tracer observability.StartSpanFunc
}

// NewUserRepository creates a UserRepository over the given pool.
func NewUserRepository(db *sqlx.DB, logger observability.Logger, tracer observability.StartSpanFunc) UserRepository {
	return &userRepository{q: db, logger: logger, tracer: tracer}
}

func (r *userRepository) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepository{q: tx, logger: r.logger, tracer: r.tracer}
}

// Create inserts the user row and its role assignments. Callers needing
// atomicity run it through WithTx.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	ctx, span := r.tracer(ctx, "UserRepository.Create")
	defer span.End()

	query := `
		INSERT INTO "user" (user_id, username, email, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.DisplayName,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user", map[string]interface{}{
			"error":    err.Error(),
			"username": user.Username,
		})
		return database.ClassifyError(errors.Wrap(err, "failed to create user"))
	}

	for _, role := range user.Roles {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO user_role (user_id, role) VALUES ($1, $2)`,
			user.ID, string(role),
		)
		if err != nil {
			return database.ClassifyError(errors.Wrap(err, "failed to assign role"))
		}
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, span := r.tracer(ctx, "UserRepository.GetByID")
	defer span.End()

	return r.getOne(ctx, `
		SELECT user_id, username, email, display_name, created_at, updated_at
		FROM "user" WHERE user_id = $1
	`, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, span := r.tracer(ctx, "UserRepository.GetByUsername")
	defer span.End()

	return r.getOne(ctx, `
		SELECT user_id, username, email, display_name, created_at, updated_at
		FROM "user" WHERE username = $1
	`, username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, span := r.tracer(ctx, "UserRepository.GetByEmail")
	defer span.End()

	return r.getOne(ctx, `
		SELECT user_id, username, email, display_name, created_at, updated_at
		FROM "user" WHERE email = $1
	`, email)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := sqlx.GetContext(ctx, r.q, &user, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get user")
	}

	roles, err := r.loadRoles(ctx, []uuid.UUID{user.ID})
	if err != nil {
		return nil, err
	}
	user.Roles = roles[user.ID]
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter, page Page) ([]*models.User, error) {
	ctx, span := r.tracer(ctx, "UserRepository.List")
	defer span.End()

	query := `
		SELECT user_id, username, email, display_name, created_at, updated_at
		FROM "user"
	`
	args := []interface{}{}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		query += fmt.Sprintf(" WHERE user_id = $%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY created_at %s LIMIT $%d OFFSET $%d",
		sortDirection(page.Order), len(args)+1, len(args)+2)
	args = append(args, page.limit(), page.Offset)

	var users []*models.User
	if err := sqlx.SelectContext(ctx, r.q, &users, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	roles, err := r.loadRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		u.Roles = roles[u.ID]
	}
	return users, nil
}

// loadRoles fetches role assignments for a batch of users in one query.
func (r *userRepository) loadRoles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.Role, error) {
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	rows := []struct {
		UserID uuid.UUID `db:"user_id"`
		Role   string    `db:"role"`
	}{}
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT user_id, role FROM user_role WHERE user_id = ANY($1)
	`, pq.Array(idStrings))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user roles")
	}

	out := make(map[uuid.UUID][]models.Role, len(ids))
	for _, row := range rows {
		out[row.UserID] = append(out[row.UserID], models.RoleFromString(row.Role))
	}
	return out, nil
}
