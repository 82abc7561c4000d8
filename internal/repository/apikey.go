package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
)

type apiKeyRepository struct {
	q      querier
	logger observability.Logger
	tracer observability.StartSpanFunc
}

// NewAPIKeyRepository creates an APIKeyRepository over the given pool.
func NewAPIKeyRepository(db *sqlx.DB, logger observability.Logger, tracer observability.StartSpanFunc) APIKeyRepository {
	return &apiKeyRepository{q: db, logger: logger, tracer: tracer}
}

func (r *apiKeyRepository) WithTx(tx *sqlx.Tx) APIKeyRepository {
	return &apiKeyRepository{q: tx, logger: r.logger, tracer: r.tracer}
}

const apiKeyColumns = `
	api_key_id, user_id, key_prefix, key_hash, status, labels,
	expires_at, last_used_at, created_by_id, updated_by_id, created_at, updated_at
`

func (r *apiKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	ctx, span := r.tracer(ctx, "APIKeyRepository.Create")
	defer span.End()

	query := `
		INSERT INTO api_key (
			api_key_id, user_id, key_prefix, key_hash, status, labels,
			expires_at, created_by_id, updated_by_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.q.ExecContext(ctx, query,
		key.ID,
		key.UserID,
		key.KeyPrefix,
		key.KeyHash,
		string(key.Status),
		key.Labels,
		key.ExpiresAt,
		key.CreatedByID,
		key.UpdatedByID,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create api key", map[string]interface{}{
			"error":   err.Error(),
			"user_id": key.UserID,
		})
		return database.ClassifyError(errors.Wrap(err, "failed to create api key"))
	}
	return nil
}

func (r *apiKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	ctx, span := r.tracer(ctx, "APIKeyRepository.GetByID")
	defer span.End()

	var key models.APIKey
	err := sqlx.GetContext(ctx, r.q, &key,
		`SELECT `+apiKeyColumns+` FROM api_key WHERE api_key_id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get api key")
	}
	return &key, nil
}

func (r *apiKeyRepository) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	ctx, span := r.tracer(ctx, "APIKeyRepository.GetByHash")
	defer span.End()

	var key models.APIKey
	err := sqlx.GetContext(ctx, r.q, &key,
		`SELECT `+apiKeyColumns+` FROM api_key WHERE key_hash = $1`, hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get api key by hash")
	}
	return &key, nil
}

// Update writes the mutable fields. Last write wins.
func (r *apiKeyRepository) Update(ctx context.Context, key *models.APIKey) error {
	ctx, span := r.tracer(ctx, "APIKeyRepository.Update")
	defer span.End()

	query := `
		UPDATE api_key SET
			status = $2,
			labels = $3,
			updated_by_id = $4,
			updated_at = $5
		WHERE api_key_id = $1
	`
	result, err := r.q.ExecContext(ctx, query,
		key.ID,
		string(key.Status),
		key.Labels,
		key.UpdatedByID,
		key.UpdatedAt,
	)
	if err != nil {
		return database.ClassifyError(errors.Wrap(err, "failed to update api key"))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *apiKeyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer(ctx, "APIKeyRepository.Delete")
	defer span.End()

	result, err := r.q.ExecContext(ctx, `DELETE FROM api_key WHERE api_key_id = $1`, id)
	if err != nil {
		return database.ClassifyError(errors.Wrap(err, "failed to delete api key"))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *apiKeyRepository) List(ctx context.Context, filter KeyFilter, page Page) ([]*models.APIKey, error) {
	ctx, span := r.tracer(ctx, "APIKeyRepository.List")
	defer span.End()

	query := `SELECT ` + apiKeyColumns + ` FROM api_key`
	args := []interface{}{}
	where := ""

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		where = andWhere(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(filter.LabelSelectors) > 0 {
		sel, err := labelsJSON(filter.LabelSelectors)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode label selectors")
		}
		args = append(args, sel)
		where = andWhere(where, fmt.Sprintf("labels @> $%d::jsonb", len(args)))
	}

	query += where + fmt.Sprintf(" ORDER BY created_at %s LIMIT $%d OFFSET $%d",
		sortDirection(page.Order), len(args)+1, len(args)+2)
	args = append(args, page.limit(), page.Offset)

	var keys []*models.APIKey
	if err := sqlx.SelectContext(ctx, r.q, &keys, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list api keys")
	}
	return keys, nil
}

// TouchLastUsed records key usage. Best-effort at the call site: failures
// are returned but must not fail the authenticated request.
func (r *apiKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, when time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE api_key SET last_used_at = $2 WHERE api_key_id = $1`, id, when)
	if err != nil {
		return errors.Wrap(err, "failed to update last_used_at")
	}
	return nil
}
