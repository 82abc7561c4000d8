package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
)

type spaceRepository struct {
	q      querier
	logger observability.Logger
	tracer observability.StartSpanFunc
}

// NewSpaceRepository creates a SpaceRepository over the given pool.
func NewSpaceRepository(db *sqlx.DB, logger observability.Logger, tracer observability.StartSpanFunc) SpaceRepository {
	return &spaceRepository{q: db, logger: logger, tracer: tracer}
}

func (r *spaceRepository) WithTx(tx *sqlx.Tx) SpaceRepository {
	return &spaceRepository{q: tx, logger: r.logger, tracer: r.tracer}
}

const spaceColumns = `
	space_id, owner_id, name, embedder_id, labels, public_read,
	created_by_id, updated_by_id, created_at, updated_at
`

func (r *spaceRepository) Create(ctx context.Context, space *models.Space) error {
	ctx, span := r.tracer(ctx, "SpaceRepository.Create")
	defer span.End()

	query := `
		INSERT INTO space (
			space_id, owner_id, name, embedder_id, labels, public_read,
			created_by_id, updated_by_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		space.ID,
		space.OwnerID,
		space.Name,
		space.EmbedderID,
		space.Labels,
		space.PublicRead,
		space.CreatedByID,
		space.UpdatedByID,
		space.CreatedAt,
		space.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create space", map[string]interface{}{
			"error":    err.Error(),
			"owner_id": space.OwnerID,
			"name":     space.Name,
		})
		return database.ClassifyError(errors.Wrap(err, "failed to create space"))
	}
	return nil
}

func (r *spaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Space, error) {
	ctx, span := r.tracer(ctx, "SpaceRepository.GetByID")
	defer span.End()

	var space models.Space
	err := sqlx.GetContext(ctx, r.q, &space,
		`SELECT `+spaceColumns+` FROM space WHERE space_id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get space")
	}
	return &space, nil
}

func (r *spaceRepository) GetByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (*models.Space, error) {
	ctx, span := r.tracer(ctx, "SpaceRepository.GetByOwnerAndName")
	defer span.End()

	var space models.Space
	err := sqlx.GetContext(ctx, r.q, &space,
		`SELECT `+spaceColumns+` FROM space WHERE owner_id = $1 AND name = $2`, ownerID, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get space by name")
	}
	return &space, nil
}

// Update writes the mutable fields. Last write wins.
func (r *spaceRepository) Update(ctx context.Context, space *models.Space) error {
	ctx, span := r.tracer(ctx, "SpaceRepository.Update")
	defer span.End()

	query := `
		UPDATE space SET
			name = $2,
			labels = $3,
			public_read = $4,
			updated_by_id = $5,
			updated_at = $6
		WHERE space_id = $1
	`
	result, err := r.q.ExecContext(ctx, query,
		space.ID,
		space.Name,
		space.Labels,
		space.PublicRead,
		space.UpdatedByID,
		space.UpdatedAt,
	)
	if err != nil {
		return database.ClassifyError(errors.Wrap(err, "failed to update space"))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *spaceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer(ctx, "SpaceRepository.Delete")
	defer span.End()

	result, err := r.q.ExecContext(ctx, `DELETE FROM space WHERE space_id = $1`, id)
	if err != nil {
		return database.ClassifyError(errors.Wrap(err, "failed to delete space"))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *spaceRepository) List(ctx context.Context, filter SpaceFilter, page Page) ([]*models.Space, error) {
	ctx, span := r.tracer(ctx, "SpaceRepository.List")
	defer span.End()

	query := `SELECT ` + spaceColumns + ` FROM space`
	args := []interface{}{}
	where := ""

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		where = andWhere(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if len(filter.LabelSelectors) > 0 {
		sel, err := labelsJSON(filter.LabelSelectors)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode label selectors")
		}
		args = append(args, sel)
		where = andWhere(where, fmt.Sprintf("labels @> $%d::jsonb", len(args)))
	}
	if filter.NameFilter != "" {
		args = append(args, globToLike(filter.NameFilter))
		where = andWhere(where, fmt.Sprintf("name LIKE $%d", len(args)))
	}

	query += where + fmt.Sprintf(" ORDER BY %s %s LIMIT $%d OFFSET $%d",
		sortColumn(page.SortBy), sortDirection(page.Order), len(args)+1, len(args)+2)
	args = append(args, page.limit(), page.Offset)

	var spaces []*models.Space
	if err := sqlx.SelectContext(ctx, r.q, &spaces, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list spaces")
	}
	return spaces, nil
}
