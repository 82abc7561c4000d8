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

type embedderRepository struct {
	q      querier
	logger observability.Logger
	tracer observability.StartSpanFunc
}

// NewEmbedderRepository creates an EmbedderRepository over the given pool.
func NewEmbedderRepository(db *sqlx.DB, logger observability.Logger, tracer observability.StartSpanFunc) EmbedderRepository {
	return &embedderRepository{q: db, logger: logger, tracer: tracer}
}

func (r *embedderRepository) WithTx(tx *sqlx.Tx) EmbedderRepository {
	return &embedderRepository{q: tx, logger: r.logger, tracer: r.tracer}
}

const embedderColumns = `
	embedder_id, owner_id, display_name, description, provider_type,
	endpoint_url, api_path, model_identifier, dimensionality,
	max_sequence_length, supported_modalities, credentials, labels,
	version, monitoring_endpoint, created_by_id, updated_by_id,
	created_at, updated_at
`

func (r *embedderRepository) Create(ctx context.Context, embedder *models.Embedder) error {
	ctx, span := r.tracer(ctx, "EmbedderRepository.Create")
	defer span.End()

	query := `
		INSERT INTO embedder (
			embedder_id, owner_id, display_name, description, provider_type,
			endpoint_url, api_path, model_identifier, dimensionality,
			max_sequence_length, supported_modalities, credentials, labels,
			version, monitoring_endpoint, created_by_id, updated_by_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19
		)
	`
	_, err := r.q.ExecContext(ctx, query,
		embedder.ID,
		embedder.OwnerID,
		embedder.DisplayName,
		embedder.Description,
		string(embedder.ProviderType),
		embedder.EndpointURL,
		embedder.APIPath,
		embedder.ModelIdentifier,
		embedder.Dimensionality,
		embedder.MaxSequenceLength,
		embedder.SupportedModalities,
		embedder.Credentials,
		embedder.Labels,
		embedder.Version,
		embedder.MonitoringEndpoint,
		embedder.CreatedByID,
		embedder.UpdatedByID,
		embedder.CreatedAt,
		embedder.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create embedder", map[string]interface{}{
			"error":        err.Error(),
			"display_name": embedder.DisplayName,
		})
		return database.ClassifyError(errors.Wrap(err, "failed to create embedder"))
	}
	return nil
}

func (r *embedderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Embedder, error) {
	ctx, span := r.tracer(ctx, "EmbedderRepository.GetByID")
	defer span.End()

	var embedder models.Embedder
	err := sqlx.GetContext(ctx, r.q, &embedder,
		`SELECT `+embedderColumns+` FROM embedder WHERE embedder_id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get embedder")
	}
	return &embedder, nil
}

func (r *embedderRepository) GetByConnection(ctx context.Context, endpointURL, apiPath, modelIdentifier string) (*models.Embedder, error) {
	ctx, span := r.tracer(ctx, "EmbedderRepository.GetByConnection")
	defer span.End()

	var embedder models.Embedder
	err := sqlx.GetContext(ctx, r.q, &embedder,
		`SELECT `+embedderColumns+` FROM embedder
		 WHERE endpoint_url = $1 AND api_path = $2 AND model_identifier = $3`,
		endpointURL, apiPath, modelIdentifier)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get embedder by connection")
	}
	return &embedder, nil
}

// Update writes the mutable fields. ProviderType and Dimensionality are
// immutable and deliberately absent from the statement.
func (r *embedderRepository) Update(ctx context.Context, embedder *models.Embedder) error {
	ctx, span := r.tracer(ctx, "EmbedderRepository.Update")
	defer span.End()

	query := `
		UPDATE embedder SET
			display_name = $2,
			description = $3,
			endpoint_url = $4,
			api_path = $5,
			model_identifier = $6,
			max_sequence_length = $7,
			supported_modalities = $8,
			credentials = $9,
			labels = $10,
			version = $11,
			monitoring_endpoint = $12,
			updated_by_id = $13,
			updated_at = $14
		WHERE embedder_id = $1
	`
	result, err := r.q.ExecContext(ctx, query,
		embedder.ID,
		embedder.DisplayName,
		embedder.Description,
		embedder.EndpointURL,
		embedder.APIPath,
		embedder.ModelIdentifier,
		embedder.MaxSequenceLength,
		embedder.SupportedModalities,
		embedder.Credentials,
		embedder.Labels,
		embedder.Version,
		embedder.MonitoringEndpoint,
		embedder.UpdatedByID,
		embedder.UpdatedAt,
	)
	if err != nil {
		return database.ClassifyError(errors.Wrap(err, "failed to update embedder"))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *embedderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer(ctx, "EmbedderRepository.Delete")
	defer span.End()

	result, err := r.q.ExecContext(ctx, `DELETE FROM embedder WHERE embedder_id = $1`, id)
	if err != nil {
		return database.ClassifyError(errors.Wrap(err, "failed to delete embedder"))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *embedderRepository) List(ctx context.Context, filter EmbedderFilter, page Page) ([]*models.Embedder, error) {
	ctx, span := r.tracer(ctx, "EmbedderRepository.List")
	defer span.End()

	query := `SELECT ` + embedderColumns + ` FROM embedder`
	args := []interface{}{}
	where := ""

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		where = andWhere(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.ProviderType != "" && filter.ProviderType != models.ProviderUnspecified {
		args = append(args, string(filter.ProviderType))
		where = andWhere(where, fmt.Sprintf("provider_type = $%d", len(args)))
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

	var embedders []*models.Embedder
	if err := sqlx.SelectContext(ctx, r.q, &embedders, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list embedders")
	}
	return embedders, nil
}
