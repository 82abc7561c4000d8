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

type memoryRepository struct {
	q      querier
	logger observability.Logger
	tracer observability.StartSpanFunc
}

// NewMemoryRepository creates a MemoryRepository over the given pool.
func NewMemoryRepository(db *sqlx.DB, logger observability.Logger, tracer observability.StartSpanFunc) MemoryRepository {
	return &memoryRepository{q: db, logger: logger, tracer: tracer}
}

func (r *memoryRepository) WithTx(tx *sqlx.Tx) MemoryRepository {
	return &memoryRepository{q: tx, logger: r.logger, tracer: r.tracer}
}

const memoryColumns = `
	memory_id, space_id, original_content_ref, content_type, metadata,
	processing_status, created_by_id, updated_by_id, created_at, updated_at
`

func (r *memoryRepository) Create(ctx context.Context, memory *models.Memory) error {
	ctx, span := r.tracer(ctx, "MemoryRepository.Create")
	defer span.End()

	query := `
		INSERT INTO memory (
			memory_id, space_id, original_content_ref, content_type, metadata,
			processing_status, created_by_id, updated_by_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		memory.ID,
		memory.SpaceID,
		memory.OriginalContentRef,
		memory.ContentType,
		memory.Metadata,
		string(memory.ProcessingStatus),
		memory.CreatedByID,
		memory.UpdatedByID,
		memory.CreatedAt,
		memory.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create memory", map[string]interface{}{
			"error":    err.Error(),
			"space_id": memory.SpaceID,
		})
		return database.ClassifyError(errors.Wrap(err, "failed to create memory"))
	}
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Memory, error) {
	ctx, span := r.tracer(ctx, "MemoryRepository.GetByID")
	defer span.End()

	var memory models.Memory
	err := sqlx.GetContext(ctx, r.q, &memory,
		`SELECT `+memoryColumns+` FROM memory WHERE memory_id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get memory")
	}
	return &memory, nil
}

// Delete removes the row. The embedding vector lives in the row, so vector
// cleanup needs no extra statement.
func (r *memoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer(ctx, "MemoryRepository.Delete")
	defer span.End()

	result, err := r.q.ExecContext(ctx, `DELETE FROM memory WHERE memory_id = $1`, id)
	if err != nil {
		return database.ClassifyError(errors.Wrap(err, "failed to delete memory"))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *memoryRepository) ListBySpace(ctx context.Context, spaceID uuid.UUID, page Page) ([]*models.Memory, error) {
	ctx, span := r.tracer(ctx, "MemoryRepository.ListBySpace")
	defer span.End()

	query := `SELECT ` + memoryColumns + ` FROM memory WHERE space_id = $1` +
		fmt.Sprintf(" ORDER BY created_at %s LIMIT $2 OFFSET $3", sortDirection(page.Order))

	var memories []*models.Memory
	if err := sqlx.SelectContext(ctx, r.q, &memories, query, spaceID, page.limit(), page.Offset); err != nil {
		return nil, errors.Wrap(err, "failed to list memories")
	}
	return memories, nil
}

func (r *memoryRepository) DeleteBySpace(ctx context.Context, spaceID uuid.UUID) ([]string, error) {
	ctx, span := r.tracer(ctx, "MemoryRepository.DeleteBySpace")
	defer span.End()

	var refs []string
	err := sqlx.SelectContext(ctx, r.q, &refs,
		`DELETE FROM memory WHERE space_id = $1 RETURNING original_content_ref`, spaceID)
	if err != nil {
		return nil, database.ClassifyError(errors.Wrap(err, "failed to delete memories in space"))
	}
	return refs, nil
}

// MarkProcessing advances PENDING -> PROCESSING. A zero-row update means the
// memory is gone or was already picked up; both report as not found.
func (r *memoryRepository) MarkProcessing(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) error {
	ctx, span := r.tracer(ctx, "MemoryRepository.MarkProcessing")
	defer span.End()

	return r.transition(ctx, id, models.ProcessingPending, models.ProcessingProcessing, updatedBy)
}

// CompleteEmbedding stores the vector and advances PROCESSING -> COMPLETED.
func (r *memoryRepository) CompleteEmbedding(ctx context.Context, id uuid.UUID, vector string, dimensions int, updatedBy uuid.UUID) error {
	ctx, span := r.tracer(ctx, "MemoryRepository.CompleteEmbedding")
	defer span.End()

	query := `
		UPDATE memory SET
			embedding = $2::vector,
			embedding_dimensions = $3,
			processing_status = $4,
			updated_by_id = $5,
			updated_at = $6
		WHERE memory_id = $1 AND processing_status = $7
	`
	result, err := r.q.ExecContext(ctx, query,
		id, vector, dimensions,
		string(models.ProcessingCompleted), updatedBy, time.Now().UTC(),
		string(models.ProcessingProcessing),
	)
	if err != nil {
		return database.ClassifyError(errors.Wrap(err, "failed to store embedding"))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// MarkFailed advances PROCESSING -> FAILED.
func (r *memoryRepository) MarkFailed(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) error {
	ctx, span := r.tracer(ctx, "MemoryRepository.MarkFailed")
	defer span.End()

	return r.transition(ctx, id, models.ProcessingProcessing, models.ProcessingFailed, updatedBy)
}

func (r *memoryRepository) transition(ctx context.Context, id uuid.UUID, from, to models.ProcessingStatus, updatedBy uuid.UUID) error {
	query := `
		UPDATE memory SET
			processing_status = $2,
			updated_by_id = $3,
			updated_at = $4
		WHERE memory_id = $1 AND processing_status = $5
	`
	result, err := r.q.ExecContext(ctx, query,
		id, string(to), updatedBy, time.Now().UTC(), string(from))
	if err != nil {
		return database.ClassifyError(errors.Wrap(err, "failed to update processing status"))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return database.ErrNotFound
	}
	return nil
}
