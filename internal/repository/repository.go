// Package repository implements the per-aggregate data access layer over
// PostgreSQL. Every method takes a context, runs a single statement unless
// noted, and classifies driver errors through the database package.
package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gomem/gomem/pkg/models"
)

// Page bounds a list query. Limit of zero means the repository default.
type Page struct {
	Offset int
	Limit  int
	SortBy string
	Order  models.SortOrder
}

const defaultPageLimit = 50

func (p Page) limit() int {
	if p.Limit <= 0 {
		return defaultPageLimit
	}
	return p.Limit
}

// UserFilter narrows a user listing.
type UserFilter struct {
	OwnerID *uuid.UUID
}

// KeyFilter narrows an API key listing.
type KeyFilter struct {
	OwnerID        *uuid.UUID
	LabelSelectors map[string]string
}

// EmbedderFilter narrows an embedder listing.
type EmbedderFilter struct {
	OwnerID        *uuid.UUID
	ProviderType   models.ProviderType
	LabelSelectors map[string]string
}

// SpaceFilter narrows a space listing.
type SpaceFilter struct {
	OwnerID        *uuid.UUID
	LabelSelectors map[string]string
	NameFilter     string
}

// UserRepository is the data access surface for users and their roles.
type UserRepository interface {
	WithTx(tx *sqlx.Tx) UserRepository
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter UserFilter, page Page) ([]*models.User, error)
}

// APIKeyRepository is the data access surface for API keys.
type APIKeyRepository interface {
	WithTx(tx *sqlx.Tx) APIKeyRepository
	Create(ctx context.Context, key *models.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*models.APIKey, error)
	Update(ctx context.Context, key *models.APIKey) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter KeyFilter, page Page) ([]*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, when time.Time) error
}

// EmbedderRepository is the data access surface for embedders.
type EmbedderRepository interface {
	WithTx(tx *sqlx.Tx) EmbedderRepository
	Create(ctx context.Context, embedder *models.Embedder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Embedder, error)
	GetByConnection(ctx context.Context, endpointURL, apiPath, modelIdentifier string) (*models.Embedder, error)
	Update(ctx context.Context, embedder *models.Embedder) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter EmbedderFilter, page Page) ([]*models.Embedder, error)
}

// SpaceRepository is the data access surface for spaces.
type SpaceRepository interface {
	WithTx(tx *sqlx.Tx) SpaceRepository
	Create(ctx context.Context, space *models.Space) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Space, error)
	GetByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (*models.Space, error)
	Update(ctx context.Context, space *models.Space) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter SpaceFilter, page Page) ([]*models.Space, error)
}

// MemoryRepository is the data access surface for memories, including the
// processing-status transitions driven by the embedding worker.
type MemoryRepository interface {
	WithTx(tx *sqlx.Tx) MemoryRepository
	Create(ctx context.Context, memory *models.Memory) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Memory, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySpace(ctx context.Context, spaceID uuid.UUID, page Page) ([]*models.Memory, error)
	// DeleteBySpace removes all memories in a space and returns their
	// object-store content refs for best-effort blob cleanup.
	DeleteBySpace(ctx context.Context, spaceID uuid.UUID) ([]string, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) error
	CompleteEmbedding(ctx context.Context, id uuid.UUID, vector string, dimensions int, updatedBy uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) error
}

// querier abstracts *sqlx.DB and *sqlx.Tx so WithTx can rebind a repository
// onto a transaction.
type querier interface {
	sqlx.ExtContext
}

// labelsJSON marshals a selector for a `labels @> $n::jsonb` predicate.
func labelsJSON(selectors map[string]string) ([]byte, error) {
	return json.Marshal(selectors)
}

// globToLike translates a glob pattern (`*` wildcard) into a LIKE pattern,
// escaping LIKE's own metacharacters.
func globToLike(glob string) string {
	var sb strings.Builder
	sb.Grow(len(glob))
	for _, r := range glob {
		switch r {
		case '*':
			sb.WriteByte('%')
		case '%':
			sb.WriteString(`\%`)
		case '_':
			sb.WriteString(`\_`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// sortColumn maps a wire sort key onto a whitelisted column. Unknown keys
// fall back to creation time so user input can never reach the SQL text.
func sortColumn(sortBy string) string {
	switch sortBy {
	case "name":
		return "name"
	case "updated_time":
		return "updated_at"
	case "created_time":
		return "created_at"
	default:
		return "created_at"
	}
}

func sortDirection(order models.SortOrder) string {
	if order == models.SortDescending {
		return "DESC"
	}
	return "ASC"
}

func andWhere(where, predicate string) string {
	if where == "" {
		return " WHERE " + predicate
	}
	return where + " AND " + predicate
}
