package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/internal/storage"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
	"github.com/gomem/gomem/pkg/pagination"
)

// SpaceService manages memory containers. (ownerId, name) is unique per
// owner; deleting a space cascades to its memories in one transaction.
type SpaceService struct {
	db        *sqlx.DB
	spaces    repository.SpaceRepository
	embedders repository.EmbedderRepository
	memories  repository.MemoryRepository
	store     storage.ObjectStore
	// defaultEmbedderID backs space creation when the request names no
	// embedder. Nil means the embedderId is required.
	defaultEmbedderID *uuid.UUID
	logger            observability.Logger
	tracer            observability.StartSpanFunc
}

// NewSpaceService creates the space service.
func NewSpaceService(db *sqlx.DB, spaces repository.SpaceRepository, embedders repository.EmbedderRepository, memories repository.MemoryRepository, store storage.ObjectStore, defaultEmbedderID *uuid.UUID, logger observability.Logger, tracer observability.StartSpanFunc) *SpaceService {
	return &SpaceService{
		db:                db,
		spaces:            spaces,
		embedders:         embedders,
		memories:          memories,
		store:             store,
		defaultEmbedderID: defaultEmbedderID,
		logger:            logger,
		tracer:            tracer,
	}
}

// CreateSpace validates the name and embedder reference and inserts the
// space.
func (s *SpaceService) CreateSpace(ctx context.Context, req *CreateSpaceRequest) (*SpaceInfo, error) {
	ctx, span := s.tracer(ctx, "SpaceService.CreateSpace")
	defer span.End()

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, invalidArgf("name is required")
	}

	owner := p.UserID
	if requested, err := optionalID(req.OwnerID, "ownerId"); err != nil {
		return nil, err
	} else if requested != nil {
		owner = *requested
	}
	if err := auth.Authorize(ctx, auth.VerbCreate, auth.ResourceSpace, owner); err != nil {
		return nil, err
	}

	embedderID, err := optionalID(req.EmbedderID, "embedderId")
	if err != nil {
		return nil, err
	}
	if embedderID == nil {
		if s.defaultEmbedderID == nil {
			return nil, invalidArgf("embedderId is required")
		}
		embedderID = s.defaultEmbedderID
	}
	if _, err := s.embedders.GetByID(ctx, *embedderID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, status.Error(codes.FailedPrecondition, "embedder does not exist")
		}
		return nil, translate(err, s.logger, "")
	}

	if _, err := s.spaces.GetByOwnerAndName(ctx, owner, req.Name); err == nil {
		return nil, status.Errorf(codes.AlreadyExists, "space %q already exists for this owner", req.Name)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, translate(err, s.logger, "")
	}

	now := nowUTC()
	space := &models.Space{
		ID:          uuid.New(),
		OwnerID:     owner,
		Name:        req.Name,
		EmbedderID:  *embedderID,
		Labels:      models.Labels(req.Labels),
		PublicRead:  req.PublicRead,
		CreatedByID: p.UserID,
		UpdatedByID: p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.spaces.Create(ctx, space); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, status.Errorf(codes.AlreadyExists, "space %q already exists for this owner", req.Name)
		}
		if database.IsForeignKeyViolation(err) {
			return nil, status.Error(codes.FailedPrecondition, "embedder does not exist")
		}
		return nil, translate(err, s.logger, "")
	}
	return spaceInfo(space), nil
}

// GetSpace returns one space. publicRead spaces are readable by any
// authenticated caller.
func (s *SpaceService) GetSpace(ctx context.Context, req *GetSpaceRequest) (*SpaceInfo, error) {
	ctx, span := s.tracer(ctx, "SpaceService.GetSpace")
	defer span.End()

	space, err := s.loadSpaceForRead(ctx, req.SpaceID)
	if err != nil {
		return nil, err
	}
	return spaceInfo(space), nil
}

// loadSpaceForRead fetches a space and applies the read gate, honoring
// publicRead. Shared with the memory service's space access checks.
func (s *SpaceService) loadSpaceForRead(ctx context.Context, rawID []byte) (*models.Space, error) {
	id, err := parseID(rawID, "spaceId")
	if err != nil {
		return nil, err
	}
	space, err := s.spaces.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, s.logger, "space not found")
	}
	if err := auth.Authorize(ctx, auth.VerbGet, auth.ResourceSpace, space.OwnerID); err != nil {
		if space.PublicRead && status.Code(err) == codes.PermissionDenied {
			return space, nil
		}
		return nil, err
	}
	return space, nil
}

// UpdateSpace changes name, publicRead, and labels. Renames re-check the
// per-owner uniqueness.
func (s *SpaceService) UpdateSpace(ctx context.Context, req *UpdateSpaceRequest) (*SpaceInfo, error) {
	ctx, span := s.tracer(ctx, "SpaceService.UpdateSpace")
	defer span.End()

	id, err := parseID(req.SpaceID, "spaceId")
	if err != nil {
		return nil, err
	}
	space, err := s.spaces.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, s.logger, "space not found")
	}
	if err := auth.Authorize(ctx, auth.VerbUpdate, auth.ResourceSpace, space.OwnerID); err != nil {
		return nil, err
	}

	if req.Name != "" && req.Name != space.Name {
		if _, err := s.spaces.GetByOwnerAndName(ctx, space.OwnerID, req.Name); err == nil {
			return nil, status.Errorf(codes.AlreadyExists, "space %q already exists for this owner", req.Name)
		} else if !errors.Is(err, database.ErrNotFound) {
			return nil, translate(err, s.logger, "")
		}
		space.Name = req.Name
	}
	if req.PublicRead != nil {
		space.PublicRead = *req.PublicRead
	}
	labels, err := req.LabelUpdate.Apply(space.Labels)
	if err != nil {
		return nil, err
	}
	space.Labels = labels

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	space.UpdatedByID = p.UserID
	space.UpdatedAt = nowUTC()

	if err := s.spaces.Update(ctx, space); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, status.Errorf(codes.AlreadyExists, "space %q already exists for this owner", space.Name)
		}
		return nil, translate(err, s.logger, "space not found")
	}
	return spaceInfo(space), nil
}

// DeleteSpace removes the space and its memories in one transaction, then
// best-effort deletes the orphaned blobs. Row deletion is authoritative; a
// failed blob delete is logged and the call still succeeds.
func (s *SpaceService) DeleteSpace(ctx context.Context, req *DeleteSpaceRequest) error {
	ctx, span := s.tracer(ctx, "SpaceService.DeleteSpace")
	defer span.End()

	id, err := parseID(req.SpaceID, "spaceId")
	if err != nil {
		return err
	}
	space, err := s.spaces.GetByID(ctx, id)
	if err != nil {
		return translate(err, s.logger, "space not found")
	}
	if err := auth.Authorize(ctx, auth.VerbDelete, auth.ResourceSpace, space.OwnerID); err != nil {
		return err
	}

	var contentRefs []string
	err = database.Transaction(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		refs, err := s.memories.WithTx(tx).DeleteBySpace(ctx, id)
		if err != nil {
			return err
		}
		contentRefs = refs
		return s.spaces.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return translate(err, s.logger, "space not found")
	}

	for _, ref := range contentRefs {
		if err := s.store.Delete(ctx, ref); err != nil {
			s.logger.Warn("failed to delete memory blob", map[string]interface{}{
				"content_ref": ref,
				"error":       err.Error(),
			})
		}
	}
	return nil
}

// ListSpaces pages through the caller's visible spaces with optional name
// glob, label selectors, and sorting.
func (s *SpaceService) ListSpaces(ctx context.Context, req *ListSpacesRequest) (*ListSpacesResponse, error) {
	ctx, span := s.tracer(ctx, "SpaceService.ListSpaces")
	defer span.End()

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	tok, presented, err := pagination.DecodeFor(req.PageToken, p.UserID)
	if err != nil {
		return nil, err
	}
	if !presented {
		if req.SortOrder != "" && models.SortOrderFromString(req.SortOrder) == models.SortOrderUnspecified {
			return nil, invalidArgf("unknown sortOrder %q", req.SortOrder)
		}
		tok = pagination.Token{
			RequestorID:    codec.IDBytes(p.UserID),
			PageSize:       req.MaxResults,
			SortBy:         req.SortBy,
			SortOrder:      req.SortOrder,
			OwnerID:        req.OwnerID,
			LabelSelectors: req.LabelSelectors,
			NameFilter:     req.NameFilter,
		}
	}

	scope, err := auth.ListScope(ctx, auth.ResourceSpace)
	if err != nil {
		return nil, err
	}
	owner, err := optionalID(tok.OwnerID, "ownerId")
	if err != nil {
		return nil, err
	}
	if scope != nil {
		if owner != nil && *owner != *scope {
			return &ListSpacesResponse{Spaces: []*SpaceInfo{}}, nil
		}
		owner = scope
	}

	page := pageOf(tok)
	page.Limit++
	spaces, err := s.spaces.List(ctx, repository.SpaceFilter{
		OwnerID:        owner,
		LabelSelectors: tok.LabelSelectors,
		NameFilter:     tok.NameFilter,
	}, page)
	if err != nil {
		return nil, translate(err, s.logger, "")
	}

	spaces, hasMore := trimPage(spaces, page.Limit-1)
	infos := make([]*SpaceInfo, len(spaces))
	for i, sp := range spaces {
		infos[i] = spaceInfo(sp)
	}

	next, err := nextToken(tok, len(spaces), hasMore)
	if err != nil {
		return nil, err
	}
	return &ListSpacesResponse{Spaces: infos, NextPageToken: next}, nil
}
