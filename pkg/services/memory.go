package services

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gomem/gomem/internal/queue"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/internal/storage"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
	"github.com/gomem/gomem/pkg/pagination"
)

// MemoryService manages content items within spaces. Creation records the
// already-uploaded blob reference with status PENDING and hands the
// embedding work to the queue; the worker drives the status machine from
// there.
type MemoryService struct {
	memories repository.MemoryRepository
	spaces   repository.SpaceRepository
	store    storage.ObjectStore
	jobs     queue.Queue
	logger   observability.Logger
	tracer   observability.StartSpanFunc
}

// NewMemoryService creates the memory service.
func NewMemoryService(memories repository.MemoryRepository, spaces repository.SpaceRepository, store storage.ObjectStore, jobs queue.Queue, logger observability.Logger, tracer observability.StartSpanFunc) *MemoryService {
	return &MemoryService{
		memories: memories,
		spaces:   spaces,
		store:    store,
		jobs:     jobs,
		logger:   logger,
		tracer:   tracer,
	}
}

// spaceForAccess loads the memory's space and applies the gate for verb,
// honoring publicRead for read verbs.
func (s *MemoryService) spaceForAccess(ctx context.Context, spaceID uuid.UUID, verb auth.Verb) (*models.Space, error) {
	space, err := s.spaces.GetByID(ctx, spaceID)
	if err != nil {
		return nil, translate(err, s.logger, "space not found")
	}
	if err := auth.Authorize(ctx, verb, auth.ResourceMemory, space.OwnerID); err != nil {
		readVerb := verb == auth.VerbGet || verb == auth.VerbList
		if readVerb && space.PublicRead && status.Code(err) == codes.PermissionDenied {
			return space, nil
		}
		return nil, err
	}
	return space, nil
}

// CreateMemory stores the blob reference and queues the embedding job.
func (s *MemoryService) CreateMemory(ctx context.Context, req *CreateMemoryRequest) (*MemoryInfo, error) {
	ctx, span := s.tracer(ctx, "MemoryService.CreateMemory")
	defer span.End()

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	spaceID, err := parseID(req.SpaceID, "spaceId")
	if err != nil {
		return nil, err
	}
	if req.OriginalContentRef == "" {
		return nil, invalidArgf("originalContentRef is required")
	}

	if _, err := s.spaceForAccess(ctx, spaceID, auth.VerbCreate); err != nil {
		return nil, err
	}

	now := nowUTC()
	memory := &models.Memory{
		ID:                 uuid.New(),
		SpaceID:            spaceID,
		OriginalContentRef: req.OriginalContentRef,
		ContentType:        req.ContentType,
		Metadata:           models.Labels(req.Metadata),
		ProcessingStatus:   models.ProcessingPending,
		CreatedByID:        p.UserID,
		UpdatedByID:        p.UserID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.memories.Create(ctx, memory); err != nil {
		return nil, translate(err, s.logger, "space not found")
	}

	job := queue.Job{
		MemoryID:    memory.ID,
		SpaceID:     spaceID,
		ContentRef:  memory.OriginalContentRef,
		RequestedBy: p.UserID,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		// The row stays PENDING; an operator can requeue it. Creation
		// itself has succeeded.
		s.logger.Warn("failed to enqueue embedding job", map[string]interface{}{
			"memory_id": memory.ID.String(),
			"error":     err.Error(),
		})
	}
	return memoryInfo(memory), nil
}

// GetMemory returns one memory, gated through its space.
func (s *MemoryService) GetMemory(ctx context.Context, req *GetMemoryRequest) (*MemoryInfo, error) {
	ctx, span := s.tracer(ctx, "MemoryService.GetMemory")
	defer span.End()

	id, err := parseID(req.MemoryID, "memoryId")
	if err != nil {
		return nil, err
	}
	memory, err := s.memories.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, s.logger, "memory not found")
	}
	if _, err := s.spaceForAccess(ctx, memory.SpaceID, auth.VerbGet); err != nil {
		return nil, err
	}
	return memoryInfo(memory), nil
}

// DeleteMemory removes the row (the vector lives in it) and best-effort
// deletes the blob. The row deletion is authoritative.
func (s *MemoryService) DeleteMemory(ctx context.Context, req *DeleteMemoryRequest) error {
	ctx, span := s.tracer(ctx, "MemoryService.DeleteMemory")
	defer span.End()

	id, err := parseID(req.MemoryID, "memoryId")
	if err != nil {
		return err
	}
	memory, err := s.memories.GetByID(ctx, id)
	if err != nil {
		return translate(err, s.logger, "memory not found")
	}
	if _, err := s.spaceForAccess(ctx, memory.SpaceID, auth.VerbDelete); err != nil {
		return err
	}

	if err := s.memories.Delete(ctx, id); err != nil {
		return translate(err, s.logger, "memory not found")
	}

	if err := s.store.Delete(ctx, memory.OriginalContentRef); err != nil {
		s.logger.Warn("failed to delete memory blob", map[string]interface{}{
			"content_ref": memory.OriginalContentRef,
			"error":       err.Error(),
		})
	}
	return nil
}

// ListMemories pages through one space's memories.
func (s *MemoryService) ListMemories(ctx context.Context, req *ListMemoriesRequest) (*ListMemoriesResponse, error) {
	ctx, span := s.tracer(ctx, "MemoryService.ListMemories")
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
		tok = pagination.Token{
			RequestorID: codec.IDBytes(p.UserID),
			PageSize:    req.MaxResults,
			SpaceID:     req.SpaceID,
		}
	}

	spaceID, err := parseID(tok.SpaceID, "spaceId")
	if err != nil {
		return nil, err
	}
	if _, err := s.spaceForAccess(ctx, spaceID, auth.VerbList); err != nil {
		return nil, err
	}

	page := pageOf(tok)
	page.Limit++
	memories, err := s.memories.ListBySpace(ctx, spaceID, page)
	if err != nil {
		return nil, translate(err, s.logger, "")
	}

	memories, hasMore := trimPage(memories, page.Limit-1)
	infos := make([]*MemoryInfo, len(memories))
	for i, m := range memories {
		infos[i] = memoryInfo(m)
	}

	next, err := nextToken(tok, len(memories), hasMore)
	if err != nil {
		return nil, err
	}
	return &ListMemoriesResponse{Memories: infos, NextPageToken: next}, nil
}
