package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
	"github.com/gomem/gomem/pkg/pagination"
	"github.com/gomem/gomem/pkg/security"
)

// EmbedderService manages embedding-endpoint configurations. The connection
// triple (endpointUrl, apiPath, modelIdentifier) is unique system-wide;
// providerType and dimensionality are frozen at create.
type EmbedderService struct {
	embedders repository.EmbedderRepository
	sealer    *security.Sealer
	logger    observability.Logger
	tracer    observability.StartSpanFunc
}

// NewEmbedderService creates the embedder service.
func NewEmbedderService(embedders repository.EmbedderRepository, sealer *security.Sealer, logger observability.Logger, tracer observability.StartSpanFunc) *EmbedderService {
	return &EmbedderService{embedders: embedders, sealer: sealer, logger: logger, tracer: tracer}
}

// CreateEmbedder validates and registers a new endpoint configuration.
func (s *EmbedderService) CreateEmbedder(ctx context.Context, req *CreateEmbedderRequest) (*EmbedderInfo, error) {
	ctx, span := s.tracer(ctx, "EmbedderService.CreateEmbedder")
	defer span.End()

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if req.DisplayName == "" {
		return nil, invalidArgf("displayName is required")
	}
	provider := models.ProviderTypeFromString(req.ProviderType)
	if provider == models.ProviderUnspecified {
		return nil, invalidArgf("providerType must be one of OPENAI, VLLM, TEI")
	}
	if req.EndpointURL == "" {
		return nil, invalidArgf("endpointUrl is required")
	}
	if req.ModelIdentifier == "" {
		return nil, invalidArgf("modelIdentifier is required")
	}
	if req.Dimensionality <= 0 {
		return nil, invalidArgf("dimensionality must be positive")
	}
	modalities := make([]string, 0, len(req.SupportedModalities))
	for _, m := range req.SupportedModalities {
		if models.ModalityFromString(m) == models.ModalityUnspecified {
			return nil, invalidArgf("unknown modality %q", m)
		}
		modalities = append(modalities, m)
	}

	owner := p.UserID
	if requested, err := optionalID(req.OwnerID, "ownerId"); err != nil {
		return nil, err
	} else if requested != nil {
		owner = *requested
	}
	if err := auth.Authorize(ctx, auth.VerbCreate, auth.ResourceEmbedder, owner); err != nil {
		return nil, err
	}

	// Pre-check the connection triple for a friendly conflict message; the
	// unique index still backstops racing creates.
	if _, err := s.embedders.GetByConnection(ctx, req.EndpointURL, req.APIPath, req.ModelIdentifier); err == nil {
		return nil, status.Error(codes.AlreadyExists, "an embedder with this connection already exists")
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, translate(err, s.logger, "")
	}

	var sealed []byte
	if req.Credentials != "" {
		sealed, err = s.sealer.Seal(req.Credentials, owner.String())
		if err != nil {
			return nil, translate(err, s.logger, "")
		}
	}

	now := nowUTC()
	embedder := &models.Embedder{
		ID:                  uuid.New(),
		OwnerID:             owner,
		DisplayName:         req.DisplayName,
		Description:         req.Description,
		ProviderType:        provider,
		EndpointURL:         req.EndpointURL,
		APIPath:             req.APIPath,
		ModelIdentifier:     req.ModelIdentifier,
		Dimensionality:      req.Dimensionality,
		MaxSequenceLength:   req.MaxSequenceLength,
		SupportedModalities: modalities,
		Credentials:         sealed,
		Labels:              models.Labels(req.Labels),
		Version:             req.Version,
		MonitoringEndpoint:  req.MonitoringEndpoint,
		CreatedByID:         p.UserID,
		UpdatedByID:         p.UserID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.embedders.Create(ctx, embedder); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, status.Error(codes.AlreadyExists, "an embedder with this connection already exists")
		}
		return nil, translate(err, s.logger, "owner not found")
	}
	return embedderInfo(embedder), nil
}

// GetEmbedder returns one embedder, without its credentials.
func (s *EmbedderService) GetEmbedder(ctx context.Context, req *GetEmbedderRequest) (*EmbedderInfo, error) {
	ctx, span := s.tracer(ctx, "EmbedderService.GetEmbedder")
	defer span.End()

	id, err := parseID(req.EmbedderID, "embedderId")
	if err != nil {
		return nil, err
	}
	embedder, err := s.embedders.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, s.logger, "embedder not found")
	}
	if err := auth.Authorize(ctx, auth.VerbGet, auth.ResourceEmbedder, embedder.OwnerID); err != nil {
		return nil, err
	}
	return embedderInfo(embedder), nil
}

// UpdateEmbedder changes the mutable fields. providerType and
// dimensionality in the request are rejected outright.
func (s *EmbedderService) UpdateEmbedder(ctx context.Context, req *UpdateEmbedderRequest) (*EmbedderInfo, error) {
	ctx, span := s.tracer(ctx, "EmbedderService.UpdateEmbedder")
	defer span.End()

	if req.ProviderType != "" {
		return nil, invalidArgf("providerType is immutable")
	}
	if req.Dimensionality != 0 {
		return nil, invalidArgf("dimensionality is immutable")
	}

	id, err := parseID(req.EmbedderID, "embedderId")
	if err != nil {
		return nil, err
	}
	embedder, err := s.embedders.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, s.logger, "embedder not found")
	}
	if err := auth.Authorize(ctx, auth.VerbUpdate, auth.ResourceEmbedder, embedder.OwnerID); err != nil {
		return nil, err
	}

	if req.DisplayName != "" {
		embedder.DisplayName = req.DisplayName
	}
	if req.Description != "" {
		embedder.Description = req.Description
	}
	if req.MaxSequenceLength != 0 {
		embedder.MaxSequenceLength = req.MaxSequenceLength
	}
	if req.Version != "" {
		embedder.Version = req.Version
	}
	if req.MonitoringEndpoint != "" {
		embedder.MonitoringEndpoint = req.MonitoringEndpoint
	}
	if req.Credentials != "" {
		sealed, err := s.sealer.Seal(req.Credentials, embedder.OwnerID.String())
		if err != nil {
			return nil, translate(err, s.logger, "")
		}
		embedder.Credentials = sealed
	}
	labels, err := req.LabelUpdate.Apply(embedder.Labels)
	if err != nil {
		return nil, err
	}
	embedder.Labels = labels

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	embedder.UpdatedByID = p.UserID
	embedder.UpdatedAt = nowUTC()

	if err := s.embedders.Update(ctx, embedder); err != nil {
		return nil, translate(err, s.logger, "embedder not found")
	}
	return embedderInfo(embedder), nil
}

// DeleteEmbedder removes an embedder configuration. Spaces still bound to
// it surface as a FAILED_PRECONDITION through the foreign key.
func (s *EmbedderService) DeleteEmbedder(ctx context.Context, req *DeleteEmbedderRequest) error {
	ctx, span := s.tracer(ctx, "EmbedderService.DeleteEmbedder")
	defer span.End()

	id, err := parseID(req.EmbedderID, "embedderId")
	if err != nil {
		return err
	}
	embedder, err := s.embedders.GetByID(ctx, id)
	if err != nil {
		return translate(err, s.logger, "embedder not found")
	}
	if err := auth.Authorize(ctx, auth.VerbDelete, auth.ResourceEmbedder, embedder.OwnerID); err != nil {
		return err
	}
	if err := s.embedders.Delete(ctx, id); err != nil {
		return translate(err, s.logger, "embedder not found")
	}
	return nil
}

// ListEmbedders pages through embedders matching the filters.
func (s *EmbedderService) ListEmbedders(ctx context.Context, req *ListEmbeddersRequest) (*ListEmbeddersResponse, error) {
	ctx, span := s.tracer(ctx, "EmbedderService.ListEmbedders")
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
		if req.ProviderType != "" && models.ProviderTypeFromString(req.ProviderType) == models.ProviderUnspecified {
			return nil, invalidArgf("unknown providerType %q", req.ProviderType)
		}
		tok = pagination.Token{
			RequestorID:    codec.IDBytes(p.UserID),
			PageSize:       req.MaxResults,
			OwnerID:        req.OwnerID,
			ProviderType:   req.ProviderType,
			LabelSelectors: req.LabelSelectors,
		}
	}

	scope, err := auth.ListScope(ctx, auth.ResourceEmbedder)
	if err != nil {
		return nil, err
	}
	owner, err := optionalID(tok.OwnerID, "ownerId")
	if err != nil {
		return nil, err
	}
	if scope != nil {
		if owner != nil && *owner != *scope {
			return &ListEmbeddersResponse{Embedders: []*EmbedderInfo{}}, nil
		}
		owner = scope
	}

	page := pageOf(tok)
	page.Limit++
	embedders, err := s.embedders.List(ctx, repository.EmbedderFilter{
		OwnerID:        owner,
		ProviderType:   models.ProviderTypeFromString(tok.ProviderType),
		LabelSelectors: tok.LabelSelectors,
	}, page)
	if err != nil {
		return nil, translate(err, s.logger, "")
	}

	embedders, hasMore := trimPage(embedders, page.Limit-1)
	infos := make([]*EmbedderInfo, len(embedders))
	for i, e := range embedders {
		infos[i] = embedderInfo(e)
	}

	next, err := nextToken(tok, len(embedders), hasMore)
	if err != nil {
		return nil, err
	}
	return &ListEmbeddersResponse{Embedders: infos, NextPageToken: next}, nil
}
