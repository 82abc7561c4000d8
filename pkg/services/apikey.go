package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
	"github.com/gomem/gomem/pkg/pagination"
)

// APIKeyService manages authentication credentials. Mutable fields are
// status and labels; the raw secret exists only in the create response.
type APIKeyService struct {
	keys   repository.APIKeyRepository
	logger observability.Logger
	tracer observability.StartSpanFunc
	// invalidate drops a key's cached principal after a mutation; wired to
	// the authenticator at startup.
	invalidate func(ctx context.Context, hash string)
	newKey     func() (auth.KeyMaterial, error)
}

// NewAPIKeyService creates the API key service.
func NewAPIKeyService(keys repository.APIKeyRepository, logger observability.Logger, tracer observability.StartSpanFunc) *APIKeyService {
	return &APIKeyService{
		keys:       keys,
		logger:     logger,
		tracer:     tracer,
		invalidate: func(context.Context, string) {},
		newKey:     auth.NewKey,
	}
}

// WithInvalidation registers the cache-invalidation hook.
func (s *APIKeyService) WithInvalidation(fn func(ctx context.Context, hash string)) *APIKeyService {
	s.invalidate = fn
	return s
}

// CreateApiKey mints a new key. The owner defaults to the caller; minting
// for someone else needs CREATE_APIKEY_ANY. The raw secret is returned here
// and never again.
func (s *APIKeyService) CreateApiKey(ctx context.Context, req *CreateApiKeyRequest) (*CreateApiKeyResponse, error) {
	ctx, span := s.tracer(ctx, "APIKeyService.CreateApiKey")
	defer span.End()

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	owner := p.UserID
	if requested, err := optionalID(req.OwnerID, "ownerId"); err != nil {
		return nil, err
	} else if requested != nil {
		owner = *requested
	}
	if err := auth.Authorize(ctx, auth.VerbCreate, auth.ResourceAPIKey, owner); err != nil {
		return nil, err
	}

	km, err := s.newKey()
	if err != nil {
		return nil, translate(err, s.logger, "")
	}

	now := nowUTC()
	key := &models.APIKey{
		ID:          uuid.New(),
		UserID:      owner,
		KeyPrefix:   km.Prefix,
		KeyHash:     km.Hash,
		Status:      models.KeyStatusActive,
		Labels:      models.Labels(req.Labels),
		CreatedByID: p.UserID,
		UpdatedByID: p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.ExpiresAt > 0 {
		expires := codec.TimeFromMillis(req.ExpiresAt)
		if !expires.After(now) {
			return nil, invalidArgf("expiresAt must be in the future")
		}
		key.ExpiresAt = &expires
	}

	if err := s.keys.Create(ctx, key); err != nil {
		return nil, translate(err, s.logger, "owner not found")
	}
	return &CreateApiKeyResponse{ApiKey: apiKeyInfo(key), RawKey: km.Raw}, nil
}

// UpdateApiKey changes status and labels; everything else is immutable.
func (s *APIKeyService) UpdateApiKey(ctx context.Context, req *UpdateApiKeyRequest) (*ApiKeyInfo, error) {
	ctx, span := s.tracer(ctx, "APIKeyService.UpdateApiKey")
	defer span.End()

	id, err := parseID(req.ApiKeyID, "apiKeyId")
	if err != nil {
		return nil, err
	}

	key, err := s.keys.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, s.logger, "api key not found")
	}
	if err := auth.Authorize(ctx, auth.VerbUpdate, auth.ResourceAPIKey, key.UserID); err != nil {
		return nil, err
	}

	if req.Status != "" {
		st := models.KeyStatusFromString(req.Status)
		if st == models.KeyStatusUnspecified {
			return nil, invalidArgf("unknown status %q", req.Status)
		}
		key.Status = st
	}
	labels, err := req.LabelUpdate.Apply(key.Labels)
	if err != nil {
		return nil, err
	}
	key.Labels = labels

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	key.UpdatedByID = p.UserID
	key.UpdatedAt = nowUTC()

	if err := s.keys.Update(ctx, key); err != nil {
		return nil, translate(err, s.logger, "api key not found")
	}
	s.invalidate(ctx, key.KeyHash)
	return apiKeyInfo(key), nil
}

// DeleteApiKey revokes a credential immediately.
func (s *APIKeyService) DeleteApiKey(ctx context.Context, req *DeleteApiKeyRequest) error {
	ctx, span := s.tracer(ctx, "APIKeyService.DeleteApiKey")
	defer span.End()

	id, err := parseID(req.ApiKeyID, "apiKeyId")
	if err != nil {
		return err
	}

	key, err := s.keys.GetByID(ctx, id)
	if err != nil {
		return translate(err, s.logger, "api key not found")
	}
	if err := auth.Authorize(ctx, auth.VerbDelete, auth.ResourceAPIKey, key.UserID); err != nil {
		return err
	}

	if err := s.keys.Delete(ctx, id); err != nil {
		return translate(err, s.logger, "api key not found")
	}
	s.invalidate(ctx, key.KeyHash)
	return nil
}

// ListApiKeys pages through keys, scoped to the caller unless they hold
// LIST_APIKEY_ANY.
func (s *APIKeyService) ListApiKeys(ctx context.Context, req *ListApiKeysRequest) (*ListApiKeysResponse, error) {
	ctx, span := s.tracer(ctx, "APIKeyService.ListApiKeys")
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
			RequestorID:    codec.IDBytes(p.UserID),
			PageSize:       req.MaxResults,
			OwnerID:        req.OwnerID,
			LabelSelectors: req.LabelSelectors,
		}
	}

	scope, err := auth.ListScope(ctx, auth.ResourceAPIKey)
	if err != nil {
		return nil, err
	}
	owner, err := optionalID(tok.OwnerID, "ownerId")
	if err != nil {
		return nil, err
	}
	if scope != nil {
		if owner != nil && *owner != *scope {
			return &ListApiKeysResponse{ApiKeys: []*ApiKeyInfo{}}, nil
		}
		owner = scope
	}

	page := pageOf(tok)
	page.Limit++
	keys, err := s.keys.List(ctx, repository.KeyFilter{
		OwnerID:        owner,
		LabelSelectors: tok.LabelSelectors,
	}, page)
	if err != nil {
		return nil, translate(err, s.logger, "")
	}

	keys, hasMore := trimPage(keys, page.Limit-1)
	infos := make([]*ApiKeyInfo, len(keys))
	for i, k := range keys {
		infos[i] = apiKeyInfo(k)
	}

	next, err := nextToken(tok, len(keys), hasMore)
	if err != nil {
		return nil, err
	}
	return &ListApiKeysResponse{ApiKeys: infos, NextPageToken: next}, nil
}
