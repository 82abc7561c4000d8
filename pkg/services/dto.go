package services

import (
	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/models"
)

// DTOs are the request/response shapes both wire surfaces consume.
// Identifiers are 16 raw bytes; timestamps are UTC epoch milliseconds. The
// REST adapter converts to and from canonical hex before and after calling
// a service method.

// LabelUpdate is the strategy oneof applied by every update request:
// ReplaceLabels substitutes the whole map, MergeLabels upserts into it,
// neither leaves labels untouched. Setting both is INVALID_ARGUMENT.
type LabelUpdate struct {
	ReplaceLabels map[string]string `json:"replaceLabels,omitempty"`
	MergeLabels   map[string]string `json:"mergeLabels,omitempty"`
}

// Apply resolves the strategy against the existing labels.
func (u LabelUpdate) Apply(existing models.Labels) (models.Labels, error) {
	if u.ReplaceLabels != nil && u.MergeLabels != nil {
		return nil, invalidArgf("replaceLabels and mergeLabels are mutually exclusive")
	}
	switch {
	case u.ReplaceLabels != nil:
		return models.Labels(u.ReplaceLabels), nil
	case u.MergeLabels != nil:
		merged := make(models.Labels, len(existing)+len(u.MergeLabels))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range u.MergeLabels {
			merged[k] = v
		}
		return merged, nil
	default:
		return existing, nil
	}
}

// ListRequest carries the shared pagination parameters of every listing.
type ListRequest struct {
	MaxResults int    `json:"maxResults,omitempty"`
	PageToken  string `json:"pageToken,omitempty"`
}

// System

type InitSystemRequest struct{}

type InitSystemResponse struct {
	AlreadyInitialized bool   `json:"alreadyInitialized"`
	// ApiKey is the raw root API key, present only on first initialization
	// and never retrievable again.
	ApiKey string `json:"apiKey,omitempty"`
	UserID []byte `json:"userId,omitempty"`
}

// User

type UserInfo struct {
	UserID      []byte   `json:"userId"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

type CreateUserRequest struct {
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

type GetUserRequest struct {
	UserID []byte `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

type ListUsersRequest struct {
	ListRequest
}

type ListUsersResponse struct {
	Users         []*UserInfo `json:"users"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// ApiKey

type ApiKeyInfo struct {
	ApiKeyID    []byte            `json:"apiKeyId"`
	UserID      []byte            `json:"userId"`
	KeyPrefix   string            `json:"keyPrefix"`
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels,omitempty"`
	ExpiresAt   int64             `json:"expiresAt,omitempty"`
	LastUsedAt  int64             `json:"lastUsedAt,omitempty"`
	CreatedByID []byte            `json:"createdById"`
	UpdatedByID []byte            `json:"updatedById"`
	CreatedAt   int64             `json:"createdAt"`
	UpdatedAt   int64             `json:"updatedAt"`
}

type CreateApiKeyRequest struct {
	// OwnerID defaults to the caller when empty; a different owner needs
	// CREATE_APIKEY_ANY.
	OwnerID   []byte            `json:"ownerId,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	ExpiresAt int64             `json:"expiresAt,omitempty"`
}

type CreateApiKeyResponse struct {
	ApiKey *ApiKeyInfo `json:"apiKey"`
	// RawKey is shown exactly once, at creation.
	RawKey string `json:"rawKey"`
}

type UpdateApiKeyRequest struct {
	ApiKeyID []byte `json:"apiKeyId"`
	Status   string `json:"status,omitempty"`
	LabelUpdate
}

type DeleteApiKeyRequest struct {
	ApiKeyID []byte `json:"apiKeyId"`
}

type ListApiKeysRequest struct {
	OwnerID        []byte            `json:"ownerId,omitempty"`
	LabelSelectors map[string]string `json:"labelSelectors,omitempty"`
	ListRequest
}

type ListApiKeysResponse struct {
	ApiKeys       []*ApiKeyInfo `json:"apiKeys"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// Embedder

type EmbedderInfo struct {
	EmbedderID          []byte            `json:"embedderId"`
	OwnerID             []byte            `json:"ownerId"`
	DisplayName         string            `json:"displayName"`
	Description         string            `json:"description,omitempty"`
	ProviderType        string            `json:"providerType"`
	EndpointURL         string            `json:"endpointUrl"`
	APIPath             string            `json:"apiPath,omitempty"`
	ModelIdentifier     string            `json:"modelIdentifier"`
	Dimensionality      int32             `json:"dimensionality"`
	MaxSequenceLength   int32             `json:"maxSequenceLength,omitempty"`
	SupportedModalities []string          `json:"supportedModalities,omitempty"`
	Labels              map[string]string `json:"labels,omitempty"`
	Version             string            `json:"version,omitempty"`
	MonitoringEndpoint  string            `json:"monitoringEndpoint,omitempty"`
	CreatedByID         []byte            `json:"createdById"`
	UpdatedByID         []byte            `json:"updatedById"`
	CreatedAt           int64             `json:"createdAt"`
	UpdatedAt           int64             `json:"updatedAt"`
}

type CreateEmbedderRequest struct {
	OwnerID             []byte            `json:"ownerId,omitempty"`
	DisplayName         string            `json:"displayName"`
	Description         string            `json:"description,omitempty"`
	ProviderType        string            `json:"providerType"`
	EndpointURL         string            `json:"endpointUrl"`
	APIPath             string            `json:"apiPath,omitempty"`
	ModelIdentifier     string            `json:"modelIdentifier"`
	Dimensionality      int32             `json:"dimensionality"`
	MaxSequenceLength   int32             `json:"maxSequenceLength,omitempty"`
	SupportedModalities []string          `json:"supportedModalities,omitempty"`
	// Credentials is write-only: sealed at rest, never present on reads.
	Credentials        string            `json:"credentials,omitempty"`
	Labels             map[string]string `json:"labels,omitempty"`
	Version            string            `json:"version,omitempty"`
	MonitoringEndpoint string            `json:"monitoringEndpoint,omitempty"`
}

type GetEmbedderRequest struct {
	EmbedderID []byte `json:"embedderId"`
}

type UpdateEmbedderRequest struct {
	EmbedderID  []byte `json:"embedderId"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	// ProviderType and Dimensionality are immutable; any non-zero value
	// here is INVALID_ARGUMENT.
	ProviderType       string `json:"providerType,omitempty"`
	Dimensionality     int32  `json:"dimensionality,omitempty"`
	MaxSequenceLength  int32  `json:"maxSequenceLength,omitempty"`
	Credentials        string `json:"credentials,omitempty"`
	Version            string `json:"version,omitempty"`
	MonitoringEndpoint string `json:"monitoringEndpoint,omitempty"`
	LabelUpdate
}

type DeleteEmbedderRequest struct {
	EmbedderID []byte `json:"embedderId"`
}

type ListEmbeddersRequest struct {
	OwnerID        []byte            `json:"ownerId,omitempty"`
	ProviderType   string            `json:"providerType,omitempty"`
	LabelSelectors map[string]string `json:"labelSelectors,omitempty"`
	ListRequest
}

type ListEmbeddersResponse struct {
	Embedders     []*EmbedderInfo `json:"embedders"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

// Space

type SpaceInfo struct {
	SpaceID     []byte            `json:"spaceId"`
	OwnerID     []byte            `json:"ownerId"`
	Name        string            `json:"name"`
	EmbedderID  []byte            `json:"embedderId"`
	Labels      map[string]string `json:"labels,omitempty"`
	PublicRead  bool              `json:"publicRead"`
	CreatedByID []byte            `json:"createdById"`
	UpdatedByID []byte            `json:"updatedById"`
	CreatedAt   int64             `json:"createdAt"`
	UpdatedAt   int64             `json:"updatedAt"`
}

type CreateSpaceRequest struct {
	OwnerID    []byte            `json:"ownerId,omitempty"`
	Name       string            `json:"name"`
	EmbedderID []byte            `json:"embedderId,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	PublicRead bool              `json:"publicRead,omitempty"`
}

type GetSpaceRequest struct {
	SpaceID []byte `json:"spaceId"`
}

type UpdateSpaceRequest struct {
	SpaceID    []byte `json:"spaceId"`
	Name       string `json:"name,omitempty"`
	PublicRead *bool  `json:"publicRead,omitempty"`
	LabelUpdate
}

type DeleteSpaceRequest struct {
	SpaceID []byte `json:"spaceId"`
}

type ListSpacesRequest struct {
	OwnerID        []byte            `json:"ownerId,omitempty"`
	LabelSelectors map[string]string `json:"labelSelectors,omitempty"`
	NameFilter     string            `json:"nameFilter,omitempty"`
	SortBy         string            `json:"sortBy,omitempty"`
	SortOrder      string            `json:"sortOrder,omitempty"`
	ListRequest
}

type ListSpacesResponse struct {
	Spaces        []*SpaceInfo `json:"spaces"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

// Memory

type MemoryInfo struct {
	MemoryID           []byte            `json:"memoryId"`
	SpaceID            []byte            `json:"spaceId"`
	OriginalContentRef string            `json:"originalContentRef"`
	ContentType        string            `json:"contentType,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	ProcessingStatus   string            `json:"processingStatus"`
	CreatedByID        []byte            `json:"createdById"`
	UpdatedByID        []byte            `json:"updatedById"`
	CreatedAt          int64             `json:"createdAt"`
	UpdatedAt          int64             `json:"updatedAt"`
}

type CreateMemoryRequest struct {
	SpaceID            []byte            `json:"spaceId"`
	OriginalContentRef string            `json:"originalContentRef"`
	ContentType        string            `json:"contentType,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

type GetMemoryRequest struct {
	MemoryID []byte `json:"memoryId"`
}

type DeleteMemoryRequest struct {
	MemoryID []byte `json:"memoryId"`
}

type ListMemoriesRequest struct {
	SpaceID []byte `json:"spaceId"`
	ListRequest
}

type ListMemoriesResponse struct {
	Memories      []*MemoryInfo `json:"memories"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// View conversions

func userInfo(u *models.User) *UserInfo {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	info := &UserInfo{
		UserID:      codec.IDBytes(u.ID),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Roles:       roles,
		CreatedAt:   codec.Millis(u.CreatedAt),
		UpdatedAt:   codec.Millis(u.UpdatedAt),
	}
	if u.Email != nil {
		info.Email = *u.Email
	}
	return info
}

func apiKeyInfo(k *models.APIKey) *ApiKeyInfo {
	info := &ApiKeyInfo{
		ApiKeyID:    codec.IDBytes(k.ID),
		UserID:      codec.IDBytes(k.UserID),
		KeyPrefix:   k.KeyPrefix,
		Status:      string(k.Status),
		Labels:      k.Labels,
		CreatedByID: codec.IDBytes(k.CreatedByID),
		UpdatedByID: codec.IDBytes(k.UpdatedByID),
		CreatedAt:   codec.Millis(k.CreatedAt),
		UpdatedAt:   codec.Millis(k.UpdatedAt),
	}
	if k.ExpiresAt != nil {
		info.ExpiresAt = codec.Millis(*k.ExpiresAt)
	}
	if k.LastUsedAt != nil {
		info.LastUsedAt = codec.Millis(*k.LastUsedAt)
	}
	return info
}

func embedderInfo(e *models.Embedder) *EmbedderInfo {
	return &EmbedderInfo{
		EmbedderID:          codec.IDBytes(e.ID),
		OwnerID:             codec.IDBytes(e.OwnerID),
		DisplayName:         e.DisplayName,
		Description:         e.Description,
		ProviderType:        string(e.ProviderType),
		EndpointURL:         e.EndpointURL,
		APIPath:             e.APIPath,
		ModelIdentifier:     e.ModelIdentifier,
		Dimensionality:      e.Dimensionality,
		MaxSequenceLength:   e.MaxSequenceLength,
		SupportedModalities: e.SupportedModalities,
		Labels:              e.Labels,
		Version:             e.Version,
		MonitoringEndpoint:  e.MonitoringEndpoint,
		CreatedByID:         codec.IDBytes(e.CreatedByID),
		UpdatedByID:         codec.IDBytes(e.UpdatedByID),
		CreatedAt:           codec.Millis(e.CreatedAt),
		UpdatedAt:           codec.Millis(e.UpdatedAt),
	}
}

func spaceInfo(s *models.Space) *SpaceInfo {
	return &SpaceInfo{
		SpaceID:     codec.IDBytes(s.ID),
		OwnerID:     codec.IDBytes(s.OwnerID),
		Name:        s.Name,
		EmbedderID:  codec.IDBytes(s.EmbedderID),
		Labels:      s.Labels,
		PublicRead:  s.PublicRead,
		CreatedByID: codec.IDBytes(s.CreatedByID),
		UpdatedByID: codec.IDBytes(s.UpdatedByID),
		CreatedAt:   codec.Millis(s.CreatedAt),
		UpdatedAt:   codec.Millis(s.UpdatedAt),
	}
}

func memoryInfo(m *models.Memory) *MemoryInfo {
	return &MemoryInfo{
		MemoryID:           codec.IDBytes(m.ID),
		SpaceID:            codec.IDBytes(m.SpaceID),
		OriginalContentRef: m.OriginalContentRef,
		ContentType:        m.ContentType,
		Metadata:           m.Metadata,
		ProcessingStatus:   string(m.ProcessingStatus),
		CreatedByID:        codec.IDBytes(m.CreatedByID),
		UpdatedByID:        codec.IDBytes(m.UpdatedByID),
		CreatedAt:          codec.Millis(m.CreatedAt),
		UpdatedAt:          codec.Millis(m.UpdatedAt),
	}
}
