package api

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gomem/gomem/pkg/services"
)

// The REST surface renders identifiers as canonical 8-4-4-4-12 hex while the
// services speak 16 raw bytes. The view types below are the hex-facing
// mirrors of the service DTOs; the conversions are mechanical and carry no
// business logic.

func hexID(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return ""
	}
	return id.String()
}

func idBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("malformed id %q", s)
	}
	b := make([]byte, 16)
	copy(b, id[:])
	return b, nil
}

type initSystemView struct {
	AlreadyInitialized bool   `json:"alreadyInitialized"`
	ApiKey             string `json:"apiKey,omitempty"`
	UserID             string `json:"userId,omitempty"`
}

func initSystemViewOf(r *services.InitSystemResponse) initSystemView {
	return initSystemView{
		AlreadyInitialized: r.AlreadyInitialized,
		ApiKey:             r.ApiKey,
		UserID:             hexID(r.UserID),
	}
}

type userView struct {
	UserID      string   `json:"userId"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

func userViewOf(u *services.UserInfo) userView {
	return userView{
		UserID:      hexID(u.UserID),
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Roles:       u.Roles,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type apiKeyView struct {
	ApiKeyID    string            `json:"apiKeyId"`
	UserID      string            `json:"userId"`
	KeyPrefix   string            `json:"keyPrefix"`
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels,omitempty"`
	ExpiresAt   int64             `json:"expiresAt,omitempty"`
	LastUsedAt  int64             `json:"lastUsedAt,omitempty"`
	CreatedByID string            `json:"createdById"`
	UpdatedByID string            `json:"updatedById"`
	CreatedAt   int64             `json:"createdAt"`
	UpdatedAt   int64             `json:"updatedAt"`
}

func apiKeyViewOf(k *services.ApiKeyInfo) apiKeyView {
	return apiKeyView{
		ApiKeyID:    hexID(k.ApiKeyID),
		UserID:      hexID(k.UserID),
		KeyPrefix:   k.KeyPrefix,
		Status:      k.Status,
		Labels:      k.Labels,
		ExpiresAt:   k.ExpiresAt,
		LastUsedAt:  k.LastUsedAt,
		CreatedByID: hexID(k.CreatedByID),
		UpdatedByID: hexID(k.UpdatedByID),
		CreatedAt:   k.CreatedAt,
		UpdatedAt:   k.UpdatedAt,
	}
}

type createApiKeyView struct {
	ApiKey apiKeyView `json:"apiKey"`
	RawKey string     `json:"rawKey"`
}

type apiKeyListView struct {
	ApiKeys       []apiKeyView `json:"apiKeys"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

type embedderView struct {
	EmbedderID          string            `json:"embedderId"`
	OwnerID             string            `json:"ownerId"`
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
	CreatedByID         string            `json:"createdById"`
	UpdatedByID         string            `json:"updatedById"`
	CreatedAt           int64             `json:"createdAt"`
	UpdatedAt           int64             `json:"updatedAt"`
}

func embedderViewOf(e *services.EmbedderInfo) embedderView {
	return embedderView{
		EmbedderID:          hexID(e.EmbedderID),
		OwnerID:             hexID(e.OwnerID),
		DisplayName:         e.DisplayName,
		Description:         e.Description,
		ProviderType:        e.ProviderType,
		EndpointURL:         e.EndpointURL,
		APIPath:             e.APIPath,
		ModelIdentifier:     e.ModelIdentifier,
		Dimensionality:      e.Dimensionality,
		MaxSequenceLength:   e.MaxSequenceLength,
		SupportedModalities: e.SupportedModalities,
		Labels:              e.Labels,
		Version:             e.Version,
		MonitoringEndpoint:  e.MonitoringEndpoint,
		CreatedByID:         hexID(e.CreatedByID),
		UpdatedByID:         hexID(e.UpdatedByID),
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

type embedderListView struct {
	Embedders     []embedderView `json:"embedders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type spaceView struct {
	SpaceID     string            `json:"spaceId"`
	OwnerID     string            `json:"ownerId"`
	Name        string            `json:"name"`
	EmbedderID  string            `json:"embedderId"`
	Labels      map[string]string `json:"labels,omitempty"`
	PublicRead  bool              `json:"publicRead"`
	CreatedByID string            `json:"createdById"`
	UpdatedByID string            `json:"updatedById"`
	CreatedAt   int64             `json:"createdAt"`
	UpdatedAt   int64             `json:"updatedAt"`
}

func spaceViewOf(s *services.SpaceInfo) spaceView {
	return spaceView{
		SpaceID:     hexID(s.SpaceID),
		OwnerID:     hexID(s.OwnerID),
		Name:        s.Name,
		EmbedderID:  hexID(s.EmbedderID),
		Labels:      s.Labels,
		PublicRead:  s.PublicRead,
		CreatedByID: hexID(s.CreatedByID),
		UpdatedByID: hexID(s.UpdatedByID),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type spaceListView struct {
	Spaces        []spaceView `json:"spaces"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

type memoryView struct {
	MemoryID           string            `json:"memoryId"`
	SpaceID            string            `json:"spaceId"`
	OriginalContentRef string            `json:"originalContentRef"`
	ContentType        string            `json:"contentType,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	ProcessingStatus   string            `json:"processingStatus"`
	CreatedByID        string            `json:"createdById"`
	UpdatedByID        string            `json:"updatedById"`
	CreatedAt          int64             `json:"createdAt"`
	UpdatedAt          int64             `json:"updatedAt"`
}

func memoryViewOf(m *services.MemoryInfo) memoryView {
	return memoryView{
		MemoryID:           hexID(m.MemoryID),
		SpaceID:            hexID(m.SpaceID),
		OriginalContentRef: m.OriginalContentRef,
		ContentType:        m.ContentType,
		Metadata:           m.Metadata,
		ProcessingStatus:   m.ProcessingStatus,
		CreatedByID:        hexID(m.CreatedByID),
		UpdatedByID:        hexID(m.UpdatedByID),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

type memoryListView struct {
	Memories      []memoryView `json:"memories"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}
