// Package models holds the persistent aggregates of the memory service and
// the enum and label types shared across layers.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User is a human or service principal.
type User struct {
	ID          uuid.UUID `db:"user_id" json:"userId"`
	Username    string    `db:"username" json:"username"`
	Email       *string   `db:"email" json:"email,omitempty"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Roles       []Role    `db:"-" json:"roles"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// APIKey is an authentication credential owned by a user. The raw secret is
// never stored; only its hash and a short display prefix persist.
type APIKey struct {
	ID          uuid.UUID  `db:"api_key_id" json:"apiKeyId"`
	UserID      uuid.UUID  `db:"user_id" json:"userId"`
	KeyPrefix   string     `db:"key_prefix" json:"keyPrefix"`
	KeyHash     string     `db:"key_hash" json:"-"`
	Status      KeyStatus  `db:"status" json:"status"`
	Labels      Labels     `db:"labels" json:"labels,omitempty"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
	CreatedByID uuid.UUID  `db:"created_by_id" json:"createdById"`
	UpdatedByID uuid.UUID  `db:"updated_by_id" json:"updatedById"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// Expired reports whether the key has an expiry in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// Embedder is a configured remote embedding endpoint. The connection triple
// (EndpointURL, APIPath, ModelIdentifier) is unique across the system.
type Embedder struct {
	ID                  uuid.UUID      `db:"embedder_id" json:"embedderId"`
	OwnerID             uuid.UUID      `db:"owner_id" json:"ownerId"`
	DisplayName         string         `db:"display_name" json:"displayName"`
	Description         string         `db:"description" json:"description,omitempty"`
	ProviderType        ProviderType   `db:"provider_type" json:"providerType"`
	EndpointURL         string         `db:"endpoint_url" json:"endpointUrl"`
	APIPath             string         `db:"api_path" json:"apiPath,omitempty"`
	ModelIdentifier     string         `db:"model_identifier" json:"modelIdentifier"`
	Dimensionality      int32          `db:"dimensionality" json:"dimensionality"`
	MaxSequenceLength   int32          `db:"max_sequence_length" json:"maxSequenceLength,omitempty"`
	SupportedModalities pq.StringArray `db:"supported_modalities" json:"supportedModalities,omitempty"`
	// Credentials holds the sealed endpoint credential. Never serialized.
	Credentials        []byte    `db:"credentials" json:"-"`
	Labels             Labels    `db:"labels" json:"labels,omitempty"`
	Version            string    `db:"version" json:"version,omitempty"`
	MonitoringEndpoint string    `db:"monitoring_endpoint" json:"monitoringEndpoint,omitempty"`
	CreatedByID        uuid.UUID `db:"created_by_id" json:"createdById"`
	UpdatedByID        uuid.UUID `db:"updated_by_id" json:"updatedById"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

// Modalities returns the supported modalities as enum values.
func (e *Embedder) Modalities() []Modality {
	out := make([]Modality, 0, len(e.SupportedModalities))
	for _, s := range e.SupportedModalities {
		out = append(out, ModalityFromString(s))
	}
	return out
}

// Space is a named, owner-scoped container of memories bound to one
// embedder. (OwnerID, Name) is unique.
type Space struct {
	ID          uuid.UUID `db:"space_id" json:"spaceId"`
	OwnerID     uuid.UUID `db:"owner_id" json:"ownerId"`
	Name        string    `db:"name" json:"name"`
	EmbedderID  uuid.UUID `db:"embedder_id" json:"embedderId"`
	Labels      Labels    `db:"labels" json:"labels,omitempty"`
	PublicRead  bool      `db:"public_read" json:"publicRead"`
	CreatedByID uuid.UUID `db:"created_by_id" json:"createdById"`
	UpdatedByID uuid.UUID `db:"updated_by_id" json:"updatedById"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Memory is a stored content item plus its computed embedding. The vector
// lives in the pgvector column and never appears in the wire shape.
type Memory struct {
	ID                 uuid.UUID        `db:"memory_id" json:"memoryId"`
	SpaceID            uuid.UUID        `db:"space_id" json:"spaceId"`
	OriginalContentRef string           `db:"original_content_ref" json:"originalContentRef"`
	ContentType        string           `db:"content_type" json:"contentType"`
	Metadata           Labels           `db:"metadata" json:"metadata,omitempty"`
	ProcessingStatus   ProcessingStatus `db:"processing_status" json:"processingStatus"`
	CreatedByID        uuid.UUID        `db:"created_by_id" json:"createdById"`
	UpdatedByID        uuid.UUID        `db:"updated_by_id" json:"updatedById"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}
