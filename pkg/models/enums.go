package models

// Enum conversions in this file are total: unknown input maps to the
// UNSPECIFIED member of the target type, never silently to a valid member.

// Role is a fixed bundle of permissions assigned to a user.
type Role string

const (
	RoleUnspecified Role = "ROLE_UNSPECIFIED"
	RoleRoot        Role = "ROOT"
	RoleUser        Role = "USER"
)

// RoleFromString converts a wire or storage string to a Role.
func RoleFromString(s string) Role {
	switch s {
	case string(RoleRoot):
		return RoleRoot
	case string(RoleUser):
		return RoleUser
	default:
		return RoleUnspecified
	}
}

// KeyStatus is the lifecycle state of an API key.
type KeyStatus string

const (
	KeyStatusUnspecified KeyStatus = "KEY_STATUS_UNSPECIFIED"
	KeyStatusActive      KeyStatus = "ACTIVE"
	KeyStatusInactive    KeyStatus = "INACTIVE"
)

// KeyStatusFromString converts a wire or storage string to a KeyStatus.
func KeyStatusFromString(s string) KeyStatus {
	switch s {
	case string(KeyStatusActive):
		return KeyStatusActive
	case string(KeyStatusInactive):
		return KeyStatusInactive
	default:
		return KeyStatusUnspecified
	}
}

// ProviderType identifies the protocol family of a remote embedding endpoint.
type ProviderType string

const (
	ProviderUnspecified ProviderType = "PROVIDER_TYPE_UNSPECIFIED"
	ProviderOpenAI      ProviderType = "OPENAI"
	ProviderVLLM        ProviderType = "VLLM"
	ProviderTEI         ProviderType = "TEI"
)

// ProviderTypeFromString converts a wire or storage string to a ProviderType.
func ProviderTypeFromString(s string) ProviderType {
	switch s {
	case string(ProviderOpenAI):
		return ProviderOpenAI
	case string(ProviderVLLM):
		return ProviderVLLM
	case string(ProviderTEI):
		return ProviderTEI
	default:
		return ProviderUnspecified
	}
}

// Modality is a content kind an embedder can process.
type Modality string

const (
	ModalityUnspecified Modality = "MODALITY_UNSPECIFIED"
	ModalityText        Modality = "TEXT"
	ModalityImage       Modality = "IMAGE"
	ModalityAudio       Modality = "AUDIO"
	ModalityVideo       Modality = "VIDEO"
)

// ModalityFromString converts a wire or storage string to a Modality.
func ModalityFromString(s string) Modality {
	switch s {
	case string(ModalityText):
		return ModalityText
	case string(ModalityImage):
		return ModalityImage
	case string(ModalityAudio):
		return ModalityAudio
	case string(ModalityVideo):
		return ModalityVideo
	default:
		return ModalityUnspecified
	}
}

// ProcessingStatus tracks a memory through its embedding pipeline.
//
// Transitions: PENDING -> PROCESSING -> COMPLETED | FAILED.
type ProcessingStatus string

const (
	ProcessingUnspecified ProcessingStatus = "PROCESSING_STATUS_UNSPECIFIED"
	ProcessingPending     ProcessingStatus = "PENDING"
	ProcessingProcessing  ProcessingStatus = "PROCESSING"
	ProcessingCompleted   ProcessingStatus = "COMPLETED"
	ProcessingFailed      ProcessingStatus = "FAILED"
)

// ProcessingStatusFromString converts a wire or storage string to a ProcessingStatus.
func ProcessingStatusFromString(s string) ProcessingStatus {
	switch s {
	case string(ProcessingPending):
		return ProcessingPending
	case string(ProcessingProcessing):
		return ProcessingProcessing
	case string(ProcessingCompleted):
		return ProcessingCompleted
	case string(ProcessingFailed):
		return ProcessingFailed
	default:
		return ProcessingUnspecified
	}
}

// SortOrder is the direction of a sorted listing.
type SortOrder string

const (
	SortOrderUnspecified SortOrder = "SORT_ORDER_UNSPECIFIED"
	SortAscending        SortOrder = "ASCENDING"
	SortDescending       SortOrder = "DESCENDING"
)

// SortOrderFromString converts a wire string to a SortOrder.
func SortOrderFromString(s string) SortOrder {
	switch s {
	case string(SortAscending):
		return SortAscending
	case string(SortDescending):
		return SortDescending
	default:
		return SortOrderUnspecified
	}
}
