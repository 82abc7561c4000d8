// Package pagination implements the opaque continuation tokens returned by
// every list endpoint. A token carries the original filter, sort, offset,
// and the requesting user, so a follow-up call paginates stably even if the
// client changes its filters, and a token issued to one user cannot be
// replayed by another.
package pagination

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Token is the decoded form of a pagination token. Identifier fields hold
// the raw 16-byte form used on the wire.
type Token struct {
	RequestorID    []byte            `json:"requestorId,omitempty"`
	Start          int               `json:"start,omitempty"`
	PageSize       int               `json:"pageSize,omitempty"`
	SortBy         string            `json:"sortBy,omitempty"`
	SortOrder      string            `json:"sortOrder,omitempty"`
	OwnerID        []byte            `json:"ownerId,omitempty"`
	ProviderType   string            `json:"providerType,omitempty"`
	LabelSelectors map[string]string `json:"labelSelectors,omitempty"`
	NameFilter     string            `json:"nameFilter,omitempty"`
	SpaceID        []byte            `json:"spaceId,omitempty"`
}

// Requestor parses the token's requestor id. A requestor field that is not
// exactly 16 bytes is INVALID_ARGUMENT.
func (t Token) Requestor() (uuid.UUID, error) {
	id, err := uuid.FromBytes(t.RequestorID)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "Invalid requestor ID")
	}
	return id, nil
}

// Encode serializes the token into its opaque base64 wire form.
func Encode(t Token) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", status.Error(codes.Internal, "failed to encode pagination token")
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode parses an opaque token string. An empty string decodes to the zero
// token (first page). Invalid base64 and invalid token payloads are
// distinguished so clients can tell a truncated token from a forged one.
func Decode(s string) (Token, error) {
	if s == "" {
		return Token{}, nil
	}
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, status.Error(codes.InvalidArgument, "token format")
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return Token{}, status.Error(codes.InvalidArgument, "token content")
	}
	return t, nil
}

// DecodeFor decodes a token presented by caller and enforces the requestor
// binding. An empty string yields (zero token, false, nil); the boolean
// reports whether a token was actually presented.
func DecodeFor(s string, caller uuid.UUID) (Token, bool, error) {
	if s == "" {
		return Token{}, false, nil
	}
	t, err := Decode(s)
	if err != nil {
		return Token{}, false, err
	}
	requestor, err := t.Requestor()
	if err != nil {
		return Token{}, false, err
	}
	if requestor != caller {
		return Token{}, false, status.Error(codes.PermissionDenied, "Invalid pagination token")
	}
	return t, true, nil
}
