package auth

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gomem/gomem/pkg/models"
)

// Principal is the authenticated caller of the current request.
type Principal struct {
	UserID   uuid.UUID     `json:"userId"`
	Username string        `json:"username"`
	Roles    []models.Role `json:"roles"`
	KeyID    uuid.UUID     `json:"keyId"`
}

// Can reports whether the principal holds the given permission through any
// of its roles.
func (p *Principal) Can(v Verb, r Resource, s Scope) bool {
	perm := Perm(v, r, s)
	for _, role := range p.Roles {
		if RoleHasPermission(role, perm) {
			return true
		}
	}
	return false
}

type contextKey struct{}

// NewContext returns ctx carrying the principal.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext extracts the authenticated principal, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok
}

// MustPrincipal extracts the principal or fails with UNAUTHENTICATED. Service
// methods call it first; the interceptors guarantee it succeeds on
// authenticated paths.
func MustPrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok || p == nil {
		return nil, status.Error(codes.Unauthenticated, "no authenticated principal")
	}
	return p, nil
}

// Authorize applies the permission gate: _ANY allows unconditionally; _OWN
// allows when the target row's owner is the caller; otherwise the call is
// denied.
func Authorize(ctx context.Context, v Verb, r Resource, ownerID uuid.UUID) error {
	p, err := MustPrincipal(ctx)
	if err != nil {
		return err
	}
	if p.Can(v, r, ScopeAny) {
		return nil
	}
	if p.Can(v, r, ScopeOwn) && p.UserID == ownerID {
		return nil
	}
	return status.Errorf(codes.PermissionDenied, "missing permission %s", Perm(v, r, ScopeOwn))
}

// ListScope resolves the implicit owner filter for a listing: _ANY callers
// list unfiltered (nil), _OWN callers are pinned to their own rows, callers
// with neither permission are denied.
func ListScope(ctx context.Context, r Resource) (*uuid.UUID, error) {
	p, err := MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Can(VerbList, r, ScopeAny) {
		return nil, nil
	}
	if p.Can(VerbList, r, ScopeOwn) {
		owner := p.UserID
		return &owner, nil
	}
	return nil, status.Errorf(codes.PermissionDenied, "missing permission %s", Perm(VerbList, r, ScopeOwn))
}
