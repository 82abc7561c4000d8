package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/pkg/cache"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
)

// HeaderName is the metadata/header key carrying the raw API key on both
// wire surfaces.
const HeaderName = "x-api-key"

const (
	principalCacheTTL = 5 * time.Minute
	touchTimeout      = 5 * time.Second
)

// Authenticator resolves raw API keys into principals. Lookups go through
// the cache first, then the api_key row by hash.
type Authenticator struct {
	keys   repository.APIKeyRepository
	users  repository.UserRepository
	cache  cache.Cache
	logger observability.Logger
	now    func() time.Time
	// touchAsync runs the best-effort lastUsedAt update; tests replace it
	// to run inline.
	touchAsync func(func())
}

// cachedPrincipal is the cache payload for a resolved key. The key's expiry
// rides along so a hit still enforces it instead of outliving the key.
type cachedPrincipal struct {
	Principal Principal  `json:"principal"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// NewAuthenticator creates an Authenticator over the given repositories.
func NewAuthenticator(keys repository.APIKeyRepository, users repository.UserRepository, c cache.Cache, logger observability.Logger) *Authenticator {
	if c == nil {
		c = cache.NewNoopCache()
	}
	return &Authenticator{
		keys:       keys,
		users:      users,
		cache:      c,
		logger:     logger,
		now:        time.Now,
		touchAsync: func(f func()) { go f() },
	}
}

// Authenticate validates a raw API key and returns the principal it
// authenticates. Every failure maps to UNAUTHENTICATED; internal storage
// errors are logged with their cause and surfaced sanitized.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (*Principal, error) {
	if rawKey == "" {
		return nil, status.Error(codes.Unauthenticated, "missing api key")
	}

	hash := HashKey(rawKey)
	cacheKey := fmt.Sprintf("auth:key:%s", hash)

	var cached cachedPrincipal
	if err := a.cache.Get(ctx, cacheKey, &cached); err == nil {
		if cached.ExpiresAt != nil && cached.ExpiresAt.Before(a.now()) {
			a.Invalidate(ctx, hash)
			return nil, status.Error(codes.Unauthenticated, "api key has expired")
		}
		a.touchLastUsed(cached.Principal.KeyID)
		p := cached.Principal
		return &p, nil
	}

	key, err := a.keys.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		a.logger.Error("api key lookup failed", map[string]interface{}{"error": err.Error()})
		return nil, status.Error(codes.Unauthenticated, "authentication unavailable")
	}

	if key.Status != models.KeyStatusActive {
		return nil, status.Error(codes.Unauthenticated, "api key is inactive")
	}
	if key.Expired(a.now()) {
		return nil, status.Error(codes.Unauthenticated, "api key has expired")
	}

	user, err := a.users.GetByID(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		a.logger.Error("api key owner lookup failed", map[string]interface{}{"error": err.Error()})
		return nil, status.Error(codes.Unauthenticated, "authentication unavailable")
	}

	p := &Principal{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
		KeyID:    key.ID,
	}

	ttl := principalCacheTTL
	if key.ExpiresAt != nil {
		if remaining := key.ExpiresAt.Sub(a.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if err := a.cache.Set(ctx, cacheKey, cachedPrincipal{Principal: *p, ExpiresAt: key.ExpiresAt}, ttl); err != nil {
		a.logger.Warn("failed to cache principal", map[string]interface{}{"error": err.Error()})
	}

	a.touchLastUsed(key.ID)
	return p, nil
}

// Invalidate drops a key's cached principal. Called when a key is updated
// or revoked so the change takes effect before the TTL expires.
func (a *Authenticator) Invalidate(ctx context.Context, hash string) {
	if err := a.cache.Delete(ctx, fmt.Sprintf("auth:key:%s", hash)); err != nil {
		a.logger.Warn("failed to invalidate cached principal", map[string]interface{}{"error": err.Error()})
	}
}

// touchLastUsed updates last_used_at off the request path. Failures are
// logged and swallowed: the authenticated call must not fail because of a
// bookkeeping write.
func (a *Authenticator) touchLastUsed(keyID uuid.UUID) {
	when := a.now()
	a.touchAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := a.keys.TouchLastUsed(ctx, keyID, when); err != nil {
			a.logger.Warn("failed to update api key last_used_at", map[string]interface{}{
				"key_id": keyID.String(),
				"error":  err.Error(),
			})
		}
	})
}
