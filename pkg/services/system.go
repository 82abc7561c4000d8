package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
)

// rootUsername is the reserved username created by system init.
const rootUsername = "root"

// SystemService performs the idempotent first-run initialization. It is the
// only service callable without authentication.
type SystemService struct {
	db     *sqlx.DB
	users  repository.UserRepository
	keys   repository.APIKeyRepository
	logger observability.Logger
	tracer observability.StartSpanFunc
}

// NewSystemService creates the system service.
func NewSystemService(db *sqlx.DB, users repository.UserRepository, keys repository.APIKeyRepository, logger observability.Logger, tracer observability.StartSpanFunc) *SystemService {
	return &SystemService{db: db, users: users, keys: keys, logger: logger, tracer: tracer}
}

// InitSystem creates the root user and its bootstrap API key if the system
// has never been initialized. The raw key is returned exactly once, on the
// call that performs the initialization; every later call reports
// alreadyInitialized with no changes. The creation runs in one transaction
// so a partial failure leaves the system uninitialized.
func (s *SystemService) InitSystem(ctx context.Context, _ *InitSystemRequest) (*InitSystemResponse, error) {
	ctx, span := s.tracer(ctx, "SystemService.InitSystem")
	defer span.End()

	existing, err := s.users.GetByUsername(ctx, rootUsername)
	if err == nil {
		return &InitSystemResponse{
			AlreadyInitialized: true,
			UserID:             codec.IDBytes(existing.ID),
		}, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, translate(err, s.logger, "root user not found")
	}

	km, err := auth.NewKey()
	if err != nil {
		return nil, translate(err, s.logger, "")
	}

	now := nowUTC()
	user := &models.User{
		ID:          uuid.New(),
		Username:    rootUsername,
		DisplayName: "Root User",
		Roles:       []models.Role{models.RoleRoot},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	key := &models.APIKey{
		ID:          uuid.New(),
		UserID:      user.ID,
		KeyPrefix:   km.Prefix,
		KeyHash:     km.Hash,
		Status:      models.KeyStatusActive,
		CreatedByID: user.ID,
		UpdatedByID: user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = database.Transaction(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		return s.keys.WithTx(tx).Create(ctx, key)
	})
	if err != nil {
		// A concurrent init may have won the race on the username; report
		// initialized rather than failing the losing call.
		if database.IsUniqueViolation(err) {
			if existing, lookupErr := s.users.GetByUsername(ctx, rootUsername); lookupErr == nil {
				return &InitSystemResponse{
					AlreadyInitialized: true,
					UserID:             codec.IDBytes(existing.ID),
				}, nil
			}
		}
		return nil, translate(err, s.logger, "")
	}

	s.logger.Info("system initialized", map[string]interface{}{
		"root_user_id": user.ID.String(),
		"key_prefix":   km.Prefix,
	})

	return &InitSystemResponse{
		AlreadyInitialized: false,
		ApiKey:             km.Raw,
		UserID:             codec.IDBytes(user.ID),
	}, nil
}
