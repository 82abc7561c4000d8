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

// UserService manages user principals. Users own themselves: GET_USER_OWN
// lets a caller read their own record, everything further needs _ANY.
type UserService struct {
	users  repository.UserRepository
	logger observability.Logger
	tracer observability.StartSpanFunc
}

// NewUserService creates the user service.
func NewUserService(users repository.UserRepository, logger observability.Logger, tracer observability.StartSpanFunc) *UserService {
	return &UserService{users: users, logger: logger, tracer: tracer}
}

// CreateUser inserts a new principal. The new user is its own owner, so
// this is effectively gated on CREATE_USER_ANY.
func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*UserInfo, error) {
	ctx, span := s.tracer(ctx, "UserService.CreateUser")
	defer span.End()

	if req.Username == "" {
		return nil, invalidArgf("username is required")
	}
	if req.Username == rootUsername {
		return nil, invalidArgf("username %q is reserved", rootUsername)
	}

	roles := []models.Role{models.RoleUser}
	if len(req.Roles) > 0 {
		roles = roles[:0]
		for _, r := range req.Roles {
			role := models.RoleFromString(r)
			if role == models.RoleUnspecified {
				return nil, invalidArgf("unknown role %q", r)
			}
			roles = append(roles, role)
		}
	}

	newID := uuid.New()
	if err := auth.Authorize(ctx, auth.VerbCreate, auth.ResourceUser, newID); err != nil {
		return nil, err
	}

	now := nowUTC()
	user := &models.User{
		ID:          newID,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Roles:       roles,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Email != "" {
		email := req.Email
		user.Email = &email
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, translate(err, s.logger, "user not found")
	}
	return userInfo(user), nil
}

// GetUser looks a user up by id or, when no id is supplied, by email.
func (s *UserService) GetUser(ctx context.Context, req *GetUserRequest) (*UserInfo, error) {
	ctx, span := s.tracer(ctx, "UserService.GetUser")
	defer span.End()

	var (
		user *models.User
		err  error
	)
	switch {
	case len(req.UserID) > 0:
		id, parseErr := parseID(req.UserID, "userId")
		if parseErr != nil {
			return nil, parseErr
		}
		user, err = s.users.GetByID(ctx, id)
	case req.Email != "":
		user, err = s.users.GetByEmail(ctx, req.Email)
	default:
		return nil, invalidArgf("userId or email is required")
	}
	if err != nil {
		return nil, translate(err, s.logger, "user not found")
	}

	if err := auth.Authorize(ctx, auth.VerbGet, auth.ResourceUser, user.ID); err != nil {
		return nil, err
	}
	return userInfo(user), nil
}

// ListUsers pages through users. _OWN callers see exactly themselves.
func (s *UserService) ListUsers(ctx context.Context, req *ListUsersRequest) (*ListUsersResponse, error) {
	ctx, span := s.tracer(ctx, "UserService.ListUsers")
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
			RequestorID: codec.IDBytes(p.UserID),
			PageSize:    req.MaxResults,
		}
	}

	ownerFilter, err := auth.ListScope(ctx, auth.ResourceUser)
	if err != nil {
		return nil, err
	}

	page := pageOf(tok)
	page.Limit++ // probe row for more-pages detection
	users, err := s.users.List(ctx, repository.UserFilter{OwnerID: ownerFilter}, page)
	if err != nil {
		return nil, translate(err, s.logger, "")
	}

	users, hasMore := trimPage(users, page.Limit-1)
	infos := make([]*UserInfo, len(users))
	for i, u := range users {
		infos[i] = userInfo(u)
	}

	next, err := nextToken(tok, len(users), hasMore)
	if err != nil {
		return nil, err
	}
	return &ListUsersResponse{Users: infos, NextPageToken: next}, nil
}
