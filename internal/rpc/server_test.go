package rpc_test

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/gomem/gomem/internal/config"
	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/internal/rpc"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/cache"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
	"github.com/gomem/gomem/pkg/services"
)

// stubUserRepo and stubKeyRepo back the system bootstrap and authentication
// paths; the remaining services are registered but not exercised here.
type stubUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: map[uuid.UUID]*models.User{}}
}

func (r *stubUserRepo) WithTx(*sqlx.Tx) repository.UserRepository { return r }

func (r *stubUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return database.ErrDuplicateKey
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (r *stubUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email != nil && *u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *stubUserRepo) List(_ context.Context, filter repository.UserFilter, _ repository.Page) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		if filter.OwnerID != nil && u.ID != *filter.OwnerID {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

type stubKeyRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*models.APIKey
}

func newStubKeyRepo() *stubKeyRepo {
	return &stubKeyRepo{keys: map[uuid.UUID]*models.APIKey{}}
}

func (r *stubKeyRepo) WithTx(*sqlx.Tx) repository.APIKeyRepository { return r }

func (r *stubKeyRepo) Create(_ context.Context, key *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *stubKeyRepo) GetByID(_ context.Context, id uuid.UUID) (*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		cp := *k
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (r *stubKeyRepo) GetByHash(_ context.Context, hash string) (*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *stubKeyRepo) Update(_ context.Context, key *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key.ID]; !ok {
		return database.ErrNotFound
	}
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *stubKeyRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.keys, id)
	return nil
}

func (r *stubKeyRepo) List(_ context.Context, _ repository.KeyFilter, _ repository.Page) ([]*models.APIKey, error) {
	return nil, nil
}

func (r *stubKeyRepo) TouchLastUsed(_ context.Context, id uuid.UUID, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		k.LastUsedAt = &when
	}
	return nil
}

func newTxDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 4; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock")
}

// recordingMetrics captures counter names so tests can assert the server
// instruments its calls.
type recordingMetrics struct {
	observability.NoopMetricsClient

	mu       sync.Mutex
	counters map[string]float64
}

func (m *recordingMetrics) IncrementCounter(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

func (m *recordingMetrics) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func startServer(t *testing.T) (*grpc.ClientConn, *recordingMetrics) {
	t.Helper()

	logger := observability.NewNoopLogger()
	tracer := observability.NoopStartSpan
	users := newStubUserRepo()
	keys := newStubKeyRepo()
	db := newTxDB(t)

	c, err := cache.New(cache.Config{Backend: "memory", TTL: time.Minute})
	require.NoError(t, err)
	authn := auth.NewAuthenticator(keys, users, c, logger)

	svcs := rpc.Services{
		System:    services.NewSystemService(db, users, keys, logger, tracer),
		Users:     services.NewUserService(users, logger, tracer),
		Keys:      services.NewAPIKeyService(keys, logger, tracer),
		Embedders: services.NewEmbedderService(nil, nil, logger, tracer),
		Spaces:    services.NewSpaceService(db, nil, nil, nil, nil, nil, logger, tracer),
		Memories:  services.NewMemoryService(nil, nil, nil, nil, logger, tracer),
	}

	metrics := &recordingMetrics{counters: map[string]float64{}}
	srv, err := rpc.NewServer(config.RPCConfig{ListenAddress: "127.0.0.1:0"}, authn, svcs, logger, metrics)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, metrics
}

func TestInitSystem_NoCredentialsRequired(t *testing.T) {
	conn, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resp services.InitSystemResponse
	err := conn.Invoke(ctx, rpc.InitSystemMethod, &services.InitSystemRequest{}, &resp)
	require.NoError(t, err)
	assert.False(t, resp.AlreadyInitialized)
	assert.True(t, strings.HasPrefix(resp.ApiKey, "gm_"))
	assert.Len(t, resp.UserID, 16)

	var again services.InitSystemResponse
	require.NoError(t, conn.Invoke(ctx, rpc.InitSystemMethod, &services.InitSystemRequest{}, &again))
	assert.True(t, again.AlreadyInitialized)
	assert.Empty(t, again.ApiKey)
}

func TestAuthenticatedCall(t *testing.T) {
	conn, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var boot services.InitSystemResponse
	require.NoError(t, conn.Invoke(ctx, rpc.InitSystemMethod, &services.InitSystemRequest{}, &boot))

	authed := metadata.AppendToOutgoingContext(ctx, auth.HeaderName, boot.ApiKey)
	var resp services.ListUsersResponse
	require.NoError(t, conn.Invoke(authed, "/gomem.v1.UserService/ListUsers", &services.ListUsersRequest{}, &resp))
	require.Len(t, resp.Users, 1)
	assert.Equal(t, "root", resp.Users[0].Username)
	assert.Contains(t, resp.Users[0].Roles, "ROOT")
}

func TestMissingKeyRejected(t *testing.T) {
	conn, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resp services.ListUsersResponse
	err := conn.Invoke(ctx, "/gomem.v1.UserService/ListUsers", &services.ListUsersRequest{}, &resp)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestBogusKeyRejected(t *testing.T) {
	conn, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bogus := metadata.AppendToOutgoingContext(ctx, auth.HeaderName, "gm_not-a-real-key")
	var resp services.ListUsersResponse
	err := conn.Invoke(bogus, "/gomem.v1.UserService/ListUsers", &services.ListUsersRequest{}, &resp)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestCallMetricsRecorded(t *testing.T) {
	conn, metrics := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var boot services.InitSystemResponse
	require.NoError(t, conn.Invoke(ctx, rpc.InitSystemMethod, &services.InitSystemRequest{}, &boot))

	// Unauthenticated call counts as a failed request.
	var resp services.ListUsersResponse
	err := conn.Invoke(ctx, "/gomem.v1.UserService/ListUsers", &services.ListUsersRequest{}, &resp)
	require.Error(t, err)

	assert.GreaterOrEqual(t, metrics.counter("rpc_requests"), float64(2))
	assert.GreaterOrEqual(t, metrics.counter("rpc_requests_failed"), float64(1))
}

func TestUnknownServiceUnimplemented(t *testing.T) {
	conn, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := conn.Invoke(ctx, "/gomem.v1.NoSuchService/Nope", &services.InitSystemRequest{}, &services.InitSystemResponse{})
	require.Error(t, err)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
