package api_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
)

// In-memory repositories backing the HTTP round-trip tests. They reproduce
// the observable behavior of the SQL layer for the flows exercised here:
// sentinel errors and natural-key conflicts.

// countingMetrics records counter increments and latency operations so tests
// can assert on what the server emitted.
type countingMetrics struct {
	observability.NoopMetricsClient

	mu       sync.Mutex
	counters map[string]float64
	latency  []string
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counters: map[string]float64{}}
}

func (m *countingMetrics) IncrementCounter(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

func (m *countingMetrics) RecordLatency(operation string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = append(m.latency, operation)
}

func (m *countingMetrics) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *countingMetrics) latencyOps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.latency...)
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{users: map[uuid.UUID]*models.User{}} }

func (r *memUserRepo) WithTx(*sqlx.Tx) repository.UserRepository { return r }

func (r *memUserRepo) Create(_ context.Context, user *models.User) error {
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

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
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

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
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

func (r *memUserRepo) List(_ context.Context, filter repository.UserFilter, _ repository.Page) ([]*models.User, error) {
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

type memKeyRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*models.APIKey
}

func newMemKeyRepo() *memKeyRepo { return &memKeyRepo{keys: map[uuid.UUID]*models.APIKey{}} }

func (r *memKeyRepo) WithTx(*sqlx.Tx) repository.APIKeyRepository { return r }

func (r *memKeyRepo) Create(_ context.Context, key *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *memKeyRepo) GetByID(_ context.Context, id uuid.UUID) (*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		cp := *k
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (r *memKeyRepo) GetByHash(_ context.Context, hash string) (*models.APIKey, error) {
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

func (r *memKeyRepo) Update(_ context.Context, key *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key.ID]; !ok {
		return database.ErrNotFound
	}
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *memKeyRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.keys, id)
	return nil
}

func (r *memKeyRepo) List(_ context.Context, filter repository.KeyFilter, _ repository.Page) ([]*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.APIKey
	for _, k := range r.keys {
		if filter.OwnerID != nil && k.UserID != *filter.OwnerID {
			continue
		}
		cp := *k
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memKeyRepo) TouchLastUsed(_ context.Context, id uuid.UUID, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		k.LastUsedAt = &when
	}
	return nil
}

type memEmbedderRepo struct {
	mu        sync.Mutex
	embedders map[uuid.UUID]*models.Embedder
}

func newMemEmbedderRepo() *memEmbedderRepo {
	return &memEmbedderRepo{embedders: map[uuid.UUID]*models.Embedder{}}
}

func (r *memEmbedderRepo) WithTx(*sqlx.Tx) repository.EmbedderRepository { return r }

func (r *memEmbedderRepo) Create(_ context.Context, e *models.Embedder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.embedders {
		if existing.EndpointURL == e.EndpointURL && existing.APIPath == e.APIPath && existing.ModelIdentifier == e.ModelIdentifier {
			return database.ErrDuplicateKey
		}
	}
	cp := *e
	r.embedders[e.ID] = &cp
	return nil
}

func (r *memEmbedderRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.embedders[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (r *memEmbedderRepo) GetByConnection(_ context.Context, endpointURL, apiPath, modelIdentifier string) (*models.Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.embedders {
		if e.EndpointURL == endpointURL && e.APIPath == apiPath && e.ModelIdentifier == modelIdentifier {
			cp := *e
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *memEmbedderRepo) Update(_ context.Context, e *models.Embedder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.embedders[e.ID]; !ok {
		return database.ErrNotFound
	}
	cp := *e
	r.embedders[e.ID] = &cp
	return nil
}

func (r *memEmbedderRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.embedders[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.embedders, id)
	return nil
}

func (r *memEmbedderRepo) List(_ context.Context, filter repository.EmbedderFilter, _ repository.Page) ([]*models.Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Embedder
	for _, e := range r.embedders {
		if filter.OwnerID != nil && e.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.ProviderType != "" && filter.ProviderType != models.ProviderUnspecified && e.ProviderType != filter.ProviderType {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

type memSpaceRepo struct {
	mu     sync.Mutex
	spaces map[uuid.UUID]*models.Space
}

func newMemSpaceRepo() *memSpaceRepo { return &memSpaceRepo{spaces: map[uuid.UUID]*models.Space{}} }

func (r *memSpaceRepo) WithTx(*sqlx.Tx) repository.SpaceRepository { return r }

func (r *memSpaceRepo) Create(_ context.Context, s *models.Space) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.spaces {
		if existing.OwnerID == s.OwnerID && existing.Name == s.Name {
			return database.ErrDuplicateKey
		}
	}
	cp := *s
	r.spaces[s.ID] = &cp
	return nil
}

func (r *memSpaceRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.spaces[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (r *memSpaceRepo) GetByOwnerAndName(_ context.Context, ownerID uuid.UUID, name string) (*models.Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spaces {
		if s.OwnerID == ownerID && s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *memSpaceRepo) Update(_ context.Context, s *models.Space) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spaces[s.ID]; !ok {
		return database.ErrNotFound
	}
	for _, existing := range r.spaces {
		if existing.ID != s.ID && existing.OwnerID == s.OwnerID && existing.Name == s.Name {
			return database.ErrDuplicateKey
		}
	}
	cp := *s
	r.spaces[s.ID] = &cp
	return nil
}

func (r *memSpaceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spaces[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.spaces, id)
	return nil
}

func (r *memSpaceRepo) List(_ context.Context, filter repository.SpaceFilter, _ repository.Page) ([]*models.Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Space
	for _, s := range r.spaces {
		if filter.OwnerID != nil && s.OwnerID != *filter.OwnerID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

type memMemoryRepo struct {
	mu       sync.Mutex
	memories map[uuid.UUID]*models.Memory
}

func newMemMemoryRepo() *memMemoryRepo {
	return &memMemoryRepo{memories: map[uuid.UUID]*models.Memory{}}
}

func (r *memMemoryRepo) WithTx(*sqlx.Tx) repository.MemoryRepository { return r }

func (r *memMemoryRepo) Create(_ context.Context, m *models.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.memories[m.ID] = &cp
	return nil
}

func (r *memMemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.memories[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (r *memMemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memories[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.memories, id)
	return nil
}

func (r *memMemoryRepo) ListBySpace(_ context.Context, spaceID uuid.UUID, _ repository.Page) ([]*models.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Memory
	for _, m := range r.memories {
		if m.SpaceID == spaceID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMemoryRepo) DeleteBySpace(_ context.Context, spaceID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var refs []string
	for id, m := range r.memories {
		if m.SpaceID == spaceID {
			refs = append(refs, m.OriginalContentRef)
			delete(r.memories, id)
		}
	}
	return refs, nil
}

func (r *memMemoryRepo) MarkProcessing(_ context.Context, id uuid.UUID, updatedBy uuid.UUID) error {
	return r.setStatus(id, models.ProcessingProcessing, updatedBy)
}

func (r *memMemoryRepo) CompleteEmbedding(_ context.Context, id uuid.UUID, _ string, _ int, updatedBy uuid.UUID) error {
	return r.setStatus(id, models.ProcessingCompleted, updatedBy)
}

func (r *memMemoryRepo) MarkFailed(_ context.Context, id uuid.UUID, updatedBy uuid.UUID) error {
	return r.setStatus(id, models.ProcessingFailed, updatedBy)
}

func (r *memMemoryRepo) setStatus(id uuid.UUID, status models.ProcessingStatus, updatedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memories[id]
	if !ok {
		return database.ErrNotFound
	}
	m.ProcessingStatus = status
	m.UpdatedByID = updatedBy
	return nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) BucketExists(context.Context) (bool, error) { return true, nil }
func (s *memStore) MakeBucket(context.Context) error           { return nil }
func (s *memStore) EnsureBucket(context.Context) error         { return nil }

func (s *memStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.objects[key]; ok {
		return append([]byte(nil), data...), nil
	}
	return nil, database.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
