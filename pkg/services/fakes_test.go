package services_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/pkg/models"
)

// In-memory repository fakes. They mirror the SQL layer's observable
// behavior: ErrNotFound on misses, ErrDuplicateKey on natural-key
// conflicts, owner/label/name filtering on lists.

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[uuid.UUID]*models.User{}}
}

func (r *memUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository { return r }

func (r *memUserRepo) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return database.ErrDuplicateKey
		}
	}
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, database.ErrNotFound
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email != nil && *u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *memUserRepo) List(ctx context.Context, filter repository.UserFilter, page repository.Page) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		if filter.OwnerID != nil && u.ID != *filter.OwnerID {
			continue
		}
		clone := *u
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, page), nil
}

type memKeyRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*models.APIKey
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{keys: map[uuid.UUID]*models.APIKey{}}
}

func (r *memKeyRepo) WithTx(tx *sqlx.Tx) repository.APIKeyRepository { return r }

func (r *memKeyRepo) Create(ctx context.Context, k *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *k
	r.keys[k.ID] = &clone
	return nil
}

func (r *memKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		clone := *k
		return &clone, nil
	}
	return nil, database.ErrNotFound
}

func (r *memKeyRepo) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.KeyHash == hash {
			clone := *k
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *memKeyRepo) Update(ctx context.Context, k *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[k.ID]; !ok {
		return database.ErrNotFound
	}
	clone := *k
	r.keys[k.ID] = &clone
	return nil
}

func (r *memKeyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.keys, id)
	return nil
}

func (r *memKeyRepo) List(ctx context.Context, filter repository.KeyFilter, page repository.Page) ([]*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.APIKey
	for _, k := range r.keys {
		if filter.OwnerID != nil && k.UserID != *filter.OwnerID {
			continue
		}
		if !labelsMatch(k.Labels, filter.LabelSelectors) {
			continue
		}
		clone := *k
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, page), nil
}

func (r *memKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, when time.Time) error {
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

func (r *memEmbedderRepo) WithTx(tx *sqlx.Tx) repository.EmbedderRepository { return r }

func (r *memEmbedderRepo) Create(ctx context.Context, e *models.Embedder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.embedders {
		if existing.EndpointURL == e.EndpointURL && existing.APIPath == e.APIPath && existing.ModelIdentifier == e.ModelIdentifier {
			return database.ErrDuplicateKey
		}
	}
	clone := *e
	r.embedders[e.ID] = &clone
	return nil
}

func (r *memEmbedderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.embedders[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, database.ErrNotFound
}

func (r *memEmbedderRepo) GetByConnection(ctx context.Context, endpointURL, apiPath, modelIdentifier string) (*models.Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.embedders {
		if e.EndpointURL == endpointURL && e.APIPath == apiPath && e.ModelIdentifier == modelIdentifier {
			clone := *e
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *memEmbedderRepo) Update(ctx context.Context, e *models.Embedder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.embedders[e.ID]; !ok {
		return database.ErrNotFound
	}
	clone := *e
	r.embedders[e.ID] = &clone
	return nil
}

func (r *memEmbedderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.embedders[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.embedders, id)
	return nil
}

func (r *memEmbedderRepo) List(ctx context.Context, filter repository.EmbedderFilter, page repository.Page) ([]*models.Embedder, error) {
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
		if !labelsMatch(e.Labels, filter.LabelSelectors) {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, page), nil
}

type memSpaceRepo struct {
	mu     sync.Mutex
	spaces map[uuid.UUID]*models.Space
}

func newMemSpaceRepo() *memSpaceRepo {
	return &memSpaceRepo{spaces: map[uuid.UUID]*models.Space{}}
}

func (r *memSpaceRepo) WithTx(tx *sqlx.Tx) repository.SpaceRepository { return r }

func (r *memSpaceRepo) Create(ctx context.Context, s *models.Space) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.spaces {
		if existing.OwnerID == s.OwnerID && existing.Name == s.Name {
			return database.ErrDuplicateKey
		}
	}
	clone := *s
	r.spaces[s.ID] = &clone
	return nil
}

func (r *memSpaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.spaces[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, database.ErrNotFound
}

func (r *memSpaceRepo) GetByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (*models.Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spaces {
		if s.OwnerID == ownerID && s.Name == name {
			clone := *s
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *memSpaceRepo) Update(ctx context.Context, s *models.Space) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spaces[s.ID]; !ok {
		return database.ErrNotFound
	}
	clone := *s
	r.spaces[s.ID] = &clone
	return nil
}

func (r *memSpaceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spaces[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.spaces, id)
	return nil
}

func (r *memSpaceRepo) List(ctx context.Context, filter repository.SpaceFilter, page repository.Page) ([]*models.Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Space
	for _, s := range r.spaces {
		if filter.OwnerID != nil && s.OwnerID != *filter.OwnerID {
			continue
		}
		if !labelsMatch(s.Labels, filter.LabelSelectors) {
			continue
		}
		if filter.NameFilter != "" && !globMatch(filter.NameFilter, s.Name) {
			continue
		}
		clone := *s
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var less bool
		switch page.SortBy {
		case "name":
			less = a.Name < b.Name
		case "updated_time":
			less = a.UpdatedAt.Before(b.UpdatedAt)
		default:
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if page.Order == models.SortDescending {
			return !less
		}
		return less
	})
	return paginate(out, page), nil
}

type memMemoryRepo struct {
	mu       sync.Mutex
	memories map[uuid.UUID]*models.Memory
}

func newMemMemoryRepo() *memMemoryRepo {
	return &memMemoryRepo{memories: map[uuid.UUID]*models.Memory{}}
}

func (r *memMemoryRepo) WithTx(tx *sqlx.Tx) repository.MemoryRepository { return r }

func (r *memMemoryRepo) Create(ctx context.Context, m *models.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *m
	r.memories[m.ID] = &clone
	return nil
}

func (r *memMemoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.memories[id]; ok {
		clone := *m
		return &clone, nil
	}
	return nil, database.ErrNotFound
}

func (r *memMemoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memories[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.memories, id)
	return nil
}

func (r *memMemoryRepo) ListBySpace(ctx context.Context, spaceID uuid.UUID, page repository.Page) ([]*models.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Memory
	for _, m := range r.memories {
		if m.SpaceID != spaceID {
			continue
		}
		clone := *m
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, page), nil
}

func (r *memMemoryRepo) DeleteBySpace(ctx context.Context, spaceID uuid.UUID) ([]string, error) {
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

func (r *memMemoryRepo) MarkProcessing(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) error {
	return r.setStatus(id, models.ProcessingProcessing, updatedBy)
}

func (r *memMemoryRepo) CompleteEmbedding(ctx context.Context, id uuid.UUID, vector string, dimensions int, updatedBy uuid.UUID) error {
	return r.setStatus(id, models.ProcessingCompleted, updatedBy)
}

func (r *memMemoryRepo) MarkFailed(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) error {
	return r.setStatus(id, models.ProcessingFailed, updatedBy)
}

func (r *memMemoryRepo) setStatus(id uuid.UUID, st models.ProcessingStatus, updatedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memories[id]
	if !ok {
		return database.ErrNotFound
	}
	m.ProcessingStatus = st
	m.UpdatedByID = updatedBy
	return nil
}

// fakeStore records blob deletes and can be made to fail them.
type fakeStore struct {
	mu      sync.Mutex
	deleted []string
	failAll bool
}

func (f *fakeStore) BucketExists(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeStore) MakeBucket(ctx context.Context) error           { return nil }
func (f *fakeStore) EnsureBucket(ctx context.Context) error         { return nil }
func (f *fakeStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	return nil
}
func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return io.ErrUnexpectedEOF
	}
	f.deleted = append(f.deleted, key)
	return nil
}

var stampSeq int64

// nextStamp returns a strictly increasing timestamp so created-time sorts
// are deterministic across fake repositories.
func nextStamp() time.Time {
	n := atomic.AddInt64(&stampSeq, 1)
	return time.Unix(0, n*int64(time.Millisecond)).UTC()
}

func paginate[T any](items []*T, page repository.Page) []*T {
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	if page.Offset >= len(items) {
		return nil
	}
	items = items[page.Offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func labelsMatch(labels models.Labels, selectors map[string]string) bool {
	for k, v := range selectors {
		if labels[k] != v {
			return false
		}
	}
	return true
}

func globMatch(pattern, name string) bool {
	parts := strings.Split(pattern, "*")
	pos := 0
	for i, part := range parts {
		idx := strings.Index(name[pos:], part)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}
	if parts[len(parts)-1] != "" && pos != len(name) {
		return false
	}
	return true
}
