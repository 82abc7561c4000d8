// Package worker drives the embedding pipeline. A pool of goroutines
// consumes jobs from the queue and moves each memory through
// PENDING → PROCESSING → COMPLETED or FAILED: fetch the blob, call the
// space's embedder, persist the vector.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gomem/gomem/internal/queue"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/internal/storage"
	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/embedding"
	"github.com/gomem/gomem/pkg/models"
	"github.com/gomem/gomem/pkg/observability"
	"github.com/gomem/gomem/pkg/security"
)

// Config tunes the pool.
type Config struct {
	Concurrency int                        `mapstructure:"concurrency"`
	JobTimeout  time.Duration              `mapstructure:"job_timeout"`
	Resilience  embedding.ResilienceConfig `mapstructure:"resilience"`
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 2 * time.Minute
	}
	return c
}

// Pool consumes embedding jobs until Stop is called or the queue closes.
type Pool struct {
	cfg       Config
	jobs      queue.Queue
	memories  repository.MemoryRepository
	spaces    repository.SpaceRepository
	embedders repository.EmbedderRepository
	store     storage.ObjectStore
	sealer    *security.Sealer
	logger    observability.Logger
	metrics   observability.MetricsClient

	httpClient *http.Client

	mu      sync.Mutex
	clients map[clientKey]embedding.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// clientKey caches one client per embedder revision, so credential or
// endpoint updates take effect on the next job.
type clientKey struct {
	id        uuid.UUID
	updatedAt int64
}

// NewPool wires the pipeline. metrics may be a noop client.
func NewPool(
	cfg Config,
	jobs queue.Queue,
	memories repository.MemoryRepository,
	spaces repository.SpaceRepository,
	embedders repository.EmbedderRepository,
	store storage.ObjectStore,
	sealer *security.Sealer,
	logger observability.Logger,
	metrics observability.MetricsClient,
) *Pool {
	return &Pool{
		cfg:        cfg.withDefaults(),
		jobs:       jobs,
		memories:   memories,
		spaces:     spaces,
		embedders:  embedders,
		store:      store,
		sealer:     sealer,
		logger:     logger,
		metrics:    metrics,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clients:    map[clientKey]embedding.Client{},
	}
}

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	p.logger.Info("embedding worker pool started", map[string]interface{}{
		"concurrency": p.cfg.Concurrency,
	})
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		job, ok, err := p.jobs.Dequeue(ctx)
		if err != nil {
			return // context cancelled
		}
		if !ok {
			return // queue closed and drained
		}
		p.handle(ctx, job)
	}
}

func (p *Pool) handle(ctx context.Context, job queue.Job) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	if err := p.process(ctx, job); err != nil {
		p.metrics.IncrementCounter("worker_jobs_failed", 1)
		p.logger.Error("embedding job failed", map[string]interface{}{
			"memory_id": job.MemoryID.String(),
			"space_id":  job.SpaceID.String(),
			"error":     err.Error(),
		})
		// MarkFailed runs on a fresh context so a blown deadline still
		// records the terminal state.
		failCtx, failCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer failCancel()
		if markErr := p.memories.MarkFailed(failCtx, job.MemoryID, job.RequestedBy); markErr != nil {
			p.logger.Error("failed to mark memory FAILED", map[string]interface{}{
				"memory_id": job.MemoryID.String(),
				"error":     markErr.Error(),
			})
		}
		return
	}
	p.metrics.IncrementCounter("worker_jobs_completed", 1)
	p.metrics.RecordLatency("worker_job", time.Since(start))
}

func (p *Pool) process(ctx context.Context, job queue.Job) error {
	if err := p.memories.MarkProcessing(ctx, job.MemoryID, job.RequestedBy); err != nil {
		return fmt.Errorf("failed to mark memory PROCESSING: %w", err)
	}

	content, err := p.store.Get(ctx, job.ContentRef)
	if err != nil {
		return fmt.Errorf("failed to fetch content %s: %w", job.ContentRef, err)
	}

	space, err := p.spaces.GetByID(ctx, job.SpaceID)
	if err != nil {
		return fmt.Errorf("failed to load space: %w", err)
	}
	embedder, err := p.embedders.GetByID(ctx, space.EmbedderID)
	if err != nil {
		return fmt.Errorf("failed to load embedder: %w", err)
	}

	client, err := p.clientFor(embedder)
	if err != nil {
		return err
	}

	vectors, err := client.Embed(ctx, []string{string(content)})
	if err != nil {
		return fmt.Errorf("embedding call failed: %w", err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("embedder returned %d vectors for one input", len(vectors))
	}
	vector := vectors[0]
	if len(vector) != int(embedder.Dimensionality) {
		return fmt.Errorf("embedder returned %d dimensions, expected %d", len(vector), embedder.Dimensionality)
	}

	if err := p.memories.CompleteEmbedding(ctx, job.MemoryID, codec.VectorLiteral(vector), len(vector), job.RequestedBy); err != nil {
		return fmt.Errorf("failed to persist embedding: %w", err)
	}

	p.logger.Debug("memory embedded", map[string]interface{}{
		"memory_id":  job.MemoryID.String(),
		"dimensions": len(vector),
	})
	return nil
}

// clientFor returns the cached client for this embedder revision, building
// it on first use.
func (p *Pool) clientFor(e *models.Embedder) (embedding.Client, error) {
	key := clientKey{id: e.ID, updatedAt: e.UpdatedAt.UnixNano()}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	credential := ""
	if len(e.Credentials) > 0 {
		opened, err := p.sealer.Open(e.Credentials, e.OwnerID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to open embedder credential: %w", err)
		}
		credential = opened
	}

	client, err := embedding.NewClient(e, credential, p.httpClient)
	if err != nil {
		return nil, err
	}
	client = embedding.WithResilience(client, e.ID.String(), p.cfg.Resilience, p.logger)

	// Older revisions of the same embedder are stale; drop them.
	for k := range p.clients {
		if k.id == e.ID {
			delete(p.clients, k)
		}
	}
	p.clients[key] = client
	return client, nil
}
