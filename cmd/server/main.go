// Command server runs the memory service: both wire surfaces, the embedding
// worker pool, and the supporting infrastructure (database, cache, object
// store, queue) assembled from configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gomem/gomem/internal/api"
	"github.com/gomem/gomem/internal/config"
	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/internal/queue"
	"github.com/gomem/gomem/internal/repository"
	"github.com/gomem/gomem/internal/rpc"
	"github.com/gomem/gomem/internal/storage"
	"github.com/gomem/gomem/internal/worker"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/cache"
	"github.com/gomem/gomem/pkg/observability"
	"github.com/gomem/gomem/pkg/security"
	"github.com/gomem/gomem/pkg/services"
)

const (
	migrationsPath  = "migrations/sql"
	shutdownTimeout = 30 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewStandardLoggerWithLevel("gomem",
		observability.LogLevel(strings.ToUpper(cfg.Logging.Level)))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", map[string]interface{}{"error": err.Error()})
	}
}

func run(cfg *config.Config, logger observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer shutdownTracing()
	tracer := observability.StartSpan
	metrics := observability.NewMetricsClient()

	db, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db, migrationsPath, logger); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer c.Close()

	store, err := storage.NewS3Store(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing object store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensuring bucket: %w", err)
	}

	jobs, err := newJobQueue(ctx, cfg.Queue)
	if err != nil {
		return fmt.Errorf("initializing job queue: %w", err)
	}
	defer jobs.Close()

	if cfg.Security.MasterKey == "" {
		logger.Warn("security.master_key is empty; sealed credentials are not protected across deployments", nil)
	}
	sealer := security.NewSealer(cfg.Security.MasterKey)

	users := repository.NewUserRepository(db, logger, tracer)
	keys := repository.NewAPIKeyRepository(db, logger, tracer)
	embedders := repository.NewEmbedderRepository(db, logger, tracer)
	spaces := repository.NewSpaceRepository(db, logger, tracer)
	memories := repository.NewMemoryRepository(db, logger, tracer)

	authn := auth.NewAuthenticator(keys, users, c, logger)

	defaultEmbedder, err := parseDefaultEmbedder(cfg.Space.DefaultEmbedderID)
	if err != nil {
		return err
	}

	systemSvc := services.NewSystemService(db, users, keys, logger, tracer)
	userSvc := services.NewUserService(users, logger, tracer)
	keySvc := services.NewAPIKeyService(keys, logger, tracer).WithInvalidation(authn.Invalidate)
	embedderSvc := services.NewEmbedderService(embedders, sealer, logger, tracer)
	spaceSvc := services.NewSpaceService(db, spaces, embedders, memories, store, defaultEmbedder, logger, tracer)
	memorySvc := services.NewMemoryService(memories, spaces, store, jobs, logger, tracer)

	pool := worker.NewPool(cfg.Worker, jobs, memories, spaces, embedders, store, sealer, logger, metrics)
	pool.Start(ctx)
	defer pool.Stop()

	rpcSrv, err := rpc.NewServer(cfg.RPC, authn, rpc.Services{
		System:    systemSvc,
		Users:     userSvc,
		Keys:      keySvc,
		Embedders: embedderSvc,
		Spaces:    spaceSvc,
		Memories:  memorySvc,
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("building rpc server: %w", err)
	}

	apiSrv := api.NewServer(cfg.API, authn, api.Services{
		System:    systemSvc,
		Users:     userSvc,
		Keys:      keySvc,
		Embedders: embedderSvc,
		Spaces:    spaceSvc,
		Memories:  memorySvc,
	}, logger, metrics)

	errCh := make(chan error, 2)
	go func() { errCh <- rpcSrv.ListenAndServe() }()
	go func() { errCh <- apiSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received", nil)
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
	rpcSrv.Stop()
	return nil
}

func newJobQueue(ctx context.Context, cfg config.QueueConfig) (queue.Queue, error) {
	switch cfg.Backend {
	case "sqs":
		return queue.NewSQSQueue(ctx, cfg.SQSURL)
	case "", "channel":
		return queue.NewChannelQueue(cfg.BufferSize), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

func parseDefaultEmbedder(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("space.default_embedder_id is not a valid id: %w", err)
	}
	return &id, nil
}
