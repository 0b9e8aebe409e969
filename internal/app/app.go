package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godilite/nps-insights/internal/classifier"
	"github.com/godilite/nps-insights/internal/config"
	"github.com/godilite/nps-insights/internal/repository"
	"github.com/godilite/nps-insights/internal/rest"
	"github.com/godilite/nps-insights/internal/service"
	"github.com/godilite/nps-insights/internal/taxonomy"
	"github.com/godilite/nps-insights/pkg/cache"
	dbbuilder "github.com/godilite/nps-insights/pkg/database"
	"github.com/godilite/nps-insights/pkg/httpserver"

	"go.uber.org/zap"
)

type App struct {
	logger     *zap.Logger
	dbPool     *sql.DB
	cache      *cache.Cache
	httpServer *httpserver.Server
	worker     *classifier.Worker
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("path", cfg.DBPath))

	responseRepo := repository.NewResponseRepository(dbPool)
	if err := responseRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("schema init failed: %w", err)
	}

	cacheClient, err := cache.New(ctx,
		cache.WithAddress(cfg.RedisAddr),
	)
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}
	logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))

	tab, err := loadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return nil, fmt.Errorf("taxonomy init failed: %w", err)
	}
	tables := taxonomy.NewStore(tab)
	logger.Info("Taxonomy loaded", zap.String("version", tab.Version), zap.Int("labels", len(tab.Labels)))

	analyticsService := service.NewAnalyticsService(responseRepo, tables, logger)

	var worker *classifier.Worker
	if cfg.EnrichEnabled {
		client := classifier.NewOpenAIClient(cfg.ClassifierBaseURL, cfg.ClassifierAPIKey, cfg.ClassifierModel, cfg.ClassifierTimeout)
		enricher := classifier.NewEnricher(client, responseRepo, tables, logger)
		worker = classifier.NewWorker(enricher, responseRepo, logger, classifier.WorkerOptions{
			BatchSize:   cfg.EnrichBatchSize,
			Concurrency: cfg.EnrichConcurrency,
			IdleWait:    cfg.EnrichIdleWait,
		})
	}

	handlers := rest.NewHandlers(analyticsService, responseRepo, tables, cfg.TaxonomyPath, cacheClient, logger, cfg.CacheTTL)

	httpServer, err := httpserver.New(rest.NewRouter(handlers),
		httpserver.WithPort(cfg.HTTPPort),
		httpserver.WithLogger(logger),
		httpserver.WithLogging(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server: %w", err)
	}

	return &App{
		logger:     logger,
		dbPool:     dbPool,
		cache:      cacheClient,
		httpServer: httpServer,
		worker:     worker,
	}, nil
}

func loadTaxonomy(path string) (*taxonomy.Table, error) {
	if path == "" {
		return taxonomy.Default(), nil
	}
	return taxonomy.LoadFile(path)
}

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run() error {
	a.logger.Info("application starting")

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	workerDone := make(chan struct{})
	if a.worker != nil {
		go func() {
			defer close(workerDone)
			_ = a.worker.Run(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	a.httpServer.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("application shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	stopWorker()
	select {
	case <-workerDone:
	case <-ctx.Done():
		a.logger.Warn("enrichment worker did not stop before deadline")
	}

	if err := a.cache.Close(); err != nil {
		a.logger.Error("cache shutdown error", zap.Error(err))
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
	}

	a.logger.Info("graceful shutdown completed")
	_ = a.logger.Sync()
	return nil
}
