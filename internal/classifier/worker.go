package classifier

import (
	"context"
	"errors"
	"time"

	"github.com/godilite/nps-insights/internal/repository/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkerOptions tune the batch enrichment loop.
type WorkerOptions struct {
	BatchSize   int
	Concurrency int
	IdleWait    time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// Worker drains the backlog of unclassified responses. Responses in a batch
// are classified concurrently; one response failing never aborts the others.
type Worker struct {
	enricher *Enricher
	repo     EnrichmentRepository
	logger   *zap.Logger
	opts     WorkerOptions
}

func NewWorker(enricher *Enricher, repo EnrichmentRepository, logger *zap.Logger, opts WorkerOptions) *Worker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.IdleWait <= 0 {
		opts.IdleWait = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{enricher: enricher, repo: repo, logger: logger.Named("enrichment-worker"), opts: opts}
}

// Run blocks until ctx is canceled, processing batches of unclassified
// responses and sleeping when the backlog is empty.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("enrichment worker started",
		zap.Int("batch_size", w.opts.BatchSize),
		zap.Int("concurrency", w.opts.Concurrency))

	for {
		processed, err := w.processBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				w.logger.Info("enrichment worker stopped")
				return nil
			}
			w.logger.Error("batch processing error", zap.Error(err))
		}

		if processed == 0 || err != nil {
			select {
			case <-ctx.Done():
				w.logger.Info("enrichment worker stopped")
				return nil
			case <-time.After(w.opts.IdleWait):
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) (int, error) {
	batch, err := w.repo.GetUnclassifiedResponses(ctx, w.enricher.TaxonomyVersion(), w.opts.MaxAttempts, w.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)

	for _, resp := range batch {
		resp := resp
		g.Go(func() error {
			w.enrichWithRetry(gctx, resp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	w.logger.Info("batch processed", zap.Int("responses", len(batch)))
	return len(batch), nil
}

// enrichWithRetry retries transient classifier failures with exponential
// backoff and records a permanent failure after the final attempt. Validation
// failures are not retried within the batch: the model output is deterministic
// at temperature 0, so an immediate retry would produce the same bad payload.
func (w *Worker) enrichWithRetry(ctx context.Context, resp models.Response) {
	var lastErr error

	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		_, err := w.enricher.Enrich(ctx, resp)
		if err == nil {
			return
		}
		lastErr = err

		if errors.Is(err, ErrInvalidClassification) || errors.Is(err, context.Canceled) {
			break
		}

		if attempt < w.opts.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.opts.RetryDelay << (attempt - 1)):
			}
		}
	}

	w.logger.Warn("classification failed",
		zap.String("response_id", resp.ID),
		zap.Error(lastErr))
	w.enricher.RecordFailure(ctx, resp.ID)
}
