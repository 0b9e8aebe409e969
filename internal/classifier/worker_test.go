package classifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/godilite/nps-insights/internal/repository/models"
	"github.com/godilite/nps-insights/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func validClient() *mockClient {
	return &mockClient{
		ClassifyFunc: func(ctx context.Context, req Request, tab *taxonomy.Table) (Result, error) {
			return Result{
				Themes:      []string{"bezorging"},
				ThemeScores: map[string]float64{"bezorging": 0.9},
				Language:    "nl",
			}, nil
		},
	}
}

func testWorkerOpts() WorkerOptions {
	return WorkerOptions{
		BatchSize:   10,
		Concurrency: 1,
		IdleWait:    time.Millisecond,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}
}

// TestProcessBatch tests one pass over the backlog
func TestProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("classifies every response in the batch", func(t *testing.T) {
		var mu sync.Mutex
		var saved []string
		repo := &mockEnrichmentRepo{
			GetUnclassifiedResponsesFunc: func(ctx context.Context, version string, maxAttempts, limit int) ([]models.Response, error) {
				assert.Equal(t, "2025-09-nl", version)
				assert.Equal(t, 3, maxAttempts)
				assert.Equal(t, 10, limit)
				return []models.Response{
					{ID: "r1", NpsScore: 3, Comment: "te laat bezorgd"},
					{ID: "r2", NpsScore: 9, Comment: "prima"},
				}, nil
			},
			SaveEnrichmentFunc: func(ctx context.Context, e models.Enrichment) error {
				mu.Lock()
				defer mu.Unlock()
				saved = append(saved, e.ResponseID)
				return nil
			},
		}

		enricher := NewEnricher(validClient(), repo, testStore(t), zap.NewNop())
		worker := NewWorker(enricher, repo, zap.NewNop(), testWorkerOpts())

		processed, err := worker.processBatch(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, processed)
		assert.ElementsMatch(t, []string{"r1", "r2"}, saved)
	})

	t.Run("empty backlog processes nothing", func(t *testing.T) {
		repo := &mockEnrichmentRepo{
			GetUnclassifiedResponsesFunc: func(ctx context.Context, version string, maxAttempts, limit int) ([]models.Response, error) {
				return nil, nil
			},
		}

		enricher := NewEnricher(validClient(), repo, testStore(t), zap.NewNop())
		worker := NewWorker(enricher, repo, zap.NewNop(), testWorkerOpts())

		processed, err := worker.processBatch(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 0, processed)
	})

	t.Run("one failing response does not abort the batch", func(t *testing.T) {
		client := &mockClient{
			ClassifyFunc: func(ctx context.Context, req Request, tab *taxonomy.Table) (Result, error) {
				if req.Comment == "kapot" {
					return Result{}, ErrClassifierUnavailable
				}
				return Result{
					Themes:      []string{"bezorging"},
					ThemeScores: map[string]float64{"bezorging": 0.9},
					Language:    "nl",
				}, nil
			},
		}

		var mu sync.Mutex
		var saved, failed []string
		repo := &mockEnrichmentRepo{
			GetUnclassifiedResponsesFunc: func(ctx context.Context, version string, maxAttempts, limit int) ([]models.Response, error) {
				return []models.Response{
					{ID: "r1", NpsScore: 3, Comment: "kapot"},
					{ID: "r2", NpsScore: 9, Comment: "prima"},
				}, nil
			},
			SaveEnrichmentFunc: func(ctx context.Context, e models.Enrichment) error {
				mu.Lock()
				defer mu.Unlock()
				saved = append(saved, e.ResponseID)
				return nil
			},
			MarkEnrichmentFailedFunc: func(ctx context.Context, responseID, version string) error {
				mu.Lock()
				defer mu.Unlock()
				failed = append(failed, responseID)
				return nil
			},
		}

		enricher := NewEnricher(client, repo, testStore(t), zap.NewNop())
		worker := NewWorker(enricher, repo, zap.NewNop(), testWorkerOpts())

		processed, err := worker.processBatch(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, processed)
		assert.Equal(t, []string{"r2"}, saved)
		assert.Equal(t, []string{"r1"}, failed)
	})
}

// TestEnrichWithRetry tests the per-response retry policy
func TestEnrichWithRetry(t *testing.T) {
	ctx := context.Background()
	response := models.Response{ID: "r1", NpsScore: 3, Comment: "te laat"}

	t.Run("transient failure recovers", func(t *testing.T) {
		attempts := 0
		client := &mockClient{
			ClassifyFunc: func(ctx context.Context, req Request, tab *taxonomy.Table) (Result, error) {
				attempts++
				if attempts == 1 {
					return Result{}, ErrClassifierUnavailable
				}
				return Result{
					Themes:      []string{"bezorging"},
					ThemeScores: map[string]float64{"bezorging": 0.9},
					Language:    "nl",
				}, nil
			},
		}
		savedCount := 0
		repo := &mockEnrichmentRepo{
			SaveEnrichmentFunc: func(ctx context.Context, e models.Enrichment) error {
				savedCount++
				return nil
			},
		}

		enricher := NewEnricher(client, repo, testStore(t), zap.NewNop())
		worker := NewWorker(enricher, repo, zap.NewNop(), testWorkerOpts())

		worker.enrichWithRetry(ctx, response)
		assert.Equal(t, 2, attempts)
		assert.Equal(t, 1, savedCount)
	})

	t.Run("exhausted retries record a failure", func(t *testing.T) {
		client := &mockClient{
			ClassifyFunc: func(ctx context.Context, req Request, tab *taxonomy.Table) (Result, error) {
				return Result{}, ErrClassifierUnavailable
			},
		}
		var failedID string
		repo := &mockEnrichmentRepo{
			MarkEnrichmentFailedFunc: func(ctx context.Context, responseID, version string) error {
				failedID = responseID
				return nil
			},
		}

		enricher := NewEnricher(client, repo, testStore(t), zap.NewNop())
		worker := NewWorker(enricher, repo, zap.NewNop(), testWorkerOpts())

		worker.enrichWithRetry(ctx, response)
		assert.Equal(t, 3, client.calls)
		assert.Equal(t, "r1", failedID)
	})

	t.Run("validation failures are not retried", func(t *testing.T) {
		client := &mockClient{
			ClassifyFunc: func(ctx context.Context, req Request, tab *taxonomy.Table) (Result, error) {
				return Result{
					Themes:      []string{"verzendkosten"},
					ThemeScores: map[string]float64{"verzendkosten": 0.9},
					Language:    "nl",
				}, nil
			},
		}
		failedCount := 0
		repo := &mockEnrichmentRepo{
			MarkEnrichmentFailedFunc: func(ctx context.Context, responseID, version string) error {
				failedCount++
				return nil
			},
		}

		enricher := NewEnricher(client, repo, testStore(t), zap.NewNop())
		worker := NewWorker(enricher, repo, zap.NewNop(), testWorkerOpts())

		worker.enrichWithRetry(ctx, response)
		assert.Equal(t, 1, client.calls)
		assert.Equal(t, 1, failedCount)
	})
}

// TestWorkerRun tests loop shutdown
func TestWorkerRun(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		repo := &mockEnrichmentRepo{
			GetUnclassifiedResponsesFunc: func(ctx context.Context, version string, maxAttempts, limit int) ([]models.Response, error) {
				return nil, nil
			},
		}

		enricher := NewEnricher(validClient(), repo, testStore(t), zap.NewNop())
		worker := NewWorker(enricher, repo, zap.NewNop(), testWorkerOpts())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- worker.Run(ctx) }()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("worker did not stop after cancellation")
		}
	})
}
