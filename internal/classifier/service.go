package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/godilite/nps-insights/internal/repository/models"
	"github.com/godilite/nps-insights/internal/taxonomy"
	"go.uber.org/zap"
)

const classifyTimeout = 20 * time.Second

// EnrichmentRepository defines the storage operations the pipeline needs.
type EnrichmentRepository interface {
	GetUnclassifiedResponses(ctx context.Context, taxonomyVersion string, maxAttempts, limit int) ([]models.Response, error)
	SaveEnrichment(ctx context.Context, e models.Enrichment) error
	MarkEnrichmentFailed(ctx context.Context, responseID, taxonomyVersion string) error
}

// Enricher classifies one response at a time and persists the result keyed by
// (response id, taxonomy version).
type Enricher struct {
	client Client
	repo   EnrichmentRepository
	tables *taxonomy.Store
	logger *zap.Logger
}

func NewEnricher(client Client, repo EnrichmentRepository, tables *taxonomy.Store, logger *zap.Logger) *Enricher {
	if client == nil {
		panic("client must not be nil")
	}
	if repo == nil {
		panic("repo must not be nil")
	}
	if tables == nil {
		panic("tables must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{client: client, repo: repo, tables: tables, logger: logger}
}

// Enrich classifies a single response and stores the outcome. Comments that
// are empty or marked "not applicable" short-circuit locally: the external
// classifier is never called for them. A classification failure is returned to
// the caller; recording it against the response is the caller's job so that
// retry accounting stays in one place.
func (e *Enricher) Enrich(ctx context.Context, resp models.Response) (Result, error) {
	tab := e.tables.Current()

	var result Result
	if tab.IsNotApplicable(resp.Comment) {
		result = Fallback(tab)
	} else {
		callCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
		defer cancel()

		raw, err := e.client.Classify(callCtx, Request{
			SurveyType: resp.SurveyName,
			NpsScore:   resp.NpsScore,
			Title:      resp.TitleText,
			Comment:    resp.Comment,
		}, tab)
		if err != nil {
			return Result{}, fmt.Errorf("classify response %s: %w", resp.ID, err)
		}

		result = e.normalizeThemes(raw, tab)
		if err := Validate(result, tab); err != nil {
			return Result{}, fmt.Errorf("response %s: %w", resp.ID, err)
		}
	}

	err := e.repo.SaveEnrichment(ctx, models.Enrichment{
		ResponseID:      resp.ID,
		TaxonomyVersion: tab.Version,
		Themes:          result.Themes,
		ThemeScores:     result.ThemeScores,
		Sentiment:       result.Sentiment,
		Keywords:        result.Keywords,
		Language:        result.Language,
		Status:          models.EnrichmentCompleted,
	})
	if err != nil {
		return Result{}, fmt.Errorf("save enrichment for %s: %w", resp.ID, err)
	}
	return result, nil
}

// RecordFailure marks a response as unclassified under the current taxonomy
// version. The response stays in raw totals but is excluded from theme
// aggregates until a later run succeeds.
func (e *Enricher) RecordFailure(ctx context.Context, responseID string) {
	tab := e.tables.Current()
	if err := e.repo.MarkEnrichmentFailed(ctx, responseID, tab.Version); err != nil {
		e.logger.Error("failed to record classification failure",
			zap.String("response_id", responseID),
			zap.Error(err))
	}
}

// TaxonomyVersion returns the version the next enrichment will be stored under.
func (e *Enricher) TaxonomyVersion() string {
	return e.tables.Current().Version
}

// normalizeThemes folds drifted theme labels back onto the taxonomy before
// validation. Unknown labels pass through unchanged and are logged; they then
// fail validation, which routes the response into the retry path instead of
// silently dropping the theme.
func (e *Enricher) normalizeThemes(res Result, tab *taxonomy.Table) Result {
	themes := make([]string, 0, len(res.Themes))
	scores := make(map[string]float64, len(res.ThemeScores))
	seen := make(map[string]struct{}, len(res.Themes))

	for _, raw := range res.Themes {
		canonical, known := tab.Normalize(raw)
		if !known {
			e.logger.Warn("theme label not in synonym table",
				zap.String("raw_theme", raw),
				zap.String("taxonomy_version", tab.Version))
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		themes = append(themes, canonical)

		if score, ok := res.ThemeScores[raw]; ok {
			if prev, ok := scores[canonical]; !ok || score > prev {
				scores[canonical] = score
			}
		}
	}

	res.Themes = themes
	res.ThemeScores = scores
	return res
}
