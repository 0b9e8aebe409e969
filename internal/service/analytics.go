package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/godilite/nps-insights/internal/repository/models"
	"github.com/godilite/nps-insights/internal/taxonomy"
	"go.uber.org/zap"
)

const dbTimeout = 2 * time.Second

var ErrStorageFailure = errors.New("storage failure")

// AnalyticsService computes theme aggregates, the theme hierarchy, and title
// movers over already-classified responses. All computations are pure
// transformations: for a fixed filter and fixed reference tables the output
// is byte-identical across runs.
type AnalyticsService struct {
	storage AnalyticsRepository
	tables  *taxonomy.Store
	logger  *zap.Logger
}

func NewAnalyticsService(storage AnalyticsRepository, tables *taxonomy.Store, logger *zap.Logger) *AnalyticsService {
	if storage == nil {
		panic("storage must not be nil")
	}
	if tables == nil {
		panic("tables must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{storage: storage, tables: tables, logger: logger}
}

// themeStats is the per-theme accumulator shared by the aggregate views.
type themeStats struct {
	count          int
	npsSum         int
	sentimentSum   float64
	sentimentCount int
	promoters      int
	detractors     int
}

func (s *AnalyticsService) accumulate(ctx context.Context, f models.ResponseFilter) (map[string]*themeStats, int, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	total, err := s.storage.CountResponses(dbCtx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	rows, err := s.storage.GetThemeAssignments(dbCtx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	type assignment struct {
		responseID string
		theme      string
	}

	tab := s.tables.Current()
	stats := make(map[string]*themeStats)
	seen := make(map[assignment]struct{}, len(rows))
	for _, row := range rows {
		theme, known := tab.Normalize(row.Theme)
		if !known {
			s.logger.Debug("unknown theme label passed through",
				zap.String("raw_theme", row.Theme))
		}

		// A response stored with both a synonym and its canonical label
		// folds onto one theme; count it once.
		if _, dup := seen[assignment{row.ResponseID, theme}]; dup {
			continue
		}
		seen[assignment{row.ResponseID, theme}] = struct{}{}

		st, ok := stats[theme]
		if !ok {
			st = &themeStats{}
			stats[theme] = st
		}
		st.count++
		st.npsSum += row.NpsScore
		if row.Sentiment != nil {
			st.sentimentSum += *row.Sentiment
			st.sentimentCount++
		}
		switch {
		case row.NpsScore >= 9:
			st.promoters++
		case row.NpsScore <= 6:
			st.detractors++
		}
	}
	return stats, total, nil
}

// ThemesAggregate returns per-theme counts, shares, and averages over the
// filtered response set. An empty result set is normal, not an error.
func (s *AnalyticsService) ThemesAggregate(ctx context.Context, f models.ResponseFilter) ([]ThemeAggregate, error) {
	stats, total, err := s.accumulate(ctx, f)
	if err != nil {
		return nil, err
	}

	results := make([]ThemeAggregate, 0, len(stats))
	for theme, st := range stats {
		agg := ThemeAggregate{
			Theme:          theme,
			CountResponses: st.count,
			AvgNps:         float64(st.npsSum) / float64(st.count),
		}
		if total > 0 {
			agg.SharePct = 100 * float64(st.count) / float64(total)
		}
		if st.sentimentCount > 0 {
			mean := st.sentimentSum / float64(st.sentimentCount)
			agg.AvgSentiment = &mean
		}
		results = append(results, agg)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CountResponses != results[j].CountResponses {
			return results[i].CountResponses > results[j].CountResponses
		}
		return results[i].Theme < results[j].Theme
	})

	s.logger.Info("themes aggregated",
		zap.Int("themes", len(results)),
		zap.Int("total_responses", total))
	return results, nil
}

// ThemesPromoterDetractor splits each theme's mentions into promoter and
// detractor counts, ignoring passives.
func (s *AnalyticsService) ThemesPromoterDetractor(ctx context.Context, f models.ResponseFilter) ([]PromoterDetractorSplit, error) {
	// The bucket filter would bias the split it exists to expose.
	f.Bucket = ""

	stats, _, err := s.accumulate(ctx, f)
	if err != nil {
		return nil, err
	}

	results := make([]PromoterDetractorSplit, 0, len(stats))
	for theme, st := range stats {
		results = append(results, PromoterDetractorSplit{
			Theme:      theme,
			Promoters:  st.promoters,
			Detractors: st.detractors,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		ti := results[i].Promoters + results[i].Detractors
		tj := results[j].Promoters + results[j].Detractors
		if ti != tj {
			return ti > tj
		}
		return results[i].Theme < results[j].Theme
	})
	return results, nil
}
