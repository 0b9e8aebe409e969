package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/godilite/nps-insights/internal/repository/models"
	"go.uber.org/zap"
)

const (
	// DefaultMinResponses guards mover ranking against noisy deltas on
	// small samples.
	DefaultMinResponses = 30
	DefaultTopMovers    = 5

	monthLayout = "2006-01"
)

func npsScore(promoters, detractors, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(promoters-detractors) / float64(total)
}

func priorMonth(month string) string {
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return ""
	}
	return t.AddDate(0, -1, 0).Format(monthLayout)
}

// TopTitleMovers ranks titles by absolute month-over-month NPS movement.
// A title/month qualifies only when the current month meets minResponses and
// an immediately preceding calendar month exists; zero deltas are not moves.
func (s *AnalyticsService) TopTitleMovers(ctx context.Context, f models.ResponseFilter, minResponses, topK int) ([]MoverRecord, error) {
	if minResponses <= 0 {
		minResponses = DefaultMinResponses
	}
	if topK <= 0 {
		topK = DefaultTopMovers
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	stats, err := s.storage.GetMonthlyTitleStats(dbCtx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	byTitle := make(map[string]map[string]models.MonthlyTitleStat)
	for _, st := range stats {
		if byTitle[st.Title] == nil {
			byTitle[st.Title] = make(map[string]models.MonthlyTitleStat)
		}
		byTitle[st.Title][st.Month] = st
	}

	var movers []MoverRecord
	for title, months := range byTitle {
		for month, cur := range months {
			if cur.Responses < minResponses {
				continue
			}
			prior, ok := months[priorMonth(month)]
			if !ok {
				continue
			}

			curNps := npsScore(cur.Promoters, cur.Detractors, cur.Responses)
			priorNps := npsScore(prior.Promoters, prior.Detractors, prior.Responses)
			delta := curNps - priorNps
			if delta == 0 {
				continue
			}

			direction := MoveUp
			if delta < 0 {
				direction = MoveDown
			}
			movers = append(movers, MoverRecord{
				Title:      title,
				Month:      month,
				CurrentNps: curNps,
				PriorNps:   priorNps,
				Delta:      delta,
				Direction:  direction,
				Responses:  cur.Responses,
			})
		}
	}

	sort.Slice(movers, func(i, j int) bool {
		di, dj := math.Abs(movers[i].Delta), math.Abs(movers[j].Delta)
		if di != dj {
			return di > dj
		}
		if movers[i].Responses != movers[j].Responses {
			return movers[i].Responses > movers[j].Responses
		}
		if movers[i].Title != movers[j].Title {
			return movers[i].Title < movers[j].Title
		}
		return movers[i].Month < movers[j].Month
	})

	if len(movers) > topK {
		movers = movers[:topK]
	}

	s.logger.Info("title movers ranked",
		zap.Int("candidates", len(byTitle)),
		zap.Int("movers", len(movers)))
	return movers, nil
}

// TitleThemeDrivers computes per-month theme share-of-mentions for one title
// and the month-over-month share delta per theme. It is meant for a title
// already identified as a mover, not for the full catalog.
func (s *AnalyticsService) TitleThemeDrivers(ctx context.Context, title, survey string) ([]ThemeDriver, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	themeRows, err := s.storage.GetTitleThemeMonths(dbCtx, title, survey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	totals, err := s.storage.GetTitleMonthTotals(dbCtx, title, survey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	totalByMonth := make(map[string]int, len(totals))
	for _, t := range totals {
		totalByMonth[t.Month] = t.Responses
	}

	tab := s.tables.Current()
	counts := make(map[string]map[string]int)
	for _, row := range themeRows {
		theme, _ := tab.Normalize(row.Theme)
		if counts[row.Month] == nil {
			counts[row.Month] = make(map[string]int)
		}
		counts[row.Month][theme] += row.Count
	}

	share := func(month, theme string) float64 {
		total := totalByMonth[month]
		if total == 0 {
			return 0
		}
		return 100 * float64(counts[month][theme]) / float64(total)
	}

	var drivers []ThemeDriver
	for month, themes := range counts {
		prior := priorMonth(month)
		_, hasPrior := totalByMonth[prior]

		for theme, count := range themes {
			d := ThemeDriver{
				Month:          month,
				Theme:          theme,
				CountResponses: count,
				SharePct:       share(month, theme),
			}
			if hasPrior {
				delta := d.SharePct - share(prior, theme)
				d.MoMShareDelta = &delta
			}
			drivers = append(drivers, d)
		}
	}

	sort.Slice(drivers, func(i, j int) bool {
		if drivers[i].Month != drivers[j].Month {
			return drivers[i].Month < drivers[j].Month
		}
		if drivers[i].SharePct != drivers[j].SharePct {
			return drivers[i].SharePct > drivers[j].SharePct
		}
		return drivers[i].Theme < drivers[j].Theme
	})
	return drivers, nil
}

// TitleTrend returns the monthly NPS breakdown per title for the filter.
func (s *AnalyticsService) TitleTrend(ctx context.Context, f models.ResponseFilter) ([]MonthlyTrend, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	stats, err := s.storage.GetMonthlyTitleStats(dbCtx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	trend := make([]MonthlyTrend, 0, len(stats))
	for _, st := range stats {
		trend = append(trend, MonthlyTrend{
			Month:      st.Month,
			Title:      st.Title,
			Responses:  st.Responses,
			Promoters:  st.Promoters,
			Passives:   st.Passives,
			Detractors: st.Detractors,
			Nps:        npsScore(st.Promoters, st.Detractors, st.Responses),
		})
	}
	return trend, nil
}
