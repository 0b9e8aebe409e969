package service

import (
	"context"

	"github.com/godilite/nps-insights/internal/repository/models"
)

// AnalyticsRepository defines the database operations the analytics engines
// consume.
type AnalyticsRepository interface {
	CountResponses(ctx context.Context, f models.ResponseFilter) (int, error)
	GetThemeAssignments(ctx context.Context, f models.ResponseFilter) ([]models.ThemeAssignment, error)
	GetMonthlyTitleStats(ctx context.Context, f models.ResponseFilter) ([]models.MonthlyTitleStat, error)
	GetTitleThemeMonths(ctx context.Context, title, survey string) ([]models.TitleThemeMonth, error)
	GetTitleMonthTotals(ctx context.Context, title, survey string) ([]models.MonthTotal, error)
}
