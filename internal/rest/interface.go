package rest

import (
	"context"
	"time"

	"github.com/godilite/nps-insights/internal/repository/models"
	"github.com/godilite/nps-insights/internal/service"
)

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// AnalyticsService is the aggregate query boundary exposed to the dashboard.
type AnalyticsService interface {
	ThemesAggregate(ctx context.Context, f models.ResponseFilter) ([]service.ThemeAggregate, error)
	ThemesPromoterDetractor(ctx context.Context, f models.ResponseFilter) ([]service.PromoterDetractorSplit, error)
	ThemeHierarchy(ctx context.Context, f models.ResponseFilter, excludeOther bool) ([]service.HierarchyNode, error)
	TopTitleMovers(ctx context.Context, f models.ResponseFilter, minResponses, topK int) ([]service.MoverRecord, error)
	TitleThemeDrivers(ctx context.Context, title, survey string) ([]service.ThemeDriver, error)
	TitleTrend(ctx context.Context, f models.ResponseFilter) ([]service.MonthlyTrend, error)
}

// ResponseStore is the ingestion boundary.
type ResponseStore interface {
	InsertResponse(ctx context.Context, resp models.Response) error
}
