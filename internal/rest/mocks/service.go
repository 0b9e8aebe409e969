package mocks

import (
	"context"
	"errors"

	"github.com/godilite/nps-insights/internal/repository/models"
	"github.com/godilite/nps-insights/internal/service"
)

// MockAnalyticsService is a mock implementation of the AnalyticsService
// interface for testing the handler layer. It uses function-based mocking for
// flexibility.
type MockAnalyticsService struct {
	ThemesAggregateFunc         func(ctx context.Context, f models.ResponseFilter) ([]service.ThemeAggregate, error)
	ThemesPromoterDetractorFunc func(ctx context.Context, f models.ResponseFilter) ([]service.PromoterDetractorSplit, error)
	ThemeHierarchyFunc          func(ctx context.Context, f models.ResponseFilter, excludeOther bool) ([]service.HierarchyNode, error)
	TopTitleMoversFunc          func(ctx context.Context, f models.ResponseFilter, minResponses, topK int) ([]service.MoverRecord, error)
	TitleThemeDriversFunc       func(ctx context.Context, title, survey string) ([]service.ThemeDriver, error)
	TitleTrendFunc              func(ctx context.Context, f models.ResponseFilter) ([]service.MonthlyTrend, error)
}

func (m *MockAnalyticsService) ThemesAggregate(ctx context.Context, f models.ResponseFilter) ([]service.ThemeAggregate, error) {
	if m.ThemesAggregateFunc != nil {
		return m.ThemesAggregateFunc(ctx, f)
	}
	return nil, errors.New("ThemesAggregateFunc not implemented")
}

func (m *MockAnalyticsService) ThemesPromoterDetractor(ctx context.Context, f models.ResponseFilter) ([]service.PromoterDetractorSplit, error) {
	if m.ThemesPromoterDetractorFunc != nil {
		return m.ThemesPromoterDetractorFunc(ctx, f)
	}
	return nil, errors.New("ThemesPromoterDetractorFunc not implemented")
}

func (m *MockAnalyticsService) ThemeHierarchy(ctx context.Context, f models.ResponseFilter, excludeOther bool) ([]service.HierarchyNode, error) {
	if m.ThemeHierarchyFunc != nil {
		return m.ThemeHierarchyFunc(ctx, f, excludeOther)
	}
	return nil, errors.New("ThemeHierarchyFunc not implemented")
}

func (m *MockAnalyticsService) TopTitleMovers(ctx context.Context, f models.ResponseFilter, minResponses, topK int) ([]service.MoverRecord, error) {
	if m.TopTitleMoversFunc != nil {
		return m.TopTitleMoversFunc(ctx, f, minResponses, topK)
	}
	return nil, errors.New("TopTitleMoversFunc not implemented")
}

func (m *MockAnalyticsService) TitleThemeDrivers(ctx context.Context, title, survey string) ([]service.ThemeDriver, error) {
	if m.TitleThemeDriversFunc != nil {
		return m.TitleThemeDriversFunc(ctx, title, survey)
	}
	return nil, errors.New("TitleThemeDriversFunc not implemented")
}

func (m *MockAnalyticsService) TitleTrend(ctx context.Context, f models.ResponseFilter) ([]service.MonthlyTrend, error) {
	if m.TitleTrendFunc != nil {
		return m.TitleTrendFunc(ctx, f)
	}
	return nil, errors.New("TitleTrendFunc not implemented")
}

// MockResponseStore is a mock implementation of the ResponseStore interface.
type MockResponseStore struct {
	InsertResponseFunc func(ctx context.Context, resp models.Response) error
}

func (m *MockResponseStore) InsertResponse(ctx context.Context, resp models.Response) error {
	if m.InsertResponseFunc != nil {
		return m.InsertResponseFunc(ctx, resp)
	}
	return errors.New("InsertResponseFunc not implemented")
}
