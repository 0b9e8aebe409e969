package mocks

import (
	"context"
	"errors"

	"github.com/godilite/nps-insights/internal/repository/models"
)

// MockAnalyticsRepository is a mock implementation of the AnalyticsRepository
// interface for testing the service layer.
type MockAnalyticsRepository struct {
	CountResponsesFunc       func(ctx context.Context, f models.ResponseFilter) (int, error)
	GetThemeAssignmentsFunc  func(ctx context.Context, f models.ResponseFilter) ([]models.ThemeAssignment, error)
	GetMonthlyTitleStatsFunc func(ctx context.Context, f models.ResponseFilter) ([]models.MonthlyTitleStat, error)
	GetTitleThemeMonthsFunc  func(ctx context.Context, title, survey string) ([]models.TitleThemeMonth, error)
	GetTitleMonthTotalsFunc  func(ctx context.Context, title, survey string) ([]models.MonthTotal, error)
}

func (m *MockAnalyticsRepository) CountResponses(ctx context.Context, f models.ResponseFilter) (int, error) {
	if m.CountResponsesFunc != nil {
		return m.CountResponsesFunc(ctx, f)
	}
	return 0, errors.New("CountResponsesFunc not implemented")
}

func (m *MockAnalyticsRepository) GetThemeAssignments(ctx context.Context, f models.ResponseFilter) ([]models.ThemeAssignment, error) {
	if m.GetThemeAssignmentsFunc != nil {
		return m.GetThemeAssignmentsFunc(ctx, f)
	}
	return nil, errors.New("GetThemeAssignmentsFunc not implemented")
}

func (m *MockAnalyticsRepository) GetMonthlyTitleStats(ctx context.Context, f models.ResponseFilter) ([]models.MonthlyTitleStat, error) {
	if m.GetMonthlyTitleStatsFunc != nil {
		return m.GetMonthlyTitleStatsFunc(ctx, f)
	}
	return nil, errors.New("GetMonthlyTitleStatsFunc not implemented")
}

func (m *MockAnalyticsRepository) GetTitleThemeMonths(ctx context.Context, title, survey string) ([]models.TitleThemeMonth, error) {
	if m.GetTitleThemeMonthsFunc != nil {
		return m.GetTitleThemeMonthsFunc(ctx, title, survey)
	}
	return nil, errors.New("GetTitleThemeMonthsFunc not implemented")
}

func (m *MockAnalyticsRepository) GetTitleMonthTotals(ctx context.Context, title, survey string) ([]models.MonthTotal, error) {
	if m.GetTitleMonthTotalsFunc != nil {
		return m.GetTitleMonthTotalsFunc(ctx, title, survey)
	}
	return nil, errors.New("GetTitleMonthTotalsFunc not implemented")
}
