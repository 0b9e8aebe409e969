package service

import (
	"context"
	"testing"
	"time"

	"github.com/godilite/nps-insights/internal/repository/models"
	"github.com/godilite/nps-insights/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// TestThemeHierarchy tests the two-level category view
func TestThemeHierarchy(t *testing.T) {
	ctx := context.Background()
	filter := models.ResponseFilter{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	// pricing and aboflexibiliteit both map to Price, bezorging to Delivery,
	// overige to Other.
	mockRepo := func() *mocks.MockAnalyticsRepository {
		return &mocks.MockAnalyticsRepository{
			CountResponsesFunc: func(ctx context.Context, f models.ResponseFilter) (int, error) {
				return 10, nil
			},
			GetThemeAssignmentsFunc: func(ctx context.Context, f models.ResponseFilter) ([]models.ThemeAssignment, error) {
				return []models.ThemeAssignment{
					{ResponseID: "r1", Theme: "pricing", NpsScore: 10},
					{ResponseID: "r2", Theme: "pricing", NpsScore: 10},
					{ResponseID: "r3", Theme: "pricing", NpsScore: 10},
					{ResponseID: "r4", Theme: "aboflexibiliteit", NpsScore: 0, Sentiment: ptr(-0.5)},
					{ResponseID: "r5", Theme: "aboflexibiliteit", NpsScore: 0, Sentiment: ptr(-0.7)},
					{ResponseID: "r6", Theme: "bezorging", NpsScore: 4},
					{ResponseID: "r7", Theme: "bezorging", NpsScore: 6},
					{ResponseID: "r8", Theme: "bezorging", NpsScore: 8},
					{ResponseID: "r9", Theme: "bezorging", NpsScore: 2},
					{ResponseID: "r10", Theme: "overige", NpsScore: 7},
				}, nil
			},
		}
	}

	t.Run("category grouping and ordering", func(t *testing.T) {
		service := NewAnalyticsService(mockRepo(), testStore(t), zap.NewNop())
		nodes, err := service.ThemeHierarchy(ctx, filter, false)

		assert.NoError(t, err)
		assert.Len(t, nodes, 3)

		// Price (5) outranks Delivery (4); Other sorts last regardless of size.
		assert.Equal(t, "Price", nodes[0].Category)
		assert.Equal(t, 5, nodes[0].Count)
		assert.Equal(t, "Delivery", nodes[1].Category)
		assert.Equal(t, 4, nodes[1].Count)
		assert.Equal(t, "Other", nodes[2].Category)
		assert.Equal(t, 1, nodes[2].Count)
	})

	t.Run("category count is sum of child counts", func(t *testing.T) {
		service := NewAnalyticsService(mockRepo(), testStore(t), zap.NewNop())
		nodes, err := service.ThemeHierarchy(ctx, filter, false)

		assert.NoError(t, err)
		for _, n := range nodes {
			childSum := 0
			for _, c := range n.Themes {
				childSum += c.CountResponses
			}
			assert.Equal(t, childSum, n.Count, "category %s", n.Category)
		}
	})

	t.Run("averages are count weighted", func(t *testing.T) {
		service := NewAnalyticsService(mockRepo(), testStore(t), zap.NewNop())
		nodes, err := service.ThemeHierarchy(ctx, filter, false)

		assert.NoError(t, err)

		price := nodes[0]
		// (10*3 + 0*2) / 5
		assert.InDelta(t, 6.0, price.AvgNps, 0.0001)
		assert.Equal(t, 50.0, price.SharePct)

		// Only aboflexibiliteit carries sentiment; the weighted mean spans
		// those two responses, not all five.
		assert.NotNil(t, price.AvgSentiment)
		assert.InDelta(t, -0.6, *price.AvgSentiment, 0.0001)

		delivery := nodes[1]
		assert.InDelta(t, 5.0, delivery.AvgNps, 0.0001)
		assert.Nil(t, delivery.AvgSentiment)
	})

	t.Run("children sorted by count then name", func(t *testing.T) {
		service := NewAnalyticsService(mockRepo(), testStore(t), zap.NewNop())
		nodes, err := service.ThemeHierarchy(ctx, filter, false)

		assert.NoError(t, err)
		price := nodes[0]
		assert.Len(t, price.Themes, 2)
		assert.Equal(t, "pricing", price.Themes[0].Theme)
		assert.Equal(t, "aboflexibiliteit", price.Themes[1].Theme)
	})

	t.Run("exclude other removes only the catch-all", func(t *testing.T) {
		service := NewAnalyticsService(mockRepo(), testStore(t), zap.NewNop())
		nodes, err := service.ThemeHierarchy(ctx, filter, true)

		assert.NoError(t, err)
		assert.Len(t, nodes, 2)
		for _, n := range nodes {
			assert.NotEqual(t, "Other", n.Category)
		}
		// Shares still use the full filtered total.
		assert.Equal(t, 50.0, nodes[0].SharePct)
	})

	t.Run("empty result set", func(t *testing.T) {
		emptyRepo := &mocks.MockAnalyticsRepository{
			CountResponsesFunc: func(ctx context.Context, f models.ResponseFilter) (int, error) {
				return 0, nil
			},
			GetThemeAssignmentsFunc: func(ctx context.Context, f models.ResponseFilter) ([]models.ThemeAssignment, error) {
				return nil, nil
			},
		}

		service := NewAnalyticsService(emptyRepo, testStore(t), zap.NewNop())
		nodes, err := service.ThemeHierarchy(ctx, filter, false)

		assert.NoError(t, err)
		assert.Empty(t, nodes)
	})
}
