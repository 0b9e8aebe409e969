package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/godilite/nps-insights/internal/repository"
	"github.com/godilite/nps-insights/internal/repository/models"
)

const testTaxonomyVersion = "2025-09-nl"

func setupTestRepo(t *testing.T) *repository.ResponseRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewResponseRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func seedResponse(t *testing.T, repo *repository.ResponseRepository, id, title string, score int, comment string, created time.Time) {
	t.Helper()
	require.NoError(t, repo.InsertResponse(context.Background(), models.Response{
		ID:         id,
		SurveyName: "nps_monthly",
		TitleText:  title,
		NpsScore:   score,
		Comment:    comment,
		CreatedAt:  created,
	}))
}

func seedEnrichment(t *testing.T, repo *repository.ResponseRepository, id string, themes []string, sentiment *float64) {
	t.Helper()
	scores := make(map[string]float64, len(themes))
	for _, theme := range themes {
		scores[theme] = 0.9
	}
	require.NoError(t, repo.SaveEnrichment(context.Background(), models.Enrichment{
		ResponseID:      id,
		TaxonomyVersion: testTaxonomyVersion,
		Themes:          themes,
		ThemeScores:     scores,
		Sentiment:       sentiment,
		Keywords:        []string{},
		Language:        "nl",
		Status:          models.EnrichmentCompleted,
	}))
}

func TestResponseRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	jan := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)
	sentiment := -0.8

	seedResponse(t, repo, "r1", "De Krant", 2, "bezorging te laat", jan)
	seedResponse(t, repo, "r2", "De Krant", 10, "prima blad", jan)
	seedResponse(t, repo, "r3", "De Krant", 7, "n.v.t.", feb)
	seedResponse(t, repo, "r4", "Magazine X", 9, "goede inhoud", feb)
	seedResponse(t, repo, "r5", "Magazine X", 5, "", feb)

	// r5 stays unclassified; r1 carries two themes so fan-out yields two rows.
	seedEnrichment(t, repo, "r1", []string{"bezorging", "klantenservice"}, &sentiment)
	seedEnrichment(t, repo, "r2", []string{"content_kwaliteit"}, nil)
	seedEnrichment(t, repo, "r3", []string{"overige"}, nil)
	seedEnrichment(t, repo, "r4", []string{"content_kwaliteit"}, nil)

	fullRange := models.ResponseFilter{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("CountResponses counts classified and unclassified", func(t *testing.T) {
		count, err := repo.CountResponses(ctx, fullRange)
		require.NoError(t, err)
		require.Equal(t, 5, count)
	})

	t.Run("CountResponses respects bucket filter", func(t *testing.T) {
		f := fullRange
		f.Bucket = models.BucketDetractor
		count, err := repo.CountResponses(ctx, f)
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("CountResponses respects title filter", func(t *testing.T) {
		f := fullRange
		f.Title = "Magazine X"
		count, err := repo.CountResponses(ctx, f)
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("GetThemeAssignments fans out multi-theme responses", func(t *testing.T) {
		rows, err := repo.GetThemeAssignments(ctx, fullRange)
		require.NoError(t, err)
		// r1 contributes two rows, r2/r3/r4 one each, r5 none.
		require.Len(t, rows, 5)

		var r1Themes []string
		for _, row := range rows {
			if row.ResponseID == "r1" {
				r1Themes = append(r1Themes, row.Theme)
				require.NotNil(t, row.Sentiment)
				require.Equal(t, -0.8, *row.Sentiment)
				require.Equal(t, 2, row.NpsScore)
			}
		}
		require.ElementsMatch(t, []string{"bezorging", "klantenservice"}, r1Themes)
	})

	t.Run("GetMonthlyTitleStats buckets per month", func(t *testing.T) {
		stats, err := repo.GetMonthlyTitleStats(ctx, fullRange)
		require.NoError(t, err)
		require.Len(t, stats, 3)

		var krantJan *models.MonthlyTitleStat
		for i := range stats {
			if stats[i].Title == "De Krant" && stats[i].Month == "2025-01" {
				krantJan = &stats[i]
			}
		}
		require.NotNil(t, krantJan)
		require.Equal(t, 2, krantJan.Responses)
		require.Equal(t, 1, krantJan.Promoters)
		require.Equal(t, 0, krantJan.Passives)
		require.Equal(t, 1, krantJan.Detractors)
	})

	t.Run("GetTitleThemeMonths groups mentions per month", func(t *testing.T) {
		rows, err := repo.GetTitleThemeMonths(ctx, "De Krant", "")
		require.NoError(t, err)
		require.Len(t, rows, 4)
		require.Equal(t, "2025-01", rows[0].Month)
	})

	t.Run("GetTitleMonthTotals counts all responses", func(t *testing.T) {
		totals, err := repo.GetTitleMonthTotals(ctx, "Magazine X", "")
		require.NoError(t, err)
		require.Len(t, totals, 1)
		require.Equal(t, "2025-02", totals[0].Month)
		// Unclassified r5 still counts toward the monthly total.
		require.Equal(t, 2, totals[0].Responses)
	})

	t.Run("survey filter narrows title queries", func(t *testing.T) {
		totals, err := repo.GetTitleMonthTotals(ctx, "Magazine X", "another_survey")
		require.NoError(t, err)
		require.Empty(t, totals)
	})
}

func TestResponseRepository_Enrichment(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	created := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	seedResponse(t, repo, "r1", "De Krant", 2, "te laat", created)
	seedResponse(t, repo, "r2", "De Krant", 9, "prima", created.Add(time.Hour))

	t.Run("new responses are unclassified", func(t *testing.T) {
		backlog, err := repo.GetUnclassifiedResponses(ctx, testTaxonomyVersion, 3, 10)
		require.NoError(t, err)
		require.Len(t, backlog, 2)
		// Oldest first.
		require.Equal(t, "r1", backlog[0].ID)
		require.Equal(t, "te laat", backlog[0].Comment)
		require.Equal(t, created, backlog[0].CreatedAt)
	})

	t.Run("completed enrichment leaves the backlog", func(t *testing.T) {
		seedEnrichment(t, repo, "r1", []string{"bezorging"}, nil)

		backlog, err := repo.GetUnclassifiedResponses(ctx, testTaxonomyVersion, 3, 10)
		require.NoError(t, err)
		require.Len(t, backlog, 1)
		require.Equal(t, "r2", backlog[0].ID)
	})

	t.Run("taxonomy version change re-queues everything", func(t *testing.T) {
		backlog, err := repo.GetUnclassifiedResponses(ctx, "2026-01-nl", 3, 10)
		require.NoError(t, err)
		require.Len(t, backlog, 2)
	})

	t.Run("failed responses stay in the backlog", func(t *testing.T) {
		require.NoError(t, repo.MarkEnrichmentFailed(ctx, "r2", testTaxonomyVersion))

		backlog, err := repo.GetUnclassifiedResponses(ctx, testTaxonomyVersion, 3, 10)
		require.NoError(t, err)
		require.Len(t, backlog, 1)
		require.Equal(t, "r2", backlog[0].ID)
	})

	t.Run("save after failure resets attempts", func(t *testing.T) {
		require.NoError(t, repo.MarkEnrichmentFailed(ctx, "r2", testTaxonomyVersion))
		seedEnrichment(t, repo, "r2", []string{"content_kwaliteit"}, nil)

		backlog, err := repo.GetUnclassifiedResponses(ctx, testTaxonomyVersion, 3, 10)
		require.NoError(t, err)
		require.Empty(t, backlog)
	})

	t.Run("limit caps the batch", func(t *testing.T) {
		seedResponse(t, repo, "r3", "De Krant", 5, "meh", created.Add(2*time.Hour))
		seedResponse(t, repo, "r4", "De Krant", 6, "tja", created.Add(3*time.Hour))

		backlog, err := repo.GetUnclassifiedResponses(ctx, testTaxonomyVersion, 3, 1)
		require.NoError(t, err)
		require.Len(t, backlog, 1)
		require.Equal(t, "r3", backlog[0].ID)
	})

	t.Run("exhausted failures become terminal", func(t *testing.T) {
		// r3 is older than r4, so while it is still retryable it fills
		// every one-slot batch.
		require.NoError(t, repo.MarkEnrichmentFailed(ctx, "r3", testTaxonomyVersion))
		require.NoError(t, repo.MarkEnrichmentFailed(ctx, "r3", testTaxonomyVersion))

		backlog, err := repo.GetUnclassifiedResponses(ctx, testTaxonomyVersion, 3, 1)
		require.NoError(t, err)
		require.Len(t, backlog, 1)
		require.Equal(t, "r3", backlog[0].ID)

		require.NoError(t, repo.MarkEnrichmentFailed(ctx, "r3", testTaxonomyVersion))

		// Three failures reach the cap; the batch slot goes to r4.
		backlog, err = repo.GetUnclassifiedResponses(ctx, testTaxonomyVersion, 3, 1)
		require.NoError(t, err)
		require.Len(t, backlog, 1)
		require.Equal(t, "r4", backlog[0].ID)
	})

	t.Run("taxonomy version change restarts the attempts count", func(t *testing.T) {
		require.NoError(t, repo.MarkEnrichmentFailed(ctx, "r3", "2026-01-nl"))

		backlog, err := repo.GetUnclassifiedResponses(ctx, "2026-01-nl", 3, 10)
		require.NoError(t, err)
		require.Len(t, backlog, 4)
		require.Equal(t, "r3", backlog[2].ID)
	})
}
