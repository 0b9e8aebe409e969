package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/godilite/nps-insights/internal/repository/models"
)

// ResponseRepository stores survey responses and their classifier enrichments
// in sqlite. Theme fan-out (one row per response×theme) happens in SQL via
// json_each over the stored theme array.
type ResponseRepository struct {
	db *sql.DB
}

func NewResponseRepository(db *sql.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS nps_response (
	id          TEXT PRIMARY KEY,
	survey_name TEXT NOT NULL,
	title_text  TEXT NOT NULL,
	nps_score   INTEGER NOT NULL CHECK (nps_score BETWEEN 0 AND 10),
	comment     TEXT,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_response_created ON nps_response (created_at);
CREATE INDEX IF NOT EXISTS idx_response_title ON nps_response (title_text);

CREATE TABLE IF NOT EXISTS nps_enrichment (
	response_id      TEXT PRIMARY KEY REFERENCES nps_response(id),
	taxonomy_version TEXT NOT NULL,
	themes           TEXT NOT NULL DEFAULT '[]',
	theme_scores     TEXT NOT NULL DEFAULT '{}',
	sentiment        REAL,
	keywords         TEXT NOT NULL DEFAULT '[]',
	language         TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	attempts         INTEGER NOT NULL DEFAULT 0,
	updated_at       TEXT NOT NULL
);
`

// EnsureSchema creates the tables if they do not exist yet.
func (r *ResponseRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertResponse stores one ingested response.
func (r *ResponseRepository) InsertResponse(ctx context.Context, resp models.Response) error {
	const query = `
		INSERT INTO nps_response (id, survey_name, title_text, nps_score, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		resp.ID, resp.SurveyName, resp.TitleText, resp.NpsScore, resp.Comment,
		resp.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

// filterClause builds the WHERE fragment for a response filter against the
// aliased nps_response table.
func filterClause(f models.ResponseFilter) (string, []any) {
	conds := []string{"r.created_at >= ?", "r.created_at <= ?"}
	args := []any{
		f.Start.UTC().Format(time.RFC3339),
		f.End.UTC().Format(time.RFC3339),
	}
	if f.Survey != "" {
		conds = append(conds, "r.survey_name = ?")
		args = append(args, f.Survey)
	}
	if f.Title != "" {
		conds = append(conds, "r.title_text = ?")
		args = append(args, f.Title)
	}
	switch f.Bucket {
	case models.BucketPromoter:
		conds = append(conds, "r.nps_score >= 9")
	case models.BucketPassive:
		conds = append(conds, "r.nps_score BETWEEN 7 AND 8")
	case models.BucketDetractor:
		conds = append(conds, "r.nps_score <= 6")
	}
	return strings.Join(conds, " AND "), args
}

// CountResponses returns the raw response total for a filter. Every response
// counts, classified or not.
func (r *ResponseRepository) CountResponses(ctx context.Context, f models.ResponseFilter) (int, error) {
	where, args := filterClause(f)
	query := `SELECT COUNT(*) FROM nps_response AS r WHERE ` + where

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query CountResponses: %w", err)
	}
	return count, nil
}

// GetThemeAssignments returns one row per (response, theme) pair for completed
// enrichments matching the filter.
func (r *ResponseRepository) GetThemeAssignments(ctx context.Context, f models.ResponseFilter) ([]models.ThemeAssignment, error) {
	where, args := filterClause(f)
	query := `
		SELECT r.id, j.value, r.nps_score, e.sentiment
		FROM nps_response AS r
		JOIN nps_enrichment AS e ON e.response_id = r.id AND e.status = 'completed',
		json_each(e.themes) AS j
		WHERE ` + where + `
		ORDER BY r.id, j.value
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetThemeAssignments: %w", err)
	}
	defer rows.Close()

	var results []models.ThemeAssignment
	for rows.Next() {
		var a models.ThemeAssignment
		var sentiment sql.NullFloat64
		if err := rows.Scan(&a.ResponseID, &a.Theme, &a.NpsScore, &sentiment); err != nil {
			return nil, fmt.Errorf("scan GetThemeAssignments row: %w", err)
		}
		if sentiment.Valid {
			v := sentiment.Float64
			a.Sentiment = &v
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetThemeAssignments: %w", err)
	}
	return results, nil
}

// GetMonthlyTitleStats aggregates per-title monthly NPS buckets in SQL.
func (r *ResponseRepository) GetMonthlyTitleStats(ctx context.Context, f models.ResponseFilter) ([]models.MonthlyTitleStat, error) {
	where, args := filterClause(f)
	query := `
		SELECT
			strftime('%Y-%m', r.created_at) AS month,
			r.title_text,
			COUNT(*) AS responses,
			SUM(CASE WHEN r.nps_score >= 9 THEN 1 ELSE 0 END) AS promoters,
			SUM(CASE WHEN r.nps_score BETWEEN 7 AND 8 THEN 1 ELSE 0 END) AS passives,
			SUM(CASE WHEN r.nps_score <= 6 THEN 1 ELSE 0 END) AS detractors
		FROM nps_response AS r
		WHERE ` + where + ` AND r.title_text <> ''
		GROUP BY month, r.title_text
		ORDER BY month, r.title_text
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetMonthlyTitleStats: %w", err)
	}
	defer rows.Close()

	var results []models.MonthlyTitleStat
	for rows.Next() {
		var s models.MonthlyTitleStat
		if err := rows.Scan(&s.Month, &s.Title, &s.Responses, &s.Promoters, &s.Passives, &s.Detractors); err != nil {
			return nil, fmt.Errorf("scan GetMonthlyTitleStats row: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetMonthlyTitleStats: %w", err)
	}
	return results, nil
}

// GetTitleThemeMonths returns per-month theme mention counts for one title.
func (r *ResponseRepository) GetTitleThemeMonths(ctx context.Context, title, survey string) ([]models.TitleThemeMonth, error) {
	conds := []string{"r.title_text = ?"}
	args := []any{title}
	if survey != "" {
		conds = append(conds, "r.survey_name = ?")
		args = append(args, survey)
	}

	query := `
		SELECT strftime('%Y-%m', r.created_at) AS month, j.value, COUNT(*)
		FROM nps_response AS r
		JOIN nps_enrichment AS e ON e.response_id = r.id AND e.status = 'completed',
		json_each(e.themes) AS j
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY month, j.value
		ORDER BY month, j.value
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetTitleThemeMonths: %w", err)
	}
	defer rows.Close()

	var results []models.TitleThemeMonth
	for rows.Next() {
		var t models.TitleThemeMonth
		if err := rows.Scan(&t.Month, &t.Theme, &t.Count); err != nil {
			return nil, fmt.Errorf("scan GetTitleThemeMonths row: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetTitleThemeMonths: %w", err)
	}
	return results, nil
}

// GetTitleMonthTotals returns the total response count per month for one title.
func (r *ResponseRepository) GetTitleMonthTotals(ctx context.Context, title, survey string) ([]models.MonthTotal, error) {
	conds := []string{"r.title_text = ?"}
	args := []any{title}
	if survey != "" {
		conds = append(conds, "r.survey_name = ?")
		args = append(args, survey)
	}

	query := `
		SELECT strftime('%Y-%m', r.created_at) AS month, COUNT(*)
		FROM nps_response AS r
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY month
		ORDER BY month
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetTitleMonthTotals: %w", err)
	}
	defer rows.Close()

	var results []models.MonthTotal
	for rows.Next() {
		var t models.MonthTotal
		if err := rows.Scan(&t.Month, &t.Responses); err != nil {
			return nil, fmt.Errorf("scan GetTitleMonthTotals row: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetTitleMonthTotals: %w", err)
	}
	return results, nil
}

// GetUnclassifiedResponses returns responses with no completed enrichment
// under the given taxonomy version, oldest first. Failed responses are
// re-selected only while their attempts count stays below maxAttempts;
// once the cap is reached they become terminal and stop occupying batch
// slots that newer responses are waiting for.
func (r *ResponseRepository) GetUnclassifiedResponses(ctx context.Context, taxonomyVersion string, maxAttempts, limit int) ([]models.Response, error) {
	const query = `
		SELECT r.id, r.survey_name, r.title_text, r.nps_score, COALESCE(r.comment, ''), r.created_at
		FROM nps_response AS r
		LEFT JOIN nps_enrichment AS e ON e.response_id = r.id
		WHERE e.response_id IS NULL
		   OR e.taxonomy_version <> ?
		   OR (e.status = 'failed' AND e.attempts < ?)
		ORDER BY r.created_at
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, taxonomyVersion, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query GetUnclassifiedResponses: %w", err)
	}
	defer rows.Close()

	var results []models.Response
	for rows.Next() {
		var resp models.Response
		var createdAt string
		if err := rows.Scan(&resp.ID, &resp.SurveyName, &resp.TitleText, &resp.NpsScore, &resp.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scan GetUnclassifiedResponses row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			resp.CreatedAt = ts
		}
		results = append(results, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetUnclassifiedResponses: %w", err)
	}
	return results, nil
}

// SaveEnrichment upserts a completed classification result.
func (r *ResponseRepository) SaveEnrichment(ctx context.Context, e models.Enrichment) error {
	themes, err := json.Marshal(e.Themes)
	if err != nil {
		return fmt.Errorf("marshal themes: %w", err)
	}
	scores, err := json.Marshal(e.ThemeScores)
	if err != nil {
		return fmt.Errorf("marshal theme scores: %w", err)
	}
	keywords, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}

	var sentiment sql.NullFloat64
	if e.Sentiment != nil {
		sentiment = sql.NullFloat64{Float64: *e.Sentiment, Valid: true}
	}

	const query = `
		INSERT INTO nps_enrichment
			(response_id, taxonomy_version, themes, theme_scores, sentiment, keywords, language, status, attempts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(response_id) DO UPDATE SET
			taxonomy_version = excluded.taxonomy_version,
			themes = excluded.themes,
			theme_scores = excluded.theme_scores,
			sentiment = excluded.sentiment,
			keywords = excluded.keywords,
			language = excluded.language,
			status = excluded.status,
			attempts = 0,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ResponseID, e.TaxonomyVersion, string(themes), string(scores), sentiment,
		string(keywords), e.Language, models.EnrichmentCompleted,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save enrichment: %w", err)
	}
	return nil
}

// MarkEnrichmentFailed records a classification failure so the response is
// excluded from theme aggregates but remains visible for retry. A taxonomy
// version change restarts the attempts count so the response gets a fresh
// retry budget under the new taxonomy.
func (r *ResponseRepository) MarkEnrichmentFailed(ctx context.Context, responseID, taxonomyVersion string) error {
	const query = `
		INSERT INTO nps_enrichment (response_id, taxonomy_version, status, attempts, updated_at)
		VALUES (?, ?, 'failed', 1, ?)
		ON CONFLICT(response_id) DO UPDATE SET
			status = 'failed',
			attempts = CASE
				WHEN nps_enrichment.taxonomy_version = excluded.taxonomy_version
				THEN nps_enrichment.attempts + 1
				ELSE 1
			END,
			taxonomy_version = excluded.taxonomy_version,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, responseID, taxonomyVersion,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark enrichment failed: %w", err)
	}
	return nil
}
