package models

import "time"

// NPS bucket names as used in filters and stored queries.
const (
	BucketPromoter  = "promoter"
	BucketPassive   = "passive"
	BucketDetractor = "detractor"
)

// Enrichment processing states.
const (
	EnrichmentCompleted = "completed"
	EnrichmentFailed    = "failed"
)

// Response is one survey answer. Immutable once ingested.
type Response struct {
	ID         string
	SurveyName string
	TitleText  string
	NpsScore   int
	Comment    string
	CreatedAt  time.Time
}

// Enrichment is the cached classifier output for one response under one
// taxonomy version.
type Enrichment struct {
	ResponseID      string
	TaxonomyVersion string
	Themes          []string
	ThemeScores     map[string]float64
	Sentiment       *float64
	Keywords        []string
	Language        string
	Status          string
	Attempts        int
}

// ResponseFilter narrows a response set. Zero-valued fields are ignored
// except Start/End, which are always applied.
type ResponseFilter struct {
	Start  time.Time
	End    time.Time
	Survey string
	Title  string
	Bucket string
}

// ThemeAssignment is one (response, theme) pair after multi-label fan-out,
// carrying the response attributes the aggregation engine needs.
type ThemeAssignment struct {
	ResponseID string
	Theme      string
	NpsScore   int
	Sentiment  *float64
}

// MonthlyTitleStat is the per-title, per-month NPS breakdown.
type MonthlyTitleStat struct {
	Month      string // YYYY-MM
	Title      string
	Responses  int
	Promoters  int
	Passives   int
	Detractors int
}

// TitleThemeMonth is one theme's mention count for a title in one month.
type TitleThemeMonth struct {
	Month string
	Theme string
	Count int
}

// MonthTotal is the total response count for a title in one month.
type MonthTotal struct {
	Month     string
	Responses int
}
