package service

// ThemeAggregate is one theme's statistics over a filtered response set.
// AvgSentiment is nil when no response carrying the theme has a sentiment.
type ThemeAggregate struct {
	Theme          string   `json:"theme"`
	CountResponses int      `json:"count_responses"`
	SharePct       float64  `json:"share_pct"`
	AvgSentiment   *float64 `json:"avg_sentiment"`
	AvgNps         float64  `json:"avg_nps"`
}

// PromoterDetractorSplit compares what promoters and detractors mention.
// Passives do not appear in either count.
type PromoterDetractorSplit struct {
	Theme      string `json:"theme"`
	Promoters  int    `json:"promoters"`
	Detractors int    `json:"detractors"`
}

// HierarchyNode is one main category with its per-theme children.
type HierarchyNode struct {
	Category     string           `json:"category"`
	Count        int              `json:"count"`
	SharePct     float64          `json:"share_pct"`
	AvgNps       float64          `json:"avg_nps"`
	AvgSentiment *float64         `json:"avg_sentiment"`
	Themes       []ThemeAggregate `json:"themes"`
}

// MoverRecord is one title whose NPS moved between consecutive months.
type MoverRecord struct {
	Title      string  `json:"title"`
	Month      string  `json:"month"`
	CurrentNps float64 `json:"nps"`
	PriorNps   float64 `json:"prior_nps"`
	Delta      float64 `json:"mom_delta"`
	Direction  string  `json:"move"`
	Responses  int     `json:"responses"`
}

// ThemeDriver is one theme's share of mentions for a title in one month,
// with the month-over-month share movement. MoMShareDelta is nil for the
// first observed month.
type ThemeDriver struct {
	Month          string   `json:"month"`
	Theme          string   `json:"theme"`
	CountResponses int      `json:"count_responses"`
	SharePct       float64  `json:"share_pct"`
	MoMShareDelta  *float64 `json:"mom_share_delta"`
}

// MonthlyTrend is the per-title monthly NPS breakdown.
type MonthlyTrend struct {
	Month      string  `json:"month"`
	Title      string  `json:"title"`
	Responses  int     `json:"responses"`
	Promoters  int     `json:"promoters"`
	Passives   int     `json:"passives"`
	Detractors int     `json:"detractors"`
	Nps        float64 `json:"nps"`
}

// Mover directions.
const (
	MoveUp   = "up"
	MoveDown = "down"
)
