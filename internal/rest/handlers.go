package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/godilite/nps-insights/internal/repository/models"
	"github.com/godilite/nps-insights/internal/service"
	"github.com/godilite/nps-insights/internal/taxonomy"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheDuration  = 10 * time.Minute
	defaultRequestTimeout = 10 * time.Second

	dateLayout = "2006-01-02"
)

type cacheKeyPrefix string

const (
	cacheKeyAggregate         cacheKeyPrefix = "rest:themes_aggregate"
	cacheKeyPromoterDetractor cacheKeyPrefix = "rest:themes_promoter_detractor"
	cacheKeyHierarchy         cacheKeyPrefix = "rest:theme_hierarchy"
	cacheKeyMovers            cacheKeyPrefix = "rest:top_title_movers"
	cacheKeyDrivers           cacheKeyPrefix = "rest:title_theme_drivers"
	cacheKeyTrend             cacheKeyPrefix = "rest:title_trend"
)

// Handlers serves the read-only aggregate query API plus response ingestion
// and reference-data reload.
type Handlers struct {
	analytics    AnalyticsService
	responses    ResponseStore
	tables       *taxonomy.Store
	taxonomyPath string
	cache        Cacher
	logger       *zap.Logger
	sfGroup      singleflight.Group
	cacheTTL     time.Duration
}

func NewHandlers(analytics AnalyticsService, responses ResponseStore, tables *taxonomy.Store,
	taxonomyPath string, cache Cacher, logger *zap.Logger, ttl time.Duration) *Handlers {
	if analytics == nil {
		panic("nil AnalyticsService provided to NewHandlers")
	}
	if tables == nil {
		panic("nil taxonomy store provided to NewHandlers")
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		analytics:    analytics,
		responses:    responses,
		tables:       tables,
		taxonomyPath: taxonomyPath,
		cache:        cache,
		logger:       logger.Named("rest-handler"),
		cacheTTL:     ttl,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) handleError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("request timeout", zap.String("op", op))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, service.ErrStorageFailure):
		h.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, retry later")
	default:
		h.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s failed", op))
	}
}

// parseFilter validates the shared query parameters. The start and end dates
// are required; end is inclusive of the whole day.
func parseFilter(r *http.Request) (models.ResponseFilter, error) {
	q := r.URL.Query()

	startStr, endStr := q.Get("start"), q.Get("end")
	if startStr == "" || endStr == "" {
		return models.ResponseFilter{}, errors.New("start and end dates are required (YYYY-MM-DD)")
	}
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return models.ResponseFilter{}, fmt.Errorf("invalid start date %q", startStr)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return models.ResponseFilter{}, fmt.Errorf("invalid end date %q", endStr)
	}
	if end.Before(start) {
		return models.ResponseFilter{}, errors.New("end date must not be before start date")
	}

	bucket := q.Get("nps_bucket")
	switch bucket {
	case "", models.BucketPromoter, models.BucketPassive, models.BucketDetractor:
	default:
		return models.ResponseFilter{}, fmt.Errorf("invalid nps_bucket %q", bucket)
	}

	return models.ResponseFilter{
		Start:  start,
		End:    end.Add(24*time.Hour - time.Nanosecond),
		Survey: q.Get("survey"),
		Title:  q.Get("title"),
		Bucket: bucket,
	}, nil
}

func filterKey(prefix cacheKeyPrefix, f models.ResponseFilter, extra string) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s:%s",
		prefix,
		f.Start.UTC().Format(dateLayout),
		f.End.UTC().Format(dateLayout),
		f.Survey, f.Title, f.Bucket, extra)
}

// GetThemesAggregate handles GET /v1/themes/aggregate.
func (h *Handlers) GetThemesAggregate(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	result, err := FindAndCache(ctx, h.cache, &h.sfGroup, filterKey(cacheKeyAggregate, f, ""), h.cacheTTL, h.logger,
		func(fetchCtx context.Context) ([]service.ThemeAggregate, error) {
			return h.analytics.ThemesAggregate(fetchCtx, f)
		})
	if err != nil {
		h.handleError(w, "themes_aggregate", err)
		return
	}
	if result == nil {
		result = []service.ThemeAggregate{}
	}
	writeJSON(w, http.StatusOK, result)
}

// GetThemesPromoterDetractor handles GET /v1/themes/promoter-detractor.
func (h *Handlers) GetThemesPromoterDetractor(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	result, err := FindAndCache(ctx, h.cache, &h.sfGroup, filterKey(cacheKeyPromoterDetractor, f, ""), h.cacheTTL, h.logger,
		func(fetchCtx context.Context) ([]service.PromoterDetractorSplit, error) {
			return h.analytics.ThemesPromoterDetractor(fetchCtx, f)
		})
	if err != nil {
		h.handleError(w, "themes_promoter_detractor", err)
		return
	}
	if result == nil {
		result = []service.PromoterDetractorSplit{}
	}
	writeJSON(w, http.StatusOK, result)
}

// GetThemeHierarchy handles GET /v1/themes/hierarchy. The exclude_other flag
// removes the catch-all category without reordering the rest.
func (h *Handlers) GetThemeHierarchy(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	excludeOther, _ := strconv.ParseBool(r.URL.Query().Get("exclude_other"))

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	key := filterKey(cacheKeyHierarchy, f, strconv.FormatBool(excludeOther))
	result, err := FindAndCache(ctx, h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(fetchCtx context.Context) ([]service.HierarchyNode, error) {
			return h.analytics.ThemeHierarchy(fetchCtx, f, excludeOther)
		})
	if err != nil {
		h.handleError(w, "theme_hierarchy", err)
		return
	}
	if result == nil {
		result = []service.HierarchyNode{}
	}
	writeJSON(w, http.StatusOK, result)
}

// GetTopTitleMovers handles GET /v1/movers/titles.
func (h *Handlers) GetTopTitleMovers(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	minResponses := service.DefaultMinResponses
	if v := q.Get("min_responses"); v != "" {
		minResponses, err = strconv.Atoi(v)
		if err != nil || minResponses < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid min_responses %q", v))
			return
		}
	}
	topK := service.DefaultTopMovers
	if v := q.Get("top_k"); v != "" {
		topK, err = strconv.Atoi(v)
		if err != nil || topK < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid top_k %q", v))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	key := filterKey(cacheKeyMovers, f, fmt.Sprintf("%d:%d", minResponses, topK))
	result, err := FindAndCache(ctx, h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(fetchCtx context.Context) ([]service.MoverRecord, error) {
			return h.analytics.TopTitleMovers(fetchCtx, f, minResponses, topK)
		})
	if err != nil {
		h.handleError(w, "top_title_movers", err)
		return
	}
	if result == nil {
		result = []service.MoverRecord{}
	}
	writeJSON(w, http.StatusOK, result)
}

// GetTitleThemeDrivers handles GET /v1/movers/titles/{title}/themes.
func (h *Handlers) GetTitleThemeDrivers(w http.ResponseWriter, r *http.Request) {
	title := mux.Vars(r)["title"]
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	survey := r.URL.Query().Get("survey")

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	key := fmt.Sprintf("%s:%s:%s", cacheKeyDrivers, title, survey)
	result, err := FindAndCache(ctx, h.cache, &h.sfGroup, key, h.cacheTTL, h.logger,
		func(fetchCtx context.Context) ([]service.ThemeDriver, error) {
			return h.analytics.TitleThemeDrivers(fetchCtx, title, survey)
		})
	if err != nil {
		h.handleError(w, "title_theme_drivers", err)
		return
	}
	if result == nil {
		result = []service.ThemeDriver{}
	}
	writeJSON(w, http.StatusOK, result)
}

// GetTitleTrend handles GET /v1/trends/titles.
func (h *Handlers) GetTitleTrend(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	result, err := FindAndCache(ctx, h.cache, &h.sfGroup, filterKey(cacheKeyTrend, f, ""), h.cacheTTL, h.logger,
		func(fetchCtx context.Context) ([]service.MonthlyTrend, error) {
			return h.analytics.TitleTrend(fetchCtx, f)
		})
	if err != nil {
		h.handleError(w, "title_trend", err)
		return
	}
	if result == nil {
		result = []service.MonthlyTrend{}
	}
	writeJSON(w, http.StatusOK, result)
}

// IngestRequest is the body for POST /v1/responses.
type IngestRequest struct {
	ID         string    `json:"id"`
	SurveyName string    `json:"survey_name"`
	TitleText  string    `json:"title_text"`
	NpsScore   int       `json:"nps_score"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// IngestResponse handles POST /v1/responses. Classification happens later in
// the enrichment worker; ingestion never waits on the classifier.
func (h *Handlers) IngestResponse(w http.ResponseWriter, r *http.Request) {
	if h.responses == nil {
		writeError(w, http.StatusNotImplemented, "ingestion not configured")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SurveyName == "" {
		writeError(w, http.StatusBadRequest, "survey_name is required")
		return
	}
	if req.NpsScore < 0 || req.NpsScore > 10 {
		writeError(w, http.StatusBadRequest, "nps_score must be between 0 and 10")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	err := h.responses.InsertResponse(r.Context(), models.Response{
		ID:         req.ID,
		SurveyName: req.SurveyName,
		TitleText:  req.TitleText,
		NpsScore:   req.NpsScore,
		Comment:    req.Comment,
		CreatedAt:  req.CreatedAt,
	})
	if err != nil {
		h.handleError(w, "ingest_response", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// ReloadReference handles POST /v1/reference/reload. The new table replaces
// the old one atomically; in-flight queries keep the snapshot they started
// with.
func (h *Handlers) ReloadReference(w http.ResponseWriter, r *http.Request) {
	if h.taxonomyPath == "" {
		writeError(w, http.StatusNotImplemented, "no reference data file configured")
		return
	}

	tab, err := taxonomy.LoadFile(h.taxonomyPath)
	if err != nil {
		h.logger.Error("reference reload failed", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.tables.Swap(tab)
	h.logger.Info("reference data reloaded", zap.String("version", tab.Version))
	writeJSON(w, http.StatusOK, map[string]string{"version": tab.Version})
}
