package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the API routes.
func NewRouter(h *Handlers) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/themes/aggregate", h.GetThemesAggregate).Methods(http.MethodGet)
	v1.HandleFunc("/themes/promoter-detractor", h.GetThemesPromoterDetractor).Methods(http.MethodGet)
	v1.HandleFunc("/themes/hierarchy", h.GetThemeHierarchy).Methods(http.MethodGet)
	v1.HandleFunc("/movers/titles", h.GetTopTitleMovers).Methods(http.MethodGet)
	v1.HandleFunc("/movers/titles/{title}/themes", h.GetTitleThemeDrivers).Methods(http.MethodGet)
	v1.HandleFunc("/trends/titles", h.GetTitleTrend).Methods(http.MethodGet)
	v1.HandleFunc("/responses", h.IngestResponse).Methods(http.MethodPost)
	v1.HandleFunc("/reference/reload", h.ReloadReference).Methods(http.MethodPost)

	return r
}
