// Package handler exposes the search service over HTTP.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/service"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/logger"
)

type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc, logger: slog.Default().With("component", "search-handler")}
}

// Register installs the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/indexes", h.Indexes)
	mux.HandleFunc("GET /api/v1/indexes/{name}/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/indexes/{name}/terms", h.Terms)
	mux.HandleFunc("POST /api/v1/indexes/{name}/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search handles GET /api/v1/search?index=&q=&limit=&fields=&op=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	params := r.URL.Query()
	q := params.Get("q")
	if strings.TrimSpace(q) == "" {
		h.writeError(w, apperrors.Invalid("query parameter 'q' is required"))
		return
	}
	limit := 0
	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, apperrors.Invalid("limit must be a positive integer"))
			return
		}
		limit = n
	}
	var fields []string
	if s := params.Get("fields"); s != "" {
		for _, f := range strings.Split(s, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}

	res, err := h.svc.Search(r.Context(), service.Request{
		Index:    params.Get("index"),
		Query:    q,
		Limit:    limit,
		Fields:   fields,
		Operator: params.Get("op"),
	})
	if err != nil {
		log.Warn("search failed", "query", q, "error", err)
		h.writeError(w, err)
		return
	}
	log.Info("search completed",
		"index", res.Index,
		"query", q,
		"parsed", res.Parsed,
		"total_hits", res.TotalHits,
		"returned", len(res.Hits),
		"cache_hit", res.CacheHit,
		"took_ms", res.TookMs,
	)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Indexes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"indexes": h.svc.Names()})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.PathValue("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// Terms handles GET /api/v1/indexes/{name}/terms?field=&top=.
func (h *Handler) Terms(w http.ResponseWriter, r *http.Request) {
	top := 10
	if s := r.URL.Query().Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, apperrors.Invalid("top must be an integer"))
			return
		}
		top = n
	}
	field := r.URL.Query().Get("field")
	if field == "" {
		field = h.svc.DefaultField()
	}
	terms, err := h.svc.Terms(r.PathValue("name"), field, top)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"field": field, "terms": terms})
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.svc.Reload(name); err != nil {
		h.writeError(w, err)
		return
	}
	stats, err := h.svc.Stats(name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	c := h.svc.Cache()
	if c == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := c.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  c.Breaker(),
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate[?index=].
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.svc.Cache() == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.svc.InvalidateCache(r.Context(), r.URL.Query().Get("index"))
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": msg, "code": apperrors.Code(err)})
}
