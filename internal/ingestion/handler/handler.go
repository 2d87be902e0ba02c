// Package handler exposes the ingest API: POST /api/v1/documents queues
// record additions and deletions for the indexer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/logger"
)

const maxBodyBytes = 32 << 20

// Ingester is satisfied by *publisher.Publisher.
type Ingester interface {
	Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
}

type Handler struct {
	ingester Ingester
	logger   *slog.Logger
}

func New(ing Ingester) *Handler {
	return &Handler{
		ingester: ing,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

// Ingest handles POST /api/v1/documents. A request without a Content-Type
// is read as JSON; any other media type is refused.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			h.writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "body must be application/json")
			return
		}
	}
	var req ingestion.IngestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	resp, err := h.ingester.Ingest(r.Context(), &req)
	if err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"code":   apperrors.Code(apperrors.ErrInvalidInput),
				"fields": verr.Fields,
			})
			return
		}
		status := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed", "index", req.Index, "error", err, "status_code", status)
		h.writeError(w, status, apperrors.Code(err), "ingestion failed")
		return
	}
	log.Info("documents queued",
		"index", resp.Index,
		"added", resp.Added,
		"deleted", resp.Deleted,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"error": message, "code": code})
}
