package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Gopher handles GET /api/gopher?url=...
func (h *Handler) Gopher(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, h.svc.FetchGopher)
}

// Gemini handles GET /api/gemini?url=...
func (h *Handler) Gemini(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, h.svc.FetchGemini)
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, raw string) models.Result) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("url query parameter is required"))
		return
	}
	result := fetch(r.Context(), raw)
	writeJSON(w, resultStatus(result), result)
}

// ListTrust handles GET /api/trust.
func (h *Handler) ListTrust(w http.ResponseWriter, r *http.Request) {
	if !h.svc.TrustEnabled() {
		writeJSON(w, http.StatusNotFound, errorBody("trust store disabled"))
		return
	}
	records, err := h.svc.ListTrust(r.Context())
	if err != nil {
		h.logger.Error("list trust records failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TrustListResponse{Records: records, Total: len(records)})
}

// GetTrust handles GET /api/trust/{hostPort}.
func (h *Handler) GetTrust(w http.ResponseWriter, r *http.Request) {
	if !h.svc.TrustEnabled() {
		writeJSON(w, http.StatusNotFound, errorBody("trust store disabled"))
		return
	}
	hostPort := chi.URLParam(r, "hostPort")
	rec, err := h.svc.GetTrust(r.Context(), hostPort)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("no record for "+hostPort))
		return
	}
	if err != nil {
		h.logger.Error("get trust record failed", slog.String("hostPort", hostPort), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
