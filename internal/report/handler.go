package report

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/user"
	"github.com/fkhayef/chaikhata/pkg/response"
)

// Handler handles HTTP requests for reports
type Handler struct {
	service *Service
}

// NewHandler creates a new report handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for report endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/summary", h.Summary)
	r.Get("/statement", h.Statement)

	return r
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, user.ErrNoActiveGroup):
		response.Conflict(w, err.Error())
	default:
		slog.ErrorContext(r.Context(), fallback, "error", err)
		response.InternalError(w, fallback)
	}
}

// Summary handles GET /reports/summary
// @Summary      Group totals
// @Description  Lifetime spend and payments, clamped balance, current-month trend and item distribution.
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=Summary}
// @Failure      409 {object} response.APIResponse
// @Router       /reports/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	summary, err := h.service.Summary(r.Context(), actor)
	if err != nil {
		writeError(w, r, err, "Failed to compute summary")
		return
	}

	response.JSON(w, http.StatusOK, summary)
}

// Statement handles GET /reports/statement
// @Summary      Printable monthly statement
// @Tags         reports
// @Produce      html
// @Security     BearerAuth
// @Success      200 {string} string "HTML page"
// @Router       /reports/statement [get]
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	data, err := h.service.Statement(r.Context(), actor)
	if err != nil {
		writeError(w, r, err, "Failed to build statement")
		return
	}

	var buf bytes.Buffer
	if err := data.Render(&buf); err != nil {
		writeError(w, r, err, "Failed to render statement")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
