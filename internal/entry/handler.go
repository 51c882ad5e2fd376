package entry

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/permission"
	"github.com/fkhayef/chaikhata/internal/user"
	"github.com/fkhayef/chaikhata/pkg/response"
)

// Handler handles HTTP requests for entries
type Handler struct {
	service *Service
}

// NewHandler creates a new entry handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for entry endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Log)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}/date", h.CorrectDate)

	return r
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrItemRequired),
		errors.Is(err, ErrItemNotOnMenu),
		errors.Is(err, ErrInvalidSize),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidSlot),
		errors.Is(err, ErrInvalidDate):
		response.Validation(w, err.Error())
	case errors.Is(err, ErrEntryNotFound),
		errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, permission.ErrPermissionDenied),
		errors.Is(err, group.ErrNotMember):
		response.Forbidden(w, err.Error())
	case errors.Is(err, user.ErrNoActiveGroup):
		response.Conflict(w, err.Error())
	default:
		slog.ErrorContext(r.Context(), fallback, "error", err)
		response.InternalError(w, fallback)
	}
}

// Log handles POST /entries
// @Summary      Log a consumption entry
// @Description  Size defaults to full, quantity to 1, and time to the slot for the current hour.
// @Tags         entries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body LogEntryRequest true "Entry"
// @Success      201 {object} response.APIResponse{data=EntryResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /entries [post]
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req LogEntryRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	e, err := h.service.Log(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, err, "Failed to log entry")
		return
	}

	response.JSON(w, http.StatusCreated, e.ToResponse())
}

// List handles GET /entries
// @Summary      List entries of the active group
// @Description  Newest first.
// @Tags         entries
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=[]EntryResponse}
// @Router       /entries [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	entries, err := h.service.List(r.Context(), actor)
	if err != nil {
		writeError(w, r, err, "Failed to list entries")
		return
	}

	response.JSON(w, http.StatusOK, ToResponses(entries))
}

// Delete handles DELETE /entries/{id}?confirm=true
// @Summary      Delete an entry
// @Description  Requires the canDelete permission and an explicit confirm=true.
// @Tags         entries
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Entry ID"
// @Param        confirm query bool true "Must be true"
// @Success      200 {object} response.APIResponse
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /entries/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if r.URL.Query().Get("confirm") != "true" {
		response.BadRequest(w, "Deleting an entry cannot be undone; repeat with confirm=true")
		return
	}

	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "Failed to delete entry")
		return
	}

	response.Message(w, http.StatusOK, "Entry deleted")
}

// CorrectDate handles PATCH /entries/{id}/date
// @Summary      Move an entry to another day
// @Description  Keeps the original time of day. Requires the canDelete permission.
// @Tags         entries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Entry ID"
// @Param        request body CorrectDateRequest true "New date"
// @Success      200 {object} response.APIResponse{data=EntryResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /entries/{id}/date [patch]
func (h *Handler) CorrectDate(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CorrectDateRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	e, err := h.service.CorrectDate(r.Context(), actor, chi.URLParam(r, "id"), req.Date)
	if err != nil {
		writeError(w, r, err, "Failed to correct entry date")
		return
	}

	response.JSON(w, http.StatusOK, e.ToResponse())
}
