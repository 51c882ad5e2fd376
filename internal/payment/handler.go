package payment

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

// Handler handles HTTP requests for payments
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for payment endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Record)

	return r
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrAmountRequired),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAmountNotPositive):
		response.Validation(w, err.Error())
	case errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, permission.ErrPermissionDenied):
		response.Forbidden(w, err.Error())
	case errors.Is(err, user.ErrNoActiveGroup):
		response.Conflict(w, err.Error())
	default:
		slog.ErrorContext(r.Context(), fallback, "error", err)
		response.InternalError(w, fallback)
	}
}

// Record handles POST /payments
// @Summary      Record a payment
// @Description  Requires the canPayments permission. The amount is a decimal string.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body RecordPaymentRequest true "Payment"
// @Success      201 {object} response.APIResponse{data=PaymentResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /payments [post]
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req RecordPaymentRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	p, err := h.service.Record(r.Context(), actor, req.Amount)
	if err != nil {
		writeError(w, r, err, "Failed to record payment")
		return
	}

	response.JSON(w, http.StatusCreated, p.ToResponse())
}

// List handles GET /payments
// @Summary      List payments of the active group
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=[]PaymentResponse}
// @Router       /payments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	payments, err := h.service.List(r.Context(), actor)
	if err != nil {
		writeError(w, r, err, "Failed to list payments")
		return
	}

	response.JSON(w, http.StatusOK, ToResponses(payments))
}
