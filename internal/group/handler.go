package group

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/chaikhata/internal/permission"
	"github.com/fkhayef/chaikhata/internal/user"
	"github.com/fkhayef/chaikhata/pkg/response"
)

// Handler handles HTTP requests for group operations
type Handler struct {
	service *Service
}

// NewHandler creates a new group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for group endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/join", h.Join)
	r.Post("/switch", h.Switch)
	r.Post("/leave", h.Leave)

	r.Route("/current", func(r chi.Router) {
		r.Get("/", h.Current)
		r.Delete("/", h.Delete)

		r.Post("/items", h.AddItem)
		r.Put("/items/{itemId}", h.UpdateItem)
		r.Delete("/items/{itemId}", h.RemoveItem)

		r.Post("/slots", h.AddSlot)
		r.Delete("/slots/{slot}", h.RemoveSlot)

		r.Get("/members", h.Members)
		r.Put("/members/{uid}/permissions", h.SetPermission)
		r.Post("/members/{uid}/role", h.ToggleRole)
	})

	return r
}

// writeError maps group errors onto responses
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrGroupIDRequired),
		errors.Is(err, ErrItemNameRequired),
		errors.Is(err, ErrItemPriceRequired),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrSlotRequired),
		errors.Is(err, ErrInvalidFlag):
		response.Validation(w, err.Error())
	case errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrSlotNotFound),
		errors.Is(err, user.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, permission.ErrPermissionDenied),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrNotMember),
		errors.Is(err, ErrCannotChangeOwner):
		response.Forbidden(w, err.Error())
	case errors.Is(err, user.ErrNoActiveGroup),
		errors.Is(err, ErrOwnerCannotLeave),
		errors.Is(err, ErrSlotExists),
		errors.Is(err, ErrGroupIDTaken):
		response.Conflict(w, err.Error())
	default:
		slog.ErrorContext(r.Context(), fallback, "error", err)
		response.InternalError(w, fallback)
	}
}

func actorOrUnauthorized(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
	}
	return actor, ok
}

// Create handles POST /groups
// @Summary      Create a new group
// @Description  Creates a group with the default menu and time slots and makes the caller its owner
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateGroupRequest true "Group creation request"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	g, err := h.service.Create(r.Context(), actor, req.Name)
	if err != nil {
		writeError(w, r, err, "Failed to create group")
		return
	}

	response.JSON(w, http.StatusCreated, g.ToResponse())
}

// List handles GET /groups
// @Summary      List my groups
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Router       /groups [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	groups, err := h.service.ListMine(r.Context(), actor)
	if err != nil {
		writeError(w, r, err, "Failed to list groups")
		return
	}

	out := make([]*GroupResponse, len(groups))
	for i, g := range groups {
		out[i] = g.ToResponse()
	}
	response.JSON(w, http.StatusOK, out)
}

// Current handles GET /groups/current
// @Summary      Get my active group
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/current [get]
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	g, err := h.service.Current(r.Context(), actor)
	if err != nil {
		writeError(w, r, err, "Failed to get group")
		return
	}

	response.JSON(w, http.StatusOK, g.ToResponse())
}

// Join handles POST /groups/join
// @Summary      Join a group by code
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body GroupIDRequest true "Group code"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /groups/join [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req GroupIDRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	g, err := h.service.Join(r.Context(), actor, req.GroupID)
	if err != nil {
		writeError(w, r, err, "Failed to join group")
		return
	}

	response.JSON(w, http.StatusOK, g.ToResponse())
}

// Switch handles POST /groups/switch
// @Summary      Switch the active group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body GroupIDRequest true "Group code"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/switch [post]
func (h *Handler) Switch(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req GroupIDRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	g, err := h.service.Switch(r.Context(), actor, req.GroupID)
	if err != nil {
		writeError(w, r, err, "Failed to switch group")
		return
	}

	response.JSON(w, http.StatusOK, g.ToResponse())
}

// Leave handles POST /groups/leave
// @Summary      Leave the active group
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/leave [post]
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	if err := h.service.Leave(r.Context(), actor); err != nil {
		writeError(w, r, err, "Failed to leave group")
		return
	}

	response.Message(w, http.StatusOK, "Left group")
}

// Delete handles DELETE /groups/current
// @Summary      Delete the active group
// @Description  Owner only. Removes every entry and payment and every member's reference to the group.
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /groups/current [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor); err != nil {
		writeError(w, r, err, "Failed to delete group")
		return
	}

	response.Message(w, http.StatusOK, "Group deleted successfully")
}

// AddItem handles POST /groups/current/items
// @Summary      Add a menu item
// @Tags         menu
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ItemRequest true "Item"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /groups/current/items [post]
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req ItemRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	g, err := h.service.AddItem(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, err, "Failed to add item")
		return
	}

	response.JSON(w, http.StatusCreated, g.ToResponse())
}

// UpdateItem handles PUT /groups/current/items/{itemId}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req ItemRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	g, err := h.service.UpdateItem(r.Context(), actor, chi.URLParam(r, "itemId"), req)
	if err != nil {
		writeError(w, r, err, "Failed to update item")
		return
	}

	response.JSON(w, http.StatusOK, g.ToResponse())
}

// RemoveItem handles DELETE /groups/current/items/{itemId}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	g, err := h.service.RemoveItem(r.Context(), actor, chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, r, err, "Failed to remove item")
		return
	}

	response.JSON(w, http.StatusOK, g.ToResponse())
}

// AddSlot handles POST /groups/current/slots
// @Summary      Add a time slot
// @Tags         menu
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SlotRequest true "Slot"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      409 {object} response.APIResponse
// @Router       /groups/current/slots [post]
func (h *Handler) AddSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req SlotRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	g, err := h.service.AddSlot(r.Context(), actor, req.Slot)
	if err != nil {
		writeError(w, r, err, "Failed to add time slot")
		return
	}

	response.JSON(w, http.StatusCreated, g.ToResponse())
}

// RemoveSlot handles DELETE /groups/current/slots/{slot}
func (h *Handler) RemoveSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	slot, err := url.PathUnescape(chi.URLParam(r, "slot"))
	if err != nil {
		response.BadRequest(w, "Invalid time slot")
		return
	}

	g, err := h.service.RemoveSlot(r.Context(), actor, slot)
	if err != nil {
		writeError(w, r, err, "Failed to remove time slot")
		return
	}

	response.JSON(w, http.StatusOK, g.ToResponse())
}

// Members handles GET /groups/current/members
// @Summary      List members with roles and permissions
// @Tags         members
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=[]MemberResponse}
// @Router       /groups/current/members [get]
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	members, err := h.service.Members(r.Context(), actor)
	if err != nil {
		writeError(w, r, err, "Failed to list members")
		return
	}

	out := make([]*MemberResponse, len(members))
	for i, m := range members {
		out[i] = toMemberResponse(m)
	}
	response.JSON(w, http.StatusOK, out)
}

// SetPermission handles PUT /groups/current/members/{uid}/permissions
// @Summary      Set a member permission flag
// @Description  Owner only. Flags: canDelete, canPayments, canMenu, canSlots.
// @Tags         members
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        uid path string true "Member ID"
// @Param        request body PermissionRequest true "Flag and value"
// @Success      200 {object} response.APIResponse{data=MemberResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/current/members/{uid}/permissions [put]
func (h *Handler) SetPermission(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req PermissionRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	member, err := h.service.SetMemberPermission(r.Context(), actor, chi.URLParam(r, "uid"), req.Flag, req.Value)
	if err != nil {
		writeError(w, r, err, "Failed to update permission")
		return
	}

	response.JSON(w, http.StatusOK, toMemberResponse(member))
}

// ToggleRole handles POST /groups/current/members/{uid}/role
// @Summary      Toggle a member between admin and user
// @Tags         members
// @Produce      json
// @Security     BearerAuth
// @Param        uid path string true "Member ID"
// @Success      200 {object} response.APIResponse{data=MemberResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/current/members/{uid}/role [post]
func (h *Handler) ToggleRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	member, err := h.service.ToggleMemberRole(r.Context(), actor, chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, r, err, "Failed to change role")
		return
	}

	response.JSON(w, http.StatusOK, toMemberResponse(member))
}
