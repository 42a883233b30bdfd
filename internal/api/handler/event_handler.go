package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/service"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// EventHandler serves events, their role ledger and the respond protocol.
type EventHandler struct {
	eventSvc service.EventService
}

// NewEventHandler creates the EventHandler.
func NewEventHandler(eventSvc service.EventService) *EventHandler {
	return &EventHandler{eventSvc: eventSvc}
}

// CreateEvent creates a draft event
// POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	event, err := h.eventSvc.Create(c.Request.Context(), managerID, &req)
	if err != nil {
		handleEventError(c, err)
		return
	}

	response.Created(c, event)
}

// GetEvent
// GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.eventSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// ListMyEvents lists the calling manager's events
// GET /api/v1/events
func (h *EventHandler) ListMyEvents(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.EventListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid query parameters", err.Error())
		return
	}

	events, total, err := h.eventSvc.ListMine(c.Request.Context(), managerID, &req)
	if err != nil {
		handleEventError(c, err)
		return
	}

	response.OKPage(c, events, total, req.GetPage(), req.GetPageSize())
}

// ListAvailable lists open events visible to the calling staff member
// GET /api/v1/events/available
func (h *EventHandler) ListAvailable(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	events, err := h.eventSvc.ListAvailable(c.Request.Context(), id)
	if err != nil {
		handleEventError(c, err)
		return
	}

	response.OK(c, gin.H{"list": events})
}

// UpdateRoles replaces the role list
// PUT /api/v1/events/:id/roles
func (h *EventHandler) UpdateRoles(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.UpdateRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	event, err := h.eventSvc.UpdateRoles(c.Request.Context(), c.Param("id"), managerID, &req)
	if err != nil {
		handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// Publish opens a draft for responses
// POST /api/v1/events/:id/publish
func (h *EventHandler) Publish(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	event, err := h.eventSvc.Publish(c.Request.Context(), c.Param("id"), managerID)
	if err != nil {
		handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// Transition moves the event along its lifecycle
// POST /api/v1/events/:id/status
func (h *EventHandler) Transition(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	event, err := h.eventSvc.Transition(c.Request.Context(), c.Param("id"), managerID, model.EventStatus(req.Status))
	if err != nil {
		handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// Respond accepts or declines a spot
// POST /api/v1/events/:id/respond
func (h *EventHandler) Respond(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	var req dto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}
	if req.Response == "accept" && strings.TrimSpace(req.Role) == "" {
		response.BadRequest(c, 10001, "role is required to accept")
		return
	}

	out, err := h.eventSvc.Respond(c.Request.Context(), c.Param("id"), id, &req)
	if err != nil {
		handleEventError(c, err)
		return
	}

	response.OK(c, out)
}

// RepairStats recomputes the cached role ledger
// POST /api/v1/events/:id/repair-stats
func (h *EventHandler) RepairStats(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	out, err := h.eventSvc.RepairStats(c.Request.Context(), c.Param("id"), managerID)
	if err != nil {
		handleEventError(c, err)
		return
	}

	response.OK(c, out)
}

// reason strips the sentinel prefix from a wrapped error, leaving its detail.
func reason(err, sentinel error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return detail
	}
	return msg
}

// handleEventError maps event errors to envelopes; unknown errors become 500.
func handleEventError(c *gin.Context, err error) {
	if !writeEventError(c, err) {
		response.InternalError(c)
	}
}

// writeEventError writes the envelope for an event-level error and reports
// whether err was one.
func writeEventError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 20001, "event not found")
	case errors.Is(err, service.ErrEventNotOpen):
		response.NotFound(c, 20002, "event is not open for responses")
	case errors.Is(err, service.ErrRoleNotFound):
		response.BadRequest(c, 20003, reason(err, service.ErrRoleNotFound))
	case errors.Is(err, service.ErrCapacityExceeded):
		response.Conflict(c, 20004, reason(err, service.ErrCapacityExceeded))
	case errors.Is(err, service.ErrRoleChangeFailed):
		response.Conflict(c, 20005, err.Error())
	case errors.Is(err, service.ErrResponseConflict):
		response.Conflict(c, 20006, err.Error())
	case errors.Is(err, service.ErrDeclineAfterClockIn):
		response.BadRequest(c, 20007, err.Error())
	case errors.Is(err, service.ErrNotEventManager):
		response.Forbidden(c, 20008, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		response.BadRequest(c, 20009, err.Error())
	case errors.Is(err, service.ErrRoleCapacityBelowTaken):
		response.BadRequest(c, 20010, reason(err, service.ErrRoleCapacityBelowTaken))
	case errors.Is(err, service.ErrRoleHasAcceptedStaff):
		response.BadRequest(c, 20011, reason(err, service.ErrRoleHasAcceptedStaff))
	case errors.Is(err, service.ErrDuplicateRole):
		response.BadRequest(c, 20012, reason(err, service.ErrDuplicateRole))
	case errors.Is(err, service.ErrEventClosed):
		response.BadRequest(c, 20013, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 20014, "event was modified concurrently, please retry")
	default:
		return false
	}
	return true
}
