package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/service"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// AttendanceHandler serves clock-in/out and hours approval.
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler creates the AttendanceHandler.
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// GetMyAttendance
// GET /api/v1/events/:id/attendance/me
func (h *AttendanceHandler) GetMyAttendance(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	sum, err := h.attendanceSvc.GetMyAttendance(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, sum)
}

// ClockIn
// POST /api/v1/events/:id/clock-in
func (h *AttendanceHandler) ClockIn(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	sum, err := h.attendanceSvc.ClockIn(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, sum)
}

// ClockOut
// POST /api/v1/events/:id/clock-out
func (h *AttendanceHandler) ClockOut(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	sum, err := h.attendanceSvc.ClockOut(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, sum)
}

// ApproveHours stamps a staff member's closed sessions
// POST /api/v1/events/:id/attendance/approve
func (h *AttendanceHandler) ApproveHours(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.ApproveHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	out, err := h.attendanceSvc.ApproveHours(c.Request.Context(), c.Param("id"), managerID, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, out)
}

func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotAccepted):
		response.Forbidden(c, 21001, "no accepted response for this event")
	case errors.Is(err, service.ErrAlreadyClockedIn):
		response.Conflict(c, 21002, "already clocked in")
	case errors.Is(err, service.ErrNotClockedIn):
		response.Conflict(c, 21003, "not clocked in")
	case errors.Is(err, service.ErrNoClosedSession):
		response.BadRequest(c, 21004, "no completed attendance to approve")
	default:
		handleEventError(c, err)
	}
}
