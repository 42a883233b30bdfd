package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/internal/service"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// maxCalendarUpload bounds the .ics upload.
const maxCalendarUpload = 5 << 20

// CalendarHandler serves the staff calendar feed and .ics imports.
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler creates the CalendarHandler.
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// MyCalendar renders the caller's accepted shifts
// GET /api/v1/me/calendar.ics
func (h *CalendarHandler) MyCalendar(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	feed, err := h.calendarSvc.StaffFeed(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c)
		return
	}

	c.Header("Content-Disposition", `inline; filename="nexa.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", feed)
}

// ImportEvents creates draft events from an uploaded .ics file
// POST /api/v1/events/import (multipart field "file")
func (h *CalendarHandler) ImportEvents(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, 10001, "file is required")
		return
	}
	if fh.Size > maxCalendarUpload {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "calendar file too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, 10001, "file could not be read")
		return
	}
	defer f.Close()

	out, err := h.calendarSvc.ImportDrafts(c.Request.Context(), managerID, f)
	if err != nil {
		if errors.Is(err, service.ErrCalendarInvalid) {
			response.BadRequest(c, 20015, "calendar file could not be parsed")
			return
		}
		handleEventError(c, err)
		return
	}

	response.Created(c, out)
}
