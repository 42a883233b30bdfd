package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/internal/service"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler serves spreadsheet downloads.
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler creates the ExportHandler.
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportTimesheet downloads the event's attendance as xlsx
// GET /api/v1/events/:id/timesheet
func (h *ExportHandler) ExportTimesheet(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportTimesheet(c.Request.Context(), c.Param("id"), managerID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoAttendance):
		response.NotFound(c, 20016, "event has no attendance to export")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		handleEventError(c, err)
	}
}
