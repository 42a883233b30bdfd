package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/internal/api/middleware"
	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/service"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// NotificationHandler serves the caller's inbox.
type NotificationHandler struct {
	notificationSvc service.NotificationService
}

// NewNotificationHandler creates the NotificationHandler.
func NewNotificationHandler(notificationSvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

// recipient is the inbox key: the manager id for manager tokens, else the userKey.
func recipient(c *gin.Context) (string, bool) {
	if managerID := c.GetString(middleware.CtxManagerID); managerID != "" {
		return managerID, true
	}
	id, ok := MustGetIdentity(c)
	if !ok {
		return "", false
	}
	return id.Key(), true
}

// List
// GET /api/v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	to, ok := recipient(c)
	if !ok {
		return
	}

	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid query parameters", err.Error())
		return
	}

	items, total, err := h.notificationSvc.List(c.Request.Context(), to, &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, items, total, req.GetPage(), req.GetPageSize())
}

// MarkRead
// POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	to, ok := recipient(c)
	if !ok {
		return
	}

	if err := h.notificationSvc.MarkRead(c.Request.Context(), c.Param("id"), to); err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			response.NotFound(c, 24001, "notification not found")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}
