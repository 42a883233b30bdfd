package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/service"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// ManagerHandler serves manager profiles and the effective tier.
type ManagerHandler struct {
	managerSvc service.ManagerService
	orgSvc     service.OrganizationService
}

// NewManagerHandler creates the ManagerHandler.
func NewManagerHandler(managerSvc service.ManagerService, orgSvc service.OrganizationService) *ManagerHandler {
	return &ManagerHandler{managerSvc: managerSvc, orgSvc: orgSvc}
}

// UpsertMe registers the caller as a manager or refreshes the profile
// PUT /api/v1/managers/me
func (h *ManagerHandler) UpsertMe(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	var req dto.UpsertManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	manager, err := h.managerSvc.Upsert(c.Request.Context(), id, &req)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, manager)
}

// GetMyTier resolves the subscription tier in effect for the caller
// GET /api/v1/managers/me/tier
func (h *ManagerHandler) GetMyTier(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	tier, err := h.orgSvc.ResolveEffectiveTier(c.Request.Context(), managerID)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, tier)
}
