package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/service"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// OrganizationHandler serves organization membership, policy and seats.
type OrganizationHandler struct {
	orgSvc service.OrganizationService
}

// NewOrganizationHandler creates the OrganizationHandler.
func NewOrganizationHandler(orgSvc service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgSvc: orgSvc}
}

// CreateOrganization
// POST /api/v1/organizations
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	org, err := h.orgSvc.Create(c.Request.Context(), managerID, &req)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.Created(c, org)
}

// GetMine returns the caller's organization
// GET /api/v1/organizations/mine
func (h *OrganizationHandler) GetMine(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	org, err := h.orgSvc.GetMine(c.Request.Context(), managerID)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, org)
}

// GetOrganization
// GET /api/v1/organizations/:id
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	org, err := h.orgSvc.Get(c.Request.Context(), c.Param("id"), managerID)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, org)
}

// RenameOrganization
// PATCH /api/v1/organizations/:id
func (h *OrganizationHandler) RenameOrganization(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.RenameOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	org, err := h.orgSvc.Rename(c.Request.Context(), c.Param("id"), managerID, req.Name)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, org)
}

// InviteMember
// POST /api/v1/organizations/:id/members
func (h *OrganizationHandler) InviteMember(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	invite, err := h.orgSvc.InviteMember(c.Request.Context(), c.Param("id"), managerID, &req)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.Created(c, invite)
}

// RemoveMember removes a member, or lets a member leave
// DELETE /api/v1/organizations/:id/members/:managerId
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	if err := h.orgSvc.RemoveMember(c.Request.Context(), c.Param("id"), managerID, c.Param("managerId")); err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, nil)
}

// Join redeems an invite token
// POST /api/v1/organizations/join/:token
func (h *OrganizationHandler) Join(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	org, err := h.orgSvc.JoinByToken(c.Request.Context(), managerID, c.Param("token"))
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, org)
}

// TransferOwnership
// POST /api/v1/organizations/:id/transfer
func (h *OrganizationHandler) TransferOwnership(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	org, err := h.orgSvc.TransferOwnership(c.Request.Context(), c.Param("id"), managerID, req.NewOwnerID)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, org)
}

// ListApprovedStaff
// GET /api/v1/organizations/:id/staff
func (h *OrganizationHandler) ListApprovedStaff(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	staff, err := h.orgSvc.ListApprovedStaff(c.Request.Context(), c.Param("id"), managerID)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, gin.H{"list": staff})
}

// AddApprovedStaff
// POST /api/v1/organizations/:id/staff
func (h *OrganizationHandler) AddApprovedStaff(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.ApprovedStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	staff, err := h.orgSvc.AddApprovedStaff(c.Request.Context(), c.Param("id"), managerID, &req)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.Created(c, staff)
}

// RemoveApprovedStaff
// DELETE /api/v1/organizations/:id/staff/:provider/:subject
func (h *OrganizationHandler) RemoveApprovedStaff(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	err := h.orgSvc.RemoveApprovedStaff(c.Request.Context(), c.Param("id"), managerID, c.Param("provider"), c.Param("subject"))
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, nil)
}

// UpdateStaffPolicy
// PATCH /api/v1/organizations/:id/policy
func (h *OrganizationHandler) UpdateStaffPolicy(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.UpdateStaffPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	org, err := h.orgSvc.UpdateStaffPolicy(c.Request.Context(), c.Param("id"), managerID, req.StaffPolicy)
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, org)
}

// SyncSeats reconciles staff seats now
// POST /api/v1/organizations/:id/seats/sync
func (h *OrganizationHandler) SyncSeats(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	// any member may trigger a reconcile of their own organization
	mine, err := h.orgSvc.GetMine(c.Request.Context(), managerID)
	if err != nil && !errors.Is(err, service.ErrOrganizationNotFound) {
		handleOrganizationError(c, err)
		return
	}
	if mine == nil || mine.OrganizationID != c.Param("id") {
		handleOrganizationError(c, service.ErrNotOrgMember)
		return
	}

	out, err := h.orgSvc.SyncStaffSeats(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleOrganizationError(c, err)
		return
	}

	response.OK(c, out)
}

// handleOrganizationError maps organization errors to envelopes.
func handleOrganizationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrganizationNotFound):
		response.NotFound(c, 22001, "organization not found")
	case errors.Is(err, service.ErrManagerNotFound):
		response.NotFound(c, 22002, "manager not found")
	case errors.Is(err, service.ErrAlreadyInOrganization):
		response.Conflict(c, 22003, err.Error())
	case errors.Is(err, service.ErrSlugTaken):
		response.Conflict(c, 22004, err.Error())
	case errors.Is(err, service.ErrNotOrgMember):
		response.Forbidden(c, 22005, err.Error())
	case errors.Is(err, service.ErrOrgPermission):
		response.Forbidden(c, 22006, err.Error())
	case errors.Is(err, service.ErrSeatLimitReached):
		response.Conflict(c, 22007, err.Error())
	case errors.Is(err, service.ErrInvitePending):
		response.Conflict(c, 22008, err.Error())
	case errors.Is(err, service.ErrInviteInvalid):
		response.BadRequest(c, 22009, err.Error())
	case errors.Is(err, service.ErrMemberNotFound):
		response.NotFound(c, 22010, err.Error())
	case errors.Is(err, service.ErrCannotRemoveOwner):
		response.BadRequest(c, 22011, err.Error())
	case errors.Is(err, service.ErrStaffAlreadyApproved):
		response.Conflict(c, 22012, err.Error())
	case errors.Is(err, service.ErrStaffNotApproved):
		response.NotFound(c, 22013, err.Error())
	case errors.Is(err, service.ErrPolicyDenied):
		response.Forbidden(c, 22014, "Staff not in organization approved pool")
	case errors.Is(err, service.ErrSelfTransfer):
		response.BadRequest(c, 22015, reason(err, service.ErrOwnershipInvariant))
	case errors.Is(err, service.ErrNotOwner):
		response.Forbidden(c, 22016, reason(err, service.ErrOwnershipInvariant))
	case errors.Is(err, service.ErrTargetNotMember):
		response.NotFound(c, 22017, reason(err, service.ErrOwnershipInvariant))
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 22018, "organization was modified concurrently, please retry")
	default:
		response.InternalError(c)
	}
}
