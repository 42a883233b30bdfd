package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/service"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// TeamHandler serves a manager's staff rosters.
type TeamHandler struct {
	teamSvc service.TeamService
}

// NewTeamHandler creates the TeamHandler.
func NewTeamHandler(teamSvc service.TeamService) *TeamHandler {
	return &TeamHandler{teamSvc: teamSvc}
}

// CreateTeam
// POST /api/v1/teams
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	team, err := h.teamSvc.Create(c.Request.Context(), managerID, &req)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}

	response.Created(c, team)
}

// ListTeams
// GET /api/v1/teams
func (h *TeamHandler) ListTeams(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	teams, err := h.teamSvc.List(c.Request.Context(), managerID)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}

	response.OK(c, gin.H{"list": teams})
}

// ListMembers
// GET /api/v1/teams/:id/members
func (h *TeamHandler) ListMembers(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	members, err := h.teamSvc.ListMembers(c.Request.Context(), c.Param("id"), managerID)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}

	response.OK(c, gin.H{"list": members})
}

// AddMember admits a staff identity subject to the organization policy
// POST /api/v1/teams/:id/members
func (h *TeamHandler) AddMember(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	var req dto.AddTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
		return
	}

	member, err := h.teamSvc.AddMember(c.Request.Context(), c.Param("id"), managerID, &req)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}

	response.Created(c, member)
}

// RemoveMember
// DELETE /api/v1/teams/:id/members/:provider/:subject
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	managerID, ok := MustGetManagerID(c)
	if !ok {
		return
	}

	if err := h.teamSvc.RemoveMember(c.Request.Context(), c.Param("id"), managerID, c.Param("provider"), c.Param("subject")); err != nil {
		h.handleTeamError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *TeamHandler) handleTeamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTeamNotFound):
		response.NotFound(c, 23001, "team not found")
	case errors.Is(err, service.ErrNotTeamManager):
		response.Forbidden(c, 23002, err.Error())
	case errors.Is(err, service.ErrTeamMemberNotFound):
		response.NotFound(c, 23003, err.Error())
	default:
		handleOrganizationError(c, err)
	}
}
