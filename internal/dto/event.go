package dto

import "github.com/juanse07/nexa-sub001/internal/model"

// ── event DTOs ──

// RoleInput one requested role line
type RoleInput struct {
	Role     string `json:"role"      binding:"required,max=100"`
	Count    int    `json:"count"     binding:"required,min=1,max=1000"`
	CallTime string `json:"call_time" binding:"omitempty,datetime=15:04"`
}

// CreateEventRequest creates a draft event.
type CreateEventRequest struct {
	Title            string      `json:"title"              binding:"required,max=200"`
	ClientName       string      `json:"client_name"        binding:"max=200"`
	VenueName        string      `json:"venue_name"         binding:"max=200"`
	VenueAddress     string      `json:"venue_address"      binding:"max=500"`
	Notes            string      `json:"notes"`
	Date             string      `json:"date"               binding:"omitempty,datetime=2006-01-02"`
	StartTime        string      `json:"start_time"         binding:"omitempty,datetime=15:04"`
	EndTime          string      `json:"end_time"           binding:"omitempty,datetime=15:04"`
	VisibilityType   string      `json:"visibility_type"    binding:"omitempty,oneof=private public private_public"`
	AudienceUserKeys []string    `json:"audience_user_keys"`
	AudienceTeamIDs  []string    `json:"audience_team_ids"`
	Roles            []RoleInput `json:"roles"              binding:"required,min=1,dive"`
}

// UpdateRolesRequest replaces the role list.
type UpdateRolesRequest struct {
	Roles []RoleInput `json:"roles" binding:"required,min=1,dive"`
}

// TransitionRequest moves an event along its lifecycle.
type TransitionRequest struct {
	Status string `json:"status" binding:"required,oneof=published confirmed in_progress completed cancelled"`
}

// RespondRequest accept or decline an event.
type RespondRequest struct {
	Response string `json:"response" binding:"required,oneof=accept decline"`
	Role     string `json:"role"     binding:"max=100"`
}

// EventListRequest filters a manager's events.
type EventListRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=draft published confirmed in_progress completed cancelled"`
	PaginationRequest
}

// ── responses ──

// EventResponse is the event with its derived fulfilment flag.
type EventResponse struct {
	*model.Event
	Fulfilled bool `json:"fulfilled"`
}

// NewEventResponse wraps an event.
func NewEventResponse(e *model.Event) *EventResponse {
	if e == nil {
		return nil
	}
	return &EventResponse{Event: e, Fulfilled: e.IsFulfilled()}
}

// NewEventResponses wraps a list of events.
func NewEventResponses(events []model.Event) []*EventResponse {
	out := make([]*EventResponse, 0, len(events))
	for i := range events {
		out = append(out, NewEventResponse(&events[i]))
	}
	return out
}

// RespondResponse reports the outcome of an accept or decline.
type RespondResponse struct {
	Outcome      string         `json:"outcome"` // accepted | already_accepted | declined
	Role         string         `json:"role,omitempty"`
	PreviousRole string         `json:"previous_role,omitempty"`
	Event        *EventResponse `json:"event"`
}

// ImportResponse lists drafts created from a calendar file.
type ImportResponse struct {
	Created []*EventResponse `json:"created"`
	Skipped int              `json:"skipped"`
}

// RepairStatsResponse reports the roles whose cached ledger was corrected.
type RepairStatsResponse struct {
	Drift []model.RoleStat `json:"drift"`
	Event *EventResponse   `json:"event"`
}
