package model

import "strings"

// RoleKey normalises a role name for case-insensitive matching.
func RoleKey(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// NewRoleStat derives remaining and is_full from capacity and taken.
func NewRoleStat(role string, capacity, taken int) RoleStat {
	remaining := capacity - taken
	if remaining < 0 {
		remaining = 0
	}
	return RoleStat{
		Role:      role,
		Capacity:  capacity,
		Taken:     taken,
		Remaining: remaining,
		IsFull:    capacity > 0 && taken >= capacity,
	}
}

// ComputeRoleStats folds the accepted records over the role lines. Accepted
// records whose role no longer exists on the event are ignored.
func ComputeRoleStats(roles []EventRole, accepted []StaffRecord) []RoleStat {
	counts := make(map[string]int, len(roles))
	for _, r := range accepted {
		key := r.RoleKey
		if key == "" {
			key = RoleKey(r.Role)
		}
		counts[key]++
	}

	stats := make([]RoleStat, 0, len(roles))
	for _, role := range roles {
		key := role.RoleKey
		if key == "" {
			key = RoleKey(role.Role)
		}
		stats = append(stats, NewRoleStat(role.Role, role.Capacity, counts[key]))
	}
	return stats
}

// SyncStats refreshes RoleStats from the ledger carried on Roles.
func (e *Event) SyncStats() {
	stats := make([]RoleStat, 0, len(e.Roles))
	for _, r := range e.Roles {
		stats = append(stats, NewRoleStat(r.Role, r.Capacity, r.Taken))
	}
	e.RoleStats = stats
}

// StatsDrift returns the roles whose cached taken differs from the recomputed fold.
func (e *Event) StatsDrift() []RoleStat {
	computed := ComputeRoleStats(e.Roles, e.AcceptedStaff)
	var drift []RoleStat
	for i, r := range e.Roles {
		if computed[i].Taken != r.Taken {
			drift = append(drift, computed[i])
		}
	}
	return drift
}

// FindRole looks a role up case-insensitively.
func (e *Event) FindRole(role string) *EventRole {
	key := RoleKey(role)
	for i := range e.Roles {
		if e.Roles[i].RoleKey == key || RoleKey(e.Roles[i].Role) == key {
			return &e.Roles[i]
		}
	}
	return nil
}

// FindAccepted returns the identity's accepted record, if any.
func (e *Event) FindAccepted(id Identity) *StaffRecord {
	for i := range e.AcceptedStaff {
		if e.AcceptedStaff[i].Provider == id.Provider && e.AcceptedStaff[i].Subject == id.Subject {
			return &e.AcceptedStaff[i]
		}
	}
	return nil
}

// FindDeclined returns the identity's decline record, if any.
func (e *Event) FindDeclined(id Identity) *DeclineRecord {
	for i := range e.DeclinedStaff {
		if e.DeclinedStaff[i].Provider == id.Provider && e.DeclinedStaff[i].Subject == id.Subject {
			return &e.DeclinedStaff[i]
		}
	}
	return nil
}

// CanAccept reports whether one more acceptance fits the role right now.
func (e *Event) CanAccept(role string) bool {
	if !e.Status.AcceptsResponses() {
		return false
	}
	r := e.FindRole(role)
	return r != nil && r.Taken < r.Capacity
}

// IsFulfilled reports whether every role is full.
func (e *Event) IsFulfilled() bool {
	if len(e.Roles) == 0 {
		return false
	}
	for _, r := range e.Roles {
		if r.Taken < r.Capacity {
			return false
		}
	}
	return true
}

// VisibleTo reports whether a published event is offered to the identity.
func (e *Event) VisibleTo(userKey string, teamIDs []string) bool {
	if e.VisibilityType == VisibilityPublic || e.VisibilityType == VisibilityPrivatePublic {
		return true
	}
	if e.AudienceUserKeys.Contains(userKey) {
		return true
	}
	for _, t := range teamIDs {
		if e.AudienceTeamIDs.Contains(t) {
			return true
		}
	}
	return false
}
