package model

import "time"

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusDraft      EventStatus = "draft"
	EventStatusPublished  EventStatus = "published"
	EventStatusConfirmed  EventStatus = "confirmed"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusCancelled  EventStatus = "cancelled"
)

// OpenStatuses are the states in which staff may respond, clock in and mutate the roster.
var OpenStatuses = []EventStatus{EventStatusPublished, EventStatusConfirmed, EventStatusInProgress}

var eventTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:      {EventStatusPublished, EventStatusCancelled},
	EventStatusPublished:  {EventStatusConfirmed, EventStatusInProgress, EventStatusCancelled},
	EventStatusConfirmed:  {EventStatusInProgress, EventStatusCancelled},
	EventStatusInProgress: {EventStatusCompleted, EventStatusCancelled},
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusConfirmed,
		EventStatusInProgress, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// AcceptsResponses reports whether accept/decline is allowed in this state.
func (s EventStatus) AcceptsResponses() bool {
	for _, o := range OpenStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled
}

// CanTransitionTo reports whether from → to is an allowed lifecycle edge.
func (s EventStatus) CanTransitionTo(to EventStatus) bool {
	for _, next := range eventTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Visibility values for Event.VisibilityType
const (
	VisibilityPrivate       = "private"
	VisibilityPublic        = "public"
	VisibilityPrivatePublic = "private_public"
)

// ResponseAccept is the only response value an accepted record carries.
const ResponseAccept = "accept"

// Event is the staffing aggregate. Roles, AcceptedStaff and DeclinedStaff are
// loaded by the repository; RoleStats mirrors the ledger held on Roles.
type Event struct {
	EventID          string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	ManagerID        string      `gorm:"type:uuid;not null;index"                       json:"manager_id"`
	Status           EventStatus `gorm:"type:varchar(20);not null;default:'draft'"      json:"status"`
	Title            string      `gorm:"type:varchar(200);not null"                     json:"title"`
	ClientName       string      `gorm:"type:varchar(200)"                              json:"client_name,omitempty"`
	VenueName        string      `gorm:"type:varchar(200)"                              json:"venue_name,omitempty"`
	VenueAddress     string      `gorm:"type:varchar(500)"                              json:"venue_address,omitempty"`
	Notes            string      `gorm:"type:text"                                      json:"notes,omitempty"`
	Date             string      `gorm:"type:varchar(10)"                               json:"date,omitempty"`       // YYYY-MM-DD
	StartTime        string      `gorm:"type:varchar(5)"                                json:"start_time,omitempty"` // HH:MM
	EndTime          string      `gorm:"type:varchar(5)"                                json:"end_time,omitempty"`   // HH:MM
	VisibilityType   string      `gorm:"type:varchar(20);not null;default:'private'"    json:"visibility_type"`
	AudienceUserKeys StringArray `gorm:"type:text[]"                                    json:"audience_user_keys"`
	AudienceTeamIDs  StringArray `gorm:"type:text[]"                                    json:"audience_team_ids"`
	PublishedAt      *time.Time  `json:"published_at,omitempty"`
	PublishedBy      *string     `gorm:"type:uuid"                                      json:"published_by,omitempty"`
	Version          int         `gorm:"not null;default:1"                             json:"version"`
	BaseModel

	Roles         []EventRole     `gorm:"-" json:"roles"`
	RoleStats     []RoleStat      `gorm:"-" json:"role_stats"`
	AcceptedStaff []StaffRecord   `gorm:"-" json:"accepted_staff"`
	DeclinedStaff []DeclineRecord `gorm:"-" json:"declined_staff"`
}

// TableName events
func (Event) TableName() string { return "events" }

// EventRole is one role line of an event together with its capacity ledger.
type EventRole struct {
	EventID  string `gorm:"type:uuid;primaryKey"         json:"-"`
	RoleKey  string `gorm:"type:varchar(100);primaryKey" json:"-"`
	Role     string `gorm:"type:varchar(100);not null"   json:"role"`
	Capacity int    `gorm:"not null"                     json:"count"`
	Taken    int    `gorm:"not null;default:0"           json:"-"`
	CallTime string `gorm:"type:varchar(5)"              json:"call_time,omitempty"`
	Position int    `gorm:"not null;default:0"           json:"-"`
}

// TableName event_roles
func (EventRole) TableName() string { return "event_roles" }

// RoleStat is the cached per-role capacity view.
type RoleStat struct {
	Role      string `json:"role"`
	Capacity  int    `json:"capacity"`
	Taken     int    `json:"taken"`
	Remaining int    `json:"remaining"`
	IsFull    bool   `json:"is_full"`
}

// StaffRecord is an accepted response holding one unit of a role's capacity.
type StaffRecord struct {
	EventID     string    `gorm:"type:uuid;primaryKey"         json:"-"`
	Provider    string    `gorm:"type:varchar(50);primaryKey"  json:"provider"`
	Subject     string    `gorm:"type:varchar(255);primaryKey" json:"subject"`
	UserKey     string    `gorm:"type:varchar(310);not null"   json:"user_key"`
	Name        string    `gorm:"type:varchar(200)"            json:"name,omitempty"`
	Email       string    `gorm:"type:varchar(255)"            json:"email,omitempty"`
	RoleKey     string    `gorm:"type:varchar(100);not null"   json:"-"`
	Role        string    `gorm:"type:varchar(100);not null"   json:"role"`
	Response    string    `gorm:"type:varchar(10);not null;default:'accept'" json:"response"`
	RespondedAt time.Time `gorm:"not null"                     json:"responded_at"`

	Attendance []AttendanceSession `gorm:"-" json:"attendance"`
}

// TableName event_staff
func (StaffRecord) TableName() string { return "event_staff" }

// Identity returns the record's identity.
func (r *StaffRecord) Identity() Identity {
	return Identity{Provider: r.Provider, Subject: r.Subject, Name: r.Name, Email: r.Email}
}

// DeclineRecord is a non-holding decline response.
type DeclineRecord struct {
	EventID     string    `gorm:"type:uuid;primaryKey"         json:"-"`
	Provider    string    `gorm:"type:varchar(50);primaryKey"  json:"provider"`
	Subject     string    `gorm:"type:varchar(255);primaryKey" json:"subject"`
	UserKey     string    `gorm:"type:varchar(310);not null"   json:"user_key"`
	Name        string    `gorm:"type:varchar(200)"            json:"name,omitempty"`
	Email       string    `gorm:"type:varchar(255)"            json:"email,omitempty"`
	RespondedAt time.Time `gorm:"not null"                     json:"responded_at"`
}

// TableName event_declines
func (DeclineRecord) TableName() string { return "event_declines" }

// NewStaffRecord builds an accepted record for identity on role.
func NewStaffRecord(eventID string, id Identity, role string, at time.Time) StaffRecord {
	return StaffRecord{
		EventID:     eventID,
		Provider:    id.Provider,
		Subject:     id.Subject,
		UserKey:     id.Key(),
		Name:        id.Name,
		Email:       id.Email,
		RoleKey:     RoleKey(role),
		Role:        role,
		Response:    ResponseAccept,
		RespondedAt: at,
	}
}

// NewDeclineRecord builds a decline for identity.
func NewDeclineRecord(eventID string, id Identity, at time.Time) DeclineRecord {
	return DeclineRecord{
		EventID:     eventID,
		Provider:    id.Provider,
		Subject:     id.Subject,
		UserKey:     id.Key(),
		Name:        id.Name,
		Email:       id.Email,
		RespondedAt: at,
	}
}
