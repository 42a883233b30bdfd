package model

import "time"

// Team member states
const (
	TeamMemberPending = "pending"
	TeamMemberActive  = "active"
	TeamMemberLeft    = "left"
)

// Team is a manager's roster of staff.
type Team struct {
	TeamID      string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"team_id"`
	ManagerID   string `gorm:"type:uuid;not null;index"                       json:"manager_id"`
	Name        string `gorm:"type:varchar(200);not null"                     json:"name"`
	Description string `gorm:"type:text"                                      json:"description,omitempty"`
	BaseModel
}

// TableName teams
func (Team) TableName() string { return "teams" }

// TeamMember is an identity on a team. Unique per (team, provider, subject).
type TeamMember struct {
	TeamMemberID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"team_member_id"`
	TeamID       string     `gorm:"type:uuid;not null"                             json:"team_id"`
	ManagerID    string     `gorm:"type:uuid;not null;index"                       json:"manager_id"`
	Provider     string     `gorm:"type:varchar(50);not null"                      json:"provider"`
	Subject      string     `gorm:"type:varchar(255);not null"                     json:"subject"`
	Email        string     `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	Name         string     `gorm:"type:varchar(200)"                              json:"name,omitempty"`
	Status       string     `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	JoinedAt     *time.Time `json:"joined_at,omitempty"`
	BaseModel
}

// TableName team_members
func (TeamMember) TableName() string { return "team_members" }

// Identity returns the member's identity.
func (m *TeamMember) Identity() Identity {
	return Identity{Provider: m.Provider, Subject: m.Subject, Name: m.Name, Email: m.Email}
}
