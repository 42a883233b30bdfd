package model

import "time"

// Notification types
const (
	NotifyRoleFull     = "role_full"
	NotifyRoleNowOpen  = "now_open"
	NotifyNewOpen      = "new_open"
	NotifyCancelled    = "cancelled"
	NotifyAutoClockOut = "auto_clock_out"
)

// Notification is an inbox entry for one recipient. Recipients are either a
// manager id or a staff userKey.
type Notification struct {
	NotificationID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	Recipient      string    `gorm:"type:varchar(310);not null;index"               json:"recipient"`
	Type           string    `gorm:"type:varchar(50);not null"                      json:"type"`
	EventID        string    `gorm:"type:uuid"                                      json:"event_id,omitempty"`
	Role           string    `gorm:"type:varchar(100)"                              json:"role,omitempty"`
	Title          string    `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string    `gorm:"type:text;not null"                             json:"content"`
	IsRead         bool      `gorm:"not null;default:false"                         json:"is_read"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName notifications
func (Notification) TableName() string { return "notifications" }
