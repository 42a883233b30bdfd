package model

import (
	"fmt"
	"math"
	"time"
)

// Attendance approval states
const (
	AttendancePending  = "pending"
	AttendanceApproved = "approved"
	AttendanceRejected = "rejected"
)

// AttendanceSession is one clock-in/clock-out interval of an accepted identity.
type AttendanceSession struct {
	SessionID      int64      `gorm:"primaryKey;autoIncrement"                    json:"session_id"`
	EventID        string     `gorm:"type:uuid;not null;index"                    json:"-"`
	Provider       string     `gorm:"type:varchar(50);not null"                   json:"-"`
	Subject        string     `gorm:"type:varchar(255);not null"                  json:"-"`
	ClockInAt      time.Time  `gorm:"not null"                                    json:"clock_in_at"`
	ClockOutAt     *time.Time `json:"clock_out_at,omitempty"`
	EstimatedHours *float64   `gorm:"type:numeric(6,2)"                           json:"estimated_hours,omitempty"`
	ApprovedHours  *float64   `gorm:"type:numeric(6,2)"                           json:"approved_hours,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ApprovedBy     *string    `gorm:"type:uuid"                                   json:"approved_by,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	AutoClockOut   bool       `gorm:"not null;default:false"                      json:"auto_clock_out"`
}

// TableName event_attendance
func (AttendanceSession) TableName() string { return "event_attendance" }

// IsOpen reports whether the session has no clock-out yet.
func (s *AttendanceSession) IsOpen() bool {
	return s.ClockOutAt == nil
}

// AttendanceSummary is the per-identity attendance view.
type AttendanceSummary struct {
	IsClockedIn    bool                `json:"is_clocked_in"`
	LastClockInAt  *time.Time          `json:"last_clock_in_at,omitempty"`
	LastClockOutAt *time.Time          `json:"last_clock_out_at,omitempty"`
	Attendance     []AttendanceSession `json:"attendance"`
}

// OpenSession returns the record's open session, if any.
func (r *StaffRecord) OpenSession() *AttendanceSession {
	for i := len(r.Attendance) - 1; i >= 0; i-- {
		if r.Attendance[i].IsOpen() {
			return &r.Attendance[i]
		}
	}
	return nil
}

// Summary builds the attendance view of the record.
func (r *StaffRecord) Summary() AttendanceSummary {
	sum := AttendanceSummary{Attendance: r.Attendance}
	if sum.Attendance == nil {
		sum.Attendance = []AttendanceSession{}
	}
	if n := len(r.Attendance); n > 0 {
		last := r.Attendance[n-1]
		in := last.ClockInAt
		sum.LastClockInAt = &in
		sum.LastClockOutAt = last.ClockOutAt
		sum.IsClockedIn = last.IsOpen()
	}
	return sum
}

// RoundHours converts a duration to hours rounded to two decimals.
func RoundHours(d time.Duration) float64 {
	if d < 0 {
		d = 0
	}
	return math.Round(d.Hours()*100) / 100
}

// parseClock parses an HH:MM token into minutes after midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ScheduledHours is the scheduled shift length. An end before the start
// means the shift ends on the following day.
func ScheduledHours(start, end string) (float64, error) {
	s, err := parseClock(start)
	if err != nil {
		return 0, err
	}
	e, err := parseClock(end)
	if err != nil {
		return 0, err
	}
	if e < s {
		e += 24 * 60
	}
	return RoundHours(time.Duration(e-s) * time.Minute), nil
}

// ScheduledEnd resolves date + end_time into an instant in loc, rolling over
// to the next day for overnight shifts.
func ScheduledEnd(date, start, end string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	e, err := parseClock(end)
	if err != nil {
		return time.Time{}, err
	}
	endAt := day.Add(time.Duration(e) * time.Minute)
	if start != "" {
		if s, err := parseClock(start); err == nil && e < s {
			endAt = endAt.AddDate(0, 0, 1)
		}
	}
	return endAt, nil
}
