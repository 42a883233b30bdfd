package handler

import "github.com/juanse07/nexa-sub001/internal/service"

// Handler groups every HTTP handler.
type Handler struct {
	Event        *EventHandler
	Attendance   *AttendanceHandler
	Organization *OrganizationHandler
	Manager      *ManagerHandler
	Team         *TeamHandler
	Export       *ExportHandler
	Calendar     *CalendarHandler
	Notification *NotificationHandler
}

// NewHandler builds the handlers from the service set.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Event:        NewEventHandler(svc.Event),
		Attendance:   NewAttendanceHandler(svc.Attendance),
		Organization: NewOrganizationHandler(svc.Organization),
		Manager:      NewManagerHandler(svc.Manager, svc.Organization),
		Team:         NewTeamHandler(svc.Team),
		Export:       NewExportHandler(svc.Export),
		Calendar:     NewCalendarHandler(svc.Calendar),
		Notification: NewNotificationHandler(svc.Notification),
	}
}
