package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/config"
	"github.com/juanse07/nexa-sub001/internal/billing"
	"github.com/juanse07/nexa-sub001/internal/notify"
	"github.com/juanse07/nexa-sub001/internal/repository"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// Service is the aggregate entry point for every service.
type Service struct {
	Event        EventService
	Attendance   AttendanceService
	Organization OrganizationService
	Team         TeamService
	Manager      ManagerService
	Export       ExportService
	Calendar     CalendarService
	Notification NotificationService
}

// NewService wires the services. notifier, seats and retry may be nil.
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	notifier notify.Notifier,
	seats billing.SeatSink,
	retry billing.RetryQueue,
	logger *zap.Logger,
) *Service {
	loc := cfg.Attendance.Location()
	events := NewEventService(repo, notifier, logger)
	orgs := NewOrganizationService(cfg, repo, seats, retry, logger)

	return &Service{
		Event:        events,
		Attendance:   NewAttendanceService(&cfg.Attendance, repo, notifier, logger),
		Organization: orgs,
		Team:         NewTeamService(repo, orgs, logger),
		Manager:      NewManagerService(repo, logger),
		Export:       NewExportService(repo, loc, logger),
		Calendar:     NewCalendarService(repo, events, loc, logger),
		Notification: NewNotificationService(repo, logger),
	}
}

// deliver sends msg and only logs a failure; notifications never fail the caller.
func deliver(ctx context.Context, n notify.Notifier, logger *zap.Logger, msg notify.Message) {
	if n == nil || len(msg.Recipients) == 0 {
		return
	}
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}
	if err := n.Notify(ctx, msg); err != nil {
		logger.Warn("notification failed",
			zap.String("type", msg.Type),
			zap.String("event_id", msg.EventID),
			zap.Int("recipients", len(msg.Recipients)),
			zap.Error(err),
		)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, pkgerrors.ErrNotFound)
}
