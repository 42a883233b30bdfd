package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/juanse07/nexa-sub001/config"
	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/notify"
	"github.com/juanse07/nexa-sub001/internal/repository"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// ── attendance errors ──

var (
	ErrNotAccepted      = errors.New("no accepted response for this event")
	ErrAlreadyClockedIn = errors.New("already clocked in")
	ErrNotClockedIn     = errors.New("not clocked in")
	ErrNoClosedSession  = errors.New("no completed attendance to approve")
)

// sweepParallelism bounds how many events one auto clock-out sweep writes concurrently.
const sweepParallelism = 4

// AttendanceService records clock-in/clock-out sessions and hour approval.
type AttendanceService interface {
	ClockIn(ctx context.Context, eventID string, id model.Identity) (*model.AttendanceSummary, error)
	ClockOut(ctx context.Context, eventID string, id model.Identity) (*model.AttendanceSummary, error)
	ApproveHours(ctx context.Context, eventID, managerID string, req *dto.ApproveHoursRequest) (*dto.ApproveHoursResponse, error)
	GetMyAttendance(ctx context.Context, eventID string, id model.Identity) (*model.AttendanceSummary, error)
	// AutoClockOut closes sessions still open a buffer after their event's scheduled end.
	AutoClockOut(ctx context.Context, now time.Time) (int, error)
}

type attendanceService struct {
	repo     *repository.Repository
	notifier notify.Notifier
	buffer   time.Duration
	loc      *time.Location
	logger   *zap.Logger
}

// NewAttendanceService creates the AttendanceService.
func NewAttendanceService(cfg *config.AttendanceConfig, repo *repository.Repository, notifier notify.Notifier, logger *zap.Logger) AttendanceService {
	return &attendanceService{
		repo:     repo,
		notifier: notifier,
		buffer:   cfg.AutoClockOutBuffer,
		loc:      cfg.Location(),
		logger:   logger,
	}
}

func (s *attendanceService) load(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := s.repo.Event.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("failed to load event", zap.String("event_id", eventID), zap.Error(err))
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return event, nil
}

func summaryOf(event *model.Event, id model.Identity) (*model.AttendanceSummary, error) {
	rec := event.FindAccepted(id)
	if rec == nil {
		return nil, ErrNotAccepted
	}
	sum := rec.Summary()
	return &sum, nil
}

// ════════════════════════════════════════════════════════════
// Clock in / out
// ════════════════════════════════════════════════════════════

func (s *attendanceService) ClockIn(ctx context.Context, eventID string, id model.Identity) (*model.AttendanceSummary, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		// 1. classify against the current state
		if !event.Status.AcceptsResponses() {
			return nil, ErrEventNotOpen
		}
		rec := event.FindAccepted(id)
		if rec == nil {
			return nil, ErrNotAccepted
		}
		if rec.OpenSession() != nil {
			return nil, ErrAlreadyClockedIn
		}

		// 2. conditional append
		err = s.repo.Event.AppendSession(ctx, eventID, id, time.Now().UTC())
		if err == nil {
			s.logger.Info("clocked in", zap.String("event_id", eventID), zap.String("user_key", id.Key()))
			if event, err = s.load(ctx, eventID); err != nil {
				return nil, err
			}
			return summaryOf(event, id)
		}
		if !errors.Is(err, pkgerrors.ErrConditionFailed) {
			s.logger.Error("failed to clock in", zap.String("event_id", eventID), zap.Error(err))
			return nil, err
		}
		if attempt >= maxWriteAttempts {
			return nil, ErrResponseConflict
		}
		if event, err = s.load(ctx, eventID); err != nil {
			return nil, err
		}
	}
}

// closeSession stamps clock-out data onto a copy of the open session.
// closeSession never stamps a clock-out before the clock-in.
func closeSession(open model.AttendanceSession, at time.Time, auto bool) model.AttendanceSession {
	if at.Before(open.ClockInAt) {
		at = open.ClockInAt
	}
	hours := model.RoundHours(at.Sub(open.ClockInAt))
	open.ClockOutAt = &at
	open.EstimatedHours = &hours
	open.AutoClockOut = auto
	return open
}

func (s *attendanceService) ClockOut(ctx context.Context, eventID string, id model.Identity) (*model.AttendanceSummary, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	// a completed event still lets staff finish their session
	if !event.Status.AcceptsResponses() && event.Status != model.EventStatusCompleted {
		return nil, ErrEventNotOpen
	}
	rec := event.FindAccepted(id)
	if rec == nil {
		return nil, ErrNotAccepted
	}
	open := rec.OpenSession()
	if open == nil {
		return nil, ErrNotClockedIn
	}

	closed := closeSession(*open, time.Now().UTC(), false)
	if err := s.repo.Event.CloseSession(ctx, eventID, id, closed); err != nil {
		if errors.Is(err, pkgerrors.ErrConditionFailed) {
			return nil, ErrNotClockedIn
		}
		s.logger.Error("failed to clock out", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}
	*open = closed

	s.logger.Info("clocked out",
		zap.String("event_id", eventID),
		zap.String("user_key", id.Key()),
		zap.Float64("estimated_hours", *closed.EstimatedHours),
	)
	sum := rec.Summary()
	return &sum, nil
}

func (s *attendanceService) GetMyAttendance(ctx context.Context, eventID string, id model.Identity) (*model.AttendanceSummary, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return summaryOf(event, id)
}

// ════════════════════════════════════════════════════════════
// ApproveHours
// ════════════════════════════════════════════════════════════

func (s *attendanceService) ApproveHours(ctx context.Context, eventID, managerID string, req *dto.ApproveHoursRequest) (*dto.ApproveHoursResponse, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.ManagerID != managerID {
		return nil, ErrNotEventManager
	}
	id := model.Identity{Provider: req.Provider, Subject: req.Subject}
	rec := event.FindAccepted(id)
	if rec == nil {
		return nil, ErrNotAccepted
	}

	// 1. collect closed sessions; the latest pending one takes explicit hours
	var pending []model.AttendanceSession
	closedCount := 0
	for _, sess := range rec.Attendance {
		if sess.IsOpen() {
			continue
		}
		closedCount++
		if sess.Status == model.AttendancePending {
			pending = append(pending, sess)
		}
	}
	if closedCount == 0 {
		return nil, ErrNoClosedSession
	}

	// 2. stamp each pending session; a session approved concurrently is skipped
	now := time.Now().UTC()
	approved := 0
	for i, sess := range pending {
		hours := sess.EstimatedHours
		if req.ApprovedHours != nil && i == len(pending)-1 {
			h := *req.ApprovedHours
			hours = &h
		}
		by := managerID
		sess.ApprovedHours = hours
		sess.ApprovedBy = &by
		sess.ApprovedAt = &now

		err := s.repo.Event.ApproveSession(ctx, eventID, id, sess)
		if errors.Is(err, pkgerrors.ErrConditionFailed) {
			continue
		}
		if err != nil {
			s.logger.Error("failed to approve hours", zap.String("event_id", eventID), zap.Error(err))
			return nil, err
		}
		approved++
	}

	s.logger.Info("hours approved",
		zap.String("event_id", eventID),
		zap.String("user_key", id.Key()),
		zap.Int("sessions", approved),
	)
	return &dto.ApproveHoursResponse{Approved: approved}, nil
}

// ════════════════════════════════════════════════════════════
// AutoClockOut sweep
// ════════════════════════════════════════════════════════════

func (s *attendanceService) AutoClockOut(ctx context.Context, now time.Time) (int, error) {
	events, err := s.repo.Event.ListWithOpenSessions(ctx)
	if err != nil {
		s.logger.Error("failed to list events with open sessions", zap.Error(err))
		return 0, err
	}

	var closed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	for i := range events {
		event := &events[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			closed.Add(int64(s.sweepEvent(gctx, event, now)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(closed.Load()), err
	}

	if n := closed.Load(); n > 0 {
		s.logger.Info("auto clock-out sweep", zap.Int64("closed", n), zap.Int("events", len(events)))
	}
	return int(closed.Load()), nil
}

// sweepEvent closes the overdue sessions of one event and returns how many it closed.
func (s *attendanceService) sweepEvent(ctx context.Context, event *model.Event, now time.Time) int {
	if event.Date == "" || event.EndTime == "" {
		return 0
	}
	end, err := model.ScheduledEnd(event.Date, event.StartTime, event.EndTime, s.loc)
	if err != nil {
		s.logger.Warn("skipping event with unparseable schedule", zap.String("event_id", event.EventID), zap.Error(err))
		return 0
	}
	if now.Before(end.Add(s.buffer)) {
		return 0
	}

	closed := 0
	for i := range event.AcceptedStaff {
		rec := &event.AcceptedStaff[i]
		open := rec.OpenSession()
		if open == nil {
			continue
		}
		sess := closeSession(*open, now.UTC(), true)
		err := s.repo.Event.CloseSession(ctx, event.EventID, rec.Identity(), sess)
		if errors.Is(err, pkgerrors.ErrConditionFailed) {
			// staff clocked out in the meantime
			continue
		}
		if err != nil {
			s.logger.Error("auto clock-out failed",
				zap.String("event_id", event.EventID),
				zap.String("user_key", rec.UserKey),
				zap.Error(err),
			)
			continue
		}
		closed++

		deliver(ctx, s.notifier, s.logger, notify.Message{
			Type:       model.NotifyAutoClockOut,
			Recipients: []string{rec.UserKey},
			EventID:    event.EventID,
			Role:       rec.Role,
			Title:      "Auto clock-out",
			Content: fmt.Sprintf("You were automatically clocked out from %s after %.1f hours",
				event.Title, *sess.EstimatedHours),
		})
	}
	return closed
}
