package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/juanse07/nexa-sub001/internal/model"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// EventRepository persists events with their role ledger, roster and attendance.
//
// ClaimRole, SwitchRole, ReleaseRole, RecordDecline, AppendSession,
// CloseSession and ApproveSession are conditional writes: when the stored
// state no longer satisfies their precondition they change nothing and return
// pkgerrors.ErrConditionFailed. Update is the only full rewrite and is guarded
// by the event version (pkgerrors.ErrOptimisticLock).
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	ListByManager(ctx context.Context, managerID string, status model.EventStatus, offset, limit int) ([]model.Event, int64, error)
	// ListAvailable returns open events visible to the identity directly or via one of its teams.
	ListAvailable(ctx context.Context, userKey string, teamIDs []string) ([]model.Event, error)
	ListAcceptedBy(ctx context.Context, id model.Identity) ([]model.Event, error)
	// ListWithOpenSessions returns open events that still have a session without clock-out.
	ListWithOpenSessions(ctx context.Context) ([]model.Event, error)
	Update(ctx context.Context, event *model.Event) error

	// ClaimRole appends rec and takes one unit of its role, provided the event is
	// open, the role has room and the identity holds no acceptance. Clears any decline.
	ClaimRole(ctx context.Context, eventID string, rec model.StaffRecord) error
	// SwitchRole moves the identity from fromRole to toRole as one unit.
	SwitchRole(ctx context.Context, eventID string, id model.Identity, fromRole, toRole string, at time.Time) error
	// ReleaseRole removes the identity's acceptance (only while it has no attendance),
	// frees its unit and records the decline.
	ReleaseRole(ctx context.Context, eventID string, decline model.DeclineRecord) error
	// RecordDecline stores or refreshes a decline for an identity holding no acceptance.
	RecordDecline(ctx context.Context, eventID string, decline model.DeclineRecord) error
	// RepairStats recomputes every role's taken from the accepted roster.
	RepairStats(ctx context.Context, eventID string) error

	// AppendSession opens a session for an accepted identity that has none open.
	AppendSession(ctx context.Context, eventID string, id model.Identity, at time.Time) error
	// CloseSession writes clock-out data onto the observed open session.
	CloseSession(ctx context.Context, eventID string, id model.Identity, session model.AttendanceSession) error
	// ApproveSession stamps approval onto a closed pending session.
	ApproveSession(ctx context.Context, eventID string, id model.Identity, session model.AttendanceSession) error
}

var openStatuses = []string{
	string(model.EventStatusPublished),
	string(model.EventStatusConfirmed),
	string(model.EventStatusInProgress),
}

// ── PostgreSQL implementation ──

type eventRepo struct {
	db *gorm.DB
}

// NewEventRepo creates the PostgreSQL EventRepository.
func NewEventRepo(db *gorm.DB) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		if len(event.Roles) == 0 {
			return nil
		}
		for i := range event.Roles {
			event.Roles[i].EventID = event.EventID
			event.Roles[i].RoleKey = model.RoleKey(event.Roles[i].Role)
			event.Roles[i].Position = i
		}
		return tx.Create(&event.Roles).Error
	})
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	if err := r.db.WithContext(ctx).Where("event_id = ?", id).First(&event).Error; err != nil {
		return nil, translate(err)
	}
	events := []model.Event{event}
	if err := r.hydrate(ctx, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

func (r *eventRepo) ListByManager(ctx context.Context, managerID string, status model.EventStatus, offset, limit int) ([]model.Event, int64, error) {
	var (
		events []model.Event
		total  int64
	)
	query := r.db.WithContext(ctx).Model(&model.Event{}).Where("manager_id = ?", managerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("date ASC, start_time ASC").Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	if err := r.hydrate(ctx, events); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventRepo) ListAvailable(ctx context.Context, userKey string, teamIDs []string) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("status IN ?", openStatuses).
		Where("visibility_type IN ? OR ? = ANY(audience_user_keys) OR audience_team_ids && ?",
			[]string{model.VisibilityPublic, model.VisibilityPrivatePublic}, userKey, model.StringArray(teamIDs)).
		Order("date ASC, start_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepo) ListAcceptedBy(ctx context.Context, id model.Identity) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("event_id IN (?)", r.db.Model(&model.StaffRecord{}).
			Select("event_id").
			Where("provider = ? AND subject = ?", id.Provider, id.Subject)).
		Order("date ASC, start_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepo) ListWithOpenSessions(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("status IN ?", openStatuses).
		Where("event_id IN (?)", r.db.Model(&model.AttendanceSession{}).
			Select("event_id").
			Where("clock_out_at IS NULL")).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// hydrate loads roles, roster, declines and attendance for the given events.
func (r *eventRepo) hydrate(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, len(events))
	index := make(map[string]int, len(events))
	for i := range events {
		ids[i] = events[i].EventID
		index[events[i].EventID] = i
	}
	db := r.db.WithContext(ctx)

	var roles []model.EventRole
	if err := db.Where("event_id IN ?", ids).Order("position ASC").Find(&roles).Error; err != nil {
		return fmt.Errorf("failed to load roles: %w", err)
	}
	var staff []model.StaffRecord
	if err := db.Where("event_id IN ?", ids).Order("responded_at ASC").Find(&staff).Error; err != nil {
		return fmt.Errorf("failed to load staff: %w", err)
	}
	var declines []model.DeclineRecord
	if err := db.Where("event_id IN ?", ids).Order("responded_at ASC").Find(&declines).Error; err != nil {
		return fmt.Errorf("failed to load declines: %w", err)
	}
	var sessions []model.AttendanceSession
	if err := db.Where("event_id IN ?", ids).Order("clock_in_at ASC").Find(&sessions).Error; err != nil {
		return fmt.Errorf("failed to load attendance: %w", err)
	}

	for i := range events {
		events[i].Roles = []model.EventRole{}
		events[i].AcceptedStaff = []model.StaffRecord{}
		events[i].DeclinedStaff = []model.DeclineRecord{}
	}
	for _, role := range roles {
		e := &events[index[role.EventID]]
		e.Roles = append(e.Roles, role)
	}
	for _, s := range staff {
		e := &events[index[s.EventID]]
		e.AcceptedStaff = append(e.AcceptedStaff, s)
	}
	for _, d := range declines {
		e := &events[index[d.EventID]]
		e.DeclinedStaff = append(e.DeclinedStaff, d)
	}
	for _, s := range sessions {
		e := &events[index[s.EventID]]
		if rec := e.FindAccepted(model.Identity{Provider: s.Provider, Subject: s.Subject}); rec != nil {
			rec.Attendance = append(rec.Attendance, s)
		}
	}
	for i := range events {
		events[i].SyncStats()
	}
	return nil
}

// Update rewrites the event details, status and role lines under the version
// guard. Role upserts keep the stored taken; the schema rejects capacities
// below taken and removal of roles that still have accepted staff.
func (r *eventRepo) Update(ctx context.Context, event *model.Event) error {
	oldVersion := event.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Event{}).
			Where("event_id = ? AND version = ?", event.EventID, oldVersion).
			Updates(map[string]interface{}{
				"status":             event.Status,
				"title":              event.Title,
				"client_name":        event.ClientName,
				"venue_name":         event.VenueName,
				"venue_address":      event.VenueAddress,
				"notes":              event.Notes,
				"date":               event.Date,
				"start_time":         event.StartTime,
				"end_time":           event.EndTime,
				"visibility_type":    event.VisibilityType,
				"audience_user_keys": event.AudienceUserKeys,
				"audience_team_ids":  event.AudienceTeamIDs,
				"published_at":       event.PublishedAt,
				"published_by":       event.PublishedBy,
				"version":            oldVersion + 1,
				"updated_at":         time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}

		keys := make([]string, 0, len(event.Roles))
		for i := range event.Roles {
			event.Roles[i].EventID = event.EventID
			event.Roles[i].RoleKey = model.RoleKey(event.Roles[i].Role)
			event.Roles[i].Position = i
			keys = append(keys, event.Roles[i].RoleKey)
		}
		if len(event.Roles) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}, {Name: "role_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"role", "capacity", "call_time", "position"}),
			}).Omit("taken").Create(&event.Roles).Error
			if err != nil {
				return err
			}
		}
		del := tx.Where("event_id = ?", event.EventID)
		if len(keys) > 0 {
			del = del.Where("role_key NOT IN ?", keys)
		}
		return del.Delete(&model.EventRole{}).Error
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return err
		}
		return translate(err)
	}
	event.Version = oldVersion + 1
	return nil
}

// claimRoleSQL is one statement: lock the open event row, take a unit when the
// role has room and the identity is absent, insert the record, clear the decline.
const claimRoleSQL = `
WITH ev AS (
    SELECT event_id FROM events
    WHERE event_id = @event_id AND status IN @open
    FOR UPDATE
), claimed AS (
    UPDATE event_roles r SET taken = r.taken + 1
    FROM ev
    WHERE r.event_id = ev.event_id AND r.role_key = @role_key AND r.taken < r.capacity
      AND NOT EXISTS (
          SELECT 1 FROM event_staff s
          WHERE s.event_id = ev.event_id AND s.provider = @provider AND s.subject = @subject)
    RETURNING r.event_id, r.role
), inserted AS (
    INSERT INTO event_staff (event_id, provider, subject, user_key, name, email, role_key, role, response, responded_at)
    SELECT event_id, @provider, @subject, @user_key, @name, @email, @role_key, role, 'accept', @at FROM claimed
    RETURNING event_id
), undeclined AS (
    DELETE FROM event_declines d USING inserted
    WHERE d.event_id = inserted.event_id AND d.provider = @provider AND d.subject = @subject
)
UPDATE events SET updated_at = @at FROM inserted WHERE events.event_id = inserted.event_id`

func (r *eventRepo) ClaimRole(ctx context.Context, eventID string, rec model.StaffRecord) error {
	result := r.db.WithContext(ctx).Exec(claimRoleSQL, map[string]interface{}{
		"event_id": eventID,
		"open":     openStatuses,
		"role_key": model.RoleKey(rec.Role),
		"provider": rec.Provider,
		"subject":  rec.Subject,
		"user_key": rec.UserKey,
		"name":     rec.Name,
		"email":    rec.Email,
		"at":       rec.RespondedAt,
	})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrConditionFailed
	}
	return nil
}

// lockOpenEvent takes the event row lock and requires an open status.
func lockOpenEvent(tx *gorm.DB, eventID string) error {
	var event model.Event
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("event_id", "status").
		Where("event_id = ?", eventID).
		First(&event).Error
	if err != nil {
		return err
	}
	if !event.Status.AcceptsResponses() {
		return pkgerrors.ErrConditionFailed
	}
	return nil
}

func (r *eventRepo) SwitchRole(ctx context.Context, eventID string, id model.Identity, fromRole, toRole string, at time.Time) error {
	fromKey, toKey := model.RoleKey(fromRole), model.RoleKey(toRole)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenEvent(tx, eventID); err != nil {
			return err
		}

		// 1. take a unit of the new role
		res := tx.Model(&model.EventRole{}).
			Where("event_id = ? AND role_key = ? AND taken < capacity", eventID, toKey).
			Update("taken", gorm.Expr("taken + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.ErrConditionFailed
		}

		// 2. move the record, only if it still holds the old role
		res = tx.Model(&model.StaffRecord{}).
			Where("event_id = ? AND provider = ? AND subject = ? AND role_key = ?", eventID, id.Provider, id.Subject, fromKey).
			Updates(map[string]interface{}{
				"role_key":     toKey,
				"role":         toRole,
				"responded_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.ErrConditionFailed
		}

		// 3. free the old unit
		res = tx.Model(&model.EventRole{}).
			Where("event_id = ? AND role_key = ? AND taken > 0", eventID, fromKey).
			Update("taken", gorm.Expr("taken - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.ErrConditionFailed
		}

		return tx.Model(&model.Event{}).Where("event_id = ?", eventID).Update("updated_at", at).Error
	})
	return translate(err)
}

func (r *eventRepo) ReleaseRole(ctx context.Context, eventID string, decline model.DeclineRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenEvent(tx, eventID); err != nil {
			return err
		}

		var released []struct{ RoleKey string }
		res := tx.Raw(`
DELETE FROM event_staff s
WHERE s.event_id = ? AND s.provider = ? AND s.subject = ?
  AND NOT EXISTS (
      SELECT 1 FROM event_attendance a
      WHERE a.event_id = s.event_id AND a.provider = s.provider AND a.subject = s.subject)
RETURNING s.role_key`, eventID, decline.Provider, decline.Subject).Scan(&released)
		if res.Error != nil {
			return res.Error
		}
		if len(released) == 0 {
			return pkgerrors.ErrConditionFailed
		}

		res = tx.Model(&model.EventRole{}).
			Where("event_id = ? AND role_key = ? AND taken > 0", eventID, released[0].RoleKey).
			Update("taken", gorm.Expr("taken - 1"))
		if res.Error != nil {
			return res.Error
		}

		decline.EventID = eventID
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "provider"}, {Name: "subject"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "responded_at"}),
		}).Create(&decline).Error; err != nil {
			return err
		}

		return tx.Model(&model.Event{}).Where("event_id = ?", eventID).Update("updated_at", decline.RespondedAt).Error
	})
	return translate(err)
}

const recordDeclineSQL = `
INSERT INTO event_declines (event_id, provider, subject, user_key, name, email, responded_at)
SELECT @event_id, @provider, @subject, @user_key, @name, @email, @at
WHERE EXISTS (SELECT 1 FROM events WHERE event_id = @event_id AND status IN @open)
  AND NOT EXISTS (
      SELECT 1 FROM event_staff
      WHERE event_id = @event_id AND provider = @provider AND subject = @subject)
ON CONFLICT (event_id, provider, subject)
DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, responded_at = EXCLUDED.responded_at`

func (r *eventRepo) RecordDecline(ctx context.Context, eventID string, decline model.DeclineRecord) error {
	result := r.db.WithContext(ctx).Exec(recordDeclineSQL, map[string]interface{}{
		"event_id": eventID,
		"open":     openStatuses,
		"provider": decline.Provider,
		"subject":  decline.Subject,
		"user_key": decline.UserKey,
		"name":     decline.Name,
		"email":    decline.Email,
		"at":       decline.RespondedAt,
	})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrConditionFailed
	}
	return nil
}

func (r *eventRepo) RepairStats(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).Exec(`
UPDATE event_roles r SET taken = (
    SELECT COUNT(*) FROM event_staff s
    WHERE s.event_id = r.event_id AND s.role_key = r.role_key)
WHERE r.event_id = ?`, eventID).Error
}

const appendSessionSQL = `
INSERT INTO event_attendance (event_id, provider, subject, clock_in_at, status)
SELECT @event_id, @provider, @subject, @at, 'pending'
WHERE EXISTS (
    SELECT 1 FROM events e
    JOIN event_staff s ON s.event_id = e.event_id
    WHERE e.event_id = @event_id AND e.status IN @open
      AND s.provider = @provider AND s.subject = @subject)
ON CONFLICT DO NOTHING`

func (r *eventRepo) AppendSession(ctx context.Context, eventID string, id model.Identity, at time.Time) error {
	result := r.db.WithContext(ctx).Exec(appendSessionSQL, map[string]interface{}{
		"event_id": eventID,
		"open":     openStatuses,
		"provider": id.Provider,
		"subject":  id.Subject,
		"at":       at,
	})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrConditionFailed
	}
	return nil
}

func (r *eventRepo) CloseSession(ctx context.Context, eventID string, id model.Identity, session model.AttendanceSession) error {
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceSession{}).
		Where("session_id = ? AND event_id = ? AND provider = ? AND subject = ? AND clock_out_at IS NULL",
			session.SessionID, eventID, id.Provider, id.Subject).
		Updates(map[string]interface{}{
			"clock_out_at":    session.ClockOutAt,
			"estimated_hours": session.EstimatedHours,
			"auto_clock_out":  session.AutoClockOut,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrConditionFailed
	}
	return nil
}

func (r *eventRepo) ApproveSession(ctx context.Context, eventID string, id model.Identity, session model.AttendanceSession) error {
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceSession{}).
		Where("session_id = ? AND event_id = ? AND provider = ? AND subject = ? AND clock_out_at IS NOT NULL AND status = ?",
			session.SessionID, eventID, id.Provider, id.Subject, model.AttendancePending).
		Updates(map[string]interface{}{
			"status":         model.AttendanceApproved,
			"approved_hours": session.ApprovedHours,
			"approved_by":    session.ApprovedBy,
			"approved_at":    session.ApprovedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrConditionFailed
	}
	return nil
}
