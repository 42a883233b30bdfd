package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/notify"
	"github.com/juanse07/nexa-sub001/internal/repository"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// ── event errors ──

var (
	ErrEventNotFound          = errors.New("event not found")
	ErrEventNotOpen           = errors.New("event is not open for responses")
	ErrEventClosed            = errors.New("event is completed or cancelled")
	ErrRoleNotFound           = errors.New("role not found on event")
	ErrDuplicateRole          = errors.New("role listed more than once")
	ErrCapacityExceeded       = errors.New("capacity exceeded")
	ErrRoleChangeFailed       = errors.New("role change failed, reload the event and retry")
	ErrResponseConflict       = errors.New("event changed while responding, please retry")
	ErrDeclineAfterClockIn    = errors.New("cannot decline after clocking in")
	ErrNotEventManager        = errors.New("only the event's manager may do this")
	ErrInvalidTransition      = errors.New("status transition not allowed")
	ErrRoleCapacityBelowTaken = errors.New("role capacity below accepted staff")
	ErrRoleHasAcceptedStaff   = errors.New("role still has accepted staff")
)

// Respond outcomes
const (
	OutcomeAccepted        = "accepted"
	OutcomeAlreadyAccepted = "already_accepted"
	OutcomeDeclined        = "declined"
)

// maxWriteAttempts bounds the reload-and-retry loop around conditional writes.
const maxWriteAttempts = 3

// capacityExceeded names the full role in the error text.
func capacityExceeded(role string) error {
	return fmt.Errorf("%w: No spots left for role '%s'", ErrCapacityExceeded, role)
}

// EventService manages events, their role ledger and the accept/decline protocol.
type EventService interface {
	Create(ctx context.Context, managerID string, req *dto.CreateEventRequest) (*dto.EventResponse, error)
	Get(ctx context.Context, eventID string) (*dto.EventResponse, error)
	ListMine(ctx context.Context, managerID string, req *dto.EventListRequest) ([]*dto.EventResponse, int64, error)
	ListAvailable(ctx context.Context, id model.Identity) ([]*dto.EventResponse, error)
	UpdateRoles(ctx context.Context, eventID, managerID string, req *dto.UpdateRolesRequest) (*dto.EventResponse, error)
	Publish(ctx context.Context, eventID, managerID string) (*dto.EventResponse, error)
	Transition(ctx context.Context, eventID, managerID string, to model.EventStatus) (*dto.EventResponse, error)
	// Respond applies an accept or decline for the identity.
	Respond(ctx context.Context, eventID string, id model.Identity, req *dto.RespondRequest) (*dto.RespondResponse, error)
	// RepairStats recomputes the role ledger from the roster. An empty managerID
	// skips the ownership check (operator tooling).
	RepairStats(ctx context.Context, eventID, managerID string) (*dto.RepairStatsResponse, error)
}

type eventService struct {
	repo     *repository.Repository
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewEventService creates the EventService.
func NewEventService(repo *repository.Repository, notifier notify.Notifier, logger *zap.Logger) EventService {
	return &eventService{repo: repo, notifier: notifier, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Queries
// ════════════════════════════════════════════════════════════

func (s *eventService) load(ctx context.Context, eventID string) (*model.Event, error) {
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

func (s *eventService) loadOwned(ctx context.Context, eventID, managerID string) (*model.Event, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if managerID != "" && event.ManagerID != managerID {
		return nil, ErrNotEventManager
	}
	return event, nil
}

func (s *eventService) Get(ctx context.Context, eventID string) (*dto.EventResponse, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return dto.NewEventResponse(event), nil
}

func (s *eventService) ListMine(ctx context.Context, managerID string, req *dto.EventListRequest) ([]*dto.EventResponse, int64, error) {
	events, total, err := s.repo.Event.ListByManager(ctx, managerID, model.EventStatus(req.Status), req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("failed to list events", zap.String("manager_id", managerID), zap.Error(err))
		return nil, 0, err
	}
	return dto.NewEventResponses(events), total, nil
}

func (s *eventService) ListAvailable(ctx context.Context, id model.Identity) ([]*dto.EventResponse, error) {
	teamIDs, err := s.repo.Team.ListTeamIDsFor(ctx, id)
	if err != nil {
		s.logger.Error("failed to list teams", zap.String("user_key", id.Key()), zap.Error(err))
		return nil, err
	}
	events, err := s.repo.Event.ListAvailable(ctx, id.Key(), teamIDs)
	if err != nil {
		s.logger.Error("failed to list available events", zap.String("user_key", id.Key()), zap.Error(err))
		return nil, err
	}
	return dto.NewEventResponses(events), nil
}

// ════════════════════════════════════════════════════════════
// Manager edits
// ════════════════════════════════════════════════════════════

// buildRoles turns the requested lines into role rows, carrying over the
// taken count of roles that already exist on the event. The roster is
// consulted as well so a drifted ledger cannot hide accepted staff.
func buildRoles(existing []model.EventRole, accepted []model.StaffRecord, inputs []dto.RoleInput) ([]model.EventRole, error) {
	current := make(map[string]model.EventRole, len(existing))
	for _, r := range existing {
		current[model.RoleKey(r.Role)] = r
	}
	held := make(map[string]int, len(existing))
	for _, rec := range accepted {
		held[model.RoleKey(rec.Role)]++
	}

	seen := make(map[string]bool, len(inputs))
	roles := make([]model.EventRole, 0, len(inputs))
	for i, in := range inputs {
		key := model.RoleKey(in.Role)
		if key == "" {
			return nil, fmt.Errorf("%w: empty role name", ErrRoleNotFound)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: '%s'", ErrDuplicateRole, in.Role)
		}
		seen[key] = true

		taken := current[key].Taken
		if in.Count < max(taken, held[key]) {
			return nil, fmt.Errorf("%w: '%s' has %d accepted", ErrRoleCapacityBelowTaken, in.Role, max(taken, held[key]))
		}
		roles = append(roles, model.EventRole{
			RoleKey:  key,
			Role:     in.Role,
			Capacity: in.Count,
			Taken:    taken,
			CallTime: in.CallTime,
			Position: i,
		})
	}

	for key, r := range current {
		if !seen[key] && (r.Taken > 0 || held[key] > 0) {
			return nil, fmt.Errorf("%w: '%s'", ErrRoleHasAcceptedStaff, r.Role)
		}
	}
	return roles, nil
}

func (s *eventService) Create(ctx context.Context, managerID string, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
	roles, err := buildRoles(nil, nil, req.Roles)
	if err != nil {
		return nil, err
	}
	visibility := req.VisibilityType
	if visibility == "" {
		visibility = model.VisibilityPrivate
	}

	event := &model.Event{
		ManagerID:        managerID,
		Status:           model.EventStatusDraft,
		Title:            req.Title,
		ClientName:       req.ClientName,
		VenueName:        req.VenueName,
		VenueAddress:     req.VenueAddress,
		Notes:            req.Notes,
		Date:             req.Date,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		VisibilityType:   visibility,
		AudienceUserKeys: model.StringArray(req.AudienceUserKeys),
		AudienceTeamIDs:  model.StringArray(req.AudienceTeamIDs),
		Version:          1,
		Roles:            roles,
		AcceptedStaff:    []model.StaffRecord{},
		DeclinedStaff:    []model.DeclineRecord{},
	}
	if err := s.repo.Event.Create(ctx, event); err != nil {
		s.logger.Error("failed to create event", zap.String("manager_id", managerID), zap.Error(err))
		return nil, err
	}
	event.SyncStats()

	s.logger.Info("event created", zap.String("event_id", event.EventID), zap.String("manager_id", managerID))
	return dto.NewEventResponse(event), nil
}

// rewrite applies mutate to a fresh copy of the event and stores it under the
// version guard, reloading and re-applying when a concurrent write wins.
func (s *eventService) rewrite(ctx context.Context, eventID, managerID string, mutate func(*model.Event) error) (*model.Event, error) {
	for attempt := 1; ; attempt++ {
		event, err := s.loadOwned(ctx, eventID, managerID)
		if err != nil {
			return nil, err
		}
		if err := mutate(event); err != nil {
			return nil, err
		}

		err = s.repo.Event.Update(ctx, event)
		if err == nil {
			event.SyncStats()
			return event, nil
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) && !errors.Is(err, pkgerrors.ErrConditionFailed) {
			s.logger.Error("failed to update event", zap.String("event_id", eventID), zap.Error(err))
			return nil, err
		}
		if attempt >= maxWriteAttempts {
			return nil, pkgerrors.ErrOptimisticLock
		}
	}
}

func (s *eventService) UpdateRoles(ctx context.Context, eventID, managerID string, req *dto.UpdateRolesRequest) (*dto.EventResponse, error) {
	event, err := s.rewrite(ctx, eventID, managerID, func(e *model.Event) error {
		if e.Status.IsTerminal() {
			return ErrEventClosed
		}
		roles, err := buildRoles(e.Roles, e.AcceptedStaff, req.Roles)
		if err != nil {
			return err
		}
		e.Roles = roles
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("event roles updated", zap.String("event_id", eventID), zap.Int("roles", len(event.Roles)))
	return dto.NewEventResponse(event), nil
}

func (s *eventService) Publish(ctx context.Context, eventID, managerID string) (*dto.EventResponse, error) {
	return s.Transition(ctx, eventID, managerID, model.EventStatusPublished)
}

func (s *eventService) Transition(ctx context.Context, eventID, managerID string, to model.EventStatus) (*dto.EventResponse, error) {
	if !to.Valid() {
		return nil, ErrInvalidTransition
	}
	now := time.Now().UTC()
	event, err := s.rewrite(ctx, eventID, managerID, func(e *model.Event) error {
		if !e.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, e.Status, to)
		}
		e.Status = to
		if to == model.EventStatusPublished {
			by := managerID
			e.PublishedAt = &now
			e.PublishedBy = &by
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event status changed",
		zap.String("event_id", eventID),
		zap.String("status", string(to)),
	)

	switch to {
	case model.EventStatusPublished:
		s.notifyPublished(ctx, event)
	case model.EventStatusCancelled:
		recipients := make([]string, 0, len(event.AcceptedStaff))
		for _, rec := range event.AcceptedStaff {
			recipients = append(recipients, rec.UserKey)
		}
		deliver(ctx, s.notifier, s.logger, notify.Message{
			Type:       model.NotifyCancelled,
			Recipients: recipients,
			EventID:    event.EventID,
			Title:      "Event cancelled",
			Content:    fmt.Sprintf("%s has been cancelled", event.Title),
		})
	}
	return dto.NewEventResponse(event), nil
}

// notifyPublished tells the direct audience and the active members of the
// audience teams that new roles are open.
func (s *eventService) notifyPublished(ctx context.Context, event *model.Event) {
	seen := make(map[string]bool)
	var recipients []string
	add := func(key string) {
		if key != "" && !seen[key] {
			seen[key] = true
			recipients = append(recipients, key)
		}
	}
	for _, k := range event.AudienceUserKeys {
		add(k)
	}
	for _, teamID := range event.AudienceTeamIDs {
		members, err := s.repo.Team.ListMembers(ctx, teamID)
		if err != nil {
			s.logger.Warn("failed to list audience team", zap.String("team_id", teamID), zap.Error(err))
			continue
		}
		for _, m := range members {
			if m.Status == model.TeamMemberActive {
				add(model.UserKey(m.Provider, m.Subject))
			}
		}
	}
	deliver(ctx, s.notifier, s.logger, notify.Message{
		Type:       model.NotifyNewOpen,
		Recipients: recipients,
		EventID:    event.EventID,
		Title:      "New event available",
		Content:    fmt.Sprintf("%s is open for responses", event.Title),
	})
}

func (s *eventService) RepairStats(ctx context.Context, eventID, managerID string) (*dto.RepairStatsResponse, error) {
	event, err := s.loadOwned(ctx, eventID, managerID)
	if err != nil {
		return nil, err
	}
	drift := event.StatsDrift()
	if len(drift) > 0 {
		if err := s.repo.Event.RepairStats(ctx, eventID); err != nil {
			s.logger.Error("failed to repair role stats", zap.String("event_id", eventID), zap.Error(err))
			return nil, err
		}
		s.logger.Warn("role stats repaired", zap.String("event_id", eventID), zap.Int("roles", len(drift)))
		if event, err = s.load(ctx, eventID); err != nil {
			return nil, err
		}
	}
	if drift == nil {
		drift = []model.RoleStat{}
	}
	return &dto.RepairStatsResponse{Drift: drift, Event: dto.NewEventResponse(event)}, nil
}

// ════════════════════════════════════════════════════════════
// Respond: accept / decline / switch
// ════════════════════════════════════════════════════════════

func (s *eventService) Respond(ctx context.Context, eventID string, id model.Identity, req *dto.RespondRequest) (*dto.RespondResponse, error) {
	if req.Response == "decline" {
		return s.decline(ctx, eventID, id, req.Role)
	}
	return s.accept(ctx, eventID, id, req.Role)
}

// loadOpen loads the event and requires it to accept responses.
func (s *eventService) loadOpen(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.Status.AcceptsResponses() {
		return nil, ErrEventNotOpen
	}
	return event, nil
}

func (s *eventService) accept(ctx context.Context, eventID string, id model.Identity, roleName string) (*dto.RespondResponse, error) {
	// 1. load and check eligibility
	event, err := s.loadOpen(ctx, eventID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		role := event.FindRole(roleName)
		if role == nil {
			return nil, ErrRoleNotFound
		}

		// 2. an existing acceptance is either a no-op or a switch
		if held := event.FindAccepted(id); held != nil {
			if model.RoleKey(held.Role) == model.RoleKey(role.Role) {
				return &dto.RespondResponse{Outcome: OutcomeAlreadyAccepted, Role: held.Role, Event: dto.NewEventResponse(event)}, nil
			}
			return s.switchRole(ctx, event, id, held.Role, role.Role)
		}
		if role.Taken >= role.Capacity {
			return nil, capacityExceeded(role.Role)
		}

		// 3. conditional claim
		err = s.repo.Event.ClaimRole(ctx, eventID, model.NewStaffRecord(eventID, id, role.Role, time.Now().UTC()))
		if err == nil {
			return s.afterClaim(ctx, eventID, id, role.Role, "")
		}
		if !errors.Is(err, pkgerrors.ErrConditionFailed) {
			s.logger.Error("failed to claim role", zap.String("event_id", eventID), zap.Error(err))
			return nil, err
		}
		if attempt >= maxWriteAttempts {
			return nil, ErrResponseConflict
		}

		// 4. lost a race: reload and classify on the next pass
		if event, err = s.loadOpen(ctx, eventID); err != nil {
			return nil, err
		}
	}
}

// afterClaim reloads the event and tells the manager when the claimed role filled up.
func (s *eventService) afterClaim(ctx context.Context, eventID string, id model.Identity, role, previous string) (*dto.RespondResponse, error) {
	s.logger.Info("role accepted",
		zap.String("event_id", eventID),
		zap.String("user_key", id.Key()),
		zap.String("role", role),
		zap.String("previous_role", previous),
	)
	out := &dto.RespondResponse{Outcome: OutcomeAccepted, Role: role, PreviousRole: previous}

	event, err := s.load(ctx, eventID)
	if err != nil {
		// the claim is committed; only the refreshed view is missing
		s.logger.Warn("failed to reload event after accept", zap.String("event_id", eventID), zap.Error(err))
		return out, nil
	}
	out.Event = dto.NewEventResponse(event)

	if r := event.FindRole(role); r != nil && r.Taken >= r.Capacity {
		deliver(ctx, s.notifier, s.logger, notify.Message{
			Type:       model.NotifyRoleFull,
			Recipients: []string{event.ManagerID},
			EventID:    eventID,
			Role:       r.Role,
			Title:      "Role filled",
			Content:    fmt.Sprintf("All %d %s spots for %s are taken", r.Capacity, r.Role, event.Title),
		})
	}
	return out, nil
}

// switchRole moves an accepted identity to another role in one atomic store write.
func (s *eventService) switchRole(ctx context.Context, event *model.Event, id model.Identity, from, to string) (*dto.RespondResponse, error) {
	fromRole := event.FindRole(from)
	wasFull := fromRole != nil && fromRole.Taken >= fromRole.Capacity
	if r := event.FindRole(to); r != nil && r.Taken >= r.Capacity {
		return nil, capacityExceeded(r.Role)
	}

	err := s.repo.Event.SwitchRole(ctx, event.EventID, id, from, to, time.Now().UTC())
	if err == nil {
		if wasFull {
			s.notifyNowOpen(ctx, event, from)
		}
		return s.afterClaim(ctx, event.EventID, id, to, from)
	}
	if !errors.Is(err, pkgerrors.ErrConditionFailed) {
		s.logger.Error("failed to switch role", zap.String("event_id", event.EventID), zap.Error(err))
		return nil, err
	}

	// classify against the current state; the old role is kept in every branch
	fresh, err := s.loadOpen(ctx, event.EventID)
	if err != nil {
		return nil, err
	}
	target := fresh.FindRole(to)
	if target == nil {
		return nil, ErrRoleNotFound
	}
	held := fresh.FindAccepted(id)
	if held != nil && model.RoleKey(held.Role) == model.RoleKey(to) {
		return &dto.RespondResponse{Outcome: OutcomeAlreadyAccepted, Role: held.Role, Event: dto.NewEventResponse(fresh)}, nil
	}
	if held != nil && model.RoleKey(held.Role) == model.RoleKey(from) && target.Taken >= target.Capacity {
		return nil, capacityExceeded(target.Role)
	}
	return nil, ErrRoleChangeFailed
}

func (s *eventService) decline(ctx context.Context, eventID string, id model.Identity, roleName string) (*dto.RespondResponse, error) {
	event, err := s.loadOpen(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if roleName != "" && event.FindRole(roleName) == nil {
		return nil, ErrRoleNotFound
	}

	for attempt := 1; ; attempt++ {
		decline := model.NewDeclineRecord(eventID, id, time.Now().UTC())

		held := event.FindAccepted(id)
		var released *model.EventRole
		if held != nil {
			// attendance pins the acceptance
			if len(held.Attendance) > 0 {
				return nil, ErrDeclineAfterClockIn
			}
			released = event.FindRole(held.Role)
			err = s.repo.Event.ReleaseRole(ctx, eventID, decline)
		} else {
			err = s.repo.Event.RecordDecline(ctx, eventID, decline)
		}

		if err == nil {
			out := &dto.RespondResponse{Outcome: OutcomeDeclined}
			if held != nil {
				out.PreviousRole = held.Role
				s.logger.Info("role released", zap.String("event_id", eventID), zap.String("user_key", id.Key()), zap.String("role", held.Role))
				if released != nil && released.Taken >= released.Capacity {
					s.notifyNowOpen(ctx, event, released.Role)
				}
			}
			if fresh, err := s.load(ctx, eventID); err == nil {
				out.Event = dto.NewEventResponse(fresh)
			}
			return out, nil
		}
		if !errors.Is(err, pkgerrors.ErrConditionFailed) {
			s.logger.Error("failed to record decline", zap.String("event_id", eventID), zap.Error(err))
			return nil, err
		}
		if attempt >= maxWriteAttempts {
			return nil, ErrResponseConflict
		}
		if event, err = s.loadOpen(ctx, eventID); err != nil {
			return nil, err
		}
	}
}

func (s *eventService) notifyNowOpen(ctx context.Context, event *model.Event, role string) {
	deliver(ctx, s.notifier, s.logger, notify.Message{
		Type:       model.NotifyRoleNowOpen,
		Recipients: []string{event.ManagerID},
		EventID:    event.EventID,
		Role:       role,
		Title:      "Spot opened",
		Content:    fmt.Sprintf("A %s spot for %s is open again", role, event.Title),
	})
}
