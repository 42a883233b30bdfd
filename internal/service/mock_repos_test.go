package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/notify"
	"github.com/juanse07/nexa-sub001/internal/repository"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// ── Mock EventRepository ──
//
// Holds events in memory behind one mutex and reproduces the conditional
// write semantics of the real stores: a write whose precondition no longer
// holds changes nothing and returns ErrConditionFailed.

type mockEventRepo struct {
	mu          sync.Mutex
	events      map[string]*model.Event
	nextID      int
	nextSession int64

	// beforeWrite runs ahead of every conditional write, outside the lock,
	// so a test can slip a competing write in.
	beforeWrite func(op string)
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]*model.Event)}
}

func cloneEvent(e *model.Event) *model.Event {
	cp := *e
	cp.AudienceUserKeys = append(model.StringArray(nil), e.AudienceUserKeys...)
	cp.AudienceTeamIDs = append(model.StringArray(nil), e.AudienceTeamIDs...)
	cp.Roles = append([]model.EventRole(nil), e.Roles...)
	cp.DeclinedStaff = append([]model.DeclineRecord{}, e.DeclinedStaff...)
	cp.AcceptedStaff = make([]model.StaffRecord, len(e.AcceptedStaff))
	for i, rec := range e.AcceptedStaff {
		rec.Attendance = append([]model.AttendanceSession(nil), rec.Attendance...)
		cp.AcceptedStaff[i] = rec
	}
	cp.SyncStats()
	return &cp
}

// put stores an event as-is, including any drifted ledger.
func (m *mockEventRepo) put(e *model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range e.Roles {
		e.Roles[i].EventID = e.EventID
		e.Roles[i].RoleKey = model.RoleKey(e.Roles[i].Role)
	}
	if e.Version == 0 {
		e.Version = 1
	}
	m.events[e.EventID] = cloneEvent(e)
}

func (m *mockEventRepo) hook(op string) {
	if m.beforeWrite != nil {
		m.beforeWrite(op)
	}
}

func (m *mockEventRepo) Create(_ context.Context, event *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if event.EventID == "" {
		event.EventID = fmt.Sprintf("evt-%03d", m.nextID)
	}
	for i := range event.Roles {
		event.Roles[i].EventID = event.EventID
		event.Roles[i].RoleKey = model.RoleKey(event.Roles[i].Role)
		event.Roles[i].Position = i
	}
	if event.Version == 0 {
		event.Version = 1
	}
	m.events[event.EventID] = cloneEvent(event)
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (m *mockEventRepo) list(match func(*model.Event) bool) []model.Event {
	var out []model.Event
	for _, e := range m.events {
		if match(e) {
			out = append(out, *cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

func (m *mockEventRepo) ListByManager(_ context.Context, managerID string, status model.EventStatus, offset, limit int) ([]model.Event, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.list(func(e *model.Event) bool {
		return e.ManagerID == managerID && (status == "" || e.Status == status)
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Event{}, total, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], total, nil
}

func (m *mockEventRepo) ListAvailable(_ context.Context, userKey string, teamIDs []string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(e *model.Event) bool {
		return e.Status.AcceptsResponses() && e.VisibleTo(userKey, teamIDs)
	}), nil
}

func (m *mockEventRepo) ListAcceptedBy(_ context.Context, id model.Identity) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(e *model.Event) bool { return e.FindAccepted(id) != nil }), nil
}

func (m *mockEventRepo) ListWithOpenSessions(_ context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(e *model.Event) bool {
		if !e.Status.AcceptsResponses() {
			return false
		}
		for i := range e.AcceptedStaff {
			if e.AcceptedStaff[i].OpenSession() != nil {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockEventRepo) Update(_ context.Context, event *model.Event) error {
	m.hook("update")
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.events[event.EventID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	if stored.Version != event.Version {
		return pkgerrors.ErrOptimisticLock
	}

	// the ledger is never written by a rewrite; new roles start empty
	roles := make([]model.EventRole, len(event.Roles))
	for i, r := range event.Roles {
		r.EventID = event.EventID
		r.RoleKey = model.RoleKey(r.Role)
		r.Position = i
		r.Taken = 0
		if old := stored.FindRole(r.Role); old != nil {
			r.Taken = old.Taken
		}
		roles[i] = r
	}

	next := cloneEvent(event)
	next.Roles = roles
	next.AcceptedStaff = stored.AcceptedStaff
	next.DeclinedStaff = stored.DeclinedStaff
	next.Version = stored.Version + 1
	m.events[event.EventID] = next

	event.Version = next.Version
	event.Roles = append([]model.EventRole(nil), roles...)
	return nil
}

func (m *mockEventRepo) openEvent(eventID string) (*model.Event, error) {
	e, ok := m.events[eventID]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	if !e.Status.AcceptsResponses() {
		return nil, pkgerrors.ErrConditionFailed
	}
	return e, nil
}

func removeDecline(e *model.Event, id model.Identity) {
	out := e.DeclinedStaff[:0]
	for _, d := range e.DeclinedStaff {
		if d.Provider != id.Provider || d.Subject != id.Subject {
			out = append(out, d)
		}
	}
	e.DeclinedStaff = out
}

func upsertDecline(e *model.Event, decline model.DeclineRecord) {
	for i := range e.DeclinedStaff {
		if e.DeclinedStaff[i].Provider == decline.Provider && e.DeclinedStaff[i].Subject == decline.Subject {
			e.DeclinedStaff[i] = decline
			return
		}
	}
	e.DeclinedStaff = append(e.DeclinedStaff, decline)
}

func (m *mockEventRepo) ClaimRole(_ context.Context, eventID string, rec model.StaffRecord) error {
	m.hook("claim")
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.openEvent(eventID)
	if err != nil {
		return err
	}
	id := rec.Identity()
	role := e.FindRole(rec.Role)
	if role == nil || role.Taken >= role.Capacity || e.FindAccepted(id) != nil {
		return pkgerrors.ErrConditionFailed
	}
	role.Taken++
	rec.EventID = eventID
	rec.RoleKey = role.RoleKey
	rec.Role = role.Role
	e.AcceptedStaff = append(e.AcceptedStaff, rec)
	removeDecline(e, id)
	return nil
}

func (m *mockEventRepo) SwitchRole(_ context.Context, eventID string, id model.Identity, fromRole, toRole string, at time.Time) error {
	m.hook("switch")
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.openEvent(eventID)
	if err != nil {
		return err
	}
	to, from := e.FindRole(toRole), e.FindRole(fromRole)
	rec := e.FindAccepted(id)
	if to == nil || from == nil || rec == nil ||
		to.Taken >= to.Capacity || model.RoleKey(rec.Role) != from.RoleKey || from.Taken <= 0 {
		return pkgerrors.ErrConditionFailed
	}
	to.Taken++
	from.Taken--
	rec.Role = to.Role
	rec.RoleKey = to.RoleKey
	rec.RespondedAt = at
	return nil
}

func (m *mockEventRepo) ReleaseRole(_ context.Context, eventID string, decline model.DeclineRecord) error {
	m.hook("release")
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.openEvent(eventID)
	if err != nil {
		return err
	}
	id := model.Identity{Provider: decline.Provider, Subject: decline.Subject}
	idx := -1
	for i := range e.AcceptedStaff {
		if e.AcceptedStaff[i].Provider == id.Provider && e.AcceptedStaff[i].Subject == id.Subject {
			idx = i
		}
	}
	if idx < 0 || len(e.AcceptedStaff[idx].Attendance) > 0 {
		return pkgerrors.ErrConditionFailed
	}
	if role := e.FindRole(e.AcceptedStaff[idx].Role); role != nil && role.Taken > 0 {
		role.Taken--
	}
	e.AcceptedStaff = append(e.AcceptedStaff[:idx], e.AcceptedStaff[idx+1:]...)
	decline.EventID = eventID
	upsertDecline(e, decline)
	return nil
}

func (m *mockEventRepo) RecordDecline(_ context.Context, eventID string, decline model.DeclineRecord) error {
	m.hook("decline")
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.openEvent(eventID)
	if err != nil {
		return err
	}
	if e.FindAccepted(model.Identity{Provider: decline.Provider, Subject: decline.Subject}) != nil {
		return pkgerrors.ErrConditionFailed
	}
	decline.EventID = eventID
	upsertDecline(e, decline)
	return nil
}

func (m *mockEventRepo) RepairStats(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	stats := model.ComputeRoleStats(e.Roles, e.AcceptedStaff)
	for i := range e.Roles {
		e.Roles[i].Taken = stats[i].Taken
	}
	return nil
}

func (m *mockEventRepo) AppendSession(_ context.Context, eventID string, id model.Identity, at time.Time) error {
	m.hook("append_session")
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.openEvent(eventID)
	if err != nil {
		return err
	}
	rec := e.FindAccepted(id)
	if rec == nil || rec.OpenSession() != nil {
		return pkgerrors.ErrConditionFailed
	}
	m.nextSession++
	rec.Attendance = append(rec.Attendance, model.AttendanceSession{
		SessionID: m.nextSession,
		EventID:   eventID,
		Provider:  id.Provider,
		Subject:   id.Subject,
		ClockInAt: at,
		Status:    model.AttendancePending,
	})
	return nil
}

func (m *mockEventRepo) findSession(eventID string, id model.Identity, sessionID int64) *model.AttendanceSession {
	e, ok := m.events[eventID]
	if !ok {
		return nil
	}
	rec := e.FindAccepted(id)
	if rec == nil {
		return nil
	}
	for i := range rec.Attendance {
		if rec.Attendance[i].SessionID == sessionID {
			return &rec.Attendance[i]
		}
	}
	return nil
}

func (m *mockEventRepo) CloseSession(_ context.Context, eventID string, id model.Identity, session model.AttendanceSession) error {
	m.hook("close_session")
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.findSession(eventID, id, session.SessionID)
	if stored == nil || !stored.IsOpen() {
		return pkgerrors.ErrConditionFailed
	}
	stored.ClockOutAt = session.ClockOutAt
	stored.EstimatedHours = session.EstimatedHours
	stored.AutoClockOut = session.AutoClockOut
	return nil
}

func (m *mockEventRepo) ApproveSession(_ context.Context, eventID string, id model.Identity, session model.AttendanceSession) error {
	m.hook("approve_session")
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.findSession(eventID, id, session.SessionID)
	if stored == nil || stored.IsOpen() || stored.Status != model.AttendancePending {
		return pkgerrors.ErrConditionFailed
	}
	stored.Status = model.AttendanceApproved
	stored.ApprovedHours = session.ApprovedHours
	stored.ApprovedBy = session.ApprovedBy
	stored.ApprovedAt = session.ApprovedAt
	return nil
}

// ── Mock OrganizationRepository ──

type mockOrgRepo struct {
	mu      sync.Mutex
	orgs    map[string]*model.Organization
	invites map[string]*model.OrgInvite // by token
	nextID  int
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{
		orgs:    make(map[string]*model.Organization),
		invites: make(map[string]*model.OrgInvite),
	}
}

func (m *mockOrgRepo) copyOrg(o *model.Organization) *model.Organization {
	cp := *o
	cp.Members = append([]model.OrgMember(nil), o.Members...)
	cp.ApprovedStaff = append([]model.ApprovedStaff(nil), o.ApprovedStaff...)
	cp.PendingInvites = nil
	for _, inv := range m.invites {
		if inv.OrganizationID == o.OrganizationID {
			cp.PendingInvites = append(cp.PendingInvites, *inv)
		}
	}
	return &cp
}

func (m *mockOrgRepo) memberOfAny(managerID string) bool {
	for _, o := range m.orgs {
		if o.Member(managerID) != nil {
			return true
		}
	}
	return false
}

func (m *mockOrgRepo) Create(_ context.Context, org *model.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs {
		if o.Slug == org.Slug {
			return pkgerrors.ErrConditionFailed
		}
	}
	for _, mem := range org.Members {
		if m.memberOfAny(mem.ManagerID) {
			return pkgerrors.ErrConditionFailed
		}
	}
	m.nextID++
	org.OrganizationID = fmt.Sprintf("org-%03d", m.nextID)
	for i := range org.Members {
		org.Members[i].OrganizationID = org.OrganizationID
	}
	m.orgs[org.OrganizationID] = m.copyOrg(org)
	return nil
}

func (m *mockOrgRepo) GetByID(_ context.Context, id string) (*model.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return m.copyOrg(o), nil
}

func (m *mockOrgRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Organization, error) {
	return m.GetByID(ctx, id)
}

func (m *mockOrgRepo) GetByManager(_ context.Context, managerID string) (*model.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs {
		if o.Member(managerID) != nil {
			return m.copyOrg(o), nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (m *mockOrgRepo) Update(_ context.Context, org *model.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orgs[org.OrganizationID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	if stored.Version != org.Version {
		return pkgerrors.ErrOptimisticLock
	}
	next := *org
	next.Members = stored.Members
	next.ApprovedStaff = stored.ApprovedStaff
	next.PendingInvites = nil
	next.Version = stored.Version + 1
	m.orgs[org.OrganizationID] = &next
	org.Version = next.Version
	return nil
}

func (m *mockOrgRepo) SetStaffSeatsUsed(_ context.Context, orgID string, used int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[orgID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	o.StaffSeatsUsed = used
	return nil
}

func (m *mockOrgRepo) AddMember(_ context.Context, member *model.OrgMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[member.OrganizationID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	if m.memberOfAny(member.ManagerID) {
		return pkgerrors.ErrConditionFailed
	}
	o.Members = append(o.Members, *member)
	return nil
}

func (m *mockOrgRepo) SetMemberRole(_ context.Context, orgID, managerID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[orgID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	// one owner per organization, as the partial unique index enforces
	if role == model.OrgRoleOwner {
		if owner := o.Owner(); owner != nil && owner.ManagerID != managerID {
			return fmt.Errorf("duplicate owner for organization %s", orgID)
		}
	}
	mem := o.Member(managerID)
	if mem == nil {
		return pkgerrors.ErrConditionFailed
	}
	mem.Role = role
	return nil
}

func (m *mockOrgRepo) RemoveMember(_ context.Context, orgID, managerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[orgID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	for i := range o.Members {
		if o.Members[i].ManagerID == managerID {
			o.Members = append(o.Members[:i], o.Members[i+1:]...)
			return nil
		}
	}
	return pkgerrors.ErrConditionFailed
}

func (m *mockOrgRepo) AddApprovedStaff(_ context.Context, staff *model.ApprovedStaff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[staff.OrganizationID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	if o.IsApproved(model.Identity{Provider: staff.Provider, Subject: staff.Subject}) {
		return pkgerrors.ErrConditionFailed
	}
	o.ApprovedStaff = append(o.ApprovedStaff, *staff)
	return nil
}

func (m *mockOrgRepo) RemoveApprovedStaff(_ context.Context, orgID, provider, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[orgID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	for i, s := range o.ApprovedStaff {
		if s.Provider == provider && s.Subject == subject {
			o.ApprovedStaff = append(o.ApprovedStaff[:i], o.ApprovedStaff[i+1:]...)
			return nil
		}
	}
	return pkgerrors.ErrNotFound
}

func (m *mockOrgRepo) CreateInvite(_ context.Context, invite *model.OrgInvite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	invite.InviteID = "inv-" + invite.Token[:8]
	cp := *invite
	m.invites[invite.Token] = &cp
	return nil
}

func (m *mockOrgRepo) GetInviteForUpdate(_ context.Context, token string) (*model.OrgInvite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[token]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockOrgRepo) DeleteInvite(_ context.Context, inviteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, inv := range m.invites {
		if inv.InviteID == inviteID {
			delete(m.invites, token)
		}
	}
	return nil
}

// ── Mock ManagerRepository ──

type mockManagerRepo struct {
	mu       sync.Mutex
	managers map[string]*model.Manager
}

func newMockManagerRepo() *mockManagerRepo {
	return &mockManagerRepo{managers: make(map[string]*model.Manager)}
}

func (m *mockManagerRepo) add(id, tier, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.managers[id] = &model.Manager{
		ManagerID:          id,
		Provider:           "google",
		Subject:            id,
		SubscriptionTier:   tier,
		SubscriptionStatus: status,
	}
}

func (m *mockManagerRepo) GetByID(_ context.Context, id string) (*model.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mgr, ok := m.managers[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	cp := *mgr
	return &cp, nil
}

func (m *mockManagerRepo) GetByIdentity(_ context.Context, provider, subject string) (*model.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mgr := range m.managers {
		if mgr.Provider == provider && mgr.Subject == subject {
			cp := *mgr
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (m *mockManagerRepo) Upsert(_ context.Context, manager *model.Manager) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mgr := range m.managers {
		if mgr.Provider == manager.Provider && mgr.Subject == manager.Subject {
			mgr.Name = manager.Name
			mgr.Email = manager.Email
			*manager = *mgr
			return nil
		}
	}
	manager.ManagerID = "mgr-" + manager.Subject
	cp := *manager
	m.managers[manager.ManagerID] = &cp
	return nil
}

func (m *mockManagerRepo) UpdateSubscription(_ context.Context, id, tier, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mgr, ok := m.managers[id]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	mgr.SubscriptionTier = tier
	mgr.SubscriptionStatus = status
	return nil
}

// ── Mock TeamRepository ──

type mockTeamRepo struct {
	mu      sync.Mutex
	teams   map[string]*model.Team
	members []model.TeamMember
	nextID  int
	failErr error // returned by CountUniqueStaff when set
}

func newMockTeamRepo() *mockTeamRepo {
	return &mockTeamRepo{teams: make(map[string]*model.Team)}
}

func (m *mockTeamRepo) Create(_ context.Context, team *model.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if team.TeamID == "" {
		team.TeamID = fmt.Sprintf("team-%03d", m.nextID)
	}
	cp := *team
	m.teams[team.TeamID] = &cp
	return nil
}

func (m *mockTeamRepo) GetByID(_ context.Context, id string) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTeamRepo) ListByManager(_ context.Context, managerID string) ([]model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Team{}
	for _, t := range m.teams {
		if t.ManagerID == managerID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

func (m *mockTeamRepo) UpsertMember(_ context.Context, member *model.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.members {
		cur := &m.members[i]
		if cur.TeamID == member.TeamID && cur.Provider == member.Provider && cur.Subject == member.Subject {
			cur.Status = member.Status
			cur.Name = member.Name
			cur.Email = member.Email
			*member = *cur
			return nil
		}
	}
	member.TeamMemberID = fmt.Sprintf("tm-%03d", len(m.members)+1)
	m.members = append(m.members, *member)
	return nil
}

func (m *mockTeamRepo) SetMemberStatus(_ context.Context, teamID, provider, subject, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.members {
		cur := &m.members[i]
		if cur.TeamID == teamID && cur.Provider == provider && cur.Subject == subject {
			cur.Status = status
			return nil
		}
	}
	return pkgerrors.ErrNotFound
}

func (m *mockTeamRepo) ListMembers(_ context.Context, teamID string) ([]model.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.TeamMember{}
	for _, mem := range m.members {
		if mem.TeamID == teamID {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *mockTeamRepo) ListTeamIDsFor(_ context.Context, id model.Identity) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, mem := range m.members {
		if mem.Provider == id.Provider && mem.Subject == id.Subject && mem.Status == model.TeamMemberActive {
			out = append(out, mem.TeamID)
		}
	}
	return out, nil
}

func (m *mockTeamRepo) CountUniqueStaff(_ context.Context, managerIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, m.failErr
	}
	owners := make(map[string]bool, len(managerIDs))
	for _, id := range managerIDs {
		owners[id] = true
	}
	seen := make(map[string]bool)
	for _, mem := range m.members {
		if mem.Status == model.TeamMemberLeft {
			continue
		}
		if t, ok := m.teams[mem.TeamID]; ok && owners[t.ManagerID] {
			seen[model.UserKey(mem.Provider, mem.Subject)] = true
		}
	}
	return len(seen), nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	mu    sync.Mutex
	items []model.Notification
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) CreateBatch(_ context.Context, items []model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		it.NotificationID = fmt.Sprintf("ntf-%03d", len(m.items)+1)
		m.items = append(m.items, it)
	}
	return nil
}

func (m *mockNotificationRepo) ListByRecipient(_ context.Context, recipient string, offset, limit int) ([]model.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Notification
	for _, it := range m.items {
		if it.Recipient == recipient {
			all = append(all, it)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	return all[offset:min(offset+limit, len(all))], total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].NotificationID == id && m.items[i].Recipient == recipient {
			m.items[i].IsRead = true
			return nil
		}
	}
	return pkgerrors.ErrNotFound
}

// ── capturing notifier ──

type captureNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (c *captureNotifier) Notify(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureNotifier) ofType(t string) []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notify.Message
	for _, m := range c.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// ── fake seat sink ──

type fakeSeatSink struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (f *fakeSeatSink) SetSeatQuantity(_ context.Context, _, _ string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, quantity)
	return nil
}

// ── fixture ──

type testRepos struct {
	repo          *repository.Repository
	events        *mockEventRepo
	orgs          *mockOrgRepo
	managers      *mockManagerRepo
	teams         *mockTeamRepo
	notifications *mockNotificationRepo
}

func newTestRepos() *testRepos {
	r := &testRepos{
		events:        newMockEventRepo(),
		orgs:          newMockOrgRepo(),
		managers:      newMockManagerRepo(),
		teams:         newMockTeamRepo(),
		notifications: newMockNotificationRepo(),
	}
	r.repo = &repository.Repository{
		Event:        r.events,
		Organization: r.orgs,
		Manager:      r.managers,
		Team:         r.teams,
		Notification: r.notifications,
	}
	return r
}

func staff(subject string) model.Identity {
	return model.Identity{Provider: "google", Subject: subject, Name: "Staff " + subject}
}

// seedOpenEvent seeds a published event with the given role capacities.
func seedOpenEvent(r *testRepos, eventID string, roles map[string]int) {
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)
	event := &model.Event{
		EventID:        eventID,
		ManagerID:      "mgr-1",
		Status:         model.EventStatusPublished,
		Title:          "Gala Dinner",
		Date:           "2026-03-14",
		StartTime:      "18:00",
		EndTime:        "23:00",
		VisibilityType: model.VisibilityPublic,
	}
	for i, name := range names {
		event.Roles = append(event.Roles, model.EventRole{Role: name, Capacity: roles[name], Position: i})
	}
	r.events.put(event)
}
