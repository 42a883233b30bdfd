//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/config"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/repository"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
	"github.com/juanse07/nexa-sub001/pkg/mongodb"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

// setupMongoStore connects to TEST_MONGO_URI and returns an event store on a
// throwaway database dropped at cleanup.
func setupMongoStore(t *testing.T) repository.EventRepository {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := mongodb.Connect(ctx, &config.MongoConfig{URI: uri, Timeout: 5 * time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db := client.Database(fmt.Sprintf("nexa_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	if err := repository.EnsureEventIndexes(ctx, db); err != nil {
		t.Fatalf("EnsureEventIndexes: %v", err)
	}
	return repository.NewEventMongoRepo(db)
}

func seedMongoEvent(t *testing.T, store repository.EventRepository, roles ...model.EventRole) *model.Event {
	t.Helper()
	event := &model.Event{
		EventID:        uuid.NewString(),
		ManagerID:      uuid.NewString(),
		Status:         model.EventStatusPublished,
		Title:          "mongo-integration",
		Date:           "2026-03-14",
		StartTime:      "18:00",
		EndTime:        "23:00",
		VisibilityType: model.VisibilityPublic,
		Roles:          roles,
	}
	if err := store.Create(context.Background(), event); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func mustGet(t *testing.T, store repository.EventRepository, eventID string) *model.Event {
	t.Helper()
	event, err := store.GetByID(context.Background(), eventID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return event
}

// ═══════════════════════════════════════════════════════════
// Test: capacity
// ═══════════════════════════════════════════════════════════

func TestMongoClaimRole_NeverOversubscribes(t *testing.T) {
	store := setupMongoStore(t)
	event := seedMongoEvent(t, store, model.EventRole{Role: "Server", Capacity: 3})
	ctx := context.Background()

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, identity(i), "Server", time.Now()))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, pkgerrors.ErrConditionFailed) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stored := mustGet(t, store, event.EventID)
	if accepted != 3 {
		t.Errorf("expected exactly 3 accepted, got %d", accepted)
	}
	if stored.Roles[0].Taken != 3 || len(stored.AcceptedStaff) != 3 {
		t.Errorf("ledger drifted: taken=%d roster=%d", stored.Roles[0].Taken, len(stored.AcceptedStaff))
	}
	if s := stored.RoleStats[0]; s.Remaining != 0 || !s.IsFull {
		t.Errorf("expected a full role, got %+v", s)
	}
}

func TestMongoClaimRole_SameIdentityOnce(t *testing.T) {
	store := setupMongoStore(t)
	event := seedMongoEvent(t, store, model.EventRole{Role: "Server", Capacity: 5})
	ctx := context.Background()

	if err := store.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, identity(1), "Server", time.Now())); err != nil {
		t.Fatalf("ClaimRole: %v", err)
	}
	err := store.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, identity(1), "Server", time.Now()))
	if !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Errorf("a second claim must fail the condition, got %v", err)
	}
	if stored := mustGet(t, store, event.EventID); stored.Roles[0].Taken != 1 {
		t.Errorf("expected taken 1, got %d", stored.Roles[0].Taken)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: role switch
// ═══════════════════════════════════════════════════════════

func TestMongoSwitchRole_MovesOneUnit(t *testing.T) {
	store := setupMongoStore(t)
	event := seedMongoEvent(t, store,
		model.EventRole{Role: "Server", Capacity: 2},
		model.EventRole{Role: "Bartender", Capacity: 2},
	)
	ctx := context.Background()
	amy := identity(1)

	if err := store.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, amy, "Server", time.Now())); err != nil {
		t.Fatalf("ClaimRole: %v", err)
	}
	if err := store.SwitchRole(ctx, event.EventID, amy, "Server", "Bartender", time.Now()); err != nil {
		t.Fatalf("SwitchRole: %v", err)
	}

	stored := mustGet(t, store, event.EventID)
	if s, b := stored.FindRole("Server"), stored.FindRole("Bartender"); s.Taken != 0 || b.Taken != 1 {
		t.Errorf("expected server=0 bartender=1, got %d/%d", s.Taken, b.Taken)
	}
	if rec := stored.FindAccepted(amy); rec == nil || rec.Role != "Bartender" || len(stored.AcceptedStaff) != 1 {
		t.Errorf("expected one Bartender record, got %+v", stored.AcceptedStaff)
	}
}

func TestMongoSwitchRole_IntoFullRoleKeepsOldRole(t *testing.T) {
	store := setupMongoStore(t)
	event := seedMongoEvent(t, store,
		model.EventRole{Role: "Server", Capacity: 2},
		model.EventRole{Role: "Bartender", Capacity: 1},
	)
	ctx := context.Background()
	amy, bob := identity(1), identity(2)

	if err := store.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, amy, "Server", time.Now())); err != nil {
		t.Fatalf("ClaimRole amy: %v", err)
	}
	if err := store.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, bob, "Bartender", time.Now())); err != nil {
		t.Fatalf("ClaimRole bob: %v", err)
	}

	err := store.SwitchRole(ctx, event.EventID, amy, "Server", "Bartender", time.Now())
	if !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Fatalf("expected ErrConditionFailed, got %v", err)
	}

	stored := mustGet(t, store, event.EventID)
	if s, b := stored.FindRole("Server"), stored.FindRole("Bartender"); s.Taken != 1 || b.Taken != 1 {
		t.Errorf("ledger changed on a failed switch: server=%d bartender=%d", s.Taken, b.Taken)
	}
	if rec := stored.FindAccepted(amy); rec == nil || rec.Role != "Server" {
		t.Errorf("amy must still hold Server, got %+v", rec)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: release and attendance
// ═══════════════════════════════════════════════════════════

func TestMongoReleaseRole_FreesUnitAndRecordsDecline(t *testing.T) {
	store := setupMongoStore(t)
	event := seedMongoEvent(t, store, model.EventRole{Role: "Server", Capacity: 1})
	ctx := context.Background()
	amy := identity(1)

	if err := store.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, amy, "Server", time.Now())); err != nil {
		t.Fatalf("ClaimRole: %v", err)
	}
	if err := store.ReleaseRole(ctx, event.EventID, model.NewDeclineRecord(event.EventID, amy, time.Now())); err != nil {
		t.Fatalf("ReleaseRole: %v", err)
	}

	stored := mustGet(t, store, event.EventID)
	if stored.Roles[0].Taken != 0 || len(stored.AcceptedStaff) != 0 || len(stored.DeclinedStaff) != 1 {
		t.Errorf("unexpected state: taken=%d roster=%d declines=%d",
			stored.Roles[0].Taken, len(stored.AcceptedStaff), len(stored.DeclinedStaff))
	}
	if s := stored.RoleStats[0]; s.Remaining != 1 || s.IsFull {
		t.Errorf("released unit must be available, got %+v", s)
	}
}

func TestMongoSessions_OneOpenAndReleaseBlocked(t *testing.T) {
	store := setupMongoStore(t)
	event := seedMongoEvent(t, store, model.EventRole{Role: "Server", Capacity: 2})
	ctx := context.Background()
	amy := identity(1)

	if err := store.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, amy, "Server", time.Now())); err != nil {
		t.Fatalf("ClaimRole: %v", err)
	}
	in := time.Now().UTC().Truncate(time.Millisecond)
	if err := store.AppendSession(ctx, event.EventID, amy, in); err != nil {
		t.Fatalf("AppendSession: %v", err)
	}
	if err := store.AppendSession(ctx, event.EventID, amy, in.Add(time.Minute)); !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Errorf("a second open session must be rejected, got %v", err)
	}
	if err := store.ReleaseRole(ctx, event.EventID, model.NewDeclineRecord(event.EventID, amy, time.Now())); !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Errorf("release after clock-in must be rejected, got %v", err)
	}

	// the close matches the session by its clock-in instant
	open := mustGet(t, store, event.EventID).FindAccepted(amy).OpenSession()
	if open == nil {
		t.Fatal("expected an open session")
	}
	out := in.Add(2 * time.Hour)
	hours := 2.0
	closed := *open
	closed.ClockOutAt, closed.EstimatedHours = &out, &hours
	if err := store.CloseSession(ctx, event.EventID, amy, closed); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if err := store.CloseSession(ctx, event.EventID, amy, closed); !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Errorf("closing twice must fail the condition, got %v", err)
	}

	sess := mustGet(t, store, event.EventID).FindAccepted(amy).Attendance
	if len(sess) != 1 || sess[0].ClockOutAt == nil || !sess[0].ClockOutAt.Equal(out) {
		t.Errorf("expected one closed session ending at %v, got %+v", out, sess)
	}
}
