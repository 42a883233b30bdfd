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
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/repository"
	"github.com/juanse07/nexa-sub001/pkg/database"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=nexa password=nexa_password dbname=nexa_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot connect to the test database: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sql.DB: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "migrations failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// setupEvent stores a published event with one Server line of the given capacity.
func setupEvent(t *testing.T, capacity int) (*model.Event, func()) {
	t.Helper()
	repo := repository.NewRepository(testDB)

	event := &model.Event{
		ManagerID:      uuid.NewString(),
		Status:         model.EventStatusPublished,
		Title:          fmt.Sprintf("integration-%d", time.Now().UnixNano()),
		Date:           "2026-03-14",
		StartTime:      "18:00",
		EndTime:        "23:00",
		VisibilityType: model.VisibilityPublic,
		Roles:          []model.EventRole{{Role: "Server", Capacity: capacity}},
	}
	if err := repo.Event.Create(context.Background(), event); err != nil {
		t.Fatalf("create event: %v", err)
	}

	cleanup := func() {
		testDB.Exec("DELETE FROM events WHERE event_id = ?", event.EventID)
	}
	return event, cleanup
}

func identity(n int) model.Identity {
	return model.Identity{Provider: "google", Subject: fmt.Sprintf("staff-%d", n)}
}

// ═══════════════════════════════════════════════════════════
// Test: capacity under concurrency
// ═══════════════════════════════════════════════════════════

func TestClaimRole_NeverOversubscribes(t *testing.T) {
	event, cleanup := setupEvent(t, 3)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	const workers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Event.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, identity(i), "Server", time.Now()))
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

	if accepted != 3 {
		t.Errorf("expected exactly 3 accepted, got %d", accepted)
	}
	stored, err := repo.Event.GetByID(ctx, event.EventID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Roles[0].Taken != 3 || len(stored.AcceptedStaff) != 3 {
		t.Errorf("ledger drifted: taken=%d roster=%d", stored.Roles[0].Taken, len(stored.AcceptedStaff))
	}
}

func TestClaimRole_SameIdentityOnce(t *testing.T) {
	event, cleanup := setupEvent(t, 5)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.Event.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, identity(1), "Server", time.Now()))
		}()
	}
	wg.Wait()

	stored, _ := repo.Event.GetByID(ctx, event.EventID)
	if len(stored.AcceptedStaff) != 1 || stored.Roles[0].Taken != 1 {
		t.Errorf("expected one acceptance, got roster=%d taken=%d", len(stored.AcceptedStaff), stored.Roles[0].Taken)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: release and attendance
// ═══════════════════════════════════════════════════════════

func TestReleaseRole_BlockedByAttendance(t *testing.T) {
	event, cleanup := setupEvent(t, 2)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	amy := identity(1)

	if err := repo.Event.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, amy, "Server", time.Now())); err != nil {
		t.Fatalf("ClaimRole: %v", err)
	}
	if err := repo.Event.AppendSession(ctx, event.EventID, amy, time.Now()); err != nil {
		t.Fatalf("AppendSession: %v", err)
	}
	if err := repo.Event.AppendSession(ctx, event.EventID, amy, time.Now()); !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Errorf("a second open session must be rejected, got %v", err)
	}

	err := repo.Event.ReleaseRole(ctx, event.EventID, model.NewDeclineRecord(event.EventID, amy, time.Now()))
	if !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Errorf("expected ErrConditionFailed after clock-in, got %v", err)
	}
}

func TestReleaseRole_FreesUnitAndRecordsDecline(t *testing.T) {
	event, cleanup := setupEvent(t, 1)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	amy := identity(1)

	if err := repo.Event.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, amy, "Server", time.Now())); err != nil {
		t.Fatalf("ClaimRole: %v", err)
	}
	if err := repo.Event.ReleaseRole(ctx, event.EventID, model.NewDeclineRecord(event.EventID, amy, time.Now())); err != nil {
		t.Fatalf("ReleaseRole: %v", err)
	}

	stored, _ := repo.Event.GetByID(ctx, event.EventID)
	if stored.Roles[0].Taken != 0 || len(stored.AcceptedStaff) != 0 || len(stored.DeclinedStaff) != 1 {
		t.Errorf("unexpected state: taken=%d roster=%d declines=%d",
			stored.Roles[0].Taken, len(stored.AcceptedStaff), len(stored.DeclinedStaff))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: optimistic update
// ═══════════════════════════════════════════════════════════

func TestUpdate_VersionGuard(t *testing.T) {
	event, cleanup := setupEvent(t, 2)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	first, _ := repo.Event.GetByID(ctx, event.EventID)
	second, _ := repo.Event.GetByID(ctx, event.EventID)

	first.Title = "Renamed"
	if err := repo.Event.Update(ctx, first); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	second.Title = "Stale"
	if err := repo.Event.Update(ctx, second); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock for the stale copy, got %v", err)
	}
}

func TestUpdate_CapacityBelowTakenRejected(t *testing.T) {
	event, cleanup := setupEvent(t, 2)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.Event.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, identity(i), "Server", time.Now())); err != nil {
			t.Fatalf("ClaimRole: %v", err)
		}
	}

	stored, _ := repo.Event.GetByID(ctx, event.EventID)
	stored.Roles[0].Capacity = 1
	if err := repo.Event.Update(ctx, stored); !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Errorf("expected the schema to reject capacity below taken, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: role switch
// ═══════════════════════════════════════════════════════════

// setupTwoRoleEvent stores a published event with Server and Bartender lines.
func setupTwoRoleEvent(t *testing.T, servers, bartenders int) (*model.Event, func()) {
	t.Helper()
	event, cleanup := setupEvent(t, servers)
	if err := testDB.Create(&model.EventRole{
		EventID: event.EventID, RoleKey: model.RoleKey("Bartender"), Role: "Bartender", Capacity: bartenders, Position: 1,
	}).Error; err != nil {
		cleanup()
		t.Fatalf("add Bartender line: %v", err)
	}
	return event, cleanup
}

func TestSwitchRole_MovesOneUnit(t *testing.T) {
	event, cleanup := setupTwoRoleEvent(t, 2, 2)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	amy := identity(1)

	if err := repo.Event.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, amy, "Server", time.Now())); err != nil {
		t.Fatalf("ClaimRole: %v", err)
	}
	if err := repo.Event.SwitchRole(ctx, event.EventID, amy, "Server", "Bartender", time.Now()); err != nil {
		t.Fatalf("SwitchRole: %v", err)
	}

	stored, _ := repo.Event.GetByID(ctx, event.EventID)
	if s := stored.FindRole("Server"); s == nil || s.Taken != 0 {
		t.Errorf("Server must be released, got %+v", s)
	}
	if b := stored.FindRole("Bartender"); b == nil || b.Taken != 1 {
		t.Errorf("Bartender must be taken once, got %+v", b)
	}
	if rec := stored.FindAccepted(amy); rec == nil || rec.Role != "Bartender" || len(stored.AcceptedStaff) != 1 {
		t.Errorf("expected one Bartender record, got %+v", stored.AcceptedStaff)
	}
}

func TestSwitchRole_IntoFullRoleKeepsOldRole(t *testing.T) {
	event, cleanup := setupTwoRoleEvent(t, 2, 1)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	amy, bob := identity(1), identity(2)

	if err := repo.Event.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, amy, "Server", time.Now())); err != nil {
		t.Fatalf("ClaimRole amy: %v", err)
	}
	if err := repo.Event.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, bob, "Bartender", time.Now())); err != nil {
		t.Fatalf("ClaimRole bob: %v", err)
	}

	err := repo.Event.SwitchRole(ctx, event.EventID, amy, "Server", "Bartender", time.Now())
	if !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Fatalf("expected ErrConditionFailed, got %v", err)
	}

	stored, _ := repo.Event.GetByID(ctx, event.EventID)
	if s := stored.FindRole("Server"); s.Taken != 1 {
		t.Errorf("Server unit must stay held, taken=%d", s.Taken)
	}
	if b := stored.FindRole("Bartender"); b.Taken != 1 {
		t.Errorf("Bartender must not be oversubscribed, taken=%d", b.Taken)
	}
	if rec := stored.FindAccepted(amy); rec == nil || rec.Role != "Server" {
		t.Errorf("amy must still hold Server, got %+v", rec)
	}
}

func TestSwitchRole_ConcurrentIntoLastUnit(t *testing.T) {
	event, cleanup := setupTwoRoleEvent(t, 8, 1)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	const workers = 8
	for i := 0; i < workers; i++ {
		if err := repo.Event.ClaimRole(ctx, event.EventID, model.NewStaffRecord(event.EventID, identity(i), "Server", time.Now())); err != nil {
			t.Fatalf("ClaimRole %d: %v", i, err)
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		switched int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := repo.Event.SwitchRole(ctx, event.EventID, identity(i), "Server", "Bartender", time.Now()); err == nil {
				mu.Lock()
				switched++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	stored, _ := repo.Event.GetByID(ctx, event.EventID)
	if switched != 1 {
		t.Errorf("expected exactly one switch, got %d", switched)
	}
	if s, b := stored.FindRole("Server"), stored.FindRole("Bartender"); s.Taken != workers-1 || b.Taken != 1 {
		t.Errorf("ledger drifted: server=%d bartender=%d", s.Taken, b.Taken)
	}
	if len(stored.AcceptedStaff) != workers {
		t.Errorf("nobody may be dropped from the roster, got %d", len(stored.AcceptedStaff))
	}
}
