package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/juanse07/nexa-sub001/internal/model"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db, mock
}

func verify(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

var amy = model.Identity{Provider: "google", Subject: "amy"}

// ═══════════════════════════════════════════════════════════
// translate
// ═══════════════════════════════════════════════════════════

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"not found", gorm.ErrRecordNotFound, pkgerrors.ErrNotFound},
		{"unique", &pgconn.PgError{Code: pgUniqueViolation}, pkgerrors.ErrConditionFailed},
		{"check", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgCheckViolation}), pkgerrors.ErrConditionFailed},
		{"foreign key", &pgconn.PgError{Code: pgForeignKeyViolation}, pkgerrors.ErrConditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translate(tt.in); !errors.Is(got, tt.want) && got != tt.want {
				t.Errorf("translate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	other := &pgconn.PgError{Code: "40001"}
	if got := translate(other); got != error(other) {
		t.Errorf("unrelated errors pass through, got %v", got)
	}
	if !isUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}) || isUniqueViolation(other) {
		t.Error("isUniqueViolation misclassified")
	}
}

// ═══════════════════════════════════════════════════════════
// eventRepo
// ═══════════════════════════════════════════════════════════

func TestEventRepo_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectQuery(`SELECT \* FROM "events" WHERE event_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	verify(t, mock)
}

func TestEventRepo_ListByManager_Empty(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "events" WHERE manager_id = \$1 AND status = \$2`).
		WithArgs("mgr-1", "draft").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM "events" WHERE manager_id = \$1 AND status = \$2 ORDER BY date ASC, start_time ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}))

	events, total, err := repo.ListByManager(context.Background(), "mgr-1", model.EventStatusDraft, 0, 20)
	if err != nil {
		t.Fatalf("ListByManager: %v", err)
	}
	if total != 0 || len(events) != 0 {
		t.Errorf("expected nothing, got %d/%d", len(events), total)
	}
	verify(t, mock)
}

func TestEventRepo_ClaimRole(t *testing.T) {
	rec := model.NewStaffRecord("evt-1", amy, "Server", time.Now())

	tests := []struct {
		name    string
		result  driver.Result
		execErr error
		want    error
	}{
		{"claimed", sqlmock.NewResult(0, 1), nil, nil},
		{"full or already accepted", sqlmock.NewResult(0, 0), nil, pkgerrors.ErrConditionFailed},
		{"lost race on unique roster key", nil, &pgconn.PgError{Code: pgUniqueViolation}, pkgerrors.ErrConditionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewEventRepo(db)

			exp := mock.ExpectExec(`WITH ev AS \(`)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := repo.ClaimRole(context.Background(), "evt-1", rec)
			if !errors.Is(err, tt.want) && err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			verify(t, mock)
		})
	}
}

func TestEventRepo_Update_VersionConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "events" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	event := &model.Event{EventID: "evt-1", Version: 3, Status: model.EventStatusPublished}
	err := repo.Update(context.Background(), event)
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock, got %v", err)
	}
	if event.Version != 3 {
		t.Errorf("version must not advance on conflict, got %d", event.Version)
	}
	verify(t, mock)
}

func TestEventRepo_CloseSession_AlreadyClosed(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectExec(`UPDATE "event_attendance" SET .* WHERE .*session_id = \$\d+ AND .*clock_out_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	out := time.Now()
	err := repo.CloseSession(context.Background(), "evt-1", amy, model.AttendanceSession{SessionID: 7, ClockOutAt: &out})
	if !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Errorf("expected ErrConditionFailed, got %v", err)
	}
	verify(t, mock)
}

func TestEventRepo_RecordDecline_ClosedEvent(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectExec(`INSERT INTO event_declines`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordDecline(context.Background(), "evt-1", model.DeclineRecord{Provider: "google", Subject: "amy", RespondedAt: time.Now()})
	if !errors.Is(err, pkgerrors.ErrConditionFailed) {
		t.Errorf("expected ErrConditionFailed, got %v", err)
	}
	verify(t, mock)
}

// ═══════════════════════════════════════════════════════════
// notificationRepo
// ═══════════════════════════════════════════════════════════

func TestNotificationRepo_MarkRead(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepo(db)

	mock.ExpectExec(`UPDATE "notifications" SET .*"is_read"=\$\d+`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "notifications" SET .*"is_read"=\$\d+`).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := repo.MarkRead(ctx, "n-1", "google:amy"); err != nil {
		t.Errorf("MarkRead: %v", err)
	}
	if err := repo.MarkRead(ctx, "n-1", "google:someone-else"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another recipient, got %v", err)
	}
	verify(t, mock)
}

func TestNotificationRepo_CreateBatch_Empty(t *testing.T) {
	db, mock := setupMockDB(t)

	if err := NewNotificationRepo(db).CreateBatch(context.Background(), nil); err != nil {
		t.Errorf("CreateBatch(nil): %v", err)
	}
	verify(t, mock)
}

// ═══════════════════════════════════════════════════════════
// Repository
// ═══════════════════════════════════════════════════════════

func TestRepository_TransactionRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.Transaction(context.Background(), func(tx *Repository) error {
		if tx.Event != repo.Event {
			t.Error("the event store is shared, not enlisted")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected the callback error, got %v", err)
	}
	verify(t, mock)
}

func TestRepository_TransactionWithoutDB(t *testing.T) {
	repo := (&Repository{}).WithEventStore(nil)

	called := false
	if err := repo.Transaction(context.Background(), func(*Repository) error {
		called = true
		return nil
	}); err != nil || !called {
		t.Errorf("expected fn to run directly, called=%v err=%v", called, err)
	}
}
