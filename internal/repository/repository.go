package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the aggregate entry point for every store.
type Repository struct {
	Event        EventRepository
	Organization OrganizationRepository
	Manager      ManagerRepository
	Team         TeamRepository
	Notification NotificationRepository

	db *gorm.DB
}

// NewRepository builds the PostgreSQL-backed aggregate.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Event:        NewEventRepo(db),
		Organization: NewOrganizationRepo(db),
		Manager:      NewManagerRepo(db),
		Team:         NewTeamRepo(db),
		Notification: NewNotificationRepo(db),
		db:           db,
	}
}

// WithEventStore swaps the event store, e.g. for the MongoDB backend.
func (r *Repository) WithEventStore(events EventRepository) *Repository {
	cp := *r
	cp.Event = events
	return &cp
}

// Transaction runs fn against a Repository bound to one database transaction.
// The event store is not enlisted; its writes are individually atomic.
// Without a database (in-memory stores) fn runs directly.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{
			Event:        r.Event,
			Organization: NewOrganizationRepo(tx),
			Manager:      NewManagerRepo(tx),
			Team:         NewTeamRepo(tx),
			Notification: NewNotificationRepo(tx),
			db:           tx,
		})
	})
}
