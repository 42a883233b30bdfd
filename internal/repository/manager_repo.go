package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/juanse07/nexa-sub001/internal/model"
)

// ManagerRepository persists manager accounts.
type ManagerRepository interface {
	GetByID(ctx context.Context, id string) (*model.Manager, error)
	GetByIdentity(ctx context.Context, provider, subject string) (*model.Manager, error)
	// Upsert creates the manager on first sight and refreshes name and email afterwards.
	Upsert(ctx context.Context, manager *model.Manager) error
	UpdateSubscription(ctx context.Context, id, tier, status string) error
}

type managerRepo struct {
	db *gorm.DB
}

// NewManagerRepo creates the ManagerRepository.
func NewManagerRepo(db *gorm.DB) ManagerRepository {
	return &managerRepo{db: db}
}

func (r *managerRepo) GetByID(ctx context.Context, id string) (*model.Manager, error) {
	var m model.Manager
	if err := r.db.WithContext(ctx).Where("manager_id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *managerRepo) GetByIdentity(ctx context.Context, provider, subject string) (*model.Manager, error) {
	var m model.Manager
	err := r.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *managerRepo) Upsert(ctx context.Context, manager *model.Manager) error {
	return r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "provider"}, {Name: "subject"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "email", "updated_at"}),
			},
			clause.Returning{},
		).
		Create(manager).Error
}

func (r *managerRepo) UpdateSubscription(ctx context.Context, id, tier, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Manager{}).
		Where("manager_id = ?", id).
		Updates(map[string]interface{}{
			"subscription_tier":   tier,
			"subscription_status": status,
			"updated_at":          time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound)
	}
	return nil
}
