package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/juanse07/nexa-sub001/internal/model"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// NotificationRepository persists inbox notifications.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, items []model.Notification) error
	ListByRecipient(ctx context.Context, recipient string, offset, limit int) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, id, recipient string) error
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo creates the NotificationRepository.
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) CreateBatch(ctx context.Context, items []model.Notification) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&items, 100).Error
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipient string, offset, limit int) ([]model.Notification, int64, error) {
	var (
		items []model.Notification
		total int64
	)
	query := r.db.WithContext(ctx).Model(&model.Notification{}).Where("recipient = ?", recipient)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, recipient string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("notification_id = ? AND recipient = ?", id, recipient).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}
