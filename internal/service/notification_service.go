package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/repository"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService reads the inbox written by the notify.InboxNotifier.
type NotificationService interface {
	List(ctx context.Context, recipient string, req *dto.PaginationRequest) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, notificationID, recipient string) error
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService creates the NotificationService.
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) List(ctx context.Context, recipient string, req *dto.PaginationRequest) ([]model.Notification, int64, error) {
	items, total, err := s.repo.Notification.ListByRecipient(ctx, recipient, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("failed to list notifications", zap.String("recipient", recipient), zap.Error(err))
		return nil, 0, err
	}
	if items == nil {
		items = []model.Notification{}
	}
	return items, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, recipient string) error {
	if err := s.repo.Notification.MarkRead(ctx, notificationID, recipient); err != nil {
		if isNotFound(err) {
			return ErrNotificationNotFound
		}
		s.logger.Error("failed to mark notification read", zap.String("notification_id", notificationID), zap.Error(err))
		return err
	}
	return nil
}
