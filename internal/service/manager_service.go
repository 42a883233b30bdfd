package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/repository"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// ManagerService maintains manager profiles keyed by external identity.
type ManagerService interface {
	// Upsert registers the identity as a manager or refreshes its profile.
	Upsert(ctx context.Context, id model.Identity, req *dto.UpsertManagerRequest) (*model.Manager, error)
	Get(ctx context.Context, managerID string) (*model.Manager, error)
	// UpdateSubscription records an individual (non-organization) subscription change.
	UpdateSubscription(ctx context.Context, managerID string, req *dto.UpdateManagerSubscriptionRequest) (*model.Manager, error)
}

type managerService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewManagerService creates the ManagerService.
func NewManagerService(repo *repository.Repository, logger *zap.Logger) ManagerService {
	return &managerService{repo: repo, logger: logger}
}

func (s *managerService) Upsert(ctx context.Context, id model.Identity, req *dto.UpsertManagerRequest) (*model.Manager, error) {
	name, email := req.Name, req.Email
	if name == "" {
		name = id.Name
	}
	if email == "" {
		email = id.Email
	}
	manager := &model.Manager{
		Provider:           id.Provider,
		Subject:            id.Subject,
		Name:               name,
		Email:              email,
		SubscriptionTier:   model.TierFree,
		SubscriptionStatus: model.SubscriptionNone,
	}
	if err := s.repo.Manager.Upsert(ctx, manager); err != nil {
		s.logger.Error("failed to upsert manager", zap.String("user_key", id.Key()), zap.Error(err))
		return nil, err
	}
	return manager, nil
}

func (s *managerService) Get(ctx context.Context, managerID string) (*model.Manager, error) {
	manager, err := s.repo.Manager.GetByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, ErrManagerNotFound
		}
		s.logger.Error("failed to load manager", zap.String("manager_id", managerID), zap.Error(err))
		return nil, err
	}
	return manager, nil
}

func (s *managerService) UpdateSubscription(ctx context.Context, managerID string, req *dto.UpdateManagerSubscriptionRequest) (*model.Manager, error) {
	if err := s.repo.Manager.UpdateSubscription(ctx, managerID, req.Tier, req.Status); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, ErrManagerNotFound
		}
		s.logger.Error("failed to update manager subscription", zap.String("manager_id", managerID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("manager subscription updated",
		zap.String("manager_id", managerID),
		zap.String("tier", req.Tier),
		zap.String("status", req.Status),
	)
	return s.Get(ctx, managerID)
}
