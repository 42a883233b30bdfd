package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/repository"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// ── team errors ──

var (
	ErrTeamNotFound       = errors.New("team not found")
	ErrNotTeamManager     = errors.New("only the team's manager may do this")
	ErrTeamMemberNotFound = errors.New("team member not found")
)

// staffGovernor is the part of OrganizationService teams depend on.
type staffGovernor interface {
	CanAddStaffToTeam(ctx context.Context, managerID string, id model.Identity) (*dto.PolicyDecision, error)
	ScheduleSeatSync(managerID string)
}

// TeamService manages a manager's staff rosters.
type TeamService interface {
	Create(ctx context.Context, managerID string, req *dto.CreateTeamRequest) (*model.Team, error)
	List(ctx context.Context, managerID string) ([]model.Team, error)
	ListMembers(ctx context.Context, teamID, managerID string) ([]model.TeamMember, error)
	// AddMember admits an identity subject to the organization staff policy.
	AddMember(ctx context.Context, teamID, managerID string, req *dto.AddTeamMemberRequest) (*model.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, managerID, provider, subject string) error
}

type teamService struct {
	repo   *repository.Repository
	orgs   staffGovernor
	logger *zap.Logger
}

// NewTeamService creates the TeamService.
func NewTeamService(repo *repository.Repository, orgs staffGovernor, logger *zap.Logger) TeamService {
	return &teamService{repo: repo, orgs: orgs, logger: logger}
}

func (s *teamService) loadOwned(ctx context.Context, teamID, managerID string) (*model.Team, error) {
	team, err := s.repo.Team.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		s.logger.Error("failed to load team", zap.String("team_id", teamID), zap.Error(err))
		return nil, fmt.Errorf("failed to load team: %w", err)
	}
	if team.ManagerID != managerID {
		return nil, ErrNotTeamManager
	}
	return team, nil
}

func (s *teamService) Create(ctx context.Context, managerID string, req *dto.CreateTeamRequest) (*model.Team, error) {
	team := &model.Team{
		ManagerID:   managerID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.repo.Team.Create(ctx, team); err != nil {
		s.logger.Error("failed to create team", zap.String("manager_id", managerID), zap.Error(err))
		return nil, err
	}
	return team, nil
}

func (s *teamService) List(ctx context.Context, managerID string) ([]model.Team, error) {
	teams, err := s.repo.Team.ListByManager(ctx, managerID)
	if err != nil {
		s.logger.Error("failed to list teams", zap.String("manager_id", managerID), zap.Error(err))
		return nil, err
	}
	return teams, nil
}

func (s *teamService) ListMembers(ctx context.Context, teamID, managerID string) ([]model.TeamMember, error) {
	if _, err := s.loadOwned(ctx, teamID, managerID); err != nil {
		return nil, err
	}
	return s.repo.Team.ListMembers(ctx, teamID)
}

func (s *teamService) AddMember(ctx context.Context, teamID, managerID string, req *dto.AddTeamMemberRequest) (*model.TeamMember, error) {
	if _, err := s.loadOwned(ctx, teamID, managerID); err != nil {
		return nil, err
	}

	// 1. organization staff policy
	id := model.Identity{Provider: req.Provider, Subject: req.Subject, Name: req.Name, Email: req.Email}
	decision, err := s.orgs.CanAddStaffToTeam(ctx, managerID, id)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrPolicyDenied
	}

	// 2. insert or reactivate
	now := time.Now().UTC()
	member := &model.TeamMember{
		TeamID:    teamID,
		ManagerID: managerID,
		Provider:  req.Provider,
		Subject:   req.Subject,
		Name:      req.Name,
		Email:     req.Email,
		Status:    model.TeamMemberActive,
		JoinedAt:  &now,
	}
	if err := s.repo.Team.UpsertMember(ctx, member); err != nil {
		s.logger.Error("failed to add team member", zap.String("team_id", teamID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("team member added", zap.String("team_id", teamID), zap.String("user_key", id.Key()))
	s.orgs.ScheduleSeatSync(managerID)
	return member, nil
}

func (s *teamService) RemoveMember(ctx context.Context, teamID, managerID, provider, subject string) error {
	if _, err := s.loadOwned(ctx, teamID, managerID); err != nil {
		return err
	}
	if err := s.repo.Team.SetMemberStatus(ctx, teamID, provider, subject, model.TeamMemberLeft); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return ErrTeamMemberNotFound
		}
		s.logger.Error("failed to remove team member", zap.String("team_id", teamID), zap.Error(err))
		return err
	}

	s.logger.Info("team member removed", zap.String("team_id", teamID), zap.String("user_key", model.UserKey(provider, subject)))
	s.orgs.ScheduleSeatSync(managerID)
	return nil
}
