package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/juanse07/nexa-sub001/internal/model"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// TeamRepository persists teams and their members.
type TeamRepository interface {
	Create(ctx context.Context, team *model.Team) error
	GetByID(ctx context.Context, id string) (*model.Team, error)
	ListByManager(ctx context.Context, managerID string) ([]model.Team, error)

	// UpsertMember adds the identity or reactivates a member who left.
	UpsertMember(ctx context.Context, member *model.TeamMember) error
	SetMemberStatus(ctx context.Context, teamID, provider, subject, status string) error
	ListMembers(ctx context.Context, teamID string) ([]model.TeamMember, error)
	// ListTeamIDsFor returns the teams the identity is an active member of.
	ListTeamIDsFor(ctx context.Context, id model.Identity) ([]string, error)
	// CountUniqueStaff counts distinct identities with a non-left membership on
	// any team owned by the given managers.
	CountUniqueStaff(ctx context.Context, managerIDs []string) (int, error)
}

type teamRepo struct {
	db *gorm.DB
}

// NewTeamRepo creates the TeamRepository.
func NewTeamRepo(db *gorm.DB) TeamRepository {
	return &teamRepo{db: db}
}

func (r *teamRepo) Create(ctx context.Context, team *model.Team) error {
	return r.db.WithContext(ctx).Create(team).Error
}

func (r *teamRepo) GetByID(ctx context.Context, id string) (*model.Team, error) {
	var team model.Team
	if err := r.db.WithContext(ctx).Where("team_id = ?", id).First(&team).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

func (r *teamRepo) ListByManager(ctx context.Context, managerID string) ([]model.Team, error) {
	var teams []model.Team
	err := r.db.WithContext(ctx).
		Where("manager_id = ?", managerID).
		Order("created_at ASC").
		Find(&teams).Error
	return teams, err
}

func (r *teamRepo) UpsertMember(ctx context.Context, member *model.TeamMember) error {
	return r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "team_id"}, {Name: "provider"}, {Name: "subject"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"status":     member.Status,
					"name":       member.Name,
					"email":      member.Email,
					"joined_at":  member.JoinedAt,
					"updated_at": time.Now().UTC(),
				}),
			},
			clause.Returning{},
		).
		Create(member).Error
}

func (r *teamRepo) SetMemberStatus(ctx context.Context, teamID, provider, subject, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.TeamMember{}).
		Where("team_id = ? AND provider = ? AND subject = ?", teamID, provider, subject).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

func (r *teamRepo) ListMembers(ctx context.Context, teamID string) ([]model.TeamMember, error) {
	var members []model.TeamMember
	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *teamRepo) ListTeamIDsFor(ctx context.Context, id model.Identity) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.TeamMember{}).
		Where("provider = ? AND subject = ? AND status = ?", id.Provider, id.Subject, model.TeamMemberActive).
		Pluck("team_id", &ids).Error
	return ids, err
}

func (r *teamRepo) CountUniqueStaff(ctx context.Context, managerIDs []string) (int, error) {
	if len(managerIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Raw(`
SELECT COUNT(*) FROM (
    SELECT DISTINCT provider, subject FROM team_members
    WHERE manager_id IN ? AND status <> ?
) staff`, managerIDs, model.TeamMemberLeft).Scan(&count).Error
	return int(count), err
}
