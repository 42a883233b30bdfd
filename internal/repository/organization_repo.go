package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/juanse07/nexa-sub001/internal/model"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// OrganizationRepository persists organizations, memberships, the approved
// staff pool and invites.
type OrganizationRepository interface {
	// Create inserts the organization together with its initial members.
	Create(ctx context.Context, org *model.Organization) error
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	// GetByIDForUpdate locks the organization row; call inside Repository.Transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*model.Organization, error)
	GetByManager(ctx context.Context, managerID string) (*model.Organization, error)
	Update(ctx context.Context, org *model.Organization) error
	SetStaffSeatsUsed(ctx context.Context, orgID string, used int) error

	AddMember(ctx context.Context, member *model.OrgMember) error
	SetMemberRole(ctx context.Context, orgID, managerID, role string) error
	RemoveMember(ctx context.Context, orgID, managerID string) error

	AddApprovedStaff(ctx context.Context, staff *model.ApprovedStaff) error
	RemoveApprovedStaff(ctx context.Context, orgID, provider, subject string) error

	CreateInvite(ctx context.Context, invite *model.OrgInvite) error
	// GetInviteForUpdate locks the invite row; call inside Repository.Transaction.
	GetInviteForUpdate(ctx context.Context, token string) (*model.OrgInvite, error)
	DeleteInvite(ctx context.Context, inviteID string) error
}

type organizationRepo struct {
	db *gorm.DB
}

// NewOrganizationRepo creates the OrganizationRepository.
func NewOrganizationRepo(db *gorm.DB) OrganizationRepository {
	return &organizationRepo{db: db}
}

func (r *organizationRepo) Create(ctx context.Context, org *model.Organization) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(org).Error; err != nil {
			return err
		}
		for i := range org.Members {
			org.Members[i].OrganizationID = org.OrganizationID
		}
		if len(org.Members) == 0 {
			return nil
		}
		return tx.Create(&org.Members).Error
	})
	return translate(err)
}

func (r *organizationRepo) load(query *gorm.DB, id string) (*model.Organization, error) {
	var org model.Organization
	err := query.
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("ApprovedStaff", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC") }).
		Preload("PendingInvites").
		Where("organization_id = ?", id).
		First(&org).Error
	if err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

func (r *organizationRepo) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	return r.load(r.db.WithContext(ctx), id)
}

func (r *organizationRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Organization, error) {
	return r.load(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *organizationRepo) GetByManager(ctx context.Context, managerID string) (*model.Organization, error) {
	var member model.OrgMember
	err := r.db.WithContext(ctx).Where("manager_id = ?", managerID).First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return r.GetByID(ctx, member.OrganizationID)
}

func (r *organizationRepo) Update(ctx context.Context, org *model.Organization) error {
	oldVersion := org.Version
	result := r.db.WithContext(ctx).
		Model(&model.Organization{}).
		Where("organization_id = ? AND version = ?", org.OrganizationID, oldVersion).
		Updates(map[string]interface{}{
			"name":                   org.Name,
			"stripe_customer_id":     org.StripeCustomerID,
			"stripe_subscription_id": org.StripeSubscriptionID,
			"subscription_status":    org.SubscriptionStatus,
			"subscription_tier":      org.SubscriptionTier,
			"current_period_end":     org.CurrentPeriodEnd,
			"cancel_at_period_end":   org.CancelAtPeriodEnd,
			"manager_seats_included": org.ManagerSeatsIncluded,
			"staff_policy":           org.StaffPolicy,
			"version":                oldVersion + 1,
			"updated_at":             time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	org.Version = oldVersion + 1
	return nil
}

func (r *organizationRepo) SetStaffSeatsUsed(ctx context.Context, orgID string, used int) error {
	return r.db.WithContext(ctx).
		Model(&model.Organization{}).
		Where("organization_id = ?", orgID).
		Updates(map[string]interface{}{
			"staff_seats_used": used,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *organizationRepo) AddMember(ctx context.Context, member *model.OrgMember) error {
	return translate(r.db.WithContext(ctx).Create(member).Error)
}

func (r *organizationRepo) SetMemberRole(ctx context.Context, orgID, managerID, role string) error {
	result := r.db.WithContext(ctx).
		Model(&model.OrgMember{}).
		Where("organization_id = ? AND manager_id = ?", orgID, managerID).
		Update("role", role)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrConditionFailed
	}
	return nil
}

// RemoveMember never removes the owner.
func (r *organizationRepo) RemoveMember(ctx context.Context, orgID, managerID string) error {
	result := r.db.WithContext(ctx).
		Where("organization_id = ? AND manager_id = ? AND role <> ?", orgID, managerID, model.OrgRoleOwner).
		Delete(&model.OrgMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrConditionFailed
	}
	return nil
}

func (r *organizationRepo) AddApprovedStaff(ctx context.Context, staff *model.ApprovedStaff) error {
	return translate(r.db.WithContext(ctx).Create(staff).Error)
}

func (r *organizationRepo) RemoveApprovedStaff(ctx context.Context, orgID, provider, subject string) error {
	result := r.db.WithContext(ctx).
		Where("organization_id = ? AND provider = ? AND subject = ?", orgID, provider, subject).
		Delete(&model.ApprovedStaff{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

func (r *organizationRepo) CreateInvite(ctx context.Context, invite *model.OrgInvite) error {
	return translate(r.db.WithContext(ctx).Create(invite).Error)
}

func (r *organizationRepo) GetInviteForUpdate(ctx context.Context, token string) (*model.OrgInvite, error) {
	var invite model.OrgInvite
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ?", token).
		First(&invite).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invite, nil
}

func (r *organizationRepo) DeleteInvite(ctx context.Context, inviteID string) error {
	return r.db.WithContext(ctx).
		Where("invite_id = ?", inviteID).
		Delete(&model.OrgInvite{}).Error
}
