package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/config"
	"github.com/juanse07/nexa-sub001/internal/billing"
	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/repository"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// ── organization errors ──

var (
	ErrOrganizationNotFound  = errors.New("organization not found")
	ErrManagerNotFound       = errors.New("manager not found")
	ErrAlreadyInOrganization = errors.New("you already belong to an organization")
	ErrSlugTaken             = errors.New("organization slug already in use")
	ErrNotOrgMember          = errors.New("not a member of this organization")
	ErrOrgPermission         = errors.New("organization admin access required")
	ErrSeatLimitReached      = errors.New("organization has reached its seat limit")
	ErrInvitePending         = errors.New("an invite is already pending for this email")
	ErrInviteInvalid         = errors.New("invalid or expired invite")
	ErrMemberNotFound        = errors.New("member not found in organization")
	ErrCannotRemoveOwner     = errors.New("cannot remove the organization owner")
	ErrStaffAlreadyApproved  = errors.New("staff member already in approved pool")
	ErrStaffNotApproved      = errors.New("staff member not in approved pool")
	ErrPolicyDenied          = errors.New("staff not in organization approved pool")

	ErrOwnershipInvariant = errors.New("ownership transfer rejected")
	ErrSelfTransfer       = fmt.Errorf("%w: cannot transfer ownership to yourself", ErrOwnershipInvariant)
	ErrNotOwner           = fmt.Errorf("%w: only the owner can transfer ownership", ErrOwnershipInvariant)
	ErrTargetNotMember    = fmt.Errorf("%w: target manager is not a member of this organization", ErrOwnershipInvariant)
)

const (
	inviteTTL          = 7 * 24 * time.Hour
	seatSyncTimeout    = 30 * time.Second
	seatRetryBatchSize = 50
	policyDeniedReason = "Staff not in organization approved pool"
)

// OrganizationService governs organizations: membership, staff policy,
// effective tier and staff seat billing.
type OrganizationService interface {
	Create(ctx context.Context, managerID string, req *dto.CreateOrganizationRequest) (*model.Organization, error)
	GetMine(ctx context.Context, managerID string) (*model.Organization, error)
	// Get returns an organization to one of its members.
	Get(ctx context.Context, orgID, callerID string) (*model.Organization, error)
	Rename(ctx context.Context, orgID, callerID, name string) (*model.Organization, error)
	InviteMember(ctx context.Context, orgID, callerID string, req *dto.InviteMemberRequest) (*dto.InviteResponse, error)
	JoinByToken(ctx context.Context, managerID, token string) (*model.Organization, error)
	RemoveMember(ctx context.Context, orgID, callerID, managerID string) error
	TransferOwnership(ctx context.Context, orgID, callerID, newOwnerID string) (*model.Organization, error)

	ListApprovedStaff(ctx context.Context, orgID, callerID string) ([]model.ApprovedStaff, error)
	AddApprovedStaff(ctx context.Context, orgID, callerID string, req *dto.ApprovedStaffRequest) (*model.ApprovedStaff, error)
	RemoveApprovedStaff(ctx context.Context, orgID, callerID, provider, subject string) error
	UpdateStaffPolicy(ctx context.Context, orgID, callerID, policy string) (*model.Organization, error)
	// UpdateSubscription records subscription state delivered by the billing provider.
	UpdateSubscription(ctx context.Context, orgID string, req *dto.UpdateSubscriptionRequest) (*model.Organization, error)

	ResolveEffectiveTier(ctx context.Context, managerID string) (*model.EffectiveTier, error)
	CanAddStaffToTeam(ctx context.Context, managerID string, id model.Identity) (*dto.PolicyDecision, error)

	SyncStaffSeats(ctx context.Context, orgID string) (*dto.SeatSyncResponse, error)
	// ScheduleSeatSync reconciles the seats of managerID's organization in the
	// background; failures are queued for RetrySeatSyncs.
	ScheduleSeatSync(managerID string)
	RetrySeatSyncs(ctx context.Context) (int, error)
	// Drain waits for background seat syncs to finish.
	Drain()
}

type organizationService struct {
	repo     *repository.Repository
	seats    billing.SeatSink
	retry    billing.RetryQueue
	priceID  string
	joinBase string
	logger   *zap.Logger
	inflight sync.WaitGroup
}

// NewOrganizationService creates the OrganizationService.
func NewOrganizationService(
	cfg *config.Config,
	repo *repository.Repository,
	seats billing.SeatSink,
	retry billing.RetryQueue,
	logger *zap.Logger,
) OrganizationService {
	return &organizationService{
		repo:     repo,
		seats:    seats,
		retry:    retry,
		priceID:  cfg.Billing.StaffSeatPriceID,
		joinBase: strings.TrimRight(cfg.Server.BaseURL, "/") + "/api/v1/organizations/join/",
		logger:   logger,
	}
}

// ── helpers ──

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-"), "-")
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// requireOrgRole checks that managerID is a member holding one of roles
// (any role when none are given).
func requireOrgRole(org *model.Organization, managerID string, roles ...string) error {
	m := org.Member(managerID)
	if m == nil {
		return ErrNotOrgMember
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if m.Role == r {
			return nil
		}
	}
	return ErrOrgPermission
}

func (s *organizationService) load(ctx context.Context, orgID string) (*model.Organization, error) {
	org, err := s.repo.Organization.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		s.logger.Error("failed to load organization", zap.String("organization_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	return org, nil
}

// orgOf returns the manager's organization, or nil when it has none.
func (s *organizationService) orgOf(ctx context.Context, managerID string) (*model.Organization, error) {
	org, err := s.repo.Organization.GetByManager(ctx, managerID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to load manager organization", zap.String("manager_id", managerID), zap.Error(err))
		return nil, err
	}
	return org, nil
}

// ════════════════════════════════════════════════════════════
// Lifecycle and membership
// ════════════════════════════════════════════════════════════

func (s *organizationService) Create(ctx context.Context, managerID string, req *dto.CreateOrganizationRequest) (*model.Organization, error) {
	// 1. one organization per manager
	existing, err := s.orgOf(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyInOrganization
	}

	slug := slugify(req.Slug)
	explicit := slug != ""
	if !explicit {
		slug = slugify(req.Name)
	}

	// 2. insert; a generated slug gets a random suffix on collision
	for attempt := 1; ; attempt++ {
		now := time.Now().UTC()
		org := &model.Organization{
			Name:                 req.Name,
			Slug:                 slug,
			SubscriptionStatus:   model.SubscriptionNone,
			SubscriptionTier:     model.TierFree,
			ManagerSeatsIncluded: 5,
			StaffPolicy:          model.StaffPolicyOpen,
			Version:              1,
			Members: []model.OrgMember{
				{ManagerID: managerID, Role: model.OrgRoleOwner, JoinedAt: now},
			},
		}
		err := s.repo.Organization.Create(ctx, org)
		if err == nil {
			s.logger.Info("organization created",
				zap.String("organization_id", org.OrganizationID),
				zap.String("slug", org.Slug),
				zap.String("owner", managerID),
			)
			return org, nil
		}
		if !errors.Is(err, pkgerrors.ErrConditionFailed) {
			s.logger.Error("failed to create organization", zap.Error(err))
			return nil, err
		}

		// a concurrent create or join may have claimed the manager
		if existing, err := s.orgOf(ctx, managerID); err != nil {
			return nil, err
		} else if existing != nil {
			return nil, ErrAlreadyInOrganization
		}
		if explicit || attempt >= maxWriteAttempts {
			return nil, ErrSlugTaken
		}
		suffix, err := randomHex(3)
		if err != nil {
			return nil, err
		}
		slug = slugify(req.Name) + "-" + suffix
	}
}

func (s *organizationService) GetMine(ctx context.Context, managerID string) (*model.Organization, error) {
	org, err := s.orgOf(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrganizationNotFound
	}
	return org, nil
}

func (s *organizationService) Get(ctx context.Context, orgID, callerID string) (*model.Organization, error) {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := requireOrgRole(org, callerID); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *organizationService) Rename(ctx context.Context, orgID, callerID, name string) (*model.Organization, error) {
	name = strings.TrimSpace(name)
	org, err := s.update(ctx, orgID, func(o *model.Organization) error {
		if err := requireOrgRole(o, callerID, model.OrgRoleOwner, model.OrgRoleAdmin); err != nil {
			return err
		}
		o.Name = name
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("organization renamed", zap.String("organization_id", orgID), zap.String("name", name))
	return org, nil
}

func (s *organizationService) InviteMember(ctx context.Context, orgID, callerID string, req *dto.InviteMemberRequest) (*dto.InviteResponse, error) {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := requireOrgRole(org, callerID, model.OrgRoleOwner, model.OrgRoleAdmin); err != nil {
		return nil, err
	}
	if !org.SeatsAvailable() {
		return nil, fmt.Errorf("%w (%d)", ErrSeatLimitReached, org.ManagerSeatsIncluded)
	}

	now := time.Now().UTC()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	for _, inv := range org.PendingInvites {
		if strings.EqualFold(inv.Email, email) && inv.ExpiresAt.After(now) {
			return nil, ErrInvitePending
		}
	}

	token, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = model.OrgRoleMember
	}
	invite := &model.OrgInvite{
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Token:          token,
		ExpiresAt:      now.Add(inviteTTL),
		InvitedBy:      callerID,
		CreatedAt:      now,
	}
	if err := s.repo.Organization.CreateInvite(ctx, invite); err != nil {
		s.logger.Error("failed to create invite", zap.String("organization_id", orgID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("organization invite created", zap.String("organization_id", orgID), zap.String("email", email))
	return &dto.InviteResponse{
		InviteID:  invite.InviteID,
		Token:     token,
		JoinURL:   s.joinBase + token,
		ExpiresAt: invite.ExpiresAt,
	}, nil
}

func (s *organizationService) JoinByToken(ctx context.Context, managerID, token string) (*model.Organization, error) {
	existing, err := s.orgOf(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyInOrganization
	}

	var orgID string
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 1. the invite row lock makes the token single use
		invite, err := tx.Organization.GetInviteForUpdate(ctx, token)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return ErrInviteInvalid
		}
		if err != nil {
			return err
		}
		if !invite.ExpiresAt.After(time.Now()) {
			return ErrInviteInvalid
		}

		// 2. the organization row lock serialises the seat check
		org, err := tx.Organization.GetByIDForUpdate(ctx, invite.OrganizationID)
		if err != nil {
			return err
		}
		if !org.SeatsAvailable() {
			return ErrSeatLimitReached
		}

		err = tx.Organization.AddMember(ctx, &model.OrgMember{
			OrganizationID: org.OrganizationID,
			ManagerID:      managerID,
			Role:           invite.Role,
			JoinedAt:       time.Now().UTC(),
		})
		if errors.Is(err, pkgerrors.ErrConditionFailed) {
			return ErrAlreadyInOrganization
		}
		if err != nil {
			return err
		}
		orgID = org.OrganizationID
		return tx.Organization.DeleteInvite(ctx, invite.InviteID)
	})
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error("failed to join organization", zap.String("manager_id", managerID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("manager joined organization", zap.String("organization_id", orgID), zap.String("manager_id", managerID))
	s.scheduleOrgSync(orgID)
	return s.load(ctx, orgID)
}

func (s *organizationService) RemoveMember(ctx context.Context, orgID, callerID, managerID string) error {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return err
	}
	// members may leave; removing others takes an admin
	if callerID != managerID {
		if err := requireOrgRole(org, callerID, model.OrgRoleOwner, model.OrgRoleAdmin); err != nil {
			return err
		}
	}
	target := org.Member(managerID)
	if target == nil {
		return ErrMemberNotFound
	}
	if target.Role == model.OrgRoleOwner {
		return ErrCannotRemoveOwner
	}

	if err := s.repo.Organization.RemoveMember(ctx, orgID, managerID); err != nil {
		if errors.Is(err, pkgerrors.ErrConditionFailed) {
			return ErrMemberNotFound
		}
		s.logger.Error("failed to remove member", zap.String("organization_id", orgID), zap.Error(err))
		return err
	}

	s.logger.Info("organization member removed", zap.String("organization_id", orgID), zap.String("manager_id", managerID))
	s.scheduleOrgSync(orgID)
	return nil
}

// ════════════════════════════════════════════════════════════
// TransferOwnership
// ════════════════════════════════════════════════════════════

func (s *organizationService) TransferOwnership(ctx context.Context, orgID, callerID, newOwnerID string) (*model.Organization, error) {
	// 1. validate before any write
	if callerID == newOwnerID {
		return nil, ErrSelfTransfer
	}

	// 2. swap roles under the organization row lock; demote first so the
	// single-owner index never sees two owners
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		org, err := tx.Organization.GetByIDForUpdate(ctx, orgID)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return ErrOrganizationNotFound
		}
		if err != nil {
			return err
		}
		if owner := org.Owner(); owner == nil || owner.ManagerID != callerID {
			return ErrNotOwner
		}
		if org.Member(newOwnerID) == nil {
			return ErrTargetNotMember
		}

		if err := tx.Organization.SetMemberRole(ctx, orgID, callerID, model.OrgRoleAdmin); err != nil {
			return err
		}
		return tx.Organization.SetMemberRole(ctx, orgID, newOwnerID, model.OrgRoleOwner)
	})
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error("failed to transfer ownership", zap.String("organization_id", orgID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("organization ownership transferred",
		zap.String("organization_id", orgID),
		zap.String("from", callerID),
		zap.String("to", newOwnerID),
	)
	return s.load(ctx, orgID)
}

// ════════════════════════════════════════════════════════════
// Staff policy
// ════════════════════════════════════════════════════════════

func (s *organizationService) ListApprovedStaff(ctx context.Context, orgID, callerID string) ([]model.ApprovedStaff, error) {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := requireOrgRole(org, callerID); err != nil {
		return nil, err
	}
	if org.ApprovedStaff == nil {
		return []model.ApprovedStaff{}, nil
	}
	return org.ApprovedStaff, nil
}

func (s *organizationService) AddApprovedStaff(ctx context.Context, orgID, callerID string, req *dto.ApprovedStaffRequest) (*model.ApprovedStaff, error) {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := requireOrgRole(org, callerID, model.OrgRoleOwner, model.OrgRoleAdmin); err != nil {
		return nil, err
	}
	id := model.Identity{Provider: req.Provider, Subject: req.Subject}
	if org.IsApproved(id) {
		return nil, ErrStaffAlreadyApproved
	}

	staff := &model.ApprovedStaff{
		OrganizationID: orgID,
		Provider:       req.Provider,
		Subject:        req.Subject,
		Name:           req.Name,
		Email:          req.Email,
		AddedBy:        callerID,
		AddedAt:        time.Now().UTC(),
	}
	if err := s.repo.Organization.AddApprovedStaff(ctx, staff); err != nil {
		if errors.Is(err, pkgerrors.ErrConditionFailed) {
			return nil, ErrStaffAlreadyApproved
		}
		s.logger.Error("failed to add approved staff", zap.String("organization_id", orgID), zap.Error(err))
		return nil, err
	}
	return staff, nil
}

func (s *organizationService) RemoveApprovedStaff(ctx context.Context, orgID, callerID, provider, subject string) error {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return err
	}
	if err := requireOrgRole(org, callerID, model.OrgRoleOwner, model.OrgRoleAdmin); err != nil {
		return err
	}
	if err := s.repo.Organization.RemoveApprovedStaff(ctx, orgID, provider, subject); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return ErrStaffNotApproved
		}
		s.logger.Error("failed to remove approved staff", zap.String("organization_id", orgID), zap.Error(err))
		return err
	}
	return nil
}

// update applies mutate to a fresh organization and stores it under the version guard.
func (s *organizationService) update(ctx context.Context, orgID string, mutate func(*model.Organization) error) (*model.Organization, error) {
	for attempt := 1; ; attempt++ {
		org, err := s.load(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if err := mutate(org); err != nil {
			return nil, err
		}
		err = s.repo.Organization.Update(ctx, org)
		if err == nil {
			return org, nil
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) || attempt >= maxWriteAttempts {
			if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
				s.logger.Error("failed to update organization", zap.String("organization_id", orgID), zap.Error(err))
			}
			return nil, err
		}
	}
}

func (s *organizationService) UpdateStaffPolicy(ctx context.Context, orgID, callerID, policy string) (*model.Organization, error) {
	org, err := s.update(ctx, orgID, func(o *model.Organization) error {
		if err := requireOrgRole(o, callerID, model.OrgRoleOwner, model.OrgRoleAdmin); err != nil {
			return err
		}
		o.StaffPolicy = policy
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("staff policy updated", zap.String("organization_id", orgID), zap.String("policy", policy))
	return org, nil
}

func (s *organizationService) UpdateSubscription(ctx context.Context, orgID string, req *dto.UpdateSubscriptionRequest) (*model.Organization, error) {
	if !model.ValidSubscriptionStatus(req.Status) {
		return nil, fmt.Errorf("unknown subscription status %q", req.Status)
	}
	attached := false
	org, err := s.update(ctx, orgID, func(o *model.Organization) error {
		attached = req.StripeSubscriptionID != nil && *req.StripeSubscriptionID != "" &&
			(o.StripeSubscriptionID == nil || *o.StripeSubscriptionID != *req.StripeSubscriptionID)
		o.SubscriptionStatus = req.Status
		o.SubscriptionTier = req.Tier
		o.CancelAtPeriodEnd = req.CancelAtPeriodEnd
		o.CurrentPeriodEnd = req.CurrentPeriodEnd
		if req.StripeCustomerID != nil {
			o.StripeCustomerID = req.StripeCustomerID
		}
		if req.StripeSubscriptionID != nil {
			o.StripeSubscriptionID = req.StripeSubscriptionID
		}
		if req.ManagerSeatsIncluded != nil {
			o.ManagerSeatsIncluded = *req.ManagerSeatsIncluded
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("organization subscription updated",
		zap.String("organization_id", orgID),
		zap.String("status", req.Status),
		zap.String("tier", req.Tier),
	)

	// a new subscription starts from whatever quantity checkout created
	if attached {
		s.syncOrQueue(ctx, orgID, true)
		if fresh, err := s.load(ctx, orgID); err == nil {
			org = fresh
		}
	}
	return org, nil
}

// ════════════════════════════════════════════════════════════
// Read-time governance
// ════════════════════════════════════════════════════════════

func (s *organizationService) ResolveEffectiveTier(ctx context.Context, managerID string) (*model.EffectiveTier, error) {
	manager, err := s.repo.Manager.GetByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, ErrManagerNotFound
		}
		s.logger.Error("failed to load manager", zap.String("manager_id", managerID), zap.Error(err))
		return nil, err
	}

	org, err := s.orgOf(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if org != nil && org.SubscriptionActive() {
		return &model.EffectiveTier{
			Tier:           org.SubscriptionTier,
			Source:         model.TierSourceOrganization,
			OrganizationID: org.OrganizationID,
		}, nil
	}

	tier := manager.SubscriptionTier
	if tier == "" {
		tier = model.TierFree
	}
	return &model.EffectiveTier{Tier: tier, Source: model.TierSourceIndividual}, nil
}

func (s *organizationService) CanAddStaffToTeam(ctx context.Context, managerID string, id model.Identity) (*dto.PolicyDecision, error) {
	org, err := s.orgOf(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if org == nil || org.StaffPolicy != model.StaffPolicyRestricted || org.IsApproved(id) {
		return &dto.PolicyDecision{Allowed: true}, nil
	}
	return &dto.PolicyDecision{Allowed: false, Reason: policyDeniedReason}, nil
}

// ════════════════════════════════════════════════════════════
// Staff seat sync
// ════════════════════════════════════════════════════════════

func (s *organizationService) SyncStaffSeats(ctx context.Context, orgID string) (*dto.SeatSyncResponse, error) {
	return s.syncSeats(ctx, orgID, false)
}

// syncSeats recounts the organization's staff and pushes the quantity to
// billing. The stored count is the last pushed quantity, so it only moves
// after a successful push; force pushes even when the count is unchanged.
func (s *organizationService) syncSeats(ctx context.Context, orgID string, force bool) (*dto.SeatSyncResponse, error) {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, err
	}

	// 1. unique (provider, subject) across every member manager's teams
	managerIDs := make([]string, 0, len(org.Members))
	for _, m := range org.Members {
		managerIDs = append(managerIDs, m.ManagerID)
	}
	count := 0
	if len(managerIDs) > 0 {
		if count, err = s.repo.Team.CountUniqueStaff(ctx, managerIDs); err != nil {
			return nil, fmt.Errorf("failed to count staff: %w", err)
		}
	}

	out := &dto.SeatSyncResponse{StaffSeatsUsed: count}

	// 2. nothing to reconcile without a subscription
	if org.StripeSubscriptionID == nil || *org.StripeSubscriptionID == "" || s.priceID == "" || s.seats == nil {
		return out, nil
	}
	if count == org.StaffSeatsUsed && !force {
		return out, nil
	}

	// 3. push to billing before persisting so a failure is retried
	if err := s.seats.SetSeatQuantity(ctx, *org.StripeSubscriptionID, s.priceID, max(count, 1)); err != nil {
		return nil, fmt.Errorf("failed to push seat quantity: %w", err)
	}
	out.Pushed = true
	if err := s.repo.Organization.SetStaffSeatsUsed(ctx, orgID, count); err != nil {
		return nil, fmt.Errorf("failed to store seat count: %w", err)
	}

	s.logger.Info("staff seats synced",
		zap.String("organization_id", orgID),
		zap.Int("from", org.StaffSeatsUsed),
		zap.Int("to", count),
		zap.Bool("forced", force),
	)
	return out, nil
}

func (s *organizationService) ScheduleSeatSync(managerID string) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), seatSyncTimeout)
		defer cancel()

		org, err := s.orgOf(ctx, managerID)
		if err != nil || org == nil {
			return
		}
		s.syncOrQueue(ctx, org.OrganizationID, false)
	}()
}

func (s *organizationService) scheduleOrgSync(orgID string) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), seatSyncTimeout)
		defer cancel()
		s.syncOrQueue(ctx, orgID, false)
	}()
}

// syncOrQueue runs one sync and queues the organization for retry on failure.
func (s *organizationService) syncOrQueue(ctx context.Context, orgID string, force bool) bool {
	_, err := s.syncSeats(ctx, orgID, force)
	if err == nil || errors.Is(err, ErrOrganizationNotFound) {
		return err == nil
	}
	s.logger.Warn("staff seat sync failed, queued for retry", zap.String("organization_id", orgID), zap.Error(err))
	if s.retry != nil {
		if qerr := s.retry.Add(ctx, orgID); qerr != nil {
			s.logger.Error("failed to queue seat sync retry", zap.String("organization_id", orgID), zap.Error(qerr))
		}
	}
	return false
}

func (s *organizationService) RetrySeatSyncs(ctx context.Context) (int, error) {
	if s.retry == nil {
		return 0, nil
	}
	ids, err := s.retry.Drain(ctx, seatRetryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to drain seat sync retries: %w", err)
	}
	synced := 0
	for _, id := range ids {
		if s.syncOrQueue(ctx, id, false) {
			synced++
		}
	}
	return synced, nil
}

func (s *organizationService) Drain() {
	s.inflight.Wait()
}

// isDomainError reports whether err is an expected rejection rather than a store failure.
func isDomainError(err error) bool {
	for _, target := range []error{
		ErrInviteInvalid,
		ErrSeatLimitReached,
		ErrAlreadyInOrganization,
		ErrOrganizationNotFound,
		ErrOwnershipInvariant,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
