package dto

import "time"

// ── organization DTOs ──

// CreateOrganizationRequest creates an organization owned by the caller.
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required,min=2,max=200"`
	Slug string `json:"slug" binding:"omitempty,min=2,max=200"`
}

// InviteMemberRequest invites a manager by email.
type InviteMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"  binding:"omitempty,oneof=admin member"`
}

// InviteResponse carries the single-use join token.
type InviteResponse struct {
	InviteID  string    `json:"invite_id"`
	Token     string    `json:"token"`
	JoinURL   string    `json:"join_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TransferOwnershipRequest hands the owner role to another member.
type TransferOwnershipRequest struct {
	NewOwnerID string `json:"new_owner_id" binding:"required,uuid"`
}

// ApprovedStaffRequest adds an identity to the approved pool.
type ApprovedStaffRequest struct {
	Provider string `json:"provider" binding:"required,max=50"`
	Subject  string `json:"subject"  binding:"required,max=255"`
	Name     string `json:"name"     binding:"max=200"`
	Email    string `json:"email"    binding:"omitempty,email"`
}

// RenameOrganizationRequest renames an organization; the slug is kept.
type RenameOrganizationRequest struct {
	Name string `json:"name" binding:"required,min=2,max=100"`
}

// UpdateStaffPolicyRequest switches the staff admission policy.
type UpdateStaffPolicyRequest struct {
	StaffPolicy string `json:"staff_policy" binding:"required,oneof=open restricted"`
}

// UpdateSubscriptionRequest records subscription state delivered by billing.
type UpdateSubscriptionRequest struct {
	Status               string     `json:"status"                 binding:"required,oneof=none trialing active past_due canceled unpaid"`
	Tier                 string     `json:"tier"                   binding:"required,oneof=free pro"`
	StripeCustomerID     *string    `json:"stripe_customer_id"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	ManagerSeatsIncluded *int       `json:"manager_seats_included" binding:"omitempty,min=0"`
}

// PolicyDecision is the answer to a team admission check.
type PolicyDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// SeatSyncResponse reports a seat reconciliation.
type SeatSyncResponse struct {
	StaffSeatsUsed int  `json:"staff_seats_used"`
	Pushed         bool `json:"pushed"`
}
