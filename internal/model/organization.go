package model

import "time"

// Subscription states as delivered by the billing provider
const (
	SubscriptionNone     = "none"
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionUnpaid   = "unpaid"
)

// Subscription tiers
const (
	TierFree = "free"
	TierPro  = "pro"
)

// Organization member roles
const (
	OrgRoleOwner  = "owner"
	OrgRoleAdmin  = "admin"
	OrgRoleMember = "member"
)

// Staff admission policies
const (
	StaffPolicyOpen       = "open"
	StaffPolicyRestricted = "restricted"
)

// ValidSubscriptionStatus reports whether s is a known subscription state.
func ValidSubscriptionStatus(s string) bool {
	switch s {
	case SubscriptionNone, SubscriptionTrialing, SubscriptionActive,
		SubscriptionPastDue, SubscriptionCanceled, SubscriptionUnpaid:
		return true
	}
	return false
}

// Organization groups managers under shared billing and staff policy.
type Organization struct {
	OrganizationID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"organization_id"`
	Name                 string     `gorm:"type:varchar(200);not null"                     json:"name"`
	Slug                 string     `gorm:"type:varchar(200);not null;uniqueIndex"         json:"slug"`
	StripeCustomerID     *string    `gorm:"type:varchar(100)"                              json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `gorm:"type:varchar(100)"                              json:"stripe_subscription_id,omitempty"`
	SubscriptionStatus   string     `gorm:"type:varchar(20);not null;default:'none'"       json:"subscription_status"`
	SubscriptionTier     string     `gorm:"type:varchar(20);not null;default:'free'"       json:"subscription_tier"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"not null;default:false"                         json:"cancel_at_period_end"`
	ManagerSeatsIncluded int        `gorm:"not null;default:5"                             json:"manager_seats_included"` // 0 = unlimited
	StaffSeatsUsed       int        `gorm:"not null;default:0"                             json:"staff_seats_used"`
	StaffPolicy          string     `gorm:"type:varchar(20);not null;default:'open'"       json:"staff_policy"`
	Version              int        `gorm:"not null;default:1"                             json:"version"`
	BaseModel

	Members        []OrgMember     `gorm:"foreignKey:OrganizationID;references:OrganizationID" json:"members,omitempty"`
	ApprovedStaff  []ApprovedStaff `gorm:"foreignKey:OrganizationID;references:OrganizationID" json:"approved_staff,omitempty"`
	PendingInvites []OrgInvite     `gorm:"foreignKey:OrganizationID;references:OrganizationID" json:"pending_invites,omitempty"`
}

// TableName organizations
func (Organization) TableName() string { return "organizations" }

// SubscriptionActive reports whether the org tier currently applies to members.
func (o *Organization) SubscriptionActive() bool {
	return o.SubscriptionStatus == SubscriptionActive || o.SubscriptionStatus == SubscriptionTrialing
}

// Owner returns the owner membership, if any.
func (o *Organization) Owner() *OrgMember {
	for i := range o.Members {
		if o.Members[i].Role == OrgRoleOwner {
			return &o.Members[i]
		}
	}
	return nil
}

// Member returns the membership of managerID, if any.
func (o *Organization) Member(managerID string) *OrgMember {
	for i := range o.Members {
		if o.Members[i].ManagerID == managerID {
			return &o.Members[i]
		}
	}
	return nil
}

// IsApproved reports whether the identity is in the approved staff pool.
func (o *Organization) IsApproved(id Identity) bool {
	for _, s := range o.ApprovedStaff {
		if s.Provider == id.Provider && s.Subject == id.Subject {
			return true
		}
	}
	return false
}

// SeatsAvailable reports whether one more manager fits the seat allowance.
func (o *Organization) SeatsAvailable() bool {
	return o.ManagerSeatsIncluded <= 0 || len(o.Members) < o.ManagerSeatsIncluded
}

// OrgMember is a manager's membership in an organization.
type OrgMember struct {
	OrganizationID string    `gorm:"type:uuid;primaryKey"                 json:"organization_id"`
	ManagerID      string    `gorm:"type:uuid;primaryKey"                 json:"manager_id"`
	Role           string    `gorm:"type:varchar(20);not null"            json:"role"`
	JoinedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"   json:"joined_at"`
}

// TableName organization_members
func (OrgMember) TableName() string { return "organization_members" }

// ApprovedStaff is an identity admitted to teams under a restricted policy.
type ApprovedStaff struct {
	OrganizationID string    `gorm:"type:uuid;primaryKey"               json:"-"`
	Provider       string    `gorm:"type:varchar(50);primaryKey"        json:"provider"`
	Subject        string    `gorm:"type:varchar(255);primaryKey"       json:"subject"`
	Name           string    `gorm:"type:varchar(200)"                  json:"name,omitempty"`
	Email          string    `gorm:"type:varchar(255)"                  json:"email,omitempty"`
	AddedBy        string    `gorm:"type:uuid;not null"                 json:"added_by"`
	AddedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"added_at"`
}

// TableName org_approved_staff
func (ApprovedStaff) TableName() string { return "org_approved_staff" }

// OrgInvite is a single-use invitation for a manager to join.
type OrgInvite struct {
	InviteID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"invite_id"`
	OrganizationID string    `gorm:"type:uuid;not null;index"                       json:"organization_id"`
	Email          string    `gorm:"type:varchar(255);not null"                     json:"email"`
	Role           string    `gorm:"type:varchar(20);not null"                      json:"role"`
	Token          string    `gorm:"type:varchar(64);not null;uniqueIndex"          json:"-"`
	ExpiresAt      time.Time `gorm:"not null"                                       json:"expires_at"`
	InvitedBy      string    `gorm:"type:uuid;not null"                             json:"invited_by"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName org_invites
func (OrgInvite) TableName() string { return "org_invites" }

// Manager is an account that owns events and teams.
type Manager struct {
	ManagerID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"manager_id"`
	Provider           string `gorm:"type:varchar(50);not null"                      json:"provider"`
	Subject            string `gorm:"type:varchar(255);not null"                     json:"subject"`
	Email              string `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	Name               string `gorm:"type:varchar(200)"                              json:"name,omitempty"`
	SubscriptionTier   string `gorm:"type:varchar(20);not null;default:'free'"       json:"subscription_tier"`
	SubscriptionStatus string `gorm:"type:varchar(20);not null;default:'none'"       json:"subscription_status"`
	BaseModel
}

// TableName managers
func (Manager) TableName() string { return "managers" }

// EffectiveTier is the tier in force for a manager and where it came from.
type EffectiveTier struct {
	Tier           string `json:"tier"`
	Source         string `json:"source"` // organization | individual
	OrganizationID string `json:"organization_id,omitempty"`
}

// Tier sources
const (
	TierSourceOrganization = "organization"
	TierSourceIndividual   = "individual"
)
