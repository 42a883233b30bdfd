package dto

// ── team DTOs ──

// CreateTeamRequest creates a team for the calling manager.
type CreateTeamRequest struct {
	Name        string `json:"name"        binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

// AddTeamMemberRequest adds a staff identity to a team.
type AddTeamMemberRequest struct {
	Provider string `json:"provider" binding:"required,max=50"`
	Subject  string `json:"subject"  binding:"required,max=255"`
	Name     string `json:"name"     binding:"max=200"`
	Email    string `json:"email"    binding:"omitempty,email"`
}

// UpsertManagerRequest registers or refreshes the caller's manager profile.
type UpsertManagerRequest struct {
	Name  string `json:"name"  binding:"max=200"`
	Email string `json:"email" binding:"omitempty,email"`
}

// UpdateManagerSubscriptionRequest records an individual subscription change.
type UpdateManagerSubscriptionRequest struct {
	Tier   string `json:"tier"   binding:"required,oneof=free pro"`
	Status string `json:"status" binding:"required,oneof=none trialing active past_due canceled unpaid"`
}
