package dto

// ── attendance DTOs ──

// ApproveHoursRequest approves an identity's closed sessions.
type ApproveHoursRequest struct {
	Provider      string   `json:"provider"       binding:"required,max=50"`
	Subject       string   `json:"subject"        binding:"required,max=255"`
	ApprovedHours *float64 `json:"approved_hours" binding:"omitempty,gte=0,lte=48"`
}

// ApproveHoursResponse reports how many sessions were stamped.
type ApproveHoursResponse struct {
	Approved int `json:"approved"`
}

// SweepResponse reports an auto clock-out run.
type SweepResponse struct {
	Closed int `json:"closed"`
}
