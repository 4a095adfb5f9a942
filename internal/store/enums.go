package store

// Template ENUMs
const (
	TemplateStatusPending   = "pending"
	TemplateStatusSubmitted = "submitted"
	TemplateStatusApproved  = "approved"
	TemplateStatusRejected  = "rejected"
)

const (
	TemplateCategoryMarketing      = "MARKETING"
	TemplateCategoryUtility        = "UTILITY"
	TemplateCategoryAuthentication = "AUTHENTICATION"
)

// Campaign ENUMs
const (
	CampaignStatusQueued     = "queued"
	CampaignStatusInProgress = "in_progress"
	CampaignStatusPaused     = "paused"
	CampaignStatusCompleted  = "completed"
	CampaignStatusFailed     = "failed"
)

// Message log ENUMs
const (
	MessageLogStatusSent   = "sent"
	MessageLogStatusFailed = "failed"
)
