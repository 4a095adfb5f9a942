package processor

import (
	"context"
	"fmt"

	"partner-server/internal/gateway"
	"partner-server/internal/observability"
	"partner-server/internal/store"

	"github.com/google/uuid"
)

// CampaignStore defines the database operations required by
// CampaignProcessor
type CampaignStore interface {
	CreateCampaign(ctx context.Context, params store.CreateCampaignParams) (store.Campaign, error)
	GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string, errorDetails *string) (store.Campaign, error)
	CreateCampaignRecipients(ctx context.Context, campaignID uuid.UUID, recipients []store.CreateCampaignRecipientParams) error
	GetTemplateByID(ctx context.Context, templateID uuid.UUID) (store.MessageTemplate, error)
	GetLeadByID(ctx context.Context, leadID uuid.UUID) (store.Lead, error)
	ListMessageLogsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]store.MessageLog, error)
}

// StartEvents publishes the detached-execution handoff event.
type StartEvents interface {
	DispatchCampaignStart(ctx context.Context, agentID, campaignID uuid.UUID) error
}

// RecipientSpec names one campaign recipient and its parameter overrides.
type RecipientSpec struct {
	LeadID uuid.UUID
	Params map[string]string
}

type CampaignProcessor struct {
	store  CampaignStore
	events StartEvents
	logger *observability.Logger
}

func New(s CampaignStore, events StartEvents, logger *observability.Logger) CampaignProcessor {
	return CampaignProcessor{
		store:  s,
		events: events,
		logger: logger,
	}
}

// Create persists a queued campaign with its durable recipient list. The
// recipient list is frozen at creation; the orchestrator walks it in order.
func (p CampaignProcessor) Create(ctx context.Context, agentID, templateID uuid.UUID, recipients []RecipientSpec) (store.Campaign, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "agent_id", Value: agentID},
		observability.Field{Key: "template_id", Value: templateID},
	)

	if len(recipients) == 0 {
		return store.Campaign{}, &gateway.ValidationError{Field: "recipients", Reason: "must not be empty"}
	}

	template, err := p.store.GetTemplateByID(ctx, templateID)
	if err != nil {
		return store.Campaign{}, err
	}
	if template.AgentID != agentID {
		return store.Campaign{}, store.ErrNotFound
	}
	if template.Status != store.TemplateStatusApproved {
		return store.Campaign{}, &gateway.ValidationError{
			Field:  "template_id",
			Reason: fmt.Sprintf("template is %s, only approved templates can be campaigned", template.Status),
		}
	}

	rows := make([]store.CreateCampaignRecipientParams, 0, len(recipients))
	for i, spec := range recipients {
		lead, err := p.store.GetLeadByID(ctx, spec.LeadID)
		if err != nil {
			return store.Campaign{}, err
		}
		if lead.AgentID != agentID {
			return store.Campaign{}, store.ErrNotFound
		}
		rows = append(rows, store.CreateCampaignRecipientParams{
			LeadID:   lead.ID,
			Phone:    lead.Phone,
			Params:   spec.Params,
			Position: i,
		})
	}

	campaign, err := p.store.CreateCampaign(ctx, store.CreateCampaignParams{
		AgentID:    agentID,
		TemplateID: templateID,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to create campaign", err)
		return store.Campaign{}, fmt.Errorf("failed to create campaign: %w", err)
	}

	for i := range rows {
		rows[i].CampaignID = campaign.ID
	}
	if err := p.store.CreateCampaignRecipients(ctx, campaign.ID, rows); err != nil {
		p.logger.Error(ctx, "failed to create campaign recipients", err)
		return store.Campaign{}, fmt.Errorf("failed to create campaign recipients: %w", err)
	}

	campaign.TotalRecipients = len(rows)
	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "campaign_id", Value: campaign.ID},
		observability.Field{Key: "total_recipients", Value: len(rows)},
	), "created campaign")
	return campaign, nil
}

// Start hands the campaign to the worker pool and returns immediately. The
// orchestrator itself skips campaigns that are not runnable, so a start on
// an already-terminal campaign is a harmless no-op.
func (p CampaignProcessor) Start(ctx context.Context, agentID, campaignID uuid.UUID) error {
	if _, err := p.owned(ctx, agentID, campaignID); err != nil {
		return err
	}

	if err := p.events.DispatchCampaignStart(ctx, agentID, campaignID); err != nil {
		p.logger.Error(ctx, "failed to dispatch campaign start", err)
		return err
	}

	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "campaign_id", Value: campaignID},
	), "dispatched campaign start")
	return nil
}

// Pause suspends an in-progress campaign. The orchestrator observes the
// transition before its next recipient.
func (p CampaignProcessor) Pause(ctx context.Context, agentID, campaignID uuid.UUID) (store.Campaign, error) {
	campaign, err := p.owned(ctx, agentID, campaignID)
	if err != nil {
		return store.Campaign{}, err
	}
	if campaign.Status != store.CampaignStatusInProgress {
		return store.Campaign{}, &gateway.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot pause a %s campaign", campaign.Status),
		}
	}
	return p.store.UpdateCampaignStatus(ctx, campaignID, store.CampaignStatusPaused, nil)
}

// Resume continues a paused campaign.
func (p CampaignProcessor) Resume(ctx context.Context, agentID, campaignID uuid.UUID) (store.Campaign, error) {
	campaign, err := p.owned(ctx, agentID, campaignID)
	if err != nil {
		return store.Campaign{}, err
	}
	if campaign.Status != store.CampaignStatusPaused {
		return store.Campaign{}, &gateway.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot resume a %s campaign", campaign.Status),
		}
	}
	return p.store.UpdateCampaignStatus(ctx, campaignID, store.CampaignStatusInProgress, nil)
}

// Cancel stops a campaign permanently. Cancellation is a transition to
// failed; partial progress stands.
func (p CampaignProcessor) Cancel(ctx context.Context, agentID, campaignID uuid.UUID) (store.Campaign, error) {
	campaign, err := p.owned(ctx, agentID, campaignID)
	if err != nil {
		return store.Campaign{}, err
	}
	switch campaign.Status {
	case store.CampaignStatusCompleted, store.CampaignStatusFailed:
		return store.Campaign{}, &gateway.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot cancel a %s campaign", campaign.Status),
		}
	}

	reason := "cancelled by user"
	return p.store.UpdateCampaignStatus(ctx, campaignID, store.CampaignStatusFailed, &reason)
}

// Get retrieves one campaign scoped to the agent.
func (p CampaignProcessor) Get(ctx context.Context, agentID, campaignID uuid.UUID) (store.Campaign, error) {
	return p.owned(ctx, agentID, campaignID)
}

// Logs retrieves the campaign's dispatch history.
func (p CampaignProcessor) Logs(ctx context.Context, agentID, campaignID uuid.UUID) ([]store.MessageLog, error) {
	if _, err := p.owned(ctx, agentID, campaignID); err != nil {
		return nil, err
	}
	return p.store.ListMessageLogsByCampaign(ctx, campaignID)
}

func (p CampaignProcessor) owned(ctx context.Context, agentID, campaignID uuid.UUID) (store.Campaign, error) {
	campaign, err := p.store.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return store.Campaign{}, err
	}
	if campaign.AgentID != agentID {
		return store.Campaign{}, store.ErrNotFound
	}
	return campaign, nil
}
