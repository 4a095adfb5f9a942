package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateCampaignParams represents parameters for creating a campaign
type CreateCampaignParams struct {
	AgentID    uuid.UUID
	TemplateID uuid.UUID
}

const sqlCreateCampaign = `
INSERT INTO campaigns (agent_id, template_id, status)
VALUES ($1, $2, 'queued')
RETURNING id, agent_id, template_id, status, messages_sent, messages_failed, total_recipients, error_details, created_at, completed_at
`

// CreateCampaign creates a new campaign in queued status
func (s *Store) CreateCampaign(ctx context.Context, params CreateCampaignParams) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlCreateCampaign,
		params.AgentID,
		params.TemplateID)
	if err != nil {
		return Campaign{}, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

const sqlGetCampaignByID = `
SELECT id, agent_id, template_id, status, messages_sent, messages_failed, total_recipients, error_details, created_at, completed_at
FROM campaigns
WHERE id = $1
`

// GetCampaignByID retrieves a campaign by ID. The orchestrator calls this
// before every recipient to observe external pause/cancel.
func (s *Store) GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlGetCampaignByID, campaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

const sqlUpdateCampaignStatus = `
UPDATE campaigns
SET status = $2,
    error_details = COALESCE($3, error_details),
    completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END
WHERE id = $1
RETURNING id, agent_id, template_id, status, messages_sent, messages_failed, total_recipients, error_details, created_at, completed_at
`

// UpdateCampaignStatus updates the status of a campaign
func (s *Store) UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string, errorDetails *string) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlUpdateCampaignStatus, campaignID, status, errorDetails)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, fmt.Errorf("failed to update campaign status: %w", err)
	}
	return campaign, nil
}

const sqlUpdateCampaignProgress = `
UPDATE campaigns
SET messages_sent = $2,
    messages_failed = $3
WHERE id = $1
`

// UpdateCampaignProgress persists the running sent/failed counters
func (s *Store) UpdateCampaignProgress(ctx context.Context, campaignID uuid.UUID, sent, failed int) error {
	res, err := s.db.ExecContext(ctx, sqlUpdateCampaignProgress, campaignID, sent, failed)
	if err != nil {
		return fmt.Errorf("failed to update campaign progress: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// CreateCampaignRecipientParams represents one recipient row
type CreateCampaignRecipientParams struct {
	CampaignID uuid.UUID
	LeadID     uuid.UUID
	Phone      string
	Params     Params
	Position   int
}

const sqlCreateCampaignRecipient = `
INSERT INTO campaign_recipients (campaign_id, lead_id, phone, params, position)
VALUES ($1, $2, $3, $4, $5)
`

const sqlUpdateCampaignTotalRecipients = `
UPDATE campaigns
SET total_recipients = $2
WHERE id = $1
`

// CreateCampaignRecipients inserts the durable recipient list for a campaign
// and records the total on the campaign row.
func (s *Store) CreateCampaignRecipients(ctx context.Context, campaignID uuid.UUID, recipients []CreateCampaignRecipientParams) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqlCreateCampaignRecipient)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range recipients {
		if _, err := stmt.ExecContext(ctx, campaignID, r.LeadID, r.Phone, r.Params, r.Position); err != nil {
			return fmt.Errorf("failed to insert campaign recipient: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, sqlUpdateCampaignTotalRecipients, campaignID, len(recipients)); err != nil {
		return fmt.Errorf("failed to update total recipients: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

const sqlGetCampaignRecipients = `
SELECT id, campaign_id, lead_id, phone, params, position
FROM campaign_recipients
WHERE campaign_id = $1
ORDER BY position ASC
`

// GetCampaignRecipients retrieves a campaign's recipient list in send order
func (s *Store) GetCampaignRecipients(ctx context.Context, campaignID uuid.UUID) ([]CampaignRecipient, error) {
	var recipients []CampaignRecipient
	err := s.db.SelectContext(ctx, &recipients, sqlGetCampaignRecipients, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign recipients: %w", err)
	}
	return recipients, nil
}
