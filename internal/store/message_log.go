package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateMessageLogParams represents parameters for recording one dispatch
// attempt
type CreateMessageLogParams struct {
	LeadID            *uuid.UUID
	AgentID           uuid.UUID
	ExternalMessageID *string
	TemplateID        *uuid.UUID
	Params            Params
	PhoneNumber       string
	Status            string
	ErrorMessage      *string
	CampaignID        *uuid.UUID
}

const sqlCreateMessageLog = `
INSERT INTO message_logs (lead_id, agent_id, external_message_id, template_id, params, phone_number, status, error_message, campaign_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, lead_id, agent_id, external_message_id, template_id, params, phone_number, status, error_message, campaign_id, created_at
`

// CreateMessageLog appends one dispatch-attempt record. Rows are never
// updated or deleted.
func (s *Store) CreateMessageLog(ctx context.Context, params CreateMessageLogParams) (MessageLog, error) {
	var entry MessageLog
	err := s.db.GetContext(ctx, &entry, sqlCreateMessageLog,
		params.LeadID,
		params.AgentID,
		params.ExternalMessageID,
		params.TemplateID,
		params.Params,
		params.PhoneNumber,
		params.Status,
		params.ErrorMessage,
		params.CampaignID)
	if err != nil {
		return MessageLog{}, fmt.Errorf("failed to create message log: %w", err)
	}
	return entry, nil
}

const sqlListMessageLogsByCampaign = `
SELECT id, lead_id, agent_id, external_message_id, template_id, params, phone_number, status, error_message, campaign_id, created_at
FROM message_logs
WHERE campaign_id = $1
ORDER BY created_at ASC
`

// ListMessageLogsByCampaign retrieves the dispatch history of a campaign
func (s *Store) ListMessageLogsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]MessageLog, error) {
	var entries []MessageLog
	err := s.db.SelectContext(ctx, &entries, sqlListMessageLogsByCampaign, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list message logs: %w", err)
	}
	return entries, nil
}
