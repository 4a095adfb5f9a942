package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateTemplateParams represents parameters for creating a local template
// record
type CreateTemplateParams struct {
	AgentID      uuid.UUID
	Name         string
	Category     string
	Content      string
	Params       StringArray
	LanguageCode string
}

const sqlCreateTemplate = `
INSERT INTO message_templates (agent_id, name, category, content, params, language_code, status)
VALUES ($1, $2, $3, $4, $5, $6, 'pending')
RETURNING id, agent_id, name, category, content, params, language_code, status, gateway_template_id, submitted_at, approved_at, rejected_at, rejection_reason, created_at
`

// CreateTemplate creates a new template record in pending status
func (s *Store) CreateTemplate(ctx context.Context, params CreateTemplateParams) (MessageTemplate, error) {
	var template MessageTemplate
	err := s.db.GetContext(ctx, &template, sqlCreateTemplate,
		params.AgentID,
		params.Name,
		params.Category,
		params.Content,
		params.Params,
		params.LanguageCode)
	if err != nil {
		return MessageTemplate{}, fmt.Errorf("failed to create template: %w", err)
	}
	return template, nil
}

const sqlGetTemplateByID = `
SELECT id, agent_id, name, category, content, params, language_code, status, gateway_template_id, submitted_at, approved_at, rejected_at, rejection_reason, created_at
FROM message_templates
WHERE id = $1
`

// GetTemplateByID retrieves a template by ID
func (s *Store) GetTemplateByID(ctx context.Context, templateID uuid.UUID) (MessageTemplate, error) {
	var template MessageTemplate
	err := s.db.GetContext(ctx, &template, sqlGetTemplateByID, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MessageTemplate{}, ErrNotFound
		}
		return MessageTemplate{}, fmt.Errorf("failed to get template: %w", err)
	}
	return template, nil
}

const sqlGetTemplateByName = `
SELECT id, agent_id, name, category, content, params, language_code, status, gateway_template_id, submitted_at, approved_at, rejected_at, rejection_reason, created_at
FROM message_templates
WHERE agent_id = $1 AND name = $2
`

// GetTemplateByName retrieves an agent's template by its unique name
func (s *Store) GetTemplateByName(ctx context.Context, agentID uuid.UUID, name string) (MessageTemplate, error) {
	var template MessageTemplate
	err := s.db.GetContext(ctx, &template, sqlGetTemplateByName, agentID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MessageTemplate{}, ErrNotFound
		}
		return MessageTemplate{}, fmt.Errorf("failed to get template by name: %w", err)
	}
	return template, nil
}

const sqlListTemplatesByAgent = `
SELECT id, agent_id, name, category, content, params, language_code, status, gateway_template_id, submitted_at, approved_at, rejected_at, rejection_reason, created_at
FROM message_templates
WHERE agent_id = $1
ORDER BY created_at DESC
`

// ListTemplatesByAgent retrieves all templates belonging to an agent
func (s *Store) ListTemplatesByAgent(ctx context.Context, agentID uuid.UUID) ([]MessageTemplate, error) {
	var templates []MessageTemplate
	err := s.db.SelectContext(ctx, &templates, sqlListTemplatesByAgent, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

const sqlListTemplatesByStatus = `
SELECT id, agent_id, name, category, content, params, language_code, status, gateway_template_id, submitted_at, approved_at, rejected_at, rejection_reason, created_at
FROM message_templates
WHERE status = $1
ORDER BY submitted_at ASC
`

// ListTemplatesByStatus retrieves all templates in the given status
func (s *Store) ListTemplatesByStatus(ctx context.Context, status string) ([]MessageTemplate, error) {
	var templates []MessageTemplate
	err := s.db.SelectContext(ctx, &templates, sqlListTemplatesByStatus, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates by status: %w", err)
	}
	return templates, nil
}

const sqlMarkTemplateSubmitted = `
UPDATE message_templates
SET status = 'submitted',
    gateway_template_id = $2,
    submitted_at = CURRENT_TIMESTAMP
WHERE id = $1 AND status = 'pending'
RETURNING id, agent_id, name, category, content, params, language_code, status, gateway_template_id, submitted_at, approved_at, rejected_at, rejection_reason, created_at
`

// MarkTemplateSubmitted transitions a pending template to submitted with the
// gateway's template id
func (s *Store) MarkTemplateSubmitted(ctx context.Context, templateID uuid.UUID, gatewayTemplateID string) (MessageTemplate, error) {
	var template MessageTemplate
	err := s.db.GetContext(ctx, &template, sqlMarkTemplateSubmitted, templateID, gatewayTemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MessageTemplate{}, ErrNotFound
		}
		return MessageTemplate{}, fmt.Errorf("failed to mark template submitted: %w", err)
	}
	return template, nil
}

const sqlMarkTemplateApproved = `
UPDATE message_templates
SET status = 'approved',
    approved_at = CURRENT_TIMESTAMP
WHERE id = $1 AND status = 'submitted'
`

// MarkTemplateApproved transitions a submitted template to approved
func (s *Store) MarkTemplateApproved(ctx context.Context, templateID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, sqlMarkTemplateApproved, templateID)
	if err != nil {
		return fmt.Errorf("failed to mark template approved: %w", err)
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

const sqlMarkTemplateRejected = `
UPDATE message_templates
SET status = 'rejected',
    rejected_at = CURRENT_TIMESTAMP,
    rejection_reason = $2
WHERE id = $1 AND status = 'submitted'
`

// MarkTemplateRejected transitions a submitted template to rejected with the
// gateway's reason
func (s *Store) MarkTemplateRejected(ctx context.Context, templateID uuid.UUID, reason string) error {
	res, err := s.db.ExecContext(ctx, sqlMarkTemplateRejected, templateID, reason)
	if err != nil {
		return fmt.Errorf("failed to mark template rejected: %w", err)
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
