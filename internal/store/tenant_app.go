package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateTenantAppParams represents parameters for recording a provisioned app
type CreateTenantAppParams struct {
	AgentID                  uuid.UUID
	AppID                    string
	Name                     string
	TemplateMessagingEnabled bool
	LiveStatus               bool
	HealthyStatus            bool
}

const sqlCreateTenantApp = `
INSERT INTO tenant_apps (agent_id, app_id, name, template_messaging_enabled, live_status, healthy_status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, agent_id, app_id, name, phone_number, template_messaging_enabled, live_status, healthy_status, created_at, updated_at
`

// CreateTenantApp records a provisioned gateway app for an agent
func (s *Store) CreateTenantApp(ctx context.Context, params CreateTenantAppParams) (TenantApp, error) {
	var app TenantApp
	err := s.db.GetContext(ctx, &app, sqlCreateTenantApp,
		params.AgentID,
		params.AppID,
		params.Name,
		params.TemplateMessagingEnabled,
		params.LiveStatus,
		params.HealthyStatus)
	if err != nil {
		return TenantApp{}, fmt.Errorf("failed to create tenant app: %w", err)
	}
	return app, nil
}

const sqlGetTenantAppByAgentID = `
SELECT id, agent_id, app_id, name, phone_number, template_messaging_enabled, live_status, healthy_status, created_at, updated_at
FROM tenant_apps
WHERE agent_id = $1
`

// GetTenantAppByAgentID retrieves the app provisioned for an agent
func (s *Store) GetTenantAppByAgentID(ctx context.Context, agentID uuid.UUID) (TenantApp, error) {
	var app TenantApp
	err := s.db.GetContext(ctx, &app, sqlGetTenantAppByAgentID, agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TenantApp{}, ErrNotFound
		}
		return TenantApp{}, fmt.Errorf("failed to get tenant app: %w", err)
	}
	return app, nil
}

const sqlListTenantApps = `
SELECT id, agent_id, app_id, name, phone_number, template_messaging_enabled, live_status, healthy_status, created_at, updated_at
FROM tenant_apps
ORDER BY created_at DESC
`

// ListTenantApps retrieves all locally recorded apps
func (s *Store) ListTenantApps(ctx context.Context) ([]TenantApp, error) {
	var apps []TenantApp
	err := s.db.SelectContext(ctx, &apps, sqlListTenantApps)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant apps: %w", err)
	}
	return apps, nil
}

const sqlUpdateTenantAppPhone = `
UPDATE tenant_apps
SET phone_number = $2,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1
RETURNING id, agent_id, app_id, name, phone_number, template_messaging_enabled, live_status, healthy_status, created_at, updated_at
`

// UpdateTenantAppPhone records the phone number attached to an app
func (s *Store) UpdateTenantAppPhone(ctx context.Context, id uuid.UUID, phoneNumber string) (TenantApp, error) {
	var app TenantApp
	err := s.db.GetContext(ctx, &app, sqlUpdateTenantAppPhone, id, phoneNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TenantApp{}, ErrNotFound
		}
		return TenantApp{}, fmt.Errorf("failed to update tenant app phone: %w", err)
	}
	return app, nil
}

const sqlUpdateTenantAppHealth = `
UPDATE tenant_apps
SET live_status = $2,
    healthy_status = $3,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1
`

// UpdateTenantAppHealth records the gateway's live/healthy view of an app
func (s *Store) UpdateTenantAppHealth(ctx context.Context, id uuid.UUID, live, healthy bool) error {
	res, err := s.db.ExecContext(ctx, sqlUpdateTenantAppHealth, id, live, healthy)
	if err != nil {
		return fmt.Errorf("failed to update tenant app health: %w", err)
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

const sqlGetLeadByID = `
SELECT id, agent_id, name, phone, created_at
FROM leads
WHERE id = $1
`

// GetLeadByID retrieves a lead profile
func (s *Store) GetLeadByID(ctx context.Context, leadID uuid.UUID) (Lead, error) {
	var lead Lead
	err := s.db.GetContext(ctx, &lead, sqlGetLeadByID, leadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}
