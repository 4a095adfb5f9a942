package processor

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"partner-server/internal/gateway"
	"partner-server/internal/observability"
	"partner-server/internal/store"

	"github.com/google/uuid"
)

const (
	appNameMinLength = 3
	appNameMaxLength = 50
)

var appNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// AppStore defines the database operations required by ProvisioningProcessor
type AppStore interface {
	CreateTenantApp(ctx context.Context, params store.CreateTenantAppParams) (store.TenantApp, error)
	GetTenantAppByAgentID(ctx context.Context, agentID uuid.UUID) (store.TenantApp, error)
	ListTenantApps(ctx context.Context) ([]store.TenantApp, error)
	UpdateTenantAppPhone(ctx context.Context, id uuid.UUID, phoneNumber string) (store.TenantApp, error)
	UpdateTenantAppHealth(ctx context.Context, id uuid.UUID, live, healthy bool) error
}

// AppGateway defines the partner gateway operations required by
// ProvisioningProcessor
type AppGateway interface {
	CreateApp(ctx context.Context, partnerToken, name string, templateMessagingEnabled bool) (gateway.App, error)
	ListApps(ctx context.Context, partnerToken string) ([]gateway.App, error)
	RegisterPhone(ctx context.Context, partnerToken, appID, phoneNumber string) error
	GetAppAccessToken(ctx context.Context, partnerToken, appID string) (string, error)
}

// TokenSource supplies the account-level partner token.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

type ProvisioningProcessor struct {
	store   AppStore
	gateway AppGateway
	tokens  TokenSource
	logger  *observability.Logger
}

func New(s AppStore, g AppGateway, tokens TokenSource, logger *observability.Logger) ProvisioningProcessor {
	return ProvisioningProcessor{
		store:   s,
		gateway: g,
		tokens:  tokens,
		logger:  logger,
	}
}

// CreateApp provisions a gateway app for an agent and records it locally.
// One app per agent; a second provisioning attempt conflicts locally before
// any network call.
func (p ProvisioningProcessor) CreateApp(ctx context.Context, agentID uuid.UUID, name string, templateMessagingEnabled bool) (store.TenantApp, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "agent_id", Value: agentID},
		observability.Field{Key: "app_name", Value: name},
	)

	if err := validateAppName(name); err != nil {
		return store.TenantApp{}, err
	}

	if _, err := p.store.GetTenantAppByAgentID(ctx, agentID); err == nil {
		return store.TenantApp{}, &gateway.ConflictError{Resource: "tenant app"}
	} else if !errors.Is(err, store.ErrNotFound) {
		p.logger.Error(ctx, "failed to check existing tenant app", err)
		return store.TenantApp{}, fmt.Errorf("failed to check existing tenant app: %w", err)
	}

	token, err := p.tokens.GetToken(ctx)
	if err != nil {
		return store.TenantApp{}, err
	}

	created, err := p.gateway.CreateApp(ctx, token, name, templateMessagingEnabled)
	if err != nil {
		p.logger.Error(ctx, "failed to create gateway app", err)
		return store.TenantApp{}, err
	}

	app, err := p.store.CreateTenantApp(ctx, store.CreateTenantAppParams{
		AgentID:                  agentID,
		AppID:                    created.ID,
		Name:                     created.Name,
		TemplateMessagingEnabled: created.TemplateMessagingEnabled,
		LiveStatus:               created.Live,
		HealthyStatus:            created.Healthy,
	})
	if err != nil {
		// The gateway app exists but we lost the local record. Surface the
		// error; the next ListApps reconciliation will show the orphan.
		p.logger.Error(ctx, "failed to record provisioned app", err)
		return store.TenantApp{}, fmt.Errorf("failed to record provisioned app: %w", err)
	}

	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "app_id", Value: app.AppID},
	), "provisioned gateway app")
	return app, nil
}

// ListApps returns every app under the partner account and refreshes the
// locally recorded live/healthy flags from the gateway's view.
func (p ProvisioningProcessor) ListApps(ctx context.Context) ([]gateway.App, error) {
	token, err := p.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	apps, err := p.gateway.ListApps(ctx, token)
	if err != nil {
		p.logger.Error(ctx, "failed to list gateway apps", err)
		return nil, err
	}

	p.syncAppHealth(ctx, apps)
	return apps, nil
}

// syncAppHealth is best effort; a stale local flag is corrected on the next
// listing.
func (p ProvisioningProcessor) syncAppHealth(ctx context.Context, apps []gateway.App) {
	local, err := p.store.ListTenantApps(ctx)
	if err != nil {
		p.logger.Error(ctx, "failed to load local apps for health sync", err)
		return
	}

	byAppID := make(map[string]gateway.App, len(apps))
	for _, app := range apps {
		byAppID[app.ID] = app
	}

	for _, record := range local {
		app, ok := byAppID[record.AppID]
		if !ok {
			continue
		}
		if app.Live == record.LiveStatus && app.Healthy == record.HealthyStatus {
			continue
		}
		if err := p.store.UpdateTenantAppHealth(ctx, record.ID, app.Live, app.Healthy); err != nil {
			p.logger.Error(ctx, "failed to update app health", err)
		}
	}
}

// RegisterPhone attaches a phone number to the agent's app.
func (p ProvisioningProcessor) RegisterPhone(ctx context.Context, agentID uuid.UUID, phoneNumber string) (store.TenantApp, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "agent_id", Value: agentID},
	)

	if phoneNumber == "" {
		return store.TenantApp{}, &gateway.ValidationError{Field: "phone_number", Reason: "must not be empty"}
	}

	app, err := p.store.GetTenantAppByAgentID(ctx, agentID)
	if err != nil {
		return store.TenantApp{}, err
	}

	token, err := p.tokens.GetToken(ctx)
	if err != nil {
		return store.TenantApp{}, err
	}

	if err := p.gateway.RegisterPhone(ctx, token, app.AppID, phoneNumber); err != nil {
		p.logger.Error(ctx, "failed to register phone", err)
		return store.TenantApp{}, err
	}

	updated, err := p.store.UpdateTenantAppPhone(ctx, app.ID, phoneNumber)
	if err != nil {
		p.logger.Error(ctx, "failed to record registered phone", err)
		return store.TenantApp{}, fmt.Errorf("failed to record registered phone: %w", err)
	}
	return updated, nil
}

// AppAccessToken exchanges the partner token for a per-app token. Tokens are
// short-lived and fetched fresh on every call.
func (p ProvisioningProcessor) AppAccessToken(ctx context.Context, appID string) (string, error) {
	token, err := p.tokens.GetToken(ctx)
	if err != nil {
		return "", err
	}

	appToken, err := p.gateway.GetAppAccessToken(ctx, token, appID)
	if err != nil {
		p.logger.Error(observability.WithFields(ctx,
			observability.Field{Key: "app_id", Value: appID},
		), "failed to exchange app token", err)
		return "", err
	}
	return appToken, nil
}

// AppForAgent resolves the locally recorded app for an agent.
func (p ProvisioningProcessor) AppForAgent(ctx context.Context, agentID uuid.UUID) (store.TenantApp, error) {
	return p.store.GetTenantAppByAgentID(ctx, agentID)
}

func validateAppName(name string) error {
	if len(name) < appNameMinLength || len(name) > appNameMaxLength {
		return &gateway.ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("must be between %d and %d characters", appNameMinLength, appNameMaxLength),
		}
	}
	if !appNamePattern.MatchString(name) {
		return &gateway.ValidationError{
			Field:  "name",
			Reason: "must contain only letters, digits, underscores, and hyphens",
		}
	}
	return nil
}
