package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"partner-server/internal/auth"
	"partner-server/internal/cache"
	"partner-server/internal/config"
	"partner-server/internal/events"
	"partner-server/internal/gateway"
	"partner-server/internal/observability"
	"partner-server/internal/partnerauth"
	"partner-server/internal/store"
	"partner-server/internal/vault"

	campaignHandler "partner-server/internal/campaigns/handler"
	campaignProcessor "partner-server/internal/campaigns/processor"
	kafkaClient "partner-server/internal/clients/kafka"
	dispatchHandler "partner-server/internal/dispatch/handler"
	dispatchProcessor "partner-server/internal/dispatch/processor"
	provisioningHandler "partner-server/internal/provisioning/handler"
	provisioningProcessor "partner-server/internal/provisioning/processor"
	templateHandler "partner-server/internal/templates/handler"
	templateProcessor "partner-server/internal/templates/processor"
	webhookHandler "partner-server/internal/webhookcfg/handler"
	webhookProcessor "partner-server/internal/webhookcfg/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger

	// Auth
	AuthMiddleware *auth.Middleware

	// Handlers
	ProvisioningHandler provisioningHandler.Handler
	WebhookHandler      webhookHandler.Handler
	TemplateHandler     templateHandler.Handler
	DispatchHandler     dispatchHandler.Handler
	CampaignHandler     campaignHandler.Handler

	// Kafka producer (for cleanup)
	KafkaProducer *kafkaClient.Producer
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	var err error
	deps.Store, err = store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize credential vault
	credentialVault, err := vault.New(cfg.Gateway.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential vault: %w", err)
	}

	// Initialize partner gateway client and token manager
	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, logger)
	partnerAuth := partnerauth.NewManager(
		&deps.Store,
		gatewayClient,
		credentialVault,
		cache.NewMemory(),
		logger,
		cfg.Gateway.PartnerEmail,
		cfg.Gateway.PartnerPassword,
	)

	// Initialize Kafka producer for campaign events
	deps.KafkaProducer = kafkaClient.NewProducer(kafkaClient.ProducerConfig{
		Brokers: strings.Split(cfg.Kafka.Brokers, ","),
		Topic:   cfg.Kafka.Topic,
	}, logger)
	eventDispatcher := events.NewEventDispatcher(deps.KafkaProducer, logger)

	// Initialize auth middleware
	deps.AuthMiddleware = auth.NewMiddleware(cfg.Auth.JWTSecret, logger)

	// Initialize provisioning processor and handler. The provisioning
	// processor doubles as the per-app token source for the other domains.
	provisioningProc := provisioningProcessor.New(&deps.Store, gatewayClient, partnerAuth, logger)
	deps.ProvisioningHandler = provisioningHandler.New(provisioningProc, logger)

	// Initialize webhook configuration processor and handler
	webhookProc := webhookProcessor.New(gatewayClient, provisioningProc, logger)
	deps.WebhookHandler = webhookHandler.New(webhookProc, cfg.Gateway.WebhookCallbackURL, logger)

	// Initialize template lifecycle processor and handler
	templateProc := templateProcessor.New(&deps.Store, gatewayClient, provisioningProc, logger)
	deps.TemplateHandler = templateHandler.New(templateProc, logger)

	// Initialize message dispatch processor and handler
	dispatchProc := dispatchProcessor.New(&deps.Store, gatewayClient, provisioningProc, logger, cfg.Gateway.DefaultCountryCode)
	deps.DispatchHandler = dispatchHandler.New(dispatchProc, logger)

	// Initialize campaign processor and handler
	campaignProc := campaignProcessor.New(&deps.Store, eventDispatcher, logger)
	deps.CampaignHandler = campaignHandler.New(campaignProc, logger)

	return deps, nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if d.KafkaProducer != nil {
		d.KafkaProducer.Close()
	}
}
