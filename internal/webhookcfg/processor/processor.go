package processor

import (
	"context"
	"fmt"
	"time"

	"partner-server/internal/gateway"
	"partner-server/internal/observability"
)

// eventModes is the full delivery/status event set every subscription asks
// for. The inbound receiver filters what it does not care about.
var eventModes = []string{
	"message",
	"message_status",
	"template_status",
	"account_alert",
}

// WebhookGateway defines the subscription operations required by
// WebhookProcessor
type WebhookGateway interface {
	CreateWebhook(ctx context.Context, appToken, appID, url, tag string, eventModes []string) (gateway.Subscription, error)
	ListWebhooks(ctx context.Context, appToken, appID string) ([]gateway.Subscription, error)
	DeleteWebhook(ctx context.Context, appToken, appID, subscriptionID string) error
}

// AppTokenSource exchanges the partner token for a per-app token.
type AppTokenSource interface {
	AppAccessToken(ctx context.Context, appID string) (string, error)
}

type WebhookProcessor struct {
	gateway WebhookGateway
	tokens  AppTokenSource
	logger  *observability.Logger
	now     func() time.Time
}

func New(g WebhookGateway, tokens AppTokenSource, logger *observability.Logger) WebhookProcessor {
	return WebhookProcessor{
		gateway: g,
		tokens:  tokens,
		logger:  logger,
		now:     time.Now,
	}
}

// Configure registers a delivery webhook on an app. The tag is derived from
// the app id and the current clock so repeated configuration attempts never
// collide. Transport retries live in the gateway client; a failure that
// survives them becomes a ConfigurationError.
func (p WebhookProcessor) Configure(ctx context.Context, appID, webhookURL string) (gateway.Subscription, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "app_id", Value: appID},
		observability.Field{Key: "webhook_url", Value: webhookURL},
	)

	if webhookURL == "" {
		return gateway.Subscription{}, &gateway.ValidationError{Field: "webhook_url", Reason: "must not be empty"}
	}

	appToken, err := p.tokens.AppAccessToken(ctx, appID)
	if err != nil {
		return gateway.Subscription{}, err
	}

	tag := fmt.Sprintf("%s-%d", appID, p.now().UnixNano())
	sub, err := p.gateway.CreateWebhook(ctx, appToken, appID, webhookURL, tag, eventModes)
	if err != nil {
		p.logger.Error(ctx, "failed to create webhook subscription", err)
		return gateway.Subscription{}, &gateway.ConfigurationError{
			AppID:  appID,
			Reason: err.Error(),
		}
	}

	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "subscription_id", Value: sub.ID},
	), "configured webhook subscription")
	return sub, nil
}

// List returns the app's current subscriptions.
func (p WebhookProcessor) List(ctx context.Context, appID string) ([]gateway.Subscription, error) {
	appToken, err := p.tokens.AppAccessToken(ctx, appID)
	if err != nil {
		return nil, err
	}

	subs, err := p.gateway.ListWebhooks(ctx, appToken, appID)
	if err != nil {
		p.logger.Error(ctx, "failed to list webhook subscriptions", err)
		return nil, err
	}
	return subs, nil
}

// Delete removes one subscription.
func (p WebhookProcessor) Delete(ctx context.Context, appID, subscriptionID string) error {
	appToken, err := p.tokens.AppAccessToken(ctx, appID)
	if err != nil {
		return err
	}

	if err := p.gateway.DeleteWebhook(ctx, appToken, appID, subscriptionID); err != nil {
		p.logger.Error(observability.WithFields(ctx,
			observability.Field{Key: "subscription_id", Value: subscriptionID},
		), "failed to delete webhook subscription", err)
		return err
	}
	return nil
}

// Reconfigure migrates an app to a new callback URL. Subscriptions pointing
// at a different URL are deleted first so the gateway never delivers each
// event twice.
func (p WebhookProcessor) Reconfigure(ctx context.Context, appID, webhookURL string) (gateway.Subscription, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "app_id", Value: appID},
	)

	if webhookURL == "" {
		return gateway.Subscription{}, &gateway.ValidationError{Field: "webhook_url", Reason: "must not be empty"}
	}

	appToken, err := p.tokens.AppAccessToken(ctx, appID)
	if err != nil {
		return gateway.Subscription{}, err
	}

	subs, err := p.gateway.ListWebhooks(ctx, appToken, appID)
	if err != nil {
		p.logger.Error(ctx, "failed to list webhook subscriptions", err)
		return gateway.Subscription{}, err
	}

	for _, sub := range subs {
		if sub.URL == webhookURL {
			continue
		}
		if err := p.gateway.DeleteWebhook(ctx, appToken, appID, sub.ID); err != nil {
			p.logger.Error(observability.WithFields(ctx,
				observability.Field{Key: "subscription_id", Value: sub.ID},
			), "failed to delete stale webhook subscription", err)
			return gateway.Subscription{}, err
		}
	}

	return p.Configure(ctx, appID, webhookURL)
}
