package gateway

import (
	"context"
	"fmt"
	"net/http"
)

// WebhookProtocolVersion is the latest subscription protocol version.
const WebhookProtocolVersion = "v3"

// Subscription is a gateway-side webhook registration.
type Subscription struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	EventModes []string `json:"eventModes"`
	Version    string   `json:"version"`
	Tag        string   `json:"tag"`
	Active     bool     `json:"active"`
}

type createSubscriptionRequest struct {
	URL        string   `json:"url"`
	EventModes []string `json:"eventModes"`
	Version    string   `json:"version"`
	Tag        string   `json:"tag"`
}

// CreateWebhook registers a delivery webhook on an app.
func (c *Client) CreateWebhook(ctx context.Context, appToken, appID, url, tag string, eventModes []string) (Subscription, error) {
	endpoint := fmt.Sprintf("%s/%s/api/v1/webhooks", c.baseURL, appID)

	var sub Subscription
	err := c.withRetry(ctx, "create webhook", func() error {
		return c.doJSON(ctx, "create webhook", http.MethodPost, endpoint, appToken, createSubscriptionRequest{
			URL:        url,
			EventModes: eventModes,
			Version:    WebhookProtocolVersion,
			Tag:        tag,
		}, &sub)
	})
	if err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

type listSubscriptionsResponse struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

// ListWebhooks returns the app's active webhook subscriptions.
func (c *Client) ListWebhooks(ctx context.Context, appToken, appID string) ([]Subscription, error) {
	endpoint := fmt.Sprintf("%s/%s/api/v1/webhooks", c.baseURL, appID)

	var resp listSubscriptionsResponse
	err := c.withRetry(ctx, "list webhooks", func() error {
		return c.doJSON(ctx, "list webhooks", http.MethodGet, endpoint, appToken, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Subscriptions, nil
}

// DeleteWebhook removes a webhook subscription.
func (c *Client) DeleteWebhook(ctx context.Context, appToken, appID, subscriptionID string) error {
	endpoint := fmt.Sprintf("%s/%s/api/v1/webhooks/%s", c.baseURL, appID, subscriptionID)

	return c.withRetry(ctx, "delete webhook", func() error {
		return c.doJSON(ctx, "delete webhook", http.MethodDelete, endpoint, appToken, nil, nil)
	})
}
