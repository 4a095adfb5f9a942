package gateway

import (
	"context"
	"fmt"
	"net/http"
)

// App is a gateway-side entity representing one tenant's messaging
// integration.
type App struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	PhoneNumber              string `json:"phoneNumber"`
	TemplateMessagingEnabled bool   `json:"templateMessagingEnabled"`
	Live                     bool   `json:"live"`
	Healthy                  bool   `json:"healthy"`
}

type createAppRequest struct {
	Name                     string `json:"name"`
	TemplateMessagingEnabled bool   `json:"templateMessagingEnabled"`
}

// CreateApp provisions a new gateway app under the partner account.
func (c *Client) CreateApp(ctx context.Context, partnerToken, name string, templateMessagingEnabled bool) (App, error) {
	url := fmt.Sprintf("%s/api/v1/partner/apps", c.baseURL)

	var app App
	err := c.withRetry(ctx, "create app", func() error {
		return c.doJSON(ctx, "create app", http.MethodPost, url, partnerToken, createAppRequest{
			Name:                     name,
			TemplateMessagingEnabled: templateMessagingEnabled,
		}, &app)
	})
	if err != nil {
		return App{}, err
	}
	return app, nil
}

type listAppsResponse struct {
	Apps []App `json:"apps"`
}

// ListApps returns every app under the partner account.
func (c *Client) ListApps(ctx context.Context, partnerToken string) ([]App, error) {
	url := fmt.Sprintf("%s/api/v1/partner/apps", c.baseURL)

	var resp listAppsResponse
	err := c.withRetry(ctx, "list apps", func() error {
		return c.doJSON(ctx, "list apps", http.MethodGet, url, partnerToken, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Apps, nil
}

type registerPhoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// RegisterPhone attaches a phone number to an app. A gateway-side duplicate
// rejection surfaces as ExternalServiceError.
func (c *Client) RegisterPhone(ctx context.Context, partnerToken, appID, phoneNumber string) error {
	url := fmt.Sprintf("%s/api/v1/partner/apps/%s/phone", c.baseURL, appID)

	return c.withRetry(ctx, "register phone", func() error {
		return c.doJSON(ctx, "register phone", http.MethodPost, url, partnerToken, registerPhoneRequest{
			PhoneNumber: phoneNumber,
		}, nil)
	})
}

type appTokenResponse struct {
	Token string `json:"token"`
}

// GetAppAccessToken exchanges the partner token for a short-lived per-app
// token. Callers fetch a fresh one per operation.
func (c *Client) GetAppAccessToken(ctx context.Context, partnerToken, appID string) (string, error) {
	url := fmt.Sprintf("%s/api/v1/partner/apps/%s/token", c.baseURL, appID)

	var resp appTokenResponse
	err := c.withRetry(ctx, "app token exchange", func() error {
		return c.doJSON(ctx, "app token exchange", http.MethodGet, url, partnerToken, nil, &resp)
	})
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &AuthenticationError{Reason: "token exchange response carried no token"}
	}
	return resp.Token, nil
}
