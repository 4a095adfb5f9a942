package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrCallbackBillingNotEnabled marks the specific v3 rejection that the
// dispatcher resolves by falling back to the v2 protocol.
var ErrCallbackBillingNotEnabled = errors.New("callback billing not enabled for app")

type sendTemplateV3Request struct {
	Phone        string            `json:"phone"`
	TemplateName string            `json:"templateName"`
	LanguageCode string            `json:"languageCode"`
	Parameters   map[string]string `json:"parameters"`
}

type sendTemplateV2Request struct {
	Phone        string   `json:"phone"`
	TemplateName string   `json:"templateName"`
	LanguageCode string   `json:"languageCode"`
	Parameters   []string `json:"parameters"`
}

type sendMessageResponse struct {
	MessageID string `json:"messageId"`
}

// SendTemplateMessageV3 sends a template message over the current protocol
// version with named parameters. A "callback billing" rejection is surfaced
// as ErrCallbackBillingNotEnabled so callers can fall back to v2.
func (c *Client) SendTemplateMessageV3(ctx context.Context, appToken, appID, phone, templateName, languageCode string, params map[string]string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/api/v3/messages/template", c.baseURL, appID)

	var resp sendMessageResponse
	err := c.withRetry(ctx, "send message v3", func() error {
		return c.doJSON(ctx, "send message v3", http.MethodPost, endpoint, appToken, sendTemplateV3Request{
			Phone:        phone,
			TemplateName: templateName,
			LanguageCode: languageCode,
			Parameters:   params,
		}, &resp)
	})
	if err != nil {
		var ext *ExternalServiceError
		if errors.As(err, &ext) && strings.Contains(strings.ToLower(ext.GatewayMessage), "callback billing") {
			return "", fmt.Errorf("%w: %s", ErrCallbackBillingNotEnabled, ext.GatewayMessage)
		}
		return "", err
	}
	return resp.MessageID, nil
}

// SendTemplateMessageV2 sends a template message over the legacy protocol
// version with positional parameters.
func (c *Client) SendTemplateMessageV2(ctx context.Context, appToken, appID, phone, templateName, languageCode string, params []string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/api/v2/messages/template", c.baseURL, appID)

	var resp sendMessageResponse
	err := c.withRetry(ctx, "send message v2", func() error {
		return c.doJSON(ctx, "send message v2", http.MethodPost, endpoint, appToken, sendTemplateV2Request{
			Phone:        phone,
			TemplateName: templateName,
			LanguageCode: languageCode,
			Parameters:   params,
		}, &resp)
	})
	if err != nil {
		return "", err
	}
	return resp.MessageID, nil
}
