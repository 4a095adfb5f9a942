package gateway

import (
	"context"
	"fmt"
	"net/http"
)

// Gateway-side template approval states.
const (
	TemplateStatusPending  = "PENDING"
	TemplateStatusApproved = "APPROVED"
	TemplateStatusRejected = "REJECTED"
)

// TemplateSubmission is a template sent for gateway approval.
type TemplateSubmission struct {
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Content      string   `json:"content"`
	Params       []string `json:"params"`
	LanguageCode string   `json:"languageCode"`
}

type submitTemplateResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SubmitTemplate submits a template for approval and returns the gateway's
// template id.
func (c *Client) SubmitTemplate(ctx context.Context, appToken, appID string, submission TemplateSubmission) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/api/v1/templates", c.baseURL, appID)

	var resp submitTemplateResponse
	err := c.withRetry(ctx, "submit template", func() error {
		return c.doJSON(ctx, "submit template", http.MethodPost, endpoint, appToken, submission, &resp)
	})
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &ExternalServiceError{
			Operation:      "submit template",
			GatewayMessage: "submission response carried no template id",
		}
	}
	return resp.ID, nil
}

// TemplateStatus is the gateway's current view of a submitted template.
type TemplateStatus struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason"`
}

// GetTemplateStatus fetches the current approval status of one template.
func (c *Client) GetTemplateStatus(ctx context.Context, appToken, appID, gatewayTemplateID string) (TemplateStatus, error) {
	endpoint := fmt.Sprintf("%s/%s/api/v1/templates/%s", c.baseURL, appID, gatewayTemplateID)

	var status TemplateStatus
	err := c.withRetry(ctx, "template status", func() error {
		return c.doJSON(ctx, "template status", http.MethodGet, endpoint, appToken, nil, &status)
	})
	if err != nil {
		return TemplateStatus{}, err
	}
	return status, nil
}
