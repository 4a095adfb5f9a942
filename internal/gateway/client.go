package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"partner-server/internal/observability"
)

const (
	requestTimeout = 30 * time.Second
	clientName     = "partner-server"

	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
)

// Client speaks the partner gateway HTTP API. All requests carry an explicit
// timeout; transport failures are normalized into the error taxonomy before
// they leave this package.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, logger *observability.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// errorBody is the gateway's error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}

// doJSON performs one request and normalizes the outcome. out may be nil for
// operations without a response body.
func (c *Client) doJSON(ctx context.Context, operation, method, url, token string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client", clientName)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are retryable.
		return &TransientNetworkError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientNetworkError{Operation: operation, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", operation, err)
		}
		return nil
	}

	var gwErr errorBody
	_ = json.Unmarshal(respBytes, &gwErr)

	return c.normalizeStatus(operation, resp.StatusCode, gwErr.text())
}

// normalizeStatus maps an HTTP failure status into the taxonomy.
func (c *Client) normalizeStatus(operation string, status int, message string) error {
	switch {
	case status == http.StatusConflict:
		return &ConflictError{Resource: message}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthenticationError{Reason: message}
	case status >= 500:
		return &TransientNetworkError{Operation: operation, StatusCode: status}
	default:
		// Includes 429: rate-limit handling is deliberately not retried at
		// this layer; campaign pacing keeps us under the gateway limits.
		return &ExternalServiceError{
			Operation:      operation,
			StatusCode:     status,
			GatewayMessage: message,
		}
	}
}

// withRetry runs fn up to maxAttempts times, backing off baseBackoff*2^n
// between attempts. Only transient failures are retried; 4xx rejections
// surface immediately.
func (c *Client) withRetry(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseBackoff * (1 << attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &TransientNetworkError{Operation: operation, Err: ctx.Err()}
			}
		}

		err = fn()
		if err == nil {
			return nil
		}

		var transient *TransientNetworkError
		if !errors.As(err, &transient) {
			return err
		}

		c.logger.InfoWithError(
			observability.WithFields(ctx,
				observability.Field{Key: "operation", Value: operation},
				observability.Field{Key: "attempt", Value: attempt + 1},
			),
			"retrying transient gateway failure", err)
	}
	return err
}
