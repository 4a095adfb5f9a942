package gateway

import "fmt"

// Machine-readable error codes returned to API clients. Raw transport errors
// are normalized into this taxonomy before they cross a component boundary.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeConflict         = "CONFLICT"
	CodeAuthentication   = "AUTHENTICATION_ERROR"
	CodeExternalService  = "EXTERNAL_SERVICE_ERROR"
	CodeTransientNetwork = "TRANSIENT_NETWORK_ERROR"
	CodeConfiguration    = "CONFIGURATION_ERROR"
)

// Coder is implemented by every taxonomy member.
type Coder interface {
	error
	Code() string
}

// ValidationError reports bad caller input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Code() string { return CodeValidation }

// ConflictError reports a duplicate resource (gateway 409).
type ConflictError struct {
	Resource string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e *ConflictError) Code() string { return CodeConflict }

// AuthenticationError reports a credential or token failure against the
// gateway, including malformed login responses.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("gateway authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Code() string { return CodeAuthentication }

// ExternalServiceError reports a non-retryable gateway rejection (4xx other
// than auth/conflict, or a rate limit).
type ExternalServiceError struct {
	Operation      string
	StatusCode     int
	GatewayMessage string
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("gateway rejected %s (status %d): %s", e.Operation, e.StatusCode, e.GatewayMessage)
}

func (e *ExternalServiceError) Code() string { return CodeExternalService }

// TransientNetworkError reports a timeout, connection failure, or gateway
// 5xx. Retried with backoff up to a fixed cap, then surfaced.
type TransientNetworkError struct {
	Operation  string
	StatusCode int // zero when the request never completed
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient gateway failure on %s (status %d)", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("network failure on %s: %v", e.Operation, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

func (e *TransientNetworkError) Code() string { return CodeTransientNetwork }

// ConfigurationError reports a webhook subscription setup failure after
// retries are exhausted.
type ConfigurationError struct {
	AppID  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("webhook configuration failed for app %s: %s", e.AppID, e.Reason)
}

func (e *ConfigurationError) Code() string { return CodeConfiguration }
