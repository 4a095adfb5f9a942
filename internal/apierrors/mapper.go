package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"partner-server/internal/gateway"
	"partner-server/internal/store"
	"partner-server/internal/vault"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// RespondWithError converts domain errors to HTTP responses. Handlers call
// this instead of mapping status codes themselves so every endpoint speaks
// the same error dialect.
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var validationErr *gateway.ValidationError
	if errors.As(err, &validationErr) {
		respond(c, http.StatusBadRequest, gateway.CodeValidation, validationErr.Error())
		return
	}

	var conflictErr *gateway.ConflictError
	if errors.As(err, &conflictErr) {
		respond(c, http.StatusConflict, gateway.CodeConflict, conflictErr.Error())
		return
	}

	var authErr *gateway.AuthenticationError
	if errors.As(err, &authErr) {
		respond(c, http.StatusUnauthorized, gateway.CodeAuthentication, "gateway rejected the partner credentials")
		return
	}

	var configErr *gateway.ConfigurationError
	if errors.As(err, &configErr) {
		respond(c, http.StatusBadGateway, gateway.CodeConfiguration, configErr.Error())
		return
	}

	var transientErr *gateway.TransientNetworkError
	if errors.As(err, &transientErr) {
		respond(c, http.StatusGatewayTimeout, gateway.CodeTransientNetwork, "gateway is unreachable; retries exhausted")
		return
	}

	var externalErr *gateway.ExternalServiceError
	if errors.As(err, &externalErr) {
		respond(c, http.StatusBadGateway, gateway.CodeExternalService, externalErr.Error())
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		NotFound(c, "Resource not found")
		return
	}

	// Vault failures mean a misconfigured key or corrupt row. Neither is
	// actionable by the caller.
	if errors.Is(err, vault.ErrMissingKey) || errors.Is(err, vault.ErrEncryption) || errors.Is(err, vault.ErrDecryption) {
		InternalError(c, err)
		return
	}

	InternalError(c, err)
}

// RespondWithValidationError handles Gin binding failures.
func RespondWithValidationError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	ctx := c.Request.Context()

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		logger.Error(ctx, "validation failed", err)
		respond(c, http.StatusBadRequest, gateway.CodeValidation, buildValidationMessage(validationErrs))
		return
	}

	logger.Error(ctx, "request binding failed", err)
	respond(c, http.StatusBadRequest, gateway.CodeValidation, "Invalid request format. Please check your JSON syntax.")
}

// buildValidationMessage creates a user-friendly message from validation errors
func buildValidationMessage(validationErrs validator.ValidationErrors) string {
	if len(validationErrs) == 0 {
		return "Invalid request"
	}

	var messages []string
	for _, fieldErr := range validationErrs {
		messages = append(messages, getValidationMessage(fieldErr))
	}
	if len(messages) == 1 {
		return messages[0]
	}
	return "Validation failed: " + strings.Join(messages, "; ")
}

// getValidationMessage returns a human-readable message for a validation error
func getValidationMessage(fieldErr validator.FieldError) string {
	field := fieldErr.Field()

	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fieldErr.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fieldErr.Tag())
	}
}
