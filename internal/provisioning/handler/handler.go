package handler

import (
	"net/http"

	"partner-server/internal/apierrors"
	"partner-server/internal/auth"
	"partner-server/internal/observability"
	"partner-server/internal/provisioning/processor"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	processor processor.ProvisioningProcessor
	logger    *observability.Logger
}

func New(processor processor.ProvisioningProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// CreateAppRequest represents the HTTP request for provisioning an app
type CreateAppRequest struct {
	Name                     string `json:"name" binding:"required"`
	TemplateMessagingEnabled bool   `json:"template_messaging_enabled"`
}

// RegisterPhoneRequest represents the HTTP request for attaching a phone
// number
type RegisterPhoneRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// HandleCreateApp handles POST /api/v1/apps
func (h *Handler) HandleCreateApp(c *gin.Context) {
	ctx := c.Request.Context()

	agentID, ok := auth.AgentID(c)
	if !ok {
		h.logger.Error(ctx, "agent ID not found in context", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	app, err := h.processor.CreateApp(ctx, agentID, req.Name, req.TemplateMessagingEnabled)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

// HandleListApps handles GET /api/v1/apps
func (h *Handler) HandleListApps(c *gin.Context) {
	ctx := c.Request.Context()

	apps, err := h.processor.ListApps(ctx)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"apps": apps})
}

// HandleRegisterPhone handles POST /api/v1/apps/phone
func (h *Handler) HandleRegisterPhone(c *gin.Context) {
	ctx := c.Request.Context()

	agentID, ok := auth.AgentID(c)
	if !ok {
		h.logger.Error(ctx, "agent ID not found in context", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req RegisterPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	app, err := h.processor.RegisterPhone(ctx, agentID, req.PhoneNumber)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}
