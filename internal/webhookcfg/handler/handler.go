package handler

import (
	"net/http"

	"partner-server/internal/apierrors"
	"partner-server/internal/observability"
	"partner-server/internal/webhookcfg/processor"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	processor  processor.WebhookProcessor
	defaultURL string
	logger     *observability.Logger
}

func New(processor processor.WebhookProcessor, defaultURL string, logger *observability.Logger) Handler {
	return Handler{
		processor:  processor,
		defaultURL: defaultURL,
		logger:     logger,
	}
}

// ConfigureWebhookRequest represents the HTTP request for registering a
// webhook. An omitted webhook_url falls back to the configured callback URL.
type ConfigureWebhookRequest struct {
	WebhookURL string `json:"webhook_url" binding:"omitempty,url"`
	Replace    bool   `json:"replace"`
}

// HandleConfigureWebhook handles POST /api/v1/apps/:app_id/webhooks
func (h *Handler) HandleConfigureWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	appID := c.Param("app_id")

	var req ConfigureWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	url := req.WebhookURL
	if url == "" {
		url = h.defaultURL
	}

	configure := h.processor.Configure
	if req.Replace {
		configure = h.processor.Reconfigure
	}

	sub, err := configure(ctx, appID, url)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// HandleListWebhooks handles GET /api/v1/apps/:app_id/webhooks
func (h *Handler) HandleListWebhooks(c *gin.Context) {
	ctx := c.Request.Context()

	subs, err := h.processor.List(ctx, c.Param("app_id"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// HandleDeleteWebhook handles DELETE /api/v1/apps/:app_id/webhooks/:subscription_id
func (h *Handler) HandleDeleteWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.processor.Delete(ctx, c.Param("app_id"), c.Param("subscription_id")); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
