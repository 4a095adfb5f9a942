package handler

import (
	"context"
	"net/http"

	"partner-server/internal/apierrors"
	"partner-server/internal/auth"
	"partner-server/internal/campaigns/processor"
	"partner-server/internal/observability"
	"partner-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	processor processor.CampaignProcessor
	logger    *observability.Logger
}

func New(processor processor.CampaignProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// CampaignRecipientRequest represents one recipient in an HTTP request
type CampaignRecipientRequest struct {
	LeadID string            `json:"lead_id" binding:"required,uuid"`
	Params map[string]string `json:"params"`
}

// CreateCampaignRequest represents the HTTP request for creating a campaign
type CreateCampaignRequest struct {
	TemplateID string                     `json:"template_id" binding:"required,uuid"`
	Recipients []CampaignRecipientRequest `json:"recipients" binding:"required,min=1,dive"`
}

// HandleCreateCampaign handles POST /api/v1/campaigns
func (h *Handler) HandleCreateCampaign(c *gin.Context) {
	ctx := c.Request.Context()

	agentID, ok := auth.AgentID(c)
	if !ok {
		h.logger.Error(ctx, "agent ID not found in context", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	templateID, err := uuid.Parse(req.TemplateID)
	if err != nil {
		apierrors.BadRequest(c, "INVALID_TEMPLATE_ID", "invalid template id")
		return
	}

	recipients := make([]processor.RecipientSpec, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		leadID, err := uuid.Parse(r.LeadID)
		if err != nil {
			apierrors.BadRequest(c, "INVALID_LEAD_ID", "invalid lead id")
			return
		}
		recipients = append(recipients, processor.RecipientSpec{
			LeadID: leadID,
			Params: r.Params,
		})
	}

	campaign, err := h.processor.Create(ctx, agentID, templateID, recipients)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, campaign)
}

// HandleStartCampaign handles POST /api/v1/campaigns/:campaign_id/start
func (h *Handler) HandleStartCampaign(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, agentID, campaignID uuid.UUID) error {
		return h.processor.Start(ctx.Request.Context(), agentID, campaignID)
	}, http.StatusAccepted)
}

// HandlePauseCampaign handles POST /api/v1/campaigns/:campaign_id/pause
func (h *Handler) HandlePauseCampaign(c *gin.Context) {
	h.statusChange(c, h.processor.Pause)
}

// HandleResumeCampaign handles POST /api/v1/campaigns/:campaign_id/resume
func (h *Handler) HandleResumeCampaign(c *gin.Context) {
	h.statusChange(c, h.processor.Resume)
}

// HandleCancelCampaign handles POST /api/v1/campaigns/:campaign_id/cancel
func (h *Handler) HandleCancelCampaign(c *gin.Context) {
	h.statusChange(c, h.processor.Cancel)
}

// HandleGetCampaign handles GET /api/v1/campaigns/:campaign_id
func (h *Handler) HandleGetCampaign(c *gin.Context) {
	ctx := c.Request.Context()

	agentID, campaignID, ok := h.scope(c)
	if !ok {
		return
	}

	campaign, err := h.processor.Get(ctx, agentID, campaignID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// HandleGetCampaignLogs handles GET /api/v1/campaigns/:campaign_id/logs
func (h *Handler) HandleGetCampaignLogs(c *gin.Context) {
	ctx := c.Request.Context()

	agentID, campaignID, ok := h.scope(c)
	if !ok {
		return
	}

	logs, err := h.processor.Logs(ctx, agentID, campaignID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) scope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	agentID, ok := auth.AgentID(c)
	if !ok {
		h.logger.Error(c.Request.Context(), "agent ID not found in context", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}

	campaignID, err := uuid.Parse(c.Param("campaign_id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CAMPAIGN_ID", "invalid campaign id")
		return uuid.Nil, uuid.Nil, false
	}
	return agentID, campaignID, true
}

func (h *Handler) transition(c *gin.Context, fn func(*gin.Context, uuid.UUID, uuid.UUID) error, status int) {
	agentID, campaignID, ok := h.scope(c)
	if !ok {
		return
	}

	if err := fn(c, agentID, campaignID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(status)
}

func (h *Handler) statusChange(c *gin.Context, fn func(ctx context.Context, agentID, campaignID uuid.UUID) (store.Campaign, error)) {
	ctx := c.Request.Context()

	agentID, campaignID, ok := h.scope(c)
	if !ok {
		return
	}

	campaign, err := fn(ctx, agentID, campaignID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}
