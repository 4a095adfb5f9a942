package handler

import (
	"net/http"

	"partner-server/internal/apierrors"
	"partner-server/internal/auth"
	"partner-server/internal/dispatch/processor"
	"partner-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	processor processor.DispatchProcessor
	logger    *observability.Logger
}

func New(processor processor.DispatchProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// SendMessageRequest represents the HTTP request for sending one template
// message
type SendMessageRequest struct {
	RecipientPhone string            `json:"recipient_phone" binding:"required"`
	TemplateID     string            `json:"template_id" binding:"required,uuid"`
	Params         map[string]string `json:"params"`
	LeadID         *string           `json:"lead_id,omitempty" binding:"omitempty,uuid"`
}

// HandleSendMessage handles POST /api/v1/messages
func (h *Handler) HandleSendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	agentID, ok := auth.AgentID(c)
	if !ok {
		h.logger.Error(ctx, "agent ID not found in context", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	templateID, err := uuid.Parse(req.TemplateID)
	if err != nil {
		apierrors.BadRequest(c, "INVALID_TEMPLATE_ID", "invalid template id")
		return
	}

	sendReq := processor.SendRequest{
		AgentID:        agentID,
		RecipientPhone: req.RecipientPhone,
		TemplateID:     templateID,
		Params:         req.Params,
	}
	if req.LeadID != nil {
		leadID, err := uuid.Parse(*req.LeadID)
		if err != nil {
			apierrors.BadRequest(c, "INVALID_LEAD_ID", "invalid lead id")
			return
		}
		sendReq.LeadID = &leadID
	}

	entry, err := h.processor.Send(ctx, sendReq)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}
