package handler

import (
	"net/http"

	"partner-server/internal/apierrors"
	"partner-server/internal/auth"
	"partner-server/internal/observability"
	"partner-server/internal/templates/processor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	processor processor.TemplateProcessor
	logger    *observability.Logger
}

func New(processor processor.TemplateProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// CreateTemplateRequest represents the HTTP request for creating a template
type CreateTemplateRequest struct {
	Name         string   `json:"name" binding:"required"`
	Category     string   `json:"category" binding:"required"`
	Content      string   `json:"content" binding:"required"`
	Params       []string `json:"params"`
	LanguageCode string   `json:"language_code" binding:"required"`
}

// HandleCreateTemplate handles POST /api/v1/templates
func (h *Handler) HandleCreateTemplate(c *gin.Context) {
	ctx := c.Request.Context()

	agentID, ok := auth.AgentID(c)
	if !ok {
		h.logger.Error(ctx, "agent ID not found in context", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	template, err := h.processor.Create(ctx, agentID, processor.CreateTemplateRequest{
		Name:         req.Name,
		Category:     req.Category,
		Content:      req.Content,
		Params:       req.Params,
		LanguageCode: req.LanguageCode,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, template)
}

// HandleGetTemplate handles GET /api/v1/templates/:template_id
func (h *Handler) HandleGetTemplate(c *gin.Context) {
	ctx := c.Request.Context()

	agentID, ok := auth.AgentID(c)
	if !ok {
		h.logger.Error(ctx, "agent ID not found in context", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	templateID, err := uuid.Parse(c.Param("template_id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_TEMPLATE_ID", "invalid template id")
		return
	}

	template, err := h.processor.Get(ctx, agentID, templateID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, template)
}

// HandleListTemplates handles GET /api/v1/templates
func (h *Handler) HandleListTemplates(c *gin.Context) {
	ctx := c.Request.Context()

	agentID, ok := auth.AgentID(c)
	if !ok {
		h.logger.Error(ctx, "agent ID not found in context", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	templates, err := h.processor.List(ctx, agentID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates})
}
