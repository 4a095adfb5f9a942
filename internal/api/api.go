package api

import (
	"net/http"

	"partner-server/internal/auth"
	campaignHandler "partner-server/internal/campaigns/handler"
	dispatchHandler "partner-server/internal/dispatch/handler"
	provisioningHandler "partner-server/internal/provisioning/handler"
	templateHandler "partner-server/internal/templates/handler"
	webhookHandler "partner-server/internal/webhookcfg/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router              *gin.RouterGroup
	authMiddleware      *auth.Middleware
	provisioningHandler provisioningHandler.Handler
	webhookHandler      webhookHandler.Handler
	templateHandler     templateHandler.Handler
	dispatchHandler     dispatchHandler.Handler
	campaignHandler     campaignHandler.Handler
}

func New(
	router *gin.RouterGroup,
	authMiddleware *auth.Middleware,
	provisioningHandler provisioningHandler.Handler,
	webhookHandler webhookHandler.Handler,
	templateHandler templateHandler.Handler,
	dispatchHandler dispatchHandler.Handler,
	campaignHandler campaignHandler.Handler,
) API {
	return API{
		router:              router,
		authMiddleware:      authMiddleware,
		provisioningHandler: provisioningHandler,
		webhookHandler:      webhookHandler,
		templateHandler:     templateHandler,
		dispatchHandler:     dispatchHandler,
		campaignHandler:     campaignHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()

	v1 := a.router.Group("/api/v1", a.authMiddleware.Handle)
	{
		appsGroup := v1.Group("/apps")
		appsGroup.POST("", a.provisioningHandler.HandleCreateApp)
		appsGroup.GET("", a.provisioningHandler.HandleListApps)
		appsGroup.POST("/phone", a.provisioningHandler.HandleRegisterPhone)
		appsGroup.POST("/:app_id/webhooks", a.webhookHandler.HandleConfigureWebhook)
		appsGroup.GET("/:app_id/webhooks", a.webhookHandler.HandleListWebhooks)
		appsGroup.DELETE("/:app_id/webhooks/:subscription_id", a.webhookHandler.HandleDeleteWebhook)

		templatesGroup := v1.Group("/templates")
		templatesGroup.POST("", a.templateHandler.HandleCreateTemplate)
		templatesGroup.GET("", a.templateHandler.HandleListTemplates)
		templatesGroup.GET("/:template_id", a.templateHandler.HandleGetTemplate)

		v1.POST("/messages", a.dispatchHandler.HandleSendMessage)

		campaignsGroup := v1.Group("/campaigns")
		campaignsGroup.POST("", a.campaignHandler.HandleCreateCampaign)
		campaignsGroup.GET("/:campaign_id", a.campaignHandler.HandleGetCampaign)
		campaignsGroup.GET("/:campaign_id/logs", a.campaignHandler.HandleGetCampaignLogs)
		campaignsGroup.POST("/:campaign_id/start", a.campaignHandler.HandleStartCampaign)
		campaignsGroup.POST("/:campaign_id/pause", a.campaignHandler.HandlePauseCampaign)
		campaignsGroup.POST("/:campaign_id/resume", a.campaignHandler.HandleResumeCampaign)
		campaignsGroup.POST("/:campaign_id/cancel", a.campaignHandler.HandleCancelCampaign)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
