package processor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"partner-server/internal/gateway"
	"partner-server/internal/observability"
	"partner-server/internal/store"

	"github.com/google/uuid"
)

const (
	maxContentLength = 1024
	maxParams        = 10
)

var (
	templateNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	placeholderPattern  = regexp.MustCompile(`\{\{(\d+)\}\}`)

	validCategories = map[string]bool{
		store.TemplateCategoryMarketing:      true,
		store.TemplateCategoryUtility:        true,
		store.TemplateCategoryAuthentication: true,
	}
)

// TemplateStore defines the database operations required by
// TemplateProcessor
type TemplateStore interface {
	CreateTemplate(ctx context.Context, params store.CreateTemplateParams) (store.MessageTemplate, error)
	GetTemplateByID(ctx context.Context, templateID uuid.UUID) (store.MessageTemplate, error)
	GetTemplateByName(ctx context.Context, agentID uuid.UUID, name string) (store.MessageTemplate, error)
	ListTemplatesByAgent(ctx context.Context, agentID uuid.UUID) ([]store.MessageTemplate, error)
	ListTemplatesByStatus(ctx context.Context, status string) ([]store.MessageTemplate, error)
	MarkTemplateSubmitted(ctx context.Context, templateID uuid.UUID, gatewayTemplateID string) (store.MessageTemplate, error)
	MarkTemplateApproved(ctx context.Context, templateID uuid.UUID) error
	MarkTemplateRejected(ctx context.Context, templateID uuid.UUID, reason string) error
	GetTenantAppByAgentID(ctx context.Context, agentID uuid.UUID) (store.TenantApp, error)
}

// TemplateGateway defines the gateway operations required by
// TemplateProcessor
type TemplateGateway interface {
	SubmitTemplate(ctx context.Context, appToken, appID string, submission gateway.TemplateSubmission) (string, error)
	GetTemplateStatus(ctx context.Context, appToken, appID, gatewayTemplateID string) (gateway.TemplateStatus, error)
}

// AppTokenSource exchanges the partner token for a per-app token.
type AppTokenSource interface {
	AppAccessToken(ctx context.Context, appID string) (string, error)
}

// CreateTemplateRequest carries a validated template spec into the processor.
type CreateTemplateRequest struct {
	Name         string
	Category     string
	Content      string
	Params       []string
	LanguageCode string
}

type TemplateProcessor struct {
	store   TemplateStore
	gateway TemplateGateway
	tokens  AppTokenSource
	logger  *observability.Logger
}

func New(s TemplateStore, g TemplateGateway, tokens AppTokenSource, logger *observability.Logger) TemplateProcessor {
	return TemplateProcessor{
		store:   s,
		gateway: g,
		tokens:  tokens,
		logger:  logger,
	}
}

// Create validates a template spec, persists it as pending, and submits it
// for gateway approval. A submission failure leaves the record pending and
// surfaces the error; the caller decides whether to resubmit.
func (p TemplateProcessor) Create(ctx context.Context, agentID uuid.UUID, req CreateTemplateRequest) (store.MessageTemplate, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "agent_id", Value: agentID},
		observability.Field{Key: "template_name", Value: req.Name},
	)

	if err := validateTemplate(req); err != nil {
		return store.MessageTemplate{}, err
	}

	if _, err := p.store.GetTemplateByName(ctx, agentID, req.Name); err == nil {
		return store.MessageTemplate{}, &gateway.ConflictError{Resource: "template name"}
	}

	app, err := p.store.GetTenantAppByAgentID(ctx, agentID)
	if err != nil {
		return store.MessageTemplate{}, err
	}

	template, err := p.store.CreateTemplate(ctx, store.CreateTemplateParams{
		AgentID:      agentID,
		Name:         req.Name,
		Category:     req.Category,
		Content:      req.Content,
		Params:       req.Params,
		LanguageCode: req.LanguageCode,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to create template record", err)
		return store.MessageTemplate{}, fmt.Errorf("failed to create template record: %w", err)
	}

	appToken, err := p.tokens.AppAccessToken(ctx, app.AppID)
	if err != nil {
		return template, err
	}

	gatewayTemplateID, err := p.gateway.SubmitTemplate(ctx, appToken, app.AppID, gateway.TemplateSubmission{
		Name:         req.Name,
		Category:     req.Category,
		Content:      req.Content,
		Params:       req.Params,
		LanguageCode: req.LanguageCode,
	})
	if err != nil {
		// The local record stays pending; submission is not auto-retried.
		p.logger.Error(ctx, "failed to submit template", err)
		return template, err
	}

	submitted, err := p.store.MarkTemplateSubmitted(ctx, template.ID, gatewayTemplateID)
	if err != nil {
		p.logger.Error(ctx, "failed to mark template submitted", err)
		return template, fmt.Errorf("failed to mark template submitted: %w", err)
	}

	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "gateway_template_id", Value: gatewayTemplateID},
	), "submitted template for approval")
	return submitted, nil
}

// Get retrieves one template scoped to the agent.
func (p TemplateProcessor) Get(ctx context.Context, agentID, templateID uuid.UUID) (store.MessageTemplate, error) {
	template, err := p.store.GetTemplateByID(ctx, templateID)
	if err != nil {
		return store.MessageTemplate{}, err
	}
	if template.AgentID != agentID {
		return store.MessageTemplate{}, store.ErrNotFound
	}
	return template, nil
}

// List retrieves the agent's templates.
func (p TemplateProcessor) List(ctx context.Context, agentID uuid.UUID) ([]store.MessageTemplate, error) {
	return p.store.ListTemplatesByAgent(ctx, agentID)
}

// PollPending fetches the gateway status for every locally submitted
// template and transitions each independently. One template's failure is
// logged and skipped; it will be retried on the next poll.
func (p TemplateProcessor) PollPending(ctx context.Context) error {
	templates, err := p.store.ListTemplatesByStatus(ctx, store.TemplateStatusSubmitted)
	if err != nil {
		return fmt.Errorf("failed to list submitted templates: %w", err)
	}

	for _, template := range templates {
		if err := p.pollOne(ctx, template); err != nil {
			p.logger.Error(observability.WithFields(ctx,
				observability.Field{Key: "template_id", Value: template.ID},
			), "failed to poll template status", err)
		}
	}
	return nil
}

func (p TemplateProcessor) pollOne(ctx context.Context, template store.MessageTemplate) error {
	if template.GatewayTemplateID == nil {
		return fmt.Errorf("submitted template %s has no gateway template id", template.ID)
	}

	app, err := p.store.GetTenantAppByAgentID(ctx, template.AgentID)
	if err != nil {
		return err
	}

	appToken, err := p.tokens.AppAccessToken(ctx, app.AppID)
	if err != nil {
		return err
	}

	status, err := p.gateway.GetTemplateStatus(ctx, appToken, app.AppID, *template.GatewayTemplateID)
	if err != nil {
		return err
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "template_id", Value: template.ID},
		observability.Field{Key: "gateway_status", Value: status.Status},
	)

	switch status.Status {
	case gateway.TemplateStatusApproved:
		if err := p.store.MarkTemplateApproved(ctx, template.ID); err != nil {
			return err
		}
		p.logger.Info(ctx, "template approved")
	case gateway.TemplateStatusRejected:
		if err := p.store.MarkTemplateRejected(ctx, template.ID, status.RejectionReason); err != nil {
			return err
		}
		p.logger.Info(ctx, "template rejected")
	default:
		// Still pending at the gateway; nothing to record.
	}
	return nil
}

func validateTemplate(req CreateTemplateRequest) error {
	if !templateNamePattern.MatchString(req.Name) {
		return &gateway.ValidationError{
			Field:  "name",
			Reason: "must contain only lowercase letters, digits, and underscores",
		}
	}
	if !validCategories[req.Category] {
		return &gateway.ValidationError{
			Field:  "category",
			Reason: "must be one of MARKETING, UTILITY, AUTHENTICATION",
		}
	}
	if len(req.Content) == 0 || len(req.Content) > maxContentLength {
		return &gateway.ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("must be between 1 and %d characters", maxContentLength),
		}
	}
	if len(req.Params) > maxParams {
		return &gateway.ValidationError{
			Field:  "params",
			Reason: fmt.Sprintf("at most %d parameters are allowed", maxParams),
		}
	}

	// Every {{n}} placeholder must have a declared parameter behind it.
	for _, match := range placeholderPattern.FindAllStringSubmatch(req.Content, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 {
			return &gateway.ValidationError{
				Field:  "content",
				Reason: fmt.Sprintf("placeholder %s is not valid", match[0]),
			}
		}
		if n > len(req.Params) {
			return &gateway.ValidationError{
				Field:  "content",
				Reason: fmt.Sprintf("placeholder {{%d}} has no declared parameter", n),
			}
		}
	}
	return nil
}
