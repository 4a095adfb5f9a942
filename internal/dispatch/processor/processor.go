package processor

import (
	"context"
	"errors"
	"fmt"

	"partner-server/internal/gateway"
	"partner-server/internal/observability"
	"partner-server/internal/store"

	"github.com/google/uuid"
)

// DispatchStore defines the database operations required by
// DispatchProcessor
type DispatchStore interface {
	GetTenantAppByAgentID(ctx context.Context, agentID uuid.UUID) (store.TenantApp, error)
	GetTemplateByID(ctx context.Context, templateID uuid.UUID) (store.MessageTemplate, error)
	GetLeadByID(ctx context.Context, leadID uuid.UUID) (store.Lead, error)
	CreateMessageLog(ctx context.Context, params store.CreateMessageLogParams) (store.MessageLog, error)
}

// MessageGateway defines the send operations required by DispatchProcessor
type MessageGateway interface {
	SendTemplateMessageV3(ctx context.Context, appToken, appID, phone, templateName, languageCode string, params map[string]string) (string, error)
	SendTemplateMessageV2(ctx context.Context, appToken, appID, phone, templateName, languageCode string, params []string) (string, error)
}

// AppTokenSource exchanges the partner token for a per-app token.
type AppTokenSource interface {
	AppAccessToken(ctx context.Context, appID string) (string, error)
}

// SendRequest carries one dispatch into the processor.
type SendRequest struct {
	AgentID        uuid.UUID
	RecipientPhone string
	TemplateID     uuid.UUID
	Params         map[string]string
	LeadID         *uuid.UUID
	CampaignID     *uuid.UUID
}

type DispatchProcessor struct {
	store              DispatchStore
	gateway            MessageGateway
	tokens             AppTokenSource
	logger             *observability.Logger
	defaultCountryCode string
}

func New(s DispatchStore, g MessageGateway, tokens AppTokenSource, logger *observability.Logger, defaultCountryCode string) DispatchProcessor {
	return DispatchProcessor{
		store:              s,
		gateway:            g,
		tokens:             tokens,
		logger:             logger,
		defaultCountryCode: defaultCountryCode,
	}
}

// Send dispatches one template message. The v3 protocol is tried first; the
// specific "callback billing not enabled" rejection falls back to v2 with
// parameters re-shaped into the template's declared order. Every attempt,
// success or failure, produces exactly one message log entry.
func (p DispatchProcessor) Send(ctx context.Context, req SendRequest) (store.MessageLog, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "agent_id", Value: req.AgentID},
		observability.Field{Key: "template_id", Value: req.TemplateID},
	)

	if req.RecipientPhone == "" {
		return store.MessageLog{}, &gateway.ValidationError{Field: "recipient_phone", Reason: "must not be empty"}
	}

	app, err := p.store.GetTenantAppByAgentID(ctx, req.AgentID)
	if err != nil {
		return store.MessageLog{}, err
	}

	template, err := p.store.GetTemplateByID(ctx, req.TemplateID)
	if err != nil {
		return store.MessageLog{}, err
	}
	if template.AgentID != req.AgentID {
		return store.MessageLog{}, store.ErrNotFound
	}
	if template.Status != store.TemplateStatusApproved {
		return store.MessageLog{}, &gateway.ValidationError{
			Field:  "template_id",
			Reason: fmt.Sprintf("template is %s, only approved templates can be dispatched", template.Status),
		}
	}

	params := req.Params
	if len(params) == 0 && req.LeadID != nil {
		params = p.paramsFromLead(ctx, *req.LeadID, template.Params)
	}

	phone := NormalizePhone(req.RecipientPhone, p.defaultCountryCode)

	messageID, sendErr := p.send(ctx, app.AppID, phone, template, params)

	entry, logErr := p.recordAttempt(ctx, req, template, phone, params, messageID, sendErr)
	if logErr != nil {
		p.logger.Error(ctx, "failed to record message log", logErr)
		if sendErr == nil {
			return store.MessageLog{}, logErr
		}
	}
	if sendErr != nil {
		return entry, sendErr
	}
	return entry, nil
}

func (p DispatchProcessor) send(ctx context.Context, appID, phone string, template store.MessageTemplate, params map[string]string) (string, error) {
	appToken, err := p.tokens.AppAccessToken(ctx, appID)
	if err != nil {
		return "", err
	}

	messageID, err := p.gateway.SendTemplateMessageV3(ctx, appToken, appID, phone, template.Name, template.LanguageCode, params)
	if err == nil {
		return messageID, nil
	}
	if !errors.Is(err, gateway.ErrCallbackBillingNotEnabled) {
		p.logger.Error(ctx, "failed to send template message", err)
		return "", err
	}

	// Legacy apps without callback billing only speak v2, which takes
	// positional parameters in the template's declared order.
	p.logger.Info(ctx, "falling back to v2 message protocol")
	positional := make([]string, len(template.Params))
	for i, name := range template.Params {
		positional[i] = params[name]
	}

	messageID, err = p.gateway.SendTemplateMessageV2(ctx, appToken, appID, phone, template.Name, template.LanguageCode, positional)
	if err != nil {
		p.logger.Error(ctx, "failed to send template message over v2", err)
		return "", err
	}
	return messageID, nil
}

// paramsFromLead fills the template's declared parameters from lead profile
// fields when the caller supplied none. Unknown parameter names stay empty.
func (p DispatchProcessor) paramsFromLead(ctx context.Context, leadID uuid.UUID, declared []string) map[string]string {
	lead, err := p.store.GetLeadByID(ctx, leadID)
	if err != nil {
		p.logger.InfoWithError(ctx, "failed to load lead for parameter autofill", err)
		return nil
	}

	params := make(map[string]string, len(declared))
	for _, name := range declared {
		switch name {
		case "name":
			params[name] = lead.Name
		case "phone":
			params[name] = lead.Phone
		}
	}
	return params
}

func (p DispatchProcessor) recordAttempt(ctx context.Context, req SendRequest, template store.MessageTemplate, phone string, params map[string]string, messageID string, sendErr error) (store.MessageLog, error) {
	logParams := store.CreateMessageLogParams{
		LeadID:      req.LeadID,
		AgentID:     req.AgentID,
		TemplateID:  &template.ID,
		Params:      params,
		PhoneNumber: phone,
		CampaignID:  req.CampaignID,
	}
	if sendErr != nil {
		message := sendErr.Error()
		logParams.Status = store.MessageLogStatusFailed
		logParams.ErrorMessage = &message
	} else {
		logParams.Status = store.MessageLogStatusSent
		logParams.ExternalMessageID = &messageID
	}
	return p.store.CreateMessageLog(ctx, logParams)
}
