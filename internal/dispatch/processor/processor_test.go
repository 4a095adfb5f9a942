package processor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partner-server/internal/gateway"
	"partner-server/internal/observability"
	"partner-server/internal/store"
)

type fakeDispatchStore struct {
	apps      map[uuid.UUID]store.TenantApp
	templates map[uuid.UUID]store.MessageTemplate
	leads     map[uuid.UUID]store.Lead
	logs      []store.MessageLog
}

func newFakeDispatchStore() *fakeDispatchStore {
	return &fakeDispatchStore{
		apps:      make(map[uuid.UUID]store.TenantApp),
		templates: make(map[uuid.UUID]store.MessageTemplate),
		leads:     make(map[uuid.UUID]store.Lead),
	}
}

func (f *fakeDispatchStore) GetTenantAppByAgentID(_ context.Context, agentID uuid.UUID) (store.TenantApp, error) {
	app, ok := f.apps[agentID]
	if !ok {
		return store.TenantApp{}, store.ErrNotFound
	}
	return app, nil
}

func (f *fakeDispatchStore) GetTemplateByID(_ context.Context, templateID uuid.UUID) (store.MessageTemplate, error) {
	template, ok := f.templates[templateID]
	if !ok {
		return store.MessageTemplate{}, store.ErrNotFound
	}
	return template, nil
}

func (f *fakeDispatchStore) GetLeadByID(_ context.Context, leadID uuid.UUID) (store.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return store.Lead{}, store.ErrNotFound
	}
	return lead, nil
}

func (f *fakeDispatchStore) CreateMessageLog(_ context.Context, params store.CreateMessageLogParams) (store.MessageLog, error) {
	entry := store.MessageLog{
		ID:                uuid.New(),
		LeadID:            params.LeadID,
		AgentID:           params.AgentID,
		ExternalMessageID: params.ExternalMessageID,
		TemplateID:        params.TemplateID,
		Params:            params.Params,
		PhoneNumber:       params.PhoneNumber,
		Status:            params.Status,
		ErrorMessage:      params.ErrorMessage,
		CampaignID:        params.CampaignID,
		CreatedAt:         time.Now(),
	}
	f.logs = append(f.logs, entry)
	return entry, nil
}

type fakeMessageGateway struct {
	v3Err     error
	v2Err     error
	v3Calls   int
	v2Calls   int
	lastV3    map[string]string
	lastV2    []string
	lastPhone string
}

func (f *fakeMessageGateway) SendTemplateMessageV3(_ context.Context, _, _, phone, _, _ string, params map[string]string) (string, error) {
	f.v3Calls++
	f.lastV3 = params
	f.lastPhone = phone
	if f.v3Err != nil {
		return "", f.v3Err
	}
	return "msg-v3-1", nil
}

func (f *fakeMessageGateway) SendTemplateMessageV2(_ context.Context, _, _, phone, _, _ string, params []string) (string, error) {
	f.v2Calls++
	f.lastV2 = params
	f.lastPhone = phone
	if f.v2Err != nil {
		return "", f.v2Err
	}
	return "msg-v2-1", nil
}

type fakeAppTokenSource struct{}

func (fakeAppTokenSource) AppAccessToken(_ context.Context, appID string) (string, error) {
	return "app-token-" + appID, nil
}

func newTestProcessor(s *fakeDispatchStore, g *fakeMessageGateway) DispatchProcessor {
	return New(s, g, fakeAppTokenSource{}, observability.NewLogger(), "65")
}

func seedAgent(s *fakeDispatchStore) (uuid.UUID, store.MessageTemplate) {
	agentID := uuid.New()
	s.apps[agentID] = store.TenantApp{ID: uuid.New(), AgentID: agentID, AppID: "app-1"}

	template := store.MessageTemplate{
		ID:           uuid.New(),
		AgentID:      agentID,
		Name:         "welcome_msg",
		Category:     store.TemplateCategoryUtility,
		Content:      "Hi {{1}}, your code is {{2}}",
		Params:       store.StringArray{"name", "code"},
		LanguageCode: "en",
		Status:       store.TemplateStatusApproved,
	}
	s.templates[template.ID] = template
	return agentID, template
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "6581234567", NormalizePhone("81234567", "65"))
	assert.Equal(t, "6581234567", NormalizePhone("6581234567", "65"))
	assert.Equal(t, "6581234567", NormalizePhone("+65 8123 4567", "65"))
	assert.Equal(t, "14155552671", NormalizePhone("+1 (415) 555-2671", "65"))
}

func TestSendSuccessLogsOneEntry(t *testing.T) {
	s := newFakeDispatchStore()
	agentID, template := seedAgent(s)
	g := &fakeMessageGateway{}
	p := newTestProcessor(s, g)

	entry, err := p.Send(context.Background(), SendRequest{
		AgentID:        agentID,
		RecipientPhone: "81234567",
		TemplateID:     template.ID,
		Params:         map[string]string{"name": "Alice", "code": "1234"},
	})
	require.NoError(t, err)

	assert.Equal(t, store.MessageLogStatusSent, entry.Status)
	require.NotNil(t, entry.ExternalMessageID)
	assert.Equal(t, "msg-v3-1", *entry.ExternalMessageID)
	assert.Equal(t, "6581234567", entry.PhoneNumber)
	require.Len(t, s.logs, 1)
	assert.Equal(t, 1, g.v3Calls)
	assert.Zero(t, g.v2Calls)
}

func TestSendFailureLogsOneFailedEntry(t *testing.T) {
	s := newFakeDispatchStore()
	agentID, template := seedAgent(s)
	g := &fakeMessageGateway{
		v3Err: &gateway.TransientNetworkError{Operation: "send message v3", StatusCode: 503},
	}
	p := newTestProcessor(s, g)

	entry, err := p.Send(context.Background(), SendRequest{
		AgentID:        agentID,
		RecipientPhone: "81234567",
		TemplateID:     template.ID,
		Params:         map[string]string{"name": "Alice", "code": "1234"},
	})
	require.Error(t, err)

	assert.Equal(t, store.MessageLogStatusFailed, entry.Status)
	require.NotNil(t, entry.ErrorMessage)
	assert.NotEmpty(t, *entry.ErrorMessage)
	require.Len(t, s.logs, 1, "exactly one log entry per attempt")
	assert.Zero(t, g.v2Calls, "a transient failure must not trigger protocol fallback")
}

func TestSendFallsBackToV2OnCallbackBilling(t *testing.T) {
	s := newFakeDispatchStore()
	agentID, template := seedAgent(s)
	g := &fakeMessageGateway{v3Err: gateway.ErrCallbackBillingNotEnabled}
	p := newTestProcessor(s, g)

	entry, err := p.Send(context.Background(), SendRequest{
		AgentID:        agentID,
		RecipientPhone: "81234567",
		TemplateID:     template.ID,
		Params:         map[string]string{"name": "Alice", "code": "1234"},
	})
	require.NoError(t, err, "fallback success is ordinary success")

	assert.Equal(t, store.MessageLogStatusSent, entry.Status)
	require.NotNil(t, entry.ExternalMessageID)
	assert.Equal(t, "msg-v2-1", *entry.ExternalMessageID)
	assert.Equal(t, 1, g.v2Calls)

	// v2 takes positional parameters in declared order.
	assert.Equal(t, []string{"Alice", "1234"}, g.lastV2)
	require.Len(t, s.logs, 1)
}

func TestSendAutofillsParamsFromLead(t *testing.T) {
	s := newFakeDispatchStore()
	agentID, template := seedAgent(s)
	leadID := uuid.New()
	s.leads[leadID] = store.Lead{ID: leadID, AgentID: agentID, Name: "Bob", Phone: "6587654321"}
	g := &fakeMessageGateway{}
	p := newTestProcessor(s, g)

	_, err := p.Send(context.Background(), SendRequest{
		AgentID:        agentID,
		RecipientPhone: "87654321",
		TemplateID:     template.ID,
		LeadID:         &leadID,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bob", g.lastV3["name"])
}

func TestSendRejectsUnapprovedTemplate(t *testing.T) {
	s := newFakeDispatchStore()
	agentID, template := seedAgent(s)
	template.Status = store.TemplateStatusSubmitted
	s.templates[template.ID] = template
	g := &fakeMessageGateway{}
	p := newTestProcessor(s, g)

	_, err := p.Send(context.Background(), SendRequest{
		AgentID:        agentID,
		RecipientPhone: "81234567",
		TemplateID:     template.ID,
	})

	var validationErr *gateway.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Zero(t, g.v3Calls)
	assert.Empty(t, s.logs)
}

func TestSendRejectsForeignTemplate(t *testing.T) {
	s := newFakeDispatchStore()
	agentID, _ := seedAgent(s)
	_, otherTemplate := seedAgent(s)
	p := newTestProcessor(s, &fakeMessageGateway{})

	_, err := p.Send(context.Background(), SendRequest{
		AgentID:        agentID,
		RecipientPhone: "81234567",
		TemplateID:     otherTemplate.ID,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
