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

type fakeTemplateStore struct {
	templates map[uuid.UUID]store.MessageTemplate
	apps      map[uuid.UUID]store.TenantApp
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{
		templates: make(map[uuid.UUID]store.MessageTemplate),
		apps:      make(map[uuid.UUID]store.TenantApp),
	}
}

func (f *fakeTemplateStore) CreateTemplate(_ context.Context, params store.CreateTemplateParams) (store.MessageTemplate, error) {
	template := store.MessageTemplate{
		ID:           uuid.New(),
		AgentID:      params.AgentID,
		Name:         params.Name,
		Category:     params.Category,
		Content:      params.Content,
		Params:       params.Params,
		LanguageCode: params.LanguageCode,
		Status:       store.TemplateStatusPending,
		CreatedAt:    time.Now(),
	}
	f.templates[template.ID] = template
	return template, nil
}

func (f *fakeTemplateStore) GetTemplateByID(_ context.Context, templateID uuid.UUID) (store.MessageTemplate, error) {
	template, ok := f.templates[templateID]
	if !ok {
		return store.MessageTemplate{}, store.ErrNotFound
	}
	return template, nil
}

func (f *fakeTemplateStore) GetTemplateByName(_ context.Context, agentID uuid.UUID, name string) (store.MessageTemplate, error) {
	for _, template := range f.templates {
		if template.AgentID == agentID && template.Name == name {
			return template, nil
		}
	}
	return store.MessageTemplate{}, store.ErrNotFound
}

func (f *fakeTemplateStore) ListTemplatesByAgent(_ context.Context, agentID uuid.UUID) ([]store.MessageTemplate, error) {
	var templates []store.MessageTemplate
	for _, template := range f.templates {
		if template.AgentID == agentID {
			templates = append(templates, template)
		}
	}
	return templates, nil
}

func (f *fakeTemplateStore) ListTemplatesByStatus(_ context.Context, status string) ([]store.MessageTemplate, error) {
	var templates []store.MessageTemplate
	for _, template := range f.templates {
		if template.Status == status {
			templates = append(templates, template)
		}
	}
	return templates, nil
}

func (f *fakeTemplateStore) MarkTemplateSubmitted(_ context.Context, templateID uuid.UUID, gatewayTemplateID string) (store.MessageTemplate, error) {
	template, ok := f.templates[templateID]
	if !ok || template.Status != store.TemplateStatusPending {
		return store.MessageTemplate{}, store.ErrNotFound
	}
	now := time.Now()
	template.Status = store.TemplateStatusSubmitted
	template.GatewayTemplateID = &gatewayTemplateID
	template.SubmittedAt = &now
	f.templates[templateID] = template
	return template, nil
}

func (f *fakeTemplateStore) MarkTemplateApproved(_ context.Context, templateID uuid.UUID) error {
	template, ok := f.templates[templateID]
	if !ok || template.Status != store.TemplateStatusSubmitted {
		return store.ErrNotFound
	}
	now := time.Now()
	template.Status = store.TemplateStatusApproved
	template.ApprovedAt = &now
	f.templates[templateID] = template
	return nil
}

func (f *fakeTemplateStore) MarkTemplateRejected(_ context.Context, templateID uuid.UUID, reason string) error {
	template, ok := f.templates[templateID]
	if !ok || template.Status != store.TemplateStatusSubmitted {
		return store.ErrNotFound
	}
	now := time.Now()
	template.Status = store.TemplateStatusRejected
	template.RejectedAt = &now
	template.RejectionReason = &reason
	f.templates[templateID] = template
	return nil
}

func (f *fakeTemplateStore) GetTenantAppByAgentID(_ context.Context, agentID uuid.UUID) (store.TenantApp, error) {
	app, ok := f.apps[agentID]
	if !ok {
		return store.TenantApp{}, store.ErrNotFound
	}
	return app, nil
}

type fakeTemplateGateway struct {
	submitErr   error
	submitCalls int
	statuses    map[string]gateway.TemplateStatus
	statusErrs  map[string]error
}

func (f *fakeTemplateGateway) SubmitTemplate(_ context.Context, _, _ string, submission gateway.TemplateSubmission) (string, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "gw-" + submission.Name, nil
}

func (f *fakeTemplateGateway) GetTemplateStatus(_ context.Context, _, _, gatewayTemplateID string) (gateway.TemplateStatus, error) {
	if err, ok := f.statusErrs[gatewayTemplateID]; ok {
		return gateway.TemplateStatus{}, err
	}
	if status, ok := f.statuses[gatewayTemplateID]; ok {
		return status, nil
	}
	return gateway.TemplateStatus{ID: gatewayTemplateID, Status: gateway.TemplateStatusPending}, nil
}

type fakeAppTokenSource struct{}

func (fakeAppTokenSource) AppAccessToken(_ context.Context, appID string) (string, error) {
	return "app-token-" + appID, nil
}

func newTestProcessor(s *fakeTemplateStore, g *fakeTemplateGateway) TemplateProcessor {
	return New(s, g, fakeAppTokenSource{}, observability.NewLogger())
}

func provisionAgent(s *fakeTemplateStore) uuid.UUID {
	agentID := uuid.New()
	s.apps[agentID] = store.TenantApp{
		ID:      uuid.New(),
		AgentID: agentID,
		AppID:   "app-1",
	}
	return agentID
}

func TestCreateRejectsInvalidSpecsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name string
		req  CreateTemplateRequest
	}{
		{
			name: "bad name pattern",
			req:  CreateTemplateRequest{Name: "Welcome Msg", Category: store.TemplateCategoryUtility, Content: "hi", LanguageCode: "en"},
		},
		{
			name: "bad category",
			req:  CreateTemplateRequest{Name: "welcome_msg", Category: "PROMO", Content: "hi", LanguageCode: "en"},
		},
		{
			name: "content too long",
			req:  CreateTemplateRequest{Name: "welcome_msg", Category: store.TemplateCategoryUtility, Content: string(make([]byte, 1025)), LanguageCode: "en"},
		},
		{
			name: "too many params",
			req: CreateTemplateRequest{Name: "welcome_msg", Category: store.TemplateCategoryUtility, Content: "hi",
				Params: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}, LanguageCode: "en"},
		},
		{
			name: "placeholder beyond declared params",
			req: CreateTemplateRequest{Name: "welcome_msg", Category: store.TemplateCategoryUtility,
				Content: "Hi {{1}}, your code is {{3}}", Params: []string{"name", "code"}, LanguageCode: "en"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeTemplateStore()
			provisionAgent(s)
			g := &fakeTemplateGateway{}
			p := newTestProcessor(s, g)

			_, err := p.Create(context.Background(), uuid.New(), tt.req)

			var validationErr *gateway.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Zero(t, g.submitCalls, "validation must fail before any network call")
			assert.Empty(t, s.templates, "no record may be created for an invalid spec")
		})
	}
}

func TestCreateSubmitsAndRecordsGatewayID(t *testing.T) {
	s := newFakeTemplateStore()
	agentID := provisionAgent(s)
	g := &fakeTemplateGateway{}
	p := newTestProcessor(s, g)

	template, err := p.Create(context.Background(), agentID, CreateTemplateRequest{
		Name:         "welcome_msg",
		Category:     store.TemplateCategoryUtility,
		Content:      "Hi {{1}}, welcome!",
		Params:       []string{"name"},
		LanguageCode: "en",
	})
	require.NoError(t, err)

	assert.Equal(t, store.TemplateStatusSubmitted, template.Status)
	require.NotNil(t, template.GatewayTemplateID)
	assert.Equal(t, "gw-welcome_msg", *template.GatewayTemplateID)
	assert.NotNil(t, template.SubmittedAt)
}

func TestCreateFailedSubmissionStaysPending(t *testing.T) {
	s := newFakeTemplateStore()
	agentID := provisionAgent(s)
	g := &fakeTemplateGateway{
		submitErr: &gateway.TransientNetworkError{Operation: "submit template", StatusCode: 503},
	}
	p := newTestProcessor(s, g)

	_, err := p.Create(context.Background(), agentID, CreateTemplateRequest{
		Name:         "welcome_msg",
		Category:     store.TemplateCategoryUtility,
		Content:      "Hi {{1}}, welcome!",
		Params:       []string{"name"},
		LanguageCode: "en",
	})
	require.Error(t, err)

	stored, err := s.GetTemplateByName(context.Background(), agentID, "welcome_msg")
	require.NoError(t, err)
	assert.Equal(t, store.TemplateStatusPending, stored.Status)
	assert.Nil(t, stored.GatewayTemplateID)
}

func TestCreateConflictsOnDuplicateName(t *testing.T) {
	s := newFakeTemplateStore()
	agentID := provisionAgent(s)
	p := newTestProcessor(s, &fakeTemplateGateway{})

	req := CreateTemplateRequest{
		Name:         "welcome_msg",
		Category:     store.TemplateCategoryUtility,
		Content:      "Hi {{1}}!",
		Params:       []string{"name"},
		LanguageCode: "en",
	}

	_, err := p.Create(context.Background(), agentID, req)
	require.NoError(t, err)

	_, err = p.Create(context.Background(), agentID, req)
	var conflictErr *gateway.ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}

func TestPollPendingTransitionsIndependently(t *testing.T) {
	s := newFakeTemplateStore()
	agentID := provisionAgent(s)
	g := &fakeTemplateGateway{
		statuses:   make(map[string]gateway.TemplateStatus),
		statusErrs: make(map[string]error),
	}
	p := newTestProcessor(s, g)

	create := func(name string) store.MessageTemplate {
		template, err := p.Create(context.Background(), agentID, CreateTemplateRequest{
			Name:         name,
			Category:     store.TemplateCategoryUtility,
			Content:      "Hi {{1}}!",
			Params:       []string{"name"},
			LanguageCode: "en",
		})
		require.NoError(t, err)
		return template
	}

	approved := create("approved_msg")
	rejected := create("rejected_msg")
	broken := create("broken_msg")
	waiting := create("waiting_msg")

	g.statuses["gw-approved_msg"] = gateway.TemplateStatus{Status: gateway.TemplateStatusApproved}
	g.statuses["gw-rejected_msg"] = gateway.TemplateStatus{Status: gateway.TemplateStatusRejected, RejectionReason: "policy violation"}
	g.statusErrs["gw-broken_msg"] = &gateway.TransientNetworkError{Operation: "template status", StatusCode: 503}

	require.NoError(t, p.PollPending(context.Background()), "one broken template must not abort the batch")

	got, _ := s.GetTemplateByID(context.Background(), approved.ID)
	assert.Equal(t, store.TemplateStatusApproved, got.Status)
	assert.NotNil(t, got.ApprovedAt)

	got, _ = s.GetTemplateByID(context.Background(), rejected.ID)
	assert.Equal(t, store.TemplateStatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "policy violation", *got.RejectionReason)

	got, _ = s.GetTemplateByID(context.Background(), broken.ID)
	assert.Equal(t, store.TemplateStatusSubmitted, got.Status)

	got, _ = s.GetTemplateByID(context.Background(), waiting.ID)
	assert.Equal(t, store.TemplateStatusSubmitted, got.Status)
}

func TestTemplateLifecycleEndToEnd(t *testing.T) {
	s := newFakeTemplateStore()
	agentID := provisionAgent(s)
	g := &fakeTemplateGateway{statuses: make(map[string]gateway.TemplateStatus)}
	p := newTestProcessor(s, g)

	template, err := p.Create(context.Background(), agentID, CreateTemplateRequest{
		Name:         "welcome_msg",
		Category:     store.TemplateCategoryUtility,
		Content:      "Hi {{1}}, welcome!",
		Params:       []string{"name"},
		LanguageCode: "en",
	})
	require.NoError(t, err)
	assert.Equal(t, store.TemplateStatusSubmitted, template.Status)

	// First poll: the gateway still reports PENDING.
	require.NoError(t, p.PollPending(context.Background()))
	got, _ := s.GetTemplateByID(context.Background(), template.ID)
	assert.Equal(t, store.TemplateStatusSubmitted, got.Status)

	// Next poll reports approval.
	g.statuses["gw-welcome_msg"] = gateway.TemplateStatus{Status: gateway.TemplateStatusApproved}
	require.NoError(t, p.PollPending(context.Background()))

	got, _ = s.GetTemplateByID(context.Background(), template.ID)
	assert.Equal(t, store.TemplateStatusApproved, got.Status)
	assert.NotNil(t, got.ApprovedAt)
}
