package processor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partner-server/internal/gateway"
	"partner-server/internal/observability"
)

type fakeWebhookGateway struct {
	subs      []gateway.Subscription
	createErr error
	deleted   []string
}

func (f *fakeWebhookGateway) CreateWebhook(_ context.Context, _, appID, url, tag string, modes []string) (gateway.Subscription, error) {
	if f.createErr != nil {
		return gateway.Subscription{}, f.createErr
	}
	sub := gateway.Subscription{
		ID:         fmt.Sprintf("sub-%d", len(f.subs)+1),
		URL:        url,
		EventModes: modes,
		Version:    gateway.WebhookProtocolVersion,
		Tag:        tag,
		Active:     true,
	}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeWebhookGateway) ListWebhooks(_ context.Context, _, _ string) ([]gateway.Subscription, error) {
	return f.subs, nil
}

func (f *fakeWebhookGateway) DeleteWebhook(_ context.Context, _, _, subscriptionID string) error {
	f.deleted = append(f.deleted, subscriptionID)
	for i, sub := range f.subs {
		if sub.ID == subscriptionID {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			break
		}
	}
	return nil
}

type fakeAppTokenSource struct{}

func (fakeAppTokenSource) AppAccessToken(_ context.Context, appID string) (string, error) {
	return "app-token-" + appID, nil
}

func newTestProcessor(g *fakeWebhookGateway) WebhookProcessor {
	return New(g, fakeAppTokenSource{}, observability.NewLogger())
}

func TestConfigureCreatesVersionedSubscription(t *testing.T) {
	g := &fakeWebhookGateway{}
	p := newTestProcessor(g)

	sub, err := p.Configure(context.Background(), "app-1", "https://example.com/hooks")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/hooks", sub.URL)
	assert.Equal(t, gateway.WebhookProtocolVersion, sub.Version)
	assert.NotEmpty(t, sub.EventModes)
	assert.Contains(t, sub.Tag, "app-1-")
}

func TestConfigureTagsNeverCollide(t *testing.T) {
	g := &fakeWebhookGateway{}
	p := newTestProcessor(g)

	// Drive the clock by hand so back-to-back calls cannot share a tag even
	// on a coarse timer.
	tick := time.Unix(0, 0)
	p.now = func() time.Time {
		tick = tick.Add(time.Nanosecond)
		return tick
	}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		sub, err := p.Configure(context.Background(), "app-1", "https://example.com/hooks")
		require.NoError(t, err)
		assert.False(t, seen[sub.Tag], "tag %q reused", sub.Tag)
		seen[sub.Tag] = true
	}
}

func TestConfigureWrapsGatewayFailure(t *testing.T) {
	g := &fakeWebhookGateway{
		createErr: &gateway.TransientNetworkError{Operation: "create webhook", StatusCode: 503},
	}
	p := newTestProcessor(g)

	_, err := p.Configure(context.Background(), "app-1", "https://example.com/hooks")

	var configErr *gateway.ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "app-1", configErr.AppID)
}

func TestConfigureRejectsEmptyURL(t *testing.T) {
	p := newTestProcessor(&fakeWebhookGateway{})

	_, err := p.Configure(context.Background(), "app-1", "")

	var validationErr *gateway.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestReconfigureDeletesStaleSubscriptionsFirst(t *testing.T) {
	g := &fakeWebhookGateway{
		subs: []gateway.Subscription{
			{ID: "stale-1", URL: "https://old.example.com/hooks"},
			{ID: "stale-2", URL: "https://old.example.com/hooks"},
			{ID: "keep-1", URL: "https://new.example.com/hooks"},
		},
	}
	p := newTestProcessor(g)

	sub, err := p.Reconfigure(context.Background(), "app-1", "https://new.example.com/hooks")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"stale-1", "stale-2"}, g.deleted)
	assert.Equal(t, "https://new.example.com/hooks", sub.URL)
}

func TestDeleteRemovesSubscription(t *testing.T) {
	g := &fakeWebhookGateway{
		subs: []gateway.Subscription{{ID: "sub-1", URL: "https://example.com/hooks"}},
	}
	p := newTestProcessor(g)

	require.NoError(t, p.Delete(context.Background(), "app-1", "sub-1"))

	subs, err := p.List(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}
