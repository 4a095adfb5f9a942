package campaign

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatchprocessor "partner-server/internal/dispatch/processor"
	"partner-server/internal/events"
	"partner-server/internal/notifications"
	"partner-server/internal/observability"
	"partner-server/internal/store"
	"partner-server/internal/workers"
)

type fakeCampaignStore struct {
	mu         sync.Mutex
	campaign   store.Campaign
	recipients []store.CampaignRecipient
}

func (f *fakeCampaignStore) GetCampaignByID(_ context.Context, _ uuid.UUID) (store.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.campaign, nil
}

func (f *fakeCampaignStore) UpdateCampaignStatus(_ context.Context, _ uuid.UUID, status string, errorDetails *string) (store.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaign.Status = status
	if errorDetails != nil {
		f.campaign.ErrorDetails = errorDetails
	}
	return f.campaign, nil
}

func (f *fakeCampaignStore) UpdateCampaignProgress(_ context.Context, _ uuid.UUID, sent, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaign.MessagesSent = sent
	f.campaign.MessagesFailed = failed
	return nil
}

func (f *fakeCampaignStore) GetCampaignRecipients(_ context.Context, _ uuid.UUID) ([]store.CampaignRecipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recipients, nil
}

func (f *fakeCampaignStore) setStatus(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaign.Status = status
}

func (f *fakeCampaignStore) snapshot() store.Campaign {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.campaign
}

type fakeDispatcher struct {
	mu     sync.Mutex
	calls  int
	failAt map[int]error // 1-based call number -> error
	onSend func(call int)
}

func (f *fakeDispatcher) Send(_ context.Context, _ dispatchprocessor.SendRequest) (store.MessageLog, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	err := f.failAt[call]
	f.mu.Unlock()

	if f.onSend != nil {
		f.onSend(call)
	}
	if err != nil {
		return store.MessageLog{Status: store.MessageLogStatusFailed}, err
	}
	return store.MessageLog{Status: store.MessageLogStatusSent}, nil
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []notifications.Notification
}

func (f *fakeNotifier) Publish(_ context.Context, n notifications.Notification) {
	f.mu.Lock()
	f.notifications = append(f.notifications, n)
	f.mu.Unlock()
}

func (f *fakeNotifier) byType(eventType string) []notifications.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notifications.Notification
	for _, n := range f.notifications {
		if n.Type == eventType {
			out = append(out, n)
		}
	}
	return out
}

type fakeCompletionEvents struct {
	mu        sync.Mutex
	completed int
	failed    int
}

func (f *fakeCompletionEvents) DispatchCampaignCompleted(_ context.Context, _, _ uuid.UUID, _, _ int) error {
	f.mu.Lock()
	f.completed++
	f.mu.Unlock()
	return nil
}

func (f *fakeCompletionEvents) DispatchCampaignFailed(_ context.Context, _, _ uuid.UUID, _ string) error {
	f.mu.Lock()
	f.failed++
	f.mu.Unlock()
	return nil
}

func testConfig() Config {
	return Config{
		MessageInterval: time.Millisecond,
		PauseInterval:   5 * time.Millisecond,
		PauseTimeout:    100 * time.Millisecond,
	}
}

func newTestFixture(n int) (*fakeCampaignStore, *fakeDispatcher, *fakeNotifier, *fakeCompletionEvents, *Processor, workers.EventMessage) {
	agentID := uuid.New()
	campaignID := uuid.New()

	s := &fakeCampaignStore{
		campaign: store.Campaign{
			ID:              campaignID,
			AgentID:         agentID,
			TemplateID:      uuid.New(),
			Status:          store.CampaignStatusQueued,
			TotalRecipients: n,
		},
	}
	for i := 0; i < n; i++ {
		s.recipients = append(s.recipients, store.CampaignRecipient{
			ID:         uuid.New(),
			CampaignID: campaignID,
			LeadID:     uuid.New(),
			Phone:      "6581234567",
			Position:   i,
		})
	}

	d := &fakeDispatcher{failAt: make(map[int]error)}
	n8 := &fakeNotifier{}
	e := &fakeCompletionEvents{}
	p := NewProcessor(s, d, n8, e, observability.NewLogger(), testConfig())

	campaignIDStr := campaignID.String()
	event := workers.EventMessage{
		ID:         uuid.New().String(),
		Type:       events.EventCampaignStart,
		AgentID:    agentID.String(),
		CampaignID: &campaignIDStr,
	}
	return s, d, n8, e, p, event
}

func TestUninterruptedRunCompletes(t *testing.T) {
	s, d, n, e, p, event := newTestFixture(5)

	require.NoError(t, p.Process(context.Background(), event))

	campaign := s.snapshot()
	assert.Equal(t, store.CampaignStatusCompleted, campaign.Status)
	assert.Equal(t, 5, campaign.MessagesSent)
	assert.Equal(t, 0, campaign.MessagesFailed)
	assert.Equal(t, 5, d.callCount())
	assert.Equal(t, 1, e.completed)
	assert.Len(t, n.byType(notifications.TypeCampaignProgress), 5)
	assert.Len(t, n.byType(notifications.TypeCampaignCompleted), 1)
}

func TestPerRecipientFailuresAreIsolated(t *testing.T) {
	s, d, _, e, p, event := newTestFixture(4)
	d.failAt[2] = assert.AnError

	require.NoError(t, p.Process(context.Background(), event))

	campaign := s.snapshot()
	assert.Equal(t, store.CampaignStatusCompleted, campaign.Status)
	assert.Equal(t, 3, campaign.MessagesSent)
	assert.Equal(t, 1, campaign.MessagesFailed)
	assert.Equal(t, 1, e.completed)
}

func TestCancelStopsWithPartialProgress(t *testing.T) {
	const cancelAfter = 3
	s, d, _, e, p, event := newTestFixture(10)

	d.onSend = func(call int) {
		if call == cancelAfter {
			s.setStatus(store.CampaignStatusFailed)
		}
	}

	require.NoError(t, p.Process(context.Background(), event))

	campaign := s.snapshot()
	assert.Equal(t, store.CampaignStatusFailed, campaign.Status)
	assert.Equal(t, cancelAfter, d.callCount(), "no sends after cancellation")
	assert.Equal(t, cancelAfter, campaign.MessagesSent+campaign.MessagesFailed)
	assert.Zero(t, e.completed)
}

func TestPauseBlocksUntilResumed(t *testing.T) {
	const pauseAfter = 2
	s, d, _, _, p, event := newTestFixture(5)

	var resumeOnce sync.Once
	d.onSend = func(call int) {
		if call == pauseAfter {
			s.setStatus(store.CampaignStatusPaused)
			resumeOnce.Do(func() {
				go func() {
					// Hold the pause across several poll intervals, then
					// resume.
					time.Sleep(20 * time.Millisecond)
					s.setStatus(store.CampaignStatusInProgress)
				}()
			})
		}
	}

	start := time.Now()
	require.NoError(t, p.Process(context.Background(), event))
	elapsed := time.Since(start)

	campaign := s.snapshot()
	assert.Equal(t, store.CampaignStatusCompleted, campaign.Status)
	assert.Equal(t, 5, campaign.MessagesSent)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond, "the paused window must block sends")
}

func TestPauseTimeoutFailsCampaign(t *testing.T) {
	s, d, n, e, p, event := newTestFixture(5)

	d.onSend = func(call int) {
		if call == 1 {
			s.setStatus(store.CampaignStatusPaused)
		}
	}

	require.NoError(t, p.Process(context.Background(), event))

	campaign := s.snapshot()
	assert.Equal(t, store.CampaignStatusFailed, campaign.Status)
	require.NotNil(t, campaign.ErrorDetails)
	assert.Contains(t, *campaign.ErrorDetails, "pause timeout")
	assert.Equal(t, 1, d.callCount())
	assert.Equal(t, 1, e.failed)
	assert.Len(t, n.byType(notifications.TypeCampaignFailed), 1)
}

func TestTerminalCampaignIsNotRerun(t *testing.T) {
	s, d, _, _, p, event := newTestFixture(5)
	s.setStatus(store.CampaignStatusCompleted)

	require.NoError(t, p.Process(context.Background(), event))

	assert.Zero(t, d.callCount())
	assert.Equal(t, store.CampaignStatusCompleted, s.snapshot().Status)
}

func TestUnrelatedEventsAreIgnored(t *testing.T) {
	_, d, _, _, p, event := newTestFixture(3)
	event.Type = events.EventCampaignCompleted

	require.NoError(t, p.Process(context.Background(), event))
	assert.Zero(t, d.callCount())
}
