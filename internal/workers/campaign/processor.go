package campaign

import (
	"context"
	"fmt"
	"time"

	dispatchprocessor "partner-server/internal/dispatch/processor"
	"partner-server/internal/events"
	"partner-server/internal/notifications"
	"partner-server/internal/observability"
	"partner-server/internal/store"
	"partner-server/internal/workers"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// CampaignStore defines the database operations required by the orchestrator
type CampaignStore interface {
	GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string, errorDetails *string) (store.Campaign, error)
	UpdateCampaignProgress(ctx context.Context, campaignID uuid.UUID, sent, failed int) error
	GetCampaignRecipients(ctx context.Context, campaignID uuid.UUID) ([]store.CampaignRecipient, error)
}

// Dispatcher sends one template message and logs the attempt.
type Dispatcher interface {
	Send(ctx context.Context, req dispatchprocessor.SendRequest) (store.MessageLog, error)
}

// Notifier pushes best-effort progress events to the tenant's channel.
type Notifier interface {
	Publish(ctx context.Context, notification notifications.Notification)
}

// CompletionEvents records terminal campaign transitions on the event bus.
type CompletionEvents interface {
	DispatchCampaignCompleted(ctx context.Context, agentID, campaignID uuid.UUID, sent, failed int) error
	DispatchCampaignFailed(ctx context.Context, agentID, campaignID uuid.UUID, reason string) error
}

// Config tunes the orchestrator loop.
type Config struct {
	// MessageInterval is the pacing delay between dispatches within one
	// campaign. There is no cross-campaign limit.
	MessageInterval time.Duration

	// PauseInterval is how often a paused campaign re-checks its status.
	PauseInterval time.Duration

	// PauseTimeout bounds how long a campaign may stay paused before it is
	// force-failed.
	PauseTimeout time.Duration
}

// DefaultConfig returns the production loop timings.
func DefaultConfig(messageInterval time.Duration) Config {
	return Config{
		MessageInterval: messageInterval,
		PauseInterval:   5 * time.Second,
		PauseTimeout:    5 * time.Minute,
	}
}

// Processor executes bulk campaigns. One campaign runs serially, one
// recipient at a time; pause and cancel arrive through the durable campaign
// row, re-read before every recipient.
type Processor struct {
	store      CampaignStore
	dispatcher Dispatcher
	notifier   Notifier
	events     CompletionEvents
	logger     *observability.Logger
	config     Config
}

// NewProcessor creates a campaign event processor.
func NewProcessor(s CampaignStore, dispatcher Dispatcher, notifier Notifier, events CompletionEvents, logger *observability.Logger, config Config) *Processor {
	if config.PauseInterval <= 0 {
		config.PauseInterval = 5 * time.Second
	}
	if config.PauseTimeout <= 0 {
		config.PauseTimeout = 5 * time.Minute
	}
	return &Processor{
		store:      s,
		dispatcher: dispatcher,
		notifier:   notifier,
		events:     events,
		logger:     logger,
		config:     config,
	}
}

// Name returns the processor name for logging.
func (p *Processor) Name() string {
	return "campaign"
}

// Process handles one campaign event.
func (p *Processor) Process(ctx context.Context, event workers.EventMessage) error {
	if event.Type != events.EventCampaignStart {
		return nil
	}
	if event.CampaignID == nil {
		return fmt.Errorf("campaign.start event %s carries no campaign id", event.ID)
	}

	campaignID, err := uuid.Parse(*event.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to parse campaign id: %w", err)
	}
	agentID, err := uuid.Parse(event.AgentID)
	if err != nil {
		return fmt.Errorf("failed to parse agent id: %w", err)
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "campaign_id", Value: campaignID},
		observability.Field{Key: "agent_id", Value: agentID},
	)

	if err := p.run(ctx, agentID, campaignID); err != nil {
		// Orchestrator-level failure: the whole campaign fails; partial
		// progress stands in the counters.
		p.fail(ctx, agentID, campaignID, err)
	}
	return nil
}

func (p *Processor) run(ctx context.Context, agentID, campaignID uuid.UUID) error {
	campaign, err := p.store.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	switch campaign.Status {
	case store.CampaignStatusQueued, store.CampaignStatusInProgress:
	default:
		p.logger.Info(ctx, fmt.Sprintf("campaign is %s, nothing to run", campaign.Status))
		return nil
	}

	if _, err := p.store.UpdateCampaignStatus(ctx, campaignID, store.CampaignStatusInProgress, nil); err != nil {
		return fmt.Errorf("failed to mark campaign in progress: %w", err)
	}

	recipients, err := p.store.GetCampaignRecipients(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign recipients: %w", err)
	}

	sent := campaign.MessagesSent
	failed := campaign.MessagesFailed
	total := len(recipients)

	limiter := rate.NewLimiter(rate.Every(p.config.MessageInterval), 1)

	// A redelivered or restarted campaign picks up where the counters
	// left off.
	for i := sent + failed; i < total; i++ {
		proceed, err := p.checkpoint(ctx, agentID, campaignID)
		if err != nil {
			return err
		}
		if !proceed {
			p.logger.Info(ctx, "campaign cancelled, stopping with partial progress")
			return nil
		}

		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("failed waiting on message interval: %w", err)
		}

		recipient := recipients[i]
		leadID := recipient.LeadID
		_, sendErr := p.dispatcher.Send(ctx, dispatchprocessor.SendRequest{
			AgentID:        agentID,
			RecipientPhone: recipient.Phone,
			TemplateID:     campaign.TemplateID,
			Params:         recipient.Params,
			LeadID:         &leadID,
			CampaignID:     &campaignID,
		})
		if sendErr != nil {
			// Per-recipient errors never abort the batch; the message
			// log carries the detail.
			failed++
		} else {
			sent++
		}

		if err := p.store.UpdateCampaignProgress(ctx, campaignID, sent, failed); err != nil {
			return fmt.Errorf("failed to persist campaign progress: %w", err)
		}

		p.notifier.Publish(ctx, notifications.Notification{
			Type:       notifications.TypeCampaignProgress,
			AgentID:    agentID,
			CampaignID: campaignID,
			Data: map[string]any{
				"messages_sent":   sent,
				"messages_failed": failed,
				"total":           total,
				"percent":         percent(sent+failed, total),
			},
		})
	}

	if _, err := p.store.UpdateCampaignStatus(ctx, campaignID, store.CampaignStatusCompleted, nil); err != nil {
		return fmt.Errorf("failed to mark campaign completed: %w", err)
	}

	if err := p.events.DispatchCampaignCompleted(ctx, agentID, campaignID, sent, failed); err != nil {
		p.logger.Error(ctx, "failed to dispatch completion event", err)
	}
	p.notifier.Publish(ctx, notifications.Notification{
		Type:       notifications.TypeCampaignCompleted,
		AgentID:    agentID,
		CampaignID: campaignID,
		Data: map[string]any{
			"messages_sent":   sent,
			"messages_failed": failed,
		},
	})

	p.logger.Info(ctx, fmt.Sprintf("campaign completed: %d sent, %d failed", sent, failed))
	return nil
}

// checkpoint re-reads the durable campaign status before each recipient.
// Returns false when the campaign was cancelled externally.
func (p *Processor) checkpoint(ctx context.Context, agentID, campaignID uuid.UUID) (bool, error) {
	campaign, err := p.store.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return false, fmt.Errorf("failed to re-read campaign status: %w", err)
	}

	switch campaign.Status {
	case store.CampaignStatusInProgress:
		return true, nil
	case store.CampaignStatusFailed:
		return false, nil
	case store.CampaignStatusPaused:
		return p.waitForResume(ctx, agentID, campaignID)
	default:
		return false, nil
	}
}

// waitForResume polls a paused campaign until it is resumed or cancelled.
// A pause that outlives the timeout force-fails the campaign.
func (p *Processor) waitForResume(ctx context.Context, agentID, campaignID uuid.UUID) (bool, error) {
	p.logger.Info(ctx, "campaign paused, waiting for resume")

	deadline := time.Now().Add(p.config.PauseTimeout)
	ticker := time.NewTicker(p.config.PauseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}

		campaign, err := p.store.GetCampaignByID(ctx, campaignID)
		if err != nil {
			return false, fmt.Errorf("failed to poll paused campaign: %w", err)
		}

		switch campaign.Status {
		case store.CampaignStatusInProgress:
			p.logger.Info(ctx, "campaign resumed")
			return true, nil
		case store.CampaignStatusFailed:
			return false, nil
		case store.CampaignStatusPaused:
		default:
			return false, nil
		}

		if time.Now().After(deadline) {
			reason := "pause timeout exceeded"
			if _, err := p.store.UpdateCampaignStatus(ctx, campaignID, store.CampaignStatusFailed, &reason); err != nil {
				return false, fmt.Errorf("failed to fail timed-out campaign: %w", err)
			}
			if err := p.events.DispatchCampaignFailed(ctx, agentID, campaignID, reason); err != nil {
				p.logger.Error(ctx, "failed to dispatch failure event", err)
			}
			p.notifier.Publish(ctx, notifications.Notification{
				Type:       notifications.TypeCampaignFailed,
				AgentID:    agentID,
				CampaignID: campaignID,
				Data:       map[string]any{"reason": reason},
			})
			p.logger.Warn(ctx, "campaign pause timed out, marked failed")
			return false, nil
		}
	}
}

func (p *Processor) fail(ctx context.Context, agentID, campaignID uuid.UUID, cause error) {
	p.logger.Error(ctx, "campaign failed", cause)

	detail := cause.Error()
	if _, err := p.store.UpdateCampaignStatus(ctx, campaignID, store.CampaignStatusFailed, &detail); err != nil {
		p.logger.Error(ctx, "failed to record campaign failure", err)
	}
	if err := p.events.DispatchCampaignFailed(ctx, agentID, campaignID, detail); err != nil {
		p.logger.Error(ctx, "failed to dispatch failure event", err)
	}
	p.notifier.Publish(ctx, notifications.Notification{
		Type:       notifications.TypeCampaignFailed,
		AgentID:    agentID,
		CampaignID: campaignID,
		Data:       map[string]any{"reason": detail},
	})
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
