package events

import (
	"context"
	"fmt"
	"time"

	kafkaclient "partner-server/internal/clients/kafka"
	"partner-server/internal/observability"

	"github.com/google/uuid"
)

// Campaign event types flowing through Kafka.
const (
	EventCampaignStart     = "campaign.start"
	EventCampaignCompleted = "campaign.completed"
	EventCampaignFailed    = "campaign.failed"
)

// EventPublisher publishes raw event messages.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event kafkaclient.EventMessage) error
}

// EventDispatcher builds and publishes typed campaign events.
type EventDispatcher struct {
	producer EventPublisher
	logger   *observability.Logger
}

// NewEventDispatcher creates an event dispatcher.
func NewEventDispatcher(producer EventPublisher, logger *observability.Logger) *EventDispatcher {
	return &EventDispatcher{
		producer: producer,
		logger:   logger,
	}
}

// DispatchCampaignStart signals the worker pool to begin executing a queued
// campaign. This is the handoff point that lets the triggering request
// return immediately.
func (d *EventDispatcher) DispatchCampaignStart(ctx context.Context, agentID, campaignID uuid.UUID) error {
	return d.dispatch(ctx, EventCampaignStart, agentID, campaignID, nil)
}

// DispatchCampaignCompleted records a campaign finishing normally.
func (d *EventDispatcher) DispatchCampaignCompleted(ctx context.Context, agentID, campaignID uuid.UUID, sent, failed int) error {
	return d.dispatch(ctx, EventCampaignCompleted, agentID, campaignID, map[string]interface{}{
		"messages_sent":   sent,
		"messages_failed": failed,
	})
}

// DispatchCampaignFailed records a campaign aborting.
func (d *EventDispatcher) DispatchCampaignFailed(ctx context.Context, agentID, campaignID uuid.UUID, reason string) error {
	return d.dispatch(ctx, EventCampaignFailed, agentID, campaignID, map[string]interface{}{
		"reason": reason,
	})
}

func (d *EventDispatcher) dispatch(ctx context.Context, eventType string, agentID, campaignID uuid.UUID, data map[string]interface{}) error {
	campaignIDStr := campaignID.String()
	event := kafkaclient.EventMessage{
		ID:         uuid.New().String(),
		Type:       eventType,
		AgentID:    agentID.String(),
		CampaignID: &campaignIDStr,
		Data:       data,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	if err := d.producer.PublishEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to dispatch %s event: %w", eventType, err)
	}
	return nil
}
