package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"partner-server/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Notification event types pushed to tenant channels.
const (
	TypeCampaignProgress  = "campaign.progress"
	TypeCampaignCompleted = "campaign.completed"
	TypeCampaignFailed    = "campaign.failed"
)

// Notification is one fire-and-forget push to a tenant's channel.
type Notification struct {
	Type       string         `json:"type"`
	AgentID    uuid.UUID      `json:"agent_id"`
	CampaignID uuid.UUID      `json:"campaign_id"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Publisher pushes notifications over Redis pub/sub. Delivery is best
// effort: a tenant with no connected listener simply misses the event, and
// publish failures are logged, never propagated.
type Publisher struct {
	client *redis.Client
	logger *observability.Logger
}

// NewPublisher creates a notification publisher.
func NewPublisher(client *redis.Client, logger *observability.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// channelFor returns the per-tenant pub/sub channel name.
func channelFor(agentID uuid.UUID) string {
	return fmt.Sprintf("notifications:agent:%s", agentID)
}

// Publish pushes one notification to the agent's channel.
func (p *Publisher) Publish(ctx context.Context, notification Notification) {
	notification.Timestamp = time.Now()

	payload, err := json.Marshal(notification)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal notification", err)
		return
	}

	if err := p.client.Publish(ctx, channelFor(notification.AgentID), payload).Err(); err != nil {
		p.logger.InfoWithError(ctx, "failed to publish notification", err)
	}
}
