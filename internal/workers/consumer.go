package workers

import (
	"context"

	kafkaclient "partner-server/internal/clients/kafka"
	"partner-server/internal/observability"
)

// Consumer feeds Kafka events into a worker pool. Offsets are committed on
// handoff rather than on completion: the campaign processor re-derives all
// progress from the durable campaign row, so a lost in-flight event leaves a
// queued campaign that can be restarted, never a double send.
type Consumer struct {
	consumer *kafkaclient.Consumer
	pool     WorkerPool
	logger   *observability.Logger
}

// NewConsumer wires a Kafka consumer to a worker pool.
func NewConsumer(consumer *kafkaclient.Consumer, pool WorkerPool, logger *observability.Logger) *Consumer {
	return &Consumer{
		consumer: consumer,
		pool:     pool,
		logger:   logger,
	}
}

// Start runs the pool and the consume loop until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.pool.Start(ctx); err != nil {
		return err
	}

	return c.consumer.ConsumeEvents(ctx, func(ctx context.Context, event EventMessage) error {
		return c.pool.Submit(ctx, event)
	})
}

// Stop drains the pool and closes the Kafka reader.
func (c *Consumer) Stop(ctx context.Context) {
	if err := c.pool.Drain(ctx); err != nil {
		c.logger.Error(ctx, "failed to drain worker pool", err)
	}
	if err := c.consumer.Close(); err != nil {
		c.logger.Error(ctx, "failed to close kafka consumer", err)
	}
}
