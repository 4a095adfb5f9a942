package workers

import (
	"context"

	kafkaclient "partner-server/internal/clients/kafka"
)

// EventMessage is an alias for the Kafka event message type so worker
// packages do not import the kafka client directly.
type EventMessage = kafkaclient.EventMessage

// EventProcessor handles one event. Implementations must be idempotent
// against redelivery; campaign execution re-derives its position from the
// durable campaign row rather than trusting the event.
type EventProcessor interface {
	Process(ctx context.Context, event EventMessage) error

	// Name returns the processor name for logging.
	Name() string
}

// WorkerPool distributes events across a fixed set of workers.
type WorkerPool interface {
	Start(ctx context.Context) error

	// Submit queues an event. Blocks while the queue is full.
	Submit(ctx context.Context, event EventMessage) error

	// Drain stops accepting events and waits for in-flight work.
	Drain(ctx context.Context) error

	Stop()
}
