package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"partner-server/internal/observability"
)

// PoolConfig holds configuration for the worker pool.
type PoolConfig struct {
	// NumWorkers is the number of concurrent workers. One worker runs at
	// most one campaign at a time.
	NumWorkers int

	// QueueSize is the event queue buffer; Submit blocks when it is full.
	QueueSize int

	// DrainTimeout bounds the wait for in-flight events during shutdown.
	DrainTimeout time.Duration
}

// DefaultPoolConfig returns sensible defaults for a worker pool.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:   4,
		QueueSize:    64,
		DrainTimeout: 30 * time.Second,
	}
}

type pool struct {
	config    PoolConfig
	processor EventProcessor
	logger    *observability.Logger

	eventChan chan EventMessage
	wg        sync.WaitGroup

	mu       sync.Mutex
	started  bool
	draining bool
	stopped  bool
	cancelFn context.CancelFunc
}

// NewPool creates a worker pool for processing events.
func NewPool(config PoolConfig, processor EventProcessor, logger *observability.Logger) WorkerPool {
	defaults := DefaultPoolConfig()
	if config.NumWorkers <= 0 {
		config.NumWorkers = defaults.NumWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaults.DrainTimeout
	}

	return &pool{
		config:    config,
		processor: processor,
		logger:    logger,
		eventChan: make(chan EventMessage, config.QueueSize),
	}
}

// Start launches the worker goroutines.
func (p *pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	if p.stopped {
		return fmt.Errorf("worker pool already stopped")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	p.cancelFn = cancel
	p.started = true

	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.worker(workerCtx, i)
	}

	p.logger.Info(ctx, fmt.Sprintf("started %d workers for %s processor",
		p.config.NumWorkers, p.processor.Name()))
	return nil
}

// Submit queues an event for processing.
func (p *pool) Submit(ctx context.Context, event EventMessage) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return fmt.Errorf("worker pool not started")
	}
	if p.draining || p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("worker pool is shutting down")
	}
	p.mu.Unlock()

	select {
	case p.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain stops accepting events and waits for in-flight events to finish.
func (p *pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.draining {
		p.mu.Unlock()
		return fmt.Errorf("worker pool not running")
	}
	p.draining = true
	p.mu.Unlock()

	close(p.eventChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	drainCtx, cancel := context.WithTimeout(ctx, p.config.DrainTimeout)
	defer cancel()

	select {
	case <-done:
		p.logger.Info(ctx, fmt.Sprintf("drained worker pool for %s processor", p.processor.Name()))
		return nil
	case <-drainCtx.Done():
		p.logger.Warn(ctx, fmt.Sprintf("drain timeout exceeded for %s processor, forcing shutdown", p.processor.Name()))
		p.Stop()
		return fmt.Errorf("drain timeout exceeded")
	}
}

// Stop immediately stops all workers.
func (p *pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true

	if p.cancelFn != nil {
		p.cancelFn()
	}
	if !p.draining {
		close(p.eventChan)
	}
}

func (p *pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	workerCtx := observability.WithFields(ctx,
		observability.Field{Key: "worker_id", Value: workerID},
		observability.Field{Key: "processor", Value: p.processor.Name()},
	)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.eventChan:
			if !ok {
				return
			}

			eventCtx := observability.WithFields(workerCtx,
				observability.Field{Key: "event_id", Value: event.ID},
				observability.Field{Key: "event_type", Value: event.Type},
				observability.Field{Key: "agent_id", Value: event.AgentID},
			)

			if err := p.processor.Process(eventCtx, event); err != nil {
				p.logger.Error(eventCtx, "failed to process event", err)
			}
		}
	}
}
