package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"chargequeue/backend/services/queue-service/internal/models"
)

const deliveryTimeout = 10 * time.Second

// Dispatcher buffers events and hands them to a sink on worker goroutines, so publishers
// never wait on the network.
type Dispatcher struct {
	sink    Sink
	workers int
	queue   chan models.Event
	logger  *zap.Logger

	mu      sync.Mutex
	dropped int
}

// NewDispatcher builds dispatcher.
func NewDispatcher(sink Sink, workers, buffer int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		sink:    sink,
		workers: workers,
		queue:   make(chan models.Event, buffer),
		logger:  logger,
	}
}

// Publish enqueues event. When the buffer is full the event is dropped and logged.
func (d *Dispatcher) Publish(event models.Event) {
	select {
	case d.queue <- event:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.Warn("dropping event, buffer full",
			zap.String("type", string(event.Type)),
			zap.String("requester_id", event.RequesterID),
		)
	}
}

// Dropped returns the number of events lost to a full buffer.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Run delivers events until ctx is done, then drains what is already buffered.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()
	d.drain()
	return nil
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.deliver(event)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := d.sink.Deliver(ctx, event); err != nil {
		d.logger.Warn("event delivery failed",
			zap.String("sink", d.sink.Name()),
			zap.String("type", string(event.Type)),
			zap.String("requester_id", event.RequesterID),
			zap.Error(err),
		)
	}
}
