package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AsyncPublisher queues events for background workers, so Publish returns
// without waiting on push, mail or history writes. When the queue is full
// the event is dropped and logged.
type AsyncPublisher struct {
	next    Publisher
	events  chan Event
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncPublisher(next Publisher, logger *zap.Logger, workers, buffer int, timeout time.Duration) *AsyncPublisher {
	if workers < 1 {
		workers = 1
	}
	p := &AsyncPublisher{
		next:    next,
		events:  make(chan Event, buffer),
		timeout: timeout,
		logger:  logger,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *AsyncPublisher) Publish(_ context.Context, ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("publisher closed, dropping notification", zap.String("event", string(ev.Type)))
		return
	}
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("notification queue full, dropping event",
			zap.String("event", string(ev.Type)),
			zap.Uint("booking_id", ev.BookingID),
		)
	}
}

func (p *AsyncPublisher) run() {
	defer p.wg.Done()
	for ev := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		p.next.Publish(ctx, ev)
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
