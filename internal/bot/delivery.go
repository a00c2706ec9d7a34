package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Pool defaults; delivery units are short-lived network calls, so a small
// worker count with a modest queue is enough headroom for bursts.
const (
	DefaultPoolWorkers = 4
	DefaultPoolQueue   = 64
)

// DeliveryPool runs synthesize-and-deliver units off the webhook request
// path. It is bounded so load cannot spawn unbounded goroutines, and it is
// drained on shutdown so in-flight deliveries complete.
type DeliveryPool struct {
	jobs     chan func(context.Context)
	workerWG sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
}

// NewDeliveryPool starts a pool with the given worker count and queue size.
func NewDeliveryPool(workers, queueSize int) *DeliveryPool {
	if workers <= 0 {
		workers = DefaultPoolWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultPoolQueue
	}

	p := &DeliveryPool{jobs: make(chan func(context.Context), queueSize)}
	p.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	slog.Debug("DeliveryPool started", "workers", workers, "queue", queueSize)
	return p
}

func (p *DeliveryPool) worker() {
	defer p.workerWG.Done()
	// Delivery units are detached from the webhook request's cancellation
	// scope; they run to their own completion.
	for job := range p.jobs {
		job(context.Background())
	}
}

// Submit queues a delivery unit. Returns false when the pool is saturated or
// stopped; the unit is dropped, which matches the accepted no-audio-arrives
// failure mode.
func (p *DeliveryPool) Submit(job func(context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		slog.Warn("DeliveryPool dropping unit (pool stopped)")
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		slog.Warn("DeliveryPool saturated, dropping delivery unit")
		return false
	}
}

// Shutdown stops accepting units, drains queued units, and waits for workers
// to finish or ctx to expire.
func (p *DeliveryPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Debug("DeliveryPool drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("delivery pool shutdown timed out: %w", ctx.Err())
	}
}
