package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

const (
	defaultPublishTimeout  = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// ErrQueueFull is returned by Publish when the buffer has no free slot.
var ErrQueueFull = errors.New("publish queue full")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publish queue closed")

// Pool forwards stored measurements to a downstream publisher from a fixed
// set of background workers, so slow sinks never hold up the caller.
type Pool struct {
	next           domain.MeasurementPublisher
	workerCount    int
	publishTimeout time.Duration
	logger         *infra.Logger

	queue   chan domain.Measurement
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option customises a Pool.
type Option func(*Pool)

// WithPublishTimeout bounds every downstream Publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.publishTimeout = d
		}
	}
}

// New starts workerCount workers reading from a queue of size buffer.
func New(workerCount, buffer int, next domain.MeasurementPublisher, logger *infra.Logger, opts ...Option) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if buffer < 0 {
		buffer = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		next:           next,
		workerCount:    workerCount,
		publishTimeout: defaultPublishTimeout,
		logger:         logger,
		queue:          make(chan domain.Measurement, buffer),
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer p.wg.Done()
			p.workerLoop()
		}()
	}
	return p
}

// Publish enqueues m without blocking.
func (p *Pool) Publish(_ context.Context, m domain.Measurement) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- m:
		return nil
	default:
		infra.IncPublishErrors("queue")
		return ErrQueueFull
	}
}

// Close is Shutdown with the default deadline.
func (p *Pool) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}

// Shutdown stops accepting work and drains the queue until ctx expires. On
// expiry in-flight publishes are cancelled and the remaining items dropped.
// The downstream publisher is closed in both cases.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		p.cancel()
		<-drained
		err = ctx.Err()
		p.logger.Errorf(ctx, "worker: shutdown deadline reached, dropped %d measurements", p.dropped.Load())
	}
	p.cancel()

	return errors.Join(err, p.next.Close())
}

func (p *Pool) workerLoop() {
	for m := range p.queue {
		if p.ctx.Err() != nil {
			p.dropped.Add(1)
			infra.IncPublishErrors("queue")
			continue
		}
		p.process(m)
	}
}

func (p *Pool) process(m domain.Measurement) {
	ctx, cancel := context.WithTimeout(p.ctx, p.publishTimeout)
	defer cancel()

	if err := p.next.Publish(ctx, m); err != nil {
		p.logger.Errorf(ctx, "worker: failed to publish measurement=%d device=%s: %v", m.ID, m.DeviceID, err)
		return
	}
	p.logger.Debugf(ctx, "worker: published measurement=%d device=%s", m.ID, m.DeviceID)
}

var _ domain.MeasurementPublisher = (*Pool)(nil)
