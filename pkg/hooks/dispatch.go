package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
)

var (
	dispatchedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opencodehub",
		Subsystem: "hooks",
		Name:      "dispatched_total",
		Help:      "The total number of dispatched post-receive events",
	})

	droppedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opencodehub",
		Subsystem: "hooks",
		Name:      "dropped_total",
		Help:      "The total number of post-receive events dropped on a full queue",
	})

	consumerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opencodehub",
		Subsystem: "hooks",
		Name:      "consumer_failures_total",
		Help:      "The total number of consumer deliveries that exhausted their retries",
	}, []string{"consumer"})
)

// Dispatcher queues post-receive events and delivers them to its consumers
// from a background worker. Delivery is at-most-once per consumer: a full
// queue drops the event rather than stalling the push that produced it.
type Dispatcher struct {
	queue      chan PostReceiveEvent
	consumers  []Consumer
	maxRetries int
	logger     *log.Logger

	once sync.Once
	wg   sync.WaitGroup
}

// NewDispatcher returns a dispatcher delivering to the given consumers.
func NewDispatcher(cfg config.DispatchConfig, logger *log.Logger, consumers ...Consumer) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 128
	}

	return &Dispatcher{
		queue:      make(chan PostReceiveEvent, size),
		consumers:  consumers,
		maxRetries: cfg.MaxRetries,
		logger:     logger.WithPrefix("hooks"),
	}
}

// Start runs the delivery worker until the context is cancelled or Close is
// called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-d.queue:
				if !ok {
					return
				}
				d.deliver(ctx, event)
			}
		}
	}()
}

// Dispatch enqueues an event without blocking. It reports whether the event
// was accepted; a full queue drops the event.
func (d *Dispatcher) Dispatch(event PostReceiveEvent) bool {
	select {
	case d.queue <- event:
		dispatchedCounter.Inc()
		return true
	default:
		droppedCounter.Inc()
		d.logger.Warn("dispatch queue full, dropping event", "repo", event.Repo.Name)
		return false
	}
}

// Close stops accepting events and waits for the worker to drain the queue.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.queue) })
	d.wg.Wait()
}

// deliver hands the event to every consumer. Consumers run sequentially but
// each inside its own retry loop, so one consumer's failure never skips
// another's delivery.
func (d *Dispatcher) deliver(ctx context.Context, event PostReceiveEvent) {
	for _, c := range d.consumers {
		if err := d.deliverOne(ctx, c, event); err != nil {
			consumerFailures.WithLabelValues(c.Name()).Inc()
			d.logger.Error("consumer failed", "consumer", c.Name(), "repo", event.Repo.Name, "err", err)
		}
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, c Consumer, event PostReceiveEvent) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.Consume(ctx, event)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(d.maxRetries+1)), // nolint: gosec
	)

	return err
}
