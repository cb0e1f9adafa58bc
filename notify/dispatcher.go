package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/event-participation/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBufferSize = 256
	DefaultWorkers    = 2

	deliveryTimeout = 10 * time.Second
)

// Sink delivers one event to an external system.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to sinks from a bounded queue. Publish never
// blocks: when the queue is full the event is dropped and counted.
type Dispatcher struct {
	queue   chan Event
	sinks   []Sink
	workers int
	logger  *slog.Logger
}

func NewDispatcher(logger *slog.Logger, bufferSize, workers int, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:   make(chan Event, bufferSize),
		sinks:   sinks,
		workers: workers,
		logger:  logger,
	}
}

func (d *Dispatcher) Publish(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case d.queue <- ev:
	default:
		metrics.NotificationsDropped.Inc()
		d.logger.Warn("notification queue full, dropping event",
			slog.String("type", string(ev.Type)),
			slog.Int("event_id", ev.EventID))
	}
}

// Run starts the workers and blocks until ctx is cancelled. Events still
// queued at that point are delivered before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				case <-gctx.Done():
					d.drain()
					return nil
				}
			}
		})
	}
	return g.Wait()
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := sink.Deliver(ctx, ev)
		cancel()

		if err != nil {
			metrics.NotificationsDelivered.WithLabelValues(sink.Name(), "error").Inc()
			d.logger.Warn("notification delivery failed",
				slog.String("sink", sink.Name()),
				slog.String("type", string(ev.Type)),
				slog.Any("error", err))
			continue
		}
		metrics.NotificationsDelivered.WithLabelValues(sink.Name(), "ok").Inc()
	}
}
