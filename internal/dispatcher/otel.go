package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/opencity/sandbox/internal/dispatcher"

// instrument creates the dispatcher's counters and the per-action queue
// depth gauge on m. A no-op meter is fine.
func (d *Dispatcher) instrument(m metric.Meter) error {
	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Events waiting in buffered action queues"),
	)
	if err != nil {
		return fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for name, buf := range d.buffers {
			o.ObserveInt64(d.queueSize, int64(len(buf)),
				metric.WithAttributes(attribute.String("action", name)))
		}
		return nil
	}, d.queueSize)
	if err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.actions.processed",
		metric.WithDescription("Actions and commands handled"),
	)
	if err != nil {
		return fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.actions.dropped",
		metric.WithDescription("Events dropped because a buffered queue was full"),
	)
	if err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}
	return nil
}
