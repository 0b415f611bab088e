package sink

import (
	"context"
	"fmt"

	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/pkg/logger"
	"github.com/formsense/repkit/pkg/metrics"
)

// Listener consumes one delivered event. Listeners must not block; a slow
// listener stalls delivery to every listener behind it.
type Listener func(ctx context.Context, e model.Event)

// DispatcherOption applies a configuration option to the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the diagnostic logger.
func WithDispatcherLogger(log logger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// Dispatcher drains a queue and fans each event out to every registered
// listener in registration order. A panicking listener is logged and skipped
// for that event; it stays registered.
type Dispatcher struct {
	queue     Queue
	listeners []Listener
	log       logger.Logger

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}
}

// NewDispatcher creates a dispatcher for the given queue.
func NewDispatcher(queue Queue, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:    queue,
		log:      logger.Get().Named("sink"),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers a listener. Subscribe must be called before Run.
func (d *Dispatcher) Subscribe(fn Listener) {
	if fn != nil {
		d.listeners = append(d.listeners, fn)
	}
}

// Run drains the queue until ctx is canceled, Shutdown is called, or the
// queue is closed and empty.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	eventChan := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			d.deliver(ctx, event)
		}
	}
}

// Done is closed when the run loop exits.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Shutdown stops the dispatcher and waits for the run loop to exit.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	close(d.shutdown)

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.log.Warn(ctx, "dispatcher shutdown timed out")
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event model.Event) {
	for _, fn := range d.listeners {
		d.safeCall(ctx, fn, event)
	}
}

func (d *Dispatcher) safeCall(ctx context.Context, fn Listener, event model.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("sink", "listener_panic")
			d.log.Error(ctx, "listener panicked",
				logger.String("event_kind", string(event.Kind)),
				logger.Any("panic", r),
			)
		}
	}()
	fn(ctx, event)
}
