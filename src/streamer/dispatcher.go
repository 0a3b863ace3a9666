package streamer

import (
	"context"
	"errors"
	"sync"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/metrics"
	"github.com/tastyware/tastytrade/src/models"
)

const defaultQueueSize = 1024

// ErrStreamerClosed is returned to consumers blocked in GetEvent when the
// streamer shuts down cleanly.
var ErrStreamerClosed = errors.New("streamer closed")

// -----------------------------------------------------------------------------
// Dispatcher fans decoded events out to one bounded queue per event kind.
// Routing never blocks: a full queue drops the new event so a slow consumer
// cannot stall the read loop. Closing delivers the terminal error to every
// blocked consumer by closing the queues.
// -----------------------------------------------------------------------------

type Dispatcher struct {
	Logger *logger.Logger

	queueSize int

	mu     sync.Mutex
	queues map[models.MEventType]chan interfaces.IEvent
	closed bool
	err    error
}

func NewDispatcher(config *models.MConfig) *Dispatcher {
	size := defaultQueueSize
	if config != nil && config.Dispatcher.QueueSize > 0 {
		size = config.Dispatcher.QueueSize
	}
	return &Dispatcher{
		Logger:    logger.NewLogger(config, "Dispatcher"),
		queueSize: size,
		queues:    make(map[models.MEventType]chan interfaces.IEvent),
	}
}

// -----------------------------------------------------------------------------

// Route enqueues one event on its kind's queue, dropping it if the queue is
// full. Events routed after Close are discarded.
func (d *Dispatcher) Route(event interfaces.IEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	kind := event.Kind()
	queue := d.queueLocked(kind)
	select {
	case queue <- event:
		metrics.QueueDepth.WithLabelValues(string(kind)).Set(float64(len(queue)))
	default:
		metrics.DispatcherDrops.WithLabelValues(string(kind)).Inc()
		d.Logger.Warning("Queue full for %s, dropping event for %s", kind, event.Symbol())
	}
}

// -----------------------------------------------------------------------------

// QueueFor returns the receive side of the kind's queue. The same channel is
// returned for the lifetime of the dispatcher, so callers can range over it.
func (d *Dispatcher) QueueFor(kind models.MEventType) <-chan interfaces.IEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queueLocked(kind)
}

// -----------------------------------------------------------------------------

// NextOf blocks until an event of the kind arrives, the context fires, or
// the dispatcher closes.
func (d *Dispatcher) NextOf(ctx context.Context, kind models.MEventType) (interfaces.IEvent, error) {
	queue := d.QueueFor(kind)
	select {
	case event, ok := <-queue:
		if !ok {
			return nil, d.terminalError()
		}
		metrics.QueueDepth.WithLabelValues(string(kind)).Set(float64(len(queue)))
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// -----------------------------------------------------------------------------

// TryNext returns one buffered event of the kind without blocking.
func (d *Dispatcher) TryNext(kind models.MEventType) (interfaces.IEvent, bool) {
	queue := d.QueueFor(kind)
	select {
	case event, ok := <-queue:
		if !ok {
			return nil, false
		}
		return event, true
	default:
		return nil, false
	}
}

// -----------------------------------------------------------------------------

// Close shuts every queue, delivering err (or ErrStreamerClosed when nil) to
// blocked consumers. Idempotent; the first call wins.
func (d *Dispatcher) Close(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	d.err = err
	for _, queue := range d.queues {
		close(queue)
	}
}

// -----------------------------------------------------------------------------

// Err returns the terminal error after Close, nil before.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		return nil
	}
	if d.err == nil {
		return ErrStreamerClosed
	}
	return d.err
}

// -----------------------------------------------------------------------------

func (d *Dispatcher) queueLocked(kind models.MEventType) chan interfaces.IEvent {
	queue, ok := d.queues[kind]
	if !ok {
		queue = make(chan interfaces.IEvent, d.queueSize)
		d.queues[kind] = queue
		if d.closed {
			close(queue)
		}
	}
	return queue
}

func (d *Dispatcher) terminalError() error {
	if err := d.Err(); err != nil {
		return err
	}
	return ErrStreamerClosed
}
