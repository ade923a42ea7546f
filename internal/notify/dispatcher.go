package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultQueueSize = 256

var (
	ErrQueueFull        = errors.New("notification queue is full")
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

// Dispatcher queues events and delivers them to Sink from a background
// goroutine, so Notify never waits on the network. Delivery failures are
// logged by the worker.
type Dispatcher struct {
	sink  Sink
	log   logrus.FieldLogger
	queue chan Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink Sink, size int, log logrus.FieldLogger) *Dispatcher {
	if size <= 0 {
		size = defaultQueueSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Dispatcher{
		sink:  sink,
		log:   log,
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues evt. It fails with ErrQueueFull instead of blocking.
func (d *Dispatcher) Notify(_ context.Context, evt Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- evt:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for evt := range d.queue {
		if err := d.sink.Notify(context.Background(), evt); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"kind":          evt.Kind,
				"task_id":       evt.TaskID,
				"submission_id": evt.SubmissionID,
			}).Warn("notification delivery failed")
		}
	}
}

// Close stops accepting events and waits until the queued ones are delivered.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
	return nil
}
