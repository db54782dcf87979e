package notify

import (
	"context"
	"sync"
	"time"

	"libraverse/internal/platform/logger"
)

const sendTimeout = 10 * time.Second

// Dispatcher decouples notification delivery from the request path. A
// single worker drains the queue; Enqueue never blocks the caller.
type Dispatcher struct {
	notifier Notifier
	log      *logger.Logger

	mu     sync.Mutex
	queue  chan Message
	closed bool
	done   chan struct{}
}

// NewDispatcher creates a dispatcher with the given queue capacity and
// starts its worker.
func NewDispatcher(notifier Notifier, log *logger.Logger, buffer int) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		notifier: notifier,
		log:      log,
		queue:    make(chan Message, buffer),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue queues a message for delivery. When the buffer is full the
// message is dropped and logged; a committed operation must never wait on
// the mail server.
func (d *Dispatcher) Enqueue(msg Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Warn("notification dropped, dispatcher closed", "kind", msg.Kind, "book", msg.BookName)
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.log.Warn("notification dropped, queue full", "kind", msg.Kind, "book", msg.BookName)
	}
}

// Close stops accepting messages, drains the queue, and waits for the
// worker to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := d.notifier.Send(ctx, msg); err != nil {
			d.log.Warn("notification delivery failed",
				"kind", msg.Kind,
				"book", msg.BookName,
				"error", err,
			)
		}
		cancel()
	}
}
