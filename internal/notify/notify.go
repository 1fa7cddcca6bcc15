// Package notify delivers lifecycle notices to users after the triggering change has been committed.
// Delivery is asynchronous and best effort: failures are logged and never reported to the caller.
package notify

import (
	"context"
	"fmt"
	"procurement/internal/config"
	"procurement/internal/models"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const deliveryTimeout = 10 * time.Second

// Notice is a single event addressed to one user.
type Notice struct {
	Event     models.NotificationEvent
	Recipient string
	TenderId  string
	BidId     string
	Payload   map[string]any
}

// Channel is one delivery medium. Deliver must be safe for concurrent use.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notice) error
}

// Dispatcher queues notices and fans each one out to every channel from a fixed pool of workers.
type Dispatcher struct {
	channels []Channel
	queue    chan Notice
	log      logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(cfg config.NotifyConfig, log logrus.FieldLogger, channels ...Channel) *Dispatcher {
	workers, size := cfg.Workers, cfg.QueueSize
	if workers <= 0 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}

	d := &Dispatcher{
		channels: channels,
		queue:    make(chan Notice, size),
		log:      log.WithField("component", "notify"),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}

	return d
}

// Notify enqueues n without blocking. When the queue is full or the dispatcher is closed the notice is dropped.
// Cancellation of ctx does not affect delivery.
func (d *Dispatcher) Notify(ctx context.Context, n Notice) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fields := logrus.Fields{"event": n.Event, "recipient": n.Recipient, "tender": n.TenderId}
	if d.closed {
		d.log.WithFields(fields).Warn("dispatcher closed, notice dropped")
		return
	}

	select {
	case d.queue <- n:
	default:
		d.log.WithFields(fields).Warn("notification queue is full, notice dropped")
	}
}

// Close stops accepting notices and waits until the queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	log := d.log.WithFields(logrus.Fields{"event": n.Event, "recipient": n.Recipient, "tender": n.TenderId})

	var g errgroup.Group
	for _, ch := range d.channels {
		g.Go(func() error {
			err := ch.Deliver(ctx, n)
			if err != nil {
				log.WithError(err).WithField("channel", ch.Name()).Error("notice delivery failed")
				return fmt.Errorf("notify.Dispatcher.deliver: %s: %w", ch.Name(), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err == nil {
		log.Debug("notice delivered")
	}
}
