package notify

import (
	"context"
	"sync"
	"time"

	"github.com/perivi8/Business-Guru-Backend/internal/observability"
)

const (
	queueSize   = 256
	sendTimeout = 30 * time.Second
)

type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers one message to its recipients.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher queues messages and delivers them on a background worker so
// callers never wait on the email provider. Delivery is best-effort: a full
// queue or a failed send is logged and dropped, never retried by the core.
type Dispatcher struct {
	sender Sender
	logger *observability.Logger
	queue  chan Message

	closeOnce sync.Once
	done      chan struct{}
}

func NewDispatcher(sender Sender, logger *observability.Logger) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan Message, queueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch enqueues a message without blocking.
func (d *Dispatcher) Dispatch(msg Message) {
	if len(msg.To) == 0 {
		return
	}

	select {
	case d.queue <- msg:
	default:
		d.logger.Error("notify_queue_full", map[string]any{"subject": msg.Subject})
	}
}

// Close stops the worker after draining queued messages.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := d.sender.Send(ctx, msg)
		cancel()

		if err != nil {
			d.logger.Error("notify_send_failed", map[string]any{
				"subject":    msg.Subject,
				"recipients": len(msg.To),
				"error":      err.Error(),
			})
			continue
		}

		d.logger.Info("notify_sent", map[string]any{
			"subject":    msg.Subject,
			"recipients": len(msg.To),
		})
	}
}

// NopSender is used when no email provider is configured.
type NopSender struct{}

func (NopSender) Send(ctx context.Context, msg Message) error {
	return nil
}
