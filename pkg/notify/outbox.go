package notify

import (
	"context"
	"log/slog"
	"time"
)

// Outbox decouples emitting a notification from delivering it. Send enqueues
// and returns; Run delivers through the wrapped Dispatcher with bounded
// retries. The sweep stays testable and fast while delivery gets retry
// semantics it could not have inline.
type Outbox struct {
	inbox   chan Message
	next    Dispatcher
	logger  *slog.Logger
	retries int
	backoff time.Duration
}

func NewOutbox(next Dispatcher, buffer int, logger *slog.Logger) *Outbox {
	if buffer <= 0 {
		buffer = 256
	}
	return &Outbox{
		inbox:   make(chan Message, buffer),
		next:    next,
		logger:  logger,
		retries: 3,
		backoff: 2 * time.Second,
	}
}

// Send enqueues. A full outbox drops the message with a log line; delivery
// is best-effort by contract.
func (o *Outbox) Send(_ context.Context, to, subject, htmlBody string, metadata map[string]string) error {
	msg := Message{To: to, Subject: subject, HTMLBody: htmlBody, Metadata: metadata}
	select {
	case o.inbox <- msg:
	default:
		if o.logger != nil {
			o.logger.Warn("notification outbox full, dropping message", "to", to, "subject", subject)
		}
	}
	return nil
}

// Run delivers queued messages until ctx is cancelled.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-o.inbox:
			o.deliver(ctx, msg)
		}
	}
}

func (o *Outbox) deliver(ctx context.Context, msg Message) {
	var err error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.backoff):
			}
		}
		if err = o.next.Send(ctx, msg.To, msg.Subject, msg.HTMLBody, msg.Metadata); err == nil {
			return
		}
	}
	if o.logger != nil {
		o.logger.Error("notification delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
	}
}
