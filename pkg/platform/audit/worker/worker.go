package worker

import (
	"context"
	"log/slog"
	"time"

	audit "verikeep/pkg/platform/audit"
)

// Publisher is the buffered Sink for production wiring. Log enqueues and
// returns; the paired Worker persists in the background. A full buffer drops
// the event with a log line rather than stalling a sweep. The trail is
// advisory; the state transition is what is authoritative.
type Publisher struct {
	inbox  chan audit.Event
	logger *slog.Logger
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{inbox: make(chan audit.Event, buffer), logger: logger}
}

func (p *Publisher) Log(_ context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		}
	}
	return nil
}

// Inbox exposes the channel for the worker.
func (p *Publisher) Inbox() <-chan audit.Event { return p.inbox }

// Worker consumes audit events from a channel and persists them.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until ctx is cancelled. Store failures are logged and
// the worker keeps going; one bad append must not end the trail.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil && w.logger != nil {
				w.logger.Error("persist audit event", "action", event.Action, "error", err)
			}
		}
	}
}
