// Package notify is the outbound notification port. Sends are best-effort
// and advisory: a failed send never rolls back the state transition that
// prompted it.
package notify

//go:generate mockgen -source=notify.go -destination=mocks/mocks.go -package=mocks Dispatcher

import (
	"context"
	"log/slog"
	"sync"
)

// Message is one outbound notification.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	Metadata map[string]string
}

// Dispatcher sends a notification. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, htmlBody string, metadata map[string]string) error
}

// LogDispatcher writes sends to the log. It stands in wherever a real mail
// transport is not configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, to, subject, _ string, metadata map[string]string) error {
	d.logger.Info("notification dispatched", "to", to, "subject", subject, "metadata", metadata)
	return nil
}

// Recorder captures sends for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	// Fail, when set, makes Send return this error for matching recipients
	// (empty FailTo fails everyone).
	Fail   error
	FailTo string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, to, subject, htmlBody string, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil && (r.FailTo == "" || r.FailTo == to) {
		return r.Fail
	}
	r.sent = append(r.sent, Message{To: to, Subject: subject, HTMLBody: htmlBody, Metadata: metadata})
	return nil
}

// Sent returns a copy of everything delivered so far.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message{}, r.sent...)
}

// SentTo filters deliveries by recipient.
func (r *Recorder) SentTo(to string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.sent {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}
