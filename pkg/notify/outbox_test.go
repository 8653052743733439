package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyDispatcher fails the first failures sends, then succeeds.
type flakyDispatcher struct {
	mu       sync.Mutex
	failures int
	attempts int
	sent     []Message
}

func (f *flakyDispatcher) Send(_ context.Context, to, subject, htmlBody string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("transport unavailable")
	}
	f.sent = append(f.sent, Message{To: to, Subject: subject, HTMLBody: htmlBody, Metadata: metadata})
	return nil
}

func (f *flakyDispatcher) delivered() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOutboxDelivers(t *testing.T) {
	next := &flakyDispatcher{}
	outbox := NewOutbox(next, 8, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = outbox.Run(ctx)
	}()

	require.NoError(t, outbox.Send(ctx, "owner@example.com", "subject", "<p>body</p>", map[string]string{"kind": "test"}))

	require.Eventually(t, func() bool {
		return len(next.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := next.delivered()[0]
	assert.Equal(t, "owner@example.com", got.To)
	assert.Equal(t, "test", got.Metadata["kind"])

	cancel()
	<-done
}

func TestOutboxRetriesUntilDelivery(t *testing.T) {
	next := &flakyDispatcher{failures: 2}
	outbox := NewOutbox(next, 8, discardLogger())
	outbox.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = outbox.Run(ctx) }()

	require.NoError(t, outbox.Send(ctx, "owner@example.com", "subject", "body", nil))

	require.Eventually(t, func() bool {
		return len(next.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOutboxGivesUpAfterBoundedRetries(t *testing.T) {
	next := &flakyDispatcher{failures: 100}
	outbox := NewOutbox(next, 8, discardLogger())
	outbox.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = outbox.Run(ctx) }()

	require.NoError(t, outbox.Send(ctx, "owner@example.com", "subject", "body", nil))

	// 1 initial attempt + 3 retries, nothing delivered.
	require.Eventually(t, func() bool {
		next.mu.Lock()
		defer next.mu.Unlock()
		return next.attempts == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, next.delivered())
}

func TestOutboxFullDropsInsteadOfBlocking(t *testing.T) {
	next := &flakyDispatcher{}
	outbox := NewOutbox(next, 1, discardLogger())

	// No Run loop draining; the second send must not block.
	ctx := context.Background()
	require.NoError(t, outbox.Send(ctx, "a@example.com", "s", "b", nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = outbox.Send(ctx, "b@example.com", "s", "b", nil)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked on a full outbox")
	}
}
