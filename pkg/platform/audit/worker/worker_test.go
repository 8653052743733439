package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "verikeep/pkg/platform/audit"
	auditmem "verikeep/pkg/platform/audit/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisherStampsTimestamp(t *testing.T) {
	pub := NewPublisher(4, discardLogger())

	require.NoError(t, pub.Log(context.Background(), audit.Event{Action: audit.ActionRecordDeleted}))

	event := <-pub.Inbox()
	assert.False(t, event.Timestamp.IsZero())
}

func TestPublisherFullDropsInsteadOfBlocking(t *testing.T) {
	pub := NewPublisher(1, discardLogger())
	ctx := context.Background()

	require.NoError(t, pub.Log(ctx, audit.Event{Action: "first"}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pub.Log(ctx, audit.Event{Action: "second"})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("log blocked on a full buffer")
	}
}

func TestWorkerPersistsEvents(t *testing.T) {
	store := auditmem.NewInMemoryStore()
	pub := NewPublisher(16, discardLogger())
	worker := NewWorker(store, pub.Inbox(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	require.NoError(t, pub.Log(ctx, audit.Event{Action: audit.ActionRecordMarked, Resource: "rec-1"}))
	require.NoError(t, pub.Log(ctx, audit.Event{Action: audit.ActionRecordDeleted, Resource: "rec-1"}))

	require.Eventually(t, func() bool {
		events, err := store.ListRecent(context.Background(), 10)
		return err == nil && len(events) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

type failingStore struct {
	calls chan string
}

func (f *failingStore) Append(_ context.Context, event audit.Event) error {
	f.calls <- event.Action
	return errors.New("disk full")
}

func (f *failingStore) ListRecent(context.Context, int) ([]audit.Event, error) {
	return nil, nil
}

func TestWorkerSurvivesStoreFailures(t *testing.T) {
	store := &failingStore{calls: make(chan string, 4)}
	pub := NewPublisher(16, discardLogger())
	worker := NewWorker(store, pub.Inbox(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	require.NoError(t, pub.Log(ctx, audit.Event{Action: "first"}))
	require.NoError(t, pub.Log(ctx, audit.Event{Action: "second"}))

	assert.Equal(t, "first", <-store.calls)
	assert.Equal(t, "second", <-store.calls, "worker continues past a failed append")
}
