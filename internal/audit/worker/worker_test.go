package worker_test

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

	"custos/internal/audit"
	"custos/internal/audit/store/memory"
	"custos/internal/audit/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_PersistsEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 10)
	w := worker.New(store, inbox, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	inbox <- audit.Event{Event: audit.EventUserRegistered, Subject: "user-1"}
	inbox <- audit.Event{Event: audit.EventStatusUpdated, Subject: "user-1"}

	require.Eventually(t, func() bool {
		events, err := store.ListBySubject(context.Background(), "user-1")
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorker_DrainsBufferOnShutdown(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 10)
	w := worker.New(store, inbox, discardLogger())

	for i := 0; i < 5; i++ {
		inbox <- audit.Event{Event: audit.EventTokensMinted, Subject: "mint"}
	}

	// Cancelled before Run starts: everything must still land via the drain.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	events, err := store.ListBySubject(context.Background(), "mint")
	require.NoError(t, err)
	assert.Len(t, events, 5, "buffered events should be drained on shutdown")
}

type failingStore struct {
	mu       sync.Mutex
	failures int
	appended []audit.Event
}

func (s *failingStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.appended = append(s.appended, event)
	return nil
}

func (s *failingStore) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, nil
}

func (s *failingStore) ListRecent(context.Context, int) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event{}, s.appended...), nil
}

func TestWorker_ContinuesAfterAppendFailure(t *testing.T) {
	store := &failingStore{failures: 1}
	inbox := make(chan audit.Event, 10)
	w := worker.New(store, inbox, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	inbox <- audit.Event{Event: audit.EventAccountFrozen}
	inbox <- audit.Event{Event: audit.EventAccountThawed}

	require.Eventually(t, func() bool {
		events, _ := store.ListRecent(context.Background(), 10)
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)

	events, _ := store.ListRecent(context.Background(), 10)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventAccountThawed, events[0].Event, "second event survives the first append failure")

	cancel()
	<-done
}
