package worker

import (
	"context"
	"log/slog"
	"time"

	"custos/internal/audit"
)

// Worker consumes audit events from the publisher channel and persists
// them. A failed append is logged and skipped; the audit trail is best
// effort and must never take the worker down with it.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run processes events until ctx is cancelled, then drains whatever is
// still buffered before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

// drain flushes buffered events after shutdown began. It uses a detached
// context with a short deadline so in-flight audit records survive a
// graceful stop without holding it up indefinitely.
func (w *Worker) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	for {
		select {
		case event := <-w.inbox:
			w.append(drainCtx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event audit.Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "append audit event",
			"error", err,
			"event", string(event.Event),
			"subject", event.Subject)
	}
}
