package bus

import (
	"context"
	"log/slog"

	"github.com/emberforge/scriptflow/interp"
)

// StoreSubscriber journals the live interpreter feed into an EventStore,
// usually wired as the interpreter's event handler or drained from a bus
// subscription. A failed write is logged and dropped rather than surfaced:
// the journal is a post-mortem aid and must never stall the game loop.
type StoreSubscriber struct {
	store  EventStore
	logger *slog.Logger
}

// NewStoreSubscriber creates a subscriber persisting into store.
func NewStoreSubscriber(store EventStore, logger *slog.Logger) *StoreSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSubscriber{
		store:  store,
		logger: logger,
	}
}

// Handle persists one event. It matches interp.EventHandler so it can be
// passed straight to interp.WithEventHandler.
func (s *StoreSubscriber) Handle(event interp.Event) {
	if err := s.store.Append(context.Background(), event); err != nil {
		s.logger.Error("failed to persist event",
			slog.String("run_id", event.RunID),
			slog.String("kind", string(event.Kind)),
			slog.Uint64("seq", event.Seq),
			slog.Any("error", err),
		)
	}
}
