package bus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/emberforge/scriptflow/interp"
)

type failingStore struct {
	MemEventStore
}

func (s *failingStore) Append(context.Context, interp.Event) error {
	return errors.New("disk full")
}

func TestStoreSubscriber_PersistsEvents(t *testing.T) {
	store := NewMemEventStore()
	sub := NewStoreSubscriber(store, nil)

	sub.Handle(mkEvent("run", 1))
	sub.Handle(mkEvent("run", 2))

	got, err := store.List(context.Background(), "run", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("stored %d events, want 2", len(got))
	}
}

func TestStoreSubscriber_LogsAppendFailure(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sub := NewStoreSubscriber(&failingStore{}, logger)

	sub.Handle(mkEvent("run", 1))

	if !strings.Contains(buf.String(), "disk full") {
		t.Errorf("log output %q should mention the append error", buf.String())
	}
}
