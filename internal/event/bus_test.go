package event

import (
	"context"
	"strings"
	"testing"

	"intaked/internal/metrics"
)

func newTestBus(t *testing.T, opts BusOptions) *Bus[Event] {
	t.Helper()
	if opts.Registry == nil {
		opts.Registry = &metrics.Registry{}
	}
	bus := NewBus[Event](context.Background(), opts)
	t.Cleanup(bus.Close)
	return bus
}

func TestPublishReachesSubscriber(t *testing.T) {
	bus := newTestBus(t, BusOptions{Name: "test"})
	events, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(NewDispatchStarted("/intake/a.md"))

	e := <-events
	if e.Type() != TypeDispatchStarted {
		t.Fatalf("unexpected event type %q", e.Type())
	}
}

func TestSubscribeTypesFilters(t *testing.T) {
	bus := newTestBus(t, BusOptions{Name: "test"})
	events, cancel := bus.SubscribeTypes(TypeDispatchCompleted)
	defer cancel()

	bus.Publish(NewDispatchStarted("/intake/a.md"))
	bus.Publish(NewDispatchCompleted("/intake/a.md", "cli"))

	e := <-events
	if e.Type() != TypeDispatchCompleted {
		t.Fatalf("filter leaked %q", e.Type())
	}
	select {
	case extra := <-events:
		t.Fatalf("unexpected extra event %v", extra)
	default:
	}
}

func TestFullSubscriberDropsAndCounts(t *testing.T) {
	registry := &metrics.Registry{}
	bus := newTestBus(t, BusOptions{Name: "drops", SubscriberBufferSize: 1, Registry: registry})
	_, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(NewDispatchStarted("/a.md"))
	bus.Publish(NewDispatchStarted("/b.md"))
	bus.Publish(NewDispatchStarted("/c.md"))
	// buffer holds one; two drops expected, visible via the registry text.
	out := &testWriter{}
	if err := registry.WritePrometheus(out); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if !out.contains(`intaked_events_dropped_total{bus="drops"} 2`) {
		t.Fatalf("expected 2 drops, got:\n%s", out.String())
	}
}

func TestHistoryReplay(t *testing.T) {
	bus := newTestBus(t, BusOptions{Name: "history", HistorySize: 3})

	for _, path := range []string{"/a.md", "/b.md", "/c.md", "/d.md"} {
		bus.Publish(NewDispatchStarted(path))
	}

	history := bus.History(0)
	if len(history) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(history))
	}
	first, ok := history[0].(DispatchEvent)
	if !ok || first.Path != "/b.md" {
		t.Fatalf("oldest retained event should be /b.md, got %+v", history[0])
	}

	last := bus.History(1)
	if len(last) != 1 {
		t.Fatalf("expected 1 event, got %d", len(last))
	}
	if e := last[0].(DispatchEvent); e.Path != "/d.md" {
		t.Fatalf("expected newest event, got %+v", e)
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus := newTestBus(t, BusOptions{Name: "closed"})
	events, cancel := bus.Subscribe()
	defer cancel()

	bus.Close()
	bus.Publish(NewDispatchStarted("/a.md"))

	if _, open := <-events; open {
		t.Fatal("subscriber channel should be closed")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := newTestBus(t, BusOptions{Name: "cancel"})
	events, cancel := bus.Subscribe()
	cancel()
	if _, open := <-events; open {
		t.Fatal("cancel must close the channel")
	}
	if bus.SubscriberCount() != 0 {
		t.Fatal("subscriber not removed")
	}
}

type testWriter struct {
	data []byte
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *testWriter) String() string { return string(w.data) }

func (w *testWriter) contains(s string) bool {
	return strings.Contains(w.String(), s)
}
