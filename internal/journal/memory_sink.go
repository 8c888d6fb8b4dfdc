package journal

import "sync"

// MemorySink collects entries for tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (sink *MemorySink) Record(entry Entry) error {
	if sink == nil {
		return nil
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	sink.entries = append(sink.entries, entry)
	return sink.err
}

func (sink *MemorySink) Entries() []Entry {
	if sink == nil {
		return nil
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	entries := make([]Entry, len(sink.entries))
	copy(entries, sink.entries)
	return entries
}

func (sink *MemorySink) SetError(err error) {
	if sink == nil {
		return
	}
	sink.mu.Lock()
	sink.err = err
	sink.mu.Unlock()
}

// Events returns just the event kinds in record order.
func (sink *MemorySink) Events() []Event {
	entries := sink.Entries()
	events := make([]Event, 0, len(entries))
	for _, entry := range entries {
		events = append(events, entry.Event)
	}
	return events
}
