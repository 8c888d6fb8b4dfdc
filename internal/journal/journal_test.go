package journal

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFormatAndParseRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	entry := Entry{At: at, Event: EventTriggered, Detail: "/intake/dialogue.md"}

	line := FormatEntry(entry)
	if line != "2026-08-30T09:30:00Z TRIGGERED /intake/dialogue.md" {
		t.Fatalf("unexpected line: %q", line)
	}

	parsed, err := ParseEntry(line)
	if err != nil {
		t.Fatalf("ParseEntry: %v", err)
	}
	if parsed != entry {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, entry)
	}
}

func TestFormatEntryFlattensNewlines(t *testing.T) {
	entry := NewEntry(EventError, "line one\nline two")
	line := FormatEntry(entry)
	if strings.Contains(line, "\n") {
		t.Fatalf("detail must stay on one line: %q", line)
	}
}

func TestParseEntryRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-a-timestamp TRIGGERED x",
		"2026-08-30T09:30:00Z NOPE detail",
		"2026-08-30T09:30:00Z",
	}
	for _, line := range cases {
		if _, err := ParseEntry(line); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
}

func TestFileSinkAppendsInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intake.log")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	events := []Event{EventTriggered, EventCompleted, EventSkipped}
	for _, event := range events {
		if err := sink.Record(NewEntry(event, "dialogue.md")); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := ReadLast(path, 0)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}
	if len(entries) != len(events) {
		t.Fatalf("expected %d entries, got %d", len(events), len(entries))
	}
	for i, event := range events {
		if entries[i].Event != event {
			t.Fatalf("entry %d: expected %s, got %s", i, event, entries[i].Event)
		}
	}
}

func TestFileSinkConcurrentWritersKeepLinesWhole(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intake.log")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				if err := sink.Record(NewEntry(EventTriggered, "concurrent.md")); err != nil {
					t.Errorf("Record: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != writers*perWriter {
		t.Fatalf("expected %d lines, got %d", writers*perWriter, len(lines))
	}
	for _, line := range lines {
		if _, err := ParseEntry(line); err != nil {
			t.Fatalf("interleaved line %q: %v", line, err)
		}
	}
}

func TestFileSinkRecordAfterClose(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(filepath.Join(dir, "intake.log"))
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.Record(NewEntry(EventTriggered, "x")); err != ErrSinkClosed {
		t.Fatalf("expected ErrSinkClosed, got %v", err)
	}
}

func TestReadLastLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intake.log")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := sink.Record(NewEntry(EventCompleted, "x")); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	sink.Close()

	entries, err := ReadLast(path, 3)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestReadLastMissingFile(t *testing.T) {
	entries, err := ReadLast(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err != nil {
		t.Fatalf("missing journal should not error: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries, got %v", entries)
	}
}
