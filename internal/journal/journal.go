// Package journal records the dispatch event log: one ISO8601-prefixed line
// per trigger, skip, completion, or error.
package journal

import (
	"fmt"
	"strings"
	"time"
)

type Event string

const (
	EventTriggered Event = "TRIGGERED"
	EventSkipped   Event = "SKIPPED"
	EventCompleted Event = "COMPLETED"
	EventError     Event = "ERROR"
)

// Entry is a single immutable journal record.
type Entry struct {
	At     time.Time `json:"at"`
	Event  Event     `json:"event"`
	Detail string    `json:"detail"`
}

// Sink accepts journal entries. Implementations must be safe for concurrent use.
type Sink interface {
	Record(entry Entry) error
}

// FormatEntry renders an entry as one journal line without the trailing newline.
func FormatEntry(entry Entry) string {
	detail := strings.ReplaceAll(entry.Detail, "\n", " ")
	return fmt.Sprintf("%s %s %s", entry.At.UTC().Format(time.RFC3339), entry.Event, detail)
}

// ParseEntry parses one journal line. Lines that do not match the format are
// rejected rather than guessed at.
func ParseEntry(line string) (Entry, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return Entry{}, fmt.Errorf("malformed journal line: %q", line)
	}

	at, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return Entry{}, fmt.Errorf("malformed journal timestamp %q: %w", parts[0], err)
	}

	event := Event(parts[1])
	switch event {
	case EventTriggered, EventSkipped, EventCompleted, EventError:
	default:
		return Entry{}, fmt.Errorf("unknown journal event %q", parts[1])
	}

	detail := ""
	if len(parts) == 3 {
		detail = parts[2]
	}
	return Entry{At: at, Event: event, Detail: detail}, nil
}

func now() time.Time {
	return time.Now().UTC()
}

// NewEntry builds an entry stamped with the current time.
func NewEntry(event Event, detail string) Entry {
	return Entry{At: now(), Event: event, Detail: detail}
}
