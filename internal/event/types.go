package event

import "time"

// Event represents a typed event with an occurrence timestamp.
type Event interface {
	Type() string
	Timestamp() time.Time
}

const (
	TypeFileChanged       = "file_changed"
	TypeDispatchStarted   = "dispatch_started"
	TypeDispatchSkipped   = "dispatch_skipped"
	TypeDispatchCompleted = "dispatch_completed"
	TypeDispatchFailed    = "dispatch_failed"
)

// FileEvent represents a filesystem change on a watched transcript.
type FileEvent struct {
	EventType  string    `json:"type"`
	Path       string    `json:"path"`
	Operation  string    `json:"operation"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewFileEvent(path, operation string) FileEvent {
	return FileEvent{
		EventType:  TypeFileChanged,
		Path:       path,
		Operation:  operation,
		OccurredAt: time.Now().UTC(),
	}
}

func (e FileEvent) Type() string         { return e.EventType }
func (e FileEvent) Timestamp() time.Time { return e.OccurredAt }

// DispatchEvent captures one transition of the dispatch pipeline for a file.
type DispatchEvent struct {
	EventType  string    `json:"type"`
	Path       string    `json:"path"`
	Reason     string    `json:"reason,omitempty"`
	Model      string    `json:"model,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewDispatchStarted(path string) DispatchEvent {
	return DispatchEvent{EventType: TypeDispatchStarted, Path: path, OccurredAt: time.Now().UTC()}
}

func NewDispatchSkipped(path, reason string) DispatchEvent {
	return DispatchEvent{EventType: TypeDispatchSkipped, Path: path, Reason: reason, OccurredAt: time.Now().UTC()}
}

func NewDispatchCompleted(path, model string) DispatchEvent {
	return DispatchEvent{EventType: TypeDispatchCompleted, Path: path, Model: model, OccurredAt: time.Now().UTC()}
}

func NewDispatchFailed(path string, err error) DispatchEvent {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return DispatchEvent{EventType: TypeDispatchFailed, Path: path, Error: message, OccurredAt: time.Now().UTC()}
}

func (e DispatchEvent) Type() string         { return e.EventType }
func (e DispatchEvent) Timestamp() time.Time { return e.OccurredAt }
