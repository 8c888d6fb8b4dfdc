// Package responder defines the reply-generation capability and its
// implementations. The dispatch pipeline only sees the interface; whether the
// reply comes from an external CLI agent or an API call is configuration.
package responder

import (
	"context"
	"errors"
	"time"
)

var ErrNoResponder = errors.New("no responder configured")

// Request carries everything a responder needs for one dispatch.
type Request struct {
	// Path is the absolute path of the transcript file.
	Path string
	// Instruction is the rendered prompt directing the responder.
	Instruction string
	// Transcript is the full file content, for responders that cannot read
	// the file themselves.
	Transcript string
	// LatestTurn is the body of the newest human turn.
	LatestTurn string
}

// Reply is the outcome of a responder invocation.
type Reply struct {
	// Text is the reply body. Empty when the responder appended directly.
	Text string
	// Model names the model or binary that produced the reply.
	Model string
	// AppendedByResponder is true when the responder wrote to the file
	// itself, so the caller must not append again.
	AppendedByResponder bool
	// Output is combined stdout/stderr from external processes, kept for
	// journaling on failure.
	Output string
	// Duration is how long the invocation took.
	Duration time.Duration
}

// Responder generates a reply for a transcript. Implementations must honor
// context cancellation.
type Responder interface {
	Respond(ctx context.Context, request Request) (Reply, error)
}
