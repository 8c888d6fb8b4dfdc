// Package transcript models the plain-text dialogue files the automation
// watches: turns separated by a delimiter line, with an automated turn
// terminated by a sentinel marker awaiting the next human reply.
package transcript

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// AwaitingMarker is the sentinel line a completed automated turn ends with.
	AwaitingMarker = "<!-- AWAITING_REPLY -->"

	// TurnDelimiter is the exact line separating turns.
	TurnDelimiter = "---"

	// MarkerTailWindow is how many trailing lines are inspected for the sentinel.
	MarkerTailWindow = 5
)

var ErrEmptyPath = errors.New("transcript path is empty")

// Turn is one segment of a dialogue transcript.
type Turn struct {
	Index     int
	Body      string
	Automated bool
}

// Turns splits content on exact delimiter lines. Empty segments are dropped.
func Turns(content string) []Turn {
	lines := strings.Split(content, "\n")
	var turns []Turn
	var current []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(current, "\n"))
		current = current[:0]
		if body == "" {
			return
		}
		turns = append(turns, Turn{
			Index:     len(turns),
			Body:      body,
			Automated: strings.Contains(body, AwaitingMarker),
		})
	}

	for _, line := range lines {
		if strings.TrimRight(line, "\r") == TurnDelimiter {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return turns
}

// LatestHumanTurn returns the last turn not produced by the automation.
func LatestHumanTurn(content string) (Turn, bool) {
	turns := Turns(content)
	for i := len(turns) - 1; i >= 0; i-- {
		if !turns[i].Automated {
			return turns[i], true
		}
	}
	return Turn{}, false
}

// HasAwaitingMarker reports whether any of the lines contains the sentinel.
func HasAwaitingMarker(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, AwaitingMarker) {
			return true
		}
	}
	return false
}

// AwaitingReply reports whether the file tail carries the sentinel, meaning
// the automation already replied and is waiting on a human.
func AwaitingReply(path string) (bool, error) {
	lines, err := TailLines(path, MarkerTailWindow)
	if err != nil {
		return false, err
	}
	return HasAwaitingMarker(lines), nil
}

// AppendReply appends a delimited, timestamped reply block terminated by the
// sentinel. The file is opened append-only; existing content is never touched.
func AppendReply(path, reply string, now time.Time) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}

	block := FormatReplyBlock(reply, now)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript %s: %w", path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(block); err != nil {
		return fmt.Errorf("append reply to %s: %w", path, err)
	}
	return nil
}

// FormatReplyBlock renders the reply block AppendReply writes.
func FormatReplyBlock(reply string, now time.Time) string {
	builder := strings.Builder{}
	builder.WriteString("\n")
	builder.WriteString(TurnDelimiter)
	builder.WriteString("\n\n")
	builder.WriteString("## Reply (")
	builder.WriteString(now.UTC().Format(time.RFC3339))
	builder.WriteString(")\n\n")
	builder.WriteString(strings.TrimRight(reply, "\n"))
	builder.WriteString("\n\n")
	builder.WriteString(AwaitingMarker)
	builder.WriteString("\n")
	return builder.String()
}
