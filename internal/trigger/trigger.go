// Package trigger implements the watch-trigger operation: given a changed
// transcript path, decide whether to dispatch a responder, invoke it, and
// record the outcome in the journal and the state store.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"intaked/internal/journal"
	"intaked/internal/logging"
	"intaked/internal/metrics"
	"intaked/internal/prompt"
	"intaked/internal/responder"
	"intaked/internal/state"
	"intaked/internal/transcript"
)

var (
	ErrMissingPath = errors.New("file path argument is required")
	ErrNotFound    = errors.New("watched file does not exist")
)

// Outcome describes what a trigger pass did.
type Outcome string

const (
	OutcomeDispatched       Outcome = "dispatched"
	OutcomeSkippedAwaiting  Outcome = "skipped_awaiting_reply"
	OutcomeSkippedUnchanged Outcome = "skipped_unchanged"
)

const (
	skipReasonAwaiting  = "awaiting_reply"
	skipReasonUnchanged = "unchanged"
)

// Runner executes trigger passes. States and Registry are optional; Journal
// and Responder are required for dispatch.
type Runner struct {
	Responder responder.Responder
	Journal   journal.Sink
	States    *state.Store
	Prompts   *prompt.Renderer
	Provider  string
	Logger    *logging.Logger
	Registry  *metrics.Registry
	Now       func() time.Time
}

// Trigger runs one pass of the state machine for a path:
// validate, marker check, unchanged check, dispatch, record.
func (runner *Runner) Trigger(ctx context.Context, path string) (Outcome, error) {
	if runner == nil {
		return "", errors.New("trigger runner is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(path) == "" {
		runner.record(journal.EventError, "missing file path argument")
		return "", ErrMissingPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			runner.record(journal.EventError, fmt.Sprintf("file not found: %s", path))
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		runner.record(journal.EventError, fmt.Sprintf("stat %s: %v", path, err))
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	awaiting, err := transcript.AwaitingReply(path)
	if err != nil {
		runner.record(journal.EventError, fmt.Sprintf("marker check %s: %v", path, err))
		return "", fmt.Errorf("marker check %s: %w", path, err)
	}
	if awaiting {
		runner.record(journal.EventSkipped, fmt.Sprintf("%s (awaiting reply)", path))
		runner.registry().IncSkipped(skipReasonAwaiting)
		runner.logDebug("skip: awaiting reply", path)
		return OutcomeSkippedAwaiting, nil
	}

	contentSHA, err := state.HashFile(path)
	if err != nil {
		runner.record(journal.EventError, fmt.Sprintf("hash %s: %v", path, err))
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	if runner.unchangedSinceLastReply(path, contentSHA) {
		runner.record(journal.EventSkipped, fmt.Sprintf("%s (unchanged)", path))
		runner.registry().IncSkipped(skipReasonUnchanged)
		runner.logDebug("skip: content unchanged since last reply", path)
		return OutcomeSkippedUnchanged, nil
	}

	runner.record(journal.EventTriggered, path)
	runner.registry().IncTriggered()

	if err := runner.dispatch(ctx, path); err != nil {
		runner.registry().IncFailed()
		if runner.States != nil {
			if stateErr := runner.States.RecordFailed(path, contentSHA, err.Error()); stateErr != nil {
				runner.logWarn("record failed state", path, stateErr)
			}
		}
		return "", err
	}

	// Hash again after the reply is appended so the sweeper sees the file
	// as settled.
	finalSHA, err := state.HashFile(path)
	if err != nil {
		finalSHA = contentSHA
	}
	if runner.States != nil {
		if err := runner.States.RecordCompleted(path, finalSHA); err != nil {
			runner.logWarn("record completed state", path, err)
		}
	}
	runner.record(journal.EventCompleted, path)
	runner.registry().IncCompleted()
	return OutcomeDispatched, nil
}

func (runner *Runner) dispatch(ctx context.Context, path string) error {
	if runner.Responder == nil {
		runner.record(journal.EventError, fmt.Sprintf("%s: no responder configured", path))
		return responder.ErrNoResponder
	}

	content, err := os.ReadFile(path)
	if err != nil {
		runner.record(journal.EventError, fmt.Sprintf("read %s: %v", path, err))
		return fmt.Errorf("read %s: %w", path, err)
	}

	latest := ""
	if turn, ok := transcript.LatestHumanTurn(string(content)); ok {
		latest = turn.Body
	}

	instruction, err := runner.renderInstruction(path, latest)
	if err != nil {
		runner.record(journal.EventError, fmt.Sprintf("%s: %v", path, err))
		return err
	}

	reply, err := runner.Responder.Respond(ctx, responder.Request{
		Path:        path,
		Instruction: instruction,
		Transcript:  string(content),
		LatestTurn:  latest,
	})
	runner.registry().RecordResponder(runner.providerName(), reply.Duration, err)
	if err != nil {
		detail := fmt.Sprintf("%s: %v", path, err)
		if output := strings.TrimSpace(reply.Output); output != "" {
			detail = fmt.Sprintf("%s | output: %s", detail, output)
		}
		runner.record(journal.EventError, detail)
		return fmt.Errorf("responder: %w", err)
	}

	if !reply.AppendedByResponder {
		if strings.TrimSpace(reply.Text) == "" {
			runner.record(journal.EventError, fmt.Sprintf("%s: responder returned an empty reply", path))
			return fmt.Errorf("responder returned an empty reply for %s", path)
		}
		if err := transcript.AppendReply(path, reply.Text, runner.now()); err != nil {
			runner.record(journal.EventError, fmt.Sprintf("%s: %v", path, err))
			return err
		}
	}
	return nil
}

func (runner *Runner) renderInstruction(path, latest string) (string, error) {
	renderer := runner.Prompts
	if renderer == nil {
		compiled, err := prompt.NewRenderer("")
		if err != nil {
			return "", err
		}
		renderer = compiled
	}
	return renderer.Render(prompt.Data{
		Path:          path,
		Marker:        transcript.AwaitingMarker,
		TurnDelimiter: transcript.TurnDelimiter,
		LatestTurn:    latest,
	})
}

// unchangedSinceLastReply reports whether the current content hash matches the
// hash recorded at the last completed dispatch.
func (runner *Runner) unchangedSinceLastReply(path, contentSHA string) bool {
	if runner.States == nil {
		return false
	}
	record, err := runner.States.Get(path)
	if err != nil {
		return false
	}
	return record.Status == state.StatusCompleted && record.ContentSHA == contentSHA
}

func (runner *Runner) record(kind journal.Event, detail string) {
	if runner.Journal == nil {
		return
	}
	if err := runner.Journal.Record(journal.NewEntry(kind, detail)); err != nil && runner.Logger != nil {
		runner.Logger.Warn("journal write failed", map[string]string{
			"event": string(kind),
			"error": err.Error(),
		})
	}
}

func (runner *Runner) registry() *metrics.Registry {
	if runner.Registry != nil {
		return runner.Registry
	}
	return metrics.Default
}

func (runner *Runner) providerName() string {
	if runner.Provider != "" {
		return runner.Provider
	}
	return "unknown"
}

func (runner *Runner) now() time.Time {
	if runner.Now != nil {
		return runner.Now()
	}
	return time.Now().UTC()
}

func (runner *Runner) logDebug(message, path string) {
	if runner.Logger == nil {
		return
	}
	runner.Logger.Debug(message, map[string]string{"path": path})
}

func (runner *Runner) logWarn(message, path string, err error) {
	if runner.Logger == nil {
		return
	}
	runner.Logger.Warn(message, map[string]string{"path": path, "error": err.Error()})
}
