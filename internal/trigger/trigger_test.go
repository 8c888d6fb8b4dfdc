package trigger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"intaked/internal/journal"
	"intaked/internal/metrics"
	"intaked/internal/responder"
	"intaked/internal/state"
	"intaked/internal/transcript"
)

type fakeResponder struct {
	reply responder.Reply
	err   error
	calls int
	last  responder.Request
}

func (f *fakeResponder) Respond(_ context.Context, request responder.Request) (responder.Reply, error) {
	f.calls++
	f.last = request
	return f.reply, f.err
}

func newRunner(t *testing.T, r responder.Responder) (*Runner, *journal.MemorySink) {
	t.Helper()
	sink := journal.NewMemorySink()
	return &Runner{
		Responder: r,
		Journal:   sink,
		Registry:  &metrics.Registry{},
		Provider:  "test",
	}, sink
}

func writeDialogue(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestTriggerMissingArgument(t *testing.T) {
	runner, sink := newRunner(t, &fakeResponder{})

	_, err := runner.Trigger(context.Background(), "  ")
	if !errors.Is(err, ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
	events := sink.Events()
	if len(events) != 1 || events[0] != journal.EventError {
		t.Fatalf("expected one ERROR entry, got %v", events)
	}
}

func TestTriggerMissingFile(t *testing.T) {
	runner, sink := newRunner(t, &fakeResponder{})

	_, err := runner.Trigger(context.Background(), filepath.Join(t.TempDir(), "absent.md"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	events := sink.Events()
	if len(events) != 1 || events[0] != journal.EventError {
		t.Fatalf("expected one ERROR entry, got %v", events)
	}
}

func TestTriggerSkipsAwaitingReply(t *testing.T) {
	responderFake := &fakeResponder{}
	runner, sink := newRunner(t, responderFake)
	dir := t.TempDir()
	path := writeDialogue(t, dir, "dialogue.md", "a turn\n\n"+transcript.AwaitingMarker+"\n")
	before, _ := os.ReadFile(path)

	outcome, err := runner.Trigger(context.Background(), path)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if outcome != OutcomeSkippedAwaiting {
		t.Fatalf("expected awaiting skip, got %s", outcome)
	}
	if responderFake.calls != 0 {
		t.Fatal("responder must not run on a skip")
	}

	events := sink.Events()
	if len(events) != 1 || events[0] != journal.EventSkipped {
		t.Fatalf("expected exactly one SKIPPED entry, got %v", events)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatal("skip must leave the file unmodified")
	}
}

func TestTriggerDispatchesAndAppendsAPIReply(t *testing.T) {
	responderFake := &fakeResponder{reply: responder.Reply{Text: "a considered answer", Model: "gpt-test"}}
	runner, sink := newRunner(t, responderFake)
	runner.Now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	dir := t.TempDir()
	path := writeDialogue(t, dir, "dialogue.md", "# Dialogue\n\nWhat is assent?\n")

	outcome, err := runner.Trigger(context.Background(), path)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if outcome != OutcomeDispatched {
		t.Fatalf("expected dispatch, got %s", outcome)
	}

	events := sink.Events()
	if len(events) != 2 || events[0] != journal.EventTriggered || events[1] != journal.EventCompleted {
		t.Fatalf("expected TRIGGERED then COMPLETED, got %v", events)
	}
	for _, entry := range sink.Entries() {
		if !strings.Contains(entry.Detail, "dialogue.md") {
			t.Fatalf("journal detail must name the file: %q", entry.Detail)
		}
	}

	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "a considered answer") {
		t.Fatal("reply text must be appended")
	}
	awaiting, err := transcript.AwaitingReply(path)
	if err != nil || !awaiting {
		t.Fatalf("file must end awaiting after dispatch (awaiting=%v err=%v)", awaiting, err)
	}

	if responderFake.last.LatestTurn == "" || !strings.Contains(responderFake.last.LatestTurn, "assent") {
		t.Fatalf("latest human turn not passed: %q", responderFake.last.LatestTurn)
	}
	if !strings.Contains(responderFake.last.Instruction, path) {
		t.Fatal("instruction must embed the path")
	}
}

func TestTriggerDoesNotAppendWhenResponderAppended(t *testing.T) {
	responderFake := &fakeResponder{reply: responder.Reply{AppendedByResponder: true, Model: "agent"}}
	runner, _ := newRunner(t, responderFake)

	dir := t.TempDir()
	original := "a question\n"
	path := writeDialogue(t, dir, "dialogue.md", original)

	if _, err := runner.Trigger(context.Background(), path); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != original {
		t.Fatal("runner must not append when the responder already did")
	}
}

func TestTriggerResponderFailure(t *testing.T) {
	responderFake := &fakeResponder{
		err:   errors.New("agent exited 3"),
		reply: responder.Reply{Output: "stack trace here"},
	}
	runner, sink := newRunner(t, responderFake)

	dir := t.TempDir()
	path := writeDialogue(t, dir, "dialogue.md", "a question\n")

	if _, err := runner.Trigger(context.Background(), path); err == nil {
		t.Fatal("expected responder failure")
	}

	events := sink.Events()
	if len(events) != 2 || events[0] != journal.EventTriggered || events[1] != journal.EventError {
		t.Fatalf("expected TRIGGERED then ERROR, got %v", events)
	}
	last := sink.Entries()[1]
	if !strings.Contains(last.Detail, "stack trace here") {
		t.Fatalf("captured output must reach the journal: %q", last.Detail)
	}

	// Failure leaves no marker, so the file stays eligible for re-dispatch.
	awaiting, err := transcript.AwaitingReply(path)
	if err != nil || awaiting {
		t.Fatalf("failed dispatch must leave the file open (awaiting=%v err=%v)", awaiting, err)
	}
}

func TestTriggerEmptyAPIReply(t *testing.T) {
	runner, _ := newRunner(t, &fakeResponder{reply: responder.Reply{Text: "   "}})
	dir := t.TempDir()
	path := writeDialogue(t, dir, "dialogue.md", "a question\n")

	if _, err := runner.Trigger(context.Background(), path); err == nil {
		t.Fatal("empty reply must fail rather than append nothing")
	}
}

func TestTriggerUnchangedSkipWithStateStore(t *testing.T) {
	responderFake := &fakeResponder{reply: responder.Reply{Text: "answer"}}
	runner, sink := newRunner(t, responderFake)

	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	defer store.Close()
	runner.States = store

	dir := t.TempDir()
	path := writeDialogue(t, dir, "dialogue.md", "a question\n")

	// First pass dispatches and records the post-append hash.
	if _, err := runner.Trigger(context.Background(), path); err != nil {
		t.Fatalf("first Trigger: %v", err)
	}

	// Strip the marker but keep content identical to the recorded hash by
	// simulating a watcher re-fire on the exact same content: second pass
	// with unchanged bytes must skip on the hash even without the marker.
	record, err := store.Get(path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	current, _ := state.HashFile(path)
	if record.ContentSHA != current {
		t.Fatalf("recorded hash must match post-append content")
	}

	content, _ := os.ReadFile(path)
	stripped := strings.ReplaceAll(string(content), transcript.AwaitingMarker, "")
	if err := os.WriteFile(path, []byte(stripped), 0o644); err != nil {
		t.Fatalf("strip marker: %v", err)
	}
	if err := store.RecordCompleted(path, mustHash(t, path)); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}

	outcome, err := runner.Trigger(context.Background(), path)
	if err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if outcome != OutcomeSkippedUnchanged {
		t.Fatalf("expected unchanged skip, got %s", outcome)
	}
	if responderFake.calls != 1 {
		t.Fatalf("responder must not re-run, calls=%d", responderFake.calls)
	}

	events := sink.Events()
	if events[len(events)-1] != journal.EventSkipped {
		t.Fatalf("expected trailing SKIPPED, got %v", events)
	}
}

// TestDuplicateTriggersAreNotIdempotent documents that duplicate triggers
// are at-least-once, not idempotent: two sequential triggers on a marker-less
// file each dispatch when the state store is absent. The daemon serializes
// per-path dispatch; independent processes do not.
func TestDuplicateTriggersAreNotIdempotent(t *testing.T) {
	responderFake := &fakeResponder{reply: responder.Reply{AppendedByResponder: true}}
	runner, _ := newRunner(t, responderFake)

	dir := t.TempDir()
	path := writeDialogue(t, dir, "dialogue.md", "a question\n")

	if _, err := runner.Trigger(context.Background(), path); err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	if _, err := runner.Trigger(context.Background(), path); err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if responderFake.calls != 2 {
		t.Fatalf("documented at-least-once behavior: expected 2 dispatches, got %d", responderFake.calls)
	}
}

func mustHash(t *testing.T, path string) string {
	t.Helper()
	hash, err := state.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	return hash
}
