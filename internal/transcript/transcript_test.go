package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleDialogue = `# Dialogue

What do the Stoics mean by assent?

---

## Reply (2026-08-29T10:00:00Z)

Assent is the act of endorsing an impression as true.

<!-- AWAITING_REPLY -->

---

And how does that differ from mere impression?
`

func TestTurnsSplitsOnDelimiter(t *testing.T) {
	turns := Turns(sampleDialogue)
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Automated {
		t.Fatal("first turn should be human")
	}
	if !turns[1].Automated {
		t.Fatal("second turn carries the marker and should be automated")
	}
	if turns[2].Automated {
		t.Fatal("third turn should be human")
	}
}

func TestTurnsIgnoresInlineDashes(t *testing.T) {
	content := "a --- b\n----\n---\nsecond"
	turns := Turns(content)
	if len(turns) != 2 {
		t.Fatalf("only exact delimiter lines split turns, got %d turns", len(turns))
	}
}

func TestLatestHumanTurn(t *testing.T) {
	turn, ok := LatestHumanTurn(sampleDialogue)
	if !ok {
		t.Fatal("expected a human turn")
	}
	if !strings.Contains(turn.Body, "mere impression") {
		t.Fatalf("expected the trailing human turn, got %q", turn.Body)
	}
}

func TestLatestHumanTurnAllAutomated(t *testing.T) {
	content := "reply one\n" + AwaitingMarker
	if _, ok := LatestHumanTurn(content); ok {
		t.Fatal("expected no human turn")
	}
}

func TestAwaitingReply(t *testing.T) {
	dir := t.TempDir()

	awaiting := filepath.Join(dir, "awaiting.md")
	writeFile(t, awaiting, "turn\n\n"+AwaitingMarker+"\n")
	got, err := AwaitingReply(awaiting)
	if err != nil {
		t.Fatalf("AwaitingReply: %v", err)
	}
	if !got {
		t.Fatal("expected awaiting state")
	}

	open := filepath.Join(dir, "open.md")
	writeFile(t, open, "turn without marker\n")
	got, err = AwaitingReply(open)
	if err != nil {
		t.Fatalf("AwaitingReply: %v", err)
	}
	if got {
		t.Fatal("expected open state")
	}
}

func TestAwaitingReplyMarkerOutsideWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stale.md")

	lines := []string{AwaitingMarker}
	for i := 0; i < MarkerTailWindow+1; i++ {
		lines = append(lines, "trailing human text")
	}
	writeFile(t, path, strings.Join(lines, "\n")+"\n")

	got, err := AwaitingReply(path)
	if err != nil {
		t.Fatalf("AwaitingReply: %v", err)
	}
	if got {
		t.Fatal("marker above the tail window must not count as awaiting")
	}
}

func TestTailLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "long.md")

	var lines []string
	for i := 0; i < 500; i++ {
		lines = append(lines, strings.Repeat("x", 40))
	}
	lines = append(lines, "last line")
	writeFile(t, path, strings.Join(lines, "\n")+"\n")

	tail, err := TailLines(path, 3)
	if err != nil {
		t.Fatalf("TailLines: %v", err)
	}
	if len(tail) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(tail))
	}
	if tail[2] != "last line" {
		t.Fatalf("unexpected tail: %v", tail)
	}
}

func TestTailLinesShortFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.md")
	writeFile(t, path, "only line\n")

	tail, err := TailLines(path, 5)
	if err != nil {
		t.Fatalf("TailLines: %v", err)
	}
	if len(tail) != 1 || tail[0] != "only line" {
		t.Fatalf("unexpected tail: %v", tail)
	}
}

func TestAppendReplyOnlyAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialogue.md")
	original := "# Dialogue\n\na question\n"
	writeFile(t, path, original)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := AppendReply(path, "an answer", now); err != nil {
		t.Fatalf("AppendReply: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	text := string(content)
	if !strings.HasPrefix(text, original) {
		t.Fatal("existing content must be preserved")
	}
	if !strings.Contains(text, "2026-08-30T12:00:00Z") {
		t.Fatal("reply block must carry the timestamp")
	}
	if !strings.HasSuffix(strings.TrimRight(text, "\n"), AwaitingMarker) {
		t.Fatal("reply block must end with the sentinel")
	}

	awaiting, err := AwaitingReply(path)
	if err != nil {
		t.Fatalf("AwaitingReply: %v", err)
	}
	if !awaiting {
		t.Fatal("appended reply should leave the file awaiting")
	}
}

func TestAppendReplyEmptyPath(t *testing.T) {
	if err := AppendReply("", "reply", time.Now()); err != ErrEmptyPath {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
