package responder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultExecTimeout = 5 * time.Minute

// ExecResponder shells out to an external conversational agent binary. The
// binary receives the instruction prompt as its final argument and is expected
// to append the reply block to the file itself.
type ExecResponder struct {
	Binary string
	Args   []string
	// ExtraPath entries are prepended to PATH so the binary resolves under
	// restricted-PATH invocation contexts such as GUI file watchers.
	ExtraPath []string
	Timeout   time.Duration
	// WorkDir is the working directory for the child process.
	WorkDir string
}

func (responder *ExecResponder) Respond(ctx context.Context, request Request) (Reply, error) {
	if responder == nil || strings.TrimSpace(responder.Binary) == "" {
		return Reply{}, ErrNoResponder
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := responder.Timeout
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, responder.Args...), request.Instruction)
	cmd := exec.CommandContext(ctx, responder.Binary, args...)
	cmd.Dir = responder.WorkDir
	cmd.Env = responder.environ()

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	reply := Reply{
		Model:               responder.Binary,
		AppendedByResponder: true,
		Output:              output.String(),
		Duration:            time.Since(start),
	}
	if err == nil {
		return reply, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return reply, fmt.Errorf("responder %s: %w", responder.Binary, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return reply, fmt.Errorf("responder %s exited %d", responder.Binary, exitErr.ExitCode())
	}
	return reply, fmt.Errorf("responder %s: %w", responder.Binary, err)
}

func (responder *ExecResponder) environ() []string {
	env := os.Environ()
	if len(responder.ExtraPath) == 0 {
		return env
	}

	prefix := strings.Join(responder.ExtraPath, string(os.PathListSeparator))
	for i, entry := range env {
		if strings.HasPrefix(entry, "PATH=") {
			env[i] = "PATH=" + prefix + string(os.PathListSeparator) + strings.TrimPrefix(entry, "PATH=")
			return env
		}
	}
	return append(env, "PATH="+prefix)
}
