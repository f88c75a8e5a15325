//go:build linux

package checks

import (
	"context"
	"strings"
	"testing"

	"github.com/lscobe16/SimpleCodeTester/internal/loader"
	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/internal/submission"
	"github.com/lscobe16/SimpleCodeTester/internal/terminal"
)

// fakeExecutor simulates a compiled program's behavior by writing directly
// to the invocation's stdout memfd, without ever exec'ing anything. This
// lets IOCheck/SourceCheck's output-comparison and verdict-parsing logic be
// exercised without root privileges or a built sandbox-init-slave binary.
type fakeExecutor struct {
	stdout string
	err    error
}

func (f *fakeExecutor) Run(ctx context.Context, lc *loader.Context, spec sandbox.InvokeSpec) error {
	if f.err != nil {
		return f.err
	}
	stdout, ok := spec.Files["{stdout}"]
	if ok && stdout != nil {
		if _, err := stdout.WriteString(f.stdout); err != nil {
			return err
		}
	}
	return nil
}

func newTestTarget(t *testing.T, fqn string, exec Executor) Target {
	t.Helper()
	lm := loader.NewManager(t.TempDir())
	lc, err := lm.NewContext(false)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { _ = lc.Release() })
	ic, err := terminal.New()
	if err != nil {
		t.Fatalf("terminal.New: %v", err)
	}
	t.Cleanup(ic.Close)
	return Target{
		File:        submission.CompiledFile{QualifiedName: fqn, Artifact: submission.Artifact{HasMain: true, Bytes: []byte("fake-binary")}},
		Loader:      lc,
		Interceptor: ic,
		Executor:    exec,
		Policy:      sandbox.NewPolicy(),
	}
}

func TestIOCheckPasses(t *testing.T) {
	target := newTestTarget(t, "Main.go", &fakeExecutor{stdout: "Hello, World!\n"})
	c := NewIOCheck("hello", nil, "Hello, World!\n")

	result, err := c.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != OutcomePassed {
		t.Fatalf("outcome = %v, message = %q", result.Outcome, result.Message)
	}
}

func TestIOCheckFailsOnMismatch(t *testing.T) {
	target := newTestTarget(t, "Main.go", &fakeExecutor{stdout: "wrong\n"})
	c := NewIOCheck("hello", nil, "Hello, World!\n")

	result, err := c.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want FAILED", result.Outcome)
	}
}

func TestIOCheckNormalizesCRLF(t *testing.T) {
	target := newTestTarget(t, "Main.go", &fakeExecutor{stdout: "line1\r\nline2\r\n"})
	c := NewIOCheck("crlf", nil, "line1\nline2\n")

	result, err := c.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != OutcomePassed {
		t.Fatalf("outcome = %v, message = %q", result.Outcome, result.Message)
	}
}

func TestIOCheckRejectsTrustedLoaderContext(t *testing.T) {
	lm := loader.NewManager(t.TempDir())
	lc, err := lm.NewContext(true)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer lc.Release()
	ic, err := terminal.New()
	if err != nil {
		t.Fatalf("terminal.New: %v", err)
	}
	defer ic.Close()

	target := Target{
		File:        submission.CompiledFile{QualifiedName: "Main.go"},
		Loader:      lc,
		Interceptor: ic,
		Executor:    &fakeExecutor{},
		Policy:      sandbox.NewPolicy(),
	}
	c := NewIOCheck("hello", nil, "x")
	result, err := c.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != OutcomeErrored {
		t.Fatalf("outcome = %v, want ERRORED for a trusted loader context", result.Outcome)
	}
}

// TestIOCheckReportsTimeoutOnWallTimeViolation exercises spec.md §8's
// "Infinite loop" scenario end to end: the sandbox executor kills a
// submission that exceeds its wall-time limit and reports a
// *sandbox.ViolationError, which must surface as an ERRORED result whose
// message names the timeout.
func TestIOCheckReportsTimeoutOnWallTimeViolation(t *testing.T) {
	target := newTestTarget(t, "Main.go", &fakeExecutor{err: &sandbox.ViolationError{
		Operation: "timeout",
		Detail:    "wall time of 5s exceeded",
	}})
	c := NewIOCheck("loop", nil, "anything")

	result, err := c.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != OutcomeErrored {
		t.Fatalf("outcome = %v, want ERRORED", result.Outcome)
	}
	if !strings.Contains(result.Message, "timeout") {
		t.Fatalf("message = %q, want it to contain %q", result.Message, "timeout")
	}
}
