//go:build linux

package slave

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lscobe16/SimpleCodeTester/internal/ipc"
	"github.com/lscobe16/SimpleCodeTester/internal/loader"
	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/internal/submission"
	"github.com/lscobe16/SimpleCodeTester/internal/wire"
)

// fakeCompiler lets tests control compilation outcome without invoking the
// go toolchain.
type fakeCompiler struct {
	out submission.CompilationOutput
	err error
}

func (f *fakeCompiler) Compile(ctx context.Context, sub submission.Submission) (submission.CompilationOutput, error) {
	return f.out, f.err
}

// fakeExecutor never actually runs anything; tests here exercise the
// lifecycle machinery, not the check engine, so zero checks are supplied
// in every scenario and this is never called.
type fakeExecutor struct{}

func (fakeExecutor) Run(ctx context.Context, lc *loader.Context, spec sandbox.InvokeSpec) error {
	return nil
}

// harness wires a Slave to an in-process "master" over a net.Pipe and
// gives tests a way to read the frames the slave emits.
type harness struct {
	t          *testing.T
	masterConn net.Conn
	reader     *bufio.Reader
	s          *Slave
	runDone    chan error
}

func newHarness(t *testing.T, comp *fakeCompiler, cfg Config) *harness {
	t.Helper()
	slaveConn, masterConn := net.Pipe()
	client := ipc.NewClient(slaveConn, zap.NewNop())
	loaders := loader.NewManager(t.TempDir())
	s := New(client, comp, loaders, sandbox.NewPolicy(), fakeExecutor{}, cfg, zap.NewNop())

	h := &harness{
		t:          t,
		masterConn: masterConn,
		reader:     bufio.NewReader(masterConn),
		s:          s,
		runDone:    make(chan error, 1),
	}
	return h
}

func (h *harness) start(ctx context.Context) {
	go func() { h.runDone <- h.s.Run(ctx) }()
}

func (h *harness) readFrame() wire.Envelope {
	h.t.Helper()
	env, err := wire.ReadFrame(h.reader)
	if err != nil {
		h.t.Fatalf("ReadFrame: %v", err)
	}
	return env
}

func (h *harness) sendSubmission(msg wire.CompileAndCheckSubmission) {
	h.t.Helper()
	if err := wire.WriteFrame(h.masterConn, wire.KindCompileAndCheckSubmission, msg); err != nil {
		h.t.Fatalf("WriteFrame: %v", err)
	}
}

func TestSlaveHappyPathEmitsSubmissionResultThenDying(t *testing.T) {
	comp := &fakeCompiler{out: submission.CompilationOutput{
		Successful: true,
		Artifacts: map[string]submission.Artifact{
			"Main.go": {HasMain: true, Bytes: []byte("bin")},
		},
	}}
	h := newHarness(t, comp, Config{UID: "slave-1", IdleTimeout: time.Second})
	h.start(context.Background())

	if env := h.readFrame(); env.Kind != wire.KindSlaveStarted {
		t.Fatalf("first frame = %v, want SlaveStarted", env.Kind)
	}

	h.sendSubmission(wire.CompileAndCheckSubmission{
		Submission: wire.Submission{Files: map[string]string{"Main.go": "package main\nfunc main() {}\n"}},
	})

	if env := h.readFrame(); env.Kind != wire.KindSubmissionResult {
		t.Fatalf("second frame = %v, want SubmissionResult", env.Kind)
	}
	if env := h.readFrame(); env.Kind != wire.KindDyingMessage {
		t.Fatalf("third frame = %v, want DyingMessage", env.Kind)
	}

	select {
	case err := <-h.runDone:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if h.s.State() != StateDead {
		t.Fatalf("state = %v, want DEAD", h.s.State())
	}
}

func TestSlaveCompilationFailureEmitsCompilationFailedThenDying(t *testing.T) {
	comp := &fakeCompiler{out: submission.CompilationOutput{
		Successful:  false,
		Diagnostics: []submission.Diagnostic{{Severity: submission.SeverityError, Message: "syntax error"}},
	}}
	h := newHarness(t, comp, Config{UID: "slave-2", IdleTimeout: time.Second})
	h.start(context.Background())

	h.readFrame() // SlaveStarted
	h.sendSubmission(wire.CompileAndCheckSubmission{
		Submission: wire.Submission{Files: map[string]string{"Main.go": "broken"}},
	})

	env := h.readFrame()
	if env.Kind != wire.KindCompilationFailed {
		t.Fatalf("kind = %v, want CompilationFailed", env.Kind)
	}
	if env := h.readFrame(); env.Kind != wire.KindDyingMessage {
		t.Fatalf("kind = %v, want DyingMessage", env.Kind)
	}
	<-h.runDone
}

func TestSlaveUnexpectedCompilerErrorDiesWithUnknownError(t *testing.T) {
	comp := &fakeCompiler{err: &net.OpError{Op: "boom"}}
	h := newHarness(t, comp, Config{UID: "slave-3", IdleTimeout: time.Second})
	h.start(context.Background())

	h.readFrame() // SlaveStarted
	h.sendSubmission(wire.CompileAndCheckSubmission{
		Submission: wire.Submission{Files: map[string]string{"Main.go": "package main\nfunc main() {}\n"}},
	})

	env := h.readFrame()
	if env.Kind != wire.KindSlaveDiedWithUnknownErr {
		t.Fatalf("kind = %v, want SlaveDiedWithUnknownError", env.Kind)
	}
	if env := h.readFrame(); env.Kind != wire.KindDyingMessage {
		t.Fatalf("kind = %v, want DyingMessage", env.Kind)
	}
	<-h.runDone
}

func TestSlaveIdleTimeoutEmitsSlaveTimedOutThenDying(t *testing.T) {
	h := newHarness(t, &fakeCompiler{}, Config{UID: "slave-4", IdleTimeout: 20 * time.Millisecond})
	h.start(context.Background())

	h.readFrame() // SlaveStarted
	env := h.readFrame()
	if env.Kind != wire.KindSlaveTimedOut {
		t.Fatalf("kind = %v, want SlaveTimedOut", env.Kind)
	}
	if env := h.readFrame(); env.Kind != wire.KindDyingMessage {
		t.Fatalf("kind = %v, want DyingMessage", env.Kind)
	}
	<-h.runDone
}
