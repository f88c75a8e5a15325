package checks

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lscobe16/SimpleCodeTester/internal/memfile"
	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// IOCheck runs a compiled file's main entry point with scripted input and
// compares captured stdout against an expected value by exact string
// equality after end-of-line normalization, grounded on
// StaticInputOutputCheck's assertOutputValid semantics.
type IOCheck struct {
	CheckName      string
	Input          []string
	ExpectedOutput string
}

// NewIOCheck constructs an IOCheck from a decoded wire.IOCheckPayload.
func NewIOCheck(name string, input []string, expectedOutput string) *IOCheck {
	return &IOCheck{CheckName: name, Input: input, ExpectedOutput: expectedOutput}
}

func (c *IOCheck) Name() string { return c.CheckName }

// RequiredType implements Check: an IO check drives one compiled main file
// at a time.
func (c *IOCheck) RequiredType() Requirement { return RequireUserCodeMain }

// Run scripts target.Interceptor's stdin, execs the compiled binary under
// the sandbox, and compares captured stdout to ExpectedOutput.
func (c *IOCheck) Run(ctx context.Context, target Target) (Result, error) {
	if err := target.Policy.RequireUntrusted(target.Loader); err != nil {
		return c.errored(target, err), nil
	}
	if err := target.Interceptor.SetInput(c.Input); err != nil {
		return c.errored(target, err), nil
	}

	binFile, err := memfile.New(target.File.QualifiedName+".bin", target.File.Artifact.Bytes)
	if err != nil {
		return c.errored(target, errors.Wrapf(err, errors.SlaveSandboxViolation, "stage binary: %v", err)), nil
	}
	defer binFile.Close()
	if err := memfile.MakeExecutable(binFile); err != nil {
		return c.errored(target, err), nil
	}

	stdinFile, err := os.OpenFile(target.Interceptor.StdinPath(), os.O_RDONLY, 0)
	if err != nil {
		return c.errored(target, errors.Wrapf(err, errors.SlaveSandboxViolation, "reopen stdin: %v", err)), nil
	}
	defer stdinFile.Close()
	stdoutFile, err := os.OpenFile(target.Interceptor.StdoutPath(), os.O_RDWR, 0)
	if err != nil {
		return c.errored(target, errors.Wrapf(err, errors.SlaveSandboxViolation, "reopen stdout: %v", err)), nil
	}
	defer stdoutFile.Close()
	stderrFile, err := os.OpenFile(target.Interceptor.StderrPath(), os.O_RDWR, 0)
	if err != nil {
		return c.errored(target, errors.Wrapf(err, errors.SlaveSandboxViolation, "reopen stderr: %v", err)), nil
	}
	defer stderrFile.Close()

	spec := sandbox.InvokeSpec{
		Cmd:        []string{"{bin}"},
		StdinPath:  "{stdin}",
		StdoutPath: "{stdout}",
		StderrPath: "{stderr}",
		Files: map[string]*os.File{
			"{bin}":    binFile,
			"{stdin}":  stdinFile,
			"{stdout}": stdoutFile,
			"{stderr}": stderrFile,
		},
		Limits:     target.Limits,
		Isolation:  target.Isolation,
		EnableNS:   target.EnableNS,
		EnableSecc: target.EnableSecc,
	}

	runErr := target.Executor.Run(ctx, target.Loader, spec)
	if v, ok := runErr.(*sandbox.ViolationError); ok {
		return c.errored(target, v), nil
	}
	if runErr != nil {
		return c.errored(target, runErr), nil
	}

	actual, err := target.Interceptor.Output()
	if err != nil {
		return c.errored(target, err), nil
	}
	errOut, _ := target.Interceptor.ErrorOutput()

	if normalizeEOL(actual) != normalizeEOL(c.ExpectedOutput) {
		return Result{
			CheckName:         c.CheckName,
			FileQualifiedName: target.File.QualifiedName,
			Outcome:           OutcomeFailed,
			Message: fmt.Sprintf("The output of %s was\n'%s'\n, expected\n'%s'.",
				target.File.QualifiedName, actual, c.ExpectedOutput),
			CapturedOutput: actual,
			ErrorOutput:    errOut,
		}, nil
	}

	return Result{
		CheckName:         c.CheckName,
		FileQualifiedName: target.File.QualifiedName,
		Outcome:           OutcomePassed,
		CapturedOutput:    actual,
		ErrorOutput:       errOut,
	}, nil
}

func (c *IOCheck) errored(target Target, err error) Result {
	return Result{
		CheckName:         c.CheckName,
		FileQualifiedName: target.File.QualifiedName,
		Outcome:           OutcomeErrored,
		Message:           err.Error(),
	}
}

// normalizeEOL collapses CRLF to LF so output captured across platforms
// compares equal by content alone, per spec.md §4.7's "exact string
// equality after end-of-line normalization".
func normalizeEOL(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
