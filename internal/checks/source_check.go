package checks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lscobe16/SimpleCodeTester/internal/compiler"
	"github.com/lscobe16/SimpleCodeTester/internal/memfile"
	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/internal/submission"
	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// driverVerdict is the single trailing JSON line a compiled driver prints
// on its own stdout to report its check outcome, the Go-idiomatic
// replacement for "a dynamically loaded class implementing Check" (see
// DESIGN.md's Open Questions).
type driverVerdict struct {
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

// SourceCheck is a student- or staff-authored driver program that, once
// compiled, receives the target compiled file's invocation coordinates via
// environment variables and reports its verdict as a trailing JSON line on
// its own stdout (spec.md §4.7's SOURCE_CODE variant).
type SourceCheck struct {
	CheckName string
	driver    submission.Artifact
}

// NewSourceCheck compiles driverSource (a single-file Go program with its
// own func main) and returns a Check that runs it against each target
// file in turn.
func NewSourceCheck(ctx context.Context, name string, driverSource string, comp compiler.Compiler) (*SourceCheck, error) {
	out, err := comp.Compile(ctx, submission.Submission{Files: map[string]string{"driver.go": driverSource}})
	if err != nil {
		return nil, err
	}
	if !out.Successful || len(out.Artifacts) == 0 {
		return nil, errors.New(errors.SlaveCompilationFailed).WithMessage("source check driver failed to compile: " + firstDiagnostic(out))
	}
	artifact := out.Artifacts["driver.go"]
	return &SourceCheck{CheckName: name, driver: artifact}, nil
}

func firstDiagnostic(out submission.CompilationOutput) string {
	if len(out.Diagnostics) == 0 {
		return "no diagnostics"
	}
	return out.Diagnostics[0].Message
}

func (c *SourceCheck) Name() string { return c.CheckName }

// RequiredType implements Check: the driver drives one compiled file at a
// time, just like an IOCheck.
func (c *SourceCheck) RequiredType() Requirement { return RequireUserCodeMain }

// Run stages both the driver binary and the target file's binary as memfds,
// execs the driver under the sandbox with TARGET_BIN_PATH naming the
// target's fd path, and parses the driver's final stdout line as its
// verdict.
func (c *SourceCheck) Run(ctx context.Context, target Target) (Result, error) {
	if err := target.Policy.RequireUntrusted(target.Loader); err != nil {
		return c.errored(target, err), nil
	}
	if err := target.Interceptor.Reset(); err != nil {
		return c.errored(target, err), nil
	}

	driverFile, err := memfile.New("driver.bin", c.driver.Bytes)
	if err != nil {
		return c.errored(target, errors.Wrapf(err, errors.SlaveSandboxViolation, "stage driver: %v", err)), nil
	}
	defer driverFile.Close()
	if err := memfile.MakeExecutable(driverFile); err != nil {
		return c.errored(target, err), nil
	}

	targetFile, err := memfile.New(target.File.QualifiedName+".bin", target.File.Artifact.Bytes)
	if err != nil {
		return c.errored(target, errors.Wrapf(err, errors.SlaveSandboxViolation, "stage target binary: %v", err)), nil
	}
	defer targetFile.Close()
	if err := memfile.MakeExecutable(targetFile); err != nil {
		return c.errored(target, err), nil
	}

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
		Cmd: []string{"{driver}"},
		Env: []string{
			"TARGET_BIN_PATH={target}",
			"TARGET_QUALIFIED_NAME=" + target.File.QualifiedName,
		},
		StdoutPath: "{stdout}",
		StderrPath: "{stderr}",
		Files: map[string]*os.File{
			"{driver}": driverFile,
			"{target}": targetFile,
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

	captured, err := target.Interceptor.Output()
	if err != nil {
		return c.errored(target, err), nil
	}
	errOut, _ := target.Interceptor.ErrorOutput()

	verdict, verdictErr := parseDriverVerdict(captured)
	if verdictErr != nil {
		return Result{
			CheckName:         c.CheckName,
			FileQualifiedName: target.File.QualifiedName,
			Outcome:           OutcomeErrored,
			Message:           verdictErr.Error(),
			CapturedOutput:    captured,
			ErrorOutput:       errOut,
		}, nil
	}

	return Result{
		CheckName:         c.CheckName,
		FileQualifiedName: target.File.QualifiedName,
		Outcome:           Outcome(verdict.Outcome),
		Message:           verdict.Message,
		CapturedOutput:    captured,
		ErrorOutput:       errOut,
	}, nil
}

func (c *SourceCheck) errored(target Target, err error) Result {
	return Result{
		CheckName:         c.CheckName,
		FileQualifiedName: target.File.QualifiedName,
		Outcome:           OutcomeErrored,
		Message:           err.Error(),
	}
}

// parseDriverVerdict reads the last non-empty line of captured stdout as
// the driver's verdict JSON.
func parseDriverVerdict(captured string) (driverVerdict, error) {
	lines := splitNonEmptyLines(captured)
	if len(lines) == 0 {
		return driverVerdict{}, fmt.Errorf("driver produced no output")
	}
	last := lines[len(lines)-1]
	var v driverVerdict
	if err := json.Unmarshal([]byte(last), &v); err != nil {
		return driverVerdict{}, fmt.Errorf("driver's trailing line is not a valid verdict: %w", err)
	}
	switch v.Outcome {
	case string(OutcomePassed), string(OutcomeFailed), string(OutcomeErrored), string(OutcomeSkipped):
	default:
		return driverVerdict{}, fmt.Errorf("driver reported unknown outcome %q", v.Outcome)
	}
	return v, nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
