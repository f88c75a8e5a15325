package checks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lscobe16/SimpleCodeTester/internal/loader"
	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/internal/submission"
)

// fakeCheck is a minimal Check used to exercise Runner's ordering and
// duplication logic without touching the real sandbox.
type fakeCheck struct {
	name     string
	required Requirement
	outcome  Outcome
}

func (f *fakeCheck) Name() string             { return f.name }
func (f *fakeCheck) RequiredType() Requirement { return f.required }
func (f *fakeCheck) Run(ctx context.Context, target Target) (Result, error) {
	fqn := target.File.QualifiedName
	return Result{CheckName: f.name, FileQualifiedName: fqn, Outcome: f.outcome}, nil
}

func newTestSubmission() *submission.CompiledSubmission {
	return &submission.CompiledSubmission{
		Files: []submission.CompiledFile{
			{QualifiedName: "b.go", Artifact: submission.Artifact{HasMain: true}},
			{QualifiedName: "a.go", Artifact: submission.Artifact{HasMain: true}},
		},
	}
}

func TestRunnerStaticTestAppliesToEveryMainFile(t *testing.T) {
	loaders := loader.NewManager(t.TempDir())
	r := NewRunner(loaders, sandbox.NewExecutor(""), sandbox.NewPolicy(), sandbox.IsolationProfile{}, sandbox.Limits{})

	sub := newTestSubmission()
	c := &fakeCheck{name: "static", required: RequireStaticTest, outcome: OutcomePassed}

	got, err := r.Run(context.Background(), sub, []Check{c})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got.FileOrder) != 2 || got.FileOrder[0] != "a.go" || got.FileOrder[1] != "b.go" {
		t.Fatalf("FileOrder = %v, want [a.go b.go]", got.FileOrder)
	}
	for _, fqn := range got.FileOrder {
		results := got.Results[fqn]
		if len(results) != 1 || results[0].Outcome != OutcomePassed || results[0].FileQualifiedName != fqn {
			t.Fatalf("Results[%s] = %+v", fqn, results)
		}
	}
}

func TestRunnerUserCodeMainRunsPerFile(t *testing.T) {
	loaders := loader.NewManager(t.TempDir())
	r := NewRunner(loaders, sandbox.NewExecutor(""), sandbox.NewPolicy(), sandbox.IsolationProfile{}, sandbox.Limits{})

	sub := newTestSubmission()
	c := &fakeCheck{name: "per-file", required: RequireUserCodeMain, outcome: OutcomeFailed}

	got, err := r.Run(context.Background(), sub, []Check{c})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got.Results["a.go"]) != 1 || got.Results["a.go"][0].Outcome != OutcomeFailed {
		t.Fatalf("a.go results = %+v", got.Results["a.go"])
	}
	if len(got.Results["b.go"]) != 1 || got.Results["b.go"][0].Outcome != OutcomeFailed {
		t.Fatalf("b.go results = %+v", got.Results["b.go"])
	}
}

// blockingCheck never returns on its own, simulating spec.md §8's "Infinite
// loop" scenario: a submission whose compiled main never yields control
// back to the check.
type blockingCheck struct{}

func (blockingCheck) Name() string             { return "blocking" }
func (blockingCheck) RequiredType() Requirement { return RequireUserCodeMain }
func (blockingCheck) Run(ctx context.Context, target Target) (Result, error) {
	<-ctx.Done()
	return Result{CheckName: "blocking", FileQualifiedName: target.File.QualifiedName, Outcome: OutcomePassed}, nil
}

func TestRunnerUserCodeMainReportsTimeoutOnDeadlineExceeded(t *testing.T) {
	loaders := loader.NewManager(t.TempDir())
	r := NewRunner(loaders, sandbox.NewExecutor(""), sandbox.NewPolicy(), sandbox.IsolationProfile{}, sandbox.Limits{})
	r.WallClockBudget = 10 * time.Millisecond

	sub := newTestSubmission()
	got, err := r.Run(context.Background(), sub, []Check{blockingCheck{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, fqn := range got.FileOrder {
		results := got.Results[fqn]
		if len(results) != 1 {
			t.Fatalf("Results[%s] = %+v, want exactly one result", fqn, results)
		}
		if results[0].Outcome != OutcomeErrored {
			t.Fatalf("Results[%s].Outcome = %v, want OutcomeErrored", fqn, results[0].Outcome)
		}
		if !strings.Contains(results[0].Message, "timeout") {
			t.Fatalf("Results[%s].Message = %q, want it to contain %q", fqn, results[0].Message, "timeout")
		}
	}
}
