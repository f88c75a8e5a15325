// Package checks implements the check model: the capability set every
// check variant satisfies, and the three variants spec.md §4.7 names —
// IMPORT, IO, and SOURCE_CODE — along with the decode logic that resolves
// an inbound wire.CheckSpec into one of them.
package checks

import (
	"context"

	"github.com/lscobe16/SimpleCodeTester/internal/loader"
	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/internal/submission"
	"github.com/lscobe16/SimpleCodeTester/internal/terminal"
)

// Requirement classifies what a Check needs to run, mirroring spec.md's
// requiredType() ∈ {USER_CODE_MAIN, STATIC_TEST}.
type Requirement string

const (
	// RequireUserCodeMain means the check runs once per compiled file that
	// has a main entry point.
	RequireUserCodeMain Requirement = "USER_CODE_MAIN"
	// RequireStaticTest means the check runs once against the whole
	// submission, not per file.
	RequireStaticTest Requirement = "STATIC_TEST"
)

// Outcome is a CheckResult's verdict.
type Outcome string

const (
	OutcomePassed  Outcome = "PASSED"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeErrored Outcome = "ERRORED"
	OutcomeSkipped Outcome = "SKIPPED"
)

// Result is one check's verdict against one compiled file.
type Result struct {
	CheckName         string
	FileQualifiedName string
	Outcome           Outcome
	Message           string
	CapturedOutput    string
	ErrorOutput       string
}

// Executor is the capability an invocation needs to run a compiled program
// under sandbox isolation. *sandbox.Executor satisfies this; tests supply
// a fake instead of driving the real OS-level sandbox.
type Executor interface {
	Run(ctx context.Context, lc *loader.Context, spec sandbox.InvokeSpec) error
}

// Target bundles everything a Check needs to drive one compiled file: the
// artifact itself plus the per-invocation sandbox machinery the runner
// prepared for it. A USER_CODE_MAIN check reads File; a STATIC_TEST check
// reads Submission and ignores File, since it runs once against the whole
// submission rather than per compiled file (spec.md §4.8).
type Target struct {
	File        submission.CompiledFile
	Submission  *submission.CompiledSubmission
	Loader      *loader.Context
	Interceptor *terminal.Interceptor
	Executor    Executor
	Policy      *sandbox.Policy
	Isolation   sandbox.IsolationProfile
	Limits      sandbox.Limits
	EnableNS    bool
	EnableSecc  bool
}

// Check is the capability set every check variant satisfies: spec.md §4.6's
// "polymorphic over {requiredType, name, check(compiledFile)}".
type Check interface {
	Name() string
	RequiredType() Requirement
	Run(ctx context.Context, target Target) (Result, error)
}
