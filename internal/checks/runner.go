package checks

import (
	"context"
	"time"

	"github.com/lscobe16/SimpleCodeTester/internal/loader"
	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/internal/submission"
	"github.com/lscobe16/SimpleCodeTester/internal/terminal"
)

// DefaultWallClockBudget bounds a single check invocation, per spec.md
// §4.8.
const DefaultWallClockBudget = 10 * time.Second

// fileRig bundles the per-file sandbox resources a CompiledFile's main
// entry point is invoked through. One rig is created per file and reused
// across every USER_CODE_MAIN check, reset between invocations — the
// "reset the interceptor for F's context" step of spec.md §4.8.
type fileRig struct {
	ctx         *loader.Context
	interceptor *terminal.Interceptor
}

// Runner drives spec.md §4.8: for each check, for each compiled main file,
// invoke the check and collect a Result, preserving both orderings the
// spec demands.
type Runner struct {
	Loaders         *loader.Manager
	Executor        Executor
	Policy          *sandbox.Policy
	Isolation       sandbox.IsolationProfile
	Limits          sandbox.Limits
	EnableNS        bool
	EnableSecc      bool
	WallClockBudget time.Duration
}

// NewRunner constructs a Runner with the default wall-clock budget and
// both namespace and seccomp isolation enabled.
func NewRunner(loaders *loader.Manager, exec Executor, policy *sandbox.Policy, iso sandbox.IsolationProfile, limits sandbox.Limits) *Runner {
	return &Runner{
		Loaders:         loaders,
		Executor:        exec,
		Policy:          policy,
		Isolation:       iso,
		Limits:          limits,
		EnableNS:        true,
		EnableSecc:      true,
		WallClockBudget: DefaultWallClockBudget,
	}
}

// Run executes every check against the compiled submission and returns the
// aggregated result. It never returns a partial (check, file) pair: a
// timed-out or sandbox-denied invocation still yields exactly one ERRORED
// Result.
func (r *Runner) Run(ctx context.Context, sub *submission.CompiledSubmission, cks []Check) (SubmissionResult, error) {
	mainFiles := sub.MainFiles() // already sorted by qualified name

	rigs := make(map[string]*fileRig, len(mainFiles))
	defer func() {
		for _, rig := range rigs {
			rig.interceptor.Close()
			_ = rig.ctx.Release()
		}
	}()
	for _, f := range mainFiles {
		lc, err := r.Loaders.NewContext(false)
		if err != nil {
			return SubmissionResult{}, err
		}
		ic, err := terminal.New()
		if err != nil {
			_ = lc.Release()
			return SubmissionResult{}, err
		}
		rigs[f.QualifiedName] = &fileRig{ctx: lc, interceptor: ic}
	}

	out := SubmissionResult{Results: make(map[string][]Result, len(mainFiles))}
	for _, f := range mainFiles {
		out.FileOrder = append(out.FileOrder, f.QualifiedName)
	}

	for _, c := range cks {
		switch c.RequiredType() {
		case RequireStaticTest:
			budget := r.WallClockBudget
			invokeCtx, cancel := context.WithTimeout(ctx, budget)
			result, err := c.Run(invokeCtx, Target{Submission: sub})
			cancel()
			if err != nil {
				return SubmissionResult{}, err
			}
			for _, f := range mainFiles {
				perFile := result
				perFile.FileQualifiedName = f.QualifiedName
				out.Results[f.QualifiedName] = append(out.Results[f.QualifiedName], perFile)
			}

		case RequireUserCodeMain:
			for _, f := range mainFiles {
				rig := rigs[f.QualifiedName]
				if err := rig.interceptor.Reset(); err != nil {
					out.Results[f.QualifiedName] = append(out.Results[f.QualifiedName], timeoutOrErrorResult(c, f, err))
					continue
				}
				invokeCtx, cancel := context.WithTimeout(ctx, r.WallClockBudget)
				result, err := c.Run(invokeCtx, Target{
					File:        f,
					Submission:  sub,
					Loader:      rig.ctx,
					Interceptor: rig.interceptor,
					Executor:    r.Executor,
					Policy:      r.Policy,
					Isolation:   r.Isolation,
					Limits:      r.Limits,
					EnableNS:    r.EnableNS,
					EnableSecc:  r.EnableSecc,
				})
				done := invokeCtx.Err()
				cancel()
				switch {
				case err != nil:
					return SubmissionResult{}, err
				case done == context.DeadlineExceeded:
					result = Result{
						CheckName:         c.Name(),
						FileQualifiedName: f.QualifiedName,
						Outcome:           OutcomeErrored,
						Message:           "timeout",
					}
				}
				out.Results[f.QualifiedName] = append(out.Results[f.QualifiedName], result)
			}
		}
	}

	return out, nil
}

func timeoutOrErrorResult(c Check, f submission.CompiledFile, err error) Result {
	return Result{
		CheckName:         c.Name(),
		FileQualifiedName: f.QualifiedName,
		Outcome:           OutcomeErrored,
		Message:           err.Error(),
	}
}
