// Package compiler turns a submission's source files into compiled
// artifacts without ever writing them to persistent disk (spec §4.3).
package compiler

import (
	"context"

	"github.com/lscobe16/SimpleCodeTester/internal/submission"
)

// Compiler compiles a Submission into a CompilationOutput. Implementations
// must never write submission source or compiled artifacts to a
// filesystem path that outlives the call.
type Compiler interface {
	Compile(ctx context.Context, sub submission.Submission) (submission.CompilationOutput, error)
}
