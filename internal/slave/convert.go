package slave

import (
	"sort"

	"github.com/lscobe16/SimpleCodeTester/internal/checks"
	"github.com/lscobe16/SimpleCodeTester/internal/submission"
	"github.com/lscobe16/SimpleCodeTester/internal/wire"
)

// buildCompiledSubmission assembles a submission.CompiledSubmission from a
// successful CompilationOutput and the original source map, populating
// each CompiledFile's Source so static checks (e.g. ImportCheck) can
// inspect it without recompiling.
func buildCompiledSubmission(out submission.CompilationOutput, sources map[string]string) submission.CompiledSubmission {
	names := make([]string, 0, len(out.Artifacts))
	for name := range out.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	files := make([]submission.CompiledFile, 0, len(names))
	for _, name := range names {
		files = append(files, submission.CompiledFile{
			QualifiedName: name,
			Source:        sources[name],
			Artifact:      out.Artifacts[name],
		})
	}
	return submission.CompiledSubmission{Output: out, Files: files}
}

func toWireCompilationOutput(out submission.CompilationOutput) wire.CompilationOutput {
	diags := make([]wire.Diagnostic, len(out.Diagnostics))
	for i, d := range out.Diagnostics {
		diags[i] = wire.Diagnostic{
			Severity: string(d.Severity),
			File:     d.File,
			Line:     d.Line,
			Column:   d.Column,
			Message:  d.Message,
		}
	}
	return wire.CompilationOutput{Successful: out.Successful, Diagnostics: diags}
}

func toWireSubmissionCheck(result checks.SubmissionResult) wire.SubmissionCheck {
	out := wire.SubmissionCheck{
		FileOrder: result.FileOrder,
		Results:   make(map[string][]wire.CheckResult, len(result.Results)),
	}
	for fqn, rs := range result.Results {
		wireResults := make([]wire.CheckResult, len(rs))
		for i, r := range rs {
			wireResults[i] = wire.CheckResult{
				CheckName:         r.CheckName,
				FileQualifiedName: r.FileQualifiedName,
				Outcome:           string(r.Outcome),
				Message:           r.Message,
				CapturedOutput:    r.CapturedOutput,
				ErrorOutput:       r.ErrorOutput,
			}
		}
		out.Results[fqn] = wireResults
	}
	return out
}
