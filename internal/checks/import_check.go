package checks

import (
	"context"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// ImportCheck statically inspects a compiled file's source for forbidden
// imports, without executing any code — spec.md §4.7's IMPORT variant.
type ImportCheck struct {
	CheckName        string
	ForbiddenImports []string
}

// NewImportCheck constructs an ImportCheck forbidding the given import
// paths (e.g. "os/exec", "net").
func NewImportCheck(name string, forbidden []string) *ImportCheck {
	return &ImportCheck{CheckName: name, ForbiddenImports: forbidden}
}

func (c *ImportCheck) Name() string { return c.CheckName }

// RequiredType implements Check. Import inspection never executes the
// submission, so it is a static test rather than a per-file run.
func (c *ImportCheck) RequiredType() Requirement { return RequireStaticTest }

// Run inspects every compiled file's source in target.Submission and fails
// on the first forbidden import found in any of them. Only files with a
// func main are compiled files; the sources of other files are not
// inspected.
func (c *ImportCheck) Run(ctx context.Context, target Target) (Result, error) {
	forbidden := make(map[string]bool, len(c.ForbiddenImports))
	for _, imp := range c.ForbiddenImports {
		forbidden[imp] = true
	}

	fset := token.NewFileSet()
	for _, f := range target.Submission.Files {
		parsed, err := parser.ParseFile(fset, f.QualifiedName, f.Source, parser.ImportsOnly)
		if err != nil {
			return Result{
				CheckName: c.CheckName,
				Outcome:   OutcomeErrored,
				Message:   errors.Wrapf(err, errors.SlaveCheckFailed, "parse imports in %s: %v", f.QualifiedName, err).Error(),
			}, nil
		}
		for _, imp := range parsed.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				continue
			}
			if forbidden[path] {
				return Result{
					CheckName: c.CheckName,
					Outcome:   OutcomeFailed,
					Message:   "forbidden import " + path + " in " + f.QualifiedName,
				}, nil
			}
		}
	}

	return Result{
		CheckName: c.CheckName,
		Outcome:   OutcomePassed,
		Message:   okMessage(c.ForbiddenImports),
	}, nil
}

func okMessage(forbidden []string) string {
	if len(forbidden) == 0 {
		return "no forbidden imports configured"
	}
	return "none of the forbidden imports (" + strings.Join(forbidden, ", ") + ") were used"
}
