// Package submission defines the data model shared by the compiler, loader,
// and check engine: the immutable source bundle a master sends, and the
// compiled artifacts produced from it.
package submission

import "sort"

// Submission is an immutable bundle of source files identified by their
// qualified name (the source file name, e.g. "Main.go").
type Submission struct {
	Files     map[string]string `json:"files"`
	EntryHint string            `json:"entryHint,omitempty"`
}

// Severity classifies a compiler diagnostic.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Diagnostic is one compiler-reported issue, normalized to a common shape
// regardless of which language's compiler produced it.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Message  string   `json:"message"`
}

// Artifact is an opaque compiled blob. For the Go compiler this is the
// executable's bytes; it never has a name on persistent disk.
type Artifact struct {
	Bytes      []byte `json:"-"`
	HasMain    bool   `json:"hasMain"`
	BinaryPerm uint32 `json:"-"`
}

// CompilationOutput is the result of compiling a set of source files.
type CompilationOutput struct {
	Successful  bool                `json:"successful"`
	Diagnostics []Diagnostic        `json:"diagnostics"`
	Artifacts   map[string]Artifact `json:"-"`
}

// HasErrors reports whether any diagnostic is severity ERROR.
func (o CompilationOutput) HasErrors() bool {
	for _, d := range o.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CompiledFile is a single compiled artifact within a submission, bound to
// the disposable loader context (sandbox identity) that will execute it.
type CompiledFile struct {
	QualifiedName string
	Source        string
	Artifact      Artifact
	LoaderHandle  string
}

// HasMain reports whether this file carries a runnable main entry point.
func (f CompiledFile) HasMain() bool {
	return f.Artifact.HasMain
}

// CompiledSubmission is created once per submission and destroyed when the
// slave exits; its CompiledFiles share no loader handle with any other
// submission's files.
type CompiledSubmission struct {
	Output CompilationOutput
	Files  []CompiledFile
}

// MainFiles returns the compiled files that have a main entry point,
// ordered by qualified name (the ordering guarantee required by the check
// runner).
func (s CompiledSubmission) MainFiles() []CompiledFile {
	out := make([]CompiledFile, 0, len(s.Files))
	for _, f := range s.Files {
		if f.HasMain() {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}
