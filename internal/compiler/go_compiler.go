//go:build linux

package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/lscobe16/SimpleCodeTester/internal/memfile"
	"github.com/lscobe16/SimpleCodeTester/internal/submission"
	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
	"go.uber.org/zap"
)

// compileCmdTpl mirrors the {src}/{bin}/{extraFlags} templating convention
// used elsewhere in this codebase for shelling out to language toolchains,
// even though the Go compiler needs no per-language variation here.
const compileCmdTpl = "go build -overlay {overlay} -o {bin} {extraFlags}"

var diagLineRE = regexp.MustCompile(`^(.+?):(\d+):(\d+): (.+)$`)

// GoMemCompiler compiles Go submissions with the `go` toolchain, keeping
// both the sources and the resulting binaries off persistent disk: sources
// live in anonymous memfds, handed to the `go build` child process via
// inherited file descriptors and a virtual-path overlay, and the compiled
// binary is written back into another memfd.
type GoMemCompiler struct {
	GoBin string // defaults to "go" (resolved via PATH) when empty
	log   *zap.Logger
}

// NewGoMemCompiler constructs a compiler using the given logger for
// toolchain invocation diagnostics.
func NewGoMemCompiler(log *zap.Logger) *GoMemCompiler {
	return &GoMemCompiler{log: log}
}

type overlayManifest struct {
	Replace map[string]string `json:"Replace"`
}

// Compile implements Compiler.
func (c *GoMemCompiler) Compile(ctx context.Context, sub submission.Submission) (submission.CompilationOutput, error) {
	if len(sub.Files) == 0 {
		return submission.CompilationOutput{}, errors.New(errors.SlaveCompilationFailed).WithMessage("submission has no files")
	}

	names := make([]string, 0, len(sub.Files))
	for name := range sub.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	mainSet, err := detectMainFiles(sub.Files)
	if err != nil {
		return submission.CompilationOutput{
			Successful:  false,
			Diagnostics: []submission.Diagnostic{parseErrDiagnostic(err)},
		}, nil
	}
	if len(mainSet) == 0 {
		return submission.CompilationOutput{
			Successful: false,
			Diagnostics: []submission.Diagnostic{{
				Severity: submission.SeverityError,
				Message:  "submission declares no func main in any file",
			}},
		}, nil
	}

	var libNames []string
	for _, n := range names {
		if !mainSet[n] {
			libNames = append(libNames, n)
		}
	}

	out := submission.CompilationOutput{
		Successful: true,
		Artifacts:  make(map[string]submission.Artifact),
	}
	for _, mainName := range names {
		if !mainSet[mainName] {
			continue
		}
		unit := append(append([]string{}, libNames...), mainName)
		artifact, diags, err := c.compileUnit(ctx, sub.Files, unit, mainName)
		out.Diagnostics = append(out.Diagnostics, diags...)
		if err != nil {
			return submission.CompilationOutput{}, err
		}
		if artifact == nil {
			out.Successful = false
			continue
		}
		out.Artifacts[mainName] = *artifact
	}
	return out, nil
}

// compileUnit builds one main package consisting of unit (a subset of the
// names in files, whose contents files supplies), producing the artifact
// for mainName or diagnostics explaining why it failed.
func (c *GoMemCompiler) compileUnit(ctx context.Context, files map[string]string, unit []string, mainName string) (*submission.Artifact, []submission.Diagnostic, error) {
	var extraFiles []*os.File
	defer func() {
		for _, f := range extraFiles {
			f.Close()
		}
	}()

	replace := make(map[string]string, len(unit))
	virtualDir := "/memsrc/" + sanitize(mainName)
	for _, name := range unit {
		f, err := memfile.New(name, []byte(files[name]))
		if err != nil {
			return nil, nil, errors.Wrapf(err, errors.SlaveCompilationFailed, "create memfd for %s: %v", name, err)
		}
		extraFiles = append(extraFiles, f)
		replace[virtualDir+"/"+name] = memfile.ChildFDPath(len(extraFiles) - 1)
	}

	manifestBytes, err := json.Marshal(overlayManifest{Replace: replace})
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.SlaveCompilationFailed, "marshal overlay manifest: %v", err)
	}
	manifestFile, err := memfile.New("overlay.json", manifestBytes)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.SlaveCompilationFailed, "create overlay memfd: %v", err)
	}
	extraFiles = append(extraFiles, manifestFile)
	overlayPath := memfile.ChildFDPath(len(extraFiles) - 1)

	outFile, err := memfile.New(mainName+".bin", nil)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.SlaveCompilationFailed, "create output memfd: %v", err)
	}
	extraFiles = append(extraFiles, outFile)
	outPath := memfile.ChildFDPath(len(extraFiles) - 1)

	cmdFields, err := buildCompileCommand(overlayPath, outPath, unit, virtualDir)
	if err != nil {
		return nil, nil, err
	}

	goBin := c.GoBin
	if goBin == "" {
		goBin = "go"
	}
	cmd := exec.CommandContext(ctx, goBin, cmdFields[1:]...)
	cmd.ExtraFiles = extraFiles
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if c.log != nil {
		c.log.Debug("go build invocation", zap.String("mainFile", mainName), zap.Error(runErr))
	}
	if runErr != nil {
		diags := parseGoBuildDiagnostics(stderr.String())
		if len(diags) == 0 {
			diags = []submission.Diagnostic{{Severity: submission.SeverityError, File: mainName, Message: stderr.String()}}
		}
		return nil, diags, nil
	}

	bin, err := memfile.ReadAll(outFile)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.SlaveCompilationFailed, "read compiled artifact: %v", err)
	}
	return &submission.Artifact{Bytes: bin, HasMain: true, BinaryPerm: 0o755}, nil, nil
}

func buildCompileCommand(overlayPath, outPath string, unit []string, virtualDir string) ([]string, error) {
	virtualFiles := make([]string, len(unit))
	for i, name := range unit {
		virtualFiles[i] = virtualDir + "/" + name
	}
	expanded := compileCmdTpl
	expanded = strings.ReplaceAll(expanded, "{overlay}", overlayPath)
	expanded = strings.ReplaceAll(expanded, "{bin}", outPath)
	expanded = strings.ReplaceAll(expanded, "{extraFlags}", strings.Join(virtualFiles, " "))
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, errors.Wrapf(err, errors.SlaveCompilationFailed, "parse compile command: %v", err)
	}
	if len(fields) == 0 {
		return nil, errors.New(errors.SlaveCompilationFailed).WithMessage("compile command empty after expansion")
	}
	return fields, nil
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '/' || r == '.' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// detectMainFiles parses each file and reports which declare a top-level
// func main with no receiver, the Go analogue of spec.md's "has a runnable
// entry point" classification.
func detectMainFiles(files map[string]string) (map[string]bool, error) {
	mainSet := make(map[string]bool, len(files))
	fset := token.NewFileSet()
	for name, src := range files {
		f, err := parser.ParseFile(fset, name, src, 0)
		if err != nil {
			return nil, err
		}
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil {
				continue
			}
			if fn.Name.Name == "main" {
				mainSet[name] = true
			}
		}
	}
	return mainSet, nil
}

func parseErrDiagnostic(err error) submission.Diagnostic {
	return submission.Diagnostic{Severity: submission.SeverityError, Message: err.Error()}
}

// parseGoBuildDiagnostics normalizes `go build` stderr lines of the form
// "file:line:col: message" into structured diagnostics.
func parseGoBuildDiagnostics(stderr string) []submission.Diagnostic {
	var diags []submission.Diagnostic
	for _, line := range splitLines(stderr) {
		m := diagLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		diags = append(diags, submission.Diagnostic{
			Severity: submission.SeverityError,
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Message:  m[4],
		})
	}
	return diags
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
