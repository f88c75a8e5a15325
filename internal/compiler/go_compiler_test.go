//go:build linux

package compiler

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/lscobe16/SimpleCodeTester/internal/submission"
)

func requireGoToolchain(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available on PATH")
	}
}

func TestGoMemCompilerCompilesSingleMain(t *testing.T) {
	requireGoToolchain(t)
	c := NewGoMemCompiler(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sub := submission.Submission{Files: map[string]string{
		"Main.go": "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hi\") }\n",
	}}
	out, err := c.Compile(ctx, sub)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !out.Successful {
		t.Fatalf("expected success, diagnostics: %+v", out.Diagnostics)
	}
	art, ok := out.Artifacts["Main.go"]
	if !ok || len(art.Bytes) == 0 {
		t.Fatalf("expected a non-empty artifact for Main.go")
	}
}

func TestGoMemCompilerReportsDiagnostics(t *testing.T) {
	requireGoToolchain(t)
	c := NewGoMemCompiler(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sub := submission.Submission{Files: map[string]string{
		"Main.go": "package main\n\nfunc main() { undefinedSymbol() }\n",
	}}
	out, err := c.Compile(ctx, sub)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if out.Successful {
		t.Fatal("expected compilation failure")
	}
	if len(out.Diagnostics) == 0 {
		t.Fatal("expected at least one diagnostic")
	}
}

func TestGoMemCompilerRejectsEmptySubmission(t *testing.T) {
	c := NewGoMemCompiler(nil)
	_, err := c.Compile(context.Background(), submission.Submission{})
	if err == nil {
		t.Fatal("expected an error for an empty submission")
	}
}

func TestGoMemCompilerRejectsMissingMain(t *testing.T) {
	c := NewGoMemCompiler(nil)
	sub := submission.Submission{Files: map[string]string{
		"Lib.go": "package main\n\nfunc helper() int { return 1 }\n",
	}}
	out, err := c.Compile(context.Background(), sub)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if out.Successful {
		t.Fatal("expected failure: no func main present")
	}
}
