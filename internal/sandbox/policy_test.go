//go:build linux

package sandbox

import (
	"testing"

	"github.com/lscobe16/SimpleCodeTester/internal/loader"
)

func TestRequireUntrustedRejectsTrustedContext(t *testing.T) {
	p := NewPolicy()
	ctx := &loader.Context{Trusted: true}
	if err := p.RequireUntrusted(ctx); err == nil {
		t.Fatal("expected an error for a trusted context running submission code")
	}
}

func TestRequireUntrustedAllowsUntrustedContext(t *testing.T) {
	p := NewPolicy()
	ctx := &loader.Context{Trusted: false}
	if err := p.RequireUntrusted(ctx); err != nil {
		t.Fatalf("RequireUntrusted: %v", err)
	}
}

func TestViolationErrorMessage(t *testing.T) {
	e := &ViolationError{Operation: "wall-time", Detail: "exceeded 10s"}
	want := "sandbox denied operation: wall-time: exceeded 10s"
	if e.Error() != want {
		t.Fatalf("Error() = %q, want %q", e.Error(), want)
	}
}
