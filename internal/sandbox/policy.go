//go:build linux

// Package sandbox is the two-layer enforcement boundary for untrusted
// submission and check code (spec §4.6): an in-process Policy broker that
// classifies a loader Context as trusted or untrusted, and an OS-level
// helper process (adapted from cmd/sandbox-init) that actually applies
// seccomp, namespace, and rlimit restrictions before exec'ing the
// sandboxed binary.
package sandbox

import (
	"github.com/lscobe16/SimpleCodeTester/internal/loader"
	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// Policy decides whether an operation requested on behalf of a loader
// Context is permitted. It never inspects syscalls directly — that is the
// OS-level helper's job — it only bookkeeps which contexts are allowed to
// skip the untrusted path (the slave's own static-check driver logic,
// e.g., runs trusted).
type Policy struct{}

// NewPolicy constructs the default policy: everything not explicitly
// marked trusted on its loader Context is denied any capability beyond
// exec under the sandbox helper.
func NewPolicy() *Policy {
	return &Policy{}
}

// RequireUntrusted returns a SlaveSandboxViolation if ctx claims to be
// trusted while the caller is about to run submission-origin code — a
// bug-guard against accidentally running student code with the trusted
// path's relaxed limits.
func (p *Policy) RequireUntrusted(ctx *loader.Context) error {
	if ctx.Trusted {
		return errors.New(errors.SlaveSandboxViolation).WithMessage("attempted to run submission code under a trusted loader context")
	}
	return nil
}

// ViolationError reports that the sandbox helper denied or killed an
// operation, carrying enough detail for a check result's message.
type ViolationError struct {
	Operation string
	Detail    string
}

func (e *ViolationError) Error() string {
	if e.Detail == "" {
		return "sandbox denied operation: " + e.Operation
	}
	return "sandbox denied operation: " + e.Operation + ": " + e.Detail
}
