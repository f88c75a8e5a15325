//go:build linux

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/lscobe16/SimpleCodeTester/internal/loader"
	"github.com/lscobe16/SimpleCodeTester/internal/memfile"
	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// Limits bounds a single sandboxed invocation.
type Limits struct {
	WallTime time.Duration
	MemoryMB int64
	PIDs     int64
	OutputMB int64
}

// IsolationProfile names the seccomp profile and optional chroot to apply,
// mirroring cmd/sandbox-init's own isolationProfile shape.
type IsolationProfile struct {
	RootFS         string
	SeccompProfile string
	DisableNetwork bool
}

// InvokeSpec is everything the sandbox helper needs to exec one program
// under isolation. Files maps a placeholder token (e.g. "{bin}", "{target}")
// to an open memfd; Run renumbers each to the helper's own fd space and
// substitutes its token wherever it appears in Cmd, Env, StdinPath,
// StdoutPath, or StderrPath — the same templating idiom the compiler uses
// for its overlay manifest paths. This lets a check (e.g. SourceCheck) hand
// a driver process both its own binary and a second compiled artifact's fd
// path via an environment variable. An empty Std*Path resolves to
// /dev/null in the helper.
type InvokeSpec struct {
	Cmd        []string
	Env        []string
	StdinPath  string
	StdoutPath string
	StderrPath string
	Files      map[string]*os.File
	Limits     Limits
	Isolation  IsolationProfile
	EnableNS   bool
	EnableSecc bool
}

// helperInitRequest mirrors cmd/sandbox-init's initRequest JSON shape
// exactly, so the existing helper binary can be reused unmodified as the
// OS-level enforcement layer.
type helperInitRequest struct {
	RunSpec       helperRunSpec       `json:"RunSpec"`
	Isolation     helperIsolationSpec `json:"Isolation"`
	EnableSeccomp bool                `json:"EnableSeccomp"`
	EnableNs      bool                `json:"EnableNs"`
}

type helperRunSpec struct {
	WorkDir    string             `json:"WorkDir"`
	Cmd        []string           `json:"Cmd"`
	Env        []string           `json:"Env"`
	StdinPath  string             `json:"StdinPath"`
	StdoutPath string             `json:"StdoutPath"`
	StderrPath string             `json:"StderrPath"`
	BindMounts []helperMountSpec  `json:"BindMounts"`
	Limits     helperResourceSpec `json:"Limits"`
}

type helperMountSpec struct {
	Source   string `json:"Source"`
	Target   string `json:"Target"`
	ReadOnly bool   `json:"ReadOnly"`
}

type helperResourceSpec struct {
	CPUTimeMs  int64 `json:"CPUTimeMs"`
	WallTimeMs int64 `json:"WallTimeMs"`
	MemoryMB   int64 `json:"MemoryMB"`
	StackMB    int64 `json:"StackMB"`
	OutputMB   int64 `json:"OutputMB"`
	PIDs       int64 `json:"PIDs"`
}

type helperIsolationSpec struct {
	RootFS         string `json:"RootFS"`
	SeccompProfile string `json:"SeccompProfile"`
}

// Executor runs InvokeSpecs through the adapted sandbox-init helper
// binary, placing the child under the loader Context's cgroup and the
// namespace/seccomp restrictions its isolation profile names.
type Executor struct {
	HelperPath string // defaults to "sandbox-init-slave" on PATH
}

// NewExecutor constructs an Executor using the given helper binary path
// (empty uses the default on PATH).
func NewExecutor(helperPath string) *Executor {
	return &Executor{HelperPath: helperPath}
}

// Run execs spec.Cmd under sandbox-init, placing the resulting process in
// ctx's cgroup. It blocks until the child exits or ctx's wall-time limit
// elapses. It returns a *ViolationError when the wall-time limit or ctx
// ends the child ("timeout"), when the child dies from a signal
// ("signal"), or when it exits with a non-zero status ("exit").
func (e *Executor) Run(ctx context.Context, lc *loader.Context, spec InvokeSpec) error {
	helperPath := e.HelperPath
	if helperPath == "" {
		helperPath = "sandbox-init-slave"
	}

	tokens := make([]string, 0, len(spec.Files))
	for tok := range spec.Files {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens) // deterministic fd assignment for reproducible debugging

	var extraFiles []*os.File
	placeholders := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		f := spec.Files[tok]
		if f == nil {
			continue
		}
		extraFiles = append(extraFiles, f)
		placeholders[tok] = memfile.ChildFDPath(len(extraFiles) - 1)
	}
	resolve := func(s string) string {
		for tok, path := range placeholders {
			s = strings.ReplaceAll(s, tok, path)
		}
		return s
	}
	resolvedCmd := make([]string, len(spec.Cmd))
	for i, tok := range spec.Cmd {
		resolvedCmd[i] = resolve(tok)
	}
	resolvedEnv := make([]string, len(spec.Env))
	for i, kv := range spec.Env {
		resolvedEnv[i] = resolve(kv)
	}

	req := helperInitRequest{
		RunSpec: helperRunSpec{
			WorkDir:    "/",
			Cmd:        resolvedCmd,
			Env:        resolvedEnv,
			StdinPath:  resolve(spec.StdinPath),
			StdoutPath: resolve(spec.StdoutPath),
			StderrPath: resolve(spec.StderrPath),
			Limits: helperResourceSpec{
				WallTimeMs: spec.Limits.WallTime.Milliseconds(),
				MemoryMB:   spec.Limits.MemoryMB,
				OutputMB:   spec.Limits.OutputMB,
				PIDs:       spec.Limits.PIDs,
			},
		},
		Isolation: helperIsolationSpec{
			RootFS:         spec.Isolation.RootFS,
			SeccompProfile: spec.Isolation.SeccompProfile,
		},
		EnableSeccomp: spec.EnableSecc,
		EnableNs:      spec.EnableNS,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrapf(err, errors.SlaveSandboxViolation, "marshal sandbox-init request: %v", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Limits.WallTime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Limits.WallTime)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, helperPath)
	cmd.Stdin = bytes.NewReader(body)
	cmd.ExtraFiles = extraFiles
	cmd.SysProcAttr = buildSysProcAttr(spec.Isolation, spec.EnableNS)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := lc.ApplyLimits(spec.Limits.MemoryMB, spec.Limits.PIDs); err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, errors.SlaveSandboxViolation, "start sandbox helper: %v", err)
	}
	if err := lc.AddProcess(cmd.Process.Pid); err != nil {
		_ = cmd.Process.Kill()
		return err
	}

	waitErr := cmd.Wait()
	if waitErr == nil {
		return nil
	}
	if runCtx.Err() != nil {
		return &ViolationError{Operation: "timeout", Detail: fmt.Sprintf("wall time of %s exceeded", spec.Limits.WallTime)}
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return &ViolationError{Operation: "signal", Detail: status.Signal().String()}
		}
		return &ViolationError{Operation: "exit", Detail: stderr.String()}
	}
	return errors.Wrapf(waitErr, errors.SlaveSandboxViolation, "sandbox helper failed: %v", waitErr)
}
