//go:build linux

// Package loader manages disposable sandbox identities: the Go-native
// substitute for a per-submission classloader. Each Context wraps its own
// cgroup and workspace directory, never shared with any other submission
// or check invocation (spec §4.4).
package loader

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// Context is a disposable sandbox identity: a cgroup and a scratch
// directory used only for the control files the sandbox helper writes
// into (cgroup.procs, memory.max, ...), never for submission source or
// compiled artifacts, which stay in memfds.
type Context struct {
	UID        string
	CgroupPath string
	Trusted    bool
	released   bool
}

// Manager creates and tears down Contexts, rooted under a single cgroup
// subtree so every submission's sandbox identities are cleaned up together
// if the slave dies uncleanly.
type Manager struct {
	cgroupRoot string
}

// NewManager roots all loader contexts under cgroupRoot (e.g.
// "/sys/fs/cgroup/slave").
func NewManager(cgroupRoot string) *Manager {
	return &Manager{cgroupRoot: cgroupRoot}
}

// NewContext creates a fresh, uniquely identified sandbox context. trusted
// marks whether code run under it is the slave's own driver/static-check
// machinery (trusted) or submission/check code supplied by the master
// (untrusted); internal/sandbox consults this to decide how much policy to
// apply.
func (m *Manager) NewContext(trusted bool) (*Context, error) {
	uid := uuid.NewString()
	cgroupPath := filepath.Join(m.cgroupRoot, uid)
	if err := os.MkdirAll(cgroupPath, 0o750); err != nil {
		return nil, errors.Wrapf(err, errors.SlaveSandboxViolation, "create cgroup for loader context: %v", err)
	}
	return &Context{UID: uid, CgroupPath: cgroupPath, Trusted: trusted}, nil
}

// ApplyLimits writes cgroup v2 controller files, mirroring the resource
// ceilings a check invocation may not exceed.
func (c *Context) ApplyLimits(memoryMB, pids int64) error {
	if pids > 0 {
		if err := writeControlFile(c.CgroupPath, "pids.max", strconv.FormatInt(pids, 10)); err != nil {
			return err
		}
	}
	if memoryMB > 0 {
		if err := writeControlFile(c.CgroupPath, "memory.max", strconv.FormatInt(memoryMB*1024*1024, 10)); err != nil {
			return err
		}
	}
	return nil
}

// AddProcess moves pid into this context's cgroup.
func (c *Context) AddProcess(pid int) error {
	return writeControlFile(c.CgroupPath, "cgroup.procs", strconv.Itoa(pid))
}

// Release tears down the context's cgroup. It is idempotent.
func (c *Context) Release() error {
	if c.released {
		return nil
	}
	c.released = true
	if err := os.RemoveAll(c.CgroupPath); err != nil {
		return errors.Wrapf(err, errors.SlaveSandboxViolation, "release loader context %s: %v", c.UID, err)
	}
	return nil
}

func writeControlFile(cgroupPath, name, value string) error {
	path := filepath.Join(cgroupPath, name)
	if err := os.WriteFile(path, []byte(value), 0o640); err != nil {
		return errors.Wrapf(err, errors.SlaveSandboxViolation, "write %s: %v", name, err)
	}
	return nil
}
