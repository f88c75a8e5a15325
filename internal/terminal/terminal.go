//go:build linux

// Package terminal intercepts the standard streams of one check
// invocation: a scripted stdin, and stdout/stderr captured for later
// comparison, all memory-backed so nothing a submission prints ever
// touches disk (spec §4.5).
package terminal

import (
	"os"

	"github.com/lscobe16/SimpleCodeTester/internal/memfile"
	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// Interceptor owns the three standard streams for a single invocation of a
// compiled main file under a loader Context. It must be Reset between
// invocations that reuse the same loader context, since a memfd can only
// be appended to or re-read, never truncated in place from outside.
type Interceptor struct {
	stdin  *os.File
	stdout *os.File
	stderr *os.File
}

// New creates an Interceptor with empty captured streams.
func New() (*Interceptor, error) {
	ic := &Interceptor{}
	if err := ic.reset(); err != nil {
		return nil, err
	}
	return ic, nil
}

// SetInput scripts stdin as the given lines, newline-joined, the
// equivalent of spec.md's "the check supplies the lines the submission
// will read from standard input".
func (ic *Interceptor) SetInput(lines []string) error {
	data := joinLines(lines)
	return ic.resetWith(data)
}

// Output returns everything the invocation wrote to stdout since the last
// Reset or SetInput.
func (ic *Interceptor) Output() (string, error) {
	b, err := memfile.ReadAll(ic.stdout)
	if err != nil {
		return "", errors.Wrapf(err, errors.SlaveSandboxViolation, "read captured stdout: %v", err)
	}
	return string(b), nil
}

// ErrorOutput returns everything the invocation wrote to stderr since the
// last Reset or SetInput.
func (ic *Interceptor) ErrorOutput() (string, error) {
	b, err := memfile.ReadAll(ic.stderr)
	if err != nil {
		return "", errors.Wrapf(err, errors.SlaveSandboxViolation, "read captured stderr: %v", err)
	}
	return string(b), nil
}

// StdinPath, StdoutPath, StderrPath return this process's /proc/self/fd
// references to the three memfds. Checks reopen them here and pass the new
// descriptors to the sandboxed child through sandbox.InvokeSpec.Files,
// which renumbers them into the child's own fd space.
func (ic *Interceptor) StdinPath() string  { return memfile.Path(ic.stdin) }
func (ic *Interceptor) StdoutPath() string { return memfile.Path(ic.stdout) }
func (ic *Interceptor) StderrPath() string { return memfile.Path(ic.stderr) }

// Reset discards captured output and rescripts stdin as empty, preparing
// the Interceptor for a fresh invocation.
func (ic *Interceptor) Reset() error {
	return ic.resetWith(nil)
}

func (ic *Interceptor) reset() error {
	return ic.resetWith(nil)
}

func (ic *Interceptor) resetWith(stdin []byte) error {
	if ic.stdin != nil {
		ic.stdin.Close()
	}
	if ic.stdout != nil {
		ic.stdout.Close()
	}
	if ic.stderr != nil {
		ic.stderr.Close()
	}

	var err error
	if ic.stdin, err = memfile.New("stdin", stdin); err != nil {
		return errors.Wrapf(err, errors.SlaveSandboxViolation, "create stdin memfd: %v", err)
	}
	if ic.stdout, err = memfile.New("stdout", nil); err != nil {
		return errors.Wrapf(err, errors.SlaveSandboxViolation, "create stdout memfd: %v", err)
	}
	if ic.stderr, err = memfile.New("stderr", nil); err != nil {
		return errors.Wrapf(err, errors.SlaveSandboxViolation, "create stderr memfd: %v", err)
	}
	return nil
}

// Close releases the underlying memfds.
func (ic *Interceptor) Close() {
	if ic.stdin != nil {
		ic.stdin.Close()
	}
	if ic.stdout != nil {
		ic.stdout.Close()
	}
	if ic.stderr != nil {
		ic.stderr.Close()
	}
}

func joinLines(lines []string) []byte {
	var out []byte
	for _, l := range lines {
		out = append(out, l...)
		out = append(out, '\n')
	}
	return out
}
