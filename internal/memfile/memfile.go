//go:build linux

// Package memfile provides anonymous, memory-backed files for code and
// data that must never touch persistent disk: submission sources, compiled
// artifacts, and the scripted stdin/captured stdout+stderr of a check
// invocation.
package memfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// New creates an anonymous memfd, writes data to it, and returns it as an
// *os.File seeked back to the start. The returned file has no path on any
// filesystem; Path reports its /proc/self/fd reference in this process,
// and ChildFDPath the reference an exec'd child sees through ExtraFiles.
func New(name string, data []byte) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create %q: %w", name, err)
	}
	f := os.NewFile(uintptr(fd), name)
	if len(data) > 0 {
		if _, err := f.Write(data); err != nil {
			f.Close()
			return nil, fmt.Errorf("write memfd %q: %w", name, err)
		}
	}
	if _, err := f.Seek(0, os.SEEK_SET); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek memfd %q: %w", name, err)
	}
	return f, nil
}

// Path returns the /proc/self/fd reference this process can open to read
// or write f's contents, without f ever having a name anywhere in the
// filesystem tree. The number is f's descriptor in this process, so an
// exec'd child must use ChildFDPath instead.
func Path(f *os.File) string {
	return fmt.Sprintf("/proc/self/fd/%d", f.Fd())
}

// ChildFDPath returns the /proc/self/fd reference for the i-th entry of an
// exec.Cmd's ExtraFiles slice, as seen by the exec'd child: os/exec always
// renumbers ExtraFiles to consecutive descriptors starting at 3, so a path
// computed from the parent's own Fd() would name the wrong file in the
// child.
func ChildFDPath(i int) string {
	return fmt.Sprintf("/proc/self/fd/%d", 3+i)
}

// MakeExecutable sets the execute bit on a memfd so an exec'd child can run
// it directly via its /proc/self/fd path.
func MakeExecutable(f *os.File) error {
	if err := f.Chmod(0o755); err != nil {
		return fmt.Errorf("chmod memfd %q: %w", f.Name(), err)
	}
	return nil
}

// ReadAll drains f from its current offset to EOF. Callers that wrote to f
// and want to read back what a child process appended must Seek(0, 0)
// first.
func ReadAll(f *os.File) ([]byte, error) {
	if _, err := f.Seek(0, os.SEEK_SET); err != nil {
		return nil, fmt.Errorf("seek memfd %q: %w", f.Name(), err)
	}
	return readAllFrom(f)
}

func readAllFrom(f *os.File) ([]byte, error) {
	var out []byte
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
	}
}
