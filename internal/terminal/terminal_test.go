//go:build linux

package terminal

import (
	"os"
	"testing"
)

func TestSetInputScriptsStdin(t *testing.T) {
	ic, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ic.Close()

	if err := ic.SetInput([]string{"3 4", "hello"}); err != nil {
		t.Fatalf("SetInput: %v", err)
	}

	f, err := os.Open(ic.StdinPath())
	if err != nil {
		t.Fatalf("open stdin path: %v", err)
	}
	defer f.Close()
	buf := make([]byte, 64)
	n, _ := f.Read(buf)
	got := string(buf[:n])
	want := "3 4\nhello\n"
	if got != want {
		t.Fatalf("stdin contents = %q, want %q", got, want)
	}
}

func TestResetClearsCapturedOutput(t *testing.T) {
	ic, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ic.Close()

	f, err := os.OpenFile(ic.StdoutPath(), os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open stdout path: %v", err)
	}
	if _, err := f.WriteString("first run\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	out, err := ic.Output()
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if out != "first run\n" {
		t.Fatalf("Output = %q", out)
	}

	if err := ic.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	out, err = ic.Output()
	if err != nil {
		t.Fatalf("Output after reset: %v", err)
	}
	if out != "" {
		t.Fatalf("Output after reset = %q, want empty", out)
	}
}
