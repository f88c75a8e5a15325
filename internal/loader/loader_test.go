//go:build linux

package loader

import (
	"os"
	"testing"
)

func TestNewContextCreatesAndReleasesUniqueDirectory(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)

	ctxA, err := m.NewContext(false)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	ctxB, err := m.NewContext(false)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if ctxA.UID == ctxB.UID {
		t.Fatal("expected distinct UIDs per context")
	}
	if _, err := os.Stat(ctxA.CgroupPath); err != nil {
		t.Fatalf("expected cgroup path to exist: %v", err)
	}

	if err := ctxA.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ctxA.CgroupPath); !os.IsNotExist(err) {
		t.Fatal("expected cgroup path to be removed after Release")
	}
	// Idempotent.
	if err := ctxA.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestTrustedFlagIsPreserved(t *testing.T) {
	m := NewManager(t.TempDir())
	trusted, err := m.NewContext(true)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer trusted.Release()
	if !trusted.Trusted {
		t.Fatal("expected Trusted to be true")
	}

	untrusted, err := m.NewContext(false)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer untrusted.Release()
	if untrusted.Trusted {
		t.Fatal("expected Trusted to be false")
	}
}
