package slaveconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slave.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, "idleTimeout: 45s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IdleTimeout != 45*time.Second {
		t.Fatalf("IdleTimeout = %v, want 45s", cfg.IdleTimeout)
	}
	if cfg.WallClockBudget != defaultWallClockBudget {
		t.Fatalf("WallClockBudget = %v, want default", cfg.WallClockBudget)
	}
	if cfg.Sandbox.CgroupRoot != defaultCgroupRoot {
		t.Fatalf("CgroupRoot = %q, want default", cfg.Sandbox.CgroupRoot)
	}
	if cfg.Sandbox.HelperPath != defaultHelperPath {
		t.Fatalf("HelperPath = %q, want default", cfg.Sandbox.HelperPath)
	}
	if cfg.Logger.Level != "info" || cfg.Logger.Format != "json" {
		t.Fatalf("Logger = %+v, want info/json defaults", cfg.Logger)
	}
}

func TestLoadRespectsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
sandbox:
  cgroupRoot: /tmp/custom-cgroup
  memoryMB: 512
  enableSeccomp: true
  enableNamespaces: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sandbox.CgroupRoot != "/tmp/custom-cgroup" {
		t.Fatalf("CgroupRoot = %q", cfg.Sandbox.CgroupRoot)
	}
	if cfg.Sandbox.MemoryMB != 512 {
		t.Fatalf("MemoryMB = %d, want 512", cfg.Sandbox.MemoryMB)
	}
	if !cfg.Sandbox.EnableSeccomp || !cfg.Sandbox.EnableNS {
		t.Fatalf("Sandbox = %+v, want both enable flags true", cfg.Sandbox)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestIsolationAndLimitsDerivedFromConfig(t *testing.T) {
	path := writeConfig(t, `
sandbox:
  rootFS: /srv/chroot
  seccompProfile: config/custom.json
  disableNetwork: true
  wallTime: 3s
  pids: 8
  outputMB: 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	iso := cfg.Isolation()
	if iso.RootFS != "/srv/chroot" || iso.SeccompProfile != "config/custom.json" || !iso.DisableNetwork {
		t.Fatalf("Isolation() = %+v", iso)
	}
	limits := cfg.Limits()
	if limits.WallTime != 3*time.Second || limits.PIDs != 8 || limits.OutputMB != 2 {
		t.Fatalf("Limits() = %+v", limits)
	}
}
