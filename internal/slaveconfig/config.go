// Package slaveconfig loads cmd/slave's YAML configuration, following the
// teacher's loadYAML/defaults-filling convention (cmd/judge-service/config.go).
package slaveconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/pkg/utils/logger"
)

const (
	defaultIdleTimeout     = 30 * time.Second
	defaultWallClockBudget = 10 * time.Second
	defaultWallTime        = 5 * time.Second
	defaultMemoryMB        = 256
	defaultPIDs            = 32
	defaultOutputMB        = 4
	defaultHelperPath      = "sandbox-init-slave"
	defaultSeccompProfile  = "config/seccomp-slave.json"
	defaultCgroupRoot      = "/sys/fs/cgroup/slave"
)

// SandboxConfig holds the sandbox ceilings and isolation toggles a slave
// enforces on every check invocation.
type SandboxConfig struct {
	CgroupRoot     string        `yaml:"cgroupRoot"`
	HelperPath     string        `yaml:"helperPath"`
	SeccompProfile string        `yaml:"seccompProfile"`
	RootFS         string        `yaml:"rootFS"`
	DisableNetwork bool          `yaml:"disableNetwork"`
	EnableNS       bool          `yaml:"enableNamespaces"`
	EnableSeccomp  bool          `yaml:"enableSeccomp"`
	WallTime       time.Duration `yaml:"wallTime"`
	MemoryMB       int64         `yaml:"memoryMB"`
	PIDs           int64         `yaml:"pids"`
	OutputMB       int64         `yaml:"outputMB"`
}

// Config is cmd/slave's full configuration: its own identity plus the
// ambient logging and sandbox settings.
type Config struct {
	Logger          logger.Config `yaml:"logger"`
	Sandbox         SandboxConfig `yaml:"sandbox"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	WallClockBudget time.Duration `yaml:"wallClockBudget"`
	GoBin           string        `yaml:"goBin"`
}

// Load reads and validates the YAML config at path, filling in defaults
// for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read slave config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse slave config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.WallClockBudget <= 0 {
		cfg.WallClockBudget = defaultWallClockBudget
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
	if cfg.Sandbox.CgroupRoot == "" {
		cfg.Sandbox.CgroupRoot = defaultCgroupRoot
	}
	if cfg.Sandbox.HelperPath == "" {
		cfg.Sandbox.HelperPath = defaultHelperPath
	}
	if cfg.Sandbox.SeccompProfile == "" {
		cfg.Sandbox.SeccompProfile = defaultSeccompProfile
	}
	if cfg.Sandbox.WallTime <= 0 {
		cfg.Sandbox.WallTime = defaultWallTime
	}
	if cfg.Sandbox.MemoryMB <= 0 {
		cfg.Sandbox.MemoryMB = defaultMemoryMB
	}
	if cfg.Sandbox.PIDs <= 0 {
		cfg.Sandbox.PIDs = defaultPIDs
	}
	if cfg.Sandbox.OutputMB <= 0 {
		cfg.Sandbox.OutputMB = defaultOutputMB
	}
}

// Isolation builds the sandbox.IsolationProfile this config describes.
func (c *Config) Isolation() sandbox.IsolationProfile {
	return sandbox.IsolationProfile{
		RootFS:         c.Sandbox.RootFS,
		SeccompProfile: c.Sandbox.SeccompProfile,
		DisableNetwork: c.Sandbox.DisableNetwork,
	}
}

// Limits builds the sandbox.Limits this config describes.
func (c *Config) Limits() sandbox.Limits {
	return sandbox.Limits{
		WallTime: c.Sandbox.WallTime,
		MemoryMB: c.Sandbox.MemoryMB,
		PIDs:     c.Sandbox.PIDs,
		OutputMB: c.Sandbox.OutputMB,
	}
}
