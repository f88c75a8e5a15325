//go:build linux

// Command slave is the untrusted execution slave: invoked by a trusted
// master as `slave <masterPort> <slaveUid>`, it dials back to the master
// over localhost, compiles and checks exactly one submission, and exits.
// Grounded on
// original_source/.../execution/slave/UntrustedJvmMain.java's main, which
// redirects stdout/stderr to a log file and installs its security manager
// before doing anything else — the Go analogue redirects to a log file
// and constructs the sandbox Policy before the ipc.Client ever hands it
// untrusted submission bytes.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/lscobe16/SimpleCodeTester/internal/compiler"
	"github.com/lscobe16/SimpleCodeTester/internal/ipc"
	"github.com/lscobe16/SimpleCodeTester/internal/loader"
	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/internal/slave"
	"github.com/lscobe16/SimpleCodeTester/internal/slaveconfig"
	"github.com/lscobe16/SimpleCodeTester/pkg/utils/contextkey"
	"github.com/lscobe16/SimpleCodeTester/pkg/utils/logger"
)

const defaultConfigPath = "config/slave.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to slave config file")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: slave [-config path] <masterPort> <slaveUid>")
		os.Exit(1)
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid master port %q: %v\n", args[0], err)
		os.Exit(1)
	}
	uid := args[1]

	cfg, err := slaveconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load slave config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Logger.OutputPath == "" {
		cfg.Logger.OutputPath = fmt.Sprintf("/tmp/slave-%s.log", uid)
	}
	if cfg.Logger.ErrorPath == "" {
		cfg.Logger.ErrorPath = cfg.Logger.OutputPath
	}
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	// The slave's own stdout and stderr also go to its log file.
	if cfg.Logger.OutputPath != "stdout" {
		logFile, err := os.OpenFile(cfg.Logger.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			err = unix.Dup2(int(logFile.Fd()), int(os.Stdout.Fd()))
		}
		if err == nil {
			err = unix.Dup2(int(logFile.Fd()), int(os.Stderr.Fd()))
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "redirect output to log file: %v\n", err)
			os.Exit(1)
		}
	}
	baseCtx := context.WithValue(context.Background(), contextkey.SlaveUID, uid)
	log := logger.WithFields(baseCtx)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		log.Error("dial master", zap.Error(err))
		os.Exit(1)
	}

	// Everything constructed below handles untrusted submission bytes;
	// the policy and sandbox machinery must exist before the ipc.Client
	// can hand anything to it.
	client := ipc.NewClient(conn, log)
	comp := compiler.NewGoMemCompiler(log)
	if cfg.GoBin != "" {
		comp.GoBin = cfg.GoBin
	}
	loaders := loader.NewManager(cfg.Sandbox.CgroupRoot)
	policy := sandbox.NewPolicy()
	executor := sandbox.NewExecutor(cfg.Sandbox.HelperPath)

	s := slave.New(client, comp, loaders, policy, executor, slave.Config{
		UID:             uid,
		IdleTimeout:     cfg.IdleTimeout,
		WallClockBudget: cfg.WallClockBudget,
		Isolation:       cfg.Isolation(),
		Limits:          cfg.Limits(),
		EnableNS:        cfg.Sandbox.EnableNS,
		EnableSecc:      cfg.Sandbox.EnableSeccomp,
	}, log)

	ctx, stop := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx); err != nil {
		log.Error("slave shutdown", zap.Error(err))
		os.Exit(1)
	}
}
