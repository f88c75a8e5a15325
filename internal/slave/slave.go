// Package slave drives one untrusted execution slave's lifecycle: the
// state machine from startup through exactly one compile-and-check round
// to termination, grounded on
// original_source/.../execution/slave/UntrustedJvmMain.java's
// receivedSubmission/shutdown flow, translated into Go's explicit
// error-return style instead of Java's try/catch (spec §4.9).
package slave

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lscobe16/SimpleCodeTester/internal/checks"
	"github.com/lscobe16/SimpleCodeTester/internal/compiler"
	"github.com/lscobe16/SimpleCodeTester/internal/ipc"
	"github.com/lscobe16/SimpleCodeTester/internal/loader"
	"github.com/lscobe16/SimpleCodeTester/internal/sandbox"
	"github.com/lscobe16/SimpleCodeTester/internal/submission"
	"github.com/lscobe16/SimpleCodeTester/internal/wire"
	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// DefaultIdleTimeout is how long a slave waits for its one submission
// before giving up, mirroring UntrustedJvmMain's 30-second idleKiller.
const DefaultIdleTimeout = 30 * time.Second

// State is one point in a slave's lifecycle.
type State string

const (
	StateStarting     State = "STARTING"
	StateIdle         State = "IDLE"
	StateExecuting    State = "EXECUTING"
	StateTerminating  State = "TERMINATING"
	StateDead         State = "DEAD"
)

// Config bundles everything about a slave's identity and the ceilings it
// enforces, independent of the machinery it's wired to.
type Config struct {
	UID             string
	IdleTimeout     time.Duration
	WallClockBudget time.Duration
	Isolation       sandbox.IsolationProfile
	Limits          sandbox.Limits
	EnableNS        bool
	EnableSecc      bool
}

// Slave drives one submission through compilation and checking, emitting
// exactly one terminal message (SubmissionResult, CompilationFailed,
// SlaveTimedOut, or SlaveDiedWithUnknownError) followed always by
// DyingMessage, then stops its ipc.Client.
type Slave struct {
	cfg      Config
	client   *ipc.Client
	compiler compiler.Compiler
	loaders  *loader.Manager
	policy   *sandbox.Policy
	executor checks.Executor
	log      *zap.Logger

	mu           sync.Mutex
	state        State
	terminalOnce sync.Once
}

// New constructs a Slave. cfg.IdleTimeout defaults to DefaultIdleTimeout
// when zero.
func New(client *ipc.Client, comp compiler.Compiler, loaders *loader.Manager, policy *sandbox.Policy, executor checks.Executor, cfg Config, log *zap.Logger) *Slave {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Slave{
		cfg:      cfg,
		client:   client,
		compiler: comp,
		loaders:  loaders,
		policy:   policy,
		executor: executor,
		log:      log,
		state:    StateStarting,
	}
}

// State reports the slave's current lifecycle state.
func (s *Slave) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Slave) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	if s.log != nil {
		s.log.Debug("slave state transition", zap.String("uid", s.cfg.UID), zap.String("state", string(st)))
	}
}

// Run announces the slave, waits for the single CompileAndCheckSubmission
// message (or the idle timer, or ctx cancellation), handles it, and
// returns once the slave has fully shut down. It never returns a
// non-nil error for a submission-scoped failure — those become terminal
// messages instead — only for a failure to shut the ipc.Client down
// cleanly.
func (s *Slave) Run(ctx context.Context) error {
	s.setState(StateStarting)
	s.client.QueueMessage(wire.KindSlaveStarted, wire.SlaveStarted{UID: s.cfg.UID, PID: os.Getpid()})
	s.setState(StateIdle)

	idleTimer := time.NewTimer(s.cfg.IdleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()

		case <-idleTimer.C:
			s.emitTerminal(wire.KindSlaveTimedOut, wire.SlaveTimedOut{UID: s.cfg.UID})
			return s.shutdown()

		case env, ok := <-s.client.Inbox():
			if !ok {
				return s.shutdown()
			}
			if env.Kind != wire.KindCompileAndCheckSubmission {
				continue
			}
			idleTimer.Stop()
			s.setState(StateExecuting)
			s.handleSubmission(ctx, env.Payload)
			return s.shutdown()
		}
	}
}

// handleSubmission implements receivedSubmission: compile, bail out with
// CompilationFailed if compilation didn't succeed, otherwise decode and
// run the checks and report SubmissionResult. Any unexpected error along
// the way becomes SlaveDiedWithUnknownError, the Go analogue of
// UntrustedJvmMain's catch (Throwable e) branch.
func (s *Slave) handleSubmission(ctx context.Context, raw json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			s.emitTerminal(wire.KindSlaveDiedWithUnknownErr, wire.SlaveDiedWithUnknownError{
				UID:        s.cfg.UID,
				Stacktrace: fmt.Sprintf("panic: %v", r),
			})
		}
	}()

	var msg wire.CompileAndCheckSubmission
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.died(errors.Wrapf(err, errors.SlaveMalformedMessage, "unmarshal CompileAndCheckSubmission: %v", err))
		return
	}

	sub := submission.Submission{Files: msg.Submission.Files, EntryHint: msg.Submission.EntryHint}

	out, err := s.compiler.Compile(ctx, sub)
	if err != nil {
		s.died(err)
		return
	}
	if !out.Successful {
		s.emitTerminal(wire.KindCompilationFailed, wire.CompilationFailed{
			UID:    s.cfg.UID,
			Output: toWireCompilationOutput(out),
		})
		return
	}

	compiledSub := buildCompiledSubmission(out, sub.Files)

	cks, err := checks.DecodeAll(ctx, msg.Checks, s.compiler)
	if err != nil {
		s.died(err)
		return
	}

	runner := checks.NewRunner(s.loaders, s.executor, s.policy, s.cfg.Isolation, s.cfg.Limits)
	runner.EnableNS = s.cfg.EnableNS
	runner.EnableSecc = s.cfg.EnableSecc
	if s.cfg.WallClockBudget > 0 {
		runner.WallClockBudget = s.cfg.WallClockBudget
	}

	result, err := runner.Run(ctx, &compiledSub, cks)
	if err != nil {
		s.died(err)
		return
	}

	s.emitTerminal(wire.KindSubmissionResult, wire.SubmissionResult{
		UID:    s.cfg.UID,
		Result: toWireSubmissionCheck(result),
	})
}

func (s *Slave) died(err error) {
	stack := err.Error()
	if e, ok := err.(*errors.Error); ok && e.Stack != "" {
		stack = e.Stack
	}
	s.emitTerminal(wire.KindSlaveDiedWithUnknownErr, wire.SlaveDiedWithUnknownError{
		UID:        s.cfg.UID,
		Stacktrace: stack,
	})
}

// emitTerminal enqueues kind/payload as the slave's one terminal message.
// Only the first call has any effect, since spec.md §4.9 requires exactly
// one terminal message per submission regardless of which code path got
// there first.
func (s *Slave) emitTerminal(kind wire.Kind, payload interface{}) {
	s.terminalOnce.Do(func() {
		s.client.QueueMessage(kind, payload)
	})
}

// shutdown always queues DyingMessage and stops the ipc.Client, the Go
// analogue of UntrustedJvmMain's shutdown().
func (s *Slave) shutdown() error {
	s.setState(StateTerminating)
	s.client.QueueMessage(wire.KindDyingMessage, wire.DyingMessage{UID: s.cfg.UID})
	err := s.client.Stop()
	s.setState(StateDead)
	return err
}
