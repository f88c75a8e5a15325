// Package wire defines the master<->slave protocol: message kinds, their
// payloads, and the length-prefixed JSON framing used to exchange them over
// a local TCP socket (spec §4.1, §6).
package wire

import "encoding/json"

// Kind discriminates an Envelope's payload.
type Kind string

const (
	// Master-bound (slave -> master).
	KindSlaveStarted             Kind = "SlaveStarted"
	KindSlaveTimedOut            Kind = "SlaveTimedOut"
	KindCompilationFailed        Kind = "CompilationFailed"
	KindSubmissionResult         Kind = "SubmissionResult"
	KindSlaveDiedWithUnknownErr  Kind = "SlaveDiedWithUnknownError"
	KindDyingMessage             Kind = "DyingMessage"
	// Slave-bound (master -> slave).
	KindCompileAndCheckSubmission Kind = "CompileAndCheckSubmission"
)

// Envelope is the wire-level shape: a discriminator plus a raw payload that
// is decoded once the kind is known.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SlaveStarted announces the slave is alive and ready to receive work.
type SlaveStarted struct {
	UID string `json:"uid"`
	PID int    `json:"pid"`
}

// SlaveTimedOut reports the slave never received work within the idle
// window.
type SlaveTimedOut struct {
	UID string `json:"uid"`
}

// CompilationFailed reports that the submission itself failed to compile.
type CompilationFailed struct {
	UID    string            `json:"uid"`
	Output CompilationOutput `json:"output"`
}

// SubmissionResult carries the per-check, per-file results of a fully
// compiled and checked submission.
type SubmissionResult struct {
	UID    string          `json:"uid"`
	Result SubmissionCheck `json:"result"`
}

// SlaveDiedWithUnknownError reports an error outside the scope of any
// single check invocation.
type SlaveDiedWithUnknownError struct {
	UID        string `json:"uid"`
	Stacktrace string `json:"stacktrace"`
}

// DyingMessage is the sentinel the slave always emits as its final message,
// regardless of how the submission went.
type DyingMessage struct {
	UID string `json:"uid"`
}

// CheckType discriminates a CheckSpec payload.
type CheckType string

const (
	CheckTypeImport     CheckType = "IMPORT"
	CheckTypeIO         CheckType = "IO"
	CheckTypeSourceCode CheckType = "SOURCE_CODE"
)

// CheckSpec is one inbound check declaration: a type tag plus its raw,
// type-specific payload.
type CheckSpec struct {
	Type    CheckType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CompileAndCheckSubmission is the single slave-bound message: the
// submission to compile, plus the checks to run against it.
type CompileAndCheckSubmission struct {
	Submission Submission  `json:"submission"`
	Checks     []CheckSpec `json:"checks"`
}

// Submission mirrors submission.Submission on the wire without importing
// that package, keeping the protocol layer free of compiler/runtime types.
type Submission struct {
	Files     map[string]string `json:"files"`
	EntryHint string            `json:"entryHint,omitempty"`
}

// Diagnostic mirrors submission.Diagnostic on the wire.
type Diagnostic struct {
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Message  string `json:"message"`
}

// CompilationOutput mirrors submission.CompilationOutput on the wire
// (artifacts are never serialized — they are an internal, in-process-only
// concept and never cross the socket).
type CompilationOutput struct {
	Successful  bool         `json:"successful"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// CheckResult mirrors checks.Result on the wire.
type CheckResult struct {
	CheckName         string `json:"checkName"`
	FileQualifiedName string `json:"fileQualifiedName"`
	Outcome           string `json:"outcome"`
	Message           string `json:"message"`
	CapturedOutput    string `json:"capturedOutput,omitempty"`
	ErrorOutput       string `json:"errorOutput,omitempty"`
}

// SubmissionCheck mirrors checks.SubmissionResult on the wire: file
// qualified name -> ordered check results, plus an explicit file order
// since JSON object key order is not guaranteed to round-trip.
type SubmissionCheck struct {
	FileOrder []string               `json:"fileOrder"`
	Results   map[string][]CheckResult `json:"results"`
}
