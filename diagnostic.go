package cargomcp

// Severity is the importance of a diagnostic.
type Severity string

// Severity levels.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Rank orders severities from least (note) to most (error) important.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// DiagnosticKind classifies where a diagnostic came from.
type DiagnosticKind string

// Diagnostic kinds.
const (
	// KindCompiler is a structured rustc message relayed by cargo.
	KindCompiler DiagnosticKind = "compiler"

	// KindArtifact reports a compiled artifact or build script run.
	KindArtifact DiagnosticKind = "artifact"

	// KindBuild is any other structured cargo record, such as build-finished.
	KindBuild DiagnosticKind = "build"

	// KindTest is a libtest line: a panic, a failed test or a summary.
	KindTest DiagnosticKind = "test"

	// KindUnstructured preserves a line that carried no structured record.
	KindUnstructured DiagnosticKind = "unstructured"

	// KindSpawn reports that the process could not be started.
	KindSpawn DiagnosticKind = "spawn"
)

// Channel identifies the output stream a line was read from.
type Channel string

// Output channels.
const (
	ChannelStdout Channel = "stdout"
	ChannelStderr Channel = "stderr"
)

// Span is a source location a diagnostic points at.
type Span struct {
	File        string `json:"file"`
	LineStart   int    `json:"lineStart"`
	LineEnd     int    `json:"lineEnd"`
	ColumnStart int    `json:"columnStart"`
	ColumnEnd   int    `json:"columnEnd"`
	Label       string `json:"label,omitempty"`
}

// Diagnostic is one normalized toolchain message.
// Severity is always set. Span is nil for project-level messages.
type Diagnostic struct {
	Seq        int            `json:"seq"`
	Severity   Severity       `json:"severity"`
	Kind       DiagnosticKind `json:"kind"`
	Channel    Channel        `json:"channel,omitempty"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Span       *Span          `json:"span,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
	Rendered   string         `json:"rendered,omitempty"`
}

// IsStructuredError reports whether the diagnostic is an error that the
// toolchain itself attributed, as opposed to free-form error text.
func (d *Diagnostic) IsStructuredError() bool {
	if d.Severity != SeverityError {
		return false
	}
	return d.Kind == KindCompiler || d.Kind == KindTest
}

// DiagnosticParser converts raw toolchain output lines into diagnostics.
// A parser holds per-invocation state and must not be shared across tasks.
type DiagnosticParser interface {
	// Parse maps one line to exactly one diagnostic. Seq is left for the
	// caller to assign.
	Parse(line string, ch Channel) Diagnostic
}
