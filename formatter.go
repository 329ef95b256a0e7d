package cargomcp

import (
	"fmt"
	"strings"
)

// FormatDiagnostic renders a diagnostic as a single compiler-style line,
// prefixed by its source location when it has one.
func FormatDiagnostic(d Diagnostic) string {
	var b strings.Builder
	if d.Span != nil {
		fmt.Fprintf(&b, "%s:%d:%d: ", d.Span.File, d.Span.LineStart, d.Span.ColumnStart)
	}
	b.WriteString(string(d.Severity))
	if d.Code != "" {
		b.WriteString("[")
		b.WriteString(d.Code)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// FormatSnapshot renders a task snapshot header followed by its
// diagnostics, one per line. Notes are omitted unless verbose is set.
func FormatSnapshot(s *TaskSnapshot, verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s: %s", s.ID, s.State)
	if s.ExitCode != nil {
		fmt.Fprintf(&b, " (exit %d)", *s.ExitCode)
	}
	fmt.Fprintf(&b, ", %d errors, %d warnings\n", s.Errors, s.Warnings)
	for _, d := range s.Diagnostics {
		if !verbose && d.Severity == SeverityNote {
			continue
		}
		b.WriteString(FormatDiagnostic(d))
		b.WriteString("\n")
	}
	return b.String()
}
