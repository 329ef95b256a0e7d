package cargomcp_test

import (
	"testing"

	"github.com/fwojciec/cargomcp"
	"github.com/stretchr/testify/assert"
)

func TestFormatDiagnostic(t *testing.T) {
	t.Parallel()

	t.Run("prefixes the source location and code", func(t *testing.T) {
		t.Parallel()

		d := cargomcp.Diagnostic{
			Severity: cargomcp.SeverityError,
			Code:     "E0308",
			Message:  "mismatched types",
			Span:     &cargomcp.Span{File: "src/main.rs", LineStart: 3, LineEnd: 3, ColumnStart: 17, ColumnEnd: 19},
		}

		assert.Equal(t, "src/main.rs:3:17: error[E0308]: mismatched types", cargomcp.FormatDiagnostic(d))
	})

	t.Run("omits the location of project-level messages", func(t *testing.T) {
		t.Parallel()

		d := cargomcp.Diagnostic{Severity: cargomcp.SeverityWarning, Message: "unused manifest key: package.edtion"}

		assert.Equal(t, "warning: unused manifest key: package.edtion", cargomcp.FormatDiagnostic(d))
	})
}

func TestFormatSnapshot(t *testing.T) {
	t.Parallel()

	exit := 101
	snap := &cargomcp.TaskSnapshot{
		ID:       "t1",
		State:    cargomcp.TaskFailed,
		ExitCode: &exit,
		Errors:   1,
		Diagnostics: []cargomcp.Diagnostic{
			{Severity: cargomcp.SeverityNote, Message: "compiled mycrate"},
			{Severity: cargomcp.SeverityError, Message: "test failed", Span: &cargomcp.Span{File: "src/lib.rs", LineStart: 12, ColumnStart: 9}},
		},
	}

	t.Run("skips notes by default", func(t *testing.T) {
		t.Parallel()

		expected := "task t1: failed (exit 101), 1 errors, 0 warnings\nsrc/lib.rs:12:9: error: test failed\n"
		assert.Equal(t, expected, cargomcp.FormatSnapshot(snap, false))
	})

	t.Run("includes notes when verbose", func(t *testing.T) {
		t.Parallel()

		assert.Contains(t, cargomcp.FormatSnapshot(snap, true), "note: compiled mycrate\n")
	})

	t.Run("formats running tasks without an exit code", func(t *testing.T) {
		t.Parallel()

		running := &cargomcp.TaskSnapshot{ID: "t2", State: cargomcp.TaskRunning}

		assert.Equal(t, "task t2: running, 0 errors, 0 warnings\n", cargomcp.FormatSnapshot(running, false))
	})
}
