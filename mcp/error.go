package mcp

import (
	"errors"
	"fmt"

	"github.com/fwojciec/cargomcp"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Caller-visible error codes.
const (
	CodeInvalidArguments = "invalid_arguments"
	CodeInternal         = "internal"
)

// codes maps application error codes to caller-visible codes. Codes not
// listed here are reported as internal.
var codes = map[string]string{
	cargomcp.EINVALID:      CodeInvalidArguments,
	cargomcp.ENOTPROJECT:   "not_a_project",
	cargomcp.EAMBIGUOUS:    "ambiguous_project",
	cargomcp.EBUSY:         "project_busy",
	cargomcp.ESTALE:        "stale_path",
	cargomcp.EUNAVAILABLE:  "index_unavailable",
	cargomcp.EUNKNOWNCRATE: "unknown_crate",
	cargomcp.ENOTFOUND:     "not_found",
	cargomcp.ESPAWN:        "spawn_error",
}

var hints = map[string]string{
	CodeInvalidArguments: "Check the argument names and types against the tool's input schema.",
	"not_a_project":      "Pass a project_dir inside a Cargo project (a directory with Cargo.toml above it).",
	"ambiguous_project":  "Pass the intended workspace root as project_dir, or drop workspace to use the nearest manifest.",
	"project_busy":       "Another build is running in this project. Retry later, or call run_command with queue=true to wait for it.",
	"stale_path":         "The documentation index changed. Call find_symbol again and use a physical_path from the new result.",
	"index_unavailable":  "No page manifest was generated. Use crate_overview, or fix the errors reported by cargo doc and retry.",
	"unknown_crate":      "Call list_dependencies to see the crate ids of this project.",
	"not_found":          "The task id is unknown or was acknowledged. Start a new task with run_command.",
	"spawn_error":        "Check that cargo is installed and on PATH.",
	CodeInternal:         "An unexpected error occurred. Retrying may help.",
}

// ErrorBody is the structured content of a failed tool call.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint"`

	// Task and Diagnostics are set when a documentation build failed.
	Task        cargomcp.TaskID       `json:"taskId,omitempty"`
	Diagnostics []cargomcp.Diagnostic `json:"diagnostics,omitempty"`
}

// Code returns the caller-visible code for err.
func Code(err error) string {
	if code, ok := codes[cargomcp.ErrorCode(err)]; ok {
		return code
	}
	return CodeInternal
}

// NewErrorBody describes err for the caller.
func NewErrorBody(err error) *ErrorBody {
	code := Code(err)
	body := &ErrorBody{
		Code:    code,
		Message: err.Error(),
		Hint:    hints[code],
	}

	var buildErr *cargomcp.DocBuildError
	if errors.As(err, &buildErr) && buildErr.Task != nil {
		body.Task = buildErr.Task.ID
		for _, d := range buildErr.Task.Diagnostics {
			if d.Severity == cargomcp.SeverityError {
				body.Diagnostics = append(body.Diagnostics, d)
			}
		}
	}
	return body
}

func errorResult(err error) *sdk.CallToolResult {
	body := NewErrorBody(err)
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{
			&sdk.TextContent{Text: fmt.Sprintf("%s: %s\n%s", body.Code, body.Message, body.Hint)},
		},
		StructuredContent: body,
	}
}
