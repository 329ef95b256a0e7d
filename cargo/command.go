package cargo

import (
	"slices"
	"strings"
	"time"

	"github.com/fwojciec/cargomcp"
)

// Command kinds accepted by the run operation.
const (
	KindBuild  = "build"
	KindCheck  = "check"
	KindTest   = "test"
	KindRun    = "run"
	KindClippy = "clippy"
	KindDoc    = "doc"
	KindBench  = "bench"
)

// Kinds lists the command kinds the run operation accepts.
var Kinds = []string{KindBuild, KindCheck, KindTest, KindRun, KindClippy, KindDoc, KindBench}

// reservedFlags control how output is produced or where the project is and
// are set by the server.
var reservedFlags = []string{"--message-format", "--manifest-path", "--color"}

// NewCommand builds the cargo invocation for one run operation. Every kind
// writes into the target directory, so every command is mutating.
func NewCommand(program, kind string, args []string, root cargomcp.ProjectRoot, timeout time.Duration, gate cargomcp.GatePolicy) (cargomcp.Command, error) {
	if !slices.Contains(Kinds, kind) {
		return cargomcp.Command{}, cargomcp.Errorf(cargomcp.EINVALID, "unknown command kind %q, want one of %s", kind, strings.Join(Kinds, ", "))
	}
	for _, arg := range args {
		for _, flag := range reservedFlags {
			if arg == flag || strings.HasPrefix(arg, flag+"=") {
				return cargomcp.Command{}, cargomcp.Errorf(cargomcp.EINVALID, "argument %s is set by the server", flag)
			}
		}
	}
	if program == "" {
		program = "cargo"
	}

	argv := []string{kind, "--message-format=json", "--color=never"}
	argv = append(argv, args...)
	return cargomcp.Command{
		Kind:     kind,
		Program:  program,
		Args:     argv,
		Root:     root,
		Timeout:  timeout,
		Mutating: true,
		Gate:     gate,
	}, nil
}

// DocCommand builds the documentation generation run by an index refresh.
// It is rejected rather than queued when the project is busy.
func DocCommand(program string, root cargomcp.ProjectRoot, timeout time.Duration) cargomcp.Command {
	if program == "" {
		program = "cargo"
	}
	return cargomcp.Command{
		Kind:     KindDoc,
		Program:  program,
		Args:     []string{"doc", "--document-private-items", "--message-format=json", "--color=never"},
		Root:     root,
		Timeout:  timeout,
		Mutating: true,
		Gate:     cargomcp.GateReject,
	}
}
