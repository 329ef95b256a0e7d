package cargomcp

import (
	"context"
	"iter"
	"time"
)

// TaskID identifies one toolchain invocation.
type TaskID string

// TaskState is the lifecycle state of a task.
type TaskState string

// Task states.
const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
	TaskTimedOut  TaskState = "timed_out"
)

// Terminal reports whether no further transitions can happen.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskCancelled, TaskTimedOut:
		return true
	}
	return false
}

// GatePolicy decides what happens to a build-mutating command when another
// one already holds its project root.
type GatePolicy string

// Gate policies.
const (
	// GateQueue waits in FIFO order for the root to become free.
	GateQueue GatePolicy = "queue"

	// GateReject fails immediately with EBUSY.
	GateReject GatePolicy = "reject"
)

// FailureKind says why a failed task failed.
type FailureKind string

// Failure kinds.
const (
	// FailureDiagnostics means the toolchain reported errors about the code.
	FailureDiagnostics FailureKind = "diagnostics"

	// FailureInfrastructure means the toolchain failed without attributing
	// an error to the code: a missing binary, a broken registry, a crash.
	FailureInfrastructure FailureKind = "infrastructure"
)

// Command describes one toolchain invocation.
type Command struct {
	// Kind is a short label such as "build" or "doc", used in logs and metrics.
	Kind string

	Program string
	Args    []string
	Root    ProjectRoot

	// Timeout is measured from spawn. Zero means no timeout.
	Timeout time.Duration

	// Mutating commands write toolchain-managed build artifacts and are
	// serialized per project root.
	Mutating bool

	// Gate applies to mutating commands only. Empty means GateQueue.
	Gate GatePolicy

	// Env holds extra KEY=VALUE entries appended to the server environment.
	Env []string
}

// Validate returns an error if the command contains invalid fields.
func (c *Command) Validate() error {
	if c.Program == "" {
		return Errorf(EINVALID, "command program required")
	}
	if c.Root == "" {
		return Errorf(EINVALID, "command project root required")
	}
	if c.Timeout < 0 {
		return Errorf(EINVALID, "command timeout must not be negative")
	}
	switch c.Gate {
	case "", GateQueue, GateReject:
	default:
		return Errorf(EINVALID, "unknown gate policy %q", c.Gate)
	}
	return nil
}

// TaskSnapshot is a point-in-time copy of a task.
type TaskSnapshot struct {
	ID          TaskID        `json:"taskId"`
	Kind        string        `json:"kind,omitempty"`
	CommandLine []string      `json:"command"`
	Root        ProjectRoot   `json:"projectRoot"`
	State       TaskState     `json:"state"`
	ExitCode    *int          `json:"exitCode,omitempty"`
	FailureKind FailureKind   `json:"failureKind,omitempty"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
	Total       int           `json:"total"`
	Next        int           `json:"next"`
	Errors      int           `json:"errors"`
	Warnings    int           `json:"warnings"`
	QueuedAt    time.Time     `json:"queuedAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	FinishedAt  *time.Time    `json:"finishedAt,omitempty"`
	Elapsed     time.Duration `json:"elapsedNs"`
}

// Orchestrator runs toolchain commands asynchronously and tracks them as tasks.
type Orchestrator interface {
	// Start spawns the command and returns without waiting for it to exit.
	// Returns EBUSY when a reject-policy command finds its root taken.
	// A spawn failure is returned as a failed snapshot, not as an error.
	Start(ctx context.Context, cmd Command) (*TaskSnapshot, error)

	// Poll returns the task with diagnostics from index since onward.
	// Returns ENOTFOUND if the task does not exist or was evicted.
	Poll(ctx context.Context, id TaskID, since int) (*TaskSnapshot, error)

	// Cancel terminates the task and waits for the termination to be
	// confirmed. Cancelling a terminal task returns it unchanged.
	Cancel(ctx context.Context, id TaskID) (*TaskSnapshot, error)

	// Wait blocks until the task is terminal.
	Wait(ctx context.Context, id TaskID) (*TaskSnapshot, error)

	// Stream yields diagnostics from index since onward as they are
	// produced, ending when the task is terminal or ctx is done.
	Stream(ctx context.Context, id TaskID, since int) iter.Seq[Diagnostic]

	// Acknowledge evicts a terminal task.
	// Returns EINVALID for tasks that are still live.
	Acknowledge(ctx context.Context, id TaskID) error
}
