// Package slog provides logging decorators for cargomcp services.
package slog

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/fwojciec/cargomcp"
)

// Ensure LoggingOrchestrator implements cargomcp.Orchestrator.
var _ cargomcp.Orchestrator = (*LoggingOrchestrator)(nil)

// LoggingOrchestrator wraps an Orchestrator with logging of task lifecycle
// operations.
type LoggingOrchestrator struct {
	next   cargomcp.Orchestrator
	logger *slog.Logger
}

// NewLoggingOrchestrator creates a new LoggingOrchestrator.
func NewLoggingOrchestrator(next cargomcp.Orchestrator, logger *slog.Logger) *LoggingOrchestrator {
	return &LoggingOrchestrator{next: next, logger: logger}
}

// Start delegates to the wrapped orchestrator and logs the new task.
func (o *LoggingOrchestrator) Start(ctx context.Context, cmd cargomcp.Command) (snap *cargomcp.TaskSnapshot, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"kind", cmd.Kind,
			"root", cmd.Root,
			"args", cmd.Args,
			"duration", time.Since(begin),
			"err", err,
		}
		if snap != nil {
			attrs = append(attrs, "task", snap.ID, "state", snap.State)
		}
		o.logger.Info("task start", attrs...)
	}(time.Now())
	return o.next.Start(ctx, cmd)
}

// Poll delegates to the wrapped orchestrator and logs at debug level.
func (o *LoggingOrchestrator) Poll(ctx context.Context, id cargomcp.TaskID, since int) (snap *cargomcp.TaskSnapshot, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"task", id,
			"since", since,
			"duration", time.Since(begin),
			"err", err,
		}
		if snap != nil {
			attrs = append(attrs, "state", snap.State, "next", snap.Next)
		}
		o.logger.Debug("task poll", attrs...)
	}(time.Now())
	return o.next.Poll(ctx, id, since)
}

// Cancel delegates to the wrapped orchestrator and logs the outcome.
func (o *LoggingOrchestrator) Cancel(ctx context.Context, id cargomcp.TaskID) (snap *cargomcp.TaskSnapshot, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"task", id,
			"duration", time.Since(begin),
			"err", err,
		}
		if snap != nil {
			attrs = append(attrs, "state", snap.State)
		}
		o.logger.Info("task cancel", attrs...)
	}(time.Now())
	return o.next.Cancel(ctx, id)
}

// Wait delegates to the wrapped orchestrator and logs the final state.
func (o *LoggingOrchestrator) Wait(ctx context.Context, id cargomcp.TaskID) (snap *cargomcp.TaskSnapshot, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"task", id,
			"duration", time.Since(begin),
			"err", err,
		}
		if snap != nil {
			attrs = append(attrs, "state", snap.State, "errors", snap.Errors, "warnings", snap.Warnings)
		}
		o.logger.Info("task wait", attrs...)
	}(time.Now())
	return o.next.Wait(ctx, id)
}

// Stream delegates to the wrapped orchestrator.
func (o *LoggingOrchestrator) Stream(ctx context.Context, id cargomcp.TaskID, since int) iter.Seq[cargomcp.Diagnostic] {
	o.logger.Debug("task stream", "task", id, "since", since)
	return o.next.Stream(ctx, id, since)
}

// Acknowledge delegates to the wrapped orchestrator and logs at debug level.
func (o *LoggingOrchestrator) Acknowledge(ctx context.Context, id cargomcp.TaskID) (err error) {
	defer func() {
		o.logger.Debug("task acknowledge", "task", id, "err", err)
	}()
	return o.next.Acknowledge(ctx, id)
}
