package mock

import (
	"context"
	"iter"

	"github.com/fwojciec/cargomcp"
)

var _ cargomcp.Orchestrator = (*Orchestrator)(nil)

// Orchestrator is a mock implementation of cargomcp.Orchestrator.
type Orchestrator struct {
	StartFn       func(ctx context.Context, cmd cargomcp.Command) (*cargomcp.TaskSnapshot, error)
	PollFn        func(ctx context.Context, id cargomcp.TaskID, since int) (*cargomcp.TaskSnapshot, error)
	CancelFn      func(ctx context.Context, id cargomcp.TaskID) (*cargomcp.TaskSnapshot, error)
	WaitFn        func(ctx context.Context, id cargomcp.TaskID) (*cargomcp.TaskSnapshot, error)
	StreamFn      func(ctx context.Context, id cargomcp.TaskID, since int) iter.Seq[cargomcp.Diagnostic]
	AcknowledgeFn func(ctx context.Context, id cargomcp.TaskID) error
}

func (o *Orchestrator) Start(ctx context.Context, cmd cargomcp.Command) (*cargomcp.TaskSnapshot, error) {
	return o.StartFn(ctx, cmd)
}

func (o *Orchestrator) Poll(ctx context.Context, id cargomcp.TaskID, since int) (*cargomcp.TaskSnapshot, error) {
	return o.PollFn(ctx, id, since)
}

func (o *Orchestrator) Cancel(ctx context.Context, id cargomcp.TaskID) (*cargomcp.TaskSnapshot, error) {
	return o.CancelFn(ctx, id)
}

func (o *Orchestrator) Wait(ctx context.Context, id cargomcp.TaskID) (*cargomcp.TaskSnapshot, error) {
	return o.WaitFn(ctx, id)
}

func (o *Orchestrator) Stream(ctx context.Context, id cargomcp.TaskID, since int) iter.Seq[cargomcp.Diagnostic] {
	return o.StreamFn(ctx, id, since)
}

func (o *Orchestrator) Acknowledge(ctx context.Context, id cargomcp.TaskID) error {
	return o.AcknowledgeFn(ctx, id)
}
