// Package otel records cargomcp task metrics with OpenTelemetry.
package otel

import (
	"context"
	"iter"

	"github.com/fwojciec/cargomcp"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// seenCapacity bounds how many finished task ids are remembered for
// deduplication.
const seenCapacity = 4096

// Ensure MetricsOrchestrator implements cargomcp.Orchestrator.
var _ cargomcp.Orchestrator = (*MetricsOrchestrator)(nil)

// MetricsOrchestrator wraps an Orchestrator and records task counts and
// durations. A task is counted as finished the first time any operation
// observes it in a terminal state.
type MetricsOrchestrator struct {
	next cargomcp.Orchestrator

	started  metric.Int64Counter
	finished metric.Int64Counter
	rejected metric.Int64Counter
	duration metric.Float64Histogram

	seen *lru.Cache[cargomcp.TaskID, struct{}]
}

// NewMetricsOrchestrator creates the instruments on meter and wraps next.
func NewMetricsOrchestrator(next cargomcp.Orchestrator, meter metric.Meter) (*MetricsOrchestrator, error) {
	started, err := meter.Int64Counter("cargomcp.task.started",
		metric.WithDescription("Number of tasks accepted by the orchestrator"),
	)
	if err != nil {
		return nil, err
	}

	finished, err := meter.Int64Counter("cargomcp.task.finished",
		metric.WithDescription("Number of tasks that reached a terminal state"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("cargomcp.task.rejected",
		metric.WithDescription("Number of commands rejected because the project was busy"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("cargomcp.task.duration",
		metric.WithDescription("Wall clock duration of finished tasks in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	seen, err := lru.New[cargomcp.TaskID, struct{}](seenCapacity)
	if err != nil {
		return nil, err
	}

	return &MetricsOrchestrator{
		next:     next,
		started:  started,
		finished: finished,
		rejected: rejected,
		duration: duration,
		seen:     seen,
	}, nil
}

// Start delegates and counts accepted and rejected commands.
func (o *MetricsOrchestrator) Start(ctx context.Context, cmd cargomcp.Command) (*cargomcp.TaskSnapshot, error) {
	snap, err := o.next.Start(ctx, cmd)
	if err != nil {
		if cargomcp.ErrorCode(err) == cargomcp.EBUSY {
			o.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", cmd.Kind)))
		}
		return nil, err
	}
	o.started.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", cmd.Kind)))
	o.observe(ctx, snap)
	return snap, nil
}

func (o *MetricsOrchestrator) Poll(ctx context.Context, id cargomcp.TaskID, since int) (*cargomcp.TaskSnapshot, error) {
	snap, err := o.next.Poll(ctx, id, since)
	if err == nil {
		o.observe(ctx, snap)
	}
	return snap, err
}

func (o *MetricsOrchestrator) Cancel(ctx context.Context, id cargomcp.TaskID) (*cargomcp.TaskSnapshot, error) {
	snap, err := o.next.Cancel(ctx, id)
	if err == nil {
		o.observe(ctx, snap)
	}
	return snap, err
}

func (o *MetricsOrchestrator) Wait(ctx context.Context, id cargomcp.TaskID) (*cargomcp.TaskSnapshot, error) {
	snap, err := o.next.Wait(ctx, id)
	if err == nil {
		o.observe(ctx, snap)
	}
	return snap, err
}

func (o *MetricsOrchestrator) Stream(ctx context.Context, id cargomcp.TaskID, since int) iter.Seq[cargomcp.Diagnostic] {
	return o.next.Stream(ctx, id, since)
}

// Acknowledge delegates and forgets the task.
func (o *MetricsOrchestrator) Acknowledge(ctx context.Context, id cargomcp.TaskID) error {
	if err := o.next.Acknowledge(ctx, id); err != nil {
		return err
	}
	o.seen.Remove(id)
	return nil
}

// observe records a terminal snapshot once per task.
func (o *MetricsOrchestrator) observe(ctx context.Context, snap *cargomcp.TaskSnapshot) {
	if snap == nil || !snap.State.Terminal() {
		return
	}
	if ok, _ := o.seen.ContainsOrAdd(snap.ID, struct{}{}); ok {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", snap.Kind),
		attribute.String("state", string(snap.State)),
	)
	o.finished.Add(ctx, 1, attrs)
	o.duration.Record(ctx, snap.Elapsed.Seconds(), attrs)
}
