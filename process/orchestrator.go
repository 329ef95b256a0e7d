// Package process runs toolchain commands as asynchronous, cancellable
// tasks and turns their output into diagnostics.
package process

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/fwojciec/cargomcp"
	"github.com/fwojciec/cargomcp/cargo"
	"github.com/google/uuid"
)

// Ensure Orchestrator implements cargomcp.Orchestrator at compile time.
var _ cargomcp.Orchestrator = (*Orchestrator)(nil)

// Defaults for Orchestrator settings left at zero.
const (
	DefaultGracePeriod = 5 * time.Second
	DefaultRetention   = 30 * time.Minute
)

// Orchestrator runs commands as tasks. Build-mutating commands go through a
// per-root Gate. Terminal tasks are kept for Retention and then evicted.
type Orchestrator struct {
	// GracePeriod is how long a terminated process may take to exit before
	// it is killed.
	GracePeriod time.Duration

	// Retention is how long terminal tasks remain pollable.
	Retention time.Duration

	// NewParser creates the parser for one task. Defaults to cargo.NewParser.
	NewParser func() cargomcp.DiagnosticParser

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	gate *Gate

	mu     sync.Mutex
	tasks  map[cargomcp.TaskID]*task
	closed bool
	wg     sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator with default settings.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		GracePeriod: DefaultGracePeriod,
		Retention:   DefaultRetention,
		NewParser:   func() cargomcp.DiagnosticParser { return cargo.NewParser() },
		Now:         time.Now,
		gate:        NewGate(),
		tasks:       make(map[cargomcp.TaskID]*task),
	}
}

// Gate returns the gate serializing mutating commands.
func (o *Orchestrator) Gate() *Gate {
	return o.gate
}

type reason int

const (
	reasonNone reason = iota
	reasonCancel
	reasonTimeout
	reasonShutdown
)

type task struct {
	id  cargomcp.TaskID
	cmd cargomcp.Command

	mu         sync.Mutex
	state      cargomcp.TaskState
	diags      []cargomcp.Diagnostic
	errors     int
	warnings   int
	exitCode   *int
	queuedAt   time.Time
	startedAt  *time.Time
	finishedAt *time.Time
	reason     reason
	signalled  bool
	proc       *os.Process
	timer      *time.Timer
	ticket     *Ticket

	// changed is closed and replaced whenever diagnostics are appended or
	// the state changes.
	changed chan struct{}

	// exited is closed once the process has been reaped.
	exited chan struct{}

	// done is closed once the task is terminal.
	done chan struct{}

	// dequeue is closed to pull a queued task out of the gate queue.
	dequeue     chan struct{}
	dequeueOnce sync.Once
}

type line struct {
	text string
	ch   cargomcp.Channel
}

// Start implements cargomcp.Orchestrator.
func (o *Orchestrator) Start(ctx context.Context, cmd cargomcp.Command) (*cargomcp.TaskSnapshot, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.Gate == "" {
		cmd.Gate = cargomcp.GateQueue
	}
	o.sweep()

	t := &task{
		id:       cargomcp.TaskID(uuid.New().String()),
		cmd:      cmd,
		state:    cargomcp.TaskQueued,
		queuedAt: o.now(),
		changed:  make(chan struct{}),
		exited:   make(chan struct{}),
		done:     make(chan struct{}),
		dequeue:  make(chan struct{}),
	}

	if cmd.Mutating {
		switch cmd.Gate {
		case cargomcp.GateReject:
			ticket, ok := o.gate.TryAcquire(cmd.Root)
			if !ok {
				return nil, cargomcp.Errorf(cargomcp.EBUSY, "project %s is busy with another build", cmd.Root)
			}
			t.ticket = ticket
		default:
			t.ticket = o.gate.Enqueue(cmd.Root)
		}
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		if t.ticket != nil {
			o.gate.Abandon(t.ticket)
		}
		return nil, cargomcp.Errorf(cargomcp.EINTERNAL, "orchestrator is shut down")
	}
	o.tasks[t.id] = t
	o.wg.Add(1)
	o.mu.Unlock()

	if t.ticket != nil && !t.ticket.Held() {
		go o.awaitTurn(t)
		return t.snapshot(0, o.now()), nil
	}

	o.spawn(t)
	return t.snapshot(0, o.now()), nil
}

// awaitTurn spawns a queued task once it holds its root.
func (o *Orchestrator) awaitTurn(t *task) {
	select {
	case <-t.ticket.Ready():
		t.mu.Lock()
		r := t.reason
		t.mu.Unlock()
		if r != reasonNone {
			o.gate.Release(t.ticket)
			o.finishQueued(t, r)
			return
		}
		o.spawn(t)
	case <-t.dequeue:
		o.gate.Abandon(t.ticket)
		t.mu.Lock()
		r := t.reason
		t.mu.Unlock()
		o.finishQueued(t, r)
	}
}

// finishQueued ends a task that never spawned.
func (o *Orchestrator) finishQueued(t *task, r reason) {
	defer o.wg.Done()

	now := o.now()
	t.mu.Lock()
	t.state = stateFor(r)
	t.finishedAt = &now
	t.broadcast()
	t.mu.Unlock()
	close(t.exited)
	close(t.done)
}

// spawn starts the process of a task holding its root. A spawn failure
// ends the task as failed with a spawn diagnostic.
func (o *Orchestrator) spawn(t *task) {
	c := exec.Command(t.cmd.Program, t.cmd.Args...)
	c.Dir = t.cmd.Root.Dir()
	c.Env = append(os.Environ(), t.cmd.Env...)
	setProcessGroup(c)

	stdout, err := c.StdoutPipe()
	if err != nil {
		o.spawnFailed(t, err)
		return
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		o.spawnFailed(t, err)
		return
	}
	if err := c.Start(); err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		o.spawnFailed(t, err)
		return
	}

	now := o.now()
	t.mu.Lock()
	t.state = cargomcp.TaskRunning
	t.startedAt = &now
	t.proc = c.Process
	if t.cmd.Timeout > 0 {
		t.timer = time.AfterFunc(t.cmd.Timeout, func() { o.terminate(t, reasonTimeout) })
	}
	pending := t.reason
	t.broadcast()
	t.mu.Unlock()

	// A cancel that raced with the hand-off from the queue.
	if pending != reasonNone {
		o.terminate(t, pending)
	}

	lines := make(chan line, 64)
	var readers sync.WaitGroup
	readers.Add(2)
	go readLines(&readers, stdout, cargomcp.ChannelStdout, lines)
	go readLines(&readers, stderr, cargomcp.ChannelStderr, lines)
	go func() {
		readers.Wait()
		close(lines)
	}()

	go func() {
		defer o.wg.Done()

		parser := o.NewParser()
		for l := range lines {
			t.append(parser.Parse(l.text, l.ch))
		}
		waitErr := c.Wait()
		close(t.exited)
		o.finish(t, c.ProcessState, waitErr)
	}()
}

func readLines(wg *sync.WaitGroup, r io.Reader, ch cargomcp.Channel, out chan<- line) {
	defer wg.Done()
	for text := range cargo.Lines(r) {
		out <- line{text: text, ch: ch}
	}
	// Drain so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

func (o *Orchestrator) spawnFailed(t *task, err error) {
	defer o.wg.Done()

	now := o.now()
	t.mu.Lock()
	t.appendLocked(cargomcp.Diagnostic{
		Severity: cargomcp.SeverityError,
		Kind:     cargomcp.KindSpawn,
		Message:  fmt.Sprintf("cannot start %s in %s: %s", t.cmd.Program, t.cmd.Root, err),
	})
	t.state = cargomcp.TaskFailed
	t.finishedAt = &now
	t.broadcast()
	t.mu.Unlock()

	if t.ticket != nil {
		o.gate.Release(t.ticket)
	}
	close(t.exited)
	close(t.done)
}

func (o *Orchestrator) finish(t *task, ps *os.ProcessState, waitErr error) {
	now := o.now()
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	if ps != nil {
		if code := ps.ExitCode(); code >= 0 {
			t.exitCode = &code
		}
	}
	switch {
	case t.reason != reasonNone:
		t.state = stateFor(t.reason)
	case waitErr == nil:
		t.state = cargomcp.TaskSucceeded
	default:
		t.state = cargomcp.TaskFailed
	}
	t.finishedAt = &now
	t.broadcast()
	t.mu.Unlock()

	if t.ticket != nil {
		o.gate.Release(t.ticket)
	}
	close(t.done)
}

func stateFor(r reason) cargomcp.TaskState {
	if r == reasonTimeout {
		return cargomcp.TaskTimedOut
	}
	return cargomcp.TaskCancelled
}

// terminate asks a running task's process group to exit and kills it after
// the grace period. The first reason recorded wins.
func (o *Orchestrator) terminate(t *task, r reason) {
	t.mu.Lock()
	if t.state != cargomcp.TaskRunning {
		t.mu.Unlock()
		return
	}
	if t.reason == reasonNone {
		t.reason = r
	}
	if t.signalled {
		t.mu.Unlock()
		return
	}
	t.signalled = true
	proc := t.proc
	t.mu.Unlock()

	_ = terminateGroup(proc)
	grace := o.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-t.exited:
		case <-timer.C:
			_ = killGroup(proc)
		}
	}()
}

// Poll implements cargomcp.Orchestrator.
func (o *Orchestrator) Poll(ctx context.Context, id cargomcp.TaskID, since int) (*cargomcp.TaskSnapshot, error) {
	o.sweep()
	t, err := o.find(id)
	if err != nil {
		return nil, err
	}
	return t.snapshot(since, o.now()), nil
}

// Cancel implements cargomcp.Orchestrator.
func (o *Orchestrator) Cancel(ctx context.Context, id cargomcp.TaskID) (*cargomcp.TaskSnapshot, error) {
	o.sweep()
	t, err := o.find(id)
	if err != nil {
		return nil, err
	}
	o.cancel(t, reasonCancel)
	return o.wait(ctx, t)
}

func (o *Orchestrator) cancel(t *task, r reason) {
	t.mu.Lock()
	state := t.state
	if state == cargomcp.TaskQueued && t.reason == reasonNone {
		t.reason = r
	}
	t.mu.Unlock()

	switch state {
	case cargomcp.TaskQueued:
		t.dequeueOnce.Do(func() { close(t.dequeue) })
	case cargomcp.TaskRunning:
		o.terminate(t, r)
	}
}

// Wait implements cargomcp.Orchestrator.
func (o *Orchestrator) Wait(ctx context.Context, id cargomcp.TaskID) (*cargomcp.TaskSnapshot, error) {
	t, err := o.find(id)
	if err != nil {
		return nil, err
	}
	return o.wait(ctx, t)
}

func (o *Orchestrator) wait(ctx context.Context, t *task) (*cargomcp.TaskSnapshot, error) {
	select {
	case <-t.done:
		return t.snapshot(0, o.now()), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stream implements cargomcp.Orchestrator.
func (o *Orchestrator) Stream(ctx context.Context, id cargomcp.TaskID, since int) iter.Seq[cargomcp.Diagnostic] {
	return func(yield func(cargomcp.Diagnostic) bool) {
		t, err := o.find(id)
		if err != nil {
			return
		}
		next := max(since, 0)
		for {
			t.mu.Lock()
			var batch []cargomcp.Diagnostic
			if next < len(t.diags) {
				batch = append(batch, t.diags[next:]...)
			}
			terminal := t.state.Terminal()
			changed := t.changed
			t.mu.Unlock()

			for _, d := range batch {
				if !yield(d) {
					return
				}
			}
			next += len(batch)
			if terminal {
				return
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Acknowledge implements cargomcp.Orchestrator.
func (o *Orchestrator) Acknowledge(ctx context.Context, id cargomcp.TaskID) error {
	t, err := o.find(id)
	if err != nil {
		return err
	}
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	if !state.Terminal() {
		return cargomcp.Errorf(cargomcp.EINVALID, "task %s is still %s", id, state)
	}

	o.mu.Lock()
	delete(o.tasks, id)
	o.mu.Unlock()
	return nil
}

// Close terminates every live task and waits for them to end.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	live := make([]*task, 0, len(o.tasks))
	for _, t := range o.tasks {
		live = append(live, t)
	}
	o.mu.Unlock()

	for _, t := range live {
		o.cancel(t, reasonShutdown)
	}
	o.wg.Wait()
	return nil
}

func (o *Orchestrator) find(id cargomcp.TaskID) (*task, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return nil, cargomcp.Errorf(cargomcp.ENOTFOUND, "task %s not found", id)
	}
	return t, nil
}

// sweep evicts terminal tasks past their retention.
func (o *Orchestrator) sweep() {
	retention := o.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := o.now().Add(-retention)

	o.mu.Lock()
	defer o.mu.Unlock()
	for id, t := range o.tasks {
		t.mu.Lock()
		expired := t.finishedAt != nil && t.finishedAt.Before(cutoff)
		t.mu.Unlock()
		if expired {
			delete(o.tasks, id)
		}
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (t *task) append(d cargomcp.Diagnostic) {
	t.mu.Lock()
	t.appendLocked(d)
	t.broadcast()
	t.mu.Unlock()
}

// appendLocked numbers and stores a diagnostic. t.mu must be held.
func (t *task) appendLocked(d cargomcp.Diagnostic) {
	d.Seq = len(t.diags)
	t.diags = append(t.diags, d)
	switch d.Severity {
	case cargomcp.SeverityError:
		t.errors++
	case cargomcp.SeverityWarning:
		t.warnings++
	}
}

// broadcast wakes everyone waiting on changed. t.mu must be held.
func (t *task) broadcast() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *task) snapshot(since int, now time.Time) *cargomcp.TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	since = min(max(since, 0), len(t.diags))
	s := &cargomcp.TaskSnapshot{
		ID:          t.id,
		Kind:        t.cmd.Kind,
		CommandLine: append([]string{t.cmd.Program}, t.cmd.Args...),
		Root:        t.cmd.Root,
		State:       t.state,
		Diagnostics: append([]cargomcp.Diagnostic{}, t.diags[since:]...),
		Total:       len(t.diags),
		Next:        len(t.diags),
		Errors:      t.errors,
		Warnings:    t.warnings,
		QueuedAt:    t.queuedAt,
	}
	if t.exitCode != nil {
		code := *t.exitCode
		s.ExitCode = &code
	}
	if t.startedAt != nil {
		started := *t.startedAt
		s.StartedAt = &started
		end := now
		if t.finishedAt != nil {
			end = *t.finishedAt
		}
		s.Elapsed = end.Sub(started)
	}
	if t.finishedAt != nil {
		finished := *t.finishedAt
		s.FinishedAt = &finished
	}
	if t.state == cargomcp.TaskFailed {
		s.FailureKind = cargomcp.FailureInfrastructure
		for i := range t.diags {
			if t.diags[i].IsStructuredError() {
				s.FailureKind = cargomcp.FailureDiagnostics
				break
			}
		}
	}
	return s
}
