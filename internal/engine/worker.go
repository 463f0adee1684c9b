package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/remote"
)

// DefaultCallTimeout bounds one remote call.
const DefaultCallTimeout = 20 * time.Second

// dispatcher runs remote calls off the owner and posts their results back.
//
// CRITICAL: the call function must not touch owner state; it gets only
// immutable values captured before dispatch.
type dispatcher struct {
	// ctx is the parent of call contexts; owner-side only.
	ctx      context.Context
	timeout  time.Duration
	queue    *eventQueue
	logger   *slog.Logger
	wg       sync.WaitGroup
	inflight atomic.Int32
}

func newDispatcher(q *eventQueue, timeout time.Duration, logger *slog.Logger) *dispatcher {
	return &dispatcher{
		ctx:     context.Background(),
		timeout: timeout,
		queue:   q,
		logger:  logger,
	}
}

// dispatch starts call on a worker goroutine. Its result, or an error result
// if it panics or overruns the timeout, is posted as a completion event that
// the owner hands to apply.
func (d *dispatcher) dispatch(op string, kind model.Kind, call func(context.Context) ReconciliationResult, apply func(ReconciliationResult)) {
	parent := d.ctx
	d.inflight.Add(1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inflight.Add(-1)

		start := time.Now()
		res := d.run(parent, op, kind, call)
		d.logger.Debug("worker finished",
			"op", op,
			"kind", kind,
			"status", res.Status,
			"duration", time.Since(start),
		)

		if !d.queue.Enqueue(Event{Type: EventTypeCompletion, Op: op, Kind: kind, Result: res, apply: apply}) {
			d.logger.Error("result dropped: session closed", "op", op, "kind", kind)
		}
	}()
}

func (d *dispatcher) run(parent context.Context, op string, kind model.Kind, call func(context.Context) ReconciliationResult) (res ReconciliationResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("worker panic", "op", op, "kind", kind, "panic", r)
			res = ReconciliationResult{
				Status:  ResultError,
				ErrKind: remote.KindTransport,
				Message: fmt.Sprintf("internal error during %s: %v", op, r),
			}
		}
	}()

	// Detached from the session context: a started call is never cancelled,
	// only timed out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.timeout)
	defer cancel()
	return call(ctx)
}

// idle reports whether no worker is running.
func (d *dispatcher) idle() bool {
	return d.inflight.Load() == 0
}

// wait blocks until every worker has posted its result.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
