package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/gridsync/internal/grid"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/pending"
	"github.com/roach88/gridsync/internal/remote"
)

// SaveOrchestrator sends one kind's pending set to the remote store.
type SaveOrchestrator struct {
	pending    *pending.Store
	grid       *grid.Grid
	client     remote.Client
	guard      *Guard
	reconciler *Reconciler
	disp       *dispatcher
	session    remote.Session
	logger     *slog.Logger
}

// Flush snapshots kind's pending set and sends it.
//
// The caller must hold the guard. Flush always arranges for its release:
// immediately when there is nothing to send or the request can't be built,
// otherwise on the owner after the result has been applied. onDone, if set,
// runs on the owner after that.
func (o *SaveOrchestrator) Flush(kind model.Kind, onDone func(ReconciliationResult)) {
	batch := o.pending.Snapshot(kind, o.grid)

	// The store already refuses duplicate adds; a duplicate here means a bug,
	// and it must still never reach the wire.
	batch, dropped := batch.Dedupe()
	if dropped > 0 {
		o.logger.Warn("duplicate added rows dropped from batch", "kind", kind, "dropped", dropped)
	}

	if batch.Empty() {
		o.guard.Release()
		if onDone != nil {
			onDone(ReconciliationResult{Status: ResultOK})
		}
		return
	}

	req, err := o.buildRequest(batch)
	if err != nil {
		res := errorResult(err)
		o.complete(kind, batch, res, onDone)
		return
	}

	added, updated, deleted := batch.Counts()
	o.logger.Info("flush started",
		"kind", kind,
		"request_id", req.RequestID,
		"added", added,
		"updated", updated,
		"deleted", deleted,
	)

	o.disp.dispatch("save", kind,
		func(ctx context.Context) ReconciliationResult {
			resp, err := o.client.Save(ctx, req)
			if err != nil {
				return errorResult(err)
			}
			return saveResult(resp)
		},
		func(res ReconciliationResult) {
			o.complete(kind, batch, res, onDone)
		},
	)
}

// complete runs on the owner.
func (o *SaveOrchestrator) complete(kind model.Kind, batch pending.SaveBatch, res ReconciliationResult, onDone func(ReconciliationResult)) {
	func() {
		defer o.guard.Release()
		o.reconciler.Apply(kind, batch, res)
	}()
	if onDone != nil {
		onDone(res)
	}
}

func (o *SaveOrchestrator) buildRequest(batch pending.SaveBatch) (remote.SaveRequest, error) {
	hash, err := batch.Hash(o.session.SessionID)
	if err != nil {
		return remote.SaveRequest{}, err
	}
	req := remote.SaveRequest{
		RequestID:   hash,
		Kind:        batch.Kind,
		Session:     o.session,
		AddedRows:   make([]remote.AddedRow, len(batch.Added)),
		UpdatedRows: make([]remote.UpdatedRow, len(batch.Updated)),
		DeletedIDs:  make([]int64, len(batch.Deleted)),
	}
	for i, r := range batch.Added {
		req.AddedRows[i] = remote.AddedRow{TempID: int64(r.TempID), Fields: r.Fields}
	}
	for i, r := range batch.Updated {
		req.UpdatedRows[i] = remote.UpdatedRow{ID: int64(r.ID), Fields: r.Fields, ChangedFields: r.Changed}
	}
	for i, id := range batch.Deleted {
		req.DeletedIDs[i] = int64(id)
	}
	return req, nil
}
