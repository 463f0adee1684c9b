package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/gridsync/internal/grid"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/pending"
	"github.com/roach88/gridsync/internal/remote"
)

// BucketCompleted is the bucket closed deals move to.
const BucketCompleted = "completed"

// StatusChanger moves persisted rows into another bucket. It shares the
// guard, the worker dispatch, and owner-side result application with saves.
type StatusChanger struct {
	pending *pending.Store
	grid    *grid.Grid
	client  remote.Client
	guard   *Guard
	disp    *dispatcher
	status  *StatusLine
	session remote.Session
	logger  *slog.Logger
	// seq numbers the moves this session has dispatched.
	seq uint64
}

// ChangeStatus requests the move. Rows with unsent changes are refused with
// a PENDING_ROWS error so the move can't overtake their edits; a held guard
// gives BUSY. On success the rows leave the grid.
func (c *StatusChanger) ChangeStatus(kind model.Kind, ids []model.PersistedID, bucket string, onDone func(ReconciliationResult)) error {
	tbl, err := c.grid.Table(kind)
	if err != nil {
		return unknownKindError(kind)
	}
	if bucket == "" {
		return &SyncError{Code: ErrCodeInvalidValue, Message: "bucket is required", Kind: kind}
	}

	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var dirty []model.PersistedID
	for _, id := range ids {
		row, err := model.Persisted(id)
		if err != nil {
			return &SyncError{Code: ErrCodeInvalidValue, Message: err.Error(), Kind: kind}
		}
		if !tbl.Has(row) {
			return unknownRowError(kind, row)
		}
		if c.pending.IsUpdated(kind, id) || c.pending.IsDeleted(kind, id) {
			dirty = append(dirty, id)
		}
	}
	if len(dirty) > 0 {
		c.status.Warn(fmt.Sprintf("save %d row(s) before moving them", len(dirty)))
		return NewPendingRowsError(kind, dirty)
	}
	if len(ids) == 0 {
		return nil
	}

	if !c.guard.TryAcquire() {
		c.status.Warn("busy: a save is already in progress")
		return NewBusyError(kind)
	}

	wire := make([]int64, len(ids))
	for i, id := range ids {
		wire[i] = int64(id)
	}
	c.seq++
	hash, err := model.ContentHash(model.DomainStatusChange, map[string]any{
		"session": c.session.SessionID,
		"seq":     int64(c.seq),
		"kind":    string(kind),
		"bucket":  bucket,
		"ids":     toAny(wire),
	})
	if err != nil {
		c.guard.Release()
		return fmt.Errorf("hash status change: %w", err)
	}
	req := remote.StatusRequest{
		RequestID: hash,
		Kind:      kind,
		Session:   c.session,
		IDs:       wire,
		Bucket:    bucket,
	}

	c.logger.Info("status change started", "kind", kind, "bucket", bucket, "rows", len(ids))
	c.disp.dispatch("status", kind,
		func(ctx context.Context) ReconciliationResult {
			resp, err := c.client.ChangeStatus(ctx, req)
			if err != nil {
				return errorResult(err)
			}
			return ReconciliationResult{Status: ResultOK, MovedCount: resp.MovedCount, Message: resp.Message}
		},
		func(res ReconciliationResult) {
			func() {
				defer c.guard.Release()
				c.apply(kind, ids, bucket, res)
			}()
			if onDone != nil {
				onDone(res)
			}
		},
	)
	return nil
}

func (c *StatusChanger) apply(kind model.Kind, ids []model.PersistedID, bucket string, res ReconciliationResult) {
	if !res.OK() {
		c.logger.Warn("status change failed", "kind", kind, "error_kind", res.ErrKind, "message", res.Message)
		c.status.Error(res.Message)
		return
	}
	tbl, err := c.grid.Table(kind)
	if err != nil {
		return
	}
	for _, id := range ids {
		tbl.Remove(model.MustPersisted(id))
	}
	// Edits made to moved rows while in flight can't be saved from this
	// bucket's grid anymore.
	c.pending.Discard(kind, ids...)
	c.status.Info(fmt.Sprintf("moved %d %s row(s) to %s", res.MovedCount, kind, bucket))
}

func toAny(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
