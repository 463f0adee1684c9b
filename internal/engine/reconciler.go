package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/gridsync/internal/grid"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/pending"
)

// Reconciler applies remote acknowledgements to pending state and the grid.
// Owner-side only.
type Reconciler struct {
	pending *pending.Store
	grid    *grid.Grid
	status  *StatusLine
	logger  *slog.Logger

	// onRemap, if set, sees every temp id the store confirmed.
	onRemap func(kind model.Kind, tid model.TempID, pid model.PersistedID)
}

// Apply consumes one save result for the batch that produced it.
//
// On error nothing pending changes; the message is shown verbatim. On
// success only what batch carried is cleared:
//   - added rows in the id map are remapped to their persisted id; a row
//     deleted while in flight is queued for deletion under that id, and
//     fields edited while in flight are queued as updates
//   - updated rows drop the field writes that were sent, keeping newer ones
//   - deleted rows leave the grid
func (r *Reconciler) Apply(kind model.Kind, batch pending.SaveBatch, res ReconciliationResult) {
	if !res.OK() {
		r.logger.Warn("flush failed, pending changes kept",
			"kind", kind,
			"error_kind", res.ErrKind,
			"message", res.Message,
		)
		r.status.Error(res.Message)
		return
	}

	tbl, err := r.grid.Table(kind)
	if err != nil {
		r.logger.Error("reconcile: no table", "kind", kind, "error", err)
		return
	}

	added := 0
	for _, row := range batch.Added {
		pid, ok := res.IDMap[row.TempID]
		if !ok {
			r.logger.Warn("added row missing from id_map, kept pending", "kind", kind, "temp_id", row.TempID)
			continue
		}
		r.pending.ConfirmAdded(kind, row.TempID)
		added++
		r.remap(kind, tbl, row, pid)
		if r.onRemap != nil {
			r.onRemap(kind, row.TempID, pid)
		}
	}

	for _, row := range batch.Updated {
		remaining := r.pending.ConfirmUpdated(kind, row.ID, row.Revisions)
		id := model.MustPersisted(row.ID)
		if !tbl.Has(id) {
			continue
		}
		if err := tbl.ClearCellsExcept(id, remaining); err != nil {
			r.logger.Error("reconcile: clear cells", "kind", kind, "id", id, "error", err)
			continue
		}
		_, _ = tbl.Recompute(id)
	}

	for _, pid := range batch.Deleted {
		r.pending.ConfirmDeleted(kind, pid)
		tbl.Remove(model.MustPersisted(pid))
	}

	r.logger.Info("flush applied",
		"kind", kind,
		"added", added,
		"updated", res.UpdatedCount,
		"deleted", res.DeletedCount,
	)
	r.status.Info(fmt.Sprintf("saved %s: %d added, %d updated, %d deleted",
		kind, added, res.UpdatedCount, res.DeletedCount))
}

func (r *Reconciler) remap(kind model.Kind, tbl *grid.Table, sent pending.AddedRow, pid model.PersistedID) {
	tid := model.MustTemp(sent.TempID)
	id := model.MustPersisted(pid)

	rec, ok := tbl.Get(tid)
	if !ok {
		// The row left the grid while in flight; don't leave it orphaned in
		// the store.
		r.logger.Warn("confirmed row no longer in grid, deleting", "kind", kind, "temp_id", sent.TempID, "id", pid)
		r.pending.MarkDeleted(kind, id)
		return
	}
	if err := tbl.Remap(sent.TempID, pid); err != nil {
		r.logger.Error("reconcile: remap", "kind", kind, "temp_id", sent.TempID, "id", pid, "error", err)
		return
	}

	if rec.Visual == grid.PendingDelete {
		r.pending.MarkDeleted(kind, id)
		return
	}

	for _, key := range sent.Fields.Diff(rec.Fields) {
		v, _ := rec.Fields.Get(key)
		r.pending.MarkUpdated(kind, pid, key, v)
		_ = tbl.MarkCellPending(id, key)
	}
	_, _ = tbl.Recompute(id)
}

// CleanupUIOnly removes temp rows that were deleted before ever being sent.
// They need no network call. Must not run while a flush is in flight, since
// an in-flight temp row still needs its id_map entry.
func (r *Reconciler) CleanupUIOnly(kind model.Kind) int {
	tbl, err := r.grid.Table(kind)
	if err != nil {
		return 0
	}
	rows := tbl.RowsWhere(r.uiOnly(kind))
	for _, rec := range rows {
		tbl.Remove(rec.Identity)
	}
	if len(rows) > 0 {
		r.logger.Debug("ui-only cleanup", "kind", kind, "removed", len(rows))
	}
	return len(rows)
}

// HasUIOnlyCleanup reports whether CleanupUIOnly would remove anything.
func (r *Reconciler) HasUIOnlyCleanup(kind model.Kind) bool {
	tbl, err := r.grid.Table(kind)
	if err != nil {
		return false
	}
	return len(tbl.RowsWhere(r.uiOnly(kind))) > 0
}

func (r *Reconciler) uiOnly(kind model.Kind) func(grid.Record) bool {
	return func(rec grid.Record) bool {
		return rec.Visual == grid.PendingDelete &&
			rec.Identity.IsTemp() &&
			!r.pending.IsAdded(kind, rec.Identity.TempID())
	}
}
