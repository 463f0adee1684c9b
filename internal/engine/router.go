package engine

import (
	"errors"
	"log/slog"

	"github.com/roach88/gridsync/internal/grid"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/pending"
)

// EditRouter turns grid edits into pending changes and visual tags.
//
// The UI model is always updated. Whether the edit also becomes a pending
// change depends on the row's identity class:
//   - temp row: ensured in added and tagged New; its full snapshot is taken
//     at flush time, so no updated entry is ever created for it
//   - persisted row marked for deletion: UI only, no sync effect
//   - persisted row: merged into updated, the cell tagged pending
type EditRouter struct {
	pending *pending.Store
	grid    *grid.Grid
	alloc   *model.TempIDAllocator
	logger  *slog.Logger
}

// NewEditRouter creates a router over the given collaborators.
func NewEditRouter(p *pending.Store, g *grid.Grid, alloc *model.TempIDAllocator, logger *slog.Logger) *EditRouter {
	return &EditRouter{pending: p, grid: g, alloc: alloc, logger: logger}
}

func (r *EditRouter) table(kind model.Kind) (*grid.Table, error) {
	tbl, err := r.grid.Table(kind)
	if err != nil {
		return nil, unknownKindError(kind)
	}
	return tbl, nil
}

// Route applies one cell change.
func (r *EditRouter) Route(kind model.Kind, id model.Identity, field string, v model.Value) error {
	tbl, err := r.table(kind)
	if err != nil {
		return err
	}
	rec, ok := tbl.Get(id)
	if !ok {
		return unknownRowError(kind, id)
	}
	if err := tbl.SetCell(id, field, v); err != nil {
		return err
	}

	switch {
	case id.IsTemp():
		if rec.Visual == grid.PendingDelete {
			// Deleted before it was ever sent.
			return nil
		}
		if !r.pending.IsAdded(kind, id.TempID()) {
			r.pending.MarkAdded(kind, id.TempID())
		}
		return tbl.SetVisual(id, grid.VisualNew)

	case r.pending.IsDeleted(kind, id.PersistedID()):
		r.logger.Debug("edit on row marked for deletion, ui only",
			"kind", kind,
			"id", id,
			"field", field,
		)
		return nil

	default:
		r.pending.MarkUpdated(kind, id.PersistedID(), field, v)
		if err := tbl.MarkCellPending(id, field); err != nil {
			return err
		}
		_, err := tbl.Recompute(id)
		return err
	}
}

// RouteBulk applies the same value to many rows, one Route per row. Rows
// that fail are reported together; the others still take the edit.
func (r *EditRouter) RouteBulk(kind model.Kind, ids []model.Identity, field string, v model.Value) error {
	var errs []error
	for _, id := range ids {
		if err := r.Route(kind, id, field, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RouteDelete marks rows for deletion. A persisted row moves into deleted
// and loses its pending edit tags; a temp row leaves added and waits for
// UI-only cleanup.
func (r *EditRouter) RouteDelete(kind model.Kind, ids []model.Identity) error {
	tbl, err := r.table(kind)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		if !tbl.Has(id) {
			errs = append(errs, unknownRowError(kind, id))
			continue
		}
		r.pending.MarkDeleted(kind, id)
		if err := tbl.ClearCellsExcept(id, nil); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := tbl.SetVisual(id, grid.PendingDelete); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RouteAdd inserts a new row under a freshly allocated temp id.
func (r *EditRouter) RouteAdd(kind model.Kind, fields model.Fields) (model.Identity, error) {
	tbl, err := r.table(kind)
	if err != nil {
		return model.Identity{}, err
	}
	id := model.MustTemp(r.alloc.Next())
	if err := tbl.Insert(grid.Record{
		Identity: id,
		Fields:   fields,
		Visual:   grid.VisualNew,
	}); err != nil {
		return model.Identity{}, err
	}
	r.pending.MarkAdded(kind, id.TempID())
	r.logger.Debug("row added", "kind", kind, "id", id)
	return id, nil
}
