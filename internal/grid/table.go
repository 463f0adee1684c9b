package grid

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/gridsync/internal/model"
)

var (
	// ErrUnknownRow is returned when an identity has no row in the table.
	ErrUnknownRow = errors.New("unknown row")
	// ErrDuplicateRow is returned when inserting an identity already present.
	ErrDuplicateRow = errors.New("duplicate row")
)

// Table is the ordered set of rows of one kind.
type Table struct {
	kind  model.Kind
	order []model.Identity
	rows  map[model.Identity]*Record
}

// NewTable creates an empty table.
func NewTable(kind model.Kind) *Table {
	return &Table{
		kind: kind,
		rows: make(map[model.Identity]*Record),
	}
}

// Kind returns the table's kind.
func (t *Table) Kind() model.Kind { return t.kind }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.order) }

// IDs returns the row identities in display order.
func (t *Table) IDs() []model.Identity { return slices.Clone(t.order) }

// Insert appends a row. The record's Kind is forced to the table's kind.
func (t *Table) Insert(rec Record) error {
	if rec.Identity.IsZero() {
		return fmt.Errorf("insert %s row: zero identity", t.kind)
	}
	if _, ok := t.rows[rec.Identity]; ok {
		return fmt.Errorf("insert %s %s: %w", t.kind, rec.Identity, ErrDuplicateRow)
	}
	r := rec.clone()
	r.Kind = t.kind
	t.rows[rec.Identity] = &r
	t.order = append(t.order, rec.Identity)
	return nil
}

// Reset replaces every row, keeping the given order.
func (t *Table) Reset(recs []Record) error {
	t.order = nil
	t.rows = make(map[model.Identity]*Record, len(recs))
	for _, r := range recs {
		if err := t.Insert(r); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a copy of a row.
func (t *Table) Get(id model.Identity) (Record, bool) {
	r, ok := t.rows[id]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

// Has reports whether the table holds id.
func (t *Table) Has(id model.Identity) bool {
	_, ok := t.rows[id]
	return ok
}

// Row returns a copy of a row's fields.
func (t *Table) Row(id model.Identity) (model.Fields, bool) {
	r, ok := t.rows[id]
	if !ok {
		return model.Fields{}, false
	}
	return r.Fields.Clone(), true
}

func (t *Table) lookup(id model.Identity) (*Record, error) {
	r, ok := t.rows[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", t.kind, id, ErrUnknownRow)
	}
	return r, nil
}

// SetCell writes a field value. The UI model is always updated, whatever the
// row's sync state.
func (t *Table) SetCell(id model.Identity, key string, v model.Value) error {
	r, err := t.lookup(id)
	if err != nil {
		return err
	}
	r.Fields.Set(key, v)
	return nil
}

// MarkCellPending tags one cell as holding an unsent edit.
func (t *Table) MarkCellPending(id model.Identity, key string) error {
	r, err := t.lookup(id)
	if err != nil {
		return err
	}
	if r.PendingCells == nil {
		r.PendingCells = make(map[string]struct{})
	}
	r.PendingCells[key] = struct{}{}
	return nil
}

// ClearCellsExcept drops every pending cell tag except those in keep.
func (t *Table) ClearCellsExcept(id model.Identity, keep []string) error {
	r, err := t.lookup(id)
	if err != nil {
		return err
	}
	for k := range r.PendingCells {
		if !slices.Contains(keep, k) {
			delete(r.PendingCells, k)
		}
	}
	return nil
}

// SetVisual sets a row's visual state directly.
func (t *Table) SetVisual(id model.Identity, v VisualState) error {
	r, err := t.lookup(id)
	if err != nil {
		return err
	}
	r.Visual = v
	return nil
}

// SetStatus sets a row's underlying listing status.
func (t *Table) SetStatus(id model.Identity, s Status) error {
	r, err := t.lookup(id)
	if err != nil {
		return err
	}
	r.Status = s
	return nil
}

// Recompute derives a row's aggregate visual state and stores it.
// PendingDelete sticks; any pending cell makes the row PendingEdit; a temp
// row is VisualNew; anything else is Clean, which renders as its status color.
func (t *Table) Recompute(id model.Identity) (VisualState, error) {
	r, err := t.lookup(id)
	if err != nil {
		return Clean, err
	}
	switch {
	case r.Visual == PendingDelete:
	case id.IsTemp():
		r.Visual = VisualNew
	case len(r.PendingCells) > 0:
		r.Visual = PendingEdit
	default:
		r.Visual = Clean
	}
	return r.Visual, nil
}

// Remap rewrites a temp row's identity to the persisted id the remote store
// assigned. The row keeps its position.
func (t *Table) Remap(temp model.TempID, id model.PersistedID) error {
	from := model.MustTemp(temp)
	to := model.MustPersisted(id)
	r, err := t.lookup(from)
	if err != nil {
		return err
	}
	if _, taken := t.rows[to]; taken {
		return fmt.Errorf("remap %s to %s: %w", from, to, ErrDuplicateRow)
	}
	delete(t.rows, from)
	r.Identity = to
	t.rows[to] = r
	t.order[slices.Index(t.order, from)] = to
	return nil
}

// Remove deletes a row. It reports whether the row existed.
func (t *Table) Remove(id model.Identity) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	t.order = slices.DeleteFunc(t.order, func(o model.Identity) bool { return o == id })
	return true
}

// RowsWhere returns copies of the rows matching pred, in display order.
func (t *Table) RowsWhere(pred func(Record) bool) []Record {
	var out []Record
	for _, id := range t.order {
		r := t.rows[id].clone()
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
