package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/gridsync/internal/model"
)

// AssertionError is returned when an expect clause fails.
type AssertionError struct {
	Type     string // clause that failed
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// check evaluates every clause of x and returns the failure messages.
func (h *Harness) check(x *Expect) []string {
	var errs []error
	for _, r := range x.Rows {
		errs = append(errs, h.checkRow(r)...)
	}
	for _, a := range x.Absent {
		errs = append(errs, h.checkAbsent(a)...)
	}
	for _, p := range x.Pending {
		errs = append(errs, h.checkPending(p)...)
	}
	if x.Saves != nil {
		if got := h.remote.SaveCount(); got != *x.Saves {
			errs = append(errs, &AssertionError{Type: "saves", Expected: fmt.Sprint(*x.Saves), Actual: fmt.Sprint(got)})
		}
	}
	if x.Guard != "" {
		if got := h.session.Guard().State().String(); got != x.Guard {
			errs = append(errs, &AssertionError{Type: "guard", Expected: x.Guard, Actual: got})
		}
	}
	if x.Status != "" {
		if got := h.session.Status().Current().String(); !strings.Contains(got, x.Status) {
			errs = append(errs, &AssertionError{Type: "status", Expected: fmt.Sprintf("%q in status line", x.Status), Actual: fmt.Sprintf("%q", got)})
		}
	}

	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return msgs
}

func (h *Harness) checkRow(x RowExpect) []error {
	kind := model.Kind(x.Kind)
	id, err := h.resolve(x.Row)
	if err != nil {
		return []error{fmt.Errorf("row: %w (known refs: %s)", err, strings.Join(h.refNames(), ", "))}
	}
	tbl, err := h.session.Table(kind)
	if err != nil {
		return []error{err}
	}
	rec, ok := tbl.Get(id)
	if !ok {
		return []error{&AssertionError{Type: "row", Expected: fmt.Sprintf("%s %s (%s) in grid", kind, x.Row, id), Actual: "absent"}}
	}

	label := fmt.Sprintf("row %s %s", kind, x.Row)
	var errs []error
	if x.ID != 0 && rec.Identity.Int64() != x.ID {
		errs = append(errs, &AssertionError{Type: label + " id", Expected: fmt.Sprint(x.ID), Actual: fmt.Sprint(rec.Identity.Int64())})
	}
	if x.Visual != "" && rec.Visual.String() != x.Visual {
		errs = append(errs, &AssertionError{Type: label + " visual", Expected: x.Visual, Actual: rec.Visual.String()})
	}
	if x.Status != "" && rec.Status.String() != x.Status {
		errs = append(errs, &AssertionError{Type: label + " status", Expected: x.Status, Actual: rec.Status.String()})
	}
	for _, fv := range x.Fields {
		key := h.storageKey(kind, fv.Key)
		v, ok := rec.Fields.Get(key)
		got := "<unset>"
		if ok {
			got = v.Display()
		}
		if got != fv.Value {
			errs = append(errs, &AssertionError{Type: label + " field " + key, Expected: fmt.Sprintf("%q", fv.Value), Actual: fmt.Sprintf("%q", got)})
		}
	}
	if x.PendingCells != nil {
		want := slices.Clone(x.PendingCells)
		slices.Sort(want)
		got := rec.PendingKeys()
		if !slices.Equal(want, got) {
			errs = append(errs, &AssertionError{Type: label + " pending cells", Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)})
		}
	}
	return errs
}

func (h *Harness) checkAbsent(x RowsStep) []error {
	tbl, err := h.session.Table(model.Kind(x.Kind))
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, ref := range x.Rows {
		id, err := h.resolve(ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if tbl.Has(id) {
			errs = append(errs, &AssertionError{Type: "absent", Expected: fmt.Sprintf("%s %s not in grid", x.Kind, ref), Actual: "present"})
		}
	}
	return errs
}

func (h *Harness) checkPending(x PendingExpect) []error {
	kind := model.Kind(x.Kind)
	p := h.session.Pending()
	var errs []error
	cmp := func(name string, want *int, got int) {
		if want != nil && *want != got {
			errs = append(errs, &AssertionError{Type: fmt.Sprintf("pending %s %s", kind, name), Expected: fmt.Sprint(*want), Actual: fmt.Sprint(got)})
		}
	}
	cmp("added", x.Added, len(p.Added(kind)))
	cmp("updated", x.Updated, len(p.Updated(kind)))
	cmp("deleted", x.Deleted, len(p.Deleted(kind)))
	return errs
}

// storageKey resolves a display or storage key, falling back to key itself.
func (h *Harness) storageKey(kind model.Kind, key string) string {
	sch, err := h.session.Registry().Schema(kind)
	if err != nil {
		return key
	}
	f, err := sch.Resolve(key)
	if err != nil {
		return key
	}
	return f.StorageKey
}
