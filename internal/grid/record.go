package grid

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/gridsync/internal/model"
)

// Status is the listing status of a row, independent of sync state.
type Status int

const (
	StatusNormal Status = iota
	StatusFresh
	StatusReadvertised
)

var statusNames = map[Status]string{
	StatusNormal:       "normal",
	StatusFresh:        "fresh",
	StatusReadvertised: "readvertised",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus parses a status name. The empty string is StatusNormal.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return StatusNormal, nil
	}
	for st, n := range statusNames {
		if n == s {
			return st, nil
		}
	}
	return StatusNormal, fmt.Errorf("unknown row status %q", s)
}

// VisualState is the pending-sync overlay of a row.
type VisualState int

const (
	Clean VisualState = iota
	PendingEdit
	PendingDelete
	VisualNew
)

func (v VisualState) String() string {
	switch v {
	case Clean:
		return "clean"
	case PendingEdit:
		return "pending-edit"
	case PendingDelete:
		return "pending-delete"
	case VisualNew:
		return "new"
	default:
		return fmt.Sprintf("visual(%d)", int(v))
	}
}

// Record is one grid row.
type Record struct {
	Identity model.Identity
	Kind     model.Kind
	Fields   model.Fields
	Status   Status
	Visual   VisualState
	// PendingCells holds the field keys with unsent edits.
	PendingCells map[string]struct{}
}

// PendingKeys returns the pending cell keys, sorted.
func (r Record) PendingKeys() []string {
	return slices.Sorted(maps.Keys(r.PendingCells))
}

// clone returns a deep copy so callers can't reach into table state.
func (r *Record) clone() Record {
	c := *r
	c.Fields = r.Fields.Clone()
	c.PendingCells = maps.Clone(r.PendingCells)
	if c.PendingCells == nil {
		c.PendingCells = map[string]struct{}{}
	}
	return c
}
