package grid

import (
	"fmt"

	"github.com/roach88/gridsync/internal/model"
)

// Grid is the set of tables, one per kind.
type Grid struct {
	tables map[model.Kind]*Table
	kinds  []model.Kind
}

// New creates a grid with an empty table per kind.
func New(kinds ...model.Kind) *Grid {
	g := &Grid{tables: make(map[model.Kind]*Table, len(kinds))}
	for _, k := range kinds {
		if _, dup := g.tables[k]; dup {
			continue
		}
		g.tables[k] = NewTable(k)
		g.kinds = append(g.kinds, k)
	}
	return g
}

// Kinds returns the grid's kinds in construction order.
func (g *Grid) Kinds() []model.Kind {
	out := make([]model.Kind, len(g.kinds))
	copy(out, g.kinds)
	return out
}

// Table returns the table of kind.
func (g *Grid) Table(kind model.Kind) (*Table, error) {
	t, ok := g.tables[kind]
	if !ok {
		return nil, fmt.Errorf("no table for kind %q", kind)
	}
	return t, nil
}

// Row implements pending.RowSource.
func (g *Grid) Row(kind model.Kind, id model.Identity) (model.Fields, bool) {
	t, ok := g.tables[kind]
	if !ok {
		return model.Fields{}, false
	}
	return t.Row(id)
}
