package pending

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/roach88/gridsync/internal/model"
)

// fieldChange is one pending field value, stamped with the revision of the
// write that produced it.
type fieldChange struct {
	value model.Value
	rev   uint64
}

// changeEntry is the merged set of pending field writes for one row.
type changeEntry struct {
	keys   []string
	fields map[string]fieldChange
}

func (e *changeEntry) set(key string, v model.Value, rev uint64) {
	if _, ok := e.fields[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.fields[key] = fieldChange{value: v, rev: rev}
}

func (e *changeEntry) remove(key string) {
	delete(e.fields, key)
	e.keys = slices.DeleteFunc(e.keys, func(k string) bool { return k == key })
}

func (e *changeEntry) toFields() model.Fields {
	var f model.Fields
	for _, k := range e.keys {
		f.Set(k, e.fields[k].value)
	}
	return f
}

// PendingSet holds the three change sets of one kind.
type PendingSet struct {
	added   map[model.TempID]struct{}
	updated map[model.PersistedID]*changeEntry
	deleted map[model.PersistedID]struct{}
}

func newPendingSet() *PendingSet {
	return &PendingSet{
		added:   make(map[model.TempID]struct{}),
		updated: make(map[model.PersistedID]*changeEntry),
		deleted: make(map[model.PersistedID]struct{}),
	}
}

func (p *PendingSet) empty() bool {
	return len(p.added) == 0 && len(p.updated) == 0 && len(p.deleted) == 0
}

// Store is the PendingChangeStore: one PendingSet per kind.
//
// Thread-safety: none. Owned by the session's single owning goroutine.
type Store struct {
	sets   map[model.Kind]*PendingSet
	rev    uint64
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for de-duplication notices.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sets:   make(map[model.Kind]*PendingSet),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) set(kind model.Kind) *PendingSet {
	p, ok := s.sets[kind]
	if !ok {
		p = newPendingSet()
		s.sets[kind] = p
	}
	return p
}

// nextRev stamps a field write. Revisions only ever increase.
func (s *Store) nextRev() uint64 {
	s.rev++
	return s.rev
}

// MarkAdded registers a never-sent row. Returns false (and logs) if the temp
// id was already tracked; a duplicate never produces a second entry.
func (s *Store) MarkAdded(kind model.Kind, id model.TempID) bool {
	p := s.set(kind)
	if _, dup := p.added[id]; dup {
		s.logger.Debug("duplicate add ignored", "kind", kind, "temp_id", id)
		return false
	}
	p.added[id] = struct{}{}
	return true
}

// MarkUpdated merges a field write for a persisted row. It is a no-op
// (returning false) when the row is marked for deletion.
func (s *Store) MarkUpdated(kind model.Kind, id model.PersistedID, field string, v model.Value) bool {
	p := s.set(kind)
	if _, del := p.deleted[id]; del {
		return false
	}
	e, ok := p.updated[id]
	if !ok {
		e = &changeEntry{fields: make(map[string]fieldChange)}
		p.updated[id] = e
	}
	if v == nil {
		v = model.Null{}
	}
	e.set(field, v, s.nextRev())
	return true
}

// MarkDeleted marks a row for deletion. A persisted id moves into deleted
// and loses any pending update; a temp id is simply dropped from added.
func (s *Store) MarkDeleted(kind model.Kind, id model.Identity) {
	p := s.set(kind)
	switch {
	case id.IsPersisted():
		pid := id.PersistedID()
		delete(p.updated, pid)
		p.deleted[pid] = struct{}{}
	case id.IsTemp():
		delete(p.added, id.TempID())
	}
}

// HasPendingChanges reports whether kind has anything to send.
func (s *Store) HasPendingChanges(kind model.Kind) bool {
	p, ok := s.sets[kind]
	return ok && !p.empty()
}

// Kinds returns the kinds that have pending changes, sorted.
func (s *Store) Kinds() []model.Kind {
	var kinds []model.Kind
	for k, p := range s.sets {
		if !p.empty() {
			kinds = append(kinds, k)
		}
	}
	slices.Sort(kinds)
	return kinds
}

// IsAdded reports whether a temp id is tracked in added.
func (s *Store) IsAdded(kind model.Kind, id model.TempID) bool {
	p, ok := s.sets[kind]
	if !ok {
		return false
	}
	_, in := p.added[id]
	return in
}

// IsDeleted reports whether a persisted id is marked for deletion.
func (s *Store) IsDeleted(kind model.Kind, id model.PersistedID) bool {
	p, ok := s.sets[kind]
	if !ok {
		return false
	}
	_, in := p.deleted[id]
	return in
}

// IsUpdated reports whether a persisted id has pending field writes.
func (s *Store) IsUpdated(kind model.Kind, id model.PersistedID) bool {
	p, ok := s.sets[kind]
	if !ok {
		return false
	}
	_, in := p.updated[id]
	return in
}

// Added returns the tracked temp ids in creation order (-1, -2, ...).
func (s *Store) Added(kind model.Kind) []model.TempID {
	p, ok := s.sets[kind]
	if !ok {
		return nil
	}
	ids := make([]model.TempID, 0, len(p.added))
	for id := range p.added {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b model.TempID) int { return cmp.Compare(b, a) })
	return ids
}

// Updated returns a copy of the pending field writes by id.
func (s *Store) Updated(kind model.Kind) map[model.PersistedID]model.Fields {
	out := make(map[model.PersistedID]model.Fields)
	p, ok := s.sets[kind]
	if !ok {
		return out
	}
	for id, e := range p.updated {
		out[id] = e.toFields()
	}
	return out
}

// ChangedFields returns the pending field writes of one row.
func (s *Store) ChangedFields(kind model.Kind, id model.PersistedID) (model.Fields, bool) {
	p, ok := s.sets[kind]
	if !ok {
		return model.Fields{}, false
	}
	e, ok := p.updated[id]
	if !ok {
		return model.Fields{}, false
	}
	return e.toFields(), true
}

// Deleted returns the ids marked for deletion, ascending.
func (s *Store) Deleted(kind model.Kind) []model.PersistedID {
	p, ok := s.sets[kind]
	if !ok {
		return nil
	}
	ids := make([]model.PersistedID, 0, len(p.deleted))
	for id := range p.deleted {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ConfirmAdded drops a temp id the remote store acknowledged.
func (s *Store) ConfirmAdded(kind model.Kind, id model.TempID) bool {
	p, ok := s.sets[kind]
	if !ok {
		return false
	}
	if _, in := p.added[id]; !in {
		return false
	}
	delete(p.added, id)
	return true
}

// ConfirmUpdated drops the field writes a confirmed batch carried. A field
// written again after the snapshot has a newer revision and stays pending.
// Returns the keys still pending for the row.
func (s *Store) ConfirmUpdated(kind model.Kind, id model.PersistedID, sent map[string]uint64) []string {
	p, ok := s.sets[kind]
	if !ok {
		return nil
	}
	e, ok := p.updated[id]
	if !ok {
		return nil
	}
	for key, rev := range sent {
		if fc, ok := e.fields[key]; ok && fc.rev <= rev {
			e.remove(key)
		}
	}
	if len(e.keys) == 0 {
		delete(p.updated, id)
		return nil
	}
	return slices.Clone(e.keys)
}

// ConfirmDeleted drops an id the remote store deleted.
func (s *Store) ConfirmDeleted(kind model.Kind, id model.PersistedID) bool {
	p, ok := s.sets[kind]
	if !ok {
		return false
	}
	if _, in := p.deleted[id]; !in {
		return false
	}
	delete(p.deleted, id)
	return true
}

// Discard forgets everything pending for the given persisted ids. Used when
// rows leave the grid for another bucket.
func (s *Store) Discard(kind model.Kind, ids ...model.PersistedID) {
	p, ok := s.sets[kind]
	if !ok {
		return
	}
	for _, id := range ids {
		delete(p.updated, id)
		delete(p.deleted, id)
	}
}
