package pending

import (
	"fmt"
	"slices"

	"github.com/roach88/gridsync/internal/model"
)

// RowSource provides the current field values of grid rows, so a batch can
// carry full row snapshots.
type RowSource interface {
	Row(kind model.Kind, id model.Identity) (model.Fields, bool)
}

// AddedRow is a never-persisted row in a batch.
type AddedRow struct {
	TempID model.TempID
	Fields model.Fields
}

// UpdatedRow is a persisted row with pending field writes.
type UpdatedRow struct {
	ID model.PersistedID
	// Fields is the full row as the grid showed it at snapshot time.
	Fields model.Fields
	// Changed holds only the pending field writes.
	Changed model.Fields
	// Revisions records the revision of each sent field, used to clear
	// exactly what was sent once the batch is confirmed.
	Revisions map[string]uint64
}

// SaveBatch is the immutable snapshot of one kind's pending set handed to a
// worker. Rows are sorted: added by creation order, updated and deleted by
// ascending id.
type SaveBatch struct {
	Kind    model.Kind
	Added   []AddedRow
	Updated []UpdatedRow
	Deleted []model.PersistedID
}

// Empty reports whether the batch carries nothing.
func (b SaveBatch) Empty() bool {
	return len(b.Added) == 0 && len(b.Updated) == 0 && len(b.Deleted) == 0
}

// Counts returns the number of added, updated and deleted rows.
func (b SaveBatch) Counts() (added, updated, deleted int) {
	return len(b.Added), len(b.Updated), len(b.Deleted)
}

// AddedIDs returns the temp ids carried by the batch.
func (b SaveBatch) AddedIDs() []model.TempID {
	ids := make([]model.TempID, len(b.Added))
	for i, r := range b.Added {
		ids[i] = r.TempID
	}
	return ids
}

// UpdatedIDs returns the persisted ids carried as updates.
func (b SaveBatch) UpdatedIDs() []model.PersistedID {
	ids := make([]model.PersistedID, len(b.Updated))
	for i, r := range b.Updated {
		ids[i] = r.ID
	}
	return ids
}

// Dedupe drops repeated temp ids from Added, keeping the first occurrence.
// It returns the cleaned batch and the number of rows dropped.
func (b SaveBatch) Dedupe() (SaveBatch, int) {
	seen := make(map[model.TempID]struct{}, len(b.Added))
	out := b
	out.Added = make([]AddedRow, 0, len(b.Added))
	dropped := 0
	for _, r := range b.Added {
		if _, dup := seen[r.TempID]; dup {
			dropped++
			continue
		}
		seen[r.TempID] = struct{}{}
		out.Added = append(out.Added, r)
	}
	return out, dropped
}

// Hash returns the request id of the batch within session. A resend of the
// same snapshot hashes the same, which lets the remote store detect it.
// Field revisions are part of the hash, so a later edit back to an earlier
// value gets a fresh id.
func (b SaveBatch) Hash(session string) (string, error) {
	added := make([]any, len(b.Added))
	for i, r := range b.Added {
		added[i] = map[string]any{"temp_id": int64(r.TempID), "fields": r.Fields}
	}
	updated := make([]any, len(b.Updated))
	for i, r := range b.Updated {
		revs := make(map[string]any, len(r.Revisions))
		for k, rev := range r.Revisions {
			revs[k] = int64(rev)
		}
		updated[i] = map[string]any{"id": int64(r.ID), "changed": r.Changed, "revisions": revs}
	}
	deleted := make([]any, len(b.Deleted))
	for i, id := range b.Deleted {
		deleted[i] = int64(id)
	}
	h, err := model.ContentHash(model.DomainSaveBatch, map[string]any{
		"session": session,
		"kind":    string(b.Kind),
		"added":   added,
		"updated": updated,
		"deleted": deleted,
	})
	if err != nil {
		return "", fmt.Errorf("hash batch: %w", err)
	}
	return h, nil
}

// Snapshot captures kind's pending set as a SaveBatch. Nothing is cleared:
// confirmation happens per id once the remote store acknowledges the batch.
//
// Added rows take their fields from rows. A tracked temp id with no grid row
// is skipped with a warning. Updated rows carry the full grid row when
// available and the changed fields always.
func (s *Store) Snapshot(kind model.Kind, rows RowSource) SaveBatch {
	batch := SaveBatch{Kind: kind}
	p, ok := s.sets[kind]
	if !ok {
		return batch
	}

	for _, tid := range s.Added(kind) {
		fields, ok := rows.Row(kind, model.MustTemp(tid))
		if !ok {
			s.logger.Warn("pending add has no grid row, skipped", "kind", kind, "temp_id", tid)
			continue
		}
		batch.Added = append(batch.Added, AddedRow{TempID: tid, Fields: fields.Clone()})
	}

	ids := make([]model.PersistedID, 0, len(p.updated))
	for id := range p.updated {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		e := p.updated[id]
		revs := make(map[string]uint64, len(e.keys))
		for _, k := range e.keys {
			revs[k] = e.fields[k].rev
		}
		changed := e.toFields()
		full, ok := rows.Row(kind, model.MustPersisted(id))
		if !ok {
			full = changed
		}
		batch.Updated = append(batch.Updated, UpdatedRow{
			ID:        id,
			Fields:    full.Clone(),
			Changed:   changed,
			Revisions: revs,
		})
	}

	batch.Deleted = s.Deleted(kind)

	s.logger.Debug("pending snapshot",
		"kind", kind,
		"added", len(batch.Added),
		"updated", len(batch.Updated),
		"deleted", len(batch.Deleted),
	)
	return batch
}
