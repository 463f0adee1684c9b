package pending

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/model"
)

const shop = model.KindShop

// rowMap is a RowSource backed by a map.
type rowMap map[model.Identity]model.Fields

func (r rowMap) Row(_ model.Kind, id model.Identity) (model.Fields, bool) {
	f, ok := r[id]
	return f, ok
}

func TestStore_MarkAddedIsIdempotent(t *testing.T) {
	s := NewStore()

	assert.True(t, s.MarkAdded(shop, -1))
	assert.False(t, s.MarkAdded(shop, -1), "second add of the same temp id is ignored")

	assert.Equal(t, []model.TempID{-1}, s.Added(shop))
	assert.True(t, s.HasPendingChanges(shop))
}

func TestStore_MarkUpdatedMergesLastWriteWins(t *testing.T) {
	s := NewStore()

	s.MarkUpdated(shop, 7, "manager", model.Text("Kim"))
	s.MarkUpdated(shop, 7, "floor", model.Int(2))
	s.MarkUpdated(shop, 7, "manager", model.Text("Lee"))

	updated := s.Updated(shop)
	require.Len(t, updated, 1, "one entry per id")
	f := updated[7]
	assert.Equal(t, []string{"manager", "floor"}, f.Keys())
	v, _ := f.Get("manager")
	assert.Equal(t, model.Text("Lee"), v)
}

func TestStore_MarkDeletedEvictsUpdate(t *testing.T) {
	s := NewStore()

	s.MarkUpdated(shop, 50, "manager", model.Text("Kim"))
	s.MarkDeleted(shop, model.MustPersisted(50))

	assert.False(t, s.IsUpdated(shop, 50))
	assert.Empty(t, s.Updated(shop))
	assert.Equal(t, []model.PersistedID{50}, s.Deleted(shop))
}

func TestStore_MarkUpdatedIgnoredAfterDelete(t *testing.T) {
	s := NewStore()

	s.MarkDeleted(shop, model.MustPersisted(50))
	ok := s.MarkUpdated(shop, 50, "manager", model.Text("Kim"))

	assert.False(t, ok)
	assert.False(t, s.IsUpdated(shop, 50))
	assert.True(t, s.IsDeleted(shop, 50))
}

func TestStore_MarkDeletedTempDropsAdd(t *testing.T) {
	s := NewStore()

	s.MarkAdded(shop, -3)
	s.MarkDeleted(shop, model.MustTemp(-3))

	assert.Empty(t, s.Added(shop))
	assert.Empty(t, s.Deleted(shop), "a never-sent row produces no delete")
	assert.False(t, s.HasPendingChanges(shop))
}

func TestStore_KindsAreIndependent(t *testing.T) {
	s := NewStore()
	s.MarkAdded(shop, -1)
	s.MarkDeleted(model.KindOneRoom, model.MustPersisted(9))

	assert.Equal(t, []model.Kind{model.KindOneRoom, shop}, s.Kinds())
	assert.Empty(t, s.Deleted(shop))
	assert.Empty(t, s.Added(model.KindOneRoom))
}

func TestStore_NeverUpdatedAndDeleted(t *testing.T) {
	// Random interleavings of updates and deletes must never leave an id in
	// both updated and deleted.
	rng := rand.New(rand.NewSource(42))
	s := NewStore()
	fields := []string{"manager", "floor", "memo"}

	for i := 0; i < 5000; i++ {
		id := model.PersistedID(rng.Intn(20) + 1)
		if rng.Intn(4) == 0 {
			s.MarkDeleted(shop, model.MustPersisted(id))
		} else {
			s.MarkUpdated(shop, id, fields[rng.Intn(len(fields))], model.Int(int64(i)))
		}

		for _, del := range s.Deleted(shop) {
			require.False(t, s.IsUpdated(shop, del), "id %d in both sets after step %d", del, i)
		}
	}
}

func TestStore_ConfirmUpdatedKeepsNewerWrites(t *testing.T) {
	s := NewStore()
	s.MarkUpdated(shop, 7, "manager", model.Text("Kim"))
	s.MarkUpdated(shop, 7, "floor", model.Int(2))

	batch := s.Snapshot(shop, rowMap{})
	require.Len(t, batch.Updated, 1)

	// Edit after the snapshot was taken.
	s.MarkUpdated(shop, 7, "manager", model.Text("Park"))

	remaining := s.ConfirmUpdated(shop, 7, batch.Updated[0].Revisions)
	assert.Equal(t, []string{"manager"}, remaining)

	f, ok := s.ChangedFields(shop, 7)
	require.True(t, ok)
	v, _ := f.Get("manager")
	assert.Equal(t, model.Text("Park"), v)
	_, hasFloor := f.Get("floor")
	assert.False(t, hasFloor)
}

func TestStore_ConfirmUpdatedDropsEntryWhenFullySent(t *testing.T) {
	s := NewStore()
	s.MarkUpdated(shop, 7, "manager", model.Text("Kim"))
	batch := s.Snapshot(shop, rowMap{})

	remaining := s.ConfirmUpdated(shop, 7, batch.Updated[0].Revisions)
	assert.Nil(t, remaining)
	assert.False(t, s.IsUpdated(shop, 7))
	assert.False(t, s.HasPendingChanges(shop))
}

func TestStore_ConfirmAddedAndDeleted(t *testing.T) {
	s := NewStore()
	s.MarkAdded(shop, -1)
	s.MarkDeleted(shop, model.MustPersisted(4))

	assert.True(t, s.ConfirmAdded(shop, -1))
	assert.False(t, s.ConfirmAdded(shop, -1))
	assert.True(t, s.ConfirmDeleted(shop, 4))
	assert.False(t, s.ConfirmDeleted(shop, 4))
	assert.False(t, s.HasPendingChanges(shop))
}

func TestStore_Discard(t *testing.T) {
	s := NewStore()
	s.MarkUpdated(shop, 1, "memo", model.Text("a"))
	s.MarkDeleted(shop, model.MustPersisted(2))
	s.MarkUpdated(shop, 3, "memo", model.Text("b"))

	s.Discard(shop, 1, 2)

	assert.Empty(t, s.Deleted(shop))
	assert.True(t, s.IsUpdated(shop, 3))
	assert.False(t, s.IsUpdated(shop, 1))
}
