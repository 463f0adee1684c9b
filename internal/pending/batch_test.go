package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/model"
)

func TestSnapshot_DoesNotClear(t *testing.T) {
	s := NewStore()
	s.MarkAdded(shop, -1)
	s.MarkUpdated(shop, 8, "memo", model.Text("x"))
	s.MarkDeleted(shop, model.MustPersisted(9))

	rows := rowMap{model.MustTemp(-1): model.NewFields(model.F("listing_no", model.Text("S-1")))}
	batch := s.Snapshot(shop, rows)

	assert.Equal(t, []model.TempID{-1}, batch.AddedIDs())
	assert.Equal(t, []model.PersistedID{8}, batch.UpdatedIDs())
	assert.Equal(t, []model.PersistedID{9}, batch.Deleted)

	assert.True(t, s.IsAdded(shop, -1))
	assert.True(t, s.IsUpdated(shop, 8))
	assert.True(t, s.IsDeleted(shop, 9))
}

func TestSnapshot_RowSnapshotsAreCopies(t *testing.T) {
	s := NewStore()
	s.MarkAdded(shop, -1)
	live := model.NewFields(model.F("manager", model.Text("Kim")))
	rows := rowMap{model.MustTemp(-1): live}

	batch := s.Snapshot(shop, rows)
	live.Set("manager", model.Text("Lee"))

	v, _ := batch.Added[0].Fields.Get("manager")
	assert.Equal(t, model.Text("Kim"), v, "later grid edits must not leak into the sent batch")
}

func TestSnapshot_DeletedRowNeverInUpdated(t *testing.T) {
	s := NewStore()
	s.MarkUpdated(shop, 50, "manager", model.Text("Kim"))
	s.MarkDeleted(shop, model.MustPersisted(50))

	batch := s.Snapshot(shop, rowMap{})
	assert.Empty(t, batch.Updated)
	assert.Equal(t, []model.PersistedID{50}, batch.Deleted)
}

func TestSnapshot_SkipsAddWithoutGridRow(t *testing.T) {
	s := NewStore()
	s.MarkAdded(shop, -1)
	s.MarkAdded(shop, -2)

	batch := s.Snapshot(shop, rowMap{model.MustTemp(-2): model.Fields{}})
	assert.Equal(t, []model.TempID{-2}, batch.AddedIDs())
}

func TestSnapshot_UpdatedCarriesFullRowAndChanges(t *testing.T) {
	s := NewStore()
	s.MarkUpdated(shop, 3, "manager", model.Text("Kim"))
	full := model.NewFields(model.F("listing_no", model.Text("S-3")), model.F("manager", model.Text("Kim")))

	batch := s.Snapshot(shop, rowMap{model.MustPersisted(3): full})
	require.Len(t, batch.Updated, 1)
	u := batch.Updated[0]
	assert.True(t, u.Fields.Equal(full))
	assert.Equal(t, []string{"manager"}, u.Changed.Keys())
	assert.Contains(t, u.Revisions, "manager")
}

func TestSnapshot_AddedInCreationOrder(t *testing.T) {
	s := NewStore()
	rows := rowMap{}
	for _, id := range []model.TempID{-3, -1, -2} {
		s.MarkAdded(shop, id)
		rows[model.MustTemp(id)] = model.Fields{}
	}
	batch := s.Snapshot(shop, rows)
	assert.Equal(t, []model.TempID{-1, -2, -3}, batch.AddedIDs())
}

func TestSaveBatch_Dedupe(t *testing.T) {
	b := SaveBatch{Kind: shop, Added: []AddedRow{{TempID: -1}, {TempID: -2}, {TempID: -1}}}
	clean, dropped := b.Dedupe()
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []model.TempID{-1, -2}, clean.AddedIDs())
	assert.Len(t, b.Added, 3, "original batch untouched")
}

func TestSaveBatch_HashIsContentAddressed(t *testing.T) {
	mk := func(memo string) SaveBatch {
		return SaveBatch{
			Kind:    shop,
			Added:   []AddedRow{{TempID: -1, Fields: model.NewFields(model.F("memo", model.Text(memo)))}},
			Deleted: []model.PersistedID{4},
		}
	}
	h1, err := mk("a").Hash("s1")
	require.NoError(t, err)
	h2, err := mk("a").Hash("s1")
	require.NoError(t, err)
	h3, err := mk("b").Hash("s1")
	require.NoError(t, err)
	h4, err := mk("a").Hash("s2")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h1, h4, "another session never shares a request id")
}

func TestSaveBatch_HashChangesWhenValueIsWrittenBack(t *testing.T) {
	s := NewStore()
	rows := rowMap{}
	hashAfter := func(v string) string {
		t.Helper()
		s.MarkUpdated(shop, 8, "manager", model.Text(v))
		batch := s.Snapshot(shop, rows)
		h, err := batch.Hash("s1")
		require.NoError(t, err)
		s.ConfirmUpdated(shop, 8, batch.Updated[0].Revisions)
		return h
	}

	kim := hashAfter("Kim")
	lee := hashAfter("Lee")
	kimAgain := hashAfter("Kim")

	assert.NotEqual(t, kim, lee)
	assert.NotEqual(t, kim, kimAgain, "same value written later is a new request")

	// An unconfirmed snapshot taken twice is the same request.
	s.MarkUpdated(shop, 8, "manager", model.Text("Park"))
	h1, err := s.Snapshot(shop, rows).Hash("s1")
	require.NoError(t, err)
	h2, err := s.Snapshot(shop, rows).Hash("s1")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestSaveBatch_EmptyAndCounts(t *testing.T) {
	assert.True(t, SaveBatch{}.Empty())
	b := SaveBatch{Updated: []UpdatedRow{{ID: 1}}, Deleted: []model.PersistedID{2, 3}}
	a, u, d := b.Counts()
	assert.Equal(t, []int{0, 1, 2}, []int{a, u, d})
	assert.False(t, b.Empty())
}
