package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/grid"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/schema"
	"github.com/roach88/gridsync/internal/testutil"
)

const (
	shop    = model.KindShop
	oneroom = model.KindOneRoom
)

// newTestSession creates a session over a fake remote and a manual clock.
func newTestSession(t *testing.T, opts ...SessionOption) (*Session, *testutil.FakeRemote, *testutil.ManualClock) {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)

	fake := testutil.NewFakeRemote()
	clock := testutil.NewManualClock()
	base := []SessionOption{
		WithClock(clock),
		WithIDGenerator(FixedGenerator("sess-test")),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithCallTimeout(2 * time.Second),
	}
	s := NewSession(reg, fake, append(base, opts...)...)
	t.Cleanup(func() {
		fake.Release()
		s.Close()
	})
	return s, fake, clock
}

// seedRow inserts a clean persisted row, as if loaded from the store.
func seedRow(t *testing.T, s *Session, kind model.Kind, id model.PersistedID, pairs ...model.FieldPair) model.Identity {
	t.Helper()
	tbl, err := s.Table(kind)
	require.NoError(t, err)
	ident := model.MustPersisted(id)
	require.NoError(t, tbl.Insert(grid.Record{Identity: ident, Fields: model.NewFields(pairs...)}))
	return ident
}

func addRow(t *testing.T, s *Session, kind model.Kind, listingNo string) model.Identity {
	t.Helper()
	id, err := s.AddRow(kind, model.NewFields(model.F("listing_no", model.Text(listingNo))))
	require.NoError(t, err)
	return id
}

func record(t *testing.T, s *Session, kind model.Kind, id model.Identity) grid.Record {
	t.Helper()
	tbl, err := s.Table(kind)
	require.NoError(t, err)
	rec, ok := tbl.Get(id)
	require.True(t, ok, "row %s not in grid", id)
	return rec
}

func hasRow(t *testing.T, s *Session, kind model.Kind, id model.Identity) bool {
	t.Helper()
	tbl, err := s.Table(kind)
	require.NoError(t, err)
	return tbl.Has(id)
}

func settle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Settle(ctx))
}

func waitEntered(t *testing.T, fake *testutil.FakeRemote) {
	t.Helper()
	select {
	case <-fake.Entered():
	case <-time.After(2 * time.Second):
		t.Fatal("remote call never started")
	}
}

func fieldValue(t *testing.T, f model.Fields, key string) model.Value {
	t.Helper()
	v, ok := f.Get(key)
	require.True(t, ok, "field %q missing", key)
	return v
}
