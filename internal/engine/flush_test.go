package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/grid"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/testutil"
)

func TestFlush_RoundTripRemapsTempIDs(t *testing.T) {
	s, fake, _ := newTestSession(t)
	a := addRow(t, s, shop, "S-1")
	b := addRow(t, s, shop, "S-2")
	assert.Len(t, s.Pending().Added(shop), 2)

	require.NoError(t, s.SaveNow(shop, nil))
	settle(t, s)

	saves := fake.Saves()
	require.Len(t, saves, 1)
	require.Len(t, saves[0].AddedRows, 2)
	assert.Equal(t, a.Int64(), saves[0].AddedRows[0].TempID)
	assert.Equal(t, b.Int64(), saves[0].AddedRows[1].TempID)

	assert.Empty(t, s.Pending().Added(shop))
	assert.False(t, hasRow(t, s, shop, a))
	assert.False(t, hasRow(t, s, shop, b))

	r1 := record(t, s, shop, model.MustPersisted(101))
	r2 := record(t, s, shop, model.MustPersisted(102))
	assert.Equal(t, model.Text("S-1"), fieldValue(t, r1.Fields, "listing_no"))
	assert.Equal(t, model.Text("S-2"), fieldValue(t, r2.Fields, "listing_no"))
	assert.Equal(t, grid.Clean, r1.Visual)
	assert.Equal(t, grid.Clean, r2.Visual)

	assert.Equal(t, GuardIdle, s.Guard().State())
	assert.Equal(t, SeverityInfo, s.Status().Current().Severity)
	assert.Contains(t, s.Status().Current().Text, "saved shop: 2 added")
}

func TestFlush_ErrorKeepsPendingState(t *testing.T) {
	s, fake, _ := newTestSession(t)
	fake.FailSave("duplicate key")

	edited := seedRow(t, s, shop, 5)
	doomed := seedRow(t, s, shop, 6)
	added := addRow(t, s, shop, "S-1")
	require.NoError(t, s.Edit(shop, edited, "manager", model.Text("Kim")))
	require.NoError(t, s.Delete(shop, doomed))

	beforeAdded := s.Pending().Added(shop)
	beforeUpdated := s.Pending().Updated(shop)
	beforeDeleted := s.Pending().Deleted(shop)

	var got ReconciliationResult
	require.NoError(t, s.SaveNow(shop, func(res ReconciliationResult) { got = res }))
	settle(t, s)

	assert.Equal(t, ResultError, got.Status)
	assert.Equal(t, remote.KindApplication, got.ErrKind)

	assert.Equal(t, beforeAdded, s.Pending().Added(shop))
	assert.Equal(t, beforeUpdated, s.Pending().Updated(shop))
	assert.Equal(t, beforeDeleted, s.Pending().Deleted(shop))
	assert.Equal(t, GuardIdle, s.Guard().State())
	assert.Equal(t, StatusMessage{Severity: SeverityError, Text: "duplicate key", At: testutil.Epoch}, s.Status().Current())

	assert.Equal(t, grid.VisualNew, record(t, s, shop, added).Visual)
	assert.Equal(t, grid.PendingEdit, record(t, s, shop, edited).Visual)
	assert.Equal(t, grid.PendingDelete, record(t, s, shop, doomed).Visual)
}

func TestFlush_SingleFlight(t *testing.T) {
	s, fake, _ := newTestSession(t)
	addRow(t, s, shop, "S-1")
	fake.Hold()

	require.NoError(t, s.SaveNow(shop, nil))
	waitEntered(t, fake)
	assert.Equal(t, GuardFlushing, s.Guard().State())

	addRow(t, s, oneroom, "O-1")
	err := s.SaveNow(oneroom, nil)
	assert.True(t, IsBusy(err))
	assert.Equal(t, SeverityWarn, s.Status().Current().Severity)

	_, started := s.Tick()
	assert.False(t, started)
	assert.Equal(t, 1, fake.SaveCount())

	fake.Release()
	settle(t, s)

	assert.Equal(t, GuardIdle, s.Guard().State())
	assert.Equal(t, 1, fake.SaveCount(), "no second batch was created")
	assert.True(t, s.Pending().HasPendingChanges(oneroom))
}

func TestFlush_CooldownSuppressesTicks(t *testing.T) {
	s, fake, clock := newTestSession(t, WithCooldown(10*time.Second))
	id := seedRow(t, s, shop, 1)

	require.NoError(t, s.Edit(shop, id, "memo", model.Text("a")))
	require.NoError(t, s.SaveNow(shop, nil))
	settle(t, s)
	completed := clock.Now()
	assert.Equal(t, completed, s.Scheduler().LastManualSave())

	require.NoError(t, s.Edit(shop, id, "memo", model.Text("b")))

	clock.Set(completed.Add(5 * time.Second))
	_, started := s.Tick()
	assert.False(t, started, "tick at T+cooldown/2 is a no-op")
	assert.Equal(t, 1, fake.SaveCount())

	clock.Set(completed.Add(20 * time.Second))
	kind, started := s.Tick()
	assert.True(t, started, "tick at T+2*cooldown proceeds")
	assert.Equal(t, shop, kind)
	settle(t, s)
	assert.Equal(t, 2, fake.SaveCount())
	assert.False(t, s.Pending().HasPendingChanges(shop))
}

func TestFlush_FailedManualSaveStillStartsCooldown(t *testing.T) {
	s, fake, clock := newTestSession(t)
	fake.FailSave("server busy")
	addRow(t, s, shop, "S-1")

	require.NoError(t, s.SaveNow(shop, nil))
	settle(t, s)

	clock.Advance(DefaultCooldown / 2)
	_, started := s.Tick()
	assert.False(t, started)
	assert.Equal(t, 1, fake.SaveCount())
}

func TestFlush_TickWithoutManualSaveFlushes(t *testing.T) {
	s, fake, _ := newTestSession(t)

	_, started := s.Tick()
	assert.False(t, started, "nothing pending")

	addRow(t, s, shop, "S-1")
	kind, started := s.Tick()
	assert.True(t, started)
	assert.Equal(t, shop, kind)
	settle(t, s)
	assert.Equal(t, 1, fake.SaveCount())
}

func TestFlush_TicksRotateOverKinds(t *testing.T) {
	s, _, _ := newTestSession(t)
	addRow(t, s, shop, "S-1")
	addRow(t, s, oneroom, "O-1")

	first, ok := s.Tick()
	require.True(t, ok)
	settle(t, s)
	second, ok := s.Tick()
	require.True(t, ok)
	settle(t, s)

	assert.ElementsMatch(t, []model.Kind{shop, oneroom}, []model.Kind{first, second})
	assert.Empty(t, s.Pending().Kinds())
}

func TestFlush_EditsDuringFlightSurvive(t *testing.T) {
	s, fake, _ := newTestSession(t)
	id := seedRow(t, s, shop, 7)
	require.NoError(t, s.Edit(shop, id, "manager", model.Text("Kim")))
	require.NoError(t, s.Edit(shop, id, "floor", model.Int(2)))

	fake.Hold()
	require.NoError(t, s.SaveNow(shop, nil))
	waitEntered(t, fake)

	require.NoError(t, s.Edit(shop, id, "manager", model.Text("Lee")))
	require.NoError(t, s.Edit(shop, id, "memo", model.Text("late")))

	fake.Release()
	settle(t, s)

	f, ok := s.Pending().ChangedFields(shop, 7)
	require.True(t, ok, "edits made after the snapshot stay pending")
	assert.Equal(t, []string{"manager", "memo"}, f.Keys())
	assert.Equal(t, model.Text("Lee"), fieldValue(t, f, "manager"))

	rec := record(t, s, shop, id)
	assert.Equal(t, grid.PendingEdit, rec.Visual)
	assert.Equal(t, []string{"manager", "memo"}, rec.PendingKeys())

	sent := fake.Saves()[0].UpdatedRows[0].ChangedFields
	assert.Equal(t, model.Text("Kim"), fieldValue(t, sent, "manager"))
}

func TestFlush_TempRowEditedInFlightBecomesUpdate(t *testing.T) {
	s, fake, _ := newTestSession(t)
	id := addRow(t, s, shop, "S-1")

	fake.Hold()
	require.NoError(t, s.SaveNow(shop, nil))
	waitEntered(t, fake)
	require.NoError(t, s.Edit(shop, id, "memo", model.Text("late")))
	fake.Release()
	settle(t, s)

	assert.Empty(t, s.Pending().Added(shop))
	f, ok := s.Pending().ChangedFields(shop, 101)
	require.True(t, ok)
	assert.Equal(t, []string{"memo"}, f.Keys())

	rec := record(t, s, shop, model.MustPersisted(101))
	assert.Equal(t, grid.PendingEdit, rec.Visual)
	assert.Equal(t, []string{"memo"}, rec.PendingKeys())
}

func TestFlush_TempRowDeletedInFlightIsDeletedUnderNewID(t *testing.T) {
	s, fake, clock := newTestSession(t)
	id := addRow(t, s, shop, "S-1")

	fake.Hold()
	require.NoError(t, s.SaveNow(shop, nil))
	waitEntered(t, fake)
	require.NoError(t, s.Delete(shop, id))
	fake.Release()
	settle(t, s)

	assert.Equal(t, []model.PersistedID{101}, s.Pending().Deleted(shop))
	assert.Equal(t, grid.PendingDelete, record(t, s, shop, model.MustPersisted(101)).Visual)

	clock.Advance(2 * DefaultCooldown)
	_, started := s.Tick()
	require.True(t, started)
	settle(t, s)

	assert.Equal(t, []int64{101}, fake.Saves()[1].DeletedIDs)
	assert.False(t, hasRow(t, s, shop, model.MustPersisted(101)))
	assert.False(t, s.Pending().HasPendingChanges(shop))
}

func TestFlush_MissingIDMapEntryKeepsRowPending(t *testing.T) {
	s, fake, _ := newTestSession(t)
	fake.ReplySave(testutil.SaveReply{Response: remote.SaveResponse{Status: remote.StatusOK}})
	id := addRow(t, s, shop, "S-1")

	require.NoError(t, s.SaveNow(shop, nil))
	settle(t, s)

	assert.Equal(t, []model.TempID{id.TempID()}, s.Pending().Added(shop))
	assert.Equal(t, grid.VisualNew, record(t, s, shop, id).Visual)
}

func TestFlush_WorkerPanicReleasesGuard(t *testing.T) {
	s, fake, _ := newTestSession(t)
	fake.ReplySave(testutil.SaveReply{Panic: true})
	addRow(t, s, shop, "S-1")

	require.NoError(t, s.SaveNow(shop, nil))
	settle(t, s)

	assert.Equal(t, GuardIdle, s.Guard().State())
	assert.Equal(t, SeverityError, s.Status().Current().Severity)
	assert.Contains(t, s.Status().Current().Text, "internal error")
	assert.Len(t, s.Pending().Added(shop), 1)
}

func TestFlush_TimeoutIsTransportFailure(t *testing.T) {
	s, fake, _ := newTestSession(t, WithCallTimeout(50*time.Millisecond))
	addRow(t, s, shop, "S-1")
	fake.Hold()

	var got ReconciliationResult
	require.NoError(t, s.SaveNow(shop, func(res ReconciliationResult) { got = res }))
	settle(t, s)

	assert.Equal(t, remote.KindTransport, got.ErrKind)
	assert.True(t, IsTransport(got.Err()))
	assert.Equal(t, GuardIdle, s.Guard().State())
	assert.Len(t, s.Pending().Added(shop), 1)
}

func TestFlush_EmptyManualSaveMakesNoCall(t *testing.T) {
	s, fake, clock := newTestSession(t)

	called := false
	require.NoError(t, s.SaveNow(shop, func(res ReconciliationResult) {
		called = true
		assert.True(t, res.OK())
	}))

	assert.True(t, called, "completes synchronously")
	assert.Zero(t, fake.SaveCount())
	assert.Equal(t, GuardIdle, s.Guard().State())
	assert.Equal(t, clock.Now(), s.Scheduler().LastManualSave())
}

func TestFlush_RetryReusesRequestID(t *testing.T) {
	s, fake, clock := newTestSession(t)
	fake.FailSave("connection reset")
	addRow(t, s, shop, "S-1")

	require.NoError(t, s.SaveNow(shop, nil))
	settle(t, s)
	clock.Advance(2 * DefaultCooldown)
	_, started := s.Tick()
	require.True(t, started)
	settle(t, s)

	saves := fake.Saves()
	require.Len(t, saves, 2)
	assert.NotEmpty(t, saves[0].RequestID)
	assert.Equal(t, saves[0].RequestID, saves[1].RequestID)
	assert.Equal(t, "sess-test", saves[0].Session.SessionID)
}

func TestFlush_WriteBackToEarlierValueGetsNewRequestID(t *testing.T) {
	s, fake, _ := newTestSession(t)
	id := seedRow(t, s, shop, 10, model.F("manager", model.Text("Kim")))

	for _, v := range []string{"Lee", "Kim", "Lee"} {
		require.NoError(t, s.Edit(shop, id, "manager", model.Text(v)))
		require.NoError(t, s.SaveNow(shop, nil))
		settle(t, s)
		require.False(t, s.Pending().HasPendingChanges(shop), v)
	}

	saves := fake.Saves()
	require.Len(t, saves, 3)
	assert.NotEqual(t, saves[0].RequestID, saves[2].RequestID, "Lee then Lee again")
	assert.NotEqual(t, saves[0].RequestID, saves[1].RequestID)
	assert.NotEqual(t, saves[1].RequestID, saves[2].RequestID)
}

func TestFlush_SameEditInAnotherSessionGetsNewRequestID(t *testing.T) {
	edit := func(sessionID string) string {
		s, fake, _ := newTestSession(t, WithIDGenerator(FixedGenerator(sessionID)))
		id := seedRow(t, s, shop, 10)
		require.NoError(t, s.Edit(shop, id, "manager", model.Text("Lee")))
		require.NoError(t, s.SaveNow(shop, nil))
		settle(t, s)
		require.Equal(t, 1, fake.SaveCount())
		return fake.Saves()[0].RequestID
	}
	assert.NotEqual(t, edit("sess-a"), edit("sess-b"))
}

func TestTick_UIOnlyCleanup(t *testing.T) {
	s, fake, _ := newTestSession(t)
	id := addRow(t, s, oneroom, "O-1")
	require.NoError(t, s.Delete(oneroom, id))

	_, started := s.Tick()
	assert.False(t, started)
	assert.False(t, hasRow(t, s, oneroom, id))
	assert.Zero(t, fake.SaveCount())
}

func TestTick_NoCleanupWhileFlushing(t *testing.T) {
	s, fake, _ := newTestSession(t)
	inFlight := addRow(t, s, shop, "S-1")
	fake.Hold()
	require.NoError(t, s.SaveNow(shop, nil))
	waitEntered(t, fake)

	require.NoError(t, s.Delete(shop, inFlight))
	s.Tick()
	assert.True(t, hasRow(t, s, shop, inFlight), "row still awaits its id_map entry")
}
