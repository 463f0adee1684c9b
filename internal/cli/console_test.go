package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/engine"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/schema"
	"github.com/roach88/gridsync/internal/testutil"
)

// newTestConsole builds a console over a fake remote holding two saved shop
// rows. The test goroutine is the session owner.
func newTestConsole(t *testing.T) (*console, *testutil.FakeRemote, *bytes.Buffer) {
	t.Helper()
	fake := testutil.NewFakeRemote()
	fake.SetRows(model.KindShop,
		remote.Row{ID: 50, Fields: map[string]json.RawMessage{"listing_no": json.RawMessage(`"S-50"`)}},
		remote.Row{ID: 51, Fields: map[string]json.RawMessage{"listing_no": json.RawMessage(`"S-51"`)}},
	)

	reg, err := schema.Default()
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	con := newConsole(buf)
	sess := engine.NewSession(reg, fake,
		engine.WithLogger(slog.New(slog.DiscardHandler)),
		engine.WithIDGenerator(engine.FixedGenerator("console")),
		engine.WithRemapHook(con.onRemap),
	)
	con.sess = sess
	t.Cleanup(sess.Close)

	require.NoError(t, sess.Load(context.Background()))
	return con, fake, buf
}

func settle(t *testing.T, con *console) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, con.sess.Settle(ctx))
}

func mustExec(t *testing.T, con *console, line string) string {
	t.Helper()
	out, err := con.exec(line)
	require.NoError(t, err, line)
	return out
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"add shop No.=A-1", []string{"add", "shop", "No.=A-1"}},
		{"set  shop\t50 Memo  hi", []string{"set", "shop", "50", "Memo", "hi"}},
		{`set shop 50 Address "12 Main St"`, []string{"set", "shop", "50", "Address", "12 Main St"}},
		{`add shop Address="1 Main St" No.=A-2`, []string{"add", "shop", "Address=1 Main St", "No.=A-2"}},
		{`set shop 50 Memo ""`, []string{"set", "shop", "50", "Memo", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitArgs(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := splitArgs(`set shop 50 Memo "open`)
	assert.Error(t, err)
}

func TestConsole_AddSaveAndKeepUsingTempID(t *testing.T) {
	con, fake, buf := newTestConsole(t)

	assert.Equal(t, "added shop temp:-1", mustExec(t, con, "add shop No.=S-1 Deposit=5,000"))
	assert.Equal(t, "shop: 1 added, 0 updated, 0 deleted", mustExec(t, con, "pending shop"))

	assert.Equal(t, "saving shop", mustExec(t, con, "save shop"))
	settle(t, con)
	assert.Contains(t, buf.String(), "saved shop: 1 added, 0 updated, 0 deleted")
	require.Equal(t, 1, fake.SaveCount())

	// temp:-1 now names id:101.
	assert.Equal(t, "shop id:101 updated", mustExec(t, con, `set shop temp:-1 Manager "Kim Lee"`))
	table := mustExec(t, con, "show shop")
	assert.Contains(t, table, "id:101")
	assert.Contains(t, table, "5,000")
	assert.Contains(t, table, "Kim Lee*")
	assert.Contains(t, table, "pending-edit")
}

func TestConsole_BulkDeleteAndComplete(t *testing.T) {
	con, fake, buf := newTestConsole(t)

	assert.Equal(t, "2 row(s) updated", mustExec(t, con, "bulk shop 50,51 Parking Y"))

	_, err := con.exec("complete shop 50")
	require.Error(t, err)
	assert.True(t, engine.IsPendingRows(err))

	mustExec(t, con, "save shop")
	settle(t, con)

	assert.Equal(t, "completing 1 row(s)", mustExec(t, con, "complete shop 50"))
	settle(t, con)
	assert.Contains(t, buf.String(), "1 shop row(s) completed")
	require.Len(t, fake.StatusRequests(), 1)
	assert.Equal(t, engine.BucketCompleted, fake.StatusRequests()[0].Bucket)

	assert.Equal(t, "1 row(s) marked for deletion", mustExec(t, con, "del shop 51"))
	assert.Contains(t, mustExec(t, con, "pending"), "shop: 0 added, 0 updated, 1 deleted")
}

func TestConsole_CompleteRefusesTempRows(t *testing.T) {
	con, _, _ := newTestConsole(t)
	mustExec(t, con, "add shop No.=S-1")

	_, err := con.exec("complete shop -1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temp:-1 is not saved yet")
}

func TestConsole_Errors(t *testing.T) {
	con, _, _ := newTestConsole(t)

	tests := []struct {
		line string
		want string
	}{
		{"frobnicate shop", `unknown command "frobnicate"`},
		{"show", "show: kind required"},
		{"show villa", `unknown kind "villa"`},
		{"show Shop!", "invalid kind"},
		{"add shop No.", "expected FIELD=VALUE"},
		{"add shop Floor=third", "not an integer"},
		{"set shop 50", "usage: set"},
		{"set shop abc Memo x", "parse identity"},
		{"set shop 99 Memo x", "UNKNOWN_ROW"},
		{"del shop", "at least one row id required"},
		{"bulk shop 50", "usage: bulk"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := con.exec(tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConsole_StatusHelpQuit(t *testing.T) {
	con, _, _ := newTestConsole(t)

	status := mustExec(t, con, "status")
	assert.True(t, strings.HasPrefix(status, "guard: idle"))
	assert.Contains(t, status, "rows loaded")

	assert.Contains(t, mustExec(t, con, "help"), "complete KIND ID")
	assert.Empty(t, mustExec(t, con, ""))

	_, err := con.exec("quit")
	assert.ErrorIs(t, err, errQuit)
}

func TestConsole_ServeRunsLinesOnOwner(t *testing.T) {
	con, fake, buf := newTestConsole(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- con.sess.Run(ctx) }()

	in := strings.NewReader("add shop No.=S-1\nbogus\nsave shop\n")
	err := con.serve(ctx, in)
	assert.ErrorIs(t, err, errQuit, "end of input quits")

	cancel()
	<-runDone

	out := buf.String()
	assert.Contains(t, out, "added shop temp:-1")
	assert.Contains(t, out, `error: unknown command "bogus"`)
	assert.Contains(t, out, "saved shop: 1 added", "quit waits for the in-flight save")
	assert.Equal(t, 1, fake.SaveCount())
}
