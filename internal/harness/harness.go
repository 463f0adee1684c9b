package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/gridsync/internal/engine"
	"github.com/roach88/gridsync/internal/grid"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/schema"
	"github.com/roach88/gridsync/internal/testutil"
)

const (
	// settleTimeout bounds waiting for a step's remote calls to finish.
	settleTimeout = 5 * time.Second

	// callTimeout is the session's per-call timeout inside scenarios.
	callTimeout = 2 * time.Second

	sessionID = "scenario"
)

// Harness is the scenario execution engine.
// It drives one session with a manual clock and a scripted remote.
type Harness struct {
	session *engine.Session
	remote  *testutil.FakeRemote
	clock   *testutil.ManualClock
	result  *Result

	refs map[string]model.Identity
	held bool
	step int

	// counts already written to the trace
	saves    int
	statuses int
	posted   int

	lastRequest map[model.Kind]string
	remaps      []TraceEvent
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load the kind schemas and build a session over a fake remote
//  2. Insert seed rows
//  3. Execute steps in order, settling after each one
//  4. Return result with pass/fail, trace, and errors
//
// The returned error is for scenarios that cannot run at all; step failures
// and unmet expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	reg, err := loadSchema(scenario)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		remote:      testutil.NewFakeRemote(),
		clock:       testutil.NewManualClock(),
		result:      NewResult(),
		refs:        make(map[string]model.Identity),
		lastRequest: make(map[model.Kind]string),
	}
	if scenario.NextID > 0 {
		h.remote.SetNextID(scenario.NextID)
	}

	opts := []engine.SessionOption{
		engine.WithClock(h.clock),
		engine.WithIDGenerator(engine.FixedGenerator(sessionID)),
		engine.WithLogger(slog.New(slog.DiscardHandler)),
		engine.WithCallTimeout(callTimeout),
		engine.WithRemapHook(h.onRemap),
	}
	if scenario.Cooldown > 0 {
		opts = append(opts, engine.WithCooldown(scenario.Cooldown))
	}
	h.session = engine.NewSession(reg, h.remote, opts...)
	defer func() {
		h.remote.Release()
		h.session.Close()
	}()

	if err := h.seed(scenario.Seed); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	for i, st := range scenario.Steps {
		h.step = i + 1
		h.runStep(st)
	}
	return h.result, nil
}

func loadSchema(sc *Scenario) (*schema.Registry, error) {
	if sc.Schema == "" {
		return schema.Default()
	}
	dir := sc.Schema
	if !filepath.IsAbs(dir) && sc.dir != "" {
		dir = filepath.Join(sc.dir, dir)
	}
	return schema.Load(dir)
}

func (h *Harness) seed(rows []SeedRow) error {
	for _, row := range rows {
		kind := model.Kind(row.Kind)
		fields, err := h.parseFields(kind, row.Fields)
		if err != nil {
			return err
		}
		status, err := grid.ParseStatus(row.Status)
		if err != nil {
			return err
		}
		tbl, err := h.session.Table(kind)
		if err != nil {
			return err
		}
		id := model.MustPersisted(model.PersistedID(row.ID))
		if err := tbl.Insert(grid.Record{Identity: id, Fields: fields, Status: status}); err != nil {
			return err
		}
		if row.Ref != "" {
			h.refs[row.Ref] = id
		}
	}
	return nil
}

func (h *Harness) runStep(st Step) {
	if st.Expect != nil {
		h.result.add(h.step, EventStep, "expect")
		for _, msg := range h.check(st.Expect) {
			h.result.AddError(fmt.Sprintf("step %d: %s", h.step, msg))
		}
		return
	}

	before := h.session.Guard().State()
	desc, err := h.exec(st)
	h.result.add(h.step, EventStep, "%s", desc)

	switch {
	case err != nil && st.Error != "":
		code := errorCode(err)
		h.result.add(h.step, EventError, "%s", code)
		if code != st.Error {
			h.result.AddError(fmt.Sprintf("step %d: expected error %s, got %v", h.step, st.Error, err))
		}
	case err != nil:
		h.result.add(h.step, EventError, "%s", errorCode(err))
		h.result.AddError(fmt.Sprintf("step %d: %v", h.step, err))
	case st.Error != "":
		h.result.AddError(fmt.Sprintf("step %d: expected error %s, got none", h.step, st.Error))
	}

	if err := h.sync(before); err != nil {
		h.result.AddError(fmt.Sprintf("step %d: %v", h.step, err))
	}
	h.record()
}

// exec performs one step and returns its trace description.
func (h *Harness) exec(st Step) (string, error) {
	switch {
	case st.Add != nil:
		kind := model.Kind(st.Add.Kind)
		fields, err := h.parseFields(kind, st.Add.Fields)
		if err != nil {
			return "add " + st.Add.Ref, err
		}
		id, err := h.session.AddRow(kind, fields)
		if err != nil {
			return "add " + st.Add.Ref, err
		}
		h.refs[st.Add.Ref] = id
		return fmt.Sprintf("add %s %s %s", kind, st.Add.Ref, id), nil

	case st.Edit != nil:
		e := st.Edit
		desc := fmt.Sprintf("edit %s %s %s=%q", e.Kind, e.Row, e.Field, e.Value)
		id, err := h.resolve(e.Row)
		if err != nil {
			return desc, err
		}
		return desc, h.session.EditText(model.Kind(e.Kind), id, e.Field, e.Value)

	case st.Bulk != nil:
		b := st.Bulk
		kind := model.Kind(b.Kind)
		desc := fmt.Sprintf("bulk %s [%s] %s=%q", b.Kind, strings.Join(b.Rows, " "), b.Field, b.Value)
		ids, err := h.resolveAll(b.Rows)
		if err != nil {
			return desc, err
		}
		v, key, err := h.session.ParseCell(kind, b.Field, b.Value)
		if err != nil {
			return desc, err
		}
		return desc, h.session.BulkEdit(kind, ids, key, v)

	case st.Delete != nil:
		d := st.Delete
		desc := fmt.Sprintf("delete %s [%s]", d.Kind, strings.Join(d.Rows, " "))
		ids, err := h.resolveAll(d.Rows)
		if err != nil {
			return desc, err
		}
		return desc, h.session.Delete(model.Kind(d.Kind), ids...)

	case st.Status != nil:
		s := st.Status
		desc := fmt.Sprintf("status %s [%s] -> %s", s.Kind, strings.Join(s.Rows, " "), s.Bucket)
		ids, err := h.resolveAll(s.Rows)
		if err != nil {
			return desc, err
		}
		pids := make([]model.PersistedID, 0, len(ids))
		for _, id := range ids {
			if !id.IsPersisted() {
				return desc, fmt.Errorf("row %s is not persisted", id)
			}
			pids = append(pids, id.PersistedID())
		}
		return desc, h.session.ChangeStatus(model.Kind(s.Kind), pids, s.Bucket, nil)

	case st.Save != "":
		return "save " + st.Save, h.session.SaveNow(model.Kind(st.Save), nil)

	case st.Tick:
		kind, ok := h.session.Tick()
		if !ok {
			return "tick idle", nil
		}
		return "tick " + string(kind), nil

	case st.Advance != 0:
		h.clock.Advance(st.Advance)
		return "advance " + st.Advance.String(), nil

	case st.Hold:
		h.remote.Hold()
		h.held = true
		return "hold", nil

	case st.Release:
		h.remote.Release()
		h.held = false
		return "release", nil

	case st.Fail != "":
		h.remote.FailSave(st.Fail)
		return fmt.Sprintf("fail next save %q", st.Fail), nil
	}
	return "", errors.New("empty step")
}

// sync waits for whatever the step set in motion. With calls held it only
// waits for a newly started call to reach the remote.
func (h *Harness) sync(before engine.GuardState) error {
	if h.held {
		if before == engine.GuardIdle && h.session.Guard().State() == engine.GuardFlushing {
			select {
			case <-h.remote.Entered():
			case <-time.After(settleTimeout):
				return errors.New("remote call never started")
			}
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	if err := h.session.Settle(ctx); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	for {
		select {
		case <-h.remote.Entered():
		default:
			return nil
		}
	}
}

// record appends what happened since the last step: remote calls, remaps,
// then status messages.
func (h *Harness) record() {
	saves := h.remote.Saves()
	for _, req := range saves[h.saves:] {
		retry := h.lastRequest[req.Kind] == req.RequestID
		h.lastRequest[req.Kind] = req.RequestID
		h.result.add(h.step, EventCall, "%s", describeSave(req, retry))
	}
	h.saves = len(saves)

	statuses := h.remote.StatusRequests()
	for _, req := range statuses[h.statuses:] {
		h.result.add(h.step, EventCall, "status %s %v -> %s", req.Kind, req.IDs, req.Bucket)
	}
	h.statuses = len(statuses)

	for _, ev := range h.remaps {
		ev.Step = h.step
		h.result.Trace = append(h.result.Trace, ev)
	}
	h.remaps = h.remaps[:0]

	line := h.session.Status()
	posted := line.Posted()
	if n := posted - h.posted; n > 0 {
		history := line.History()
		if n > len(history) {
			n = len(history)
		}
		for _, m := range history[len(history)-n:] {
			h.result.add(h.step, EventStatus, "%s", m)
		}
	}
	h.posted = posted
}

func describeSave(req remote.SaveRequest, retry bool) string {
	added := make([]string, len(req.AddedRows))
	for i, r := range req.AddedRows {
		added[i] = strconv.FormatInt(r.TempID, 10)
	}
	updated := make([]string, len(req.UpdatedRows))
	for i, r := range req.UpdatedRows {
		updated[i] = fmt.Sprintf("%d:%s", r.ID, strings.Join(r.ChangedFields.Keys(), ","))
	}
	deleted := make([]string, len(req.DeletedIDs))
	for i, id := range req.DeletedIDs {
		deleted[i] = strconv.FormatInt(id, 10)
	}
	s := fmt.Sprintf("save %s added=[%s] updated=[%s] deleted=[%s]",
		req.Kind, strings.Join(added, " "), strings.Join(updated, " "), strings.Join(deleted, " "))
	if retry {
		s += " retry"
	}
	return s
}

// onRemap runs on the owner, inside Settle.
func (h *Harness) onRemap(kind model.Kind, tid model.TempID, pid model.PersistedID) {
	temp := model.MustTemp(tid)
	persisted := model.MustPersisted(pid)
	name := ""
	for ref, id := range h.refs {
		if id == temp {
			h.refs[ref] = persisted
			name = ref
		}
	}
	text := fmt.Sprintf("%s %s -> %s", kind, temp, persisted)
	if name != "" {
		text += " (" + name + ")"
	}
	h.remaps = append(h.remaps, TraceEvent{Kind: EventRemap, Text: text})
}

// resolve maps a ref name or a persisted id to an identity.
func (h *Harness) resolve(ref string) (model.Identity, error) {
	if id, ok := h.refs[ref]; ok {
		return id, nil
	}
	n, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || n <= 0 {
		return model.Identity{}, fmt.Errorf("unknown row ref %q", ref)
	}
	return model.MustPersisted(model.PersistedID(n)), nil
}

func (h *Harness) resolveAll(refs []string) ([]model.Identity, error) {
	ids := make([]model.Identity, 0, len(refs))
	for _, ref := range refs {
		id, err := h.resolve(ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Harness) parseFields(kind model.Kind, list FieldList) (model.Fields, error) {
	var fields model.Fields
	for _, fv := range list {
		v, key, err := h.session.ParseCell(kind, fv.Key, fv.Value)
		if err != nil {
			return model.Fields{}, err
		}
		fields.Set(key, v)
	}
	return fields, nil
}

// errorCode returns the SyncError code of err, or "ERROR".
func errorCode(err error) string {
	var se *engine.SyncError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return "ERROR"
}

// refNames returns the ref names in sorted order.
func (h *Harness) refNames() []string {
	names := make([]string, 0, len(h.refs))
	for name := range h.refs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
