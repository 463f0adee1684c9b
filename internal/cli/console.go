package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/roach88/gridsync/internal/engine"
	"github.com/roach88/gridsync/internal/model"
)

// errQuit ends a console session normally.
var errQuit = errors.New("quit")

const consoleHelp = `commands:
  add KIND [FIELD=VALUE ...]      add a row
  set KIND ID FIELD VALUE         edit one cell
  bulk KIND ID,ID,... FIELD VALUE edit the same cell on many rows
  del KIND ID ...                 delete rows
  save KIND                       save now
  complete KIND ID ...            move saved rows to the completed bucket
  show KIND                       print the grid
  pending [KIND]                  print unsaved change counts
  status                          print recent status messages
  quit                            leave the session`

// syncWriter serializes writes from the reader goroutine and from save
// callbacks on the owner.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// console executes text commands against a session. exec runs on the
// session owner.
type console struct {
	sess *engine.Session
	out  io.Writer
	// remapped lets users keep typing a temp id after its row was saved.
	remapped map[model.TempID]model.PersistedID
}

func newConsole(out io.Writer) *console {
	return &console{
		out:      &syncWriter{w: out},
		remapped: make(map[model.TempID]model.PersistedID),
	}
}

func (c *console) onRemap(kind model.Kind, tid model.TempID, pid model.PersistedID) {
	c.remapped[tid] = pid
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// exec runs one command line and returns what to print. errQuit ends the
// session.
func (c *console) exec(line string) (string, error) {
	args, err := splitArgs(line)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "quit", "exit":
		return "", errQuit
	case "help":
		return consoleHelp, nil
	case "status":
		return c.statusText(), nil
	case "pending":
		return c.pendingText(rest)
	}

	if len(rest) == 0 {
		return "", fmt.Errorf("%s: kind required", cmd)
	}
	kind, err := c.kind(rest[0])
	if err != nil {
		return "", err
	}
	rest = rest[1:]

	switch cmd {
	case "add":
		return c.add(kind, rest)
	case "set":
		if len(rest) < 2 {
			return "", errors.New("usage: set KIND ID FIELD VALUE")
		}
		id, err := c.identity(rest[0])
		if err != nil {
			return "", err
		}
		if err := c.sess.EditText(kind, id, rest[1], strings.Join(rest[2:], " ")); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s updated", kind, id), nil
	case "bulk":
		return c.bulk(kind, rest)
	case "del":
		ids, err := c.identities(rest)
		if err != nil {
			return "", err
		}
		if err := c.sess.Delete(kind, ids...); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d row(s) marked for deletion", len(ids)), nil
	case "save":
		if err := c.sess.SaveNow(kind, c.reportSave(kind)); err != nil {
			return "", err
		}
		return fmt.Sprintf("saving %s", kind), nil
	case "complete":
		return c.complete(kind, rest)
	case "show":
		return c.showText(kind)
	default:
		return "", fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

func (c *console) kind(s string) (model.Kind, error) {
	kind, err := model.ParseKind(s)
	if err != nil {
		return "", err
	}
	if !c.sess.Registry().Has(kind) {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return kind, nil
}

func (c *console) identity(s string) (model.Identity, error) {
	id, err := model.ParseIdentity(s)
	if err != nil {
		return model.Identity{}, err
	}
	if id.IsTemp() {
		if pid, ok := c.remapped[id.TempID()]; ok {
			return model.MustPersisted(pid), nil
		}
	}
	return id, nil
}

func (c *console) identities(args []string) ([]model.Identity, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one row id required")
	}
	var ids []model.Identity
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if part == "" {
				continue
			}
			id, err := c.identity(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *console) add(kind model.Kind, args []string) (string, error) {
	var fields model.Fields
	for _, a := range args {
		key, raw, ok := strings.Cut(a, "=")
		if !ok {
			return "", fmt.Errorf("expected FIELD=VALUE, got %q", a)
		}
		v, storage, err := c.sess.ParseCell(kind, key, raw)
		if err != nil {
			return "", err
		}
		fields.Set(storage, v)
	}
	id, err := c.sess.AddRow(kind, fields)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("added %s %s", kind, id), nil
}

func (c *console) bulk(kind model.Kind, args []string) (string, error) {
	if len(args) < 2 {
		return "", errors.New("usage: bulk KIND ID,ID,... FIELD VALUE")
	}
	ids, err := c.identities(args[:1])
	if err != nil {
		return "", err
	}
	v, storage, err := c.sess.ParseCell(kind, args[1], strings.Join(args[2:], " "))
	if err != nil {
		return "", err
	}
	if err := c.sess.BulkEdit(kind, ids, storage, v); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d row(s) updated", len(ids)), nil
}

func (c *console) complete(kind model.Kind, args []string) (string, error) {
	ids, err := c.identities(args)
	if err != nil {
		return "", err
	}
	pids := make([]model.PersistedID, 0, len(ids))
	for _, id := range ids {
		if !id.IsPersisted() {
			return "", fmt.Errorf("%s is not saved yet", id)
		}
		pids = append(pids, id.PersistedID())
	}
	err = c.sess.ChangeStatus(kind, pids, engine.BucketCompleted, func(res engine.ReconciliationResult) {
		if !res.OK() {
			c.printf("complete %s failed: %v", kind, res.Err())
			return
		}
		c.printf("%d %s row(s) completed", res.MovedCount, kind)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("completing %d row(s)", len(pids)), nil
}

func (c *console) reportSave(kind model.Kind) func(engine.ReconciliationResult) {
	return func(res engine.ReconciliationResult) {
		if !res.OK() {
			c.printf("save %s failed: %v", kind, res.Err())
			return
		}
		c.printf("saved %s: %d added, %d updated, %d deleted",
			kind, len(res.IDMap), res.UpdatedCount, res.DeletedCount)
	}
}

func (c *console) showText(kind model.Kind) (string, error) {
	tbl, err := c.sess.Table(kind)
	if err != nil {
		return "", err
	}
	sch, err := c.sess.Registry().Schema(kind)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	header := []string{"ID", "STATE", "STATUS"}
	for _, f := range sch.Fields {
		header = append(header, f.DisplayKey)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, id := range tbl.IDs() {
		rec, ok := tbl.Get(id)
		if !ok {
			continue
		}
		cols := []string{id.String(), rec.Visual.String(), rec.Status.String()}
		for _, f := range sch.Fields {
			cell := ""
			if v, ok := rec.Fields.Get(f.StorageKey); ok {
				cell = f.Format(v)
			}
			if _, dirty := rec.PendingCells[f.StorageKey]; dirty {
				cell += "*"
			}
			cols = append(cols, cell)
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (c *console) pendingText(args []string) (string, error) {
	kinds := c.sess.Registry().Kinds()
	if len(args) > 0 {
		kind, err := c.kind(args[0])
		if err != nil {
			return "", err
		}
		kinds = []model.Kind{kind}
	}
	p := c.sess.Pending()
	lines := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		lines = append(lines, fmt.Sprintf("%s: %d added, %d updated, %d deleted",
			kind, len(p.Added(kind)), len(p.Updated(kind)), len(p.Deleted(kind))))
	}
	return strings.Join(lines, "\n"), nil
}

func (c *console) statusText() string {
	lines := []string{"guard: " + c.sess.Guard().State().String()}
	for _, m := range c.sess.Status().History() {
		lines = append(lines, m.String())
	}
	return strings.Join(lines, "\n")
}

// splitArgs splits a command line on spaces. Double quotes group words and
// are removed.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
