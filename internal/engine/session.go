package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/gridsync/internal/grid"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/pending"
	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/schema"
)

// BucketActive is the bucket an editing session works on.
const BucketActive = "active"

// Session is one editing session: the single owner of the grid, the pending
// store, and the temp id allocator, wired to the sync collaborators.
//
// Thread-safety model:
//   - Post and RunTicker: safe from any goroutine
//   - Run: must be called from exactly one goroutine, which becomes the owner
//   - every other method: owner only. Before Run starts (or in tests that
//     use Drain/Settle instead of Run) the calling goroutine is the owner;
//     once Run is running, reach the owner through Post.
type Session struct {
	id       string
	user     string
	registry *schema.Registry
	client   remote.Client
	clock    Clock
	logger   *slog.Logger

	grid    *grid.Grid
	pending *pending.Store
	alloc   *model.TempIDAllocator
	guard   *Guard
	status  *StatusLine
	queue   *eventQueue
	disp    *dispatcher

	router       *EditRouter
	reconciler   *Reconciler
	orchestrator *SaveOrchestrator
	scheduler    *FlushScheduler
	changer      *StatusChanger
}

type sessionConfig struct {
	logger   *slog.Logger
	clock    Clock
	ids      IDGenerator
	user     string
	cooldown time.Duration
	interval time.Duration
	timeout  time.Duration
	onRemap  func(model.Kind, model.TempID, model.PersistedID)
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

// WithLogger sets the session's logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) {
		c.logger = l
	}
}

// WithClock sets the clock used for cooldowns and status messages.
func WithClock(clock Clock) SessionOption {
	return func(c *sessionConfig) {
		c.clock = clock
	}
}

// WithIDGenerator sets the session id generator.
func WithIDGenerator(g IDGenerator) SessionOption {
	return func(c *sessionConfig) {
		c.ids = g
	}
}

// WithUser sets the user reported to the remote store.
func WithUser(user string) SessionOption {
	return func(c *sessionConfig) {
		c.user = user
	}
}

// WithCooldown sets the window after a manual save during which ticks are
// suppressed.
//
// Default: 10s (DefaultCooldown)
func WithCooldown(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.cooldown = d
	}
}

// WithInterval sets the tick interval used by RunTicker.
//
// Default: 5s (DefaultInterval)
func WithInterval(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.interval = d
	}
}

// WithCallTimeout bounds each remote call.
//
// Default: 20s (DefaultCallTimeout)
func WithCallTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithRemapHook registers fn to run on the owner each time a temp row is
// confirmed under its persisted id.
func WithRemapHook(fn func(kind model.Kind, tid model.TempID, pid model.PersistedID)) SessionOption {
	return func(c *sessionConfig) {
		c.onRemap = fn
	}
}

// NewSession creates a session with an empty table per kind in registry.
func NewSession(registry *schema.Registry, client remote.Client, opts ...SessionOption) *Session {
	cfg := sessionConfig{
		logger:   slog.Default(),
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		cooldown: DefaultCooldown,
		interval: DefaultInterval,
		timeout:  DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		id:       cfg.ids.Generate(),
		user:     cfg.user,
		registry: registry,
		client:   client,
		clock:    cfg.clock,
		grid:     grid.New(registry.Kinds()...),
		alloc:    model.NewTempIDAllocator(),
		guard:    &Guard{},
		status:   NewStatusLine(cfg.clock),
		queue:    newEventQueue(),
	}
	s.logger = cfg.logger.With("session", s.id)
	s.pending = pending.NewStore(pending.WithLogger(s.logger))
	s.disp = newDispatcher(s.queue, cfg.timeout, s.logger)

	wire := remote.Session{SessionID: s.id, User: s.user}
	s.router = NewEditRouter(s.pending, s.grid, s.alloc, s.logger)
	s.reconciler = &Reconciler{pending: s.pending, grid: s.grid, status: s.status, logger: s.logger, onRemap: cfg.onRemap}
	s.orchestrator = &SaveOrchestrator{
		pending:    s.pending,
		grid:       s.grid,
		client:     client,
		guard:      s.guard,
		reconciler: s.reconciler,
		disp:       s.disp,
		session:    wire,
		logger:     s.logger,
	}
	s.scheduler = &FlushScheduler{
		guard:        s.guard,
		pending:      s.pending,
		grid:         s.grid,
		orchestrator: s.orchestrator,
		reconciler:   s.reconciler,
		status:       s.status,
		clock:        s.clock,
		logger:       s.logger,
		cooldown:     cfg.cooldown,
		interval:     cfg.interval,
	}
	s.changer = &StatusChanger{
		pending: s.pending,
		grid:    s.grid,
		client:  client,
		guard:   s.guard,
		disp:    s.disp,
		status:  s.status,
		session: wire,
		logger:  s.logger,
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Registry returns the kind schemas.
func (s *Session) Registry() *schema.Registry { return s.registry }

// Grid returns the grid.
func (s *Session) Grid() *grid.Grid { return s.grid }

// Table returns the table of kind.
func (s *Session) Table(kind model.Kind) (*grid.Table, error) {
	tbl, err := s.grid.Table(kind)
	if err != nil {
		return nil, unknownKindError(kind)
	}
	return tbl, nil
}

// Pending returns the pending change store.
func (s *Session) Pending() *pending.Store { return s.pending }

// Status returns the status line.
func (s *Session) Status() *StatusLine { return s.status }

// Guard returns the flush guard.
func (s *Session) Guard() *Guard { return s.guard }

// Scheduler returns the flush scheduler.
func (s *Session) Scheduler() *FlushScheduler { return s.scheduler }

// Load replaces every table with the rows of the active bucket.
//
// Load blocks on the network and must run before editing starts; it refuses
// to run while anything is pending or in flight.
func (s *Session) Load(ctx context.Context) error {
	if s.guard.State() == GuardFlushing {
		return NewBusyError("")
	}
	for _, kind := range s.grid.Kinds() {
		if s.pending.HasPendingChanges(kind) {
			return &SyncError{Code: ErrCodePendingRows, Message: "unsaved changes; save before reloading", Kind: kind}
		}
	}

	for _, kind := range s.grid.Kinds() {
		sch, err := s.registry.Schema(kind)
		if err != nil {
			return unknownKindError(kind)
		}
		rows, err := s.client.Rows(ctx, kind, BucketActive)
		if err != nil {
			return fmt.Errorf("load %s rows: %w", kind, err)
		}
		recs := make([]grid.Record, 0, len(rows))
		for _, row := range rows {
			id, err := model.Persisted(model.PersistedID(row.ID))
			if err != nil {
				return fmt.Errorf("load %s rows: %w", kind, err)
			}
			fields, err := sch.DecodeFields(row.Fields)
			if err != nil {
				return fmt.Errorf("load %s row %d: %w", kind, row.ID, err)
			}
			status, err := grid.ParseStatus(row.Status)
			if err != nil {
				s.logger.Warn("unknown row status, shown as normal", "kind", kind, "id", row.ID, "status", row.Status)
			}
			recs = append(recs, grid.Record{Identity: id, Fields: fields, Status: status})
		}
		tbl, _ := s.grid.Table(kind)
		if err := tbl.Reset(recs); err != nil {
			return fmt.Errorf("load %s rows: %w", kind, err)
		}
		s.logger.Info("rows loaded", "kind", kind, "rows", len(recs))
	}
	s.status.Info("rows loaded")
	return nil
}

// AddRow inserts a new row under a fresh temp id.
func (s *Session) AddRow(kind model.Kind, fields model.Fields) (model.Identity, error) {
	fields, err := s.coerceFields(kind, fields)
	if err != nil {
		return model.Identity{}, err
	}
	return s.router.RouteAdd(kind, fields)
}

// Edit sets one cell. field may be a display or a storage key.
func (s *Session) Edit(kind model.Kind, id model.Identity, field string, v model.Value) error {
	key, v, err := s.coerce(kind, field, v)
	if err != nil {
		return err
	}
	return s.router.Route(kind, id, key, v)
}

// EditText parses raw with the field's schema type and sets the cell.
func (s *Session) EditText(kind model.Kind, id model.Identity, field, raw string) error {
	v, key, err := s.ParseCell(kind, field, raw)
	if err != nil {
		return err
	}
	return s.router.Route(kind, id, key, v)
}

// BulkEdit sets the same cell on many rows, each through the single-row path.
func (s *Session) BulkEdit(kind model.Kind, ids []model.Identity, field string, v model.Value) error {
	key, v, err := s.coerce(kind, field, v)
	if err != nil {
		return err
	}
	return s.router.RouteBulk(kind, ids, key, v)
}

// Delete marks rows for deletion.
func (s *Session) Delete(kind model.Kind, ids ...model.Identity) error {
	return s.router.RouteDelete(kind, ids)
}

// SaveNow is a manual save of kind. onDone, if set, runs on the owner once
// the result has been applied.
func (s *Session) SaveNow(kind model.Kind, onDone func(ReconciliationResult)) error {
	return s.scheduler.ManualSave(kind, onDone)
}

// ChangeStatus moves persisted rows into bucket.
func (s *Session) ChangeStatus(kind model.Kind, ids []model.PersistedID, bucket string, onDone func(ReconciliationResult)) error {
	return s.changer.ChangeStatus(kind, ids, bucket, onDone)
}

// Tick runs one scheduler evaluation on the owner.
func (s *Session) Tick() (model.Kind, bool) {
	return s.scheduler.OnTimerTick()
}

// ParseCell resolves field against kind's schema and parses raw. It returns
// the value and the storage key.
func (s *Session) ParseCell(kind model.Kind, field, raw string) (model.Value, string, error) {
	sch, err := s.registry.Schema(kind)
	if err != nil {
		return nil, "", unknownKindError(kind)
	}
	f, err := sch.Resolve(field)
	if err != nil {
		return nil, "", &SyncError{Code: ErrCodeInvalidValue, Message: err.Error(), Kind: kind}
	}
	v, err := f.Parse(raw)
	if err != nil {
		return nil, "", &SyncError{Code: ErrCodeInvalidValue, Message: err.Error(), Kind: kind}
	}
	return v, f.StorageKey, nil
}

func (s *Session) coerce(kind model.Kind, field string, v model.Value) (string, model.Value, error) {
	sch, err := s.registry.Schema(kind)
	if err != nil {
		return "", nil, unknownKindError(kind)
	}
	f, err := sch.Resolve(field)
	if err != nil {
		return "", nil, &SyncError{Code: ErrCodeInvalidValue, Message: err.Error(), Kind: kind}
	}
	cv, err := f.Coerce(v)
	if err != nil {
		return "", nil, &SyncError{Code: ErrCodeInvalidValue, Message: err.Error(), Kind: kind}
	}
	return f.StorageKey, cv, nil
}

func (s *Session) coerceFields(kind model.Kind, in model.Fields) (model.Fields, error) {
	var out model.Fields
	for _, k := range in.Keys() {
		v, _ := in.Get(k)
		key, cv, err := s.coerce(kind, k, v)
		if err != nil {
			return model.Fields{}, err
		}
		out.Set(key, cv)
	}
	return out, nil
}

// Post schedules fn on the owner. Safe from any goroutine. Returns false if
// the session is closed.
func (s *Session) Post(fn func()) bool {
	return s.queue.Enqueue(Event{Type: EventTypeTask, Task: fn})
}

// Run makes the calling goroutine the owner and processes events until ctx
// is done or the session is closed.
func (s *Session) Run(ctx context.Context) error {
	s.disp.ctx = ctx
	s.logger.Info("session starting", "user", s.user, "kinds", s.grid.Kinds())

	for {
		if ev, ok := s.queue.TryDequeue(); ok {
			s.process(ev)
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("session stopping: context cancelled")
			return ctx.Err()

		case <-s.queue.Wait():
			// The signal channel is closed with the queue, so this also fires
			// on Close.
			if s.queue.Len() == 0 && s.queue.Closed() {
				s.logger.Info("session stopping: queue closed")
				return nil
			}
		}
	}
}

// RunTicker posts scheduler ticks onto the owner queue until ctx is done.
func (s *Session) RunTicker(ctx context.Context) error {
	return s.scheduler.Run(ctx, s.queue.Enqueue)
}

// Drain processes every queued event on the calling goroutine and returns
// how many it processed.
func (s *Session) Drain() int {
	n := 0
	for {
		ev, ok := s.queue.TryDequeue()
		if !ok {
			return n
		}
		s.process(ev)
		n++
	}
}

// Settle drains events until no worker is running and the queue is empty.
func (s *Session) Settle(ctx context.Context) error {
	for {
		s.Drain()
		if s.disp.idle() && s.queue.Len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.Wait():
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close stops accepting events and waits for running workers to finish.
// Their results are dropped.
func (s *Session) Close() {
	s.queue.Close()
	s.disp.wait()
}

// process runs one event.
// CRITICAL: called only from the owner.
func (s *Session) process(ev Event) {
	switch ev.Type {
	case EventTypeTask:
		if ev.Task != nil {
			ev.Task()
		}
	case EventTypeTick:
		s.scheduler.OnTimerTick()
	case EventTypeCompletion:
		s.logger.Debug("applying result", "op", ev.Op, "kind", ev.Kind, "status", ev.Result.Status)
		if ev.apply != nil {
			ev.apply(ev.Result)
		}
	default:
		s.logger.Error("unknown event type", "type", ev.Type)
	}
}
