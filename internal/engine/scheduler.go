package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/gridsync/internal/grid"
	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/pending"
)

// Scheduler defaults.
const (
	DefaultCooldown = 10 * time.Second
	DefaultInterval = 5 * time.Second
)

// FlushScheduler decides when to flush: on periodic ticks and on manual
// saves. A manual save opens a cooldown window during which ticks do
// nothing.
//
// OnTimerTick and ManualSave run on the owner; Run is the ticker goroutine
// that posts ticks onto the owner's queue.
type FlushScheduler struct {
	guard        *Guard
	pending      *pending.Store
	grid         *grid.Grid
	orchestrator *SaveOrchestrator
	reconciler   *Reconciler
	status       *StatusLine
	clock        Clock
	logger       *slog.Logger

	cooldown time.Duration
	interval time.Duration

	lastManualSave time.Time
	next           int // round-robin start over kinds
}

// OnTimerTick runs one periodic evaluation. It returns the kind it started
// a flush for, if any.
//
// Nothing happens while a flush is in flight or inside the cooldown window.
// Otherwise UI-only cleanup runs for every kind, and a flush starts for the
// first kind, round-robin, that has pending changes. One flush per tick
// keeps the single-flight rule; other kinds wait for the next tick.
func (s *FlushScheduler) OnTimerTick() (model.Kind, bool) {
	if s.guard.State() == GuardFlushing {
		return "", false
	}
	if s.inCooldown() {
		s.logger.Debug("tick skipped: cooldown", "last_manual_save", s.lastManualSave)
		return "", false
	}

	kinds := s.grid.Kinds()
	for _, k := range kinds {
		s.reconciler.CleanupUIOnly(k)
	}

	for i := range kinds {
		k := kinds[(s.next+i)%len(kinds)]
		if !s.pending.HasPendingChanges(k) {
			continue
		}
		if !s.guard.TryAcquire() {
			return "", false
		}
		s.next = (s.next + i + 1) % len(kinds)
		s.orchestrator.Flush(k, nil)
		return k, true
	}
	return "", false
}

func (s *FlushScheduler) inCooldown() bool {
	if s.lastManualSave.IsZero() {
		return false
	}
	return s.clock.Now().Sub(s.lastManualSave) < s.cooldown
}

// ManualSave flushes kind now. It returns a BUSY error, after showing it on
// the status line, if a flush is in flight. The cooldown starts when the
// save completes, whether it succeeded or not.
func (s *FlushScheduler) ManualSave(kind model.Kind, onDone func(ReconciliationResult)) error {
	if _, err := s.grid.Table(kind); err != nil {
		return unknownKindError(kind)
	}
	if !s.guard.TryAcquire() {
		s.status.Warn("busy: a save is already in progress")
		return NewBusyError(kind)
	}
	s.reconciler.CleanupUIOnly(kind)
	s.orchestrator.Flush(kind, func(res ReconciliationResult) {
		s.lastManualSave = s.clock.Now()
		if onDone != nil {
			onDone(res)
		}
	})
	return nil
}

// LastManualSave returns when the last manual save completed.
func (s *FlushScheduler) LastManualSave() time.Time { return s.lastManualSave }

// Run posts a tick every interval until ctx is done.
func (s *FlushScheduler) Run(ctx context.Context, post func(Event) bool) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("flush scheduler started", "interval", s.interval, "cooldown", s.cooldown)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !post(Event{Type: EventTypeTick}) {
				return nil
			}
		}
	}
}
