// Package worker runs background jobs against the services.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"runepoints/models"
)

// DefaultSchedule checks for newly closed events once a minute
const DefaultSchedule = "@every 1m"

// ClosedEventAnnouncer is the part of the wagering service the watcher drives
type ClosedEventAnnouncer interface {
	AnnounceClosedEvents(ctx context.Context, from, to time.Time) ([]*models.BetEvent, error)
}

// DeadlineWatcher announces events whose deadline passed since the previous run.
// State is derived from the clock, so a missed run only delays the announcement.
type DeadlineWatcher struct {
	announcer ClosedEventAnnouncer
	now       func() time.Time
	cron      *cron.Cron
	baseCtx   context.Context

	mu      sync.Mutex
	lastRun time.Time
}

// Option configures a DeadlineWatcher
type Option func(*DeadlineWatcher)

// WithWindowStart sets where the first window begins. The zero time makes the
// first run announce every unresolved event already past its deadline, including
// ones that closed while the process was down. Events announced before a restart
// and still unresolved are announced again.
func WithWindowStart(start time.Time) Option {
	return func(w *DeadlineWatcher) {
		w.lastRun = start.UTC()
	}
}

// NewDeadlineWatcher creates a watcher whose first window starts now unless
// WithWindowStart says otherwise
func NewDeadlineWatcher(baseCtx context.Context, announcer ClosedEventAnnouncer, now func() time.Time, opts ...Option) *DeadlineWatcher {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if now == nil {
		now = time.Now
	}
	w := &DeadlineWatcher{
		announcer: announcer,
		now:       now,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		baseCtx:   baseCtx,
		lastRun:   now().UTC(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start schedules the check and begins running it
func (w *DeadlineWatcher) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := w.cron.AddFunc(schedule, func() { w.RunOnce(w.baseCtx) }); err != nil {
		return err
	}
	w.cron.Start()
	log.WithField("schedule", schedule).Info("Deadline watcher started")
	return nil
}

// Stop waits for a running check to finish
func (w *DeadlineWatcher) Stop() {
	<-w.cron.Stop().Done()
	log.Info("Deadline watcher stopped")
}

// RunOnce announces events that closed in (lastRun, now]. The window only
// advances when the announcement committed, so a failed run is retried next tick.
func (w *DeadlineWatcher) RunOnce(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UTC()
	closed, err := w.announcer.AnnounceClosedEvents(ctx, w.lastRun, now)
	if err != nil {
		log.WithFields(log.Fields{
			"from":  w.lastRun,
			"to":    now,
			"error": err,
		}).Error("Failed to announce closed events")
		return
	}

	if len(closed) > 0 {
		log.WithFields(log.Fields{
			"count": len(closed),
			"from":  w.lastRun,
			"to":    now,
		}).Info("Announced closed bet events")
	}
	w.lastRun = now
}
