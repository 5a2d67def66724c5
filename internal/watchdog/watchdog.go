// Package watchdog runs a periodic sweep that reclaims queue rows stuck
// in_progress, covering the case where a process dies between runs
// rather than being restarted immediately (the ordinary crash-recovery
// path lives in engine.ProcessQueue's own startup call).
package watchdog

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/fetchcite/fetchcite/internal/queue"
)

// Watchdog wraps a cron schedule that periodically reclaims in_progress
// rows older than a process's own lifetime would otherwise catch.
type Watchdog struct {
	cron   *cron.Cron
	queue  *queue.Queue
	logger *slog.Logger
}

// New builds a Watchdog; the schedule is given to Start.
func New(q *queue.Queue, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		cron:   cron.New(),
		queue:  q,
		logger: logger,
	}
}

// Start schedules the sweep and begins running it in the background.
// spec is a standard 5-field cron expression (e.g. "*/5 * * * *" for
// every five minutes) or a descriptor such as "@every 5m". Callers own
// the returned error; a malformed spec is a caller bug.
func (w *Watchdog) Start(spec string) error {
	_, err := w.cron.AddFunc(spec, w.sweep)
	if err != nil {
		return err
	}
	w.cron.Start()
	return nil
}

// Stop halts the schedule and waits for any in-flight sweep to finish.
func (w *Watchdog) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}

func (w *Watchdog) sweep() {
	count, err := w.queue.ResetInProgress()
	if err != nil {
		w.logger.Error("watchdog sweep failed", "error", err)
		return
	}
	if count > 0 {
		w.logger.Warn("watchdog reclaimed stuck in_progress rows", "count", count)
	}
}
