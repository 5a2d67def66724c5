// Package engine drives process_queue: it dequeues ready work under a
// global concurrency cap, streams each item to disk, and applies the
// retry policy and per-domain rate limiter to every attempt.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/fetchcite/fetchcite/internal/bandwidth"
	"github.com/fetchcite/fetchcite/internal/history"
	"github.com/fetchcite/fetchcite/internal/integrity"
	"github.com/fetchcite/fetchcite/internal/metrics"
	"github.com/fetchcite/fetchcite/internal/queue"
	"github.com/fetchcite/fetchcite/internal/ratelimit"
	"github.com/fetchcite/fetchcite/internal/retrypolicy"
	"github.com/fetchcite/fetchcite/internal/storage"
)

const (
	progressThrottle = 300 * time.Millisecond
	readBufferSize   = 32 * 1024
)

// DownloadStats summarizes one process_queue run. Completed + Failed
// always equals the number of items dequeued during that run.
type DownloadStats struct {
	Completed int64
	Failed    int64
	Retried   int64
}

// statCounters holds the run's atomic counters; DownloadStats is the
// immutable snapshot handed back to the caller.
type statCounters struct {
	completed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

func (c *statCounters) snapshot() DownloadStats {
	return DownloadStats{
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
		Retried:   c.retried.Load(),
	}
}

// Engine holds everything a download task needs that is shared across
// every item in a run: the concurrency cap, retry policy, rate limiter,
// and HTTP client.
type Engine struct {
	Concurrency int
	RetryPolicy retrypolicy.Policy
	Limiter     *ratelimit.Limiter
	HTTPClient  *http.Client
	UserAgent   string
	Interrupt   *atomic.Bool
	Logger      *slog.Logger

	// Bandwidth caps aggregate bytes/sec across every in-flight transfer.
	// Nil means unthrottled; set after New returns.
	Bandwidth *bandwidth.Limiter

	// Metrics publishes the run's counters as Prometheus series. Nil
	// disables metrics entirely; set after New returns.
	Metrics *metrics.Collector
}

// New builds an Engine, clamping concurrency to the documented [1, 100]
// range.
func New(concurrency int, rp retrypolicy.Policy, limiter *ratelimit.Limiter, client *http.Client, userAgent string, logger *slog.Logger) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 100 {
		concurrency = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Concurrency: concurrency,
		RetryPolicy: rp,
		Limiter:     limiter,
		HTTPClient:  client,
		UserAgent:   userAgent,
		Interrupt:   &atomic.Bool{},
		Logger:      logger,
	}
}

// ProcessQueue recovers any items left in_progress by a prior crash,
// then drains the pending set under the global concurrency permit.
func (e *Engine) ProcessQueue(ctx context.Context, q *queue.Queue, hist *history.History, outputDir string) (DownloadStats, error) {
	runID := uuid.NewString()
	if reset, err := q.ResetInProgress(); err != nil {
		return DownloadStats{}, fmt.Errorf("engine: reset_in_progress: %w", err)
	} else if reset > 0 {
		e.Logger.Info("recovered in_progress rows from a prior run", "run_id", runID, "count", reset)
	}

	var stats statCounters
	permits := make(chan struct{}, e.Concurrency)
	var wg sync.WaitGroup

	for {
		item, err := q.Dequeue()
		if err != nil {
			e.Logger.Error("dequeue failed, stopping this run", "run_id", runID, "error", err)
			break
		}
		if item == nil {
			break
		}
		if e.Interrupt.Load() {
			e.cancelDequeuedItem(item, q, hist)
			stats.failed.Add(1)
			break
		}

		permits <- struct{}{}
		wg.Add(1)
		go func(item *storage.QueueItem) {
			defer wg.Done()
			defer func() { <-permits }()
			e.runItem(ctx, runID, item, q, hist, outputDir, &stats)
		}(item)
	}

	wg.Wait()
	result := stats.snapshot()
	e.Logger.Info("process_queue run complete", "run_id", runID, "completed", result.Completed, "failed", result.Failed, "retried", result.Retried)
	if e.Metrics != nil {
		e.observeQueueCounts(q)
	}
	return result, nil
}

// observeQueueCounts snapshots the queue's per-status counts into the
// metrics collector, the same counts controlapi's /queue/counts exposes.
func (e *Engine) observeQueueCounts(q *queue.Queue) {
	counts := map[string]int64{}
	for _, status := range []string{queue.StatusPending, queue.StatusInProgress, queue.StatusCompleted, queue.StatusFailed} {
		n, err := q.CountByStatus(status)
		if err != nil {
			e.Logger.Warn("observe_queue_counts failed", "status", status, "error", err)
			return
		}
		counts[status] = n
	}
	e.Metrics.ObserveQueueCounts(counts)
}

// cancelDequeuedItem handles an item that was already claimed when the
// interrupt flag was observed: it is recorded as cancelled rather than
// left in_progress, so reset_in_progress never has to special-case it.
func (e *Engine) cancelDequeuedItem(item *storage.QueueItem, q *queue.Queue, hist *history.History) {
	now := time.Now().UTC()
	if err := q.MarkFailed(item.ID, "cancelled before start", "cancelled"); err != nil {
		e.Logger.Warn("failed to record cancellation", "id", item.ID, "error", err)
	}
	if _, err := hist.Append(history.Entry{
		URL:           item.ResolvedURL,
		Status:        history.StatusCancelled,
		ErrorType:     "cancelled",
		StartedAt:     now,
		CompletedAt:   now,
		RetryCount:    item.RetryCount,
		OriginalInput: item.OriginalInput,
		SourceType:    item.SourceType,
	}); err != nil {
		e.Logger.Warn("failed to append cancellation history", "id", item.ID, "error", err)
	}
}

// runItem is the per-item task: acquire a rate-limit slot, attempt the
// stream, and on failure either back off and retry or give up for good.
func (e *Engine) runItem(ctx context.Context, runID string, item *storage.QueueItem, q *queue.Queue, hist *history.History, outputDir string, stats *statCounters) {
	domain := ratelimit.DomainOf(item.ResolvedURL)
	startedAt := time.Now().UTC()
	attempts := 0

	if e.Metrics != nil {
		e.Metrics.InFlight.Inc()
		defer e.Metrics.InFlight.Dec()
	}

	for {
		attempts++
		e.Limiter.Acquire(domain)

		lastUpdate := time.Now()
		onProgress := func(written, total int64) {
			if time.Since(lastUpdate) < progressThrottle {
				return
			}
			lastUpdate = time.Now()
			if err := q.UpdateProgress(item.ID, written, total); err != nil {
				e.Logger.Warn("update_progress failed", "id", item.ID, "error", err)
			}
		}

		path, written, contentType, finalURL, derr := e.streamToFile(ctx, item.ResolvedURL, outputDir, onProgress)

		if derr == nil {
			if err := q.MarkCompleted(item.ID, path, written, contentType); err != nil {
				e.Logger.Warn("mark_completed failed", "id", item.ID, "error", err)
			}
			stats.completed.Add(1)
			if e.Metrics != nil {
				e.Metrics.RecordCompleted(written)
			}
			checksum, err := integrity.Checksum(path)
			if err != nil {
				e.Logger.Warn("checksum failed", "id", item.ID, "error", err)
			}
			e.Logger.Info("download completed", "run_id", runID, "id", item.ID, "bytes", humanize.Bytes(uint64(written)), "path", path, "checksum", checksum)
			if _, err := hist.Append(history.Entry{
				URL:           item.ResolvedURL,
				FinalURL:      finalURL,
				Status:        history.StatusCompleted,
				FilePath:      path,
				FileSize:      written,
				ContentType:   contentType,
				Checksum:      checksum,
				StartedAt:     startedAt,
				CompletedAt:   time.Now().UTC(),
				RetryCount:    attempts - 1,
				OriginalInput: item.OriginalInput,
				SourceType:    item.SourceType,
			}); err != nil {
				e.Logger.Warn("history append failed", "id", item.ID, "error", err)
			}
			return
		}

		failureType := classify(derr)
		decision := e.RetryPolicy.ShouldRetry(failureType, attempts)
		if failureType == retrypolicy.RateLimited && derr.RetryAfter != "" {
			if delay, ok := retrypolicy.ParseRetryAfter(derr.RetryAfter, time.Now()); ok {
				e.Limiter.RecordRateLimit(domain, delay)
				decision = e.RetryPolicy.ShouldRetryAfter(failureType, attempts, delay)
				if e.Metrics != nil {
					e.Metrics.ObserveDomainDelay(domain, delay)
				}
			}
		}

		if decision.Retry {
			e.Logger.Info("retrying download", "attempt", attempts, "delay", decision.Delay, "url", redactURL(item.ResolvedURL))
			stats.retried.Add(1)
			if e.Metrics != nil {
				e.Metrics.RecordRetry()
			}
			time.Sleep(decision.Delay)
			continue
		}

		message := friendlyMessage(item.ResolvedURL, derr)
		errorType := historyErrorType(failureType, derr)
		if err := q.MarkFailed(item.ID, message, errorType); err != nil {
			e.Logger.Warn("mark_failed failed", "id", item.ID, "error", err)
		}
		stats.failed.Add(1)
		if e.Metrics != nil {
			e.Metrics.RecordFailed()
		}
		if _, err := hist.Append(history.Entry{
			URL:           item.ResolvedURL,
			FinalURL:      finalURL,
			Status:        history.StatusFailed,
			ErrorType:     errorType,
			ErrorMessage:  message,
			StartedAt:     startedAt,
			CompletedAt:   time.Now().UTC(),
			RetryCount:    attempts,
			OriginalInput: item.OriginalInput,
			SourceType:    item.SourceType,
		}); err != nil {
			e.Logger.Warn("history append failed", "id", item.ID, "error", err)
		}
		return
	}
}

// classify maps a DownloadError onto the shared failure taxonomy that
// retrypolicy decides against.
func classify(derr *DownloadError) retrypolicy.FailureType {
	switch derr.Kind {
	case ErrHTTPStatus:
		return retrypolicy.ClassifyHTTPStatus(derr.Status)
	case ErrDiskFull:
		return retrypolicy.Permanent
	default:
		return retrypolicy.ClassifyError(derr.Err)
	}
}

// historyErrorType narrows a FailureType (plus HTTP specifics) down to
// the coarser vocabulary recorded in history.ErrorType.
func historyErrorType(ft retrypolicy.FailureType, derr *DownloadError) string {
	if derr.Kind == ErrHTTPStatus && (derr.Status == http.StatusNotFound || derr.Status == http.StatusGone) {
		return history.ErrorTypeNotFound
	}
	switch ft {
	case retrypolicy.NeedsAuth:
		return history.ErrorTypeAuth
	case retrypolicy.Transient, retrypolicy.RateLimited:
		return history.ErrorTypeNetwork
	default:
		return history.ErrorTypeOther
	}
}
