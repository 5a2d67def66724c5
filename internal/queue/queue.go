// Package queue implements the durable work queue: the single source of
// truth for QueueItem status. Every mutation goes through these functions;
// nothing outside this package issues SQL against the queue table.
package queue

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fetchcite/fetchcite/internal/storage"
)

// Status values for QueueItem.Status.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrItemNotFound is returned when an operation targets a row that either
// does not exist or is not in the expected status for the transition.
var ErrItemNotFound = errors.New("queue: item not found")

// Metadata carries the free-form fields attached at enqueue time.
type Metadata struct {
	Title   string
	Authors string
	Year    string
	DOI     string
}

// Queue is the durable work queue backed by storage.Store.
type Queue struct {
	store *storage.Store
}

// New wraps a storage.Store as a Queue.
func New(store *storage.Store) *Queue {
	return &Queue{store: store}
}

// Enqueue inserts a new pending row. Duplicate URLs are permitted;
// deduplication is a caller concern.
func (q *Queue) Enqueue(url, sourceType, originalInput string, meta Metadata) (uint64, error) {
	now := time.Now().UTC()
	item := storage.QueueItem{
		OriginalInput: originalInput,
		SourceType:    sourceType,
		ResolvedURL:   url,
		Status:        StatusPending,
		Title:         meta.Title,
		Authors:       meta.Authors,
		Year:          meta.Year,
		DOI:           meta.DOI,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := q.store.DB.Create(&item).Error; err != nil {
		return 0, fmt.Errorf("queue: enqueue: %w", err)
	}
	return item.ID, nil
}

// Dequeue atomically claims the highest-priority pending item (tie-break
// oldest created_at first) and flips it to in_progress. Returns
// (nil, nil) when the queue has no pending work.
func (q *Queue) Dequeue() (*storage.QueueItem, error) {
	var claimed storage.QueueItem
	errLostRace := errors.New("queue: lost dequeue race")

	err := q.store.DB.Transaction(func(tx *gorm.DB) error {
		var candidate storage.QueueItem
		err := tx.
			Where("status = ?", StatusPending).
			Order("priority DESC, created_at ASC").
			Limit(1).
			Find(&candidate).Error
		if err != nil {
			return err
		}
		if candidate.ID == 0 {
			claimed = storage.QueueItem{}
			return nil
		}

		res := tx.Model(&storage.QueueItem{}).
			Where("id = ? AND status = ?", candidate.ID, StatusPending).
			Updates(map[string]any{
				"status":     StatusInProgress,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to another dequeuer; Dequeue tries again below.
			return errLostRace
		}
		return tx.First(&claimed, candidate.ID).Error
	})
	if errors.Is(err, errLostRace) {
		return q.Dequeue()
	}
	if err != nil {
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}
	if claimed.ID == 0 {
		return nil, nil
	}
	return &claimed, nil
}

// MarkCompleted transitions pending/in_progress -> completed.
func (q *Queue) MarkCompleted(id uint64, savedPath string, bytesDownloaded int64, contentType string) error {
	res := q.store.DB.Model(&storage.QueueItem{}).
		Where("id = ? AND status IN ?", id, []string{StatusPending, StatusInProgress}).
		Updates(map[string]any{
			"status":           StatusCompleted,
			"saved_path":       savedPath,
			"bytes_downloaded": bytesDownloaded,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("queue: mark_completed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// MarkFailed transitions in_progress -> failed, incrementing retry_count
// and recording the (already redacted) error message and classification.
func (q *Queue) MarkFailed(id uint64, errorMessage, errorType string) error {
	res := q.store.DB.Model(&storage.QueueItem{}).
		Where("id = ? AND status = ?", id, StatusInProgress).
		Updates(map[string]any{
			"status":      StatusFailed,
			"last_error":  errorMessage,
			"retry_count": gorm.Expr("retry_count + 1"),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("queue: mark_failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// UpdateProgress updates byte counters without changing status. Callers
// should throttle calls to this (e.g. at most every 300ms); it is not on
// the crash-recovery correctness path.
func (q *Queue) UpdateProgress(id uint64, bytesDownloaded, contentLength int64) error {
	res := q.store.DB.Model(&storage.QueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"bytes_downloaded": bytesDownloaded,
			"content_length":   contentLength,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("queue: update_progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// ResetInProgress bulk-transitions in_progress -> pending. Invoked once at
// engine startup to reclaim items left behind by a prior crash. retry_count
// is left untouched (the conservative choice).
func (q *Queue) ResetInProgress() (int, error) {
	res := q.store.DB.Model(&storage.QueueItem{}).
		Where("status = ?", StatusInProgress).
		Updates(map[string]any{
			"status":     StatusPending,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("queue: reset_in_progress: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ListByStatus returns all items currently in the given status.
func (q *Queue) ListByStatus(status string) ([]storage.QueueItem, error) {
	var items []storage.QueueItem
	if err := q.store.DB.Where("status = ?", status).Order("priority DESC, created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("queue: list_by_status: %w", err)
	}
	return items, nil
}

// Get fetches a single item by id.
func (q *Queue) Get(id uint64) (*storage.QueueItem, error) {
	var item storage.QueueItem
	err := q.store.DB.First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("queue: get: %w", err)
	}
	return &item, nil
}

// CountByStatus returns the number of rows currently in the given status.
func (q *Queue) CountByStatus(status string) (int64, error) {
	var count int64
	if err := q.store.DB.Model(&storage.QueueItem{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("queue: count_by_status: %w", err)
	}
	return count, nil
}

// GetInProgress returns all items currently claimed (in_progress).
func (q *Queue) GetInProgress() ([]storage.QueueItem, error) {
	return q.ListByStatus(StatusInProgress)
}

// LatestAttemptID returns the largest history row id at the moment of
// call; used by external callers as a run-boundary watermark.
func (q *Queue) LatestAttemptID() (uint64, error) {
	var maxID uint64
	err := q.store.DB.Model(&storage.HistoryEntry{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error
	if err != nil {
		return 0, fmt.Errorf("queue: latest_attempt_id: %w", err)
	}
	return maxID, nil
}
