// Package history is the append-only record of every terminal download
// attempt. Rows are never rewritten; a retried item that eventually fails
// or succeeds appends a fresh row rather than mutating an old one.
package history

import (
	"fmt"
	"time"

	"github.com/fetchcite/fetchcite/internal/storage"
)

// Status values for HistoryEntry.Status.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ErrorType classifies a failed attempt for reporting purposes.
const (
	ErrorTypeNetwork    = "network"
	ErrorTypeAuth       = "auth"
	ErrorTypeNotFound   = "not_found"
	ErrorTypeParseError = "parse_error"
	ErrorTypeOther      = "other"
)

// History appends and reads terminal download attempts.
type History struct {
	store *storage.Store
}

// New wraps a storage.Store as a History log.
func New(store *storage.Store) *History {
	return &History{store: store}
}

// Entry mirrors storage.HistoryEntry without exposing the gorm model
// directly to callers that only need to append a record.
type Entry struct {
	URL           string
	FinalURL      string
	Status        string
	FilePath      string
	FileSize      int64
	ContentType   string
	Checksum      string
	StartedAt     time.Time
	CompletedAt   time.Time
	ErrorMessage  string
	ProjectTag    string
	ErrorType     string
	RetryCount    int
	LastRetryAt   time.Time
	OriginalInput string
	SourceType    string
}

// Append writes one terminal-attempt row. It never rewrites an existing
// row, regardless of how many prior attempts exist for the same item.
func (h *History) Append(e Entry) (uint64, error) {
	row := storage.HistoryEntry{
		URL:           e.URL,
		FinalURL:      e.FinalURL,
		Status:        e.Status,
		FilePath:      e.FilePath,
		FileSize:      e.FileSize,
		ContentType:   e.ContentType,
		Checksum:      e.Checksum,
		StartedAt:     e.StartedAt,
		CompletedAt:   e.CompletedAt,
		ErrorMessage:  e.ErrorMessage,
		ProjectTag:    e.ProjectTag,
		ErrorType:     e.ErrorType,
		RetryCount:    e.RetryCount,
		LastRetryAt:   e.LastRetryAt,
		OriginalInput: e.OriginalInput,
		SourceType:    e.SourceType,
	}
	if err := h.store.DB.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("history: append: %w", err)
	}
	return row.ID, nil
}

// Filter narrows ListAttempts to a subset of rows.
type Filter struct {
	Status     string
	URL        string
	ProjectTag string
	SinceID    uint64 // exclusive: only rows with id > SinceID
	Limit      int
	Offset     int
}

// ListAttempts returns history rows matching filter, newest first.
func (h *History) ListAttempts(f Filter) ([]storage.HistoryEntry, error) {
	q := h.store.DB.Model(&storage.HistoryEntry{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.URL != "" {
		q = q.Where("url = ?", f.URL)
	}
	if f.ProjectTag != "" {
		q = q.Where("project_tag = ?", f.ProjectTag)
	}
	if f.SinceID > 0 {
		q = q.Where("id > ?", f.SinceID)
	}
	q = q.Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []storage.HistoryEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: list_attempts: %w", err)
	}
	return rows, nil
}

// LatestAttemptID returns the largest history row id at the moment of
// call; downstream consumers (e.g. a per-project log writer) use it as a
// run-boundary watermark to avoid duplicating rows on reruns.
func (h *History) LatestAttemptID() (uint64, error) {
	var maxID uint64
	err := h.store.DB.Model(&storage.HistoryEntry{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error
	if err != nil {
		return 0, fmt.Errorf("history: latest_attempt_id: %w", err)
	}
	return maxID, nil
}
