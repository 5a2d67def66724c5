package storage

import "time"

// QueueItem is a unit of work tracked by the durable queue.
type QueueItem struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OriginalInput   string    `json:"original_input"`
	SourceType      string    `gorm:"index" json:"source_type"` // direct_url, doi, reference, bibtex
	ResolvedURL     string    `json:"resolved_url"`
	Status          string    `gorm:"index" json:"status"` // pending, in_progress, completed, failed
	Priority        int       `gorm:"index:idx_priority_created" json:"priority"`
	RetryCount      int       `gorm:"default:0" json:"retry_count"`
	LastError       string    `json:"last_error"`
	BytesDownloaded int64     `gorm:"default:0" json:"bytes_downloaded"`
	ContentLength   int64     `json:"content_length"`
	SavedPath       string    `json:"saved_path"`
	Title           string    `json:"title"`
	Authors         string    `json:"authors"`
	Year            string    `json:"year"`
	DOI             string    `json:"doi"`
	CreatedAt       time.Time `gorm:"index:idx_priority_created" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for QueueItem.
func (QueueItem) TableName() string {
	return "queue"
}

// HistoryEntry is one terminal attempt, appended once and never rewritten.
type HistoryEntry struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	URL           string    `json:"url"`
	FinalURL      string    `json:"final_url"`
	Status        string    `gorm:"index" json:"status"` // completed, failed, cancelled
	FilePath      string    `json:"file_path"`
	FileSize      int64     `json:"file_size"`
	ContentType   string    `json:"content_type"`
	Checksum      string    `json:"checksum"` // sha256 hex digest, empty for failed/cancelled rows
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	ErrorMessage  string    `json:"error_message"`
	ProjectTag    string    `gorm:"index" json:"project_tag"`
	ErrorType     string    `json:"error_type"` // network, auth, not_found, parse_error, other
	RetryCount    int       `json:"retry_count"`
	LastRetryAt   time.Time `json:"last_retry_at"`
	OriginalInput string    `json:"original_input"`
	SourceType    string    `json:"source_type"`
}

// TableName specifies the table name for HistoryEntry.
func (HistoryEntry) TableName() string {
	return "history"
}
