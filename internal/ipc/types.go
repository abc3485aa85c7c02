package ipc

import (
	"encoding/json"

	"unspool/internal/logging"
)

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueItem is the transport representation of a queue entry.
type QueueItem struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title,omitempty"`
	Artist            string          `json:"artist,omitempty"`
	Album             string          `json:"album,omitempty"`
	SourcePath        string          `json:"sourcePath"`
	SourceFingerprint string          `json:"sourceFingerprint,omitempty"`
	Format            string          `json:"format,omitempty"`
	Status            string          `json:"status"`
	Disposition       string          `json:"disposition,omitempty"`
	Progress          QueueProgress   `json:"progress"`
	ErrorMessage      string          `json:"errorMessage"`
	CreatedAt         string          `json:"createdAt,omitempty"`
	UpdatedAt         string          `json:"updatedAt,omitempty"`
	DurationSecs      int64           `json:"durationSecs,omitempty"`
	StagedFile        string          `json:"stagedFile,omitempty"`
	FinalFile         string          `json:"finalFile,omitempty"`
	ContentHash       string          `json:"contentHash,omitempty"`
	NeedsReview       bool            `json:"needsReview"`
	ReviewReason      string          `json:"reviewReason,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	Warnings          json.RawMessage `json:"warnings,omitempty"`
}

// QueueProgress captures stage progress information for a queue entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// StageHealth describes readiness of a workflow stage.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	QueueStats    map[string]int `json:"queue_stats"`
	LastError     string         `json:"last_error"`
	LastItem      *QueueItem     `json:"last_item"`
	LockPath      string         `json:"lock_path"`
	QueueDBPath   string         `json:"queue_db_path"`
	StageHealth   []StageHealth  `json:"stage_health"`
	CatalogPath   string         `json:"catalog_path,omitempty"`
	CatalogTracks int            `json:"catalog_tracks"`
	InboxWatching bool           `json:"inbox_watching"`
	InboxDir      string         `json:"inbox_dir,omitempty"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Found bool      `json:"found"`
	Item  QueueItem `json:"item"`
}

// QueueAddRequest enqueues a container file by path.
type QueueAddRequest struct {
	Path string `json:"path"`
}

// QueueAddResponse returns the queued (or already-queued) item.
type QueueAddResponse struct {
	Item QueueItem `json:"item"`
}

// QueueClearRequest removes all items.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearFailedRequest removes failed items.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes completed items.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRemoveRequest removes specific items by ID.
type QueueRemoveRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRemoveResponse reports number of removed entries.
type QueueRemoveResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest resets in-flight items.
type QueueResetRequest struct{}

// QueueResetResponse reports number of items reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// QueueRetryRequest retries failed items. Empty list means all failed items.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried items.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Review     int `json:"review"`
	Completed  int `json:"completed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalItems       int      `json:"total_items"`
	Error            string   `json:"error"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// LogEvent mirrors the structured event published to the daemon log hub.
type LogEvent = logging.LogEvent

// LogEventsRequest fetches structured log events from the daemon hub.
type LogEventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Tail       bool   `json:"tail"`
	ItemID     int64  `json:"item_id,omitempty"`
	Component  string `json:"component,omitempty"`
}

// LogEventsResponse returns structured events and the next cursor.
type LogEventsResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// CatalogStatsRequest fetches duplicate catalog diagnostics.
type CatalogStatsRequest struct{}

// CatalogStatsResponse reports the catalog location and entry count.
type CatalogStatsResponse struct {
	Path   string `json:"path"`
	Tracks int    `json:"tracks"`
}

// CatalogRebuildRequest triggers a full library rescan.
type CatalogRebuildRequest struct{}

// CatalogRebuildResponse reports how many tracks the rescan indexed.
type CatalogRebuildResponse struct {
	Scanned int `json:"scanned"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
