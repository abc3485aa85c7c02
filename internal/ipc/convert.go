package ipc

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"unspool/internal/queue"
	"unspool/internal/stage"
)

const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders a timestamp in the wire format used across responses.
// Zero times render as an empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromQueueItem converts a queue item into its transport representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	converted := QueueItem{
		ID:                item.ID,
		Title:             item.Title,
		Artist:            item.Artist,
		Album:             item.Album,
		SourcePath:        item.SourcePath,
		SourceFingerprint: item.SourceFingerprint,
		Format:            item.Format,
		Status:            string(item.Status),
		Disposition:       string(item.Disposition),
		Progress: QueueProgress{
			Stage:   item.ProgressStage,
			Percent: item.ProgressPercent,
			Message: item.ProgressMessage,
		},
		ErrorMessage: item.ErrorMessage,
		CreatedAt:    FormatTime(item.CreatedAt),
		UpdatedAt:    FormatTime(item.UpdatedAt),
		DurationSecs: item.DurationSecs,
		StagedFile:   item.OutputPath,
		FinalFile:    item.FinalPath,
		ContentHash:  item.ContentHash,
		NeedsReview:  item.NeedsReview,
		ReviewReason: item.ReviewReason,
	}
	if trimmed := strings.TrimSpace(item.MetadataJSON); trimmed != "" {
		converted.Metadata = json.RawMessage(trimmed)
	}
	if trimmed := strings.TrimSpace(item.WarningsJSON); trimmed != "" {
		converted.Warnings = json.RawMessage(trimmed)
	}
	return converted
}

// FromQueueItems converts a slice of queue items.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	converted := make([]QueueItem, 0, len(items))
	for _, item := range items {
		converted = append(converted, FromQueueItem(item))
	}
	return converted
}

// MergeQueueStats flattens typed status counts into string keys for transport.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	if len(stats) == 0 {
		return map[string]int{}
	}
	merged := make(map[string]int, len(stats))
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// StageHealthSlice converts stage health data into a name-sorted slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)
	converted := make([]StageHealth, 0, len(names))
	for _, name := range names {
		entry := health[name]
		converted = append(converted, StageHealth{
			Name:   entry.Name,
			Ready:  entry.Ready,
			Detail: entry.Detail,
		})
	}
	return converted
}
