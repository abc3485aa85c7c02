package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"unspool/internal/ipc"
	"unspool/internal/queue"
)

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildQueueListRows(items []ipc.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]ipc.QueueItem, len(items))
	copy(sorted, items)

	sort.Slice(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].CreatedAt)
		tj := parseQueueTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			queueItemTitle(item),
			formatFormatLabel(item.Format),
			formatStatusLabel(item.Status),
			formatDisplayTime(item.CreatedAt),
		})
	}
	return rows
}

func queueItemTitle(item ipc.QueueItem) string {
	title := strings.TrimSpace(item.Title)
	if artist := strings.TrimSpace(item.Artist); artist != "" && title != "" {
		return artist + " - " + title
	}
	if title != "" {
		return title
	}
	if source := strings.TrimSpace(item.SourcePath); source != "" {
		return filepath.Base(source)
	}
	return "Unknown"
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatFormatLabel(format string) string {
	format = strings.TrimSpace(format)
	if format == "" {
		return "-"
	}
	return strings.ToUpper(format)
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func statusIsRetryable(value string) bool {
	status, ok := queue.ParseStatus(value)
	return ok && status == queue.StatusFailed
}

func printItemDetail(out io.Writer, item *ipc.QueueItem) {
	fmt.Fprintf(out, "Item #%d\n", item.ID)
	fmt.Fprintf(out, "  Title: %s\n", queueItemTitle(*item))
	if album := strings.TrimSpace(item.Album); album != "" {
		fmt.Fprintf(out, "  Album: %s\n", album)
	}
	fmt.Fprintf(out, "  Source: %s\n", item.SourcePath)
	fmt.Fprintf(out, "  Format: %s\n", formatFormatLabel(item.Format))
	fmt.Fprintf(out, "  Status: %s\n", formatStatusLabel(item.Status))
	if disposition := strings.TrimSpace(item.Disposition); disposition != "" {
		fmt.Fprintf(out, "  Disposition: %s\n", formatStatusLabel(disposition))
	}
	if stage := strings.TrimSpace(item.Progress.Stage); stage != "" {
		progress := stage
		if item.Progress.Percent > 0 {
			progress = fmt.Sprintf("%s (%.0f%%)", stage, item.Progress.Percent)
		}
		if message := strings.TrimSpace(item.Progress.Message); message != "" {
			progress += " - " + message
		}
		fmt.Fprintf(out, "  Progress: %s\n", progress)
	}
	if item.DurationSecs > 0 {
		fmt.Fprintf(out, "  Duration: %s\n", (time.Duration(item.DurationSecs) * time.Second).String())
	}
	if staged := strings.TrimSpace(item.StagedFile); staged != "" {
		fmt.Fprintf(out, "  Staged file: %s\n", staged)
	}
	if final := strings.TrimSpace(item.FinalFile); final != "" {
		fmt.Fprintf(out, "  Final file: %s\n", final)
	}
	if hash := strings.TrimSpace(item.ContentHash); hash != "" {
		fmt.Fprintf(out, "  Content hash: %s\n", shortHash(hash))
	}
	if fingerprint := strings.TrimSpace(item.SourceFingerprint); fingerprint != "" {
		fmt.Fprintf(out, "  Source fingerprint: %s\n", shortHash(fingerprint))
	}
	if item.NeedsReview {
		reason := strings.TrimSpace(item.ReviewReason)
		if reason == "" {
			reason = "unspecified"
		}
		fmt.Fprintf(out, "  Needs review: %s\n", reason)
	}
	if errMsg := strings.TrimSpace(item.ErrorMessage); errMsg != "" {
		fmt.Fprintf(out, "  Error: %s\n", errMsg)
	}
	for _, warning := range decodeWarnings(item.Warnings) {
		fmt.Fprintf(out, "  Warning: %s\n", warning)
	}
	fmt.Fprintf(out, "  Created: %s\n", formatDisplayTime(item.CreatedAt))
	fmt.Fprintf(out, "  Updated: %s\n", formatDisplayTime(item.UpdatedAt))
}

func decodeWarnings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var warnings []string
	if err := json.Unmarshal(raw, &warnings); err != nil {
		return nil
	}
	return warnings
}

func shortHash(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 16 {
		return value[:16]
	}
	return value
}

func formatByteSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}
