package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, source_path, source_fingerprint, format, title, artist, album, duration_secs, status, disposition, output_path, final_path, content_hash, metadata_json, warnings_json, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, last_heartbeat, needs_review, review_reason"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		sourcePath       sql.NullString
		sourceFP         sql.NullString
		format           sql.NullString
		title            sql.NullString
		artist           sql.NullString
		album            sql.NullString
		durationSecs     sql.NullInt64
		statusStr        string
		disposition      sql.NullString
		outputPath       sql.NullString
		finalPath        sql.NullString
		contentHash      sql.NullString
		metadata         sql.NullString
		warnings         sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
		needsReview      sql.NullInt64
		reviewReason     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&sourceFP,
		&format,
		&title,
		&artist,
		&album,
		&durationSecs,
		&statusStr,
		&disposition,
		&outputPath,
		&finalPath,
		&contentHash,
		&metadata,
		&warnings,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                id,
		SourcePath:        sourcePath.String,
		SourceFingerprint: sourceFP.String,
		Format:            format.String,
		Title:             title.String,
		Artist:            artist.String,
		Album:             album.String,
		DurationSecs:      durationSecs.Int64,
		Status:            Status(statusStr),
		Disposition:       Disposition(disposition.String),
		OutputPath:        outputPath.String,
		FinalPath:         finalPath.String,
		ContentHash:       contentHash.String,
		MetadataJSON:      metadata.String,
		WarningsJSON:      warnings.String,
		ErrorMessage:      errorMessage.String,
		ProgressStage:     progressStage.String,
		ProgressPercent:   progressPercent.Float64,
		ProgressMessage:   progressMessage.String,
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}
	item.ReviewReason = reviewReason.String

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
