package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// stageRestartCase maps each in-flight status back to the status that
// re-enters its stage from the top. Items interrupted mid-stage lose
// partial work but never their queue position.
const stageRestartCase = `CASE status
    WHEN ? THEN ?
    WHEN ? THEN ?
    WHEN ? THEN ?
    ELSE status
END`

func stageRestartArgs() []any {
	return []any{
		StatusIdentifying, StatusPending,
		StatusUnlocking, StatusIdentified,
		StatusIngesting, StatusUnlocked,
	}
}

func rfc3339Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// restartInFlight rewinds every in-flight item matching extraWhere to
// the start of its current stage and clears its progress fields.
func (s *Store) restartInFlight(ctx context.Context, label, extraWhere string, extraArgs ...any) (int64, error) {
	query := `UPDATE queue_items
        SET status = ` + stageRestartCase + `,
            progress_stage = ?, progress_percent = 0,
            progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?, ?)` + extraWhere

	args := stageRestartArgs()
	args = append(args, label, rfc3339Now())
	args = append(args, StatusIdentifying, StatusUnlocking, StatusIngesting)
	args = append(args, extraArgs...)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetStuckProcessing rewinds all in-flight items. Called once at
// daemon startup, before any worker runs, to recover from a crash.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	n, err := s.restartInFlight(ctx, "Reset from stuck processing", "")
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return n, nil
}

// ReclaimStaleProcessing rewinds in-flight items whose heartbeat is
// older than cutoff, returning them to the pool for another worker.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.restartInFlight(ctx,
		"Reclaimed from stale processing",
		" AND last_heartbeat IS NOT NULL AND last_heartbeat < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return n, nil
}

// UpdateHeartbeat records liveness for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := rfc3339Now()
	err := s.execWithoutResultRetry(ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// RetryFailed moves failed items back to pending. With no ids it
// retries every failed item; otherwise only the named ones, and only
// those that are actually failed.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	var where string
	args := []any{StatusPending, rfc3339Now()}
	if len(ids) == 0 {
		where = `status = ?`
		args = append(args, StatusFailed)
	} else {
		where = `id IN (` + makePlaceholders(len(ids)) + `) AND status = ?`
		for _, id := range ids {
			args = append(args, id)
		}
		args = append(args, StatusFailed)
	}

	res, err := s.execWithRetry(ctx, `UPDATE queue_items
        SET status = ?, disposition = NULL, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, updated_at = ?
        WHERE `+where, args...)
	if err != nil {
		scope := "failed"
		if len(ids) > 0 {
			scope = "selected"
		}
		return 0, fmt.Errorf("retry %s items: %w", scope, err)
	}
	return res.RowsAffected()
}

// MarkReview flags an item for manual attention without losing its progress.
func (s *Store) MarkReview(ctx context.Context, id int64, reason string) error {
	err := s.execWithoutResultRetry(ctx,
		`UPDATE queue_items
         SET status = ?, needs_review = 1, review_reason = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ?`,
		StatusReview, strings.TrimSpace(reason), rfc3339Now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark review: %w", err)
	}
	return nil
}
