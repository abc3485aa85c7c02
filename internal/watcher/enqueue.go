package watcher

import (
	"context"

	"log/slog"

	"unspool/internal/fingerprint"
	"unspool/internal/logging"
	"unspool/internal/queue"
)

// handleStableFile fingerprints a settled candidate and routes it into the
// queue. It returns true when the file needs no further attention this
// session; false means the next poll should try again.
func (w *Watcher) handleStableFile(ctx context.Context, path string, logger *slog.Logger) bool {
	fp, err := fingerprint.Source(path)
	if err != nil {
		logger.Warn("source fingerprint failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldSourcePath, path),
			logging.String(logging.FieldEventType, "inbox_fingerprint_failed"),
		)
		return false
	}

	existing, err := w.store.FindBySourceFingerprint(ctx, fp)
	if err != nil {
		logger.Warn("queue lookup failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldSourcePath, path),
			logging.String(logging.FieldEventType, "queue_lookup_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return false
	}
	if existing != nil {
		return w.handleExisting(ctx, existing, path, logger)
	}

	// A non-terminal row for this path covers whatever bytes sit there
	// now; the unlock stage reads the file fresh. Only the stored
	// fingerprint needs refreshing.
	byPath, err := w.store.FindBySourcePath(ctx, path)
	if err != nil {
		logger.Warn("queue lookup failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldSourcePath, path),
			logging.String(logging.FieldEventType, "queue_lookup_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return false
	}
	if byPath != nil && !queue.IsTerminal(byPath.Status) {
		if byPath.SourceFingerprint != fp {
			byPath.SourceFingerprint = fp
			if err := w.store.Update(ctx, byPath); err != nil {
				logger.Warn("failed to refresh source fingerprint",
					logging.Error(err),
					logging.Int64(logging.FieldItemID, byPath.ID),
					logging.String(logging.FieldEventType, "queue_update_failed"),
				)
			}
		}
		logger.Debug("path already queued",
			logging.Int64(logging.FieldItemID, byPath.ID),
			logging.String(logging.FieldSourcePath, path),
		)
		return true
	}

	item, err := w.store.NewPending(ctx, path, fp)
	if err != nil {
		logger.Warn("enqueue failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldSourcePath, path),
			logging.String(logging.FieldEventType, "inbox_enqueue_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access and disk health"),
		)
		return false
	}
	logger.Info("queued inbox file",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldSourcePath, path),
		logging.String(logging.FieldEventType, "inbox_file_queued"),
	)
	return true
}

// handleExisting decides what a re-discovered fingerprint means. Failed
// items get another attempt; items in flight or already resolved are left
// alone. Review items stay put: they wait on an operator, and resetting
// them here would just bounce them back to review.
func (w *Watcher) handleExisting(ctx context.Context, existing *queue.Item, path string, logger *slog.Logger) bool {
	if existing.Status != queue.StatusFailed {
		logger.Debug("file already tracked",
			logging.Int64(logging.FieldItemID, existing.ID),
			logging.String("status", string(existing.Status)),
			logging.String(logging.FieldSourcePath, path),
		)
		return true
	}

	existing.Status = queue.StatusPending
	existing.SourcePath = path
	existing.ErrorMessage = ""
	existing.ProgressStage = "Awaiting identification"
	existing.ProgressPercent = 0
	existing.ProgressMessage = ""
	existing.NeedsReview = false
	existing.ReviewReason = ""
	if err := w.store.Update(ctx, existing); err != nil {
		logger.Warn("failed to reset failed item; will retry",
			logging.Error(err),
			logging.Int64(logging.FieldItemID, existing.ID),
			logging.String(logging.FieldEventType, "queue_update_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access and disk health"),
		)
		return false
	}
	logger.Info("requeued failed item",
		logging.Int64(logging.FieldItemID, existing.ID),
		logging.String(logging.FieldSourcePath, path),
		logging.String(logging.FieldEventType, "inbox_item_requeued"),
	)
	return true
}
