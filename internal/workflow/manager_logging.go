package workflow

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"unspool/internal/logging"
	"unspool/internal/queue"
	"unspool/internal/services"
)

func (m *Manager) runnerLogger() *slog.Logger {
	return logging.NewComponentLogger(m.logger, "workflow-runner")
}

// stageLogger binds the stage context fields onto the runner logger
// and applies any per-stage level override from configuration.
func (m *Manager) stageLogger(ctx context.Context, runnerLogger *slog.Logger) *slog.Logger {
	base := runnerLogger
	if base == nil {
		base = m.logger
	}
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(ctx, base)

	if m.cfg == nil {
		return logger
	}
	stageName, ok := services.StageFromContext(ctx)
	if !ok {
		return logger
	}
	if level, ok := stageOverrideLevel(m.cfg.Logging.StageOverrides, stageName); ok {
		logger = logging.WithLevelOverride(logger, level)
	}
	return logger
}

// stageOverrideLevel looks up a configured level override for a stage.
// Stage names compare case-insensitively with surrounding space ignored.
func stageOverrideLevel(overrides map[string]string, stageName string) (slog.Level, bool) {
	stageName = strings.ToLower(strings.TrimSpace(stageName))
	if stageName == "" {
		return 0, false
	}
	for key, value := range overrides {
		if strings.ToLower(strings.TrimSpace(key)) == stageName {
			return parseStageLevel(value), true
		}
	}
	return 0, false
}

func parseStageLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// withStageContext threads the item, stage, and request identifiers
// through the context so loggers and error reports can recover them.
func withStageContext(ctx context.Context, stageName string, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item != nil {
		ctx = services.WithItemID(ctx, item.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

var stageLabelCaser = cases.Title(language.Und)

// deriveStageLabel turns a status like "pending_unlock" into a display
// label like "Pending Unlock".
func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	return stageLabelCaser.String(strings.ReplaceAll(string(status), "_", " "))
}
