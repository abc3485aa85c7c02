package ingestor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"unspool/internal/audio"
	"unspool/internal/catalog"
	"unspool/internal/config"
	"unspool/internal/container"
	"unspool/internal/dedup"
	"unspool/internal/logging"
	"unspool/internal/notifications"
	"unspool/internal/pipeline"
	"unspool/internal/queue"
	"unspool/internal/services"
	"unspool/internal/stage"
)

// Ingestor classifies an unlocked track against the library catalog and
// moves it into its final home.
type Ingestor struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	engine   *pipeline.Engine
	notifier notifications.Service
}

// NewIngestor constructs the ingest stage handler using default dependencies.
func NewIngestor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Ingestor {
	engine := pipeline.New(cfg, catalog.Open(cfg.Dedup.CatalogPath, logger), logger, pipeline.Options{})
	return NewIngestorWithDependencies(cfg, store, logger, engine, notifications.NewService(cfg))
}

// NewIngestorWithDependencies allows injecting collaborators (used in tests
// and by the daemon, which shares one engine across stages).
func NewIngestorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, engine *pipeline.Engine, notifier notifications.Service) *Ingestor {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "ingestor"))
	}
	return &Ingestor{store: store, cfg: cfg, logger: stageLogger, engine: engine, notifier: notifier}
}

func (g *Ingestor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, g.logger)
	if item.ProgressStage == "" {
		item.ProgressStage = "Ingesting"
	}
	item.ProgressMessage = "Preparing library placement"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info(
		"starting ingest",
		logging.String(logging.FieldSourcePath, strings.TrimSpace(item.SourcePath)),
		logging.String("staged_path", strings.TrimSpace(item.OutputPath)),
	)
	return nil
}

func (g *Ingestor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, g.logger)
	env, err := stage.ParseTrackSpec(item.MetadataJSON)
	if err != nil {
		return err
	}
	if err := stage.RequireUnlocked(env, "ingesting"); err != nil {
		return err
	}
	if _, err := os.Stat(env.StagedPath); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"ingesting",
			"locate staged track",
			"Staged track is missing; rerun unlock",
			err,
		)
	}

	unlocked := &pipeline.Unlocked{
		Source:   item.SourcePath,
		Format:   container.Format(env.Format),
		Codec:    audio.Codec(env.Codec),
		Staged:   env.StagedPath,
		Hash:     env.ContentHash,
		MetaKey:  env.MetaKey,
		Title:    env.Title,
		Artists:  append([]string(nil), env.Artists...),
		Album:    env.Album,
		Duration: env.Duration(),
		Size:     env.SizeBytes,
	}

	g.updateProgress(ctx, item, "Classifying against library catalog", 20)
	placement, err := g.engine.Place(unlocked, g.engine.Detector())
	if err != nil {
		return services.Wrap(services.ErrTransient, "ingesting", "place track", "Failed to move track into place", err)
	}
	env.StagedPath = ""
	for _, w := range placement.Warnings {
		env.AddWarning(string(w.Stage), w.Message)
	}
	item.FinalPath = placement.Output
	item.OutputPath = placement.Output

	switch placement.Match.Outcome {
	case dedup.OutcomeDuplicate:
		item.Disposition = queue.DispositionDuplicate
		item.ProgressMessage = fmt.Sprintf("Duplicate routed to %s", filepath.Base(placement.Output))
		g.notifyMatch(ctx, notifications.EventDuplicate, item, placement.Match)
		logger.Info(
			"duplicate routed",
			logging.String(logging.FieldDisposition, string(item.Disposition)),
			logging.String("existing_path", placement.Match.Path),
			logging.String("output", placement.Output),
		)
	case dedup.OutcomeConflict:
		item.Disposition = queue.DispositionConflict
		item.NeedsReview = true
		item.ReviewReason = conflictReason(placement.Match)
		item.ProgressStage = "Needs review"
		item.ProgressMessage = fmt.Sprintf("Conflict routed to %s", filepath.Base(placement.Output))
		g.notifyMatch(ctx, notifications.EventConflict, item, placement.Match)
		logger.Info(
			"conflict routed",
			logging.String(logging.FieldDisposition, string(item.Disposition)),
			logging.String("existing_path", placement.Match.Path),
			logging.String("output", placement.Output),
		)
	default:
		item.Disposition = queue.DispositionAdded
		g.updateProgress(ctx, item, "Recording in library catalog", 80)
		if err := g.engine.AppendCatalog(unlocked.CatalogEntry(placement.Output)); err != nil {
			return services.Wrap(
				services.ErrTransient,
				"ingesting",
				"record catalog entry",
				fmt.Sprintf("Track placed at %s but not indexed; run a catalog rebuild", placement.Output),
				err,
			)
		}
		item.ProgressMessage = fmt.Sprintf("Added to library: %s", filepath.Base(placement.Output))
		logger.Info(
			"track added to library",
			logging.String(logging.FieldDisposition, string(item.Disposition)),
			logging.String("output", placement.Output),
		)
	}

	encoded, err := env.Encode()
	if err != nil {
		return services.Wrap(services.ErrTransient, "ingesting", "encode track envelope", "Failed to encode track envelope", err)
	}
	item.MetadataJSON = encoded
	item.WarningsJSON = stage.EncodeWarnings(env)
	return nil
}

// HealthCheck verifies ingest prerequisites such as library destinations.
func (g *Ingestor) HealthCheck(ctx context.Context) stage.Health {
	const name = "ingestor"
	if g.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(g.cfg.Paths.LibraryDir) == "" {
		return stage.Unhealthy(name, "library directory not configured")
	}
	if strings.TrimSpace(g.cfg.Paths.DuplicatesDir) == "" {
		return stage.Unhealthy(name, "duplicates directory not configured")
	}
	if g.engine == nil {
		return stage.Unhealthy(name, "pipeline engine unavailable")
	}
	return stage.Healthy(name)
}

func (g *Ingestor) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, g.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := g.store.UpdateProgress(ctx, &copy); err != nil {
		logger.Warn("failed to persist ingest progress", logging.Error(err))
		return
	}
	*item = copy
}

func (g *Ingestor) notifyMatch(ctx context.Context, event notifications.Event, item *queue.Item, match dedup.Match) {
	if g.notifier == nil {
		return
	}
	logger := logging.WithContext(ctx, g.logger)
	if err := g.notifier.Publish(ctx, event, notifications.Payload{
		"track":    item.DisplayTitle(),
		"existing": match.Path,
	}); err != nil {
		logger.Warn("match notification failed", logging.Error(err))
	}
}

func conflictReason(match dedup.Match) string {
	if strings.TrimSpace(match.Path) == "" {
		return "Metadata matches an existing library track"
	}
	return fmt.Sprintf("Metadata matches existing library track: %s", match.Path)
}
