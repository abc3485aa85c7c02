package identification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"unspool/internal/catalog"
	"unspool/internal/cipher"
	"unspool/internal/config"
	"unspool/internal/container"
	"unspool/internal/fingerprint"
	"unspool/internal/logging"
	"unspool/internal/pipeline"
	"unspool/internal/queue"
	"unspool/internal/services"
	"unspool/internal/stage"
)

// Identifier reads container headers to describe queued files before any
// decryption happens.
type Identifier struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	engine *pipeline.Engine
}

// NewIdentifier constructs the identification stage handler using default dependencies.
func NewIdentifier(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Identifier {
	engine := pipeline.New(cfg, catalog.Open(cfg.Dedup.CatalogPath, logger), logger, pipeline.Options{})
	return NewIdentifierWithDependencies(cfg, store, logger, engine)
}

// NewIdentifierWithDependencies allows injecting collaborators (used in tests
// and by the daemon, which shares one engine across stages).
func NewIdentifierWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, engine *pipeline.Engine) *Identifier {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "identifier"))
	}
	return &Identifier{store: store, cfg: cfg, logger: stageLogger, engine: engine}
}

func (i *Identifier) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	if item.ProgressStage == "" {
		item.ProgressStage = "Identifying"
	}
	item.ProgressMessage = "Reading container header"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info("starting identification", logging.String(logging.FieldSourcePath, strings.TrimSpace(item.SourcePath)))
	return nil
}

func (i *Identifier) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	if strings.TrimSpace(item.SourcePath) == "" {
		return services.Wrap(
			services.ErrValidation,
			"identifying",
			"validate inputs",
			"Queue item has no source path; remove it and re-drop the file into the inbox",
			nil,
		)
	}

	ident, err := i.engine.Identify(ctx, item.SourcePath)
	if err != nil {
		return wrapIdentifyError(err)
	}

	env, err := stage.ParseTrackSpec(item.MetadataJSON)
	if err != nil {
		return err
	}
	env.Format = string(ident.Format)
	if meta := ident.Metadata; meta != nil {
		env.Title = meta.Title
		env.Artists = append([]string(nil), meta.Artists...)
		env.Album = meta.Album
		env.DurationMS = meta.DurationMS
	}
	for _, w := range ident.Warnings {
		env.AddWarning(string(w.Stage), w.Message)
	}
	encoded, err := env.Encode()
	if err != nil {
		return services.Wrap(services.ErrTransient, "identifying", "encode track envelope", "Failed to encode track envelope", err)
	}
	item.MetadataJSON = encoded
	item.Format = string(ident.Format)
	item.Title = env.Title
	item.Artist = env.ArtistLine()
	item.Album = env.Album
	item.DurationSecs = fingerprint.RoundSeconds(env.Duration())

	i.updateProgress(ctx, item, "Identification completed", 100)
	item.ProgressMessage = identificationSummary(item, ident.Format)
	logger.Info(
		"identification completed",
		logging.String(logging.FieldFormat, string(ident.Format)),
		logging.String("title", strings.TrimSpace(item.Title)),
		logging.String("artist", strings.TrimSpace(item.Artist)),
		logging.String("metadata", metadataPresence(ident.Metadata)),
		logging.Int("warnings", len(ident.Warnings)),
	)
	return nil
}

// HealthCheck verifies identification prerequisites.
func (i *Identifier) HealthCheck(ctx context.Context) stage.Health {
	const name = "identifier"
	if i.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(i.cfg.Paths.InboxDir) == "" {
		return stage.Unhealthy(name, "inbox directory not configured")
	}
	if i.engine == nil {
		return stage.Unhealthy(name, "pipeline engine unavailable")
	}
	return stage.Healthy(name)
}

func (i *Identifier) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, i.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := i.store.UpdateProgress(ctx, &copy); err != nil {
		logger.Warn("failed to persist identification progress", logging.Error(err))
		return
	}
	*item = copy
}

func identificationSummary(item *queue.Item, format container.Format) string {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return fmt.Sprintf("Identified %s container", format)
	}
	return fmt.Sprintf("Identified %s container: %s", format, item.DisplayTitle())
}

func wrapIdentifyError(err error) error {
	switch {
	case errors.Is(err, container.ErrUnsupported), errors.Is(err, container.ErrBadMagic):
		return services.Wrap(
			services.ErrValidation,
			"identifying",
			"detect container",
			"File is not a supported locked container; only the ncm and qmc families are handled",
			err,
		)
	case errors.Is(err, cipher.ErrUnknownScheme):
		return services.Wrap(
			services.ErrValidation,
			"identifying",
			"parse container header",
			"Container uses a keyed scheme this build cannot derive; keep the source and watch for scheme support",
			err,
		)
	case errors.Is(err, container.ErrTruncated):
		return services.Wrap(
			services.ErrValidation,
			"identifying",
			"parse container header",
			"Container is truncated; re-export the source file",
			err,
		)
	case errors.Is(err, container.ErrBadChecksum):
		return services.Wrap(
			services.ErrValidation,
			"identifying",
			"parse container header",
			"Container failed its integrity check; re-export the source file",
			err,
		)
	default:
		return services.Wrap(services.ErrTransient, "identifying", "read container", "Failed to read container header", err)
	}
}

func metadataPresence(meta *container.Metadata) string {
	if meta != nil {
		return "embedded"
	}
	return "missing"
}
