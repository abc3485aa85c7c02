package unlocker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"log/slog"

	"unspool/internal/audio"
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

// Unlocker decrypts a queued container into staging and records the
// reconstructed track on the item envelope.
type Unlocker struct {
	store   *queue.Store
	cfg     *config.Config
	logger  *slog.Logger
	engine  *pipeline.Engine
	sampler *logging.ProgressSampler
}

// NewUnlocker constructs the unlock stage handler using default dependencies.
func NewUnlocker(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Unlocker {
	engine := pipeline.New(cfg, catalog.Open(cfg.Dedup.CatalogPath, logger), logger, pipeline.Options{})
	return NewUnlockerWithDependencies(cfg, store, logger, engine)
}

// NewUnlockerWithDependencies allows injecting collaborators (used in tests
// and by the daemon, which shares one engine across stages).
func NewUnlockerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, engine *pipeline.Engine) *Unlocker {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "unlocker"))
	}
	return &Unlocker{
		store:   store,
		cfg:     cfg,
		logger:  stageLogger,
		engine:  engine,
		sampler: logging.NewProgressSampler(5),
	}
}

func (u *Unlocker) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)
	u.sampler.Reset()
	if item.ProgressStage == "" {
		item.ProgressStage = "Unlocking"
	}
	item.ProgressMessage = "Preparing decryption"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info(
		"starting unlock",
		logging.String(logging.FieldSourcePath, strings.TrimSpace(item.SourcePath)),
		logging.String(logging.FieldFormat, strings.TrimSpace(item.Format)),
	)
	return nil
}

func (u *Unlocker) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)
	env, err := stage.ParseTrackSpec(item.MetadataJSON)
	if err != nil {
		return err
	}

	u.updateProgress(ctx, item, "Decrypting payload", 20)
	unlocked, err := u.engine.Unlock(ctx, item.SourcePath)
	if err != nil {
		return wrapUnlockError(err)
	}

	env.Format = string(unlocked.Format)
	env.Codec = string(unlocked.Codec)
	env.StagedPath = unlocked.Staged
	env.ContentHash = unlocked.Hash
	env.MetaKey = unlocked.MetaKey
	env.SizeBytes = unlocked.Size
	env.DurationMS = unlocked.Duration.Milliseconds()
	env.Title = unlocked.Title
	env.Artists = append([]string(nil), unlocked.Artists...)
	env.Album = unlocked.Album
	for _, w := range unlocked.Warnings {
		env.AddWarning(string(w.Stage), w.Message)
	}
	encoded, err := env.Encode()
	if err != nil {
		unlocked.Discard()
		return services.Wrap(services.ErrTransient, "unlocking", "encode track envelope", "Failed to encode track envelope", err)
	}
	item.MetadataJSON = encoded
	item.OutputPath = unlocked.Staged
	item.ContentHash = unlocked.Hash
	item.Title = env.Title
	item.Artist = env.ArtistLine()
	item.Album = env.Album
	item.DurationSecs = fingerprint.RoundSeconds(unlocked.Duration)

	u.updateProgress(ctx, item, "Reconstruction complete", 90)
	item.ProgressMessage = fmt.Sprintf("Unlocked %s track: %s", unlocked.Codec, filepath.Base(unlocked.Staged))
	logger.Info(
		"unlock completed",
		logging.String(logging.FieldFormat, string(unlocked.Format)),
		logging.String("codec", string(unlocked.Codec)),
		logging.String("staged_path", unlocked.Staged),
		logging.String("content_hash", unlocked.Hash),
		logging.Int64("size_bytes", unlocked.Size),
		logging.Int("warnings", len(unlocked.Warnings)),
	)
	return nil
}

// HealthCheck verifies unlock prerequisites such as the staging directory.
func (u *Unlocker) HealthCheck(ctx context.Context) stage.Health {
	const name = "unlocker"
	if u.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(u.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if u.engine == nil {
		return stage.Unhealthy(name, "pipeline engine unavailable")
	}
	return stage.Healthy(name)
}

func (u *Unlocker) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, u.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := u.store.UpdateProgress(ctx, &copy); err != nil {
		logger.Warn("failed to persist unlock progress", logging.Error(err))
		return
	}
	*item = copy
	if u.sampler.ShouldLog(percent, message) {
		logger.Debug(
			"unlock progress",
			logging.Float64("progress_percent", percent),
			logging.String("progress_message", message),
		)
	}
}

func wrapUnlockError(err error) error {
	switch {
	case errors.Is(err, cipher.ErrUnknownScheme):
		return services.Wrap(
			services.ErrValidation,
			"unlocking",
			"recover key",
			"Container uses a keyed scheme this build cannot derive; keep the source and watch for scheme support",
			err,
		)
	case errors.Is(err, container.ErrUnsupported), errors.Is(err, container.ErrBadMagic):
		return services.Wrap(
			services.ErrValidation,
			"unlocking",
			"detect container",
			"File is not a supported locked container; only the ncm and qmc families are handled",
			err,
		)
	case errors.Is(err, container.ErrTruncated):
		return services.Wrap(
			services.ErrValidation,
			"unlocking",
			"parse container",
			"Container is truncated; re-export the source file",
			err,
		)
	case errors.Is(err, container.ErrBadChecksum):
		return services.Wrap(
			services.ErrValidation,
			"unlocking",
			"verify container",
			"Container failed its integrity check; re-export the source file",
			err,
		)
	case errors.Is(err, audio.ErrUnrecognizedCodec):
		return services.Wrap(
			services.ErrValidation,
			"unlocking",
			"sniff decrypted payload",
			"Decrypted payload is not a recognizable audio stream; the container key material may be corrupt",
			err,
		)
	default:
		return services.Wrap(services.ErrTransient, "unlocking", "decrypt payload", "Failed to decrypt container payload", err)
	}
}
