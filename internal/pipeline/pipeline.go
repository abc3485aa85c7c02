// Package pipeline unlocks batches of encrypted music containers.
//
// A batch walks each file through six stages: detect the container
// family, parse its header, decrypt the payload into staging, reconstruct
// a finished track, classify it against the library catalog, and place it
// with a single move. Files are independent: one file's failure never
// aborts the rest, and cancellation takes effect between stages, never in
// the middle of one.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"unspool/internal/catalog"
	"unspool/internal/config"
	"unspool/internal/logging"
)

// Options tunes a batch run.
type Options struct {
	// Workers caps how many files are processed at once. Zero or
	// negative means one worker per CPU.
	Workers int

	// StableOrder sorts results by input position instead of completion
	// order.
	StableOrder bool

	// HoldFailed moves the source of a failed unlock into the review
	// directory. When false, failed sources are left exactly where they
	// were.
	HoldFailed bool
}

// Engine runs unlock batches against one configuration and catalog.
type Engine struct {
	cfg    *config.Config
	cat    *catalog.Catalog
	logger *slog.Logger
	opts   Options
}

// New builds an engine.
func New(cfg *config.Config, cat *catalog.Catalog, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		cfg:    cfg,
		cat:    cat,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		opts:   opts,
	}
}

func (e *Engine) workerCount() int {
	if e.opts.Workers > 0 {
		return e.opts.Workers
	}
	return runtime.NumCPU()
}

// RunBatch unlocks the given files and returns one result per input.
// The catalog snapshot is taken once at batch start; tracks judged new
// are appended to the catalog before RunBatch returns, so the next batch
// sees them.
func (e *Engine) RunBatch(ctx context.Context, paths []string) (*BatchReport, error) {
	report := &BatchReport{
		BatchID: uuid.NewString(),
		Started: time.Now(),
	}
	if len(paths) == 0 {
		return report, nil
	}

	if err := os.MkdirAll(e.cfg.Paths.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	log := e.logger.With(logging.String(logging.FieldBatchID, report.BatchID))
	log.Info("batch started",
		logging.Int("files", len(paths)),
		logging.Int("workers", e.workerCount()),
	)

	detector := e.Detector()
	results := make(chan Result, len(paths))

	var g errgroup.Group
	g.SetLimit(e.workerCount())
	for i, path := range paths {
		g.Go(func() error {
			results <- e.processOne(ctx, log, detector, i, path)
			return nil
		})
	}
	// Workers never return errors; everything flows through the channel.
	_ = g.Wait()
	close(results)

	for res := range results {
		report.Results = append(report.Results, res)
	}
	if e.opts.StableOrder {
		sort.Slice(report.Results, func(i, j int) bool {
			return report.Results[i].Index < report.Results[j].Index
		})
	}
	report.Elapsed = time.Since(report.Started)

	if entries := report.Entries(); len(entries) > 0 {
		if err := e.cat.Append(entries...); err != nil {
			logging.ErrorWithContext(log, "catalog append failed", "catalog_append_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run catalog rebuild to restore the index"),
				logging.String(logging.FieldImpact, "tracks from this batch may be re-added as duplicates later"),
			)
			return report, fmt.Errorf("append catalog entries: %w", err)
		}
	}

	tally := report.Tally()
	log.Info("batch complete",
		logging.Int("added", tally.Added),
		logging.Int("duplicates", tally.Duplicates),
		logging.Int("conflicts", tally.Conflicts),
		logging.Int("failed", tally.Failed),
		logging.Int("skipped", tally.Skipped),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}
