// Package daemonrun wires the daemon process together: logging, queue store,
// workflow stages, inbox watcher, and the IPC server.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"unspool/internal/catalog"
	"unspool/internal/config"
	"unspool/internal/daemon"
	"unspool/internal/identification"
	"unspool/internal/ingestor"
	"unspool/internal/ipc"
	"unspool/internal/logging"
	"unspool/internal/notifications"
	"unspool/internal/pipeline"
	"unspool/internal/queue"
	"unspool/internal/unlocker"
	"unspool/internal/watcher"
	"unspool/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// Run starts the unspool daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("unspool-%s.log", runID))
	eventsPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("unspool-%s.events", runID))
	logHub := logging.NewStreamHub(4096)
	eventArchive, archiveErr := logging.NewEventArchive(eventsPath)
	if archiveErr != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize log archive: %v\n", archiveErr)
	} else if eventArchive != nil {
		logHub.AddSink(eventArchive)
	}

	var sessionID string
	var debugLogPath string
	if opts.Diagnostic {
		sessionID = uuid.NewString()
		debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
		if err := os.MkdirAll(debugDir, 0o755); err != nil {
			return fmt.Errorf("create debug log directory: %w", err)
		}
		debugLogPath = filepath.Join(debugDir, fmt.Sprintf("unspool-%s.log", runID))
	}

	loggerOpts := logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Stream:           logHub,
		SessionID:        sessionID,
	}
	logger, err := logging.New(loggerOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		debugLogger, debugErr := logging.New(logging.Options{
			Level:            "debug",
			Format:           "json",
			OutputPaths:      []string{debugLogPath},
			ErrorOutputPaths: []string{debugLogPath},
			Development:      true,
			SessionID:        sessionID,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			if err := ensureCurrentLogPointer(filepath.Join(cfg.Paths.LogDir, "debug"), debugLogPath); err != nil {
				fmt.Fprintf(os.Stderr, "warn: unable to update debug/unspool.log link: %v\n", err)
			}
		}
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String(logging.FieldSessionID, sessionID),
			logging.String("debug_log_path", debugLogPath),
		)
	}

	logRuntimeSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update unspool.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "unspool-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "unspool-*.events", Exclude: []string{eventsPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "unspool-*.log", Exclude: []string{debugLogPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "unspoold.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	sweepStagingOrphans(logger, cfg)

	notifier := notifications.NewService(cfg)
	cat := catalog.Open(cfg.Dedup.CatalogPath, logger)
	engine := pipeline.New(cfg, cat, logger, pipeline.Options{})

	workflowManager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	registerStages(workflowManager, cfg, store, logger, notifier, engine)

	watch := watcher.New(cfg, store, logger)

	d, err := daemon.New(cfg, store, logger, workflowManager, watch, cat, notifier, logPath, logHub, eventArchive)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if cfg.Dedup.RebuildOnStart {
		if count, rebuildErr := d.RebuildCatalog(signalCtx); rebuildErr != nil {
			logging.WarnWithContext(logger, "catalog rebuild on startup failed", "catalog_rebuild_failed",
				logging.Error(rebuildErr),
				logging.String(logging.FieldErrorHint, "run 'unspool catalog rebuild' after fixing library access"),
				logging.String(logging.FieldImpact, "duplicate detection may miss existing library tracks"),
			)
		} else {
			logger.Info("catalog rebuilt on startup",
				logging.String(logging.FieldEventType, "catalog_rebuild"),
				logging.Int("track_count", count),
			)
		}
	}

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
			logging.String(logging.FieldImpact, "daemon may not process queue items"),
		)
	}

	<-signalCtx.Done()
	logger.Info("unspool daemon shutting down")
	return nil
}

// registerStages wires the three workflow stages onto a shared pipeline engine
// so they reuse one catalog handle.
func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, engine *pipeline.Engine) {
	if mgr == nil || cfg == nil {
		return
	}

	mgr.ConfigureStages(workflow.StageSet{
		Identifier: identification.NewIdentifierWithDependencies(cfg, store, logger, engine),
		Unlocker:   unlocker.NewUnlockerWithDependencies(cfg, store, logger, engine),
		Ingestor:   ingestor.NewIngestorWithDependencies(cfg, store, logger, engine, notifier),
	})
}

// sweepStagingOrphans removes unlock scratch files left behind by a previous
// run that exited mid-write. Runs before any worker starts, so everything
// matching the scratch pattern is stale.
func sweepStagingOrphans(logger *slog.Logger, cfg *config.Config) {
	staging := strings.TrimSpace(cfg.Paths.StagingDir)
	if staging == "" {
		return
	}
	matches, err := filepath.Glob(filepath.Join(staging, "unlock-*"))
	if err != nil || len(matches) == 0 {
		return
	}
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	if removed > 0 {
		logger.Info("removed orphaned staging files",
			logging.String(logging.FieldEventType, "staging_sweep"),
			logging.Int("removed_count", removed),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "unspool.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logRuntimeSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("runtime snapshot",
		logging.String(logging.FieldEventType, "runtime_snapshot"),
		logging.Int("workers", cfg.Workers.Count),
		logging.Bool("inbox_watch_enabled", strings.TrimSpace(cfg.Paths.InboxDir) != ""),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("catalog_rebuild_on_start", cfg.Dedup.RebuildOnStart),
		logging.Int("log_retention_days", cfg.Logging.RetentionDays),
	)
}
