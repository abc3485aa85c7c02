package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"unspool/internal/catalog"
	"unspool/internal/config"
	"unspool/internal/logging"
	"unspool/internal/notifications"
	"unspool/internal/queue"
	"unspool/internal/watcher"
	"unspool/internal/workflow"
)

// Daemon owns the background processing services and enforces
// single-instance execution through a workspace lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	watcher  *watcher.Watcher
	catalog  *catalog.Catalog
	notifier notifications.Service

	logPath    string
	logHub     *logging.StreamHub
	logArchive *logging.EventArchive

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Workflow      workflow.StatusSummary
	QueueDBPath   string
	LockFilePath  string
	CatalogPath   string
	CatalogTracks int
	InboxWatching bool
	InboxDir      string
}

// New constructs a daemon with initialized dependencies. The watcher may be
// nil when inbox monitoring is disabled; every other collaborator is
// required.
func New(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	wf *workflow.Manager,
	watch *watcher.Watcher,
	cat *catalog.Catalog,
	notifier notifications.Service,
	logPath string,
	logHub *logging.StreamHub,
	logArchive *logging.EventArchive,
) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		workflow:   wf,
		watcher:    watch,
		catalog:    cat,
		notifier:   notifier,
		logPath:    logPath,
		logHub:     logHub,
		logArchive: logArchive,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the workflow manager and
// inbox watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another unspool daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	if d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			d.workflow.Stop()
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return fmt.Errorf("start inbox watcher: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("unspool daemon started",
		logging.String("lock", d.lockPath),
		logging.String("inbox", d.cfg.Paths.InboxDir),
		logging.Bool("watching", d.watcher != nil))
	return nil
}

// Stop halts the inbox watcher and workflow manager and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("unspool daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// LogStream returns the in-memory log event hub, when configured.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}

// LogArchive returns the persistent log event archive, when configured.
func (d *Daemon) LogArchive() *logging.EventArchive {
	return d.logArchive
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Workflow:      summary,
		QueueDBPath:   d.cfg.QueueDatabasePath(),
		LockFilePath:  d.lockPath,
		InboxWatching: d.watcher.Running(),
		InboxDir:      d.cfg.Paths.InboxDir,
	}
	if d.catalog != nil {
		status.CatalogPath = d.catalog.Path()
		status.CatalogTracks = d.catalog.Count()
	}
	return status
}
