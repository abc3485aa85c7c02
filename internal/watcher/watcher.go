package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"unspool/internal/config"
	"unspool/internal/container"
	"unspool/internal/logging"
	"unspool/internal/queue"
)

// fileState tracks one inbox candidate across polls.
type fileState struct {
	size    int64
	stable  int
	handled bool
	seen    bool
}

// Watcher polls the inbox directory and enqueues container files once
// their size has settled.
type Watcher struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	pollInterval time.Duration
	stablePolls  int

	// tracking is touched only by the poll goroutine.
	tracking map[string]*fileState

	mu      sync.Mutex
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an inbox watcher. It returns nil when prerequisites are
// missing so the daemon can treat the watcher as optional.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Watcher {
	if cfg == nil || store == nil {
		return nil
	}

	poll := time.Duration(cfg.Workflow.InboxPollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	stable := cfg.Workflow.InboxStablePolls
	if stable < 1 {
		stable = 1
	}

	watcherLogger := logger
	if watcherLogger != nil {
		watcherLogger = watcherLogger.With(logging.String(logging.FieldComponent, "inbox-watcher"))
	}

	return &Watcher{
		cfg:          cfg,
		store:        store,
		logger:       watcherLogger,
		pollInterval: poll,
		stablePolls:  stable,
		tracking:     make(map[string]*fileState),
	}
}

// Start begins polling in the background.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("inbox watcher unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("inbox watcher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.ctx = runCtx
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop halts polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// Running reports whether the poll loop is active.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	w.poll()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	ctx := w.ctx
	if ctx == nil {
		return
	}
	logger := w.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(w.cfg.Paths.InboxDir)
	if err != nil {
		logger.Warn("inbox scan failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "inbox_scan_failed"),
			logging.String(logging.FieldErrorHint, "check inbox_dir path, permissions, and mount state"),
		)
		return
	}

	for _, state := range w.tracking {
		state.seen = false
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !container.SupportedExtension(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		w.observe(ctx, filepath.Join(w.cfg.Paths.InboxDir, entry.Name()), info.Size(), logger)
	}

	for path, state := range w.tracking {
		if !state.seen {
			delete(w.tracking, path)
		}
	}
}

// observe advances the stability state for one candidate and hands it to
// the queue once the size has held for enough polls.
func (w *Watcher) observe(ctx context.Context, path string, size int64, logger *slog.Logger) {
	state, ok := w.tracking[path]
	if !ok {
		w.tracking[path] = &fileState{size: size, seen: true}
		return
	}
	state.seen = true

	if size != state.size {
		// Still being written; restart the stability count.
		state.size = size
		state.stable = 0
		state.handled = false
		return
	}
	if state.handled {
		return
	}

	state.stable++
	if state.stable < w.stablePolls {
		return
	}
	if w.handleStableFile(ctx, path, logger) {
		state.handled = true
	}
}
