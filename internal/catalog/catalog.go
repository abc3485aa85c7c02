// Package catalog maintains the persistent library index that duplicate
// detection runs against: one entry per track, keyed by content hash, with
// the normalized metadata key alongside.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"unspool/internal/fileutil"
	"unspool/internal/logging"
)

// Entry represents one library track the detector can match against.
type Entry struct {
	Hash        string    `json:"hash"`
	MetaKey     string    `json:"meta_key,omitempty"`
	Path        string    `json:"path"`
	Title       string    `json:"title,omitempty"`
	Artists     []string  `json:"artists,omitempty"`
	Album       string    `json:"album,omitempty"`
	DurationSec int64     `json:"duration_seconds,omitempty"`
	Size        int64     `json:"size,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// Catalog provides thread-safe access to the library index. Batches read
// through immutable snapshots; new entries are appended only after a batch
// reports them.
type Catalog struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]Entry // keyed by content hash
}

// Open creates a catalog backed by the given index file. If path is empty
// the catalog is non-functional (all operations become no-ops). A missing
// or unreadable index starts empty rather than failing.
func Open(path string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "catalog")

	c := &Catalog{
		path:    path,
		logger:  logger,
		entries: make(map[string]Entry),
	}

	if path == "" {
		return c
	}

	if err := c.load(); err != nil {
		logger.Warn("failed to load library catalog",
			logging.String(logging.FieldEventType, "catalog_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "catalog will start empty; run catalog rebuild"),
			logging.String(logging.FieldImpact, "duplicate detection may re-add known tracks"))
	}

	return c
}

// Path returns the index file location.
func (c *Catalog) Path() string {
	return c.path
}

// Lookup returns the entry with the given content hash if present.
func (c *Catalog) Lookup(hash string) (Entry, bool) {
	hash = strings.TrimSpace(hash)
	if hash == "" || c.path == "" {
		return Entry{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[hash]
	return entry, found
}

// Append adds or updates entries and persists the index. Entries without a
// content hash are rejected.
func (c *Catalog) Append(entries ...Entry) error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, entry := range entries {
		entry.Hash = strings.TrimSpace(entry.Hash)
		if entry.Hash == "" {
			return errors.New("catalog entry missing content hash")
		}
		if entry.AddedAt.IsZero() {
			entry.AddedAt = time.Now().UTC()
		}
		c.entries[entry.Hash] = entry
		added++
	}
	if added == 0 {
		return nil
	}

	if err := c.save(); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}

	c.logger.Debug("appended catalog entries", logging.Int("entry_count", added))
	return nil
}

// List returns all entries sorted by AddedAt descending (newest first).
func (c *Catalog) List() []Entry {
	if c.path == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AddedAt.After(entries[j].AddedAt)
	})

	return entries
}

// Count returns the number of indexed tracks.
func (c *Catalog) Count() int {
	if c.path == "" {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Verify reads the index at path and reports how many tracks it holds.
// A missing index verifies as empty.
func Verify(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read catalog file: %w", err)
	}
	if len(data) == 0 {
		return 0, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse catalog file: %w", err)
	}
	return len(entries), nil
}

// load reads the index from disk into memory.
func (c *Catalog) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read catalog file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}

	c.entries = make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Hash) != "" {
			c.entries[entry.Hash] = entry
		}
	}

	c.logger.Debug("loaded library catalog",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))

	return nil
}

// save writes the index to disk atomically. Callers must hold the write
// lock.
func (c *Catalog) save() error {
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}

	// Sort for deterministic output
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].Hash < entries[j].Hash
		}
		return entries[i].AddedAt.After(entries[j].AddedAt)
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	if err := fileutil.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog file: %w", err)
	}

	return nil
}
