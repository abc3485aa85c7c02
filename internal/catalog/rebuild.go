package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"unspool/internal/audio"
	"unspool/internal/fingerprint"
	"unspool/internal/logging"
	"unspool/internal/textutil"
)

// audioExtensions lists the payload formats the reconstructor can produce;
// a rebuild indexes exactly these.
var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".m4a":  {},
	".wav":  {},
}

// Rebuild re-indexes the given library roots from scratch, replacing the
// in-memory set and persisting the result. Unreadable files are skipped
// with a log line rather than failing the walk.
func (c *Catalog) Rebuild(ctx context.Context, roots ...string) (int, error) {
	if c.path == "" {
		return 0, nil
	}

	rebuilt := make(map[string]Entry)
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("skipping missing library root", logging.String("path", root))
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
				return nil
			}
			entry, probeErr := probeTrack(path)
			if probeErr != nil {
				c.logger.Warn("skipping unreadable track",
					logging.String("path", path),
					logging.Error(probeErr),
					logging.String(logging.FieldEventType, "catalog_probe_failed"))
				return nil
			}
			rebuilt[entry.Hash] = *entry
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = rebuilt
	if err := c.save(); err != nil {
		return 0, fmt.Errorf("persist catalog: %w", err)
	}
	c.logger.Info("rebuilt library catalog", logging.Int("entry_count", len(rebuilt)))
	return len(rebuilt), nil
}

// probeTrack derives a catalog entry from a library file: content hash,
// native tags when readable, and a header-probed duration.
func probeTrack(path string) (*Entry, error) {
	hash, err := fingerprint.File(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		Hash:    hash,
		Path:    path,
		Size:    info.Size(),
		AddedAt: info.ModTime().UTC(),
	}

	if m, tagErr := tag.ReadFrom(f); tagErr == nil {
		entry.Title = strings.TrimSpace(m.Title())
		if artist := strings.TrimSpace(m.Artist()); artist != "" {
			entry.Artists = []string{artist}
		}
		entry.Album = strings.TrimSpace(m.Album())
	}
	if entry.Title == "" {
		entry.Title = textutil.DeriveTitle(path)
	}

	// The same header probe the pipeline uses, so both sides derive the
	// same metadata key for the same bytes.
	var duration time.Duration
	if dur, durErr := audio.Duration(f, info.Size()); durErr == nil {
		duration = dur
	}
	entry.DurationSec = fingerprint.RoundSeconds(duration)
	entry.MetaKey = fingerprint.MetaKey(entry.Title, entry.Artists, duration)

	return entry, nil
}
