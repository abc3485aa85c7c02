package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// EventArchive journals stream events to disk, one JSON object per line,
// so consumers can replay history after the in-memory ring rolls over.
// The journal is truncated on every daemon start: it covers one session.
type EventArchive struct {
	path string

	mu sync.Mutex
	w  *os.File
}

// NewEventArchive opens (and truncates) the journal at path. An empty
// path disables archiving and returns a nil archive, which every method
// tolerates.
func NewEventArchive(path string) (*EventArchive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if err := ensureLogDir(path); err != nil {
		return nil, fmt.Errorf("event journal dir: %w", err)
	}
	w, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event journal %s: %w", path, err)
	}
	return &EventArchive{path: path, w: w}, nil
}

// Append journals one event. Write failures are swallowed: the journal
// is a convenience and logging must not fail because of it.
func (a *EventArchive) Append(evt LogEvent) {
	if a == nil {
		return
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		w, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}
		a.w = w
	}
	_, _ = a.w.Write(append(line, '\n'))
}

// ReadSince returns up to limit journaled events with sequence greater
// than since, plus the highest sequence seen. limit <= 0 means all.
func (a *EventArchive) ReadSince(since uint64, limit int) ([]LogEvent, uint64, error) {
	if a == nil {
		return nil, since, nil
	}
	f, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, since, nil
		}
		return nil, since, fmt.Errorf("open event journal %s: %w", a.path, err)
	}
	defer f.Close()

	var out []LogEvent
	highest := since
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var evt LogEvent
		if err := json.Unmarshal(sc.Bytes(), &evt); err != nil {
			// A torn final line from an in-flight write is expected.
			continue
		}
		if evt.Sequence > highest {
			highest = evt.Sequence
		}
		if evt.Sequence <= since {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return out, highest, fmt.Errorf("read event journal %s: %w", a.path, err)
	}
	return out, highest, nil
}

// Close releases the journal file handle.
func (a *EventArchive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		return nil
	}
	err := a.w.Close()
	a.w = nil
	return err
}

// Path reports the on-disk journal location.
func (a *EventArchive) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}
