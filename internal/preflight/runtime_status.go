package preflight

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"unspool/internal/container"
)

// InboxProbe reports the current snapshot of locked files waiting in the inbox.
type InboxProbe struct {
	Scanned bool
	Files   int
	Bytes   int64
}

// ProbeInbox walks the inbox and tallies files with supported container
// extensions. Unreadable directories yield an unscanned probe rather than an
// error so status displays stay usable.
func ProbeInbox(dir string) InboxProbe {
	if dir == "" {
		return InboxProbe{}
	}
	probe := InboxProbe{Scanned: true}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !container.SupportedExtension(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		probe.Files++
		probe.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return InboxProbe{}
	}
	return probe
}

// InboxDetail renders a display-friendly summary for status UIs.
func (p InboxProbe) InboxDetail() string {
	if !p.Scanned {
		return "Inbox unavailable"
	}
	if p.Files == 0 {
		return "Inbox empty"
	}
	return fmt.Sprintf("%d locked files waiting (%s)", p.Files, humanize.IBytes(uint64(p.Bytes)))
}
