package preflight

import (
	"context"

	"unspool/internal/config"
)

// Minimum free space the staging and library filesystems must offer before
// the daemon starts accepting work. Decrypted payloads land in staging
// first, so it needs headroom for a full batch of lossless tracks.
const (
	minStagingFreeBytes = 2 << 30
	minLibraryFreeBytes = 1 << 30
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config: every directory
// the pipeline touches, free space on the filesystems that receive data, and
// the library catalog index.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Duplicates directory", cfg.Paths.DuplicatesDir),
		CheckDirectoryAccess("Review directory", cfg.Paths.ReviewDir),
	}

	if cfg.Paths.LibraryDir != "" {
		results = append(results,
			CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
			CheckFreeSpace("Library free space", cfg.Paths.LibraryDir, minLibraryFreeBytes),
		)
	}
	results = append(results,
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, minStagingFreeBytes),
		CheckCatalog(cfg.Dedup.CatalogPath),
	)

	return results
}
