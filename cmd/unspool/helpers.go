package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"unspool/internal/config"
	"unspool/internal/container"
)

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveContainerPaths expands each argument to absolute container paths.
// Directory arguments are walked one level deep; unsupported extensions are
// reported back so the caller can surface them without failing the batch.
func resolveContainerPaths(args []string) ([]string, []string, error) {
	var resolved []string
	var skipped []string
	for _, arg := range args {
		path, err := config.ExpandPath(strings.TrimSpace(arg))
		if err != nil {
			return nil, nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil, fmt.Errorf("inspect path %q: %w", path, err)
		}
		if !info.IsDir() {
			if container.SupportedExtension(path) {
				resolved = append(resolved, path)
			} else {
				skipped = append(skipped, path)
			}
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read directory %q: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			candidate := filepath.Join(path, entry.Name())
			if container.SupportedExtension(candidate) {
				resolved = append(resolved, candidate)
			}
		}
	}
	sort.Strings(resolved)
	return resolved, skipped, nil
}
