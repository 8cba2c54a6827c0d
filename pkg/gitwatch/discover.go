package gitwatch

import (
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
)

// DiscoverRepositories returns the repositories under roots. A root that is
// itself a repository is returned as is; otherwise its immediate
// subdirectories are checked, one level deep. Unreadable folders are logged
// and skipped. The result is sorted and free of duplicates.
func DiscoverRepositories(roots []string, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gitwatch")

	seen := make(map[string]bool)
	var repos []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			repos = append(repos, path)
		}
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			logger.Warn("skipping workspace root", "root", root, "error", err)
			continue
		}

		if isRepository(abs) {
			add(abs)
			continue
		}

		dirents, err := godirwalk.ReadDirents(abs, nil)
		if err != nil {
			logger.Warn("cannot scan workspace root", "root", abs, "error", err)
			continue
		}
		for _, de := range dirents {
			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil {
				logger.Debug("skipping entry", "path", filepath.Join(abs, de.Name()), "error", err)
				continue
			}
			if !isDir || de.Name() == ".git" {
				continue
			}
			child := filepath.Join(abs, de.Name())
			if isRepository(child) {
				add(child)
			}
		}
	}

	sort.Strings(repos)
	logger.Debug("discovered repositories", "roots", len(roots), "repositories", len(repos))
	return repos
}
