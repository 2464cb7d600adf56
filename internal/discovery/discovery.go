// Package discovery resolves a target directory and glob pattern into
// the ordered file list the scheduler partitions into batches.
package discovery

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Files walks root and returns every regular file whose base name
// matches pattern (a path/filepath.Match-style glob), at any depth
// under root; directory components are not matched. Results
// are sorted lexically for deterministic, reproducible FIFO batch
// ordering across runs. An empty pattern matches every file.
func Files(root, pattern string) ([]string, error) {
	var matches []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %s: %w", path, walkErr)
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("relativize %s: %w", path, relErr)
		}

		if pattern != "" {
			ok, matchErr := filepath.Match(pattern, filepath.Base(rel))
			if matchErr != nil {
				return fmt.Errorf("match pattern %q: %w", pattern, matchErr)
			}

			if !ok {
				return nil
			}
		}

		matches = append(matches, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover files under %s: %w", root, err)
	}

	sort.Strings(matches)

	return matches, nil
}
