package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	fuzzyfinder "github.com/ktr0731/go-fuzzyfinder"
)

// pickRootDirectory lists directories under the working directory and
// lets the user fuzzy-pick the one to analyze. Returns "" when the
// selection is aborted.
func pickRootDirectory() (string, error) {
	candidates := []string{"."}

	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries just don't show up
		}
		if path == "." || !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning for directories: %w", err)
	}

	idx, err := fuzzyfinder.Find(
		candidates,
		func(i int) string { return candidates[i] },
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return "Select the directory to analyze."
			}
			entries, err := os.ReadDir(candidates[i])
			if err != nil {
				return fmt.Sprintf("Path: %s\nError: %v", candidates[i], err)
			}
			return fmt.Sprintf("Path: %s\nEntries: %d", candidates[i], len(entries))
		}),
	)
	if err != nil {
		if err == fuzzyfinder.ErrAbort {
			fmt.Fprintln(os.Stderr, "Interactive selection aborted.")
			return "", nil
		}
		return "", fmt.Errorf("fuzzy finder: %w", err)
	}
	return candidates[idx], nil
}
