// Package source ingests non-local inputs: git repositories cloned to
// a temporary directory for crawling, and web pages converted to
// markdown for analysis as synthetic file nodes.
package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"
)

// IsGitURL reports whether input looks like a git repository URL
// rather than a local path. http(s) URLs are ambiguous and not claimed
// here; they belong to the web ingester.
func IsGitURL(input string) bool {
	return strings.HasSuffix(input, ".git") || strings.HasPrefix(input, "git@")
}

// CloneRepo clones the default branch of url into a fresh temporary
// directory and returns its path together with a cleanup func that
// removes it. On failure the temporary directory is already removed.
func CloneRepo(ctx context.Context, url string, logger *zap.Logger) (string, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tempDir, err := os.MkdirTemp("", "repoparser-git-")
	if err != nil {
		return "", nil, fmt.Errorf("creating temporary clone directory: %w", err)
	}

	logger.Info("cloning repository",
		zap.String("url", url),
		zap.String("dir", tempDir))

	_, err = git.PlainCloneContext(ctx, tempDir, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.HEAD,
		SingleBranch:  true,
	})
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return "", nil, fmt.Errorf("cloning %s: %w", url, err)
	}

	cleanup := func() {
		logger.Debug("removing clone directory", zap.String("dir", tempDir))
		_ = os.RemoveAll(tempDir)
	}
	return tempDir, cleanup, nil
}
