// Package ignore evaluates paths against a configured set of ignore
// patterns. A RuleSet carries two independent pattern lists, one for
// directories and one for files, mirroring the crawler configuration's
// ignore_patterns layout.
package ignore

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// RuleSet holds the normalized directory and file patterns. It is
// immutable after construction and safe for concurrent use.
type RuleSet struct {
	dirPatterns  []string
	filePatterns []string
}

// NewRuleSet builds a RuleSet from ordered directory and file pattern
// lists. Patterns may be literal names ("node_modules"), globs
// ("*.log", "build/**") or paths rooted at the repository root
// ("src/generated"). Matching is case-insensitive, so patterns are
// lowercased here once.
func NewRuleSet(dirs, files []string) *RuleSet {
	rs := &RuleSet{
		dirPatterns:  make([]string, 0, len(dirs)),
		filePatterns: make([]string, 0, len(files)),
	}
	for _, p := range dirs {
		if p = normalize(p); p != "" {
			rs.dirPatterns = append(rs.dirPatterns, p)
		}
	}
	for _, p := range files {
		if p = normalize(p); p != "" {
			rs.filePatterns = append(rs.filePatterns, p)
		}
	}
	return rs
}

// DirPatterns returns a copy of the directory pattern list.
func (rs *RuleSet) DirPatterns() []string {
	return append([]string(nil), rs.dirPatterns...)
}

// FilePatterns returns a copy of the file pattern list.
func (rs *RuleSet) FilePatterns() []string {
	return append([]string(nil), rs.filePatterns...)
}

// Match reports whether relPath should be ignored. relPath is relative
// to the repository root; either slash style is accepted. Directory
// patterns are only consulted for directories and file patterns only
// for files. The first matching pattern wins; no match means the path
// is kept.
//
// Match is a pure function of (rs, relPath, isDir): callers rely on a
// directory match pruning the whole subtree, so descendants of an
// ignored directory are never re-evaluated here.
func (rs *RuleSet) Match(relPath string, isDir bool) bool {
	rel := normalize(relPath)
	if rel == "" || rel == "." {
		return false
	}
	base := path.Base(rel)

	patterns := rs.filePatterns
	if isDir {
		patterns = rs.dirPatterns
	}

	for _, pattern := range patterns {
		// Exact relative-path match.
		if rel == pattern {
			return true
		}
		if strings.Contains(pattern, "/") {
			// Rooted or multi-segment pattern: glob against the
			// full relative path. * stays within a segment, **
			// crosses segment boundaries.
			if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
				return true
			}
		} else {
			// Slash-free pattern: applies to the final segment
			// wherever the entry sits in the tree.
			if ok, err := doublestar.Match(pattern, base); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// normalize lowercases a pattern or path and converts it to rooted
// forward-slash form so rule sets behave identically across operating
// systems.
func normalize(p string) string {
	p = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"))
	p = strings.TrimPrefix(p, "./")
	return strings.Trim(p, "/")
}
