// Package crawler walks a directory tree depth-first, prunes entries
// matched by the ignore rule set, reads retained files and assembles
// the in-memory Node tree consumed by the overview serializer.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/monochromegane/go-gitignore"
	"go.uber.org/zap"

	"github.com/justinlietz93/repoparser/internal/fileio"
	"github.com/justinlietz93/repoparser/internal/ignore"
	"github.com/justinlietz93/repoparser/internal/language"
)

var (
	// ErrInvalidRoot means the crawl root does not exist or is not a
	// directory. This is the only failure that aborts before any
	// traversal happens.
	ErrInvalidRoot = errors.New("root path does not exist or is not a directory")

	// ErrCancelled is returned when the context is done mid-crawl.
	// The partial tree built so far is still returned.
	ErrCancelled = errors.New("crawl cancelled")
)

// Reason classifies a per-node failure.
type Reason string

const (
	ReasonUnreadable Reason = "unreadable"
	ReasonPermission Reason = "permission-denied"
	ReasonDecode     Reason = "decode-failure"
	ReasonCancelled  Reason = "cancelled"
)

// AnalysisError records one node that could not be fully processed.
// These accumulate instead of aborting the crawl.
type AnalysisError struct {
	Path   string
	Reason Reason
	Err    error
}

func (e AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e AnalysisError) Unwrap() error { return e.Err }

// Options configures a crawl. Rules and Reader get usable zero-value
// substitutes when nil; everything else is optional.
type Options struct {
	Rules  *ignore.RuleSet
	Reader *fileio.Reader
	Langs  *language.Map

	// Gitignore, when set, overlays the repository's .gitignore on
	// top of the rule set.
	Gitignore gitignore.IgnoreMatcher

	// MaxFileSize caps how many bytes of a single file are loaded;
	// bigger files keep metadata only and get a warning annotation.
	// 0 disables the guard.
	MaxFileSize int64

	// MaxDirEntries annotates directories holding more entries than
	// this with a warning. 0 disables the guard.
	MaxDirEntries int

	Logger *zap.Logger
}

// Crawl walks the tree rooted at root and returns the assembled Node
// tree plus every per-node failure encountered on the way. The
// returned error is non-nil only for ErrInvalidRoot and ErrCancelled;
// in the cancelled case the partial tree and errors are still
// meaningful.
func Crawl(ctx context.Context, root string, opts Options) (*Node, []AnalysisError, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rules == nil {
		opts.Rules = ignore.NewRuleSet(nil, nil)
	}
	if opts.Reader == nil {
		opts.Reader = fileio.NewReader(opts.MaxFileSize, opts.Logger)
	}

	c := &crawl{ctx: ctx, opts: opts}
	rootNode := &Node{
		Path:    abs,
		RelPath: ".",
		Name:    filepath.Base(abs),
		Kind:    KindDirectory,
		ModTime: info.ModTime(),
	}

	opts.Logger.Debug("starting crawl", zap.String("root", abs))
	if err := c.walkDir(rootNode); err != nil {
		return rootNode, c.errs, err
	}
	opts.Logger.Debug("crawl complete",
		zap.String("root", abs),
		zap.Int("errors", len(c.errs)))
	return rootNode, c.errs, nil
}

// crawl owns the error accumulation for a single Crawl invocation.
type crawl struct {
	ctx  context.Context
	opts Options
	errs []AnalysisError
}

// walkDir fills node.Children from the directory at node.Path. The
// only error it returns is ErrCancelled; everything else is recorded
// in the error sequence and traversal keeps going.
func (c *crawl) walkDir(node *Node) error {
	entries, err := os.ReadDir(node.Path)
	if err != nil {
		c.recordFailure(node, err)
		return nil
	}

	if c.opts.MaxDirEntries > 0 && len(entries) > c.opts.MaxDirEntries {
		node.Warning = fmt.Sprintf("directory holds %d entries, above the limit of %d", len(entries), c.opts.MaxDirEntries)
	}

	// os.ReadDir uses lstat semantics, so a symlink to a directory
	// lands in the files partition and is recorded as a leaf.
	var dirs, files []fs.DirEntry
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry)
		} else {
			files = append(files, entry)
		}
	}
	sortEntries(dirs)
	sortEntries(files)

	for _, entry := range dirs {
		if err := c.checkCancelled(node.Path); err != nil {
			return err
		}
		rel := childRel(node.RelPath, entry.Name())
		abs := filepath.Join(node.Path, entry.Name())
		if c.ignored(abs, rel, true) {
			c.opts.Logger.Debug("pruning directory", zap.String("path", rel))
			continue
		}
		child := &Node{
			Path:    abs,
			RelPath: rel,
			Name:    entry.Name(),
			Kind:    KindDirectory,
		}
		if info, err := entry.Info(); err == nil {
			child.ModTime = info.ModTime()
		}
		node.Children = append(node.Children, child)
		if err := c.walkDir(child); err != nil {
			return err
		}
	}

	for _, entry := range files {
		if err := c.checkCancelled(node.Path); err != nil {
			return err
		}
		rel := childRel(node.RelPath, entry.Name())
		if c.ignored(filepath.Join(node.Path, entry.Name()), rel, false) {
			c.opts.Logger.Debug("skipping file", zap.String("path", rel))
			continue
		}
		node.Children = append(node.Children, c.fileNode(node, entry, rel))
	}
	return nil
}

// fileNode reads one retained file (or records a symlink leaf) and
// turns it into a Node.
func (c *crawl) fileNode(parent *Node, entry fs.DirEntry, rel string) *Node {
	child := &Node{
		Path:     filepath.Join(parent.Path, entry.Name()),
		RelPath:  rel,
		Name:     entry.Name(),
		Kind:     KindFile,
		Language: c.opts.Langs.Detect(entry.Name()),
	}

	if entry.Type()&fs.ModeSymlink != 0 {
		child.Symlink = true
		if info, err := entry.Info(); err == nil {
			child.ModTime = info.ModTime()
		}
		return child
	}

	data, err := c.opts.Reader.Read(child.Path)
	if err != nil {
		c.recordFailure(child, err)
		if info, statErr := entry.Info(); statErr == nil {
			child.Size = info.Size()
			child.ModTime = info.ModTime()
		}
		return child
	}

	child.Size = data.Size
	child.ModTime = data.ModTime
	child.Binary = data.Binary
	child.Content = data.Content

	if data.DecodeFailed {
		c.errs = append(c.errs, AnalysisError{Path: child.RelPath, Reason: ReasonDecode})
	}
	if data.Oversize {
		child.Warning = fmt.Sprintf("content omitted: file size %d exceeds the configured limit", data.Size)
	}
	return child
}

// ignored merges the rule set with the optional .gitignore overlay.
// The matcher needs the absolute path because it relativizes against
// its own base internally.
func (c *crawl) ignored(abs, rel string, isDir bool) bool {
	if c.opts.Rules.Match(rel, isDir) {
		return true
	}
	if c.opts.Gitignore != nil && c.opts.Gitignore.Match(abs, isDir) {
		return true
	}
	return false
}

func (c *crawl) checkCancelled(path string) error {
	if err := c.ctx.Err(); err != nil {
		c.errs = append(c.errs, AnalysisError{Path: path, Reason: ReasonCancelled, Err: err})
		return ErrCancelled
	}
	return nil
}

// recordFailure annotates a node that could not be read and appends
// the matching entry to the error sequence.
func (c *crawl) recordFailure(node *Node, err error) {
	reason := ReasonUnreadable
	if errors.Is(err, fs.ErrPermission) {
		reason = ReasonPermission
	}
	node.Warning = string(reason)
	rel := node.RelPath
	c.errs = append(c.errs, AnalysisError{Path: rel, Reason: reason, Err: err})
	c.opts.Logger.Warn("failed to read entry",
		zap.String("path", rel),
		zap.String("reason", string(reason)),
		zap.Error(err))
}

// sortEntries orders one partition (directories or files)
// alphabetically, case-insensitive with the raw name as tiebreak so
// ordering stays deterministic.
func sortEntries(entries []fs.DirEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].Name()), strings.ToLower(entries[j].Name())
		if a == b {
			return entries[i].Name() < entries[j].Name()
		}
		return a < b
	})
}

func childRel(parentRel, name string) string {
	if parentRel == "." || parentRel == "" {
		return name
	}
	return parentRel + "/" + name
}
