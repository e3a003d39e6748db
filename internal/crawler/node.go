package crawler

import (
	"time"

	"github.com/justinlietz93/repoparser/internal/language"
)

// Kind distinguishes the two node types of the analyzed tree.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Node is one filesystem entry in the analyzed tree. A Node is built
// during traversal and not mutated once its subtree completes; it is
// owned by its parent (the root by the caller), with no back
// references.
//
// Children of a directory are sorted directories-first, then files,
// each group alphabetically, so repeated crawls of an unchanged tree
// produce identical structures.
type Node struct {
	Path     string // absolute path
	RelPath  string // forward-slash path relative to the root; "." for the root
	Name     string
	Kind     Kind
	Children []*Node

	Size     int64
	Binary   bool
	Language language.Tag
	Content  string // text files only
	ModTime  time.Time
	Symlink  bool

	// Warning carries a non-fatal annotation, e.g. a size-guard
	// trigger or a read failure. Empty for healthy nodes.
	Warning string
}

// IsDir reports whether the node represents a directory.
func (n *Node) IsDir() bool {
	return n.Kind == KindDirectory
}

// Walk visits n and every descendant in depth-first pre-order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// CountNodes returns the number of file and directory nodes in the
// subtree rooted at n, including n itself.
func (n *Node) CountNodes() (files, dirs int) {
	n.Walk(func(node *Node) {
		if node.IsDir() {
			dirs++
		} else {
			files++
		}
	})
	return files, dirs
}
