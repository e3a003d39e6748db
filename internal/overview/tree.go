package overview

import (
	"strings"

	"github.com/justinlietz93/repoparser/internal/crawler"
)

// TreeString renders the analyzed tree as a plain box-drawing listing
// for terminal display. Ordering follows the Node child ordering, so
// the output is as deterministic as the document itself.
func TreeString(root *crawler.Node) string {
	var b strings.Builder
	b.WriteString(root.Name)
	b.WriteString("\n")
	writeTreeLevel(&b, root.Children, "")
	return b.String()
}

func writeTreeLevel(b *strings.Builder, children []*crawler.Node, prefix string) {
	for i, node := range children {
		connector := "├── "
		childPrefix := prefix + "│   "
		if i == len(children)-1 {
			connector = "└── "
			childPrefix = prefix + "    "
		}

		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(node.Name)
		switch {
		case node.IsDir():
			b.WriteString("/")
		case node.Symlink:
			b.WriteString(" -> (symlink)")
		case node.Binary:
			b.WriteString(" (binary)")
		}
		b.WriteString("\n")

		if node.IsDir() && len(node.Children) > 0 {
			writeTreeLevel(b, node.Children, childPrefix)
		}
	}
}
