package crawler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gitignore "github.com/monochromegane/go-gitignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinlietz93/repoparser/internal/ignore"
	"github.com/justinlietz93/repoparser/internal/language"
)

func writeFile(t *testing.T, root string, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

// findNode resolves a forward-slash relative path inside the tree.
func findNode(root *Node, rel string) *Node {
	if rel == "." {
		return root
	}
	var found *Node
	root.Walk(func(n *Node) {
		if n.RelPath == rel {
			found = n
		}
	})
	return found
}

func TestCrawlIgnoresConfiguredDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.txt", []byte("hello"))
	writeFile(t, root, ".git/config", []byte("[core]\n"))

	rules := ignore.NewRuleSet([]string{".git"}, nil)
	tree, errs, err := Crawl(context.Background(), root, Options{Rules: rules})
	require.NoError(t, err)
	assert.Empty(t, errs)

	main := findNode(tree, "src/main.txt")
	require.NotNil(t, main)
	assert.Equal(t, "hello", main.Content)
	assert.Equal(t, int64(5), main.Size)
	assert.False(t, main.Binary)

	assert.Nil(t, findNode(tree, ".git"))
	assert.Nil(t, findNode(tree, ".git/config"))

	files, dirs := tree.CountNodes()
	assert.Equal(t, 1, files)
	assert.Equal(t, 2, dirs) // root + src
}

func TestCrawlChildOrdering(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "zeta.txt", []byte("z"))
	writeFile(t, root, "alpha.txt", []byte("a"))
	writeFile(t, root, "beta/inner.txt", []byte("b"))
	writeFile(t, root, "Acme/inner.txt", []byte("c"))

	tree, errs, err := Crawl(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Empty(t, errs)

	// Directories first, then files, each group alphabetically and
	// case-insensitive.
	var names []string
	for _, child := range tree.Children {
		names = append(names, child.Name)
	}
	assert.Equal(t, []string{"Acme", "beta", "alpha.txt", "zeta.txt"}, names)
}

func TestCrawlKeepsEmptyFilteredDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "logs/app.log", []byte("line"))
	writeFile(t, root, "logs/other.log", []byte("line"))
	writeFile(t, root, "main.go", []byte("package main\n"))

	rules := ignore.NewRuleSet(nil, []string{"*.log"})
	tree, errs, err := Crawl(context.Background(), root, Options{Rules: rules})
	require.NoError(t, err)
	assert.Empty(t, errs)

	logs := findNode(tree, "logs")
	require.NotNil(t, logs, "filtered-empty directory must stay in the tree")
	assert.True(t, logs.IsDir())
	assert.Empty(t, logs.Children)
}

func TestCrawlBinaryFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "logo.png", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01})

	tree, errs, err := Crawl(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Empty(t, errs)

	logo := findNode(tree, "logo.png")
	require.NotNil(t, logo)
	assert.True(t, logo.Binary)
	assert.Empty(t, logo.Content)
	assert.Equal(t, int64(6), logo.Size)
}

func TestCrawlSymlinkIsLeaf(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real/data.txt", []byte("data"))
	linkPath := filepath.Join(root, "link")
	if err := os.Symlink(filepath.Join(root, "real"), linkPath); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	tree, errs, err := Crawl(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Empty(t, errs)

	link := findNode(tree, "link")
	require.NotNil(t, link)
	assert.True(t, link.Symlink)
	assert.Equal(t, KindFile, link.Kind)
	assert.Empty(t, link.Children)
	assert.Nil(t, findNode(tree, "link/data.txt"), "symlinked directory must not be traversed")

	// The real directory is still walked normally.
	require.NotNil(t, findNode(tree, "real/data.txt"))
}

func TestCrawlUnreadableFileIsRecovered(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	writeFile(t, root, "open.txt", []byte("ok"))
	writeFile(t, root, "secret.txt", []byte("no"))
	require.NoError(t, os.Chmod(filepath.Join(root, "secret.txt"), 0o000))

	tree, errs, err := Crawl(context.Background(), root, Options{})
	require.NoError(t, err)

	require.Len(t, errs, 1)
	assert.Equal(t, "secret.txt", errs[0].Path)
	assert.Equal(t, ReasonPermission, errs[0].Reason)

	secret := findNode(tree, "secret.txt")
	require.NotNil(t, secret, "failed node still appears in the tree")
	assert.Empty(t, secret.Content)
	assert.NotEmpty(t, secret.Warning)

	// Sibling unaffected.
	open := findNode(tree, "open.txt")
	require.NotNil(t, open)
	assert.Equal(t, "ok", open.Content)
}

func TestCrawlInvalidRoot(t *testing.T) {
	_, _, err := Crawl(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.ErrorIs(t, err, ErrInvalidRoot)

	root := t.TempDir()
	writeFile(t, root, "file.txt", []byte("x"))
	_, _, err = Crawl(context.Background(), filepath.Join(root, "file.txt"), Options{})
	assert.ErrorIs(t, err, ErrInvalidRoot)
}

func TestCrawlCancellation(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		writeFile(t, root, name+"/file.txt", []byte(name))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tree, errs, err := Crawl(ctx, root, Options{})
	assert.ErrorIs(t, err, ErrCancelled)
	require.NotNil(t, tree, "partial tree is returned on cancellation")

	var cancelled bool
	for _, e := range errs {
		if e.Reason == ReasonCancelled {
			cancelled = true
		}
	}
	assert.True(t, cancelled, "error sequence carries the cancellation marker")
}

func TestCrawlSizeGuards(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", []byte(strings.Repeat("y", 64)))
	writeFile(t, root, "small.txt", []byte("tiny"))

	tree, errs, err := Crawl(context.Background(), root, Options{
		MaxFileSize:   16,
		MaxDirEntries: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, errs, "size guards warn, they do not error")

	assert.NotEmpty(t, tree.Warning, "root exceeds the entry-count guard")

	big := findNode(tree, "big.txt")
	require.NotNil(t, big)
	assert.NotEmpty(t, big.Warning)
	assert.Empty(t, big.Content)
	assert.Equal(t, int64(64), big.Size)

	small := findNode(tree, "small.txt")
	require.NotNil(t, small)
	assert.Equal(t, "tiny", small.Content)
}

func TestCrawlGitignoreOverlay(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", []byte("package keep\n"))
	writeFile(t, root, "drop.gen.go", []byte("package drop\n"))

	matcher := gitignore.NewGitIgnoreFromReader(root, strings.NewReader("*.gen.go\n"))
	tree, errs, err := Crawl(context.Background(), root, Options{Gitignore: matcher})
	require.NoError(t, err)
	assert.Empty(t, errs)

	assert.NotNil(t, findNode(tree, "keep.go"))
	assert.Nil(t, findNode(tree, "drop.gen.go"))
}

func TestCrawlDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.go", []byte("package a\n"))
	writeFile(t, root, "src/b.go", []byte("package b\n"))
	writeFile(t, root, "docs/readme.md", []byte("# docs\n"))

	collect := func() []string {
		tree, errs, err := Crawl(context.Background(), root, Options{})
		require.NoError(t, err)
		require.Empty(t, errs)
		var rels []string
		tree.Walk(func(n *Node) { rels = append(rels, n.RelPath) })
		return rels
	}

	first := collect()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, collect())
	}
}

func TestCrawlDetectsLanguage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", []byte("package main\n"))

	tree, _, err := Crawl(context.Background(), root, Options{Langs: language.Default()})
	require.NoError(t, err)

	main := findNode(tree, "main.go")
	require.NotNil(t, main)
	assert.Equal(t, language.Tag("Go"), main.Language)
}
