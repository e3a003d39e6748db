package overview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinlietz93/repoparser/internal/crawler"
	"github.com/justinlietz93/repoparser/internal/tokens"
)

func heuristic(t *testing.T) tokens.Counter {
	t.Helper()
	c, err := tokens.NewCounter(tokens.Config{Scheme: tokens.SchemeHeuristic})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func sampleTree() *crawler.Node {
	return &crawler.Node{
		Path:    "/repo",
		RelPath: ".",
		Name:    "repo",
		Kind:    crawler.KindDirectory,
		Children: []*crawler.Node{
			{
				Path:    "/repo/src",
				RelPath: "src",
				Name:    "src",
				Kind:    crawler.KindDirectory,
				Children: []*crawler.Node{
					{
						Path:     "/repo/src/main.go",
						RelPath:  "src/main.go",
						Name:     "main.go",
						Kind:     crawler.KindFile,
						Language: "Go",
						Size:     13,
						Content:  "package main\n",
					},
				},
			},
			{
				Path:    "/repo/logo.png",
				RelPath: "logo.png",
				Name:    "logo.png",
				Kind:    crawler.KindFile,
				Size:    256,
				Binary:  true,
			},
		},
	}
}

func TestRenderDocumentShape(t *testing.T) {
	doc, report, err := Render(sampleTree(), Options{Counter: heuristic(t)})
	require.NoError(t, err)

	assert.Contains(t, doc, `<repository name="repo" path="/repo">`)
	assert.Contains(t, doc, `<directory path="src">`)
	assert.Contains(t, doc, `<file path="src/main.go" language="Go" size="13" tokens="4">`)
	assert.Contains(t, doc, "<content><![CDATA[package main\n]]></content>")
	assert.Contains(t, doc, `<file path="logo.png" size="256" binary="true" content="omitted"/>`)
	assert.True(t, strings.HasSuffix(doc, "</repository>\n"))

	assert.Equal(t, 2, report.TotalFiles)
	assert.Equal(t, 2, report.TotalDirs)
	assert.Equal(t, 4, report.TotalTokens)
	assert.Equal(t, len("package main\n"), report.TotalChars)

	// Binary file appears in the report with zero tokens.
	assert.Equal(t, 0, report.Files["logo.png"].Tokens)
}

func TestRenderDeterministic(t *testing.T) {
	first, _, err := Render(sampleTree(), Options{Counter: heuristic(t)})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		doc, _, err := Render(sampleTree(), Options{Counter: heuristic(t)})
		require.NoError(t, err)
		assert.Equal(t, first, doc)
	}
}

func TestRenderEscapesCDATATerminator(t *testing.T) {
	content := "data = \"]]>\"\nmore ]]> text"
	tree := &crawler.Node{
		RelPath: ".", Name: "r", Kind: crawler.KindDirectory,
		Children: []*crawler.Node{{
			RelPath: "tricky.txt", Name: "tricky.txt", Kind: crawler.KindFile,
			Size: int64(len(content)), Content: content,
		}},
	}

	doc, _, err := Render(tree, Options{Counter: heuristic(t)})
	require.NoError(t, err)

	// The raw terminator must never survive inside a content wrapper.
	body := doc[strings.Index(doc, "<content>")+len("<content>") : strings.Index(doc, "</content>")]
	assert.NotContains(t, strings.ReplaceAll(body, "]]]]><![CDATA[>", ""), "]]>"+"\"",
		"unescaped terminator would close the section early")
	assert.Contains(t, body, "]]]]><![CDATA[>")

	// Splitting round-trips: concatenating the CDATA sections yields
	// the original content.
	restored := strings.TrimSuffix(strings.TrimPrefix(body, "<![CDATA["), "]]>")
	restored = strings.ReplaceAll(restored, "]]]]><![CDATA[>", "]]>")
	assert.Equal(t, content, restored)
}

func TestRenderEmptyFile(t *testing.T) {
	tree := &crawler.Node{
		RelPath: ".", Name: "r", Kind: crawler.KindDirectory,
		Children: []*crawler.Node{{
			RelPath: "empty.txt", Name: "empty.txt", Kind: crawler.KindFile,
		}},
	}

	doc, report, err := Render(tree, Options{
		Counter: heuristic(t),
		Pricing: tokens.DefaultPricing(),
		Models:  []string{"gpt-4"},
	})
	require.NoError(t, err)

	assert.Contains(t, doc, `tokens="0"`)
	assert.Equal(t, 0, report.TotalTokens)
	assert.Zero(t, report.Costs["gpt-4"].Input)
	assert.Zero(t, report.Costs["gpt-4"].Output)
}

func TestRenderCostSummary(t *testing.T) {
	doc, report, err := Render(sampleTree(), Options{
		Counter: heuristic(t),
		Pricing: tokens.DefaultPricing(),
		Models:  []string{"gpt-4", "gpt-3.5-turbo"},
	})
	require.NoError(t, err)

	assert.Contains(t, doc, `<summary files="2" directories="2"`)
	assert.Contains(t, doc, `<cost model="gpt-4"`)
	assert.Contains(t, doc, `<cost model="gpt-3.5-turbo"`)

	// Summary cost equals the sum of per-file costs.
	var sum tokens.CostEstimate
	for _, stats := range report.Files {
		sum.Add(stats.Costs["gpt-4"])
	}
	assert.InDelta(t, sum.Input, report.Costs["gpt-4"].Input, 1e-6)
	assert.InDelta(t, sum.Output, report.Costs["gpt-4"].Output, 1e-6)
}

func TestRenderUnknownModelFails(t *testing.T) {
	_, _, err := Render(sampleTree(), Options{
		Counter: heuristic(t),
		Pricing: tokens.DefaultPricing(),
		Models:  []string{"gpt-4", "made-up-model"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, tokens.ErrUnknownModel)
}

func TestRenderWithoutCounter(t *testing.T) {
	doc, report, err := Render(sampleTree(), Options{})
	require.NoError(t, err)

	// File elements carry no token attribute; the summary still
	// reports a zero total.
	assert.Contains(t, doc, `<file path="src/main.go" language="Go" size="13">`)
	assert.NotContains(t, doc, `tokens="4"`)
	assert.Equal(t, 0, report.TotalTokens)
	assert.Contains(t, doc, "<content><![CDATA[package main\n]]></content>")
}

func TestRenderWarningAndSymlinkAttributes(t *testing.T) {
	tree := &crawler.Node{
		RelPath: ".", Name: "r", Kind: crawler.KindDirectory,
		Children: []*crawler.Node{
			{
				RelPath: "big.bin", Name: "big.bin", Kind: crawler.KindFile,
				Size: 999, Warning: "content omitted: file size 999 exceeds the configured limit",
			},
			{
				RelPath: "link", Name: "link", Kind: crawler.KindFile,
				Symlink: true,
			},
		},
	}

	doc, _, err := Render(tree, Options{Counter: heuristic(t)})
	require.NoError(t, err)

	assert.Contains(t, doc, `warning="content omitted: file size 999 exceeds the configured limit"`)
	assert.Contains(t, doc, `symlink="true"`)
	assert.NotContains(t, doc, `path="big.bin"`+">") // no content wrapper for omitted content
}

func TestRenderEscapesAttributeValues(t *testing.T) {
	tree := &crawler.Node{
		RelPath: ".", Name: `we"ird<repo>`, Kind: crawler.KindDirectory,
	}
	doc, _, err := Render(tree, Options{})
	require.NoError(t, err)
	assert.Contains(t, doc, `name="we&quot;ird&lt;repo&gt;"`)
}

func TestTreeString(t *testing.T) {
	out := TreeString(sampleTree())

	assert.Equal(t, "repo\n├── src/\n│   └── main.go\n└── logo.png (binary)\n", out)
}
