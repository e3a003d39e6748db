// Package overview renders an analyzed tree into the nested overview
// document handed to language models, accumulating per-file token and
// cost statistics along the way.
package overview

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/justinlietz93/repoparser/internal/crawler"
	"github.com/justinlietz93/repoparser/internal/tokens"
)

// Options configures one Render call.
type Options struct {
	// Counter computes per-file token counts. Nil disables token
	// counting; token attributes are then omitted from the document.
	Counter tokens.Counter

	// Pricing and Models drive the cost section of the summary. Every
	// model listed must exist in the table; a missing entry fails the
	// whole render before any output is produced.
	Pricing tokens.PricingTable
	Models  []string

	Logger *zap.Logger
}

// FileStats is the per-file record of the token report.
type FileStats struct {
	Chars  int
	Tokens int
	Costs  map[string]tokens.CostEstimate
}

// TokenReport aggregates the statistics collected while rendering.
// The per-model totals are plain sums of the per-file estimates, so
// they are independent of traversal order.
type TokenReport struct {
	Files map[string]FileStats // keyed by relative path

	TotalFiles  int
	TotalDirs   int
	TotalChars  int
	TotalTokens int
	Costs       map[string]tokens.CostEstimate
}

// Render serializes the tree into the overview document and returns it
// together with the token report. Output is deterministic: the same
// tree renders to byte-identical text on every call.
func Render(root *crawler.Node, opts Options) (string, *TokenReport, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	for _, model := range opts.Models {
		if _, ok := opts.Pricing[model]; !ok {
			return "", nil, fmt.Errorf("%w: %q", tokens.ErrUnknownModel, model)
		}
	}

	r := &renderer{
		opts: opts,
		report: &TokenReport{
			Files: make(map[string]FileStats),
			Costs: make(map[string]tokens.CostEstimate),
		},
	}

	var b strings.Builder
	b.WriteString(`<repository name="` + escapeAttr(root.Name) + `" path="` + escapeAttr(root.Path) + `">` + "\n")
	r.report.TotalDirs++
	for _, child := range root.Children {
		r.writeNode(&b, child, 1)
	}
	r.writeSummary(&b, 1)
	b.WriteString("</repository>\n")

	opts.Logger.Debug("overview rendered",
		zap.Int("files", r.report.TotalFiles),
		zap.Int("directories", r.report.TotalDirs),
		zap.Int("tokens", r.report.TotalTokens))
	return b.String(), r.report, nil
}

type renderer struct {
	opts   Options
	report *TokenReport
}

func (r *renderer) writeNode(b *strings.Builder, node *crawler.Node, depth int) {
	pad := strings.Repeat("  ", depth)

	if node.IsDir() {
		r.report.TotalDirs++
		if len(node.Children) == 0 {
			b.WriteString(pad + `<directory path="` + escapeAttr(node.RelPath) + `"` + warningAttr(node) + "/>\n")
			return
		}
		b.WriteString(pad + `<directory path="` + escapeAttr(node.RelPath) + `"` + warningAttr(node) + ">\n")
		for _, child := range node.Children {
			r.writeNode(b, child, depth+1)
		}
		b.WriteString(pad + "</directory>\n")
		return
	}

	r.report.TotalFiles++
	stats := FileStats{Costs: make(map[string]tokens.CostEstimate)}
	if !node.Binary && !node.Symlink {
		stats.Chars = len(node.Content)
		if r.opts.Counter != nil {
			stats.Tokens = r.opts.Counter.Count(node.Content)
		}
	}
	for _, model := range r.opts.Models {
		// Model presence was validated up front; the estimate cannot
		// fail here.
		est, _ := r.opts.Pricing.Cost(model, stats.Tokens)
		stats.Costs[model] = est
		total := r.report.Costs[model]
		total.Add(est)
		r.report.Costs[model] = total
	}
	r.report.Files[node.RelPath] = stats
	r.report.TotalChars += stats.Chars
	r.report.TotalTokens += stats.Tokens

	attrs := `path="` + escapeAttr(node.RelPath) + `"`
	if node.Language != "" {
		attrs += ` language="` + escapeAttr(string(node.Language)) + `"`
	}
	attrs += ` size="` + strconv.FormatInt(node.Size, 10) + `"`
	if r.opts.Counter != nil && !node.Binary && !node.Symlink {
		attrs += ` tokens="` + strconv.Itoa(stats.Tokens) + `"`
	}

	switch {
	case node.Symlink:
		b.WriteString(pad + "<file " + attrs + ` symlink="true"` + warningAttr(node) + "/>\n")
	case node.Binary:
		// Binary content never enters the document, only the marker
		// that it was left out.
		b.WriteString(pad + "<file " + attrs + ` binary="true" content="omitted"` + warningAttr(node) + "/>\n")
	case node.Warning != "" && node.Content == "":
		b.WriteString(pad + "<file " + attrs + warningAttr(node) + "/>\n")
	default:
		b.WriteString(pad + "<file " + attrs + warningAttr(node) + ">\n")
		b.WriteString(pad + "  <content>" + wrapCDATA(node.Content) + "</content>\n")
		b.WriteString(pad + "</file>\n")
	}
}

func (r *renderer) writeSummary(b *strings.Builder, depth int) {
	pad := strings.Repeat("  ", depth)
	b.WriteString(pad + `<summary files="` + strconv.Itoa(r.report.TotalFiles) +
		`" directories="` + strconv.Itoa(r.report.TotalDirs) +
		`" characters="` + strconv.Itoa(r.report.TotalChars) +
		`" tokens="` + strconv.Itoa(r.report.TotalTokens) + `"`)
	if len(r.opts.Models) == 0 {
		b.WriteString("/>\n")
		return
	}
	b.WriteString(">\n")
	for _, model := range r.opts.Models {
		est := r.report.Costs[model]
		b.WriteString(pad + `  <cost model="` + escapeAttr(model) +
			`" input="` + formatUSD(est.Input) +
			`" output="` + formatUSD(est.Output) + `"/>` + "\n")
	}
	b.WriteString(pad + "</summary>\n")
}

func warningAttr(node *crawler.Node) string {
	if node.Warning == "" {
		return ""
	}
	return ` warning="` + escapeAttr(node.Warning) + `"`
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\n", "&#10;",
)

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// wrapCDATA wraps content so that no literal terminator inside it can
// close the section early: every "]]>" is split across two adjacent
// CDATA sections.
func wrapCDATA(content string) string {
	return "<![CDATA[" + strings.ReplaceAll(content, "]]>", "]]]]><![CDATA[>") + "]]>"
}

func formatUSD(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
