package overview

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/jung-kurt/gofpdf"

	"github.com/justinlietz93/repoparser/internal/crawler"
)

const (
	pdfPageWidth  = 210 // A4 width in mm
	pdfMargin     = 10
	pdfLineHeight = 5
	pdfFontSize   = 9
	pdfTabWidth   = 4
)

// WritePDF exports the analyzed tree as a PDF: the tree listing first,
// then each text file with syntax highlighting, then the summary from
// the token report.
func WritePDF(root *crawler.Node, report *TokenReport, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()

	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}

	pdf.SetFont("Courier", "", pdfFontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(pdfPageWidth-2*pdfMargin, pdfLineHeight, TreeString(root), "", "L", false)

	root.Walk(func(node *crawler.Node) {
		if node.IsDir() || node.Symlink {
			return
		}

		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", pdfFontSize+1)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(pdfPageWidth-2*pdfMargin, pdfLineHeight, fmt.Sprintf("File: %s", node.RelPath), "", "L", false)

		if report != nil {
			if stats, ok := report.Files[node.RelPath]; ok {
				pdf.SetFont("Helvetica", "", pdfFontSize-1)
				pdf.MultiCell(pdfPageWidth-2*pdfMargin, pdfLineHeight, fmt.Sprintf("Tokens: %d", stats.Tokens), "", "L", false)
			}
		}
		pdf.Line(pdfMargin, pdf.GetY(), pdfPageWidth-pdfMargin, pdf.GetY())
		pdf.Ln(pdfLineHeight / 2)

		if node.Binary {
			pdf.SetFont("Courier", "I", pdfFontSize)
			pdf.MultiCell(pdfPageWidth-2*pdfMargin, pdfLineHeight, "(binary content omitted)", "", "L", false)
			return
		}
		if err := writeHighlighted(pdf, style, node); err != nil {
			pdf.SetFont("Courier", "", pdfFontSize)
			pdf.SetTextColor(0, 0, 0)
			pdf.MultiCell(pdfPageWidth-2*pdfMargin, pdfLineHeight, node.Content, "", "L", false)
		}
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", pdfFontSize+1)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(pdfPageWidth-2*pdfMargin, pdfLineHeight, "Summary", "", "L", false)
	pdf.Ln(pdfLineHeight / 2)

	pdf.SetFont("Helvetica", "", pdfFontSize)
	if report != nil {
		summary := fmt.Sprintf("Files: %d\nDirectories: %d\nTokens: %d", report.TotalFiles, report.TotalDirs, report.TotalTokens)
		for _, model := range sortedCostModels(report) {
			est := report.Costs[model]
			summary += fmt.Sprintf("\n%s: input $%s / output $%s", model, formatUSD(est.Input), formatUSD(est.Output))
		}
		pdf.MultiCell(pdfPageWidth-2*pdfMargin, pdfLineHeight, summary, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("saving PDF to %s: %w", path, err)
	}
	return nil
}

func sortedCostModels(report *TokenReport) []string {
	models := make([]string, 0, len(report.Costs))
	for m := range report.Costs {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// writeHighlighted renders one file's content token by token with the
// lexer chroma picks for its filename or content.
func writeHighlighted(pdf *gofpdf.Fpdf, style *chroma.Style, node *crawler.Node) error {
	lexer := lexers.Match(node.Name)
	if lexer == nil {
		lexer = lexers.Analyse(node.Content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, node.Content)
	if err != nil {
		return fmt.Errorf("tokenizing %s for highlighting: %w", node.RelPath, err)
	}

	pdf.SetFont("Courier", "", pdfFontSize)
	for token := iterator(); token != chroma.EOF; token = iterator() {
		entry := style.Get(token.Type)
		fontStyle := ""
		if entry.Bold == chroma.Yes {
			fontStyle += "B"
		}
		if entry.Italic == chroma.Yes {
			fontStyle += "I"
		}
		pdf.SetFontStyle(fontStyle)

		if entry.Colour.IsSet() {
			pdf.SetTextColor(int(entry.Colour.Red()), int(entry.Colour.Green()), int(entry.Colour.Blue()))
		} else {
			pdf.SetTextColor(0, 0, 0)
		}

		value := strings.ReplaceAll(token.Value, "\t", strings.Repeat(" ", pdfTabWidth))
		pdf.Write(pdfLineHeight, value)
	}
	pdf.Ln(-1)
	return nil
}
