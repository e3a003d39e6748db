package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// PageDoc is one fetched web page, converted to markdown.
type PageDoc struct {
	URL      string
	Markdown string
}

// IsWebURL reports whether input is an HTTP(S) URL.
func IsWebURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// FetchPages fetches startURL and, when maxDepth > 0, follows links
// found on each page up to maxDepth levels, skipping already-visited
// URLs. Fetch or conversion failures on individual pages are logged
// and skipped; only an invalid start URL is an error.
func FetchPages(ctx context.Context, startURL string, maxDepth int, logger *zap.Logger) ([]PageDoc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := url.Parse(startURL); err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", startURL, err)
	}
	f := &fetcher{logger: logger, visited: make(map[string]bool)}
	return f.fetch(ctx, startURL, 0, maxDepth), nil
}

type fetcher struct {
	logger  *zap.Logger
	visited map[string]bool
}

func (f *fetcher) fetch(ctx context.Context, pageURL string, depth, maxDepth int) []PageDoc {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		f.logger.Warn("skipping malformed URL", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	parsed.Fragment = ""
	clean := parsed.String()

	if depth > maxDepth || f.visited[clean] {
		return nil
	}
	f.visited[clean] = true
	f.logger.Debug("fetching page", zap.String("url", clean), zap.Int("depth", depth))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, clean, nil)
	if err != nil {
		f.logger.Warn("building request failed", zap.String("url", clean), zap.Error(err))
		return nil
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		f.logger.Warn("fetch failed", zap.String("url", clean), zap.Error(err))
		return nil
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		f.logger.Warn("fetch failed", zap.String("url", clean), zap.Int("status", res.StatusCode))
		return nil
	}
	if ct := strings.ToLower(res.Header.Get("Content-Type")); !strings.Contains(ct, "text/html") {
		f.logger.Debug("skipping non-HTML content", zap.String("url", clean), zap.String("contentType", ct))
		return nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		f.logger.Warn("reading response failed", zap.String("url", clean), zap.Error(err))
		return nil
	}

	var pages []PageDoc
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(string(body))
	if err != nil {
		f.logger.Warn("markdown conversion failed", zap.String("url", clean), zap.Error(err))
	} else {
		pages = append(pages, PageDoc{URL: clean, Markdown: markdown})
	}

	if depth < maxDepth {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
		if err != nil {
			f.logger.Warn("parsing HTML for links failed", zap.String("url", clean), zap.Error(err))
			return pages
		}
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			link, ok := s.Attr("href")
			if !ok || link == "" || strings.HasPrefix(link, "#") {
				return
			}
			lower := strings.ToLower(link)
			if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") {
				return
			}
			resolved, err := parsed.Parse(link)
			if err != nil {
				return
			}
			if resolved.Scheme != "http" && resolved.Scheme != "https" {
				return
			}
			pages = append(pages, f.fetch(ctx, resolved.String(), depth+1, maxDepth)...)
		})
	}
	return pages
}
