// Package crawl fetches the pages of a recipient's website as markdown.
package crawl

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/draft-n-pray/internal/utils"
)

const (
	DefaultLimit         = 10
	DefaultPreviewLength = 500
)

// Page is a single crawled page.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Markdown    string `json:"markdown"`
}

// Crawler fetches up to limit pages starting at url.
type Crawler interface {
	Crawl(ctx context.Context, url string, limit int) ([]Page, error)
}

// Scraper fetches a single page.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
}

// Service is implemented by crawlers that can also scrape a single page.
type Service interface {
	Crawler
	Scraper
}

// Format renders crawled pages as a markdown report with page contents cut to previewLength runes.
func Format(url string, pages []Page, previewLength int) string {
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}

	var sb strings.Builder
	count := 0
	for _, page := range pages {
		content := strings.TrimSpace(page.Markdown)
		if content == "" {
			continue
		}
		count++
		if count == 1 {
			fmt.Fprintf(&sb, "## Website Crawl Results for: %s\n\n", url)
		}

		fmt.Fprintf(&sb, "### Page %d", count)
		if title := utils.NormalizeWhitespace(page.Title); title != "" {
			fmt.Fprintf(&sb, ": %s", title)
		}
		sb.WriteString("\n")
		if page.URL != "" {
			fmt.Fprintf(&sb, "Source: %s\n", page.URL)
		}
		sb.WriteString("\n")
		sb.WriteString(utils.Preview(content, previewLength))
		sb.WriteString("\n\n")
	}

	if count == 0 {
		return "## Website Crawl Results\n\nNo content found on the website."
	}
	return strings.TrimSpace(sb.String())
}

// Profile joins full page contents into one document for drafting.
func Profile(pages []Page) string {
	var parts []string
	for _, page := range pages {
		content := strings.TrimSpace(page.Markdown)
		if content == "" {
			continue
		}
		header := "<!-- " + page.URL + " -->"
		parts = append(parts, header+"\n"+content)
	}
	return strings.Join(parts, "\n\n")
}
