package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/utils"
)

const defaultMaxPageBytes = 2 << 20 // 2MB

var _ Service = (*Local)(nil)

// Local crawls a site directly over HTTP. Only pages of the start host are visited.
type Local struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	MaxBytes   int64
}

func NewLocal(logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{
		logger:     logger,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		UserAgent:  userAgent,
		MaxBytes:   defaultMaxPageBytes,
	}
}

// Crawl visits pages breadth-first starting at target.
// Pages that fail to load are skipped unless it is the start page.
func (l *Local) Crawl(ctx context.Context, target string, limit int) ([]Page, error) {
	start, err := parseTarget(target)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	queue := []*url.URL{start}
	seen := map[string]struct{}{canonical(start): {}}
	var pages []Page

	for len(queue) > 0 && len(pages) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]

		page, links, err := l.fetch(ctx, current)
		if err != nil {
			if len(pages) == 0 && current == start {
				return nil, err
			}
			l.logger.Debug("skip page", zap.String("url", current.String()), zap.Error(err))
			continue
		}
		pages = append(pages, *page)

		for _, link := range links {
			if link.Host != start.Host {
				continue
			}
			key := canonical(link)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			queue = append(queue, link)
		}
	}

	l.logger.Debug("crawl finished", zap.String("url", target), zap.Int("pages", len(pages)))
	return pages, nil
}

func (l *Local) Scrape(ctx context.Context, target string) (*Page, error) {
	u, err := parseTarget(target)
	if err != nil {
		return nil, err
	}
	page, _, err := l.fetch(ctx, u)
	return page, err
}

func (l *Local) fetch(ctx context.Context, target *url.URL) (*Page, []*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", l.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	l.logger.Debug("make request", zap.String("url", target.String()))

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch %s: bad status: %s", target, resp.Status)
	}
	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && !strings.Contains(mediaType, "html") {
		return nil, nil, fmt.Errorf("fetch %s: unsupported content type %s", target, mediaType)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, l.MaxBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	base := resp.Request.URL
	page := &Page{
		URL:         base.String(),
		Title:       utils.NormalizeWhitespace(doc.Find("title").First().Text()),
		Description: strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
		Markdown:    toMarkdown(doc),
	}

	return page, extractLinks(doc, base), nil
}

// toMarkdown keeps headings, paragraphs and list items in document order.
func toMarkdown(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li").Each(func(_ int, sel *goquery.Selection) {
		// list items with nested paragraphs are rendered by the paragraphs.
		if goquery.NodeName(sel) == "li" && sel.Find("p").Length() > 0 {
			return
		}
		text := utils.NormalizeWhitespace(sel.Text())
		if text == "" {
			return
		}
		switch name := goquery.NodeName(sel); name {
		case "h1", "h2", "h3", "h4":
			lines = append(lines, strings.Repeat("#", int(name[1]-'0'))+" "+text)
		case "li":
			lines = append(lines, "- "+text)
		default:
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n\n")
}

func extractLinks(doc *goquery.Document, base *url.URL) []*url.URL {
	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		link := base.ResolveReference(ref)
		if link.Scheme != "http" && link.Scheme != "https" {
			return
		}
		link.Fragment = ""
		links = append(links, link)
	})
	return links
}

func parseTarget(target string) (*url.URL, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("url is required")
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", target)
	}
	return u, nil
}

func canonical(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Path = strings.TrimSuffix(c.Path, "/")
	return c.String()
}
