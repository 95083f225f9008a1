package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spigell/draft-n-pray/internal/crawl"
	"github.com/spigell/draft-n-pray/internal/utils"
)

const maxScrapeRunes = 8000

type CrawlWebsite struct {
	crawler       crawl.Crawler
	previewLength int
}

func NewCrawlWebsite(crawler crawl.Crawler, previewLength int) *CrawlWebsite {
	return &CrawlWebsite{crawler: crawler, previewLength: previewLength}
}

func (t *CrawlWebsite) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "crawl_website",
		Description: "Crawl a website and return the content of its pages.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"url":   stringProperty("The URL of the website to crawl."),
				"limit": integerProperty(fmt.Sprintf("Maximum number of pages to crawl (default %d).", crawl.DefaultLimit)),
			},
			Required: []string{"url"},
		},
	}
}

func (t *CrawlWebsite) Call(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		URL   string `mapstructure:"url"`
		Limit int    `mapstructure:"limit"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return "", errors.New("url is required")
	}

	pages, err := t.crawler.Crawl(ctx, in.URL, in.Limit)
	if err != nil {
		return "", fmt.Errorf("crawl website: %w", err)
	}

	return crawl.Format(in.URL, pages, t.previewLength), nil
}

type ScrapePage struct {
	scraper crawl.Scraper
}

func NewScrapePage(scraper crawl.Scraper) *ScrapePage {
	return &ScrapePage{scraper: scraper}
}

func (t *ScrapePage) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "scrape_page",
		Description: "Fetch the full content of a single web page, e.g. a publication list.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"url": stringProperty("The URL of the page."),
			},
			Required: []string{"url"},
		},
	}
}

func (t *ScrapePage) Call(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		URL string `mapstructure:"url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return "", errors.New("url is required")
	}

	page, err := t.scraper.Scrape(ctx, in.URL)
	if err != nil {
		return "", fmt.Errorf("scrape page: %w", err)
	}
	if strings.TrimSpace(page.Markdown) == "" {
		return "No content found on the page.", nil
	}

	var sb strings.Builder
	sb.WriteString("## Page")
	if page.Title != "" {
		sb.WriteString(": " + page.Title)
	}
	fmt.Fprintf(&sb, "\nSource: %s\n\n", page.URL)
	sb.WriteString(utils.Preview(page.Markdown, maxScrapeRunes))
	return sb.String(), nil
}
