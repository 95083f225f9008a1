package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/utils"
)

const (
	firecrawlURL        = "https://api.firecrawl.dev"
	userAgent           = "spigell/draft-n-pray"
	contentType         = "application/json"
	defaultPollInterval = 2 * time.Second
	maxErrorBody        = 512
)

var _ Service = (*Firecrawl)(nil)

// Firecrawl is a client of the hosted Firecrawl API.
type Firecrawl struct {
	token        string
	logger       *zap.Logger
	HTTPClient   *http.Client
	UserAgent    string
	APIURL       string
	PollInterval time.Duration
}

func NewFirecrawl(logger *zap.Logger, token string) *Firecrawl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Firecrawl{
		token:  token,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		UserAgent:    userAgent,
		APIURL:       firecrawlURL,
		PollInterval: defaultPollInterval,
	}
}

type crawlJob struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error"`
}

type crawlStatus struct {
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Data      []any  `json:"data"`
	Next      string `json:"next"`
	Error     string `json:"error"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error"`
}

type document struct {
	Markdown string         `mapstructure:"markdown"`
	Metadata map[string]any `mapstructure:"metadata"`
}

// Crawl starts a crawl job and waits for it to finish.
func (c *Firecrawl) Crawl(ctx context.Context, target string, limit int) ([]Page, error) {
	if strings.TrimSpace(target) == "" {
		return nil, errors.New("url is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	payload := map[string]any{
		"url":   target,
		"limit": limit,
		"scrapeOptions": map[string]any{
			"formats": []string{"markdown"},
		},
	}

	var job crawlJob
	if err := c.doJSON(ctx, http.MethodPost, c.APIURL+"/v1/crawl", payload, &job); err != nil {
		return nil, fmt.Errorf("start crawl: %w", err)
	}
	if !job.Success || job.ID == "" {
		return nil, fmt.Errorf("start crawl: %s", orUnknown(job.Error))
	}

	c.logger.Debug("crawl started", zap.String("url", target), zap.String("job_id", job.ID), zap.Int("limit", limit))

	status, err := c.wait(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	pages, err := decodeDocuments(status.Data)
	if err != nil {
		return nil, err
	}

	next := status.Next
	for next != "" && len(pages) < limit {
		c.logger.Debug("additional request needed", zap.String("next", next))

		var page crawlStatus
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("fetch crawl results: %w", err)
		}
		more, err := decodeDocuments(page.Data)
		if err != nil {
			return nil, err
		}
		pages = append(pages, more...)
		next = page.Next
	}

	if len(pages) > limit {
		pages = pages[:limit]
	}

	c.logger.Debug("crawl finished", zap.String("url", target), zap.Int("pages", len(pages)))
	return pages, nil
}

// wait polls the crawl job until it completes, fails or ctx is done.
func (c *Firecrawl) wait(ctx context.Context, id string) (*crawlStatus, error) {
	for {
		var status crawlStatus
		if err := c.doJSON(ctx, http.MethodGet, c.APIURL+"/v1/crawl/"+id, nil, &status); err != nil {
			return nil, fmt.Errorf("check crawl %s: %w", id, err)
		}

		switch status.Status {
		case "completed":
			return &status, nil
		case "failed", "cancelled":
			return nil, fmt.Errorf("crawl %s %s: %s", id, status.Status, orUnknown(status.Error))
		}

		c.logger.Debug("crawl in progress",
			zap.String("job_id", id),
			zap.String("status", status.Status),
			zap.Int("completed", status.Completed),
			zap.Int("total", status.Total),
		)

		if err := utils.WaitFor(ctx, c.PollInterval); err != nil {
			return nil, fmt.Errorf("wait for crawl %s: %w", id, err)
		}
	}
}

// Scrape fetches a single page as markdown.
func (c *Firecrawl) Scrape(ctx context.Context, target string) (*Page, error) {
	if strings.TrimSpace(target) == "" {
		return nil, errors.New("url is required")
	}

	payload := map[string]any{
		"url":     target,
		"formats": []string{"markdown"},
	}

	var resp scrapeResponse
	if err := c.doJSON(ctx, http.MethodPost, c.APIURL+"/v1/scrape", payload, &resp); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", target, err)
	}
	if !resp.Success || resp.Data == nil {
		return nil, fmt.Errorf("scrape %s: %s", target, orUnknown(resp.Error))
	}

	pages, err := decodeDocuments([]any{resp.Data})
	if err != nil {
		return nil, err
	}
	if pages[0].URL == "" {
		pages[0].URL = target
	}
	return &pages[0], nil
}

func decodeDocuments(data []any) ([]Page, error) {
	var docs []document
	if err := mapstructure.Decode(data, &docs); err != nil {
		return nil, fmt.Errorf("decode crawl documents: %w", err)
	}

	pages := make([]Page, 0, len(docs))
	for _, doc := range docs {
		page := Page{
			Markdown:    strings.TrimSpace(doc.Markdown),
			Title:       metadataString(doc.Metadata, "title"),
			Description: metadataString(doc.Metadata, "description"),
			URL:         metadataString(doc.Metadata, "sourceURL", "url"),
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func metadataString(metadata map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := metadata[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case []any:
			// og tags may come as lists.
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}

func (c *Firecrawl) doJSON(ctx context.Context, method, url string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("make request", zap.String("method", method), zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bad status: %s: %s", resp.Status, utils.TruncateForLog(string(data), maxErrorBody))
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}

func orUnknown(msg string) string {
	if strings.TrimSpace(msg) == "" {
		return "unknown error"
	}
	return msg
}
