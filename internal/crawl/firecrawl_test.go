package crawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func newTestFirecrawl(t *testing.T, handler http.Handler) *Firecrawl {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewFirecrawl(zap.NewNop(), "fc-test")
	client.APIURL = srv.URL
	client.PollInterval = time.Millisecond
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestFirecrawlCrawl(t *testing.T) {
	var polls atomic.Int32
	var srvURL string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/crawl", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer fc-test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["url"] != "https://prof.example" || body["limit"] != float64(3) {
			t.Errorf("unexpected crawl payload: %v", body)
		}
		writeJSON(t, w, map[string]any{"success": true, "id": "job-1"})
	})
	mux.HandleFunc("GET /v1/crawl/job-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			writeJSON(t, w, map[string]any{"status": "scraping", "total": 2, "completed": 1})
			return
		}
		writeJSON(t, w, map[string]any{
			"status": "completed",
			"data": []any{
				map[string]any{
					"markdown": "# Prof. Ada\nGraph learning",
					"metadata": map[string]any{"title": "Ada", "description": "Homepage", "sourceURL": "https://prof.example"},
				},
			},
			"next": srvURL + "/v1/crawl/job-1/page2",
		})
	})
	mux.HandleFunc("GET /v1/crawl/job-1/page2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"status": "completed",
			"data": []any{
				map[string]any{"markdown": "Publications", "metadata": map[string]any{"url": "https://prof.example/pubs"}},
			},
		})
	})

	client := newTestFirecrawl(t, mux)
	srvURL = client.APIURL

	pages, err := client.Crawl(context.Background(), "https://prof.example", 3)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	want := []Page{
		{URL: "https://prof.example", Title: "Ada", Description: "Homepage", Markdown: "# Prof. Ada\nGraph learning"},
		{URL: "https://prof.example/pubs", Markdown: "Publications"},
	}
	if diff := cmp.Diff(want, pages); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}
	if polls.Load() != 2 {
		t.Fatalf("expected 2 status polls, got %d", polls.Load())
	}
}

func TestFirecrawlCrawlFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/crawl", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"success": true, "id": "job-2"})
	})
	mux.HandleFunc("GET /v1/crawl/job-2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"status": "failed", "error": "blocked by robots.txt"})
	})

	client := newTestFirecrawl(t, mux)

	_, err := client.Crawl(context.Background(), "https://prof.example", 0)
	if err == nil || !strings.Contains(err.Error(), "blocked by robots.txt") {
		t.Fatalf("expected failure reason in error, got %v", err)
	}
}

func TestFirecrawlBadStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/crawl", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
	})

	client := newTestFirecrawl(t, mux)

	_, err := client.Crawl(context.Background(), "https://prof.example", 1)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected bad status error, got %v", err)
	}
}

func TestFirecrawlCrawlHonorsContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/crawl", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"success": true, "id": "job-3"})
	})
	mux.HandleFunc("GET /v1/crawl/job-3", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"status": "scraping"})
	})

	client := newTestFirecrawl(t, mux)
	client.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Crawl(ctx, "https://prof.example", 1); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestFirecrawlScrape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/scrape", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"success": true,
			"data": map[string]any{
				"markdown": "## Research\nRobust graphs",
				"metadata": map[string]any{"title": []any{"Research"}},
			},
		})
	})

	client := newTestFirecrawl(t, mux)

	page, err := client.Scrape(context.Background(), "https://prof.example/research")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	want := &Page{URL: "https://prof.example/research", Title: "Research", Markdown: "## Research\nRobust graphs"}
	if diff := cmp.Diff(want, page); diff != "" {
		t.Fatalf("page mismatch (-want +got):\n%s", diff)
	}
}
