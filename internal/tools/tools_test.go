package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/spigell/draft-n-pray/internal/crawl"
	"github.com/spigell/draft-n-pray/internal/cv"
	"github.com/spigell/draft-n-pray/internal/knowledge"
	"github.com/spigell/draft-n-pray/internal/vectorstore"
)

type fakeKB struct {
	results   []vectorstore.Result
	err       error
	lastQuery string
	lastK     int
	stats     *knowledge.Stats
	ingested  string
}

func (f *fakeKB) Ingest(_ context.Context, path string) (*knowledge.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ingested = path
	f.stats = &knowledge.Stats{Source: path, Chunks: 4, Pages: 2}
	return f.stats, nil
}

func (f *fakeKB) Search(_ context.Context, query string, k int) ([]vectorstore.Result, error) {
	f.lastQuery, f.lastK = query, k
	return f.results, f.err
}

func (f *fakeKB) Stats() (knowledge.Stats, bool) {
	if f.stats == nil {
		return knowledge.Stats{}, false
	}
	return *f.stats, true
}

func (f *fakeKB) Debug(context.Context) string { return "## Vector Store Debug Information" }

type fakeWeb struct {
	pages     []crawl.Page
	err       error
	lastURL   string
	lastLimit int
}

func (f *fakeWeb) Crawl(_ context.Context, url string, limit int) ([]crawl.Page, error) {
	f.lastURL, f.lastLimit = url, limit
	return f.pages, f.err
}

func (f *fakeWeb) Scrape(_ context.Context, url string) (*crawl.Page, error) {
	f.lastURL = url
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return &crawl.Page{URL: url}, nil
	}
	return &f.pages[0], nil
}

func TestRegistry(t *testing.T) {
	registry := Defaults(&fakeKB{}, &fakeWeb{}, 0)

	want := []string{"search_cv", "crawl_website", "scrape_page", "load_cv", "cv_stats", "debug_knowledge_base"}
	var got []string
	for _, info := range registry.Describe() {
		got = append(got, info.Name)
		if info.Description == "" {
			t.Fatalf("tool %s has no description", info.Name)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tool order mismatch (-want +got):\n%s", diff)
	}

	genaiTools := registry.GenaiTools()
	if len(genaiTools) != 1 || len(genaiTools[0].FunctionDeclarations) != len(want) {
		t.Fatalf("unexpected genai tools: %+v", genaiTools)
	}

	if _, err := registry.Call(context.Background(), "send_email", nil); err == nil {
		t.Fatalf("expected error for unknown tool")
	}

	registry.Register(NewCVStats(&fakeKB{}))
	if len(registry.Describe()) != len(want) {
		t.Fatalf("re-registering a tool must replace it")
	}
}

func TestSearchCV(t *testing.T) {
	kb := &fakeKB{results: []vectorstore.Result{
		{Chunk: &cv.Chunk{Text: "Go developer"}, Score: 0.9},
		{Chunk: &cv.Chunk{Text: "Jazz musician"}, Score: 0.2},
	}}
	tool := NewSearchCV(kb)

	out, err := tool.Call(context.Background(), map[string]any{"query": " go ", "k": "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "## CV Search Results for: 'go'\n\n### Result 1\nGo developer\n\n### Result 2\nJazz musician"
	if out != want {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if kb.lastK != 2 || kb.lastQuery != "go" {
		t.Fatalf("unexpected search args: %q %d", kb.lastQuery, kb.lastK)
	}
}

func TestSearchCVMessages(t *testing.T) {
	cases := []struct {
		name    string
		kb      *fakeKB
		args    map[string]any
		want    string
		wantErr bool
	}{
		{name: "not initialized", kb: &fakeKB{err: knowledge.ErrNotInitialized}, args: map[string]any{"query": "go"}, want: notInitializedMessage},
		{name: "no results", kb: &fakeKB{}, args: map[string]any{"query": "go"}, want: "No relevant content found in your CV for this query."},
		{name: "missing query", kb: &fakeKB{}, args: map[string]any{}, wantErr: true},
		{name: "bad k", kb: &fakeKB{}, args: map[string]any{"query": "go", "k": "many"}, wantErr: true},
		{name: "search failure", kb: &fakeKB{err: errors.New("quota")}, args: map[string]any{"query": "go"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := NewSearchCV(tc.kb).Call(context.Background(), tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tc.want {
				t.Fatalf("unexpected output %q", out)
			}
		})
	}
}

func TestLoadCVAndStats(t *testing.T) {
	kb := &fakeKB{}
	ctx := context.Background()

	out, err := NewCVStats(kb).Call(ctx, nil)
	if err != nil || out != "CV knowledge base not initialized." {
		t.Fatalf("unexpected stats before load: %q %v", out, err)
	}

	out, err = NewLoadCV(kb).Call(ctx, map[string]any{"path": "cv.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "CV loaded from cv.pdf: 4 chunks from 2 pages." {
		t.Fatalf("unexpected output %q", out)
	}

	kb.stats.LoadedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	out, err = NewCVStats(kb).Call(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, fragment := range []string{"**Total Documents:** 4", "**Status:** Active", "**Loaded at:** 2025-01-02 03:04:05"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("stats are missing %q:\n%s", fragment, out)
		}
	}

	if _, err := NewLoadCV(kb).Call(ctx, map[string]any{}); err == nil {
		t.Fatalf("expected error without path")
	}
}

func TestCrawlWebsite(t *testing.T) {
	web := &fakeWeb{pages: []crawl.Page{{URL: "https://prof.example", Markdown: "# Ada"}}}
	tool := NewCrawlWebsite(web, 0)

	out, err := tool.Call(context.Background(), map[string]any{"url": "https://prof.example", "limit": 2.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "### Page 1") || web.lastLimit != 2 {
		t.Fatalf("unexpected output %q (limit %d)", out, web.lastLimit)
	}

	web.err = errors.New("timeout")
	if _, err := tool.Call(context.Background(), map[string]any{"url": "https://prof.example"}); err == nil {
		t.Fatalf("expected crawl error")
	}
}

func TestScrapePage(t *testing.T) {
	web := &fakeWeb{pages: []crawl.Page{{URL: "https://prof.example/pubs", Title: "Publications", Markdown: "Robust Graphs"}}}

	out, err := NewScrapePage(web).Call(context.Background(), map[string]any{"url": "https://prof.example/pubs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "## Page: Publications\nSource: https://prof.example/pubs\n\nRobust Graphs" {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = NewScrapePage(&fakeWeb{}).Call(context.Background(), map[string]any{"url": "https://empty.example"})
	if err != nil || out != "No content found on the page." {
		t.Fatalf("unexpected output for empty page: %q %v", out, err)
	}
}
