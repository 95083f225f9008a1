package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"github.com/spigell/draft-n-pray/internal/ai/gemini"
)

func TestDecodeConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	config, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}

	if config.HistoryFile != "drafts.yaml" {
		t.Fatalf("history file = %q", config.HistoryFile)
	}

	wantKnowledge := &KnowledgeConfig{ChunkSize: 1000, ChunkOverlap: 200, MinChunkLength: 20, TopK: 3}
	if diff := cmp.Diff(wantKnowledge, config.Knowledge); diff != "" {
		t.Fatalf("knowledge config mismatch (-want +got):\n%s", diff)
	}

	if config.Crawl.Provider != "auto" || config.Crawl.Limit != 10 || config.Crawl.PreviewLength != 500 {
		t.Fatalf("unexpected crawl config: %+v", config.Crawl)
	}
	if config.Crawl.Timeout != 3*time.Minute {
		t.Fatalf("crawl timeout = %s, want 3m", config.Crawl.Timeout)
	}
	if config.Crawl.Firecrawl == nil {
		t.Fatal("firecrawl config must not be nil")
	}

	gem := config.AI.Gemini
	if gem.Model != "gemini-2.5-flash" || gem.EmbeddingModel != "gemini-embedding-001" || gem.EmbeddingDimensions != 768 {
		t.Fatalf("unexpected gemini config: %+v", gem)
	}
	if gem.Temperature != float32(0.7) || gem.MaxRetries != 3 || gem.MaxLogLength != 200 {
		t.Fatalf("unexpected gemini tuning: %+v", gem)
	}

	if config.Agent.MaxSteps != 8 {
		t.Fatalf("max steps = %d, want 8", config.Agent.MaxSteps)
	}
	if config.Serve.Addr != "127.0.0.1:8080" {
		t.Fatalf("serve addr = %q", config.Serve.Addr)
	}
	if config.Draft == nil {
		t.Fatal("draft overrides must not be nil")
	}
}

func TestDecodeConfigFromFile(t *testing.T) {
	const file = `
cv-path: ~/cv.pdf
knowledge:
  chunk-size: 500
  exclude-patterns:
    - "(?i)references available"
  disabled-filters: [duplicates]
  cache-file: /tmp/embeddings.db
crawl:
  provider: firecrawl
  timeout: 45s
  firecrawl:
    api-key-file: /run/secrets/firecrawl
ai:
  minimum-fit-score: 60
draft:
  tone: Warm
  language: German
  signature: Dr. Jane Doe
  instructions: Mention my Kaggle ranking
`

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(file)); err != nil {
		t.Fatalf("read config: %v", err)
	}

	config, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}

	if config.CVPath != "~/cv.pdf" {
		t.Fatalf("cv path = %q", config.CVPath)
	}
	if config.Knowledge.ChunkSize != 500 || config.Knowledge.ChunkOverlap != 200 {
		t.Fatalf("chunking = %d/%d, want 500/200", config.Knowledge.ChunkSize, config.Knowledge.ChunkOverlap)
	}
	if diff := cmp.Diff([]string{"(?i)references available"}, config.Knowledge.ExcludePatterns); diff != "" {
		t.Fatalf("exclude patterns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"duplicates"}, config.Knowledge.DisabledFilters); diff != "" {
		t.Fatalf("disabled filters mismatch (-want +got):\n%s", diff)
	}
	if config.Crawl.Provider != "firecrawl" || config.Crawl.Timeout != 45*time.Second {
		t.Fatalf("unexpected crawl config: %+v", config.Crawl)
	}
	if config.Crawl.Firecrawl.APIKeyFile != "/run/secrets/firecrawl" {
		t.Fatalf("firecrawl key file = %q", config.Crawl.Firecrawl.APIKeyFile)
	}
	if config.AI.MinimumFitScore != 60 {
		t.Fatalf("minimum fit score = %v", config.AI.MinimumFitScore)
	}

	want := &gemini.PromptOverrides{
		Tone:             "Warm",
		Language:         "German",
		Signature:        "Dr. Jane Doe",
		UserInstructions: "Mention my Kaggle ranking",
	}
	if diff := cmp.Diff(want, config.Draft); diff != "" {
		t.Fatalf("draft overrides mismatch (-want +got):\n%s", diff)
	}
}
