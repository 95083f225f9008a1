package prompts

import (
	"strings"
	"testing"
)

func TestSystem(t *testing.T) {
	prompt := System()
	for _, tool := range []string{"crawl_website", "search_cv", "scrape_page"} {
		if !strings.Contains(prompt, tool) {
			t.Fatalf("system prompt does not mention %s", tool)
		}
	}
	if prompt != strings.TrimSpace(prompt) {
		t.Fatalf("system prompt must be trimmed")
	}
}

func TestWithExtra(t *testing.T) {
	if WithExtra("  ") != System() {
		t.Fatalf("empty extra must not change the prompt")
	}
	got := WithExtra("Write in German.")
	if !strings.HasPrefix(got, System()) || !strings.HasSuffix(got, "Additional instructions from the user:\nWrite in German.") {
		t.Fatalf("unexpected prompt: %q", got)
	}
}
