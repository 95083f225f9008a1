package crawl

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := Format("https://prof.example", []Page{{Markdown: "  "}}, 0)
		if got != "## Website Crawl Results\n\nNo content found on the website." {
			t.Fatalf("unexpected output: %q", got)
		}
	})

	t.Run("preview", func(t *testing.T) {
		pages := []Page{
			{URL: "https://prof.example", Title: "Ada\nByron", Markdown: strings.Repeat("x", 600)},
			{URL: "https://prof.example/empty"},
			{URL: "https://prof.example/pubs", Markdown: "short"},
		}

		got := Format("https://prof.example", pages, DefaultPreviewLength)

		for _, fragment := range []string{
			"## Website Crawl Results for: https://prof.example",
			"### Page 1: Ada Byron\nSource: https://prof.example\n\n" + strings.Repeat("x", 500) + "...",
			"### Page 2\nSource: https://prof.example/pubs\n\nshort",
		} {
			if !strings.Contains(got, fragment) {
				t.Fatalf("output is missing %q:\n%s", fragment, got)
			}
		}
		if strings.Contains(got, "### Page 3") {
			t.Fatalf("empty pages must not be numbered:\n%s", got)
		}
	})
}

func TestProfile(t *testing.T) {
	got := Profile([]Page{{URL: "a", Markdown: "one"}, {URL: "b"}, {URL: "c", Markdown: "two"}})
	want := "<!-- a -->\none\n\n<!-- c -->\ntwo"
	if got != want {
		t.Fatalf("unexpected profile: %q", got)
	}
}
