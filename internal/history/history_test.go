package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileAppendAndFind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "drafts.yaml")
	file := Open(path)

	entries, err := file.Entries()
	if err != nil || len(entries) != 0 {
		t.Fatalf("missing file must be empty, got %v %v", entries, err)
	}

	drafted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := file.Append(Entry{URL: "https://prof.example/", Recipient: "Ada", FitScore: 80, DraftedAt: drafted}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := file.Append(Entry{URL: "https://other.example", Recipient: "Bob"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	entry, ok, err := file.Find("http://www.PROF.example")
	if err != nil || !ok {
		t.Fatalf("expected entry to be found: %v", err)
	}
	if entry.Recipient != "Ada" || entry.FitScore != 80 || !entry.DraftedAt.Equal(drafted) {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	if _, ok, _ := file.Find("https://unknown.example"); ok {
		t.Fatalf("unexpected match")
	}

	entries, err = Open(path).Entries()
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if len(entries) != 2 || entries[1].DraftedAt.IsZero() {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	for _, key := range []string{"drafts:", "fit-score: 80", "drafted-at:"} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("file is missing %q:\n%s", key, data)
		}
	}
}

func TestFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.yaml")
	if err := os.WriteFile(path, []byte("drafts: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Open(path).Entries(); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := Open(path).Append(Entry{URL: "x"}); err == nil {
		t.Fatalf("append must not overwrite a broken file")
	}
}
