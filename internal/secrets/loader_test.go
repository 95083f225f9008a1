package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DRAFT_TEST_KEY", " from-env ")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr string
	}{
		{name: "file wins", src: Source{File: keyFile, Value: "inline", Env: "DRAFT_TEST_KEY"}, want: "from-file"},
		{name: "value before env", src: Source{Value: " inline ", Env: "DRAFT_TEST_KEY"}, want: "inline"},
		{name: "env fallback", src: Source{Env: "DRAFT_TEST_KEY"}, want: "from-env"},
		{name: "empty file", src: Source{Name: "gemini api key", File: emptyFile}, wantErr: "gemini api key file"},
		{name: "missing env", src: Source{Name: "firecrawl api key", Env: "DRAFT_TEST_MISSING"}, wantErr: "set DRAFT_TEST_MISSING"},
		{name: "nothing", src: Source{}, wantErr: "secret is not configured"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Load(tc.src)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestHas(t *testing.T) {
	t.Setenv("DRAFT_TEST_PRESENT", "x")

	if !Has(Source{Env: "DRAFT_TEST_PRESENT"}) {
		t.Fatal("expected env secret to be detected")
	}
	if Has(Source{Env: "DRAFT_TEST_ABSENT"}) {
		t.Fatal("did not expect absent env secret to be detected")
	}
	if !Has(Source{File: "/does/not/matter"}) {
		t.Fatal("expected file source to count as configured")
	}
}
