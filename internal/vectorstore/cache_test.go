package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "embeddings.db")

	cache, err := OpenCache(ctx, path)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}

	vectors := map[string][]float32{
		"h1": {0.25, -1.5, 3},
		"h2": {1, 2, 3},
	}
	if err := cache.Put(ctx, "gemini-embedding-001", 3, vectors); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cache, err = OpenCache(ctx, path)
	if err != nil {
		t.Fatalf("reopen cache: %v", err)
	}
	defer cache.Close()

	got, err := cache.Get(ctx, "gemini-embedding-001", 3, []string{"h1", "h2", "missing"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(vectors, got); diff != "" {
		t.Fatalf("unexpected vectors (-want +got):\n%s", diff)
	}

	other, err := cache.Get(ctx, "gemini-embedding-001", 768, []string{"h1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("vectors of another dimensionality must not be shared: %v", other)
	}

	n, err := cache.Len(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 cached vectors, got %d (%v)", n, err)
	}
}

func TestOpenCacheRequiresPath(t *testing.T) {
	if _, err := OpenCache(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
