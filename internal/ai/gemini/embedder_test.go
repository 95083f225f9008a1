package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeEmbedModels struct {
	mu      sync.Mutex
	batches []int
	tasks   []string
	dims    []int32
	fail    bool
}

func (f *fakeEmbedModels) EmbedContent(_ context.Context, _ string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(contents))
	f.tasks = append(f.tasks, config.TaskType)
	f.dims = append(f.dims, *config.OutputDimensionality)
	f.mu.Unlock()

	if f.fail {
		return nil, errors.New("embedding failed")
	}

	resp := &genai.EmbedContentResponse{}
	for _, content := range contents {
		var n float32
		fmt.Sscanf(content.Parts[0].Text, "text-%f", &n)
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: []float32{n, 1}})
	}
	return resp, nil
}

func TestEmbedderEmbedDocumentsBatchesAndKeepsOrder(t *testing.T) {
	models := &fakeEmbedModels{}
	embedder := newEmbedder(models, EmbedderOptions{BatchSize: 2, Workers: 2}, zap.NewNop())

	texts := []string{"text-0", "text-1", "text-2", "text-3", "text-4"}
	vectors, err := embedder.EmbedDocuments(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, vector := range vectors {
		if vector[0] != float32(i) {
			t.Fatalf("vector %d out of order: %v", i, vector)
		}
	}

	if len(models.batches) != 3 {
		t.Fatalf("expected 3 batches, got %v", models.batches)
	}
	for _, task := range models.tasks {
		if task != taskRetrievalDocument {
			t.Fatalf("unexpected task type %s", task)
		}
	}
	for _, dims := range models.dims {
		if dims != defaultEmbeddingDimensions {
			t.Fatalf("unexpected dimensions %d", dims)
		}
	}
}

func TestEmbedderEmbedQuery(t *testing.T) {
	models := &fakeEmbedModels{}
	embedder := newEmbedder(models, EmbedderOptions{Dimensions: 256}, zap.NewNop())

	vector, err := embedder.EmbedQuery(context.Background(), "text-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vector[0] != 7 {
		t.Fatalf("unexpected vector: %v", vector)
	}
	if models.tasks[0] != taskRetrievalQuery {
		t.Fatalf("expected query task type, got %s", models.tasks[0])
	}
	if embedder.Dimensions() != 256 || models.dims[0] != 256 {
		t.Fatalf("dimensions not propagated")
	}

	if _, err := embedder.EmbedQuery(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestEmbedderDefaults(t *testing.T) {
	embedder := newEmbedder(&fakeEmbedModels{}, EmbedderOptions{BatchSize: 500}, zap.NewNop())

	if embedder.Model() != defaultEmbeddingModel {
		t.Fatalf("unexpected model %s", embedder.Model())
	}
	if embedder.batchSize != defaultEmbeddingBatchSize {
		t.Fatalf("batch size must be capped, got %d", embedder.batchSize)
	}
}

func TestEmbedderPropagatesErrors(t *testing.T) {
	embedder := newEmbedder(&fakeEmbedModels{fail: true}, EmbedderOptions{MaxRetries: 1}, zap.NewNop())

	if _, err := embedder.EmbedDocuments(context.Background(), []string{"text-1"}); err == nil {
		t.Fatalf("expected error")
	}
}
