package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/spigell/draft-n-pray/internal/ai"
	"github.com/spigell/draft-n-pray/internal/logger"
)

const (
	defaultEmbeddingModel      = "gemini-embedding-001"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingBatchSize  = 100
	defaultEmbeddingWorkers    = 4

	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

type embedModels interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type EmbedderOptions struct {
	Model      string
	Dimensions int
	BatchSize  int
	Workers    int
	MaxRetries int
}

// Embedder computes retrieval embeddings with the Gemini embedding API.
type Embedder struct {
	models     embedModels
	model      string
	dimensions int
	batchSize  int
	workers    int
	maxRetries int
	logger     *zap.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func NewEmbedder(client *genai.Client, opts EmbedderOptions, log *zap.Logger) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	return newEmbedder(client.Models, opts, log), nil
}

func newEmbedder(models embedModels, opts EmbedderOptions, log *zap.Logger) *Embedder {
	e := &Embedder{
		models:     models,
		model:      strings.TrimSpace(opts.Model),
		dimensions: opts.Dimensions,
		batchSize:  opts.BatchSize,
		workers:    opts.Workers,
		maxRetries: opts.MaxRetries,
	}
	if e.model == "" {
		e.model = defaultEmbeddingModel
	}
	if e.dimensions <= 0 {
		e.dimensions = defaultEmbeddingDimensions
	}
	if e.batchSize <= 0 || e.batchSize > defaultEmbeddingBatchSize {
		e.batchSize = defaultEmbeddingBatchSize
	}
	if e.workers <= 0 {
		e.workers = defaultEmbeddingWorkers
	}
	if e.maxRetries <= 0 {
		e.maxRetries = defaultMaxRetries
	}
	e.logger = logger.WithAI(log, Provider, e.model)
	return e
}

func (e *Embedder) Model() string   { return e.model }
func (e *Embedder) Dimensions() int { return e.dimensions }

// EmbedDocuments embeds texts in batches. The result keeps the order of texts.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			batch, err := e.embed(gctx, texts[start:end], taskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed documents %d-%d: %w", start, end-1, err)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Debug("documents embedded", zap.Int("count", len(texts)), zap.Int("dimensions", e.dimensions))
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("query must not be empty")
	}
	vectors, err := e.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vectors[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	dims := int32(e.dimensions)
	cfg := &genai.EmbedContentConfig{
		TaskType:             task,
		OutputDimensionality: &dims,
	}

	resp, err := withRetries(ctx, e.maxRetries, e.logger, func() (*genai.EmbedContentResponse, error) {
		return e.models.EmbedContent(ctx, e.model, contents, cfg)
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range resp.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vectors[i] = embedding.Values
	}
	return vectors, nil
}
