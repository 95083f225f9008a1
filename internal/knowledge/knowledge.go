// Package knowledge keeps the embedded CV and answers similarity queries against it.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/ai"
	"github.com/spigell/draft-n-pray/internal/cv"
	"github.com/spigell/draft-n-pray/internal/filtering"
	"github.com/spigell/draft-n-pray/internal/vectorstore"
)

var ErrNotInitialized = errors.New("cv knowledge base not initialized")

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	Filter       filtering.Config
	// Filters defaults to filtering.Defaults().
	Filters []filtering.Filter
	// Cache is optional. Vectors found there are not sent to the embedder.
	Cache *vectorstore.Cache
}

// Stats describes the currently loaded CV.
type Stats struct {
	Source     string           `json:"source"`
	Pages      int              `json:"pages"`
	Chunks     int              `json:"chunks"`
	Dropped    int              `json:"dropped"`
	Cached     int              `json:"cached"`
	Embedded   int              `json:"embedded"`
	Model      string           `json:"model"`
	Dimensions int              `json:"dimensions"`
	LoadedAt   time.Time        `json:"loaded_at"`
	Steps      []filtering.Step `json:"steps,omitempty"`
}

// Base is the CV knowledge base. It is safe for concurrent use.
type Base struct {
	embedder  ai.Embedder
	cache     *vectorstore.Cache
	splitter  *cv.Splitter
	filterCfg filtering.Config
	filters   []filtering.Filter
	logger    *zap.Logger
	load      func(path string) ([]cv.Document, error)

	ingestMu sync.Mutex
	// filterMu guards the filter state, which is rewritten on every ingest.
	filterMu sync.RWMutex

	mu    sync.RWMutex
	store *vectorstore.Store
	stats *Stats
}

func New(embedder ai.Embedder, opts Options, logger *zap.Logger) (*Base, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	size, overlap := opts.ChunkSize, opts.ChunkOverlap
	if size <= 0 {
		size = cv.DefaultChunkSize
	}
	if overlap < 0 {
		overlap = cv.DefaultChunkOverlap
	}
	splitter := cv.NewSplitter(size, overlap)
	if err := splitter.Validate(); err != nil {
		return nil, err
	}

	filters := opts.Filters
	if filters == nil {
		filters = filtering.Defaults()
	}
	filterCfg := opts.Filter
	if err := filtering.Validate(&filterCfg, filters); err != nil {
		return nil, fmt.Errorf("invalid filter configuration: %w", err)
	}

	return &Base{
		embedder:  embedder,
		cache:     opts.Cache,
		splitter:  splitter,
		filterCfg: opts.Filter,
		filters:   filters,
		logger:    logger,
		load:      cv.LoadPDF,
	}, nil
}

// Ingest loads the PDF at path and replaces the current contents of the knowledge base.
// On failure the previously loaded CV stays available.
func (b *Base) Ingest(ctx context.Context, path string) (*Stats, error) {
	return b.IngestAs(ctx, path, path)
}

// IngestAs works like Ingest but records source instead of path in the statistics.
// It is used for uploads stored in temporary files.
func (b *Base) IngestAs(ctx context.Context, path, source string) (*Stats, error) {
	if path == "" {
		return nil, errors.New("cv path is empty")
	}
	if source == "" {
		source = path
	}

	b.logger.Info("loading cv", zap.String("path", path), zap.String("source", source))

	docs, err := b.load(path)
	if err != nil {
		return nil, fmt.Errorf("load cv %s: %w", filepath.Base(source), err)
	}

	return b.IngestDocuments(ctx, source, docs)
}

// IngestDocuments chunks, filters and embeds already extracted documents.
func (b *Base) IngestDocuments(ctx context.Context, source string, docs []cv.Document) (*Stats, error) {
	b.ingestMu.Lock()
	defer b.ingestMu.Unlock()

	chunks, err := b.splitter.SplitDocuments(docs)
	if err != nil {
		return nil, fmt.Errorf("split cv: %w", err)
	}
	if chunks.Len() == 0 {
		return nil, cv.ErrNoContent
	}
	total := chunks.Len()

	cfg := b.filterCfg
	b.filterMu.Lock()
	chunks, steps, err := filtering.Run(ctx, &cfg, filtering.Deps{Logger: b.logger}, b.filters, chunks)
	b.filterMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("filter chunks: %w", err)
	}
	if chunks.Len() == 0 {
		return nil, fmt.Errorf("all %d chunks were filtered out: %w", total, cv.ErrNoContent)
	}

	entries, cached, embedded, err := b.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	store := vectorstore.New()
	if err := store.Add(entries...); err != nil {
		return nil, fmt.Errorf("build vector store: %w", err)
	}

	stats := &Stats{
		Source:     source,
		Pages:      chunks.Pages(),
		Chunks:     store.Len(),
		Dropped:    filtering.Dropped(steps),
		Cached:     cached,
		Embedded:   embedded,
		Model:      b.embedder.Model(),
		Dimensions: store.Dimensions(),
		LoadedAt:   time.Now(),
		Steps:      steps,
	}

	b.mu.Lock()
	b.store = store
	b.stats = stats
	b.mu.Unlock()

	b.logger.Info("cv loaded",
		zap.String("source", source),
		zap.Int("pages", stats.Pages),
		zap.Int("chunks", stats.Chunks),
		zap.Int("dropped", stats.Dropped),
		zap.Int("cached", stats.Cached),
	)

	copied := *stats
	return &copied, nil
}

// embed returns store entries for chunks, taking vectors from the cache where possible.
// It also reports how many chunks came from the cache and how many texts were sent to the embedder.
func (b *Base) embed(ctx context.Context, chunks *cv.Chunks) ([]vectorstore.Entry, int, int, error) {
	model, dims := b.embedder.Model(), b.embedder.Dimensions()

	vectors := make(map[string][]float32, chunks.Len())
	if b.cache != nil {
		ids := make([]string, 0, chunks.Len())
		for _, chunk := range chunks.Items {
			ids = append(ids, chunk.ID)
		}
		found, err := b.cache.Get(ctx, model, dims, ids)
		if err != nil {
			b.logger.Warn("embedding cache lookup failed", zap.Error(err))
		} else {
			vectors = found
		}
	}

	var (
		missingIDs   []string
		missingTexts []string
		seen         = make(map[string]struct{})
	)
	cached := 0
	for _, chunk := range chunks.Items {
		if _, ok := vectors[chunk.ID]; ok {
			cached++
			continue
		}
		if _, ok := seen[chunk.ID]; ok {
			continue
		}
		seen[chunk.ID] = struct{}{}
		missingIDs = append(missingIDs, chunk.ID)
		missingTexts = append(missingTexts, chunk.Text)
	}

	if len(missingTexts) > 0 {
		embedded, err := b.embedder.EmbedDocuments(ctx, missingTexts)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("embed cv chunks: %w", err)
		}
		if len(embedded) != len(missingTexts) {
			return nil, 0, 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embedded), len(missingTexts))
		}

		fresh := make(map[string][]float32, len(embedded))
		for i, id := range missingIDs {
			fresh[id] = embedded[i]
			vectors[id] = embedded[i]
		}

		if b.cache != nil {
			if err := b.cache.Put(ctx, model, dims, fresh); err != nil {
				b.logger.Warn("embedding cache update failed", zap.Error(err))
			}
		}
	}

	entries := make([]vectorstore.Entry, 0, chunks.Len())
	for _, chunk := range chunks.Items {
		entries = append(entries, vectorstore.Entry{Chunk: chunk, Vector: vectors[chunk.ID]})
	}
	return entries, cached, len(missingTexts), nil
}

// Search returns up to k chunks most similar to query.
func (b *Base) Search(ctx context.Context, query string, k int) ([]vectorstore.Result, error) {
	store := b.current()
	if store == nil {
		return nil, ErrNotInitialized
	}

	vector, err := b.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	return store.Search(vector, k)
}

// Stats returns a copy of the current statistics and false when nothing is loaded.
func (b *Base) Stats() (Stats, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stats == nil {
		return Stats{}, false
	}
	return *b.stats, true
}

func (b *Base) Ready() bool {
	return b.current() != nil
}

// Filters reports the configured chunk filters.
func (b *Base) Filters() []filtering.Status {
	b.filterMu.RLock()
	defer b.filterMu.RUnlock()
	return filtering.Describe(b.filters)
}

func (b *Base) current() *vectorstore.Store {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store
}
