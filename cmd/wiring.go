package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/draft-n-pray/internal/agent"
	"github.com/spigell/draft-n-pray/internal/ai"
	"github.com/spigell/draft-n-pray/internal/ai/gemini"
	"github.com/spigell/draft-n-pray/internal/crawl"
	"github.com/spigell/draft-n-pray/internal/filtering"
	"github.com/spigell/draft-n-pray/internal/knowledge"
	"github.com/spigell/draft-n-pray/internal/logger"
	"github.com/spigell/draft-n-pray/internal/prompts"
	"github.com/spigell/draft-n-pray/internal/secrets"
	"github.com/spigell/draft-n-pray/internal/tools"
	"github.com/spigell/draft-n-pray/internal/vectorstore"
)

const (
	envGoogleAPIKey    = "GOOGLE_API_KEY"
	envFirecrawlAPIKey = "FIRECRAWL_API_KEY"

	crawlerFirecrawl = "firecrawl"
	crawlerLocal     = "local"
)

// assistant bundles everything the commands need to talk to the model.
type assistant struct {
	cfg       *Config
	logger    *zap.Logger
	client    *genai.Client
	generator *gemini.Generator
	embedder  *gemini.Embedder
	kb        *knowledge.Base
	cache     *vectorstore.Cache
	web       crawl.Service
	crawler   string
	tools     *tools.Registry
}

// newLogger builds the application logger from the persistent flags.
// Interactive commands log to stderr and only show warnings unless debug is on.
func newLogger(interactive bool) (*zap.Logger, error) {
	return logger.New(logger.Options{
		JSON:   viper.GetBool("json"),
		Debug:  viper.GetBool("debug"),
		Output: "stderr",
		File:   viper.GetString("log-file"),
		Quiet:  interactive && !viper.GetBool("debug"),
	})
}

func geminiKeySource(cfg *GeminiConfig) secrets.Source {
	return secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   envGoogleAPIKey,
	}
}

func firecrawlKeySource(cfg *FirecrawlConfig) secrets.Source {
	return secrets.Source{
		Name:  "firecrawl api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   envFirecrawlAPIKey,
	}
}

func newAssistant(ctx context.Context, cfg *Config, log *zap.Logger) (*assistant, error) {
	apiKey, err := secrets.Load(geminiKeySource(cfg.AI.Gemini))
	if err != nil {
		return nil, fmt.Errorf("%w (or set ai.gemini.api-key-file)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	temperature := cfg.AI.Gemini.Temperature
	generator, err := gemini.NewGenerator(client, gemini.GeneratorOptions{
		Model:        cfg.AI.Gemini.Model,
		Temperature:  &temperature,
		MaxRetries:   cfg.AI.Gemini.MaxRetries,
		MaxLogLength: cfg.AI.Gemini.MaxLogLength,
	}, log)
	if err != nil {
		return nil, err
	}

	embedder, err := gemini.NewEmbedder(client, gemini.EmbedderOptions{
		Model:      cfg.AI.Gemini.EmbeddingModel,
		Dimensions: cfg.AI.Gemini.EmbeddingDimensions,
		MaxRetries: cfg.AI.Gemini.MaxRetries,
	}, log)
	if err != nil {
		return nil, err
	}

	kb, cache, err := newKnowledgeBase(ctx, cfg.Knowledge, embedder, log)
	if err != nil {
		return nil, err
	}

	web, crawler, err := newCrawler(cfg.Crawl, log)
	if err != nil {
		cache.Close()
		return nil, err
	}

	log.Info("assistant initialized",
		zap.String("model", generator.Model()),
		zap.String("embedding_model", embedder.Model()),
		zap.String("crawler", crawler),
	)

	return &assistant{
		cfg:       cfg,
		logger:    log,
		client:    client,
		generator: generator,
		embedder:  embedder,
		kb:        kb,
		cache:     cache,
		web:       web,
		crawler:   crawler,
		tools:     tools.Defaults(kb, web, cfg.Crawl.PreviewLength),
	}, nil
}

func (a *assistant) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("closing embedding cache", zap.Error(err))
	}
}

func newKnowledgeBase(ctx context.Context, cfg *KnowledgeConfig, embedder ai.Embedder, log *zap.Logger) (*knowledge.Base, *vectorstore.Cache, error) {
	var cache *vectorstore.Cache
	if file := strings.TrimSpace(cfg.CacheFile); file != "" {
		var err error
		cache, err = vectorstore.OpenCache(ctx, file)
		if err != nil {
			return nil, nil, fmt.Errorf("open embedding cache: %w", err)
		}
	}

	filters := filtering.Defaults()
	for _, name := range cfg.DisabledFilters {
		filtering.DisableByName(filters, strings.TrimSpace(name), "disabled in configuration")
	}

	kb, err := knowledge.New(embedder, knowledge.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Filter: filtering.Config{
			MinChunkLength:  cfg.MinChunkLength,
			ExcludePatterns: cfg.ExcludePatterns,
		},
		Filters: filters,
		Cache:   cache,
	}, log)
	if err != nil {
		cache.Close()
		return nil, nil, err
	}

	return kb, cache, nil
}

// newCrawler picks the crawl backend. auto prefers Firecrawl when a key is configured.
func newCrawler(cfg *CrawlConfig, log *zap.Logger) (crawl.Service, string, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	source := firecrawlKeySource(cfg.Firecrawl)

	switch provider {
	case "", "auto":
		if !secrets.Has(source) {
			return crawl.NewLocal(log), crawlerLocal, nil
		}
	case crawlerLocal:
		return crawl.NewLocal(log), crawlerLocal, nil
	case crawlerFirecrawl:
	default:
		return nil, "", fmt.Errorf("unsupported crawl provider: %s", cfg.Provider)
	}

	token, err := secrets.Load(source)
	if err != nil {
		return nil, "", fmt.Errorf("%w (or set crawl.firecrawl.api-key-file)", err)
	}

	client := crawl.NewFirecrawl(log, token)
	if url := strings.TrimSpace(cfg.Firecrawl.URL); url != "" {
		client.APIURL = strings.TrimSuffix(url, "/")
	}
	return client, crawlerFirecrawl, nil
}

func (a *assistant) newAgent() *agent.Agent {
	return agent.New(a.generator, a.tools, agent.NewSessions(), agent.Options{
		SystemPrompt: prompts.WithExtra(a.cfg.Agent.Instructions),
		MaxSteps:     a.cfg.Agent.MaxSteps,
		MaxLogLength: a.cfg.AI.Gemini.MaxLogLength,
	}, a.logger)
}

func (a *assistant) newDrafter() *gemini.Drafter {
	minScore := a.cfg.AI.MinimumFitScore
	if minScore < 0 {
		minScore = 0
	}

	drafter := gemini.NewDrafter(a.generator, minScore, a.cfg.AI.Gemini.MaxLogLength,
		logger.WithAI(a.logger, gemini.Provider, a.generator.Model()).With(zap.Float64("minimum_fit_score", minScore)),
	)
	drafter.SetPromptOverrides(*a.cfg.Draft)
	return drafter
}

// cvPath returns the first non-empty candidate path.
func cvPath(candidates ...string) string {
	for _, candidate := range candidates {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
