package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/spigell/draft-n-pray/internal/knowledge"
	"github.com/spigell/draft-n-pray/internal/vectorstore"
)

const notInitializedMessage = "CV knowledge base not initialized. Please initialize with your CV first."

// KnowledgeBase is the part of knowledge.Base used by the tools.
type KnowledgeBase interface {
	Ingest(ctx context.Context, path string) (*knowledge.Stats, error)
	Search(ctx context.Context, query string, k int) ([]vectorstore.Result, error)
	Stats() (knowledge.Stats, bool)
	Debug(ctx context.Context) string
}

type SearchCV struct {
	kb KnowledgeBase
}

func NewSearchCV(kb KnowledgeBase) *SearchCV {
	return &SearchCV{kb: kb}
}

func (t *SearchCV) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "search_cv",
		Description: "Search the knowledge base (the user's CV) for content relevant to a query.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": stringProperty("What to look for in the CV, e.g. 'machine learning experience'."),
				"k":     integerProperty("Number of results to return (default 3)."),
			},
			Required: []string{"query"},
		},
	}
}

func (t *SearchCV) Call(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		Query string `mapstructure:"query"`
		K     int    `mapstructure:"k"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return "", errors.New("query is required")
	}

	results, err := t.kb.Search(ctx, in.Query, in.K)
	if errors.Is(err, knowledge.ErrNotInitialized) {
		return notInitializedMessage, nil
	}
	if err != nil {
		return "", fmt.Errorf("search cv: %w", err)
	}

	return FormatResults(in.Query, results), nil
}

// FormatResults renders search hits as markdown.
func FormatResults(query string, results []vectorstore.Result) string {
	if len(results) == 0 {
		return "No relevant content found in your CV for this query."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## CV Search Results for: '%s'\n\n", query)
	for i, result := range results {
		fmt.Fprintf(&sb, "### Result %d\n", i+1)
		sb.WriteString(result.Chunk.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

type LoadCV struct {
	kb KnowledgeBase
}

func NewLoadCV(kb KnowledgeBase) *LoadCV {
	return &LoadCV{kb: kb}
}

func (t *LoadCV) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "load_cv",
		Description: "Load a CV PDF into the knowledge base, replacing the previously loaded CV.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": stringProperty("Path to the CV PDF file."),
			},
			Required: []string{"path"},
		},
	}
}

func (t *LoadCV) Call(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		Path string `mapstructure:"path"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Path) == "" {
		return "", errors.New("path is required")
	}

	stats, err := t.kb.Ingest(ctx, strings.TrimSpace(in.Path))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("CV loaded from %s: %d chunks from %d pages.", stats.Source, stats.Chunks, stats.Pages), nil
}

type CVStats struct {
	kb KnowledgeBase
}

func NewCVStats(kb KnowledgeBase) *CVStats {
	return &CVStats{kb: kb}
}

func (t *CVStats) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "cv_stats",
		Description: "Get statistics about the CV knowledge base.",
	}
}

func (t *CVStats) Call(context.Context, map[string]any) (string, error) {
	stats, ok := t.kb.Stats()
	if !ok {
		return "CV knowledge base not initialized.", nil
	}
	return FormatStats(stats), nil
}

// FormatStats renders knowledge base statistics as markdown.
func FormatStats(stats knowledge.Stats) string {
	status := "Active"
	if stats.Chunks == 0 {
		status = "Empty"
	}

	var sb strings.Builder
	sb.WriteString("## CV Knowledge Base Stats\n\n")
	fmt.Fprintf(&sb, "**Total Documents:** %d\n", stats.Chunks)
	fmt.Fprintf(&sb, "**Status:** %s\n", status)
	fmt.Fprintf(&sb, "**Source:** %s\n", stats.Source)
	fmt.Fprintf(&sb, "**Pages:** %d\n", stats.Pages)
	fmt.Fprintf(&sb, "**Dropped chunks:** %d\n", stats.Dropped)
	fmt.Fprintf(&sb, "**Embedding model:** %s (%d dimensions)\n", stats.Model, stats.Dimensions)
	fmt.Fprintf(&sb, "**Loaded at:** %s", stats.LoadedAt.Format(time.DateTime))
	return sb.String()
}

type DebugKnowledgeBase struct {
	kb KnowledgeBase
}

func NewDebugKnowledgeBase(kb KnowledgeBase) *DebugKnowledgeBase {
	return &DebugKnowledgeBase{kb: kb}
}

func (t *DebugKnowledgeBase) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "debug_knowledge_base",
		Description: "Show diagnostic information about the vector store.",
	}
}

func (t *DebugKnowledgeBase) Call(ctx context.Context, _ map[string]any) (string, error) {
	return t.kb.Debug(ctx), nil
}
