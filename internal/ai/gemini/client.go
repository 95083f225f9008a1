package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/draft-n-pray/internal/logger"
)

const (
	Provider           = "gemini"
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.7
	defaultMaxRetries  = 3
	defaultMaxLogLen   = 200
)

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewClient creates a Google GenAI client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return client, nil
}

// GeneratorOptions configures a Generator. Zero values fall back to defaults.
type GeneratorOptions struct {
	Model        string
	Temperature  *float32
	MaxRetries   int
	MaxLogLength int
}

// Generator wraps the Gemini content API with retries and request logging.
type Generator struct {
	models      contentModels
	model       string
	temperature float32
	maxRetries  int
	maxLogLen   int
	logger      *zap.Logger
}

// NewGenerator creates a Generator backed by the given client.
func NewGenerator(client *genai.Client, opts GeneratorOptions, log *zap.Logger) (*Generator, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	return newGenerator(client.Models, opts, log), nil
}

func newGenerator(models contentModels, opts GeneratorOptions, log *zap.Logger) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	temperature := float32(defaultTemperature)
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLen
	}

	return &Generator{
		models:      models,
		model:       model,
		temperature: temperature,
		maxRetries:  retries,
		maxLogLen:   maxLogLen,
		logger:      logger.WithAI(log, Provider, model),
	}
}

// Generate sends contents to the model. The configured temperature is applied
// unless config already sets one.
func (g *Generator) Generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini generator is not initialized")
	}
	if len(contents) == 0 {
		return nil, errors.New("contents must not be empty")
	}

	cfg := &genai.GenerateContentConfig{}
	if config != nil {
		copied := *config
		cfg = &copied
	}
	if cfg.Temperature == nil {
		temperature := g.temperature
		cfg.Temperature = &temperature
	}

	g.logger.Debug("gemini generate content request",
		zap.Int("contents", len(contents)),
		zap.Int("tools", len(cfg.Tools)),
		logger.Preview("last_message_preview", contentText(contents[len(contents)-1]), g.maxLogLen),
	)

	resp, err := withRetries(ctx, g.maxRetries, g.logger, func() (*genai.GenerateContentResponse, error) {
		return g.models.GenerateContent(ctx, g.model, contents, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("function_calls", len(resp.FunctionCalls())),
		logger.Preview("response_preview", ResponseText(resp), g.maxLogLen),
	)

	return resp, nil
}

// GenerateContent sends a single message with a system instruction and returns the textual answer.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("prompt must not be empty")
	}

	var cfg *genai.GenerateContentConfig
	if system = strings.TrimSpace(system); system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := g.Generate(ctx, []*genai.Content{genai.NewContentFromText(message, genai.RoleUser)}, cfg)
	if err != nil {
		return "", err
	}

	output := ResponseText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// ResponseText joins the text parts of every candidate, skipping thoughts.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

func contentText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var parts []string
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.Text != "":
			parts = append(parts, part.Text)
		case part.FunctionResponse != nil:
			parts = append(parts, "function response: "+part.FunctionResponse.Name)
		case part.FunctionCall != nil:
			parts = append(parts, "function call: "+part.FunctionCall.Name)
		}
	}
	return strings.Join(parts, " ")
}
