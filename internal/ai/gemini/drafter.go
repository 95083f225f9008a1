package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/ai"
	"github.com/spigell/draft-n-pray/internal/logger"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultTone             = "Polite and concise"
	defaultLanguage         = "English"
	maxUserInstructionRunes = 500
	maxProfileRunes         = 20000
)

var (
	singleLineSpace = regexp.MustCompile(`\s+`)
	bracketReplacer = strings.NewReplacer("[", "(", "]", ")")
)

// PromptOverrides are user preferences injected into the draft prompt.
type PromptOverrides struct {
	Tone             string `mapstructure:"tone"`
	Language         string `mapstructure:"language"`
	Signature        string `mapstructure:"signature"`
	UserInstructions string `mapstructure:"instructions"`
}

// Drafter asks the model for a complete email draft in a single request.
type Drafter struct {
	generator contentGenerator
	minScore  float64
	overrides PromptOverrides
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Drafter = (*Drafter)(nil)

// NewDrafter creates a Drafter. minScore is a fit percentage below which Fit is forced to false.
func NewDrafter(generator contentGenerator, minScore float64, maxLogLength int, logger *zap.Logger) *Drafter {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLen
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Drafter{
		generator: generator,
		minScore:  minScore,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (d *Drafter) SetPromptOverrides(overrides PromptOverrides) {
	d.overrides = overrides
}

func (d *Drafter) Draft(ctx context.Context, req ai.DraftRequest) (*ai.Draft, error) {
	if d.generator == nil {
		return nil, errors.New("drafter has no generator")
	}
	if strings.TrimSpace(req.Profile) == "" {
		return nil, fmt.Errorf("recipient profile is empty for %s", req.URL)
	}

	prompt := buildPrompt(req, d.overrides)

	d.logger.Debug("draft request",
		zap.String("url", req.URL),
		zap.Int("cv_excerpts", len(req.CVExcerpts)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		logger.Preview("prompt_preview", prompt, d.maxLogLen),
	)

	raw, err := d.generator.GenerateContent(ctx, "", prompt)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("draft response",
		zap.String("url", req.URL),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		logger.Preview("response_preview", raw, d.maxLogLen),
	)

	draft, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if d.minScore > 0 && draft.FitScore < d.minScore {
		d.logger.Debug("set fit to false by score threshold",
			zap.String("url", req.URL),
			zap.Float64("score", draft.FitScore),
			zap.Float64("threshold", d.minScore),
		)
		draft.Fit = false
	}

	draft.Raw = raw
	return draft, nil
}

func buildPrompt(req ai.DraftRequest, overrides PromptOverrides) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Recipient page ({{URL}}):\n{{PROFILE}}\n\nCV excerpts:\n{{CV_EXCERPTS}}\n\nJSON Response:"
	}

	excerpts := make([]string, 0, len(req.CVExcerpts))
	for i, excerpt := range req.CVExcerpts {
		excerpt = strings.TrimSpace(excerpt)
		if excerpt == "" {
			continue
		}
		excerpts = append(excerpts, fmt.Sprintf("--- excerpt %d ---\n%s", i+1, excerpt))
	}
	cvBlock := "none"
	if len(excerpts) > 0 {
		cvBlock = strings.Join(excerpts, "\n\n")
	}

	profile := strings.TrimSpace(req.Profile)
	if utf8.RuneCountInString(profile) > maxProfileRunes {
		profile = string([]rune(profile)[:maxProfileRunes])
	}

	replacer := strings.NewReplacer(
		"{{TONE}}", orDefault(sanitizeSingleLine(overrides.Tone), defaultTone),
		"{{LANGUAGE}}", orDefault(sanitizeSingleLine(overrides.Language), defaultLanguage),
		"{{SIGNATURE}}", orDefault(sanitizeSingleLine(overrides.Signature), "none"),
		"{{USER_INSTRUCTIONS}}", sanitizeInstructions(overrides.UserInstructions),
		"{{URL}}", sanitizeSingleLine(req.URL),
		"{{PROFILE}}", profile,
		"{{CV_EXCERPTS}}", cvBlock,
	)
	return replacer.Replace(template)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// sanitizeSingleLine collapses whitespace and neutralizes section markers.
func sanitizeSingleLine(value string) string {
	value = singleLineSpace.ReplaceAllString(value, " ")
	return strings.TrimSpace(bracketReplacer.Replace(value))
}

// sanitizeInstructions renders free-form user text as an indented list limited to
// maxUserInstructionRunes runes of content.
func sanitizeInstructions(value string) string {
	var lines []string
	budget := maxUserInstructionRunes

	for _, line := range strings.Split(value, "\n") {
		line = sanitizeSingleLine(line)
		if line == "" {
			continue
		}
		if budget <= 0 {
			break
		}
		if n := utf8.RuneCountInString(line); n > budget {
			line = string([]rune(line)[:budget])
		}
		budget -= utf8.RuneCountInString(line)
		lines = append(lines, "  - "+line)
	}

	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}

func parseResponse(raw string) (*ai.Draft, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	var recipient ai.Recipient
	if rawRecipient, ok := data["recipient"]; ok && rawRecipient != nil {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           &recipient,
		})
		if err != nil {
			return nil, fmt.Errorf("create recipient decoder: %w", err)
		}
		if err := decoder.Decode(rawRecipient); err != nil {
			return nil, fmt.Errorf("decode recipient: %w", err)
		}
	}

	draft := &ai.Draft{
		Recipient:  recipient,
		Subject:    coerceString(data["subject"]),
		Body:       coerceString(data["body"]),
		FitScore:   normalizeScore(coerceFloat(data["fit_score"])),
		Fit:        coerceBool(data["fit"]),
		Reason:     coerceString(data["reason"]),
		WeakPoints: coerceStrings(data["weak_points"]),
	}

	if draft.Body == "" {
		return nil, errors.New("gemini response has no email body")
	}

	return draft, nil
}

// normalizeScore maps a model score to percent. Only fractions strictly
// below 1 are scaled, so a score of 1 stays 1%.
func normalizeScore(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 0 && score < 1:
		return score * 100
	case score > 100:
		return 100
	default:
		return score
	}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Models sometimes wrap the object into prose.
	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start != -1 && end > start {
			raw = raw[start : end+1]
		}
	}
	return raw
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				result = append(result, s)
			}
		}
		return result
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}
