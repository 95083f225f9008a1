package filtering

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/cv"
)

type excludePatternsFilter struct {
	disabled bool
	reason   string
	raw      []string
	patterns []*regexp.Regexp
}

// NewExcludePatterns creates a filter that removes chunks matching user supplied
// regular expressions, e.g. a references section the user does not want quoted.
func NewExcludePatterns() Filter {
	return &excludePatternsFilter{}
}

func (f *excludePatternsFilter) Name() string { return "exclude_patterns" }

func (f *excludePatternsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludePatternsFilter) IsEnabled() bool { return !f.disabled }

func (f *excludePatternsFilter) Validate(cfg *Config) error {
	f.raw = nil
	f.patterns = nil
	if cfg == nil {
		return nil
	}

	for _, expr := range cfg.ExcludePatterns {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("compile pattern %q: %w", expr, err)
		}
		f.raw = append(f.raw, expr)
		f.patterns = append(f.patterns, re)
	}
	return nil
}

func (f *excludePatternsFilter) Apply(_ context.Context, deps Deps, chunks *cv.Chunks) (*cv.Chunks, Step, error) {
	initial := chunks.Len()
	if len(f.patterns) == 0 {
		return chunks, Step{Initial: initial, Left: initial}, nil
	}

	dropped := chunks.Remove(func(c *cv.Chunk) bool {
		for _, re := range f.patterns {
			if re.MatchString(c.Text) {
				return true
			}
		}
		return false
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding chunks by patterns",
			zap.Strings("patterns", f.raw),
			zap.Int("excluded_chunks", len(dropped)),
			zap.Int("chunks_left", chunks.Len()),
		)
	}

	return chunks, stepResult(initial, dropped, chunks), nil
}

func (f *excludePatternsFilter) Status() Status {
	details := map[string]string{}
	if len(f.raw) > 0 {
		details["patterns"] = strings.Join(f.raw, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
