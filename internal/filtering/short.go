package filtering

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/cv"
)

// DefaultMinChunkLength is used when the configuration does not set a length.
const DefaultMinChunkLength = 20

type shortFilter struct {
	disabled  bool
	reason    string
	minLength int
}

// NewShort creates a filter that removes chunks too short to carry meaning,
// such as stray page numbers or a lonely section header.
func NewShort() Filter {
	return &shortFilter{}
}

func (f *shortFilter) Name() string { return "short" }

func (f *shortFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *shortFilter) IsEnabled() bool { return !f.disabled }

func (f *shortFilter) Validate(cfg *Config) error {
	f.minLength = DefaultMinChunkLength
	if cfg != nil && cfg.MinChunkLength > 0 {
		f.minLength = cfg.MinChunkLength
	}
	return nil
}

func (f *shortFilter) Apply(_ context.Context, deps Deps, chunks *cv.Chunks) (*cv.Chunks, Step, error) {
	initial := chunks.Len()
	dropped := chunks.Remove(func(c *cv.Chunk) bool {
		return utf8.RuneCountInString(strings.TrimSpace(c.Text)) < f.minLength
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding short chunks",
			zap.Int("min_length", f.minLength),
			zap.Int("excluded_chunks", len(dropped)),
			zap.Int("chunks_left", chunks.Len()),
		)
	}

	return chunks, stepResult(initial, dropped, chunks), nil
}

func (f *shortFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_length": strconv.Itoa(f.minLength)},
	}
}
