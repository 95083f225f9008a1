package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/cv"
)

type duplicatesFilter struct {
	disabled bool
	reason   string
}

// NewDuplicates creates a filter that keeps only the first occurrence of a chunk text.
// Repeated headers and footers on every page are the usual source of duplicates.
func NewDuplicates() Filter {
	return &duplicatesFilter{}
}

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *duplicatesFilter) IsEnabled() bool { return !f.disabled }

func (f *duplicatesFilter) Validate(*Config) error { return nil }

func (f *duplicatesFilter) Apply(_ context.Context, deps Deps, chunks *cv.Chunks) (*cv.Chunks, Step, error) {
	initial := chunks.Len()
	seen := make(map[string]struct{}, initial)
	dropped := chunks.Remove(func(c *cv.Chunk) bool {
		if _, ok := seen[c.ID]; ok {
			return true
		}
		seen[c.ID] = struct{}{}
		return false
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding duplicated chunks",
			zap.Int("excluded_chunks", len(dropped)),
			zap.Int("chunks_left", chunks.Len()),
		)
	}

	return chunks, stepResult(initial, dropped, chunks), nil
}

func (f *duplicatesFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
