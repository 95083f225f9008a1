// Package filtering drops CV chunks that are not worth embedding.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/cv"
)

// Filter represents a single filtering step applied to chunks.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, chunks *cv.Chunks) (*cv.Chunks, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Name    string
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	MinChunkLength  int
	ExcludePatterns []string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Defaults returns the standard filter chain in execution order.
func Defaults() []Filter {
	return []Filter{
		NewShort(),
		NewDuplicates(),
		NewExcludePatterns(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Validate prepares the enabled filters for cfg.
func Validate(cfg *Config, steps []Filter) error {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// Run validates the enabled filters and then executes them sequentially.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, chunks *cv.Chunks) (*cv.Chunks, []Step, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if err := Validate(cfg, steps); err != nil {
		return nil, nil, err
	}

	results := make([]Step, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		if !step.IsEnabled() {
			deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, chunks)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
		info.Name = step.Name()

		deps.Logger.Debug("filter step",
			zap.String("name", info.Name),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		results = append(results, info)
		chunks = next
	}

	return chunks, results, nil
}

// Dropped sums the dropped chunks over all steps.
func Dropped(steps []Step) int {
	total := 0
	for _, step := range steps {
		total += step.Dropped
	}
	return total
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

func stepResult(initial int, dropped []string, chunks *cv.Chunks) Step {
	return Step{Initial: initial, Dropped: len(dropped), Left: chunks.Len()}
}
