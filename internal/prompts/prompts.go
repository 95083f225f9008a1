// Package prompts holds the instructions given to the assistant model.
package prompts

import (
	_ "embed"
	"strings"
)

//go:embed system.md
var system string

// System returns the system prompt of the conversational assistant.
func System() string {
	return strings.TrimSpace(system)
}

// WithExtra appends user supplied instructions to the system prompt.
func WithExtra(extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return System()
	}
	return System() + "\n\n---\nAdditional instructions from the user:\n" + extra
}
