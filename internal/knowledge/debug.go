package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Debug renders a markdown report about the store and runs a test search.
func (b *Base) Debug(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("## Vector Store Debug Information\n\n")

	store := b.current()
	if store == nil {
		sb.WriteString("Vector store is empty: no CV has been loaded.\n")
		return sb.String()
	}

	stats, _ := b.Stats()

	sb.WriteString("### Vector Store\n")
	fmt.Fprintf(&sb, "- Source: %s\n", stats.Source)
	fmt.Fprintf(&sb, "- Embedding model: %s\n", stats.Model)
	fmt.Fprintf(&sb, "- Dimensions: %d\n", store.Dimensions())
	fmt.Fprintf(&sb, "- Loaded at: %s\n\n", stats.LoadedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&sb, "### Document Count: %d\n\n", store.Len())

	sb.WriteString("### Filters\n")
	for _, status := range b.Filters() {
		state := "enabled"
		if !status.Enabled {
			state = "disabled"
			if status.Reason != "" {
				state += " (" + status.Reason + ")"
			}
		}
		fmt.Fprintf(&sb, "- %s: %s", status.Name, state)
		if len(status.Details) > 0 {
			keys := make([]string, 0, len(status.Details))
			for key := range status.Details {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			details := make([]string, 0, len(keys))
			for _, key := range keys {
				details = append(details, key+"="+status.Details[key])
			}
			fmt.Fprintf(&sb, " [%s]", strings.Join(details, ", "))
		}
		sb.WriteString("\n")
	}
	for _, step := range stats.Steps {
		fmt.Fprintf(&sb, "  - %s dropped %d of %d chunks\n", step.Name, step.Dropped, step.Initial)
	}
	sb.WriteString("\n")

	sb.WriteString("### Test Search Results:\n")
	results, err := b.Search(ctx, "test", 1)
	switch {
	case err != nil:
		fmt.Fprintf(&sb, "- Test search failed: %v\n", err)
	case len(results) == 0:
		sb.WriteString("- Test search returned: 0 results\n- No results found\n")
	default:
		fmt.Fprintf(&sb, "- Test search returned: %d results\n", len(results))
		fmt.Fprintf(&sb, "- First result content length: %d\n", utf8.RuneCountInString(results[0].Chunk.Text))
		fmt.Fprintf(&sb, "- First result score: %.4f\n", results[0].Score)
	}

	return sb.String()
}
