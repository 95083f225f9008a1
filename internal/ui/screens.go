package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/spigell/draft-n-pray/internal/knowledge"
	"github.com/spigell/draft-n-pray/internal/tools"
)

const banner = `
+============================================================================================+
|██████╗ ██████╗  █████╗ ███████╗████████╗    ███╗   ██╗    ██████╗ ██████╗  █████╗ ██╗   ██╗|
|██╔══██╗██╔══██╗██╔══██╗██╔════╝╚══██╔══╝    ████╗  ██║    ██╔══██╗██╔══██╗██╔══██╗╚██╗ ██╔╝|
|██║  ██║██████╔╝███████║█████╗     ██║       ██╔██╗ ██║    ██████╔╝██████╔╝███████║ ╚████╔╝ |
|██║  ██║██╔══██╗██╔══██║██╔══╝     ██║       ██║╚██╗██║    ██╔═══╝ ██╔══██╗██╔══██║  ╚██╔╝  |
|██████╔╝██║  ██║██║  ██║██║        ██║       ██║ ╚████║    ██║     ██║  ██║██║  ██║   ██║   |
|╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝        ╚═╝       ╚═╝  ╚═══╝    ╚═╝     ╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   |
+============================================================================================+`

const subtitle = "Write. Send. Hope. Repeat. (Now with AI)"

// usage hints shown next to the tools.
var toolUsage = map[string]string{
	"search_cv":            "Ask about your skills, experience, etc.",
	"crawl_website":        "Provide a URL to crawl",
	"scrape_page":          "Point at a single page, e.g. publications",
	"load_cv":              "Use if CV changes",
	"cv_stats":             "Ask how much of the CV is loaded",
	"debug_knowledge_base": "Use when search results look wrong",
}

func (c *Console) Banner(version string) {
	text := strings.TrimPrefix(banner, "\n")
	sub := subtitle
	if version != "" {
		sub += "  " + version
	}

	if !c.styled {
		fmt.Fprintf(c.out, "%s\n%s\n\n", text, sub)
		return
	}

	// The banner is wider than narrow terminals; skip the art there.
	if c.width < lipgloss.Width(text)+6 {
		text = "DRAFT 'N' PRAY"
	}

	art := lipgloss.NewStyle().Bold(true).Foreground(colorWarning).Render(text)
	tagline := lipgloss.NewStyle().Italic(true).Foreground(colorAccent).Render(sub)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2)
	fmt.Fprintln(c.out, box.Render(lipgloss.JoinVertical(lipgloss.Center, art, "", tagline)))
}

// Tools prints the available tools as a table.
func (c *Console) Tools(infos []tools.Info) {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{info.Name, info.Description, toolUsage[info.Name]})
	}

	t := table.New().
		Headers("Tool", "Description", "Usage").
		Rows(rows...).
		Border(lipgloss.NormalBorder())

	if c.styled {
		t = t.BorderStyle(lipgloss.NewStyle().Foreground(colorAccent)).
			StyleFunc(func(row, col int) lipgloss.Style {
				style := lipgloss.NewStyle().Padding(0, 1)
				switch {
				case row == table.HeaderRow:
					return style.Bold(true).Foreground(lipgloss.Color("5"))
				case col == 0:
					return style.Foreground(colorAccent)
				case col == 2:
					return style.Foreground(colorWarning)
				}
				return style
			})
	}

	fmt.Fprintln(c.out, "Available Tools")
	fmt.Fprintln(c.out, t.String())
	fmt.Fprintln(c.out)
}

func (c *Console) Help() {
	help := `Available Commands:
  help                Show this help message
  tools               Show available tools
  cv                  Show CV status
  clear               Start a new conversation
  quit, exit, bye     Exit the application

Example Queries:
  "What are my technical skills?"
  "Tell me about my work experience"
  "Crawl https://example.com and summarize it"
  "Write an email to the professor at https://example.edu/~ada"`

	c.Panel("Help", help, colorAccent)
}

// CVStatus prints the state of the knowledge base.
func (c *Console) CVStatus(path string, stats *knowledge.Stats) {
	if path == "" {
		path = "Not specified"
	}

	status, kb := "Not Loaded", "Not available"
	if stats != nil {
		status = "Loaded"
		kb = fmt.Sprintf("Ready (%d chunks from %d pages, %s)", stats.Chunks, stats.Pages, stats.Model)
	}

	body := fmt.Sprintf("CV Status: %s\nCV Path: %s\nKnowledge Base: %s", status, path, kb)
	c.Panel("CV Information", body, colorInfo)
}
