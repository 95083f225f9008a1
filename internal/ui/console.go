// Package ui renders the interactive terminal output of the assistant.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const defaultWidth = 100

var (
	colorAccent  = lipgloss.Color("6")
	colorSuccess = lipgloss.Color("2")
	colorWarning = lipgloss.Color("3")
	colorError   = lipgloss.Color("1")
	colorInfo    = lipgloss.Color("4")
)

// Console writes styled output when attached to a terminal and plain text otherwise.
type Console struct {
	out      io.Writer
	styled   bool
	width    int
	renderer *glamour.TermRenderer
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// NewConsole creates a console for out. Styling is enabled only when styled is true.
func NewConsole(out io.Writer, styled bool) *Console {
	c := &Console{out: out, styled: styled, width: defaultWidth}

	if f, ok := out.(*os.File); ok && styled {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			c.width = w
		}
	}

	if styled {
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(c.width-8),
		); err == nil {
			c.renderer = r
		}
	}

	return c
}

// Stdout returns a console for the process standard output.
func Stdout() *Console {
	return NewConsole(os.Stdout, IsTerminal(os.Stdout))
}

func (c *Console) Writer() io.Writer {
	return c.out
}

func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) Info(format string, a ...any) {
	c.line(colorWarning, false, format, a...)
}

func (c *Console) Success(format string, a ...any) {
	c.line(colorSuccess, false, format, a...)
}

func (c *Console) Warn(format string, a ...any) {
	c.line(colorWarning, true, format, a...)
}

func (c *Console) Error(format string, a ...any) {
	c.line(colorError, true, format, a...)
}

func (c *Console) line(color lipgloss.Color, bold bool, format string, a ...any) {
	text := fmt.Sprintf(format, a...)
	if c.styled {
		text = lipgloss.NewStyle().Foreground(color).Bold(bold).Render(text)
	}
	fmt.Fprintln(c.out, text)
}

// Rule prints a horizontal separator.
func (c *Console) Rule() {
	width := min(c.width, 80)
	fmt.Fprintln(c.out, strings.Repeat("=", width))
}

// Panel prints body framed with a title.
func (c *Console) Panel(title, body string, color lipgloss.Color) {
	body = strings.Trim(body, "\n")
	if !c.styled {
		fmt.Fprintf(c.out, "--- %s ---\n%s\n", title, body)
		return
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(color).Render(title)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(1, 2).
		MaxWidth(c.width)
	fmt.Fprintln(c.out, box.Render(header+"\n\n"+body))
}

// Markdown renders an answer of the assistant. Rendering failures fall back to plain text.
func (c *Console) Markdown(title, markdown string) {
	if c.renderer == nil {
		c.Panel(title, markdown, colorSuccess)
		return
	}

	rendered, err := c.renderer.Render(markdown)
	if err != nil {
		c.Warn("Markdown rendering failed: %v", err)
		c.Panel(title+" (Plain Text)", markdown, colorSuccess)
		return
	}
	c.Panel(title, strings.TrimSpace(rendered), colorSuccess)
}

// Failure prints an error in a red panel.
func (c *Console) Failure(err error) {
	c.Panel("Error", "Error: "+err.Error(), colorError)
}
