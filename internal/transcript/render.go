package transcript

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// clearScreen homes the cursor and erases the display.
const clearScreen = "\x1b[H\x1b[J"

// RenderOptions controls terminal output.
type RenderOptions struct {
	// Width wraps each side at this many cells; 0 disables wrapping.
	Width int
	// Plain drops styling and the clear-screen sequence.
	Plain bool
}

type styles struct {
	user lipgloss.Style
	ai   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		user: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		ai:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	}
}

// Renderer redraws the transcript in place. Identical consecutive snapshots are skipped.
type Renderer struct {
	w      io.Writer
	opts   RenderOptions
	styles styles

	last     Snapshot
	rendered bool
}

// NewRenderer returns a renderer writing to w. Color support is detected from w.
func NewRenderer(w io.Writer, opts RenderOptions) *Renderer {
	return &Renderer{
		w:      w,
		opts:   opts,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Render draws s unless it matches the previous frame.
func (r *Renderer) Render(s Snapshot) error {
	if r.rendered && s == r.last {
		return nil
	}

	_, err := io.WriteString(r.w, r.Frame(s))
	if err != nil {
		return fmt.Errorf("render transcript: %w", err)
	}
	r.last = s
	r.rendered = true
	return nil
}

// Frame formats one full redraw of s.
func (r *Renderer) Frame(s Snapshot) string {
	var b strings.Builder
	if !r.opts.Plain {
		b.WriteString(clearScreen)
	}
	b.WriteString(r.line("User:", r.styles.user, s.User))
	b.WriteByte('\n')
	b.WriteString(r.line("AI:", r.styles.ai, s.AI))
	b.WriteByte('\n')
	return b.String()
}

// line wraps label and text together so the first row accounts for the label width.
func (r *Renderer) line(label string, style lipgloss.Style, text string) string {
	body := " " + text
	if r.opts.Width > 0 {
		body = strings.TrimPrefix(wordwrap.String(label+body, r.opts.Width), label)
	}
	if r.opts.Plain {
		return label + body
	}
	return style.Render(label) + body
}
