// Package terminal renders tender lists for the command line.
package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/okian/tenderwatch/internal/domain/types"
)

const (
	defaultWidth   = 100
	maxDescription = 160
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#D6336C", Dark: "#F25D94"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#B7791F", Dark: "#F6C453"}
)

// Renderer writes a TendersResponse as a styled list.
type Renderer struct {
	width int

	header lipgloss.Style
	title  lipgloss.Style
	buyer  lipgloss.Style
	meta   lipgloss.Style
	soon   lipgloss.Style
	body   lipgloss.Style
	warn   lipgloss.Style
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWidth sets the wrap width.
func WithWidth(n int) Option {
	return func(r *Renderer) {
		if n > 20 {
			r.width = n
		}
	}
}

// New creates a Renderer whose color profile follows w.
func New(w io.Writer, opts ...Option) *Renderer {
	lr := lipgloss.NewRenderer(w)
	r := &Renderer{width: defaultWidth}
	for _, opt := range opts {
		opt(r)
	}
	r.header = lr.NewStyle().Bold(true).Foreground(colorPrimary)
	r.title = lr.NewStyle().Bold(true).Foreground(colorPrimary).Width(r.width)
	r.buyer = lr.NewStyle().Foreground(colorGreen)
	r.meta = lr.NewStyle().Foreground(colorDim)
	r.soon = lr.NewStyle().Bold(true).Foreground(colorAccent)
	r.body = lr.NewStyle().PaddingLeft(2).Width(r.width)
	r.warn = lr.NewStyle().Foreground(colorWarn)
	return r
}

// Render writes the header line, any warning and one block per tender.
func (r *Renderer) Render(w io.Writer, resp types.TendersResponse) error {
	var b strings.Builder

	b.WriteString(r.header.Render(fmt.Sprintf("%d of %d tenders", resp.Count, resp.Total)))
	if resp.DateRange != nil {
		b.WriteString(r.meta.Render("  published " + resp.DateRange.Display))
	}
	b.WriteString("\n")
	if resp.LastUpdated != nil {
		line := "updated " + resp.LastUpdated.Local().Format("2006-01-02 15:04")
		if resp.FromCache {
			line += " (cached)"
		}
		b.WriteString(r.meta.Render(line) + "\n")
	}
	if resp.Error != "" {
		b.WriteString(r.warn.Render("! "+resp.Error) + "\n")
	}
	if resp.Stale {
		b.WriteString(r.warn.Render("! data is more than a day old") + "\n")
	}

	for _, t := range resp.Tenders {
		b.WriteString("\n")
		b.WriteString(r.title.Render(t.Title) + "\n")
		b.WriteString("  " + r.buyer.Render(t.Buyer) + r.meta.Render("  "+r.facts(t)))
		if t.DeadlineSoon {
			b.WriteString("  " + r.soon.Render("closing soon"))
		}
		b.WriteString("\n")
		if t.Description != "" {
			b.WriteString(r.body.Render(truncate(t.Description, maxDescription)) + "\n")
		}
		b.WriteString(r.meta.Render("  "+t.Link) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) facts(t types.TenderView) string {
	parts := []string{Money(t.Value, t.Currency)}
	if t.Deadline != nil {
		parts = append(parts, "closes "+t.Deadline.Format("2006-01-02"))
	}
	parts = append(parts, "published "+t.Published)
	return strings.Join(parts, " · ")
}

// Money formats an amount with thousands separators, or "value unknown".
func Money(v *float64, currency string) string {
	if v == nil {
		return "value unknown"
	}
	symbol := currency + " "
	if currency == "GBP" || currency == "" {
		symbol = "£"
	}
	whole := int64(*v)
	s := fmt.Sprintf("%d", whole)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return symbol + s
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n-1])) + "…"
}
