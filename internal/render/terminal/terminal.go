// Package terminal renders a session timeline as ANSI-colored text.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"

	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/view"
)

const defaultWidth = 100

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Renderer pretty-prints session messages to the terminal.
type Renderer struct {
	// Width overrides terminal width detection. Zero means auto-detect.
	Width int
}

// New creates a terminal Renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render writes every message of the snapshot, or the empty-state hint.
func (r *Renderer) Render(w io.Writer, snap session.Snapshot) error {
	if hint := view.EmptyHint(snap); hint != "" {
		fmt.Fprintln(w, styleHint.Render(hint))
	}
	for i, m := range snap.Timeline {
		fmt.Fprint(w, r.Message(i+1, m))
	}
	if snap.Busy {
		fmt.Fprintln(w, styleHint.Render(view.HintBusy))
	}
	return nil
}

// Message renders one message with its 1-based position n. With n zero the
// position and the export hint are left out.
func (r *Renderer) Message(n int, m session.Message) string {
	width := r.termWidth()
	var b strings.Builder

	meta := m.Timestamp().Format("15:04:05")
	if n > 0 {
		meta = fmt.Sprintf("#%d  %s", n, meta)
	}
	fmt.Fprintf(&b, "%s %s\n", badge(m.Kind()), styleMeta.Render(meta))

	switch v := m.(type) {
	case session.ErrorMessage:
		b.WriteString(styleErrorText.Render(wrap(v.Text, width)))
		b.WriteString("\n")
	case session.BotMessage:
		b.WriteString(wrap(v.Summary, width))
		b.WriteString("\n")
		if chart := view.BuildChart(v.ChartSeries); chart != nil {
			b.WriteString("\n")
			b.WriteString(renderChart(chart))
		}
		if t := view.BuildTable(v); t != nil {
			b.WriteString("\n")
			b.WriteString(renderTable(t))
			if n > 0 {
				b.WriteString(styleMeta.Render(fmt.Sprintf(":export %d to download", n)))
				b.WriteString("\n")
			}
		}
	default:
		b.WriteString(wrap(session.Text(m), width))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// Plain renders m without any ANSI styling.
func (r *Renderer) Plain(n int, m session.Message) string {
	return ansi.Strip(r.Message(n, m))
}

func (r *Renderer) termWidth() int {
	if r.Width > 0 {
		return r.Width
	}
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}

func badge(k session.Kind) string {
	switch k {
	case session.KindUser:
		return styleUserBadge.Render("YOU")
	case session.KindSystem:
		return styleSystemBadge.Render("SYSTEM")
	case session.KindError:
		return styleErrorBadge.Render("ERROR")
	default:
		return styleBotBadge.Render("BOT")
	}
}

func wrap(s string, width int) string {
	return ansi.Wordwrap(s, width, "")
}

// renderChart draws one sparkline per series.
func renderChart(c *view.Chart) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render(c.Title))
	if len(c.XTicks) > 0 {
		b.WriteString(styleMeta.Render(fmt.Sprintf("  %s–%s", c.XTicks[0], c.XTicks[len(c.XTicks)-1])))
	}
	b.WriteString("\n")

	lo, hi, ok := c.Range()
	keyWidth := 0
	for _, s := range c.Series {
		keyWidth = max(keyWidth, lipgloss.Width(s.Key))
	}
	for _, s := range c.Series {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color))
		line := make([]rune, len(s.Values))
		for i, p := range s.Values {
			line[i] = spark(p, lo, hi, ok)
		}
		fmt.Fprintf(&b, "%-*s %s\n", keyWidth, s.Key, style.Render(string(line)))
	}
	return b.String()
}

func spark(p view.Point, lo, hi float64, ok bool) rune {
	if !p.OK || !ok {
		return ' '
	}
	if hi == lo {
		return sparkBlocks[len(sparkBlocks)/2]
	}
	idx := int((p.Y - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
	return sparkBlocks[idx]
}

func renderTable(t *view.Table) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styleBorder).
		Headers(view.Columns...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		})
	for _, row := range t.Rows {
		tbl.Row(row.Cells()...)
	}
	return styleTitle.Render(t.Heading()) + "\n" + tbl.Render() + "\n"
}
