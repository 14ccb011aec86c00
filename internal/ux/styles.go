package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// Printer writes styled status lines, detail blocks and tables.
type Printer struct {
	w       io.Writer
	noColor bool
}

// NewPrinter creates a Printer. With noColor set all styling is dropped.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	return &Printer{w: w, noColor: noColor}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) render(style lipgloss.Style, s string) string {
	if p.noColor {
		return s
	}
	return style.Render(s)
}

// Success prints a confirmation line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(successStyle, "✓ "+fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(warnStyle, "! "+fmt.Sprintf(format, args...)))
}

// Hint prints a dimmed follow-up suggestion.
func (p *Printer) Hint(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(hintStyle, "  "+fmt.Sprintf(format, args...)))
}

// Field is one line of a detail block.
type Field struct {
	Key   string
	Value string
}

// Details prints aligned key/value lines. Empty values are skipped.
func (p *Printer) Details(fields ...Field) {
	width := 0
	for _, f := range fields {
		if f.Value != "" && len(f.Key) > width {
			width = len(f.Key)
		}
	}
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		key := f.Key + ":" + strings.Repeat(" ", width-len(f.Key))
		fmt.Fprintf(p.w, "%s %s\n", p.render(keyStyle, key), f.Value)
	}
}

// Table prints rows under headers. An empty table prints the empty message.
func (p *Printer) Table(headers []string, rows [][]string, empty string) {
	if len(rows) == 0 {
		fmt.Fprintln(p.w, p.render(hintStyle, empty))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow && !p.noColor {
				return headerStyle
			}
			return cellStyle
		})

	fmt.Fprintln(p.w, t.String())
}
