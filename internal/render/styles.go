package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorTitle   = lipgloss.Color("#00CED1")
	colorMuted   = lipgloss.Color("#858392")
	colorSuccess = lipgloss.Color("#00FFB2")
	colorWarning = lipgloss.Color("#FFD300")
	colorError   = lipgloss.Color("#E94090")
)

// styles are bound to one writer so color is only emitted to terminals.
type styles struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
}

func stylesFor(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorTitle),
		muted:   r.NewStyle().Foreground(colorMuted),
		success: r.NewStyle().Foreground(colorSuccess),
		warning: r.NewStyle().Foreground(colorWarning),
		err:     r.NewStyle().Foreground(colorError),
	}
}

// Info prints a neutral status line.
func Info(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, stylesFor(w).success.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a line about a non-fatal problem.
func Warn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, stylesFor(w).warning.Render(fmt.Sprintf(format, args...)))
}

// Fail prints a line about a failed action.
func Fail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, stylesFor(w).err.Render(fmt.Sprintf(format, args...)))
}

// Hint prints dimmed help text.
func Hint(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, stylesFor(w).muted.Render(fmt.Sprintf(format, args...)))
}
