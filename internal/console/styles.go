package console

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	accentColor  = lipgloss.Color("#A78BFA") // Purple
	privateColor = lipgloss.Color("#9CA3AF") // Gray
	buttonColor  = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#F87171") // Red
)

// Styles holds the styles used for console output.
type Styles struct {
	Queue   lipgloss.Style
	Notify  lipgloss.Style
	Private lipgloss.Style
	Button  lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds styles rendered for w. Colour is used only when w is a
// terminal.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	if !IsTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}
	return Styles{
		Queue:   r.NewStyle().Foreground(accentColor).Bold(true),
		Notify:  r.NewStyle(),
		Private: r.NewStyle().Foreground(privateColor).Italic(true),
		Button:  r.NewStyle().Foreground(buttonColor).Bold(true),
		Error:   r.NewStyle().Foreground(errorColor),
	}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
