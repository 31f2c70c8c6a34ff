package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// PrettyLogger writes operator-facing console output.
type PrettyLogger struct {
	writer io.Writer
	styles PrettyStyles
	plain  bool
}

// PrettyStyles contains lipgloss styles for different output kinds
type PrettyStyles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Path    lipgloss.Style
}

// DefaultPrettyStyles returns the default styling for pretty output
func DefaultPrettyStyles() PrettyStyles {
	return PrettyStyles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true), // Green
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),            // Blue
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),  // Red
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),             // Gray
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true), // Cyan
		Path:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Italic(true),
	}
}

// NewPrettyLogger writes to w. Styling is only applied when w is a terminal.
func NewPrettyLogger(w io.Writer) *PrettyLogger {
	plain := true
	if f, ok := w.(*os.File); ok {
		plain = !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	}
	return &PrettyLogger{
		writer: w,
		styles: DefaultPrettyStyles(),
		plain:  plain,
	}
}

func (p *PrettyLogger) render(style lipgloss.Style, s string) string {
	if p.plain {
		return s
	}
	return style.Render(s)
}

// Notice prints a notification line, red when it is an error.
func (p *PrettyLogger) Notice(text string, isError bool) {
	if isError {
		fmt.Fprintln(p.writer, p.render(p.styles.Error, text))
		return
	}
	fmt.Fprintln(p.writer, p.render(p.styles.Info, text))
}

// Success prints a success message with a checkmark
func (p *PrettyLogger) Success(message string) {
	fmt.Fprintf(p.writer, "%s %s\n", p.render(p.styles.Success, "✓"), p.render(p.styles.Success, message))
}

// ErrorPretty prints an error with a cross
func (p *PrettyLogger) ErrorPretty(message string, err error) {
	fmt.Fprintf(p.writer, "%s %s", p.render(p.styles.Error, "✗"), p.render(p.styles.Error, message))
	if err != nil {
		fmt.Fprintf(p.writer, ": %s", p.render(p.styles.Error, err.Error()))
	}
	fmt.Fprintln(p.writer)
}

// Field prints a key-value pair
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "%s: %s\n", p.render(p.styles.Key, key), p.render(p.styles.Value, fmt.Sprint(value)))
}

// Path prints a labelled file path
func (p *PrettyLogger) Path(label string, path string) {
	fmt.Fprintf(p.writer, "%s: %s\n", p.render(p.styles.Key, label), p.render(p.styles.Path, path))
}
