package output

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode
// and TTY detection.
func shouldColorize(mode ColorMode, w io.Writer) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// Success writes a green check line.
func Success(w io.Writer, mode ColorMode, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if shouldColorize(mode, w) {
		fmt.Fprintf(w, "%s✓%s %s\n", colorGreen, colorReset, msg)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", msg)
}

// Warn writes a yellow warning line.
func Warn(w io.Writer, mode ColorMode, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if shouldColorize(mode, w) {
		fmt.Fprintf(w, "%s⚠%s %s\n", colorYellow, colorReset, msg)
		return
	}
	fmt.Fprintf(w, "⚠ %s\n", msg)
}

// RenderError writes an error line. Errors from the taxonomy already
// carry their suggestion in the message, so nothing extra is appended.
func RenderError(w io.Writer, mode ColorMode, err error) {
	if err == nil {
		return
	}
	if shouldColorize(mode, w) {
		fmt.Fprintf(w, "%s✗%s %v\n", colorRed, colorReset, err)
		return
	}
	fmt.Fprintf(w, "✗ %v\n", err)
}
