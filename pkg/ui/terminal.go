package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

// Banner printed at the start of interactive runs
const Banner = `
   ___  _         _  _    _  _
  / __|(_)__ __ (_)| |_ __| || |
 | (__ | |\ V / | ||  _/ _` + "`" + ` || |
  \___||_| \_/  |_| \__\__,_||_|
  civitai user image downloader
`

// Output is where the Print helpers write
var Output io.Writer = os.Stdout

var quiet atomic.Bool

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) {
	quiet.Store(q)
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	return quiet.Load()
}

// Color functions for terminal output. lipgloss drops the escape codes when
// the output is not a terminal.
var (
	Cyan    = colorize("6")
	Yellow  = colorize("3")
	Red     = colorize("1")
	Green   = colorize("2")
	Magenta = colorize("5")
	Dim     = faint()
)

func colorize(color string) func(string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	return func(text string) string {
		return style.Render(text)
	}
}

func faint() func(string) string {
	style := lipgloss.NewStyle().Faint(true)
	return func(text string) string {
		return style.Render(text)
	}
}

// PrintLogo prints the banner
func PrintLogo() {
	if IsQuietMode() {
		return
	}
	fmt.Fprint(Output, Cyan(Banner))
}

// PrintError prints an error message in red; it ignores quiet mode
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(Output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(Output, Magenta(msg))
}

// Println prints an uncoloured line
func Println(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(Output, msg)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
