// Package colors provides terminal color support for verso output.
//
// Colors are detected from the environment (NO_COLOR, FORCE_COLOR,
// TERM, whether stdout is a terminal) and degrade to plain text
// everywhere else.
package colors

import (
	"os"
	"runtime"
	"strings"
)

// ANSI color codes
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorGray = "\033[90m"

	BrightRed    = "\033[91m"
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightBlue   = "\033[94m"
	BrightCyan   = "\033[96m"
)

var colorEnabled = shouldUseColor()

func shouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	if runtime.GOOS == "windows" {
		wt := os.Getenv("WT_SESSION")
		vscode := os.Getenv("VSCODE_PID")
		return wt != "" || vscode != "" || strings.Contains(term, "color") || strings.Contains(term, "xterm")
	}

	if term == "dumb" || term == "" {
		return false
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return true
}

// SetColorEnabled allows manual control of color output.
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

// IsColorEnabled returns whether colors are currently enabled.
func IsColorEnabled() bool {
	return colorEnabled
}

func colorize(text, color string) string {
	if !colorEnabled {
		return text
	}
	return color + text + ColorReset
}

// Change-kind coloring, used by diff and merge output.
func Added(text string) string {
	return colorize(text, BrightGreen)
}

func Removed(text string) string {
	return colorize(text, BrightRed)
}

func Changed(text string) string {
	return colorize(text, BrightBlue)
}

func Retyped(text string) string {
	return colorize(text, BrightYellow)
}

// Generic color functions
func Red(text string) string {
	return colorize(text, BrightRed)
}

func Green(text string) string {
	return colorize(text, BrightGreen)
}

func Yellow(text string) string {
	return colorize(text, BrightYellow)
}

func Cyan(text string) string {
	return colorize(text, BrightCyan)
}

func Gray(text string) string {
	return colorize(text, ColorGray)
}

func Bold(text string) string {
	if !colorEnabled {
		return text
	}
	return ColorBold + text + ColorReset
}

func Dim(text string) string {
	if !colorEnabled {
		return text
	}
	return ColorDim + text + ColorReset
}

// Change prefixes
func AddedPrefix() string {
	return Added("+")
}

func RemovedPrefix() string {
	return Removed("-")
}

func ChangedPrefix() string {
	return Changed("~")
}

func RetypedPrefix() string {
	return Retyped("!")
}

// Section headers and message levels
func SectionHeader(text string) string {
	return Bold(text)
}

func ErrorText(text string) string {
	return Red(text)
}

func SuccessText(text string) string {
	return Green(text)
}

func WarningText(text string) string {
	return Yellow(text)
}
