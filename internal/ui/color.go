// Package ui provides the sarid CLI's color and progress output, kept
// separate from internal/logging (which is the daemon's own structured
// log, never terminal-decorated) since the two have different
// audiences: a human running `sarid doctor` versus whatever consumes
// the daemon's log file.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// Init configures global color output; call once from main() after
// flag parsing so every helper below respects --no-color and NO_COLOR.
func Init(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

func Success(msg string) { _, _ = Green.Println("✓ " + msg) }
func Successf(format string, args ...any) { _, _ = Green.Printf("✓ "+format+"\n", args...) }

func Warning(msg string) { _, _ = Yellow.Println("⚠ " + msg) }
func Warningf(format string, args ...any) { _, _ = Yellow.Printf("⚠ "+format+"\n", args...) }

func Error(msg string) { _, _ = Red.Println("✗ " + msg) }
func Errorf(format string, args ...any) { _, _ = Red.Printf("✗ "+format+"\n", args...) }

func Info(msg string) { _, _ = Cyan.Println("ℹ " + msg) }
func Infof(format string, args ...any) { _, _ = Cyan.Printf("ℹ "+format+"\n", args...) }

func Header(text string) {
	_, _ = Bold.Println(text)
	fmt.Println(strings.Repeat("=", len(text)))
}

func Label(text string) string  { return Bold.Sprint(text) }
func DimText(text string) string { return Dim.Sprint(text) }
