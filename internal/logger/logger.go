package logger

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

var quiet atomic.Bool

var (
	tagColor     = color.New(color.FgHiBlack)
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	titleColor   = color.New(color.FgHiWhite, color.Bold)
)

// SetQuiet suppresses Info and Success lines. Warnings and errors are always printed.
func SetQuiet(q bool) {
	quiet.Store(q)
}

func line(c *color.Color, level, tag, msg string) {
	// os.Stdout is read on every call so tests can swap it out.
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stdout, "%s %s %s %s\n",
		tagColor.Sprint(ts),
		c.Sprintf("%-4s", level),
		tagColor.Sprintf("[%s]", tag),
		msg,
	)
}

// Info prints a neutral progress line.
func Info(tag, msg string) {
	if quiet.Load() {
		return
	}
	line(infoColor, "INFO", tag, msg)
}

// Success prints a completed-step line.
func Success(tag, msg string) {
	if quiet.Load() {
		return
	}
	line(successColor, "OK", tag, msg)
}

// Warn prints a recoverable problem (skipped row, missing data).
func Warn(tag, msg string) {
	line(warnColor, "WARN", tag, msg)
}

// Error prints a failure.
func Error(tag, msg string) {
	line(errorColor, "ERR", tag, msg)
}

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	title := fmt.Sprintf("eve-industry %s", version)
	bar := strings.Repeat("=", len(title)+4)
	fmt.Fprintln(os.Stdout, titleColor.Sprint(bar))
	fmt.Fprintln(os.Stdout, titleColor.Sprintf("  %s  ", title))
	fmt.Fprintln(os.Stdout, titleColor.Sprint(bar))
}

// Section prints a heading for a block of Stats lines.
func Section(title string) {
	if quiet.Load() {
		return
	}
	fmt.Fprintf(os.Stdout, "\n%s\n", titleColor.Sprintf("-- %s --", title))
}

// Stats prints a single key/value statistic.
func Stats(key string, value interface{}) {
	if quiet.Load() {
		return
	}
	fmt.Fprintf(os.Stdout, "  %-24s %v\n", key+":", value)
}
