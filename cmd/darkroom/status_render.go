package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"darkroom/internal/validate"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	badge  string
	colors text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed, text.Bold}},
}

const labelWidth = 24

// renderStatusLine formats "  label:   [BADGE] message" with the label padded
// so badges line up in a column.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := fmt.Sprintf("  %-*s [%s]", labelWidth, label+":", style.badge)
	if message != "" {
		line += " " + message
	}
	if colorize {
		return style.colors.Sprint(line)
	}
	return line
}

// validationLines renders a validation result as one status line followed by
// indented detail lines for the remaining errors and every warning.
func validationLines(label string, res validate.Result, colorize bool) []string {
	var (
		kind    = statusOK
		message string
		details []string
	)
	switch {
	case !res.Valid:
		kind, message = statusError, res.FirstError()
		if len(res.Errors) > 1 {
			details = res.Errors[1:]
		}
	case len(res.Warnings) > 0:
		kind, message = statusWarn, fmt.Sprintf("%d warning(s)", len(res.Warnings))
	}

	lines := make([]string, 0, 1+len(details)+len(res.Warnings))
	lines = append(lines, renderStatusLine(label, kind, message, colorize))
	for _, d := range append(append([]string(nil), details...), res.Warnings...) {
		lines = append(lines, "    - "+d)
	}
	return lines
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	lines := []string{heading, strings.Repeat("-", len(heading))}
	if colorize {
		for i := range lines {
			lines[i] = text.Colors{text.FgCyan}.Sprint(lines[i])
		}
	}
	return lines
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
