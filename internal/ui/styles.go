// Package ui holds the shared color palette and render helpers for CLI
// output. Styles degrade to plain text when the terminal reports no
// color support.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Color palette. Single source of truth for CLI colors.
var (
	accentBlue = lipgloss.Color("#7AA2F7")
	mintGreen  = lipgloss.Color("#A8E6CF")
	amber      = lipgloss.Color("#E0AF68")
	salmonRed  = lipgloss.Color("#F7768E")
	mutedGray  = lipgloss.Color("#6B7280")
)

var (
	accentStyle = lipgloss.NewStyle().
			Foreground(accentBlue).
			Bold(true)

	passStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonRed).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentBlue).
			Bold(true).
			Underline(true)
)

var colorEnabled = termenv.DefaultOutput().Profile != termenv.Ascii

func render(s lipgloss.Style, text string) string {
	if !colorEnabled {
		return text
	}
	return s.Render(text)
}

// RenderAccent styles primary identifiers (session titles, card ids).
func RenderAccent(text string) string { return render(accentStyle, text) }

// RenderPass styles success output.
func RenderPass(text string) string { return render(passStyle, text) }

// RenderWarn styles warnings (offline, queued, dropped items).
func RenderWarn(text string) string { return render(warnStyle, text) }

// RenderError styles failures.
func RenderError(text string) string { return render(errorStyle, text) }

// RenderMuted styles secondary detail (timestamps, counts).
func RenderMuted(text string) string { return render(mutedStyle, text) }

// RenderHeader styles section headings in list output.
func RenderHeader(text string) string { return render(headerStyle, text) }
