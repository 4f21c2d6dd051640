// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/planthealth/internal/diagnosis"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for report titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")). // Cyan
			MarginBottom(1)

	// SectionStyle is used for section headers.
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			MarginTop(1)

	// LabelStyle is used for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	// ValueStyle is used for plain values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Orange

	// DimStyle is used for hints and secondary text.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule, 60 columns unless width is given.
func RenderSeparator(width ...int) string {
	w := 60
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("=", w))
}

// RenderLabel renders a fixed-width field label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// RenderSeverity colors a severity level.
func RenderSeverity(severity string) string {
	switch severity {
	case diagnosis.SeverityHigh:
		return ErrorStyle.Render(severity)
	case diagnosis.SeverityMedium:
		return WarningStyle.Render(severity)
	case diagnosis.SeverityLow:
		return SuccessStyle.Render(severity)
	default:
		return DimStyle.Render(severity)
	}
}

// RenderConditional styles text only when colors are enabled.
func RenderConditional(style lipgloss.Style, text string) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}

// RenderResult formats a diagnosis for the terminal.
func RenderResult(crop string, r diagnosis.Result, width int) string {
	var b strings.Builder

	b.WriteString(RenderConditional(TitleStyle, "Leaf Diagnosis: "+crop))
	b.WriteString("\n")

	switch {
	case r.IsError():
		b.WriteString(RenderConditional(ErrorStyle, r.IrrelevantReason))
		b.WriteString("\n")
		return b.String()
	case r.IsIrrelevant:
		b.WriteString(RenderConditional(WarningStyle, r.IrrelevantReason))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s%s\n", RenderLabel("Disease"), RenderConditional(ValueStyle, r.Disease))
	fmt.Fprintf(&b, "%s%.1f%%\n", RenderLabel("Confidence"), r.Confidence)
	sev := r.Severity
	if ColorsEnabled() {
		sev = RenderSeverity(r.Severity)
	}
	fmt.Fprintf(&b, "%s%s\n", RenderLabel("Severity"), sev)

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(RenderConditional(SectionStyle, title))
		b.WriteString("\n")
		for _, item := range items {
			b.WriteString(WrapText("  - "+item, width))
			b.WriteString("\n")
		}
	}
	section("Symptoms", r.Symptoms)
	section("Treatment", r.Treatment)
	section("Prevention", r.Prevention)
	return b.String()
}
