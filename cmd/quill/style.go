package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle   = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("245"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	hintStyle    = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("243"))
	roleStyles   = map[string]lipgloss.Style{
		"user":      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		"assistant": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("228")),
	}
)

type summary struct {
	Model      string
	Backend    string
	Rounds     int
	Words      int
	Tokens     int
	StopReason string
	Session    string
	Saved      bool
	Output     string
	Elapsed    time.Duration
}

func renderSummary(s summary) string {
	backend := s.Backend
	if backend == "" {
		backend = "auto"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("✎ " + s.Model))
	b.WriteString(labelStyle.Render(" via "))
	b.WriteString(valueStyle.Render(backend))
	b.WriteString("\n")

	stats := fmt.Sprintf("%d words, %d round(s)", s.Words, s.Rounds)
	if s.Tokens > 0 {
		stats += fmt.Sprintf(", %d tokens", s.Tokens)
	}
	stats += fmt.Sprintf(", %s", s.Elapsed.Round(100*time.Millisecond))
	b.WriteString(row("reply", valueStyle.Render(stats)))
	b.WriteString(row("stop", valueStyle.Render(s.StopReason)))

	if s.Output != "" {
		b.WriteString(row("output", valueStyle.Render(s.Output)))
	}
	if s.Saved {
		b.WriteString(row("session", successStyle.Render(s.Session)))
	} else {
		b.WriteString(row("session", warningStyle.Render(s.Session+" (not saved, rerun with -v for details)")))
	}
	return strings.TrimRight(b.String(), "\n")
}

func row(label, value string) string {
	return "  " + labelStyle.Render(fmt.Sprintf("%-8s", label)) + value + "\n"
}

func renderError(err error) string {
	out := errorStyle.Render("Error: ") + err.Error()
	if hint := exitHint(err); hint != "" {
		out += "\n" + hintStyle.Render("hint: "+hint)
	}
	return out
}

func renderRole(role string) string {
	style, ok := roleStyles[role]
	if !ok {
		return role
	}
	return style.Render(fmt.Sprintf("%-9s", role))
}
