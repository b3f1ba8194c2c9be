package tui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("52")).
			Foreground(lipgloss.Color("230")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("178"))

	styleNarration = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleChoice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("179")).
			Bold(true)

	styleLocked = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Strikethrough(true)

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleClock = lipgloss.NewStyle().
			Foreground(lipgloss.Color("109")).
			Italic(true)

	styleEnd = lipgloss.NewStyle().
			Foreground(lipgloss.Color("160")).
			Bold(true)

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("178"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarration lineKind = iota
	kindChoice
	kindLocked
	kindDialogue
	kindClock
	kindHint
	kindEnd
	kindTrace
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindHint
	case line == "THE END":
		return kindEnd
	case isOption(line) && strings.Contains(line, "(locked:"):
		return kindLocked
	case isOption(line):
		return kindChoice
	case strings.HasPrefix(line, "Day ") && strings.Contains(line, " of year "):
		return kindClock
	case containsQuotedSpeech(line):
		return kindDialogue
	default:
		return kindNarration
	}
}

// isOption reports whether line is a numbered entry like "  2. Flee.".
func isOption(line string) bool {
	t := strings.TrimLeft(line, " ")
	if len(t) == len(line) {
		return false
	}
	i := 0
	for i < len(t) && unicode.IsDigit(rune(t[i])) {
		i++
	}
	return i > 0 && i < len(t) && t[i] == '.'
}

// containsQuotedSpeech checks if a line contains dialogue in single quotes.
func containsQuotedSpeech(line string) bool {
	inQuote := false
	quoteLen := 0
	for _, r := range line {
		if r == '\'' {
			if inQuote && quoteLen > 5 {
				return true
			}
			inQuote = !inQuote
			quoteLen = 0
		} else if inQuote {
			quoteLen++
		}
	}
	return false
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
