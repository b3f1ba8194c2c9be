package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sceneDisplayName derives a human-readable name from a scene ID.
// "massacre_02_hidden" -> "Massacre 02 Hidden", "crossroads" -> "Crossroads".
func sceneDisplayName(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// renderStatusBar produces a full-width inverted status line showing the
// current scene and mode, the in-fiction time, and cultivation.
func (m Model) renderStatusBar() string {
	s := m.engine.Snapshot().Session

	left := fmt.Sprintf(" %s | %s", sceneDisplayName(s.Narrative.CurrentScene), s.UI.Mode)
	if loc := s.World.CurrentLocation.Name; loc != "" {
		left += " | " + loc
	}

	t := s.World.CurrentTime
	c := s.Player.Cultivation
	clock := fmt.Sprintf("Day %d %s, %s", t.Day, t.Period, t.Season)
	stats := fmt.Sprintf("IE:%d EA:%d CO:%d ", c.InternalEnergy, c.ExternalArts, c.Comprehension)

	// Drop the clock when it does not fit.
	right := clock + " | " + stats
	if lipgloss.Width(left)+lipgloss.Width(right)+2 >= m.width {
		right = stats
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
