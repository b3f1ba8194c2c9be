package engine

import (
	"fmt"
	"strings"

	"github.com/nathoo/jianghu/types"
)

// Hints shown under the view.
const (
	HintContinue = "[Enter to continue]"
	HintWaiting  = "[...]"
)

// Describe renders the current view as display lines: the scene text, then
// whatever the mode offers the player.
func (e *Engine) Describe() []string {
	snap := e.Snapshot()
	if snap.Scene == nil {
		return nil
	}
	cs := snap.Scene

	switch cs.Scene.Type {
	case types.SceneDialogue:
		return e.describeDialogue(cs)
	case types.SceneNavigation:
		return e.describeNavigation(snap)
	case types.SceneMeditation:
		return describeMeditation(cs, snap.Meditation)
	case types.SceneCombat:
		return e.describeCombat(cs, snap.Combat)
	}
	return e.describeNarrative(snap)
}

func (e *Engine) describeNarrative(snap Snapshot) []string {
	cs := snap.Scene
	lines := []string{spoken(cs.Speaker, cs.Text)}

	if snap.Panel < len(cs.Panels)-1 {
		return append(lines, HintContinue)
	}
	if avail := e.AvailableChoices(); len(avail) > 0 {
		lines = append(lines, "")
		for i, a := range avail {
			lines = append(lines, option(i, a.Choice.Text, a.Available, a.Reason))
		}
		return lines
	}
	if n := cs.Scene.Narrative; n != nil && n.NextScene != "" {
		lines = append(lines, HintContinue)
	} else {
		lines = append(lines, "", "THE END")
	}
	return lines
}

func (e *Engine) describeDialogue(cs *types.CurrentScene) []string {
	var lines []string
	if d := cs.Scene.Dialogue; d != nil && d.Context != "" {
		lines = append(lines, d.Context, "")
	}
	if cs.Text != "" {
		lines = append(lines, spoken(cs.Speaker, cs.Text))
	}
	lines = append(lines, "", `(say "..." to speak)`)
	for i, a := range e.AvailableChoices() {
		lines = append(lines, option(i, a.Choice.Text, a.Available, a.Reason))
	}
	return lines
}

func (e *Engine) describeNavigation(snap Snapshot) []string {
	t := snap.Session.World.CurrentTime
	lines := []string{
		fmt.Sprintf("Day %d, %s, %s of year %d.", t.Day, t.Period, t.Season, t.Year),
		snap.Scene.Text,
		"",
	}
	for i, d := range e.AvailableDestinations() {
		text := d.Destination.Name
		if d.Destination.Description != "" {
			text += ": " + d.Destination.Description
		}
		lines = append(lines, option(i, text, d.Available, d.Reason))
	}
	return lines
}

func describeMeditation(cs *types.CurrentScene, m *types.MeditationState) []string {
	if m == nil {
		return []string{cs.Text}
	}
	switch m.Phase {
	case types.MeditationNotStarted, types.MeditationAwaitingFirst:
		return []string{cs.Text, HintWaiting}
	case types.MeditationBreakthrough:
		return []string{m.CurrentText, "", "Breakthrough. Your qi surges.", HintWaiting}
	}
	lines := []string{m.CurrentText, ""}
	for i, c := range m.Choices {
		lines = append(lines, option(i, c.Text, true, ""))
	}
	return lines
}

func (e *Engine) describeCombat(cs *types.CurrentScene, c *types.CombatState) []string {
	if c == nil {
		return []string{cs.Text}
	}
	lines := []string{fmt.Sprintf("%s stands against you.", c.Opponent.Name)}
	if c.Exchange == 0 && cs.Text != "" {
		lines = append(lines, cs.Text)
	}
	if c.Exchange < len(c.Content.Exchanges) {
		if n := c.Content.Exchanges[c.Exchange].Narration; n != "" {
			lines = append(lines, n)
		}
	}
	if c.PanelIndex < len(c.Panels) {
		p := c.Panels[c.PanelIndex]
		lines = append(lines, spoken(p.Speaker, p.Text))
	}

	if !c.ShowChoices {
		return append(lines, HintContinue)
	}
	lines = append(lines, "")
	for i, a := range e.AvailableCombatChoices() {
		lines = append(lines, option(i, fmt.Sprintf("%s (%s)", a.Choice.Text, a.Choice.Type), a.Available, a.Reason))
	}
	return lines
}

// spoken prefixes text with its speaker's name.
func spoken(sp *types.Speaker, text string) string {
	if sp == nil || sp.Name == "" {
		return text
	}
	return fmt.Sprintf("%s: '%s'", sp.Name, strings.Trim(text, `"'`))
}

// option formats a numbered entry, marking locked ones.
func option(i int, text string, available bool, reason string) string {
	line := fmt.Sprintf("  %d. %s", i+1, text)
	if !available {
		if reason == "" {
			reason = "unavailable"
		}
		line += fmt.Sprintf(" (locked: %s)", reason)
	}
	return line
}
