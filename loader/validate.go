package loader

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nathoo/jianghu/engine/effects"
	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

var validTextPositions = map[string]bool{"": true, "bottom": true, "top": true, "overlay": true, "center": true}

var validPanelSizes = map[string]bool{"": true, "full": true, "half": true, "third": true, "wide": true}

var validCombatTypes = map[types.CombatChoiceType]bool{
	types.CombatAggressive: true,
	types.CombatDefensive:  true,
	types.CombatCounter:    true,
	types.CombatObserve:    true,
	types.CombatFlee:       true,
}

// validate checks the compiled defs for referential integrity and consistency.
// Warnings are logged and do not fail the load.
func validate(defs *state.Defs, log *zap.Logger) error {
	ve := check(defs)

	for _, w := range ve.Warnings {
		log.Warn("content warning", zap.String("warning", w))
	}
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func check(defs *state.Defs) *ValidationError {
	ve := &ValidationError{}

	if defs.Game.Title == "" {
		ve.warnf("Game.Title is empty")
	}
	if defs.Game.Start == "" {
		ve.errorf("Game.Start is required")
	} else if _, ok := defs.Scenes[defs.Game.Start]; !ok {
		ve.errorf("start scene %q not found in defined scenes", defs.Game.Start)
	}

	for _, id := range defs.Order {
		sc := defs.Scenes[id]
		v := sceneChecker{defs: defs, ve: ve, scene: id}
		v.image("background", sc.Background)

		switch sc.Type {
		case types.SceneNarrative:
			v.narrative(sc.Narrative)
		case types.SceneDialogue:
			v.dialogue(sc.Dialogue)
		case types.SceneNavigation:
			v.navigation(sc.Navigation)
		case types.SceneMeditation:
			v.meditation(sc.Meditation)
		case types.SceneCombat:
			v.combat(sc.Combat)
		}
	}
	return ve
}

// sceneChecker validates one scene's content.
type sceneChecker struct {
	defs  *state.Defs
	ve    *ValidationError
	scene string
}

func (v sceneChecker) target(what, id string) {
	if id == "" {
		v.ve.errorf("scene %q %s has no nextScene", v.scene, what)
		return
	}
	if _, ok := v.defs.Scenes[id]; !ok {
		v.ve.errorf("scene %q %s points to undefined scene %q", v.scene, what, id)
	}
}

func (v sceneChecker) stats(what string, changes map[string]int) {
	for path := range changes {
		if !effects.NumericPath(path) {
			v.ve.warnf("scene %q %s changes unknown stat %q", v.scene, what, path)
		}
	}
}

func (v sceneChecker) requirement(what string, r *types.Requirement) {
	if r == nil {
		return
	}
	if r.Stat == "" && r.Flag == "" {
		v.ve.errorf("scene %q %s has an empty requirement", v.scene, what)
	}
	if r.Stat != "" && !effects.NumericPath(r.Stat) {
		v.ve.warnf("scene %q %s requires unknown stat %q", v.scene, what, r.Stat)
	}
	if r.Stat != "" && r.MinValue == nil {
		v.ve.warnf("scene %q %s requires stat %q without minValue", v.scene, what, r.Stat)
	}
}

func (v sceneChecker) image(what string, ref types.ImageRef) {
	if ref.URL != "" && ref.Prompt != "" {
		v.ve.errorf("scene %q %s sets both url and prompt", v.scene, what)
	}
}

func (v sceneChecker) panels(panels []types.Panel) {
	ids := map[string]bool{}
	for i, p := range panels {
		what := fmt.Sprintf("panel %d", i)
		if p.ID != "" {
			if ids[p.ID] {
				v.ve.errorf("scene %q has duplicate panel ID %q", v.scene, p.ID)
			}
			ids[p.ID] = true
			what = fmt.Sprintf("panel %q", p.ID)
		}
		v.image(what, p.Image)
		if !validTextPositions[p.TextPosition] {
			v.ve.warnf("scene %q %s has unknown textPosition %q", v.scene, what, p.TextPosition)
		}
		if !validPanelSizes[p.PanelSize] {
			v.ve.warnf("scene %q %s has unknown panelSize %q", v.scene, what, p.PanelSize)
		}
	}
}

func (v sceneChecker) choices(kind string, choices []types.ChoiceOption) {
	ids := map[string]bool{}
	for _, c := range choices {
		if c.ID == "" {
			v.ve.errorf("scene %q has a %s without ID", v.scene, kind)
			continue
		}
		if ids[c.ID] {
			v.ve.errorf("scene %q has duplicate %s ID %q", v.scene, kind, c.ID)
		}
		ids[c.ID] = true

		what := fmt.Sprintf("%s %q", kind, c.ID)
		v.target(what, c.Consequence.NextScene)
		v.requirement(what, c.Requirement)
		v.stats(what, c.Consequence.StatChanges)
		if c.Consequence.Relationship != nil && c.Consequence.Relationship.NPCID == "" {
			v.ve.errorf("scene %q %s changes a relationship without npcId", v.scene, what)
		}
	}
}

func (v sceneChecker) narrative(n *types.NarrativeContent) {
	if n == nil {
		v.ve.errorf("scene %q has no narrative content", v.scene)
		return
	}
	if len(n.Panels) == 0 {
		v.ve.errorf("scene %q has no panels", v.scene)
	}
	v.panels(n.Panels)
	v.choices("choice", n.Choices)
	v.stats("entry", n.StatChanges)

	if n.NextScene != "" {
		v.target("nextScene", n.NextScene)
		if len(n.Choices) > 0 {
			v.ve.warnf("scene %q sets nextScene alongside choices; nextScene is never followed", v.scene)
		}
	}
	if !n.Terminal && n.NextScene == "" && len(n.Choices) == 0 {
		v.ve.errorf("scene %q is a dead end: no choices, nextScene or terminal", v.scene)
	}
}

func (v sceneChecker) dialogue(d *types.DialogueContent) {
	if d == nil {
		v.ve.errorf("scene %q has no dialogue content", v.scene)
		return
	}
	if d.NPCID == "" {
		v.ve.errorf("scene %q dialogue has no npcId", v.scene)
	}
	if d.Character != nil && d.Character.ID != "" && d.Character.ID != d.NPCID {
		v.ve.warnf("scene %q character %q does not match npcId %q", v.scene, d.Character.ID, d.NPCID)
	}
	v.choices("exit option", d.ExitOptions)
}

func (v sceneChecker) navigation(n *types.NavigationContent) {
	if n == nil {
		v.ve.errorf("scene %q has no navigation content", v.scene)
		return
	}
	if len(n.Destinations) == 0 {
		v.ve.errorf("scene %q has no destinations", v.scene)
	}
	ids := map[string]bool{}
	for _, d := range n.Destinations {
		if d.ID == "" {
			v.ve.errorf("scene %q has a destination without ID", v.scene)
			continue
		}
		if ids[d.ID] {
			v.ve.errorf("scene %q has duplicate destination ID %q", v.scene, d.ID)
		}
		ids[d.ID] = true

		what := fmt.Sprintf("destination %q", d.ID)
		v.target(what, d.Consequence.NextScene)
		v.requirement(what, d.Requirement)
		if d.Consequence.TimeAdvance < 0 {
			v.ve.errorf("scene %q %s has negative timeAdvance", v.scene, what)
		}
	}
}

func (v sceneChecker) meditation(m *types.MeditationContent) {
	if m == nil {
		v.ve.errorf("scene %q has no meditation content", v.scene)
		return
	}
	if len(m.PossibleOutcomes) == 0 {
		v.ve.errorf("scene %q has no possible outcomes", v.scene)
	}
	if m.AIPrompt == "" {
		v.ve.warnf("scene %q has no aiPrompt", v.scene)
	}
	themes := map[string]bool{}
	for _, o := range m.PossibleOutcomes {
		if o.Theme == "" {
			v.ve.errorf("scene %q has an outcome without theme", v.scene)
			continue
		}
		if themes[o.Theme] {
			v.ve.errorf("scene %q has duplicate theme %q", v.scene, o.Theme)
		}
		themes[o.Theme] = true

		what := fmt.Sprintf("outcome %q", o.Theme)
		v.target(what, o.Consequence.NextScene)
		v.stats(what, o.Consequence.StatChanges)
	}
}

func (v sceneChecker) combat(c *types.CombatContent) {
	if c == nil {
		v.ve.errorf("scene %q has no combat content", v.scene)
		return
	}
	if len(c.Exchanges) == 0 {
		v.ve.errorf("scene %q has no exchanges", v.scene)
	}

	canFlee := false
	for i, ex := range c.Exchanges {
		v.panels(ex.Panels)
		if len(ex.Choices) == 0 {
			v.ve.errorf("scene %q exchange %d has no choices", v.scene, i)
		}
		ids := map[string]bool{}
		for _, ch := range ex.Choices {
			if ids[ch.ID] {
				v.ve.errorf("scene %q exchange %d has duplicate choice ID %q", v.scene, i, ch.ID)
			}
			ids[ch.ID] = true
			if !validCombatTypes[ch.Type] {
				v.ve.errorf("scene %q exchange %d choice %q has unknown type %q", v.scene, i, ch.ID, ch.Type)
			}
			if ch.Type == types.CombatFlee {
				canFlee = true
			}
			v.requirement(fmt.Sprintf("combat choice %q", ch.ID), ch.Requirement)
		}
	}

	outcomes := []struct {
		name string
		o    types.CombatOutcome
	}{
		{"victory", c.Outcomes.Victory},
		{"defeat", c.Outcomes.Defeat},
		{"draw", c.Outcomes.Draw},
	}
	if canFlee || c.Outcomes.Flee.NextScene != "" {
		outcomes = append(outcomes, struct {
			name string
			o    types.CombatOutcome
		}{"flee", c.Outcomes.Flee})
	}
	for _, oc := range outcomes {
		what := oc.name + " outcome"
		v.target(what, oc.o.NextScene)
		v.stats(what, oc.o.StatChanges)
	}
}
