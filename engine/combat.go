package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nathoo/jianghu/engine/events"
	"github.com/nathoo/jianghu/engine/rules"
	"github.com/nathoo/jianghu/types"
)

// CombatResult is how a final exchange ends.
type CombatResult string

const (
	Victory CombatResult = "victory"
	Defeat  CombatResult = "defeat"
	Draw    CombatResult = "draw"
	Fled    CombatResult = "flee"
)

// Threshold computes the success threshold of a move:
// effectiveness + (externalArts + internalEnergy - opponent strength),
// clamped to [1, 100].
func Threshold(effectiveness, externalArts, internalEnergy, strength int) float64 {
	t := effectiveness + externalArts + internalEnergy - strength
	if t < 1 {
		t = 1
	}
	if t > 100 {
		t = 100
	}
	return float64(t)
}

// ResolveExchange maps a roll in [0, 100) against a threshold to a result.
// A roll under the threshold wins; one above 100 - threshold/2 loses;
// anything between is a draw.
func ResolveExchange(threshold, roll float64) CombatResult {
	switch {
	case roll < threshold:
		return Victory
	case roll > 100-threshold/2:
		return Defeat
	default:
		return Draw
	}
}

func outcomeFor(o types.CombatOutcomes, r CombatResult) types.CombatOutcome {
	switch r {
	case Victory:
		return o.Victory
	case Defeat:
		return o.Defeat
	case Fled:
		return o.Flee
	default:
		return o.Draw
	}
}

// startCombat sets up exchange 0 with its choices hidden. Callers hold mu.
func (e *Engine) startCombat(ctx context.Context, content types.CombatContent) {
	e.combatSeq++
	e.combat = &types.CombatState{
		Opponent: content.Opponent,
		Content:  content,
	}
	e.enterExchange(0)
	e.emit(events.CombatStarted, map[string]any{"opponent": content.Opponent.ID})
	e.scheduleReveal(ctx)
}

// enterExchange points the combat state at exchange i. Callers hold mu.
func (e *Engine) enterExchange(i int) {
	c := e.combat
	c.Exchange = i
	c.PanelIndex = 0
	c.ShowChoices = false
	c.Panels = nil
	c.Choices = nil
	if i < len(c.Content.Exchanges) {
		c.Choices = c.Content.Exchanges[i].Choices
		if e.scene != nil && i < len(e.scene.Exchanges) {
			c.Panels = e.scene.Exchanges[i]
		} else {
			c.Panels = c.Content.Exchanges[i].Panels
		}
	}
}

// scheduleReveal shows the current exchange's choices after the reveal
// delay. Callers hold mu.
func (e *Engine) scheduleReveal(ctx context.Context) {
	seq, exchange := e.combatSeq, e.combat.Exchange
	e.after(ctx, e.pacing.CombatReveal, func(context.Context) error {
		e.revealCombat(seq, exchange)
		return nil
	})
}

// revealCombat makes choices visible unless the fight or exchange the
// timer was set for has moved on.
func (e *Engine) revealCombat(seq, exchange int) {
	e.mu.Lock()
	c := e.combat
	if c == nil || seq != e.combatSeq || c.Exchange != exchange || c.ShowChoices {
		e.mu.Unlock()
		return
	}
	c.ShowChoices = true
	e.emit(events.CombatRevealed, map[string]any{"exchange": exchange})
	e.mu.Unlock()
	e.flush()
}

// Combat returns a copy of the active fight, if any.
func (e *Engine) Combat() (types.CombatState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.combat == nil {
		return types.CombatState{}, false
	}
	return *e.combat, true
}

// AvailableCombatChoices returns the current exchange's moves once they are
// shown, each marked with whether its requirement holds.
func (e *Engine) AvailableCombatChoices() []CombatAvailability {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c := e.combat
	if c == nil || !c.ShowChoices {
		return nil
	}
	out := make([]CombatAvailability, len(c.Choices))
	for i, ch := range c.Choices {
		ok, reason := rules.Check(ch.Requirement, e.session)
		out[i] = CombatAvailability{Choice: ch, Available: ok, Reason: reason}
	}
	return out
}

// CombatAvailability is a combat move with its gate result.
type CombatAvailability struct {
	Choice    types.CombatChoice
	Available bool
	Reason    string
}

// MakeCombatChoice plays a move in the current exchange. Fleeing ends the
// fight at once. Other moves advance to the next exchange, or on the last
// exchange roll against the move's threshold to pick the outcome.
func (e *Engine) MakeCombatChoice(ctx context.Context, choiceID string) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	c := e.combat
	if c == nil {
		e.mu.Unlock()
		return ErrNotInMode
	}
	var (
		choice types.CombatChoice
		found  bool
	)
	for _, ch := range c.Choices {
		if ch.ID == choiceID {
			choice, found = ch, true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return fmt.Errorf("%w: unknown move %s", ErrChoiceUnavailable, choiceID)
	}
	if ok, reason := rules.Check(choice.Requirement, e.session); !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChoiceUnavailable, reason)
	}

	var result CombatResult
	if choice.Type == types.CombatFlee {
		result = Fled
	} else {
		cult := e.session.Player.Cultivation
		t := Threshold(choice.Effectiveness, cult.ExternalArts, cult.InternalEnergy, c.Opponent.Strength)
		roll := e.rng.Percent()
		c.LastRoll = roll

		if c.Exchange < len(c.Content.Exchanges)-1 {
			e.log.Debug("combat exchange",
				zap.Int("exchange", c.Exchange),
				zap.String("choice_id", choiceID),
				zap.Float64("threshold", t),
				zap.Float64("roll", roll))
			e.emit(events.CombatExchange, map[string]any{"exchange": c.Exchange, "choice": choiceID, "roll": roll})
			e.enterExchange(c.Exchange + 1)
			e.scheduleReveal(ctx)
			e.mu.Unlock()
			return nil
		}
		result = ResolveExchange(t, roll)
		e.log.Info("combat resolved",
			zap.String("choice_id", choiceID),
			zap.Float64("threshold", t),
			zap.Float64("roll", roll),
			zap.String("result", string(result)))
	}

	outcome := outcomeFor(c.Content.Outcomes, result)
	if err := e.requireScene(outcome.NextScene); err != nil {
		e.mu.Unlock()
		return err
	}
	e.applyStats(outcome.StatChanges)
	e.applyFlags(outcome.Flags)
	e.combat = nil
	e.emit(events.CombatEnded, map[string]any{"result": string(result), "next_scene": outcome.NextScene})
	e.mu.Unlock()

	return e.loadScene(ctx, outcome.NextScene)
}

// AdvanceCombatPanel steps through the current exchange's panels. The last
// panel shows the choices without waiting for the reveal timer.
func (e *Engine) AdvanceCombatPanel() error {
	e.mu.Lock()
	c := e.combat
	if c == nil {
		e.mu.Unlock()
		return ErrNotInMode
	}
	if c.PanelIndex < len(c.Panels)-1 {
		c.PanelIndex++
	}
	if c.PanelIndex >= len(c.Panels)-1 && !c.ShowChoices {
		c.ShowChoices = true
		e.emit(events.CombatRevealed, map[string]any{"exchange": c.Exchange})
	}
	e.mu.Unlock()
	e.flush()
	return nil
}
