package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nathoo/jianghu/engine/events"
	"github.com/nathoo/jianghu/generation"
	"github.com/nathoo/jianghu/types"
)

const (
	meditationOpening  = "Close your eyes. Breathe. Let the world fall away..."
	meditationFallback = "The vision fades... You return to the present."
)

// Meditation choices the engine handles itself: begin opens the vision,
// open_eyes ends one that failed.
const (
	BeginChoice    = "begin"
	OpenEyesChoice = "open_eyes"
)

var openEyes = types.ChoiceOption{ID: OpenEyesChoice, Text: "Open your eyes."}

// startMeditation seeds the opening text and schedules the begin turn.
// Callers hold mu.
func (e *Engine) startMeditation(ctx context.Context, content types.MeditationContent) {
	e.medSeq++
	seq := e.medSeq
	e.meditation = &types.MeditationState{
		CurrentText: meditationOpening,
		Content:     content,
		Phase:       types.MeditationNotStarted,
	}
	e.emit(events.MeditationStarted, map[string]any{"technique": content.Technique})

	e.after(ctx, e.pacing.MeditationBegin, func(ctx context.Context) error {
		return e.sendMeditation(ctx, seq, BeginChoice)
	})
}

// Meditation returns a copy of the active meditation, if any.
func (e *Engine) Meditation() (types.MeditationState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.meditation == nil {
		return types.MeditationState{}, false
	}
	m := *e.meditation
	m.History = append([]types.Turn(nil), m.History...)
	m.Choices = append([]types.ChoiceOption(nil), m.Choices...)
	return m, true
}

// SendMeditationResponse answers the current meditation turn with one of
// its choices. Choosing open_eyes after a failed turn ends the meditation.
func (e *Engine) SendMeditationResponse(ctx context.Context, choiceID string) error {
	e.mu.RLock()
	seq := e.medSeq
	e.mu.RUnlock()
	return e.sendMeditation(ctx, seq, choiceID)
}

// sendMeditation runs one turn of the meditation tagged seq. A timer from
// an earlier meditation finds seq stale and does nothing.
func (e *Engine) sendMeditation(ctx context.Context, seq int, choiceID string) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	m := e.meditation
	if m == nil || seq != e.medSeq {
		e.mu.Unlock()
		return ErrNotInMode
	}

	var choiceText string
	switch {
	case choiceID == BeginChoice:
		if m.Phase != types.MeditationNotStarted {
			e.mu.Unlock()
			return fmt.Errorf("%w: meditation already begun", ErrChoiceUnavailable)
		}
		m.Phase = types.MeditationAwaitingFirst
	case choiceID == OpenEyesChoice && hasChoice(m.Choices, OpenEyesChoice):
		e.mu.Unlock()
		return e.finishMeditation(ctx, seq, "")
	default:
		c, ok := findChoice(m.Choices, choiceID)
		if !ok || m.Phase != types.MeditationInDialogue {
			e.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrChoiceUnavailable, choiceID)
		}
		choiceText = c.Text
	}

	p := e.session.Player
	req := generation.MeditationRequest{
		SessionID:    e.session.ID,
		Technique:    m.Content.Technique,
		Bottleneck:   m.Content.Bottleneck,
		Techniques:   append([]types.Technique(nil), p.Techniques...),
		Traits:       p.Traits,
		History:      append([]types.Turn(nil), m.History...),
		PlayerChoice: choiceText,
	}
	e.mu.Unlock()

	reply, err := e.gen.Meditate(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.meditation != m || seq != e.medSeq {
		return nil
	}
	if err != nil {
		e.log.Warn("meditation generation failed", zap.Error(err))
		e.emit(events.GenerationFailed, map[string]any{"kind": "meditation"})
		m.CurrentText = meditationFallback
		m.Choices = []types.ChoiceOption{openEyes}
		m.Phase = types.MeditationInDialogue
		return nil
	}

	if choiceText != "" {
		m.History = append(m.History, types.Turn{Role: "user", Text: choiceText})
	}
	m.History = append(m.History, types.Turn{Role: "assistant", Text: reply.Text})
	m.CurrentText = reply.Text
	m.Choices = reply.Choices
	m.Theme = reply.Theme
	m.Phase = types.MeditationInDialogue

	breakthrough := reply.Breakthrough
	if limit := e.pacing.MaxMeditationExchanges; limit > 0 && exchanges(m.History) >= limit {
		breakthrough = true
	}
	e.emit(events.MeditationReplied, map[string]any{"theme": reply.Theme, "breakthrough": breakthrough})
	if !breakthrough {
		return nil
	}

	m.Phase = types.MeditationBreakthrough
	m.Choices = nil
	theme := reply.Theme
	e.log.Info("meditation breakthrough", zap.String("theme", theme), zap.Int("turns", len(m.History)))
	e.after(ctx, e.pacing.Breakthrough, func(ctx context.Context) error {
		return e.endMeditation(ctx, seq, theme)
	})
	return nil
}

// EndMeditation resolves the active meditation to the outcome matching
// theme, or the first declared outcome when none matches.
func (e *Engine) EndMeditation(ctx context.Context, theme string) error {
	e.mu.RLock()
	seq := e.medSeq
	e.mu.RUnlock()
	return e.endMeditation(ctx, seq, theme)
}

func (e *Engine) endMeditation(ctx context.Context, seq int, theme string) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()
	return e.finishMeditation(ctx, seq, theme)
}

// finishMeditation applies the outcome and loads its scene. Callers hold
// the busy gate but not mu.
func (e *Engine) finishMeditation(ctx context.Context, seq int, theme string) error {
	e.mu.Lock()
	m := e.meditation
	if m == nil || seq != e.medSeq {
		e.mu.Unlock()
		return ErrNotInMode
	}
	outcome, ok := selectOutcome(m.Content.PossibleOutcomes, theme)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: meditation has no outcomes", ErrSceneNotFound)
	}
	if err := e.requireScene(outcome.Consequence.NextScene); err != nil {
		e.mu.Unlock()
		return err
	}
	e.applyStats(outcome.Consequence.StatChanges)
	m.Phase = types.MeditationResolved
	e.meditation = nil
	e.emit(events.MeditationEnded, map[string]any{"theme": outcome.Theme, "next_scene": outcome.Consequence.NextScene})
	e.mu.Unlock()

	e.log.Info("meditation resolved",
		zap.String("theme", outcome.Theme),
		zap.String("next_scene", outcome.Consequence.NextScene))
	return e.loadScene(ctx, outcome.Consequence.NextScene)
}

// exchanges counts the generated replies in a meditation history.
func exchanges(history []types.Turn) int {
	n := 0
	for _, t := range history {
		if t.Role == "assistant" {
			n++
		}
	}
	return n
}

func selectOutcome(outcomes []types.MeditationOutcome, theme string) (types.MeditationOutcome, bool) {
	if len(outcomes) == 0 {
		return types.MeditationOutcome{}, false
	}
	for _, o := range outcomes {
		if o.Theme == theme {
			return o, true
		}
	}
	return outcomes[0], true
}

func findChoice(choices []types.ChoiceOption, id string) (types.ChoiceOption, bool) {
	for _, c := range choices {
		if c.ID == id {
			return c, true
		}
	}
	return types.ChoiceOption{}, false
}

func hasChoice(choices []types.ChoiceOption, id string) bool {
	_, ok := findChoice(choices, id)
	return ok
}
