package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/nathoo/jianghu/engine/parser"
	"github.com/nathoo/jianghu/types"
)

// ErrUnknownCommand is returned for input the current mode cannot act on.
var ErrUnknownCommand = errors.New("unknown command")

// Result is the outcome of one Step.
type Result struct {
	Command parser.Command
	Events  []types.Event // emitted synchronously during the step
	Output  []string      // the view after the step
	Err     error
}

// Step parses one line of player input, dispatches it to the operation the
// current mode offers and describes the view that follows.
func (e *Engine) Step(ctx context.Context, input string) Result {
	res := Result{Command: parser.Parse(input)}

	unsubscribe := e.Events.Subscribe(func(ev types.Event) {
		res.Events = append(res.Events, ev)
	})
	res.Err = e.dispatch(ctx, res.Command)
	unsubscribe()

	res.Output = e.Describe()
	return res
}

func (e *Engine) dispatch(ctx context.Context, cmd parser.Command) error {
	snap := e.Snapshot()
	if snap.Scene == nil {
		return ErrNotInMode
	}
	mode := snap.Scene.Scene.Type

	switch cmd.Verb {
	case parser.Look:
		return nil

	case parser.Next:
		switch mode {
		case types.SceneCombat:
			return e.AdvanceCombatPanel()
		case types.SceneNarrative:
			return e.AdvancePanel(ctx)
		}
		return nil

	case parser.Say:
		if cmd.Text == "" {
			return ErrEmptyInput
		}
		return e.Speak(ctx, cmd.Text)

	case parser.Go:
		return e.travelTo(ctx, cmd.Object)

	case parser.Choose:
		switch mode {
		case types.SceneMeditation:
			m, ok := e.Meditation()
			if !ok {
				return ErrNotInMode
			}
			id, err := pick(cmd.Object, choiceIDs(m.Choices))
			if err != nil {
				return err
			}
			return e.SendMeditationResponse(ctx, id)

		case types.SceneCombat:
			var ids []string
			for _, a := range e.AvailableCombatChoices() {
				ids = append(ids, a.Choice.ID)
			}
			id, err := pick(cmd.Object, ids)
			if err != nil {
				return err
			}
			return e.MakeCombatChoice(ctx, id)

		case types.SceneNavigation:
			return e.travelTo(ctx, cmd.Object)
		}

		var ids []string
		for _, a := range e.AvailableChoices() {
			ids = append(ids, a.Choice.ID)
		}
		id, err := pick(cmd.Object, ids)
		if err != nil {
			return err
		}
		return e.MakeChoice(ctx, id)
	}

	return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Verb)
}

func (e *Engine) travelTo(ctx context.Context, object string) error {
	var ids []string
	for _, d := range e.AvailableDestinations() {
		ids = append(ids, d.Destination.ID)
	}
	if ids == nil {
		return ErrNotInMode
	}
	id, err := pick(object, ids)
	if err != nil {
		return err
	}
	return e.Travel(ctx, id)
}

// pick resolves a typed object against the IDs on offer.
func pick(object string, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: nothing to choose", ErrChoiceUnavailable)
	}
	id, ok := parser.Match(object, ids)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, object)
	}
	return id, nil
}

func choiceIDs(choices []types.ChoiceOption) []string {
	ids := make([]string, len(choices))
	for i, c := range choices {
		ids[i] = c.ID
	}
	return ids
}
