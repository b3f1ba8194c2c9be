package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/nathoo/jianghu/engine/events"
	"github.com/nathoo/jianghu/engine/parser"
	"github.com/nathoo/jianghu/generation"
)

func hasLine(lines []string, sub string) bool {
	for _, l := range lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func hasEvent(res Result, eventType string) bool {
	for _, ev := range res.Events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

func TestStep_Narrative(t *testing.T) {
	e := newTestEngine().load("start")

	res := e.Step(ctx, "")
	if res.Err != nil {
		t.Fatalf("Step: %v", res.Err)
	}
	if res.Command.Verb != parser.Next || !hasEvent(res, events.PanelAdvanced) {
		t.Errorf("command = %+v events = %+v", res.Command, res.Events)
	}
	if !hasLine(res.Output, "Mother: 'Two.'") || !hasLine(res.Output, HintContinue) {
		t.Errorf("output = %q", res.Output)
	}

	res = e.Step(ctx, "n")
	if !hasLine(res.Output, "1. Go on.") || !hasLine(res.Output, "2. Strike the door. (locked:") {
		t.Errorf("output = %q", res.Output)
	}
	if !hasLine(res.Output, "(locked: Too soon.)") {
		t.Errorf("disabled reason missing: %q", res.Output)
	}

	res = e.Step(ctx, "2")
	if !errors.Is(res.Err, ErrChoiceUnavailable) {
		t.Errorf("locked choice err = %v", res.Err)
	}
	res = e.Step(ctx, "dance")
	if !errors.Is(res.Err, ErrUnknownCommand) {
		t.Errorf("unknown pick err = %v", res.Err)
	}

	// "go" is travel; a narrative scene has no destinations.
	res = e.Step(ctx, "go on")
	if !errors.Is(res.Err, ErrNotInMode) {
		t.Errorf("go err = %v", res.Err)
	}

	res = e.Step(ctx, "1")
	if res.Err != nil {
		t.Fatalf("Step(1): %v", res.Err)
	}
	if got := e.Snapshot().Session.Narrative.CurrentScene; got != "second" {
		t.Errorf("scene = %s, want second", got)
	}
	if !hasEvent(res, events.SceneLoaded) {
		t.Errorf("events = %+v", res.Events)
	}
	if !hasLine(res.Output, "Ash.") || !hasLine(res.Output, HintContinue) {
		t.Errorf("output = %q", res.Output)
	}
}

func TestStep_TerminalScene(t *testing.T) {
	e := newTestEngine().load("end")
	res := e.Step(ctx, "look")
	if res.Err != nil || !hasLine(res.Output, "THE END") {
		t.Errorf("err = %v output = %q", res.Err, res.Output)
	}
	if len(res.Events) != 0 {
		t.Errorf("look emitted %+v", res.Events)
	}
}

func TestStep_Dialogue(t *testing.T) {
	e := newTestEngine()
	e.gen.reply = "Few survive such fire."
	e.load("talk")

	res := e.Step(ctx, "say Who are you?")
	if res.Err != nil {
		t.Fatalf("Step: %v", res.Err)
	}
	if got := e.gen.dialogues[0].PlayerInput; got != "Who are you?" {
		t.Errorf("player input = %q", got)
	}
	if !hasLine(res.Output, "Old Scholar: 'Few survive such fire.'") || !hasLine(res.Output, "1. Leave.") {
		t.Errorf("output = %q", res.Output)
	}

	if res := e.Step(ctx, "say"); !errors.Is(res.Err, ErrEmptyInput) {
		t.Errorf("empty say err = %v", res.Err)
	}

	if res := e.Step(ctx, "leave"); res.Err != nil {
		t.Fatalf("Step(leave): %v", res.Err)
	}
	if got := e.Snapshot().Session.Narrative.CurrentScene; got != "end" {
		t.Errorf("scene = %s, want end", got)
	}
}

func TestStep_Navigation(t *testing.T) {
	e := newTestEngine().load("road")

	res := e.Step(ctx, "l")
	if !hasLine(res.Output, "Two roads.") || !hasLine(res.Output, "2. Sect (locked:") {
		t.Errorf("output = %q", res.Output)
	}

	if res := e.Step(ctx, "2"); !errors.Is(res.Err, ErrChoiceUnavailable) {
		t.Errorf("locked destination err = %v", res.Err)
	}

	res = e.Step(ctx, "go to the village")
	if res.Err != nil {
		t.Fatalf("Step: %v", res.Err)
	}
	if !hasEvent(res, events.Traveled) {
		t.Errorf("events = %+v", res.Events)
	}
	if got := e.Snapshot().Session.Narrative.CurrentScene; got != "end" {
		t.Errorf("scene = %s, want end", got)
	}
}

func TestStep_Combat(t *testing.T) {
	e := newTestEngine().load("fight")

	res := e.Step(ctx, "look")
	if !hasLine(res.Output, "Bandit stands against you.") || !hasLine(res.Output, "Steel.") {
		t.Errorf("output = %q", res.Output)
	}
	if hasLine(res.Output, "1. Strike.") {
		t.Error("choices shown before the reveal")
	}

	res = e.Step(ctx, "")
	if res.Err != nil {
		t.Fatalf("Step: %v", res.Err)
	}
	if !hasEvent(res, events.CombatRevealed) {
		t.Errorf("events = %+v", res.Events)
	}
	if !hasLine(res.Output, "1. Strike. (aggressive)") || !hasLine(res.Output, "3. Iron palm. (counter) (locked:") {
		t.Errorf("output = %q", res.Output)
	}

	if res := e.Step(ctx, "run"); res.Err != nil {
		t.Fatalf("Step(run): %v", res.Err)
	}
	if got := e.Snapshot().Session.Narrative.CurrentScene; got != "start" {
		t.Errorf("scene = %s, want start after fleeing", got)
	}
}

func TestStep_Meditation(t *testing.T) {
	e := newTestEngine()
	e.gen.medReplies = []generation.MeditationReply{
		reply("Your fury burns.", "anger", false),
		reply("The fire steadies.", "anger", true),
	}
	e.load("med")

	if res := e.Step(ctx, "look"); !hasLine(res.Output, HintWaiting) {
		t.Errorf("output before begin = %q", res.Output)
	}

	e.sched.run()
	res := e.Step(ctx, "look")
	if !hasLine(res.Output, "Your fury burns.") || !hasLine(res.Output, "2. No. There must be another way.") {
		t.Errorf("output = %q", res.Output)
	}

	res = e.Step(ctx, "accept")
	if res.Err != nil {
		t.Fatalf("Step: %v", res.Err)
	}
	if !hasLine(res.Output, "Breakthrough") {
		t.Errorf("output = %q", res.Output)
	}

	e.sched.run()
	if got := e.Snapshot().Session.Narrative.CurrentScene; got != "end" {
		t.Errorf("scene = %s, want end", got)
	}
}
