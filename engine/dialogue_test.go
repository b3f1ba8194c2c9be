package engine

import (
	"errors"
	"testing"

	"github.com/nathoo/jianghu/types"
)

func TestDialogue_LoadShowsInitialPrompt(t *testing.T) {
	e := newTestEngine().load("talk")

	snap := e.Snapshot()
	if snap.Scene.Text != "You survived." {
		t.Errorf("text = %q", snap.Scene.Text)
	}
	if snap.Scene.Speaker == nil || snap.Scene.Speaker.Name != "Old Scholar" {
		t.Errorf("speaker = %+v", snap.Scene.Speaker)
	}
	hist := snap.Session.Narrative.ConversationHistory
	if len(hist) != 1 || hist[0].Speaker != types.SpeakerNPC || hist[0].NPCID != "scholar" {
		t.Errorf("conversation = %+v", hist)
	}
	if snap.Session.UI.Mode != types.UIMode(types.SceneDialogue) {
		t.Errorf("mode = %q", snap.Session.UI.Mode)
	}
}

func TestSpeak(t *testing.T) {
	e := newTestEngine().load("talk")
	e.gen.reply = "A man who has read too many books."

	if err := e.Speak(ctx, "  Who are you?  "); err != nil {
		t.Fatal(err)
	}

	if len(e.gen.dialogues) != 1 {
		t.Fatalf("converse calls = %d", len(e.gen.dialogues))
	}
	req := e.gen.dialogues[0]
	if req.NPCID != "scholar" || req.Character.Name != "Old Scholar" || req.Context != "A burned library." {
		t.Errorf("request = %+v", req)
	}
	if req.PlayerInput != "Who are you?" {
		t.Errorf("input = %q", req.PlayerInput)
	}
	if len(req.History) != 1 {
		t.Errorf("request history = %d entries, want the log before this line", len(req.History))
	}

	snap := e.Snapshot()
	hist := snap.Session.Narrative.ConversationHistory
	if len(hist) != 3 {
		t.Fatalf("conversation = %+v", hist)
	}
	if hist[1].Speaker != types.SpeakerPlayer || hist[2].Text != "A man who has read too many books." {
		t.Errorf("conversation = %+v", hist)
	}
	if snap.Scene.Text != "A man who has read too many books." {
		t.Errorf("scene text = %q", snap.Scene.Text)
	}
}

func TestSpeak_RelationshipPassed(t *testing.T) {
	e := newTestEngine().load("start")
	advanceTo(t, e, 2)
	if err := e.MakeChoice(ctx, "go"); err != nil {
		t.Fatal(err)
	}
	e.load("talk")

	if err := e.Speak(ctx, "Hello."); err != nil {
		t.Fatal(err)
	}
	if got := e.gen.dialogues[0].Relationship; got != 2 {
		t.Errorf("relationship = %d, want 2", got)
	}
}

func TestSpeak_FailureFallsSilent(t *testing.T) {
	e := newTestEngine().load("talk")
	e.gen.replyErr = errors.New("timeout")

	if err := e.Speak(ctx, "Hello?"); err != nil {
		t.Fatal(err)
	}
	hist := e.Snapshot().Session.Narrative.ConversationHistory
	last := hist[len(hist)-1]
	if last.Text != NPCSilence || last.Speaker != types.SpeakerNPC {
		t.Errorf("last entry = %+v", last)
	}
}

func TestSpeak_Rejected(t *testing.T) {
	e := newTestEngine().load("talk")
	if err := e.Speak(ctx, "   "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty input: err = %v", err)
	}

	e = newTestEngine().load("start")
	if err := e.Speak(ctx, "Hello"); !errors.Is(err, ErrNotInMode) {
		t.Errorf("outside dialogue: err = %v", err)
	}
}

func TestDialogue_ExitOption(t *testing.T) {
	e := newTestEngine().load("talk")
	if err := e.MakeChoice(ctx, "leave"); err != nil {
		t.Fatal(err)
	}
	if id := e.Snapshot().Scene.Scene.ID; id != "end" {
		t.Errorf("scene = %q", id)
	}
}
