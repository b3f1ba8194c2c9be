package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nathoo/jianghu/engine/events"
	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/generation"
	"github.com/nathoo/jianghu/types"
)

// NPCSilence is logged as the NPC's reply when generation fails.
const NPCSilence = "The person remains silent."

// Speak sends the player's line to the NPC of the current dialogue scene and
// logs both sides of the exchange. The reply is also shown as scene text.
func (e *Engine) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	if e.scene == nil || e.scene.Scene.Type != types.SceneDialogue || e.scene.Scene.Dialogue == nil {
		e.mu.Unlock()
		return ErrNotInMode
	}
	d := e.scene.Scene.Dialogue
	s := e.session
	req := generation.DialogueRequest{
		SessionID:    s.ID,
		NPCID:        d.NPCID,
		Character:    character(d),
		Relationship: state.Relationship(s, d.NPCID),
		History:      append([]types.ConversationEntry(nil), s.Narrative.ConversationHistory...),
		Context:      d.Context,
		PlayerInput:  text,
	}
	s.Narrative.ConversationHistory = append(s.Narrative.ConversationHistory, types.ConversationEntry{
		Speaker:   types.SpeakerPlayer,
		NPCID:     d.NPCID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	})
	scene := e.scene
	e.mu.Unlock()

	reply, err := e.gen.Converse(ctx, req)
	if err != nil || strings.TrimSpace(reply) == "" {
		e.log.Warn("dialogue generation failed", zap.String("npc_id", d.NPCID), zap.Error(err))
		reply = NPCSilence
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.emit(events.GenerationFailed, map[string]any{"kind": "dialogue"})
	}
	e.session.Narrative.ConversationHistory = append(e.session.Narrative.ConversationHistory, types.ConversationEntry{
		Speaker:   types.SpeakerNPC,
		NPCID:     d.NPCID,
		Text:      reply,
		Timestamp: time.Now().UnixMilli(),
	})
	if e.scene == scene {
		e.scene.Text = reply
		e.scene.Speaker = npcSpeaker(d)
		e.session.UI.TextComplete = false
	}
	e.emit(events.NPCReplied, map[string]any{"npc": d.NPCID})
	return nil
}

// character returns the NPC profile, falling back to one built from the ID.
func character(d *types.DialogueContent) types.CharacterProfile {
	if d.Character != nil {
		return *d.Character
	}
	return types.CharacterProfile{ID: d.NPCID, Name: d.NPCID}
}

func npcSpeaker(d *types.DialogueContent) *types.Speaker {
	c := character(d)
	return &types.Speaker{ID: c.ID, Name: c.Name, Portrait: c.Portrait}
}
