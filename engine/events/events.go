// Package events implements the engine event bus. The engine emits events
// after each state transition; drivers subscribe to refresh their views or
// trace what happened. Handlers run synchronously in subscription order and
// do not recurse.
package events

import (
	"sync"

	"github.com/nathoo/jianghu/types"
)

// Event types emitted by the engine.
const (
	SceneLoaded        = "scene_loaded"
	SceneNotFound      = "scene_not_found"
	PanelAdvanced      = "panel_advanced"
	ChoiceMade         = "choice_made"
	StatChanged        = "stat_changed"
	FlagSet            = "flag_set"
	RelationshipChange = "relationship_changed"
	NPCReplied         = "npc_replied"
	Traveled           = "traveled"
	MeditationStarted  = "meditation_started"
	MeditationReplied  = "meditation_replied"
	MeditationEnded    = "meditation_ended"
	CombatStarted      = "combat_started"
	CombatRevealed     = "combat_choices_revealed"
	CombatExchange     = "combat_exchange"
	CombatEnded        = "combat_ended"
	GenerationFailed   = "generation_failed"
)

// Handler receives events. An empty filter on Subscribe means all types.
type Handler func(types.Event)

type subscription struct {
	id      int
	types   map[string]bool
	handler Handler
}

// Bus fans events out to subscribers. The zero value is ready to use.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

// Subscribe registers h for the given event types (all types when none are
// given) and returns a function that removes the subscription.
func (b *Bus) Subscribe(h Handler, eventTypes ...string) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, handler: h}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = true
		}
	}
	b.subs = append(b.subs, sub)

	id := sub.id
	return func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Dispatch delivers events in order to every matching subscriber. Single
// pass: events emitted by handlers are not fed back into this call.
func (b *Bus) Dispatch(evs []types.Event) {
	if len(evs) == 0 {
		return
	}
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	for _, ev := range evs {
		for _, s := range subs {
			if s.types != nil && !s.types[ev.Type] {
				continue
			}
			s.handler(ev)
		}
	}
}

// Emit is Dispatch for a single event.
func (b *Bus) Emit(eventType string, data map[string]any) {
	b.Dispatch([]types.Event{{Type: eventType, Data: data}})
}
