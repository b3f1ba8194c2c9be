// Package engine provides the narrative state machine that wires together
// scene loading, image resolution, choices, stat and flag mutation, and the
// meditation and combat sub-modes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nathoo/jianghu/engine/effects"
	"github.com/nathoo/jianghu/engine/events"
	"github.com/nathoo/jianghu/engine/rules"
	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/generation"
	"github.com/nathoo/jianghu/types"
)

// Errors returned by engine operations. A rejected operation leaves the
// session as it was.
var (
	// ErrSceneNotFound means a scene id is missing from the story.
	ErrSceneNotFound = errors.New("scene not found")
	// ErrChoiceUnavailable means the choice, move or destination is unknown,
	// disabled, fails its requirement, or is not offered yet.
	ErrChoiceUnavailable = errors.New("choice unavailable")
	// ErrBusy means another transition is still in flight.
	ErrBusy = errors.New("transition in progress")
	// ErrNotInMode means the operation does not apply to the current scene.
	ErrNotInMode = errors.New("not available in this mode")
	// ErrEmptyInput means the player said nothing.
	ErrEmptyInput = errors.New("empty input")
)

// Generator is the generation gateway as the engine sees it.
// GenerateImage never fails; the other calls return errors the engine
// replaces with in-fiction fallbacks.
type Generator interface {
	GenerateImage(ctx context.Context, kind generation.ImageKind, description string, aspect generation.AspectRatio) string
	Meditate(ctx context.Context, req generation.MeditationRequest) (generation.MeditationReply, error)
	Converse(ctx context.Context, req generation.DialogueRequest) (string, error)
}

// Pacing holds the delays and bounds of the timed sub-modes.
type Pacing struct {
	MeditationBegin        time.Duration
	Breakthrough           time.Duration
	CombatReveal           time.Duration
	MaxMeditationExchanges int // generated replies before a forced breakthrough; 0 means unlimited
}

// DefaultPacing returns the standard delays.
func DefaultPacing() Pacing {
	return Pacing{
		MeditationBegin:        time.Second,
		Breakthrough:           3 * time.Second,
		CombatReveal:           2 * time.Second,
		MaxMeditationExchanges: 10,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithScheduler sets the scheduler for timed steps.
func WithScheduler(s Scheduler) Option { return func(e *Engine) { e.sched = s } }

// WithRandom sets the source of combat rolls.
func WithRandom(r RandomSource) Option { return func(e *Engine) { e.rng = r } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithPacing sets the sub-mode delays.
func WithPacing(p Pacing) Option { return func(e *Engine) { e.pacing = p } }

// Engine holds the scene repository and the mutable session.
//
// Transitions (loading a scene, choosing, advancing) take the busy gate; a
// second transition while one is in flight fails with ErrBusy. State reads
// take mu, which is never held across a generation call.
type Engine struct {
	Defs   *state.Defs
	Events *events.Bus

	gen     Generator
	sched   Scheduler
	rng     RandomSource
	log     *zap.Logger
	metrics *Metrics
	pacing  Pacing

	busy atomic.Bool

	mu         sync.RWMutex
	session    *types.Session
	scene      *types.CurrentScene
	panel      int
	meditation *types.MeditationState
	combat     *types.CombatState
	medSeq     int // bumped on each meditation start; tags its timers
	combatSeq  int // bumped on each combat start; tags its timers
	pending    []types.Event
}

// New creates an engine with a fresh session positioned before the start
// scene. Call Start to load it.
func New(defs *state.Defs, gen Generator, opts ...Option) *Engine {
	e := &Engine{
		Defs:    defs,
		Events:  &events.Bus{},
		gen:     gen,
		sched:   TimerScheduler{},
		log:     zap.NewNop(),
		pacing:  DefaultPacing(),
		session: state.NewSession(defs),
	}
	for _, o := range opts {
		o(e)
	}
	if e.rng == nil {
		seed, err := NewSeed()
		if err != nil {
			seed = time.Now().UnixNano()
		}
		e.rng = NewRNG(seed)
	}
	e.log = e.log.With(zap.String("session_id", e.session.ID))
	return e
}

// Start loads the session's start scene.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.RLock()
	start := e.session.Narrative.CurrentScene
	e.mu.RUnlock()
	return e.LoadScene(ctx, start)
}

// Busy reports whether a transition is in flight.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// acquire takes the busy gate.
func (e *Engine) acquire() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	e.mu.Lock()
	e.session.UI.IsTransitioning = true
	e.mu.Unlock()
	return nil
}

// release drops the busy gate and delivers the events recorded while it
// was held.
func (e *Engine) release() {
	e.mu.Lock()
	evs := e.pending
	e.pending = nil
	e.session.UI.IsTransitioning = false
	e.mu.Unlock()

	e.busy.Store(false)
	e.Events.Dispatch(evs)
}

// flush delivers pending events outside a transition. During one they are
// left for release.
func (e *Engine) flush() {
	if e.busy.Load() {
		return
	}
	e.mu.Lock()
	evs := e.pending
	e.pending = nil
	e.mu.Unlock()
	e.Events.Dispatch(evs)
}

// emit records an event for delivery on release. Callers hold mu.
func (e *Engine) emit(eventType string, data map[string]any) {
	e.pending = append(e.pending, types.Event{Type: eventType, Data: data})
}

// LoadScene replaces the current scene. An unknown ID leaves all state
// untouched and returns ErrSceneNotFound.
func (e *Engine) LoadScene(ctx context.Context, id string) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()
	return e.loadScene(ctx, id)
}

// loadScene does the work of LoadScene. Callers hold the busy gate.
func (e *Engine) loadScene(ctx context.Context, id string) error {
	// 1. Look up the authored scene.
	sc, ok := e.Defs.Scene(id)
	if !ok {
		e.mu.Lock()
		err := e.requireScene(id)
		e.mu.Unlock()
		return err
	}

	// 2. Resolve images in order, outside the state lock.
	cs := e.resolveScene(ctx, sc)

	// 3. Swap in the new scene.
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	s.Narrative.CurrentScene = id
	s.Narrative.SceneHistory = append(s.Narrative.SceneHistory, id)
	s.UI.Mode = types.UIMode(sc.Type)
	s.UI.TextComplete = false
	e.scene = &cs
	e.panel = 0
	e.meditation = nil
	e.combat = nil

	if sc.Type == types.SceneDialogue && sc.Dialogue != nil && sc.Dialogue.InitialPrompt != "" {
		s.Narrative.ConversationHistory = append(s.Narrative.ConversationHistory, types.ConversationEntry{
			Speaker:   types.SpeakerNPC,
			NPCID:     sc.Dialogue.NPCID,
			Text:      sc.Dialogue.InitialPrompt,
			Timestamp: time.Now().UnixMilli(),
		})
	}

	e.metrics.sceneLoaded(sc.Type)
	e.log.Info("scene loaded", zap.String("scene_id", id), zap.String("type", string(sc.Type)))
	e.emit(events.SceneLoaded, map[string]any{"scene": id, "type": string(sc.Type)})

	// 4. Start the sub-mode, if any.
	switch sc.Type {
	case types.SceneMeditation:
		if sc.Meditation != nil {
			e.startMeditation(ctx, *sc.Meditation)
		}
	case types.SceneCombat:
		if sc.Combat != nil {
			e.startCombat(ctx, *sc.Combat)
		}
	}
	return nil
}

// resolveScene builds the displayed copy of sc with every image prompt
// replaced by a generated reference. Calls are made one at a time: the
// background first, then panels in authored order.
func (e *Engine) resolveScene(ctx context.Context, sc types.Scene) types.CurrentScene {
	cs := types.CurrentScene{Scene: sc}
	cs.Background = e.resolveImage(ctx, sc.Background, backgroundKind(sc.Type), generation.Landscape169)

	switch sc.Type {
	case types.SceneNarrative:
		if n := sc.Narrative; n != nil {
			cs.Panels = e.resolvePanels(ctx, n.Panels, generation.KindPanel)
			cs.Choices = n.Choices
		}
	case types.SceneDialogue:
		if d := sc.Dialogue; d != nil {
			cs.Text = d.InitialPrompt
			cs.Speaker = npcSpeaker(d)
			cs.Choices = d.ExitOptions
		}
	case types.SceneNavigation:
		if n := sc.Navigation; n != nil {
			cs.Text = n.Description
		}
	case types.SceneMeditation:
		if m := sc.Meditation; m != nil {
			cs.Text = m.Context
		}
	case types.SceneCombat:
		if c := sc.Combat; c != nil {
			cs.Text = c.Context
			for _, ex := range c.Exchanges {
				cs.Exchanges = append(cs.Exchanges, e.resolvePanels(ctx, ex.Panels, generation.KindCombat))
			}
		}
	}

	if len(cs.Panels) > 0 {
		cs.Text = cs.Panels[0].Text
		cs.Speaker = cs.Panels[0].Speaker
	}
	return cs
}

func (e *Engine) resolvePanels(ctx context.Context, panels []types.Panel, kind generation.ImageKind) []types.Panel {
	out := make([]types.Panel, len(panels))
	for i, p := range panels {
		if p.Speaker != nil {
			sp := *p.Speaker
			p.Speaker = &sp
		}
		if p.Image.Prompt != "" {
			p.Image = types.ImageRef{URL: e.gen.GenerateImage(ctx, kind, p.Image.Prompt, generation.AspectForPanel(p.PanelSize))}
		}
		out[i] = p
	}
	return out
}

func (e *Engine) resolveImage(ctx context.Context, ref types.ImageRef, kind generation.ImageKind, aspect generation.AspectRatio) string {
	if ref.URL != "" {
		return ref.URL
	}
	if ref.Prompt == "" {
		return ""
	}
	return e.gen.GenerateImage(ctx, kind, ref.Prompt, aspect)
}

func backgroundKind(t types.SceneType) generation.ImageKind {
	switch t {
	case types.SceneMeditation:
		return generation.KindMeditation
	case types.SceneCombat:
		return generation.KindCombat
	default:
		return generation.KindLandscape
	}
}

// MakeChoice resolves a choice on the current scene and loads its target.
// It returns ErrChoiceUnavailable without touching state when the scene has
// no such selectable choice or the cursor is not on the last panel.
func (e *Engine) MakeChoice(ctx context.Context, choiceID string) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	choice, err := e.selectableChoice(choiceID)
	if err != nil {
		e.mu.Unlock()
		e.log.Debug("choice ignored", zap.String("choice_id", choiceID), zap.Error(err))
		return err
	}
	if err := e.requireScene(choice.Consequence.NextScene); err != nil {
		e.mu.Unlock()
		return err
	}
	e.applyConsequence(choice)
	e.mu.Unlock()

	e.log.Info("choice made",
		zap.String("choice_id", choiceID),
		zap.String("next_scene", choice.Consequence.NextScene))
	return e.loadScene(ctx, choice.Consequence.NextScene)
}

// requireScene reports ErrSceneNotFound for an id missing from the story.
// Transitions check their target before touching the session. Callers hold mu.
func (e *Engine) requireScene(id string) error {
	if _, ok := e.Defs.Scene(id); ok {
		return nil
	}
	e.log.Warn("scene not found", zap.String("scene_id", id))
	e.emit(events.SceneNotFound, map[string]any{"scene": id})
	return fmt.Errorf("%w: %s", ErrSceneNotFound, id)
}

// selectableChoice finds an available choice. Callers hold mu.
func (e *Engine) selectableChoice(id string) (types.ChoiceOption, error) {
	if e.scene == nil || len(e.scene.Choices) == 0 {
		return types.ChoiceOption{}, fmt.Errorf("%w: scene has no choices", ErrChoiceUnavailable)
	}
	if !e.onLastPanel() {
		return types.ChoiceOption{}, fmt.Errorf("%w: panels remain", ErrChoiceUnavailable)
	}
	for _, a := range rules.Annotate(e.scene.Choices, e.session) {
		if a.Choice.ID != id {
			continue
		}
		if !a.Available {
			return types.ChoiceOption{}, fmt.Errorf("%w: %s", ErrChoiceUnavailable, a.Reason)
		}
		return a.Choice, nil
	}
	return types.ChoiceOption{}, fmt.Errorf("%w: unknown choice %s", ErrChoiceUnavailable, id)
}

// applyConsequence writes a choice's flags, relationship and stat deltas
// and logs the decision. Callers hold mu.
func (e *Engine) applyConsequence(choice types.ChoiceOption) {
	s := e.session
	cons := choice.Consequence

	e.applyFlags(cons.Flags)
	if r := cons.Relationship; r != nil {
		s.World.Relationships = effects.AdjustRelationship(s.World.Relationships, r.NPCID, r.Change)
		e.emit(events.RelationshipChange, map[string]any{"npc": r.NPCID, "change": r.Change})
	}
	e.applyStats(cons.StatChanges)

	s.Narrative.ChoicesMade = append(s.Narrative.ChoicesMade, types.ChoiceRecord{
		SceneID:      e.scene.Scene.ID,
		ChoiceText:   choice.Text,
		ChoiceID:     choice.ID,
		Consequences: cons,
	})
	e.emit(events.ChoiceMade, map[string]any{"scene": e.scene.Scene.ID, "choice": choice.ID})
}

// applyFlags merges flag writes into the world. Callers hold mu.
func (e *Engine) applyFlags(flags map[string]any) {
	if len(flags) == 0 {
		return
	}
	merged, skipped := effects.MergeFlags(e.session.World.Flags, flags)
	e.session.World.Flags = merged
	for _, k := range skipped {
		e.log.Debug("flag write skipped", zap.String("flag", k))
	}
	for k, v := range flags {
		if _, ok := merged[k]; ok {
			e.emit(events.FlagSet, map[string]any{"flag": k, "value": v})
		}
	}
}

// applyStats runs stat deltas through the mutator. Callers hold mu.
func (e *Engine) applyStats(changes map[string]int) {
	if len(changes) == 0 {
		return
	}
	p, res := effects.ApplyStatChanges(e.session.Player, changes)
	e.session.Player = p
	for _, r := range res {
		if r.Outcome != effects.Applied {
			e.log.Debug("stat change skipped", zap.String("path", r.Path), zap.Stringer("outcome", r.Outcome))
			continue
		}
		e.emit(events.StatChanged, map[string]any{"path": r.Path, "delta": r.Delta})
	}
}

func (e *Engine) onLastPanel() bool {
	n := len(e.scene.Panels)
	return n == 0 || e.panel >= n-1
}

// AdvancePanel moves to the next panel. On the last panel of a scene with a
// nextScene and no choices, it applies the scene's flags and stat deltas and
// loads the next scene; with pending choices it does nothing.
func (e *Engine) AdvancePanel(ctx context.Context) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	if e.scene == nil || e.scene.Scene.Type != types.SceneNarrative {
		e.mu.Unlock()
		return ErrNotInMode
	}

	if e.panel < len(e.scene.Panels)-1 {
		e.panel++
		p := e.scene.Panels[e.panel]
		e.scene.Text = p.Text
		e.scene.Speaker = p.Speaker
		e.session.UI.TextComplete = false
		e.emit(events.PanelAdvanced, map[string]any{"scene": e.scene.Scene.ID, "panel": e.panel})
		e.mu.Unlock()
		return nil
	}

	content := e.scene.Scene.Narrative
	if len(e.scene.Choices) > 0 || content == nil || content.NextScene == "" {
		e.mu.Unlock()
		return nil
	}
	if err := e.requireScene(content.NextScene); err != nil {
		e.mu.Unlock()
		return err
	}
	e.applyFlags(content.Flags)
	e.applyStats(content.StatChanges)
	next := content.NextScene
	e.mu.Unlock()

	return e.loadScene(ctx, next)
}

// AvailableChoices returns the current scene's choices once the last panel
// is showing, each marked with whether it can be selected.
func (e *Engine) AvailableChoices() []rules.Availability {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.scene == nil || len(e.scene.Choices) == 0 || !e.onLastPanel() {
		return nil
	}
	return rules.Annotate(e.scene.Choices, e.session)
}

// SetTextComplete sets the text-complete gate.
func (e *Engine) SetTextComplete(complete bool) {
	e.mu.Lock()
	e.session.UI.TextComplete = complete
	e.mu.Unlock()
}

// Snapshot is a consistent copy of the engine's state.
type Snapshot struct {
	Session    types.Session
	Scene      *types.CurrentScene
	Panel      int
	Meditation *types.MeditationState
	Combat     *types.CombatState
}

// Snapshot returns a copy of the current state. Safe to call while a
// transition is in flight.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Session: cloneSession(e.session),
		Panel:   e.panel,
	}
	if e.scene != nil {
		cs := *e.scene
		snap.Scene = &cs
	}
	if e.meditation != nil {
		m := *e.meditation
		m.History = append([]types.Turn(nil), m.History...)
		m.Choices = append([]types.ChoiceOption(nil), m.Choices...)
		snap.Meditation = &m
	}
	if e.combat != nil {
		c := *e.combat
		snap.Combat = &c
	}
	return snap
}

func cloneSession(s *types.Session) types.Session {
	out := *s
	out.Player = effects.Clone(s.Player)
	out.World.Flags = make(map[string]any, len(s.World.Flags))
	for k, v := range s.World.Flags {
		out.World.Flags[k] = v
	}
	out.World.Relationships = make(map[string]int, len(s.World.Relationships))
	for k, v := range s.World.Relationships {
		out.World.Relationships[k] = v
	}
	out.Narrative.SceneHistory = append([]string{}, s.Narrative.SceneHistory...)
	out.Narrative.ConversationHistory = append([]types.ConversationEntry{}, s.Narrative.ConversationHistory...)
	out.Narrative.ChoicesMade = append([]types.ChoiceRecord{}, s.Narrative.ChoicesMade...)
	return out
}
