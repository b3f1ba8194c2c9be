package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/generation"
	"github.com/nathoo/jianghu/types"
)

// imageCall records one GenerateImage call.
type imageCall struct {
	Kind   generation.ImageKind
	Desc   string
	Aspect generation.AspectRatio
}

// fakeGen is a scripted Generator.
type fakeGen struct {
	mu      sync.Mutex
	images  []imageCall
	block   chan struct{} // when set, GenerateImage waits on it
	entered chan struct{} // when set, signalled on each GenerateImage
	failing bool          // GenerateImage returns the placeholder

	medReplies []generation.MeditationReply
	medErr     error
	medReqs    []generation.MeditationRequest

	reply     string
	replyErr  error
	dialogues []generation.DialogueRequest
}

func (f *fakeGen) GenerateImage(ctx context.Context, kind generation.ImageKind, desc string, aspect generation.AspectRatio) string {
	f.mu.Lock()
	f.images = append(f.images, imageCall{kind, desc, aspect})
	entered, block := f.entered, f.block
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if f.failing {
		return generation.DefaultPlaceholder
	}
	return "img:" + desc
}

func (f *fakeGen) Meditate(ctx context.Context, req generation.MeditationRequest) (generation.MeditationReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.medReqs = append(f.medReqs, req)
	if f.medErr != nil {
		return generation.MeditationReply{}, f.medErr
	}
	if len(f.medReplies) == 0 {
		return generation.MeditationReply{}, errors.New("no scripted reply")
	}
	r := f.medReplies[0]
	if len(f.medReplies) > 1 {
		f.medReplies = f.medReplies[1:]
	}
	return r, nil
}

func (f *fakeGen) Converse(ctx context.Context, req generation.DialogueRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogues = append(f.dialogues, req)
	return f.reply, f.replyErr
}

func (f *fakeGen) imageCalls() []imageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imageCall(nil), f.images...)
}

// manualScheduler queues delayed steps until the test runs them.
type manualScheduler struct {
	mu     sync.Mutex
	queue  []func()
	delays []time.Duration
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, f)
	s.delays = append(s.delays, d)
}

// run fires the steps queued so far and reports how many ran. Steps they
// schedule wait for the next call.
func (s *manualScheduler) run() int {
	s.mu.Lock()
	q := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, f := range q {
		f()
	}
	return len(q)
}

// step fires only the oldest queued step.
func (s *manualScheduler) step() {
	s.mu.Lock()
	f := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()
	f()
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// fixedRolls returns its rolls in order, repeating the last.
type fixedRolls struct {
	rolls []float64
	calls int
}

func (f *fixedRolls) Percent() float64 {
	f.calls++
	r := f.rolls[0]
	if len(f.rolls) > 1 {
		f.rolls = f.rolls[1:]
	}
	return r
}

func minValue(v float64) *float64 { return &v }

// testDefs builds a small story touching every scene type.
func testDefs() *state.Defs {
	scenes := []types.Scene{
		{
			ID:         "start",
			Type:       types.SceneNarrative,
			Background: types.ImageRef{Prompt: "snowy village"},
			Narrative: &types.NarrativeContent{
				Panels: []types.Panel{
					{ID: "p1", Image: types.ImageRef{Prompt: "child eyes"}, Text: "One.", PanelSize: "half"},
					{ID: "p2", Text: "Two.", Speaker: &types.Speaker{ID: "mother", Name: "Mother"}},
					{ID: "p3", Image: types.ImageRef{Prompt: "burning roofs"}, Text: "Three.", PanelSize: "third"},
				},
				Choices: []types.ChoiceOption{
					{
						ID:   "go",
						Text: "Go on.",
						Consequence: types.Consequence{
							NextScene:    "second",
							Flags:        map[string]any{"met": true},
							StatChanges:  map[string]int{"cultivation.internalEnergy": 5},
							Relationship: &types.RelationshipChange{NPCID: "scholar", Change: 2},
						},
					},
					{
						ID:          "locked",
						Text:        "Strike the door.",
						Requirement: &types.Requirement{Stat: "cultivation.externalArts", MinValue: minValue(10)},
						Consequence: types.Consequence{NextScene: "second"},
					},
					{
						ID:             "disabled",
						Text:           "Not yet.",
						Disabled:       true,
						DisabledReason: "Too soon.",
						Consequence:    types.Consequence{NextScene: "second"},
					},
					{
						ID:          "lost",
						Text:        "Walk into nothing.",
						Consequence: types.Consequence{NextScene: "nowhere"},
					},
				},
			},
		},
		{
			ID:   "second",
			Type: types.SceneNarrative,
			Narrative: &types.NarrativeContent{
				Panels:      []types.Panel{{Text: "Ash."}},
				NextScene:   "end",
				Flags:       map[string]any{"arrived": true},
				StatChanges: map[string]int{"traits.orthodoxy": 1},
			},
		},
		{
			ID:   "end",
			Type: types.SceneNarrative,
			Narrative: &types.NarrativeContent{
				Panels:   []types.Panel{{Text: "Fin."}},
				Terminal: true,
			},
		},
		{
			ID:         "med",
			Type:       types.SceneMeditation,
			Background: types.ImageRef{Prompt: "still lake"},
			Meditation: &types.MeditationContent{
				Context:    "You sit.",
				Technique:  "Breath of the Crane",
				Bottleneck: "Fear",
				PossibleOutcomes: []types.MeditationOutcome{
					{Theme: "anger", Consequence: types.MeditationConsequence{
						NextScene:   "end",
						StatChanges: map[string]int{"cultivation.internalEnergy": 10},
					}},
					{Theme: "sorrow", Consequence: types.MeditationConsequence{NextScene: "second"}},
				},
			},
		},
		{
			ID:   "fight",
			Type: types.SceneCombat,
			Combat: &types.CombatContent{
				Opponent: types.Opponent{ID: "bandit", Name: "Bandit", Strength: 10},
				Context:  "A bandit blocks the road.",
				Exchanges: []types.CombatExchange{
					{
						Panels: []types.Panel{
							{Image: types.ImageRef{Prompt: "blade drawn"}, Text: "Steel."},
							{Text: "He lunges."},
						},
						Choices: []types.CombatChoice{
							{ID: "strike", Text: "Strike.", Type: types.CombatAggressive, Effectiveness: 50},
							{ID: "run", Text: "Run.", Type: types.CombatFlee},
							{ID: "palm", Text: "Iron palm.", Type: types.CombatCounter, Effectiveness: 80,
								Requirement: &types.Requirement{Stat: "cultivation.externalArts", MinValue: minValue(20)}},
						},
					},
					{
						Panels: []types.Panel{{Text: "Again."}},
						Choices: []types.CombatChoice{
							{ID: "strike", Text: "Strike.", Type: types.CombatAggressive, Effectiveness: 50},
							{ID: "run", Text: "Run.", Type: types.CombatFlee},
						},
					},
				},
				Outcomes: types.CombatOutcomes{
					Victory: types.CombatOutcome{NextScene: "end", Flags: map[string]any{"won": true}, StatChanges: map[string]int{"cultivation.externalArts": 5}},
					Defeat:  types.CombatOutcome{NextScene: "second"},
					Draw:    types.CombatOutcome{NextScene: "med"},
					Flee:    types.CombatOutcome{NextScene: "start", Flags: map[string]any{"fled": true}},
				},
			},
		},
		{
			ID:   "talk",
			Type: types.SceneDialogue,
			Dialogue: &types.DialogueContent{
				NPCID:         "scholar",
				InitialPrompt: "You survived.",
				Context:       "A burned library.",
				Character:     &types.CharacterProfile{ID: "scholar", Name: "Old Scholar"},
				ExitOptions: []types.ChoiceOption{
					{ID: "leave", Text: "Leave.", Consequence: types.Consequence{NextScene: "end"}},
				},
			},
		},
		{
			ID:   "road",
			Type: types.SceneNavigation,
			Navigation: &types.NavigationContent{
				Description: "Two roads.",
				Destinations: []types.Destination{
					{ID: "village", Name: "Village", Consequence: types.TravelConsequence{NextScene: "end", TimeAdvance: 3}},
					{ID: "sect", Name: "Sect", Requirement: &types.Requirement{Flag: "invited"}, Consequence: types.TravelConsequence{NextScene: "second"}},
				},
			},
		},
	}
	return state.NewDefs(types.GameDef{Title: "Test", Start: "start"}, scenes)
}

type testEngine struct {
	*Engine
	gen   *fakeGen
	sched *manualScheduler
	rolls *fixedRolls
}

func newTestEngine(opts ...Option) *testEngine {
	te := &testEngine{
		gen:   &fakeGen{},
		sched: &manualScheduler{},
		rolls: &fixedRolls{rolls: []float64{0}},
	}
	opts = append([]Option{WithScheduler(te.sched), WithRandom(te.rolls)}, opts...)
	te.Engine = New(testDefs(), te.gen, opts...)
	return te
}

// load loads id or panics; tests use it for setup only.
func (te *testEngine) load(id string) *testEngine {
	if err := te.LoadScene(context.Background(), id); err != nil {
		panic(err)
	}
	return te
}
