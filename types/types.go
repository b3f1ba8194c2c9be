// Package types defines the shared data structures for the Jianghu engine.
// This package contains only type definitions: no logic, no methods.
package types

// SceneType selects which content variant a scene carries.
type SceneType string

const (
	SceneNarrative  SceneType = "narrative"
	SceneDialogue   SceneType = "dialogue"
	SceneNavigation SceneType = "navigation"
	SceneMeditation SceneType = "meditation"
	SceneCombat     SceneType = "combat"
)

// ImageRef is either a literal image reference (URL) or a prompt that must be
// resolved through the image generator. At most one field is set.
type ImageRef struct {
	URL    string
	Prompt string
}

// Speaker identifies who is talking on a panel.
type Speaker struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Portrait string `json:"portrait,omitempty"`
}

// Panel is one ordered display step of a scene.
type Panel struct {
	ID           string
	Image        ImageRef
	Text         string
	Speaker      *Speaker
	TextPosition string // "bottom", "top", "overlay", "center"
	PanelSize    string // "full", "half", "third", "wide"
}

// Requirement gates a choice or destination on a stat threshold or a flag.
type Requirement struct {
	Stat     string   `json:"stat,omitempty"`
	MinValue *float64 `json:"minValue,omitempty"`
	Flag     string   `json:"flag,omitempty"`
}

// RelationshipChange is an additive delta to one NPC relationship score.
type RelationshipChange struct {
	NPCID  string `json:"npcId"`
	Change int    `json:"change"`
}

// Consequence is what resolving a choice does to the session.
type Consequence struct {
	NextScene    string              `json:"nextScene"`
	Flags        map[string]any      `json:"flags,omitempty"`
	StatChanges  map[string]int      `json:"statChanges,omitempty"`
	Relationship *RelationshipChange `json:"relationship,omitempty"`
}

// ChoiceOption is a selectable branch.
type ChoiceOption struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	TextZh         string       `json:"textZh,omitempty"`
	Disabled       bool         `json:"disabled,omitempty"`
	DisabledReason string       `json:"disabledReason,omitempty"`
	Requirement    *Requirement `json:"requirement,omitempty"`
	Consequence    Consequence  `json:"consequence"`
}

// NarrativeContent is the content of narrative scenes.
type NarrativeContent struct {
	Panels      []Panel
	Choices     []ChoiceOption
	NextScene   string
	Flags       map[string]any
	StatChanges map[string]int
	Terminal    bool // ends the story; no nextScene or choices required
}

// CharacterProfile describes an NPC for dialogue generation.
type CharacterProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NameZh      string `json:"nameZh,omitempty"`
	Portrait    string `json:"portrait,omitempty"`
	Personality string `json:"personality,omitempty"`
	Knowledge   string `json:"knowledge,omitempty"`
	Background  string `json:"background,omitempty"`
}

// DialogueContent is the content of free-form NPC conversation scenes.
type DialogueContent struct {
	NPCID         string            `json:"npcId"`
	InitialPrompt string            `json:"initialPrompt"`
	Context       string            `json:"context"`
	Character     *CharacterProfile `json:"character,omitempty"`
	ExitOptions   []ChoiceOption    `json:"exitOptions"`
}

// TravelConsequence is where a destination leads and how long it takes.
type TravelConsequence struct {
	NextScene   string `json:"nextScene"`
	TimeAdvance int    `json:"timeAdvance,omitempty"` // in day periods
}

// Destination is one entry of a navigation scene.
type Destination struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Requirement *Requirement      `json:"requirement,omitempty"`
	Consequence TravelConsequence `json:"consequence"`
}

// NavigationContent is the content of travel scenes.
type NavigationContent struct {
	Description  string        `json:"description"`
	Destinations []Destination `json:"destinations"`
}

// TechniqueModifier flavours the technique a meditation outcome shapes.
type TechniqueModifier struct {
	Style   string `json:"style,omitempty"`
	Element string `json:"element,omitempty"`
}

// MeditationConsequence is applied when a meditation resolves to an outcome.
type MeditationConsequence struct {
	NextScene         string             `json:"nextScene"`
	TechniqueModifier *TechniqueModifier `json:"techniqueModifier,omitempty"`
	StatChanges       map[string]int     `json:"statChanges,omitempty"`
}

// MeditationOutcome maps a detected theme to a consequence.
type MeditationOutcome struct {
	Theme       string                `json:"theme"`
	Consequence MeditationConsequence `json:"consequence"`
}

// MeditationContent is the content of meditation scenes.
type MeditationContent struct {
	Context          string              `json:"context"`
	Technique        string              `json:"technique,omitempty"`
	Bottleneck       string              `json:"bottleneck,omitempty"`
	AIPrompt         string              `json:"aiPrompt"`
	PossibleOutcomes []MeditationOutcome `json:"possibleOutcomes"`
}

// Opponent describes who the player fights.
type Opponent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Portrait    string `json:"portrait,omitempty"`
	Style       string `json:"style,omitempty"`
	Strength    int    `json:"strength"`
}

// CombatChoiceType classifies a combat choice.
type CombatChoiceType string

const (
	CombatAggressive CombatChoiceType = "aggressive"
	CombatDefensive  CombatChoiceType = "defensive"
	CombatCounter    CombatChoiceType = "counter"
	CombatObserve    CombatChoiceType = "observe"
	CombatFlee       CombatChoiceType = "flee"
)

// CombatChoice is one move offered during an exchange.
type CombatChoice struct {
	ID            string           `json:"id"`
	Text          string           `json:"text"`
	Type          CombatChoiceType `json:"type"`
	Requirement   *Requirement     `json:"requirement,omitempty"`
	Effectiveness int              `json:"effectiveness"`
}

// CombatExchange is one round of a fight.
type CombatExchange struct {
	Narration string
	Panels    []Panel
	Choices   []CombatChoice
}

// CombatOutcome is where a fight leads and what it costs or grants.
type CombatOutcome struct {
	NextScene   string         `json:"nextScene"`
	StatChanges map[string]int `json:"statChanges,omitempty"`
	Flags       map[string]any `json:"flags,omitempty"`
}

// CombatOutcomes lists the four terminal outcomes of a fight.
type CombatOutcomes struct {
	Victory CombatOutcome `json:"victory"`
	Defeat  CombatOutcome `json:"defeat"`
	Draw    CombatOutcome `json:"draw"`
	Flee    CombatOutcome `json:"flee"`
}

// CombatContent is the content of combat scenes.
type CombatContent struct {
	Opponent  Opponent
	Context   string
	Exchanges []CombatExchange
	Outcomes  CombatOutcomes
}

// Scene is an immutable authored unit. Exactly one content pointer matching
// Type is set.
type Scene struct {
	ID           string
	Type         SceneType
	Background   ImageRef
	Music        string
	AmbientSound string

	Narrative  *NarrativeContent
	Dialogue   *DialogueContent
	Navigation *NavigationContent
	Meditation *MeditationContent
	Combat     *CombatContent
}

// CurrentScene is the scene being displayed, with all images resolved to
// literal references. It is a copy; the authored Scene is never mutated.
type CurrentScene struct {
	Scene      Scene
	Background string
	Panels     []Panel // resolved narrative panels
	Exchanges  [][]Panel
	Text       string
	Speaker    *Speaker
	Choices    []ChoiceOption
}

// GameDef holds content metadata.
type GameDef struct {
	Title   string
	Author  string
	Version string
	Start   string // starting scene ID
}

// CultivationRealm is the player's power tier.
type CultivationRealm string

const (
	RealmMortal         CultivationRealm = "mortal"
	RealmQiSensing      CultivationRealm = "qi-sensing"
	RealmQiCondensation CultivationRealm = "qi-condensation"
	RealmFoundation     CultivationRealm = "foundation"
	RealmCoreFormation  CultivationRealm = "core-formation"
)

// CultivationStats are the player's power meters.
type CultivationStats struct {
	Realm          CultivationRealm `json:"realm"`
	InternalEnergy int              `json:"internalEnergy"`
	ExternalArts   int              `json:"externalArts"`
	Comprehension  int              `json:"comprehension"`
}

// PlayerTraits are signed personality axes, conceptually within ±100.
type PlayerTraits struct {
	Orthodoxy  int `json:"orthodoxy"`
	Aggression int `json:"aggression"`
	Cunning    int `json:"cunning"`
}

// Technique is a learned martial art.
type Technique struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NameZh      string `json:"nameZh,omitempty"`
	Type        string `json:"type"` // "internal", "external", "weapon", "movement"
	Mastery     int    `json:"mastery"`
	Origin      string `json:"origin,omitempty"`
	Description string `json:"description,omitempty"`
}

// Player is the mutable player aggregate.
type Player struct {
	Name        string           `json:"name,omitempty"`
	Age         int              `json:"age"`
	Origin      string           `json:"origin"`
	Cultivation CultivationStats `json:"cultivation"`
	Techniques  []Technique      `json:"techniques"`
	Traits      PlayerTraits     `json:"traits"`
}

// Location is where the player currently is.
type Location struct {
	ID          string
	Name        string
	NameZh      string
	Description string
}

// GameTime is the in-fiction clock.
type GameTime struct {
	Day    int
	Period string // dawn .. midnight
	Season string // spring .. winter
	Year   int
}

// WorldState is the mutable world aggregate. Flag values are bool, float64,
// int or string.
type WorldState struct {
	CurrentLocation Location
	CurrentTime     GameTime
	Flags           map[string]any
	Relationships   map[string]int
}

// Speaker kinds in the conversation log.
const (
	SpeakerPlayer   = "player"
	SpeakerNPC      = "npc"
	SpeakerNarrator = "narrator"
)

// ConversationEntry is one logged line of dialogue.
type ConversationEntry struct {
	Speaker   string
	NPCID     string
	Text      string
	Timestamp int64 // unix millis
}

// ChoiceRecord is one logged player decision.
type ChoiceRecord struct {
	SceneID      string
	ChoiceText   string
	ChoiceID     string
	Consequences Consequence
}

// NarrativeState is append-only bookkeeping for the session.
type NarrativeState struct {
	CurrentScene        string
	SceneHistory        []string
	ConversationHistory []ConversationEntry
	ChoicesMade         []ChoiceRecord
}

// UIMode mirrors the scene type being interacted with.
type UIMode string

// UIState holds interaction gates.
type UIState struct {
	Mode            UIMode
	IsTransitioning bool
	TextComplete    bool
}

// Session owns the long-lived aggregates of one play session.
type Session struct {
	ID        string
	Player    Player
	World     WorldState
	Narrative NarrativeState
	UI        UIState
}

// Turn is one role-tagged line of a generation history.
type Turn struct {
	Role string // "user" or "assistant"
	Text string
}

// MeditationPhase tracks the meditation state machine.
type MeditationPhase string

const (
	MeditationNotStarted    MeditationPhase = "not_started"
	MeditationAwaitingFirst MeditationPhase = "awaiting_first_response"
	MeditationInDialogue    MeditationPhase = "in_dialogue"
	MeditationBreakthrough  MeditationPhase = "breakthrough"
	MeditationResolved      MeditationPhase = "resolved"
)

// MeditationState is the ephemeral state of an active meditation.
type MeditationState struct {
	CurrentText string
	Choices     []ChoiceOption
	History     []Turn
	Content     MeditationContent
	Phase       MeditationPhase
	Theme       string
}

// CombatState is the ephemeral state of an active fight.
type CombatState struct {
	Exchange    int
	PanelIndex  int
	Panels      []Panel
	Choices     []CombatChoice
	ShowChoices bool
	Opponent    Opponent
	Content     CombatContent
	LastRoll    float64
}

// Event is emitted by the engine after a state transition.
type Event struct {
	Type string
	Data map[string]any
}
