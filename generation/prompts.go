package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nathoo/jianghu/types"
)

// ImageKind selects the prompt template for an image.
type ImageKind string

const (
	KindLandscape  ImageKind = "landscape"
	KindCharacter  ImageKind = "character"
	KindCombat     ImageKind = "combat"
	KindMeditation ImageKind = "meditation"
	KindPanel      ImageKind = "panel"
)

// AspectRatio is an image size preset understood by the image endpoint.
type AspectRatio string

const (
	Landscape169 AspectRatio = "landscape_16_9"
	SquareHD     AspectRatio = "square_hd"
	Portrait43   AspectRatio = "portrait_4_3"
)

// BaseStylePrompt is prepended to every image prompt.
const BaseStylePrompt = "Chinese wuxia art style, ink wash painting influence, cinematic composition, " +
	"atmospheric lighting, muted earth tones with jade green and deep red accents, " +
	"inspired by Hero (2002) and Crouching Tiger Hidden Dragon cinematography, " +
	"dramatic shadows, traditional Song Dynasty setting"

var sceneTemplates = map[ImageKind]string{
	KindLandscape:  "%s, wide landscape shot, %s, misty mountains in background, traditional Chinese architecture, volumetric fog",
	KindCharacter:  "%s, character portrait, %s, expressive face, traditional hanfu clothing, detailed fabric textures, dramatic side lighting",
	KindCombat:     "%s, dynamic action scene, %s, motion blur on weapons, fabric flowing with movement, dramatic perspective, dust particles in air",
	KindMeditation: "%s, abstract spiritual scene, %s, flowing ink dissolving in water, ethereal qi energy visualization, dark void with subtle color gradients",
	KindPanel:      "%s, manga panel composition, %s, strong blacks, clear focal point, emotional intensity",
}

// BuildImagePrompt wraps a description in the template for kind. Unknown
// kinds get the base style followed by the description.
func BuildImagePrompt(kind ImageKind, description string) string {
	if tmpl, ok := sceneTemplates[kind]; ok {
		return fmt.Sprintf(tmpl, BaseStylePrompt, description)
	}
	return BaseStylePrompt + ", " + description
}

// AspectForPanel maps a panel size to the image preset used for it.
func AspectForPanel(panelSize string) AspectRatio {
	switch panelSize {
	case "half":
		return SquareHD
	case "third":
		return Portrait43
	default:
		return Landscape169
	}
}

const (
	defaultTechnique  = "Basic qi sensing"
	defaultBottleneck = "The trauma of the past blocks your inner peace"

	// BeginMeditation is the user turn sent when the history is empty.
	BeginMeditation = "Begin the meditation."
)

const meditationSystemPrompt = `You are guiding a martial artist through internal cultivation meditation.

THE NATURE OF CULTIVATION:
In wuxia tradition, martial breakthroughs are not merely physical. They require spiritual and philosophical insight. A practitioner might be blocked by:
- Emotional attachments or traumas
- Misunderstanding of martial principles
- Conflict between their nature and their chosen path
- Unresolved moral questions
- Fear of their own potential

YOUR ROLE:
You manifest as the player's inner voice, a spirit within their technique, or an ancestral memory. You do NOT give direct answers. You:
- Ask probing questions
- Present koans or paradoxes related to their martial path
- Reflect their past choices back at them
- Challenge their assumptions
- Guide them toward their own insight

CURRENT MEDITATION CONTEXT:
Technique being cultivated: {technique}
Current bottleneck: {bottleneck}
Player's martial path so far: {martialHistory}
Player's key choices/traits: {playerTraits}

MEDITATION RULES:
1. Speak in a voice appropriate to the manifestation (inner voice is intimate, spirit is otherworldly, master is instructive)
2. Reference specific events from the player's journey
3. The "correct" answer depends on who the player is becoming. There is no single right path
4. After 3-5 exchanges, guide toward a breakthrough moment
5. The nature of the breakthrough should reflect how the player engaged with the meditation

Begin the meditation. Present an opening question or challenge related to their current bottleneck.`

// MeditationPrompt fills the meditation system prompt.
func MeditationPrompt(req MeditationRequest) string {
	technique := req.Technique
	if technique == "" {
		technique = defaultTechnique
	}
	bottleneck := req.Bottleneck
	if bottleneck == "" {
		bottleneck = defaultBottleneck
	}
	history := req.Techniques
	if history == nil {
		history = []types.Technique{}
	}

	r := strings.NewReplacer(
		"{technique}", technique,
		"{bottleneck}", bottleneck,
		"{martialHistory}", mustJSON(history),
		"{playerTraits}", mustJSON(req.Traits),
	)
	return r.Replace(meditationSystemPrompt)
}

const npcSystemPrompt = `You are roleplaying as a character in the Legend of the Condor Heroes universe.

CHARACTER PROFILE:
{characterProfile}

PERSONALITY TRAITS:
{personalityTraits}

KNOWLEDGE & SECRETS:
{characterKnowledge}

RELATIONSHIP WITH PLAYER:
Current disposition: {relationshipLevel}
Previous interactions: {interactionHistory}

CONVERSATION RULES:
1. Stay completely in character. Never break the fourth wall
2. Use appropriate forms of address based on perceived status/age
3. Reveal information organically, not through exposition dumps
4. Have your own agenda. You are not just an information dispenser
5. React to the player's tone and approach
6. If the player is rude or threatening, respond appropriately to your character
7. Drop hints about your deeper nature/secrets only if the player earns trust
8. Use occasional Chinese terms/phrases appropriate to your character

CURRENT CONTEXT:
{sceneContext}

Player says: {playerInput}

Respond as this character would. Keep responses under 150 words unless the character would naturally speak at length. End with implicit or explicit openings for the player to respond.`

// NPCPrompt fills the NPC dialogue system prompt. Only this NPC's prior
// turns are listed as previous interactions.
func NPCPrompt(req DialogueRequest) string {
	profile := struct {
		Name       string `json:"name"`
		NameZh     string `json:"nameZh"`
		Background string `json:"background"`
	}{req.Character.Name, req.Character.NameZh, req.Character.Background}

	type interaction struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	}
	var prior []interaction
	for _, e := range req.History {
		if e.NPCID == req.NPCID {
			prior = append(prior, interaction{Speaker: e.Speaker, Text: e.Text})
		}
	}
	if prior == nil {
		prior = []interaction{}
	}

	r := strings.NewReplacer(
		"{characterProfile}", mustJSONIndent(profile),
		"{personalityTraits}", req.Character.Personality,
		"{characterKnowledge}", req.Character.Knowledge,
		"{relationshipLevel}", fmt.Sprint(req.Relationship),
		"{interactionHistory}", mustJSON(prior),
		"{sceneContext}", req.Context,
		"{playerInput}", req.PlayerInput,
	)
	return r.Replace(npcSystemPrompt)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func mustJSONIndent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
