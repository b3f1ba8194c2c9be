package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/jianghu/types"
)

// rawScene is the authored scene schema shared by JSON and Lua content.
// Content is decoded once the type is known.
type rawScene struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Background   rawImage        `json:"background"`
	Music        string          `json:"music,omitempty"`
	AmbientSound string          `json:"ambientSound,omitempty"`
	Content      json.RawMessage `json:"content"`
}

// rawImage accepts a literal URL string or {url} or {prompt}.
type rawImage types.ImageRef

func (r *rawImage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = rawImage{URL: s}
		return nil
	}
	var obj struct {
		URL    string `json:"url"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("image must be a URL string or {url} / {prompt}: %w", err)
	}
	if obj.URL != "" && obj.Prompt != "" {
		return fmt.Errorf("image sets both url and prompt")
	}
	*r = rawImage{URL: obj.URL, Prompt: obj.Prompt}
	return nil
}

type rawPanel struct {
	ID           string         `json:"id"`
	Image        rawImage       `json:"image"`
	Text         string         `json:"text"`
	Speaker      *types.Speaker `json:"speaker"`
	TextPosition string         `json:"textPosition"`
	PanelSize    string         `json:"panelSize"`
}

type rawNarrative struct {
	Panels      []rawPanel           `json:"panels"`
	Choices     []types.ChoiceOption `json:"choices"`
	NextScene   string               `json:"nextScene"`
	Flags       map[string]any       `json:"flags"`
	StatChanges map[string]int       `json:"statChanges"`
	Terminal    bool                 `json:"terminal"`
}

type rawExchange struct {
	Narration string               `json:"narration"`
	Panels    []rawPanel           `json:"panels"`
	Choices   []types.CombatChoice `json:"choices"`
}

type rawCombat struct {
	Opponent  types.Opponent       `json:"opponent"`
	Context   string               `json:"context"`
	Exchanges []rawExchange        `json:"exchanges"`
	Outcomes  types.CombatOutcomes `json:"outcomes"`
}

type rawGame struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Version string `json:"version"`
	Start   string `json:"start"`
}

// decodeStrict unmarshals data into v, rejecting unknown keys.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeScene turns one authored scene document into a Scene.
func decodeScene(data []byte) (types.Scene, error) {
	var raw rawScene
	if err := decodeStrict(data, &raw); err != nil {
		return types.Scene{}, err
	}
	if raw.ID == "" {
		return types.Scene{}, fmt.Errorf("scene without id")
	}

	sc := types.Scene{
		ID:           raw.ID,
		Type:         types.SceneType(raw.Type),
		Background:   types.ImageRef(raw.Background),
		Music:        raw.Music,
		AmbientSound: raw.AmbientSound,
	}
	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return sc, fmt.Errorf("scene %q: content is required", raw.ID)
	}

	var err error
	switch sc.Type {
	case types.SceneNarrative:
		var n rawNarrative
		if err = decodeStrict(raw.Content, &n); err == nil {
			sc.Narrative = &types.NarrativeContent{
				Panels:      compilePanels(n.Panels),
				Choices:     n.Choices,
				NextScene:   n.NextScene,
				Flags:       n.Flags,
				StatChanges: n.StatChanges,
				Terminal:    n.Terminal,
			}
		}
	case types.SceneDialogue:
		sc.Dialogue = &types.DialogueContent{}
		err = decodeStrict(raw.Content, sc.Dialogue)
	case types.SceneNavigation:
		sc.Navigation = &types.NavigationContent{}
		err = decodeStrict(raw.Content, sc.Navigation)
	case types.SceneMeditation:
		sc.Meditation = &types.MeditationContent{}
		err = decodeStrict(raw.Content, sc.Meditation)
	case types.SceneCombat:
		var c rawCombat
		if err = decodeStrict(raw.Content, &c); err == nil {
			sc.Combat = compileCombat(c)
		}
	default:
		return sc, fmt.Errorf("scene %q: unknown type %q", raw.ID, raw.Type)
	}
	if err != nil {
		return sc, fmt.Errorf("scene %q: %s content: %w", raw.ID, raw.Type, err)
	}
	return sc, nil
}

func compilePanels(raw []rawPanel) []types.Panel {
	out := make([]types.Panel, len(raw))
	for i, p := range raw {
		out[i] = types.Panel{
			ID:           p.ID,
			Image:        types.ImageRef(p.Image),
			Text:         p.Text,
			Speaker:      p.Speaker,
			TextPosition: p.TextPosition,
			PanelSize:    p.PanelSize,
		}
	}
	return out
}

func compileCombat(c rawCombat) *types.CombatContent {
	out := &types.CombatContent{
		Opponent: c.Opponent,
		Context:  c.Context,
		Outcomes: c.Outcomes,
	}
	for _, ex := range c.Exchanges {
		out.Exchanges = append(out.Exchanges, types.CombatExchange{
			Narration: ex.Narration,
			Panels:    compilePanels(ex.Panels),
			Choices:   ex.Choices,
		})
	}
	return out
}

func decodeGame(data []byte) (types.GameDef, error) {
	var g rawGame
	if err := decodeStrict(data, &g); err != nil {
		return types.GameDef{}, fmt.Errorf("game: %w", err)
	}
	return types.GameDef{Title: g.Title, Author: g.Author, Version: g.Version, Start: g.Start}, nil
}

// toGoValue converts a Lua value to a JSON-shaped Go value. Tables with
// sequential integer keys become slices, other tables maps. An empty table
// becomes nil so it can stand for either.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if maxN := val.MaxN(); maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		if len(m) == 0 {
			return nil
		}
		return m
	default:
		return nil
	}
}

// tableJSON converts a Lua table to JSON for the shared decoder.
func tableJSON(tbl *lua.LTable) ([]byte, error) {
	return json.Marshal(toGoValue(tbl))
}

// sortedFiles orders content files: game.lua / game.json first, the rest
// alphabetically.
func sortedFiles(files []string) []string {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		gi, gj := isGameFile(sorted[i]), isGameFile(sorted[j])
		if gi != gj {
			return gi
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

func isGameFile(name string) bool {
	return strings.TrimSuffix(strings.TrimSuffix(name, ".lua"), ".json") == "game"
}
