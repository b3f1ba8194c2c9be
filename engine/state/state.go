// Package state holds the immutable scene repository and the constructors and
// lookups for the mutable session aggregates.
package state

import (
	"github.com/google/uuid"

	"github.com/nathoo/jianghu/types"
)

// Defs holds the immutable authored content loaded at startup.
type Defs struct {
	Game   types.GameDef
	Scenes map[string]types.Scene
	Order  []string // scene IDs in authoring order
}

// NewDefs builds a repository from scenes in authoring order. Later scenes
// with a duplicate ID replace earlier ones but keep the first position.
func NewDefs(game types.GameDef, scenes []types.Scene) *Defs {
	d := &Defs{
		Game:   game,
		Scenes: make(map[string]types.Scene, len(scenes)),
	}
	for _, sc := range scenes {
		if _, seen := d.Scenes[sc.ID]; !seen {
			d.Order = append(d.Order, sc.ID)
		}
		d.Scenes[sc.ID] = sc
	}
	return d
}

// Scene returns the scene with the given ID.
func (d *Defs) Scene(id string) (types.Scene, bool) {
	sc, ok := d.Scenes[id]
	return sc, ok
}

// Periods of the in-fiction day, in order.
var Periods = []string{"dawn", "morning", "noon", "afternoon", "dusk", "evening", "night", "midnight"}

// Seasons of the in-fiction year, in order.
var Seasons = []string{"spring", "summer", "autumn", "winter"}

// DaysPerSeason is how many days pass before the season turns.
const DaysPerSeason = 90

// NewSession creates a fresh session positioned before the start scene.
func NewSession(defs *Defs) *types.Session {
	return &types.Session{
		ID: uuid.NewString(),
		Player: types.Player{
			Age:    17,
			Origin: "unknown",
			Cultivation: types.CultivationStats{
				Realm: types.RealmMortal,
			},
			Techniques: []types.Technique{},
		},
		World: types.WorldState{
			CurrentLocation: types.Location{
				ID:     "starting",
				Name:   "Unknown",
				NameZh: "未知",
			},
			CurrentTime: types.GameTime{
				Day:    1,
				Period: "dawn",
				Season: "winter",
				Year:   1199,
			},
			Flags:         map[string]any{},
			Relationships: map[string]int{},
		},
		Narrative: types.NarrativeState{
			CurrentScene:        defs.Game.Start,
			SceneHistory:        []string{},
			ConversationHistory: []types.ConversationEntry{},
			ChoicesMade:         []types.ChoiceRecord{},
		},
		UI: types.UIState{
			Mode: types.UIMode(types.SceneNarrative),
		},
	}
}

// GetFlag returns a flag value and whether it is set.
func GetFlag(s *types.Session, name string) (any, bool) {
	v, ok := s.World.Flags[name]
	return v, ok
}

// FlagTruthy reports whether a flag is set to a truthy value: true, a
// non-zero number, or a non-empty string.
func FlagTruthy(s *types.Session, name string) bool {
	v, ok := GetFlag(s, name)
	if !ok {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return false
	}
}

// Relationship returns the running score with an NPC. Unknown NPCs score 0.
func Relationship(s *types.Session, npcID string) int {
	return s.World.Relationships[npcID]
}

// AdvanceTime moves the clock forward by the given number of day periods.
// Days roll into seasons every DaysPerSeason days, seasons into years.
func AdvanceTime(t types.GameTime, periods int) types.GameTime {
	if periods <= 0 {
		return t
	}
	idx := indexOf(Periods, t.Period)
	if idx < 0 {
		idx = 0
	}
	idx += periods
	days := idx / len(Periods)
	t.Period = Periods[idx%len(Periods)]

	for i := 0; i < days; i++ {
		t.Day++
		if (t.Day-1)%DaysPerSeason == 0 {
			s := indexOf(Seasons, t.Season)
			if s < 0 {
				s = 0
			}
			s++
			if s == len(Seasons) {
				s = 0
				t.Year++
			}
			t.Season = Seasons[s]
		}
	}
	return t
}

func indexOf(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}
