package rules

import (
	"testing"

	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/types"
)

func minValue(v float64) *float64 { return &v }

func condTestSession() *types.Session {
	defs := state.NewDefs(types.GameDef{Start: "hall"}, []types.Scene{{ID: "hall"}})
	s := state.NewSession(defs)
	s.Player.Cultivation.Comprehension = 5
	s.Player.Techniques = []types.Technique{{ID: "iron_palm", Mastery: 40}}
	s.World.Flags["saw_martial_artist_die"] = true
	s.World.Flags["origin_path"] = "city"
	return s
}

func TestCheck(t *testing.T) {
	s := condTestSession()

	tests := []struct {
		name string
		req  *types.Requirement
		want bool
	}{
		{name: "nil passes", req: nil, want: true},
		{name: "empty passes", req: &types.Requirement{}, want: true},
		{name: "flag set", req: &types.Requirement{Flag: "saw_martial_artist_die"}, want: true},
		{name: "string flag", req: &types.Requirement{Flag: "origin_path"}, want: true},
		{name: "flag unset", req: &types.Requirement{Flag: "searched_scholar"}, want: false},
		{name: "stat at threshold", req: &types.Requirement{Stat: "cultivation.comprehension", MinValue: minValue(5)}, want: true},
		{name: "stat below threshold", req: &types.Requirement{Stat: "cultivation.comprehension", MinValue: minValue(6)}, want: false},
		{name: "technique mastery", req: &types.Requirement{Stat: "techniques.iron_palm.mastery", MinValue: minValue(30)}, want: true},
		{name: "unknown stat", req: &types.Requirement{Stat: "cultivation.qi", MinValue: minValue(0)}, want: false},
		{
			name: "stat and flag both hold",
			req:  &types.Requirement{Stat: "cultivation.comprehension", MinValue: minValue(1), Flag: "saw_martial_artist_die"},
			want: true,
		},
		{
			name: "stat holds, flag fails",
			req:  &types.Requirement{Stat: "cultivation.comprehension", MinValue: minValue(1), Flag: "nope"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Check(tt.req, s)
			if got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
			if !got && reason == "" {
				t.Error("failed check should carry a reason")
			}
		})
	}
}

func TestAnnotate(t *testing.T) {
	s := condTestSession()
	choices := []types.ChoiceOption{
		{ID: "stay_hidden", Text: "Stay hidden"},
		{ID: "call_out", Text: "Call out", Disabled: true, DisabledReason: "Fear grips your throat"},
		{ID: "search", Text: "Search", Requirement: &types.Requirement{Flag: "searched_scholar"}},
	}

	got := Annotate(choices, s)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if !got[0].Available {
		t.Error("stay_hidden should be available")
	}
	if got[1].Available || got[1].Reason != "Fear grips your throat" {
		t.Errorf("call_out should be disabled with its reason, got %+v", got[1])
	}
	if got[2].Available || got[2].Reason == "" {
		t.Errorf("search should fail its requirement, got %+v", got[2])
	}
}
