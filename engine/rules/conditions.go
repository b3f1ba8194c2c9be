// Package rules evaluates the requirements that gate choices, destinations
// and combat moves.
package rules

import (
	"fmt"

	"github.com/nathoo/jianghu/engine/effects"
	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/types"
)

// Check reports whether the session satisfies a requirement, with a
// human-readable reason on failure. A nil requirement always passes. When
// both a stat and a flag are named, both must hold.
func Check(r *types.Requirement, s *types.Session) (bool, string) {
	if r == nil {
		return true, ""
	}

	if r.Stat != "" {
		v, ok := effects.StatValue(s.Player, r.Stat)
		if !ok {
			return false, fmt.Sprintf("unknown stat %s", r.Stat)
		}
		if r.MinValue != nil && float64(v) < *r.MinValue {
			return false, fmt.Sprintf("requires %s %g", r.Stat, *r.MinValue)
		}
	}

	if r.Flag != "" && !state.FlagTruthy(s, r.Flag) {
		return false, fmt.Sprintf("requires %s", r.Flag)
	}

	return true, ""
}

// Availability is a choice annotated with whether it can be selected.
type Availability struct {
	Choice    types.ChoiceOption
	Available bool
	Reason    string
}

// Annotate marks each choice available or not. Author-disabled choices carry
// their authored reason; failed requirements carry the requirement reason.
func Annotate(choices []types.ChoiceOption, s *types.Session) []Availability {
	out := make([]Availability, 0, len(choices))
	for _, c := range choices {
		a := Availability{Choice: c, Available: true}
		if c.Disabled {
			a.Available = false
			a.Reason = c.DisabledReason
		} else if ok, reason := Check(c.Requirement, s); !ok {
			a.Available = false
			a.Reason = reason
		}
		out = append(out, a)
	}
	return out
}
