// Package effects implements the stat and flag mutator. Every function here
// returns new values and never mutates its inputs.
package effects

import (
	"sort"
	"strings"

	"github.com/nathoo/jianghu/types"
)

// Outcome classifies what happened to one stat change entry.
type Outcome int

const (
	Applied Outcome = iota
	SkippedUnknownPath
	SkippedNonNumeric
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case SkippedUnknownPath:
		return "skipped_unknown_path"
	case SkippedNonNumeric:
		return "skipped_non_numeric"
	default:
		return "unknown"
	}
}

// Resolution reports how a single dotted path was handled.
type Resolution struct {
	Path    string
	Delta   int
	Outcome Outcome
}

// numericFields maps dotted paths to the int field they address.
var numericFields = map[string]func(*types.Player) *int{
	"age":                        func(p *types.Player) *int { return &p.Age },
	"cultivation.internalEnergy": func(p *types.Player) *int { return &p.Cultivation.InternalEnergy },
	"cultivation.externalArts":   func(p *types.Player) *int { return &p.Cultivation.ExternalArts },
	"cultivation.comprehension":  func(p *types.Player) *int { return &p.Cultivation.Comprehension },
	"traits.orthodoxy":           func(p *types.Player) *int { return &p.Traits.Orthodoxy },
	"traits.aggression":          func(p *types.Player) *int { return &p.Traits.Aggression },
	"traits.cunning":             func(p *types.Player) *int { return &p.Traits.Cunning },
}

// textFields are paths that resolve to a leaf, but not a numeric one.
var textFields = map[string]bool{
	"name":              true,
	"origin":            true,
	"cultivation":       true,
	"cultivation.realm": true,
	"traits":            true,
	"techniques":        true,
}

// ApplyStatChanges adds each delta to the player field named by its dotted
// path, on a deep copy. Paths that do not resolve, or resolve to a
// non-numeric leaf, are skipped. Resolutions are returned in path order.
func ApplyStatChanges(p types.Player, changes map[string]int) (types.Player, []Resolution) {
	out := Clone(p)
	if len(changes) == 0 {
		return out, nil
	}

	paths := sortedKeys(changes)
	res := make([]Resolution, 0, len(paths))
	for _, path := range paths {
		delta := changes[path]
		r := Resolution{Path: path, Delta: delta}
		if field, ok := resolve(&out, path); ok {
			*field += delta
			r.Outcome = Applied
		} else if isTextPath(&out, path) {
			r.Outcome = SkippedNonNumeric
		} else {
			r.Outcome = SkippedUnknownPath
		}
		res = append(res, r)
	}
	return out, res
}

// StatValue reads the numeric field named by a dotted path.
func StatValue(p types.Player, path string) (int, bool) {
	field, ok := resolve(&p, path)
	if !ok {
		return 0, false
	}
	return *field, true
}

// NumericPath reports whether path can address a numeric player field,
// independent of which techniques a player has learned.
func NumericPath(path string) bool {
	if _, ok := numericFields[path]; ok {
		return true
	}
	parts := strings.Split(path, ".")
	return len(parts) == 3 && parts[0] == "techniques" && parts[1] != "" && parts[2] == "mastery"
}

// resolve returns a pointer into p for a numeric dotted path.
// "techniques.<id>.mastery" addresses a learned technique by ID.
func resolve(p *types.Player, path string) (*int, bool) {
	if get, ok := numericFields[path]; ok {
		return get(p), true
	}
	parts := strings.Split(path, ".")
	if len(parts) == 3 && parts[0] == "techniques" && parts[2] == "mastery" {
		for i := range p.Techniques {
			if p.Techniques[i].ID == parts[1] {
				return &p.Techniques[i].Mastery, true
			}
		}
	}
	return nil, false
}

func isTextPath(p *types.Player, path string) bool {
	if textFields[path] {
		return true
	}
	parts := strings.Split(path, ".")
	if len(parts) == 3 && parts[0] == "techniques" && parts[2] != "mastery" {
		for _, t := range p.Techniques {
			if t.ID == parts[1] {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the player.
func Clone(p types.Player) types.Player {
	out := p
	out.Techniques = append([]types.Technique(nil), p.Techniques...)
	if out.Techniques == nil {
		out.Techniques = []types.Technique{}
	}
	return out
}

// MergeFlags returns a copy of flags with writes applied last-write-wins.
// Only bool, number and string values are accepted; others are skipped and
// their keys returned.
func MergeFlags(flags map[string]any, writes map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(flags)+len(writes))
	for k, v := range flags {
		out[k] = v
	}
	var skipped []string
	for _, k := range sortedKeys(writes) {
		v, ok := normalizeFlag(writes[k])
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		out[k] = v
	}
	return out, skipped
}

// AdjustRelationship returns a copy of rels with delta added to npcID.
func AdjustRelationship(rels map[string]int, npcID string, delta int) map[string]int {
	out := make(map[string]int, len(rels)+1)
	for k, v := range rels {
		out[k] = v
	}
	if npcID != "" {
		out[npcID] += delta
	}
	return out
}

// normalizeFlag accepts the flag value kinds content can author.
func normalizeFlag(v any) (any, bool) {
	switch n := v.(type) {
	case bool, string, float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	default:
		return nil, false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
