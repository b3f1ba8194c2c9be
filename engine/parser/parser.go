// Package parser converts player input lines into commands.
// Intentionally dumb: no NLP, just verb aliases and numbered picks.
package parser

import (
	"strconv"
	"strings"
)

// Command verbs.
const (
	Next   = "next"   // advance the current panel
	Choose = "choose" // pick a choice, move or destination
	Say    = "say"    // speak to the NPC of a dialogue scene
	Go     = "go"     // travel to a destination
	Look   = "look"   // redescribe the current view
)

// Command is one parsed input line.
type Command struct {
	Verb   string
	Object string // ID or 1-based number; lowercased
	Text   string // free text for Say, casing preserved
}

var verbAliases = map[string]string{
	// Next
	"n":        Next,
	"next":     Next,
	"continue": Next,
	"more":     Next,

	// Choose
	"c":      Choose,
	"choose": Choose,
	"pick":   Choose,
	"select": Choose,
	"answer": Choose,
	"fight":  Choose,
	"strike": Choose,
	"play":   Choose,

	// Say
	"say":   Say,
	"ask":   Say,
	"tell":  Say,
	"speak": Say,
	"reply": Say,

	// Go
	"go":      Go,
	"travel":  Go,
	"walk":    Go,
	"journey": Go,
	"head":    Go,

	// Look
	"l":    Look,
	"look": Look,
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true, "to": true,
}

// Parse converts a raw input line into a Command. An empty line advances.
// A bare number or an unrecognised word is a pick, so "2" and "peer_out"
// both choose. A line opening with a quote is speech.
func Parse(input string) Command {
	input = strings.TrimSpace(input)
	if input == "" {
		return Command{Verb: Next}
	}

	if input[0] == '"' || input[0] == '\'' {
		return Command{Verb: Say, Text: strings.Trim(input, `"' `)}
	}

	fields := strings.Fields(input)
	first := strings.ToLower(fields[0])

	if _, err := strconv.Atoi(first); err == nil && len(fields) == 1 {
		return Command{Verb: Choose, Object: first}
	}

	verb, ok := verbAliases[first]
	if !ok {
		return Command{Verb: Choose, Object: strings.ToLower(input)}
	}

	rest := strings.TrimSpace(input[len(fields[0]):])
	if verb == Say {
		return Command{Verb: Say, Text: strings.Trim(rest, `"' `)}
	}
	if verb == Next || verb == Look {
		return Command{Verb: verb}
	}
	return Command{Verb: verb, Object: strings.Join(stripArticles(strings.Fields(strings.ToLower(rest))), " ")}
}

// stripArticles removes articles ("the", "a", "an", "to") from the word list.
func stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			result = append(result, w)
		}
	}
	return result
}

// Match resolves an object against the IDs on offer: a 1-based number
// indexes the list, anything else matches an ID with spaces read as
// underscores.
func Match(object string, ids []string) (string, bool) {
	if n, err := strconv.Atoi(object); err == nil {
		if n >= 1 && n <= len(ids) {
			return ids[n-1], true
		}
		return "", false
	}
	want := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(object)), " ", "_")
	for _, id := range ids {
		if strings.ToLower(id) == want {
			return id, true
		}
	}
	return "", false
}
