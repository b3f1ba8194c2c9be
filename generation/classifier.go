package generation

import "strings"

// Meditation themes recognised by the default classifier.
const (
	ThemeAnger         = "anger"
	ThemeSorrow        = "sorrow"
	ThemeDetermination = "determination"
)

// ThemeClassifier maps generated meditation text to a theme label.
type ThemeClassifier interface {
	Classify(text string) string
}

// KeywordRule assigns Theme when any keyword appears in the text.
type KeywordRule struct {
	Theme    string
	Keywords []string
}

// KeywordClassifier checks rules in order and returns the first theme whose
// keywords appear (case-insensitive substring match), else Default.
type KeywordClassifier struct {
	Rules   []KeywordRule
	Default string
}

// NewKeywordClassifier returns the classifier used for the prologue themes.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		Rules: []KeywordRule{
			{Theme: ThemeAnger, Keywords: []string{"anger", "rage", "revenge", "fury"}},
			{Theme: ThemeSorrow, Keywords: []string{"sorrow", "grief", "loss", "tears"}},
		},
		Default: ThemeDetermination,
	}
}

// Classify returns the theme for text.
func (c *KeywordClassifier) Classify(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range c.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Theme
			}
		}
	}
	return c.Default
}
