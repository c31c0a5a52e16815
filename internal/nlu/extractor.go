package nlu

import (
	"strings"

	"voicecmd/internal/catalog"
	"voicecmd/internal/domain"
)

// Extractor locates parameter values in the input text. Extraction is a
// function of the text and the configured parameter keywords only; it does
// not depend on which intent was classified, so it stays independently
// testable.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract scans every intent definition's default parameter keys against the
// text tokens. Matching is case-insensitive and tolerant of punctuation at
// token boundaries. Keys with no match are simply absent from the result.
func (e *Extractor) Extract(text string, snap *catalog.Snapshot) domain.EntityMap {
	entities := make(domain.EntityMap)
	tokens := tokenSet(text)
	normalized := " " + strings.Join(Tokenize(text), " ") + " "

	for _, in := range snap.Intents() {
		for key, value := range in.Defaults {
			if matchKey(key, tokens, normalized) {
				entities[key] = value
			}
		}
	}
	return entities
}

func matchKey(key string, tokens map[string]struct{}, normalized string) bool {
	keyTokens := Tokenize(key)
	switch len(keyTokens) {
	case 0:
		return false
	case 1:
		_, ok := tokens[keyTokens[0]]
		return ok
	default:
		// Multi-word keys match as a phrase on the normalized text.
		return strings.Contains(normalized, " "+strings.Join(keyTokens, " ")+" ")
	}
}
