package nlu

import (
	"context"
	"strings"
	"unicode"

	"voicecmd/internal/domain"
)

// KeywordScorer scores intents by word overlap between the input text and
// each candidate pattern: the fraction of pattern words present in the text,
// taking the best pattern per intent. It needs no external services and is
// fully deterministic, which keeps the system operable when the semantic
// scorer is down.
type KeywordScorer struct{}

func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

func (k *KeywordScorer) Score(_ context.Context, text string, candidates []Candidate) ([]domain.IntentScore, error) {
	textWords := tokenSet(text)

	out := make([]domain.IntentScore, 0, len(candidates))
	for _, c := range candidates {
		best := 0.0
		for _, pattern := range c.Patterns {
			patternWords := tokenSet(pattern)
			if len(patternWords) == 0 {
				continue
			}
			overlap := 0
			for w := range patternWords {
				if _, ok := textWords[w]; ok {
					overlap++
				}
			}
			if score := float64(overlap) / float64(len(patternWords)); score > best {
				best = score
			}
		}
		out = append(out, domain.IntentScore{Intent: c.Intent, Score: best})
	}
	return out, nil
}

// Tokenize lowercases and splits on anything that is not a letter or digit,
// so punctuation at token boundaries never breaks a match.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
