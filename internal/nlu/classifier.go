package nlu

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"voicecmd/internal/catalog"
	"voicecmd/internal/domain"
)

var ErrEmptyText = errors.New("input text is empty")

const defaultFallbackFloor = 0.35

// Classifier turns free-form text into a ranked intent classification. The
// semantic scorer is consulted first when configured; if it fails or its best
// score lands below the fallback-activation floor, the keyword scorer's
// result is used instead.
type Classifier struct {
	scorer        Scorer
	fallback      *KeywordScorer
	fallbackFloor float64
	logger        *slog.Logger
}

func NewClassifier(scorer Scorer, fallbackFloor float64, logger *slog.Logger) *Classifier {
	if fallbackFloor <= 0 {
		fallbackFloor = defaultFallbackFloor
	}
	return &Classifier{
		scorer:        scorer,
		fallback:      NewKeywordScorer(),
		fallbackFloor: fallbackFloor,
		logger:        logger,
	}
}

// FallbackFloor returns the score below which the classifier abandons the
// semantic scorer's ranking.
func (c *Classifier) FallbackFloor() float64 {
	return c.fallbackFloor
}

// Classify scores text against every intent in the snapshot. Identical
// (text, snapshot) pairs produce identical results: scores are sorted
// descending with ties broken by catalog declaration order.
func (c *Classifier) Classify(ctx context.Context, text string, snap *catalog.Snapshot) (domain.ClassificationResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.ClassificationResult{}, ErrEmptyText
	}

	intents := snap.Intents()
	if len(intents) == 0 {
		c.logger.Warn("no intents configured")
		return domain.ClassificationResult{}, nil
	}

	candidates := make([]Candidate, 0, len(intents))
	for _, in := range intents {
		candidates = append(candidates, Candidate{Intent: in.Name, Patterns: in.Patterns})
	}

	scores := c.score(ctx, text, candidates)
	ranked := rank(scores, candidates)

	best := ranked[0]
	if best.Score <= 0 {
		// Total lexical/semantic disjunction. Not an error: the gate will
		// deny the empty intent downstream.
		return domain.ClassificationResult{Confidence: 0, Ranked: ranked}, nil
	}
	return domain.ClassificationResult{
		Intent:     best.Intent,
		Confidence: best.Score,
		Ranked:     ranked,
	}, nil
}

func (c *Classifier) score(ctx context.Context, text string, candidates []Candidate) []domain.IntentScore {
	if c.scorer == nil {
		scores, _ := c.fallback.Score(ctx, text, candidates)
		return scores
	}

	scores, err := c.scorer.Score(ctx, text, candidates)
	if err != nil {
		c.logger.Warn("semantic scorer unavailable, using keyword fallback", "error", err)
		scores, _ = c.fallback.Score(ctx, text, candidates)
		return scores
	}

	scores = clamp(scores)
	if top(scores) < c.fallbackFloor {
		c.logger.Info("semantic top score below fallback floor, using keyword fallback",
			"top", top(scores), "floor", c.fallbackFloor)
		scores, _ = c.fallback.Score(ctx, text, candidates)
	}
	return scores
}

// rank orders scores descending, breaking ties by the candidate (catalog
// declaration) order. Intents the scorer did not mention score zero.
func rank(scores []domain.IntentScore, candidates []Candidate) []domain.IntentScore {
	byIntent := make(map[string]float64, len(scores))
	for _, s := range scores {
		byIntent[s.Intent] = s.Score
	}
	out := make([]domain.IntentScore, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, domain.IntentScore{Intent: c.Intent, Score: byIntent[c.Intent]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func clamp(scores []domain.IntentScore) []domain.IntentScore {
	out := make([]domain.IntentScore, len(scores))
	for i, s := range scores {
		if s.Score < 0 {
			s.Score = 0
		}
		if s.Score > 1 {
			s.Score = 1
		}
		out[i] = s
	}
	return out
}

func top(scores []domain.IntentScore) float64 {
	best := 0.0
	for _, s := range scores {
		if s.Score > best {
			best = s.Score
		}
	}
	return best
}
