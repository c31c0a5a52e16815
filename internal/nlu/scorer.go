package nlu

import (
	"context"
	"fmt"
	"time"

	"voicecmd/internal/domain"
)

// Candidate is one intent offered to a scorer, identified by name and
// described by its surface patterns.
type Candidate struct {
	Intent   string   `json:"intent"`
	Patterns []string `json:"patterns"`
}

// Scorer ranks candidate intents for a piece of text. Scores are expected in
// [0,1]; the classifier clamps anything outside that range.
type Scorer interface {
	Score(ctx context.Context, text string, candidates []Candidate) ([]domain.IntentScore, error)
}

type ScorerConfig struct {
	Mode    string
	BaseURL string
	Timeout time.Duration
}

// NewScorer selects the scorer variant by configuration. Mode "keyword"
// returns nil: the classifier then runs on its built-in fallback alone.
func NewScorer(cfg ScorerConfig) (Scorer, error) {
	switch cfg.Mode {
	case "semantic":
		return NewSemanticScorer(cfg.BaseURL, cfg.Timeout), nil
	case "keyword", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported scorer mode: %s", cfg.Mode)
	}
}
