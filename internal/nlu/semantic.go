package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicecmd/internal/domain"
)

// SemanticScorer calls an external scoring service that ranks candidate
// intents by semantic similarity to the input text.
type SemanticScorer struct {
	baseURL string
	http    *http.Client
}

func NewSemanticScorer(baseURL string, timeout time.Duration) *SemanticScorer {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &SemanticScorer{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (s *SemanticScorer) Enabled() bool {
	return s != nil && s.baseURL != ""
}

type scoreRequest struct {
	Text       string      `json:"text"`
	Candidates []Candidate `json:"candidates"`
}

type scoreResponse struct {
	Scores []domain.IntentScore `json:"scores"`
}

func (s *SemanticScorer) Score(ctx context.Context, text string, candidates []Candidate) ([]domain.IntentScore, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("semantic scorer is not configured")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("candidate list is empty")
	}
	body, _ := json.Marshal(scoreRequest{Text: text, Candidates: candidates})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/intents/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scorer status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out scoreResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	return out.Scores, nil
}
