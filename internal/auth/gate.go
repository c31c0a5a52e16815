package auth

import (
	"context"
	"log/slog"
	"time"

	"voicecmd/internal/audit"
	"voicecmd/internal/domain"
)

// Reason is the internal diagnostic behind a decision. The emitted record
// only carries the two-valued status; the reason survives in the audit trail
// so operators can tell an unrecognized utterance from a low-confidence one.
type Reason string

const (
	ReasonAllowed        Reason = "allowed"
	ReasonUnrecognized   Reason = "unrecognized_intent"
	ReasonNotWhitelisted Reason = "intent_not_whitelisted"
	ReasonLowConfidence  Reason = "low_confidence"
)

type Decision struct {
	Allowed   bool
	Reason    Reason
	Threshold float64
}

// Request carries everything the gate needs for one decision. MinConfidence,
// when positive, overrides the policy threshold for this request only.
type Request struct {
	RequestID       string
	Intent          string
	Confidence      float64
	TranscribedText string
	MinConfidence   float64
}

// Gate decides whether a classified intent may become an authorized command.
type Gate struct {
	policy *Policy
	sink   audit.Sink
	logger *slog.Logger
}

func NewGate(policy *Policy, sink audit.Sink, logger *slog.Logger) *Gate {
	return &Gate{policy: policy, sink: sink, logger: logger}
}

func (g *Gate) Policy() *Policy {
	return g.policy
}

// Authorize allows only when the intent is recognized, whitelisted and the
// confidence clears the threshold. Every decision is audited.
func (g *Gate) Authorize(ctx context.Context, req Request) Decision {
	whitelisted, threshold := g.policy.view(req.Intent)
	if req.MinConfidence > 0 {
		threshold = req.MinConfidence
	}

	decision := Decision{Allowed: true, Reason: ReasonAllowed, Threshold: threshold}
	switch {
	case req.Intent == "":
		decision = Decision{Reason: ReasonUnrecognized, Threshold: threshold}
	case !whitelisted:
		decision = Decision{Reason: ReasonNotWhitelisted, Threshold: threshold}
	case req.Confidence < threshold:
		decision = Decision{Reason: ReasonLowConfidence, Threshold: threshold}
	}

	verdict := "deny"
	if decision.Allowed {
		verdict = "allow"
	} else {
		g.logger.Warn("command rejected",
			"request_id", req.RequestID,
			"intent", req.Intent,
			"confidence", req.Confidence,
			"reason", decision.Reason,
		)
	}

	g.sink.Record(ctx, domain.AuditEvent{
		RequestID:       req.RequestID,
		Intent:          req.Intent,
		Confidence:      req.Confidence,
		Decision:        verdict,
		Reason:          string(decision.Reason),
		TranscribedText: req.TranscribedText,
		CreatedAt:       time.Now().UTC(),
	})
	return decision
}
