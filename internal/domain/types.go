package domain

import "time"

// IntentDefinition describes one recognizable request category: the surface
// phrases it can match and the action parameters it carries by default.
// Immutable after the catalog is loaded.
type IntentDefinition struct {
	Name     string            `json:"name"`
	Patterns []string          `json:"patterns"`
	Defaults map[string]string `json:"defaults,omitempty"`
}

// CommandDefinition describes the command emitted when its same-named intent
// is recognized and authorized.
type CommandDefinition struct {
	Name        string            `json:"name"`
	CommandType string            `json:"command_type"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Description string            `json:"description"`
}

// IntentScore is one ranked classification candidate.
type IntentScore struct {
	Intent string  `json:"intent"`
	Score  float64 `json:"score"`
}

// ClassificationResult is the outcome of intent classification for one text.
// Intent is empty when nothing scored above the hard floor; that is a
// legitimate "unrecognized" result, not an error.
type ClassificationResult struct {
	Intent     string        `json:"intent,omitempty"`
	Confidence float64       `json:"confidence"`
	Ranked     []IntentScore `json:"ranked,omitempty"`
}

// Unrecognized reports whether no intent matched.
func (r ClassificationResult) Unrecognized() bool {
	return r.Intent == ""
}

// EntityMap holds parameter values located in the input text, keyed by
// parameter name. Absent keys mean "no value found".
type EntityMap map[string]string

type Status string

const (
	StatusAuthorized Status = "authorized"
	StatusRejected   Status = "rejected"
)

// CommandRecord is the structured artifact handed to the downstream
// controller. Immutable once assembled.
type CommandRecord struct {
	RequestID       string            `json:"request_id"`
	Timestamp       string            `json:"timestamp"`
	CommandType     string            `json:"command_type"`
	Intent          string            `json:"intent,omitempty"`
	Confidence      float64           `json:"confidence"`
	TranscribedText string            `json:"transcribed_text"`
	Parameters      map[string]string `json:"parameters"`
	Description     string            `json:"description"`
	Status          Status            `json:"status"`
}

// AuditEvent records one authorization decision.
type AuditEvent struct {
	RequestID       string    `json:"request_id"`
	Intent          string    `json:"intent,omitempty"`
	Confidence      float64   `json:"confidence"`
	Decision        string    `json:"decision"`
	Reason          string    `json:"reason"`
	TranscribedText string    `json:"transcribed_text,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
