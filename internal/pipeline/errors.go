package pipeline

import "fmt"

// Stage identifies where a pipeline run failed.
type Stage string

const (
	StageASR           Stage = "asr"
	StageNLU           Stage = "nlu"
	StageAuthorization Stage = "authorization"
	StageMapper        Stage = "mapper"
	StageValidation    Stage = "validation"
)

// Kind classifies pipeline failures. Security rejections (unrecognized or
// denied intents) are not failures: they produce a rejected record instead.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindUnknownIntent       Kind = "unknown_intent"
	KindMalformedCommand    Kind = "malformed_command"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// Error is a terminal pipeline failure with its stage tag, so operators can
// tell a misconfigured system from an unauthorized user.
type Error struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline failed at %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
