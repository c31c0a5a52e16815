package mapper

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"voicecmd/internal/catalog"
	"voicecmd/internal/domain"
)

var (
	// ErrUnknownIntent means the intent has no command definition. This is a
	// catalog-consistency fault, never a security rejection, and must not be
	// folded into a rejected record.
	ErrUnknownIntent = errors.New("no command definition for intent")

	// ErrMalformedCommand means the assembled record failed structural
	// validation.
	ErrMalformedCommand = errors.New("command failed validation")
)

// Input is everything a recognized intent brings to assembly.
type Input struct {
	RequestID       string
	Intent          string
	Confidence      float64
	Entities        domain.EntityMap
	TranscribedText string
	Status          domain.Status
}

// Assembler merges a recognized intent, its extracted entities and the
// command catalog into one validated record.
type Assembler struct {
	logger *slog.Logger
}

func NewAssembler(logger *slog.Logger) *Assembler {
	return &Assembler{logger: logger}
}

// Assemble builds the record for a recognized intent. The catalog lookup runs
// for denied intents too: the rejected record still shows what was denied.
func (a *Assembler) Assemble(in Input, snap *catalog.Snapshot) (domain.CommandRecord, error) {
	cmd, ok := snap.Command(in.Intent)
	if !ok {
		return domain.CommandRecord{}, fmt.Errorf("%w: %s", ErrUnknownIntent, in.Intent)
	}

	record := domain.CommandRecord{
		RequestID:       in.RequestID,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		CommandType:     cmd.CommandType,
		Intent:          in.Intent,
		Confidence:      roundConfidence(in.Confidence),
		TranscribedText: in.TranscribedText,
		Parameters:      mergeParameters(cmd.Parameters, in.Entities),
		Description:     cmd.Description,
		Status:          in.Status,
	}

	if err := Validate(record); err != nil {
		return domain.CommandRecord{}, err
	}
	a.logger.Info("assembled command",
		"request_id", in.RequestID,
		"intent", in.Intent,
		"command_type", cmd.CommandType,
		"status", in.Status,
	)
	return record, nil
}

// Unrecognized builds the rejected record for text that matched no intent.
// There is no command definition to draw from, so the command fields stay
// empty; this path is exempt from the non-empty category/intent checks.
func (a *Assembler) Unrecognized(requestID, transcribedText string) domain.CommandRecord {
	return domain.CommandRecord{
		RequestID:       requestID,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Confidence:      0,
		TranscribedText: transcribedText,
		Parameters:      map[string]string{},
		Status:          domain.StatusRejected,
	}
}

// mergeParameters starts from the command defaults and overlays extracted
// entities; extracted values always win, and entity keys the defaults never
// anticipated are still added.
func mergeParameters(defaults map[string]string, entities domain.EntityMap) map[string]string {
	merged := make(map[string]string, len(defaults)+len(entities))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range entities {
		merged[k] = v
	}
	return merged
}

// Validate checks the structural shape of an assembled record.
func Validate(record domain.CommandRecord) error {
	switch {
	case record.Timestamp == "":
		return fmt.Errorf("%w: missing timestamp", ErrMalformedCommand)
	case record.CommandType == "":
		return fmt.Errorf("%w: missing command_type", ErrMalformedCommand)
	case record.Intent == "":
		return fmt.Errorf("%w: missing intent", ErrMalformedCommand)
	case record.Confidence < 0 || record.Confidence > 1:
		return fmt.Errorf("%w: confidence %v out of range [0,1]", ErrMalformedCommand, record.Confidence)
	case record.Parameters == nil:
		return fmt.Errorf("%w: missing parameters", ErrMalformedCommand)
	case record.Status != domain.StatusAuthorized && record.Status != domain.StatusRejected:
		return fmt.Errorf("%w: invalid status %q", ErrMalformedCommand, record.Status)
	}
	return nil
}

func roundConfidence(c float64) float64 {
	return math.Round(c*1000) / 1000
}
