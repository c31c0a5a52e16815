package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicecmd/internal/asr"
	"voicecmd/internal/auth"
	"voicecmd/internal/catalog"
	"voicecmd/internal/domain"
	"voicecmd/internal/mapper"
	"voicecmd/internal/nlu"
)

// Options tune one pipeline run. MinConfidence, when positive, overrides the
// policy threshold for this request without mutating shared state.
type Options struct {
	MinConfidence float64
	Language      string
}

// Coordinator sequences classification, extraction, authorization and
// assembly. It is the only public entry point into the pipeline. Security
// rejections come back as rejected records; data and lookup faults come back
// as *Error with a stage tag.
type Coordinator struct {
	catalogs    *catalog.Store
	classifier  *nlu.Classifier
	extractor   *nlu.Extractor
	gate        *auth.Gate
	assembler   *mapper.Assembler
	transcriber asr.Transcriber
	logger      *slog.Logger
}

func NewCoordinator(
	catalogs *catalog.Store,
	classifier *nlu.Classifier,
	extractor *nlu.Extractor,
	gate *auth.Gate,
	assembler *mapper.Assembler,
	transcriber asr.Transcriber,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		catalogs:    catalogs,
		classifier:  classifier,
		extractor:   extractor,
		gate:        gate,
		assembler:   assembler,
		transcriber: transcriber,
		logger:      logger,
	}
}

// ProcessText runs the full pipeline on already-transcribed text.
func (c *Coordinator) ProcessText(ctx context.Context, text string, opts Options) (domain.CommandRecord, error) {
	return c.process(ctx, uuid.NewString(), text, opts)
}

// ProcessAudio transcribes audio through the speech collaborator, then runs
// the text pipeline on the result.
func (c *Coordinator) ProcessAudio(ctx context.Context, audio []byte, opts Options) (domain.CommandRecord, error) {
	requestID := uuid.NewString()
	if c.transcriber == nil {
		return domain.CommandRecord{}, &Error{Stage: StageASR, Kind: KindUpstreamUnavailable, Err: errors.New("no speech engine configured")}
	}

	transcribed, err := c.transcriber.Transcribe(ctx, audio, opts.Language)
	if err != nil {
		return domain.CommandRecord{}, &Error{Stage: StageASR, Kind: KindUpstreamUnavailable, Err: err}
	}
	if strings.TrimSpace(transcribed.Text) == "" {
		return domain.CommandRecord{}, &Error{Stage: StageASR, Kind: KindInvalidInput, Err: errors.New("no speech detected")}
	}

	c.logger.Info("transcribed audio",
		"request_id", requestID,
		"text", transcribed.Text,
		"asr_confidence", transcribed.Confidence,
	)
	return c.process(ctx, requestID, transcribed.Text, opts)
}

func (c *Coordinator) process(ctx context.Context, requestID, text string, opts Options) (domain.CommandRecord, error) {
	start := time.Now()
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.CommandRecord{}, &Error{Stage: StageNLU, Kind: KindInvalidInput, Err: nlu.ErrEmptyText}
	}

	// One snapshot per request: a concurrent reload swaps the whole catalog
	// pair, never half of it.
	snap := c.catalogs.Snapshot()

	classifyStart := time.Now()
	result, err := c.classifier.Classify(ctx, text, snap)
	classifyDur := time.Since(classifyStart)
	if err != nil {
		return domain.CommandRecord{}, &Error{Stage: StageNLU, Kind: KindInvalidInput, Err: err}
	}

	entities := c.extractor.Extract(text, snap)

	decision := c.gate.Authorize(ctx, auth.Request{
		RequestID:       requestID,
		Intent:          result.Intent,
		Confidence:      result.Confidence,
		TranscribedText: text,
		MinConfidence:   opts.MinConfidence,
	})

	if result.Unrecognized() {
		// Legitimate "nothing matched" outcome, not a failure.
		record := c.assembler.Unrecognized(requestID, text)
		c.logTiming(requestID, result, classifyDur, start, record.Status)
		return record, nil
	}

	status := domain.StatusRejected
	if decision.Allowed {
		status = domain.StatusAuthorized
	}

	record, err := c.assembler.Assemble(mapper.Input{
		RequestID:       requestID,
		Intent:          result.Intent,
		Confidence:      result.Confidence,
		Entities:        entities,
		TranscribedText: text,
		Status:          status,
	}, snap)
	if err != nil {
		return domain.CommandRecord{}, assembleError(err)
	}

	c.logTiming(requestID, result, classifyDur, start, record.Status)
	return record, nil
}

// assembleError maps the assembler's sentinels onto stage-tagged failures. A
// missing command definition is misconfiguration, never downgraded to a
// rejected record.
func assembleError(err error) error {
	switch {
	case errors.Is(err, mapper.ErrUnknownIntent):
		return &Error{Stage: StageMapper, Kind: KindUnknownIntent, Err: err}
	case errors.Is(err, mapper.ErrMalformedCommand):
		return &Error{Stage: StageValidation, Kind: KindMalformedCommand, Err: err}
	default:
		return &Error{Stage: StageMapper, Kind: KindUnknownIntent, Err: fmt.Errorf("assembly failed: %w", err)}
	}
}

func (c *Coordinator) logTiming(requestID string, result domain.ClassificationResult, classifyDur time.Duration, start time.Time, status domain.Status) {
	c.logger.Info("pipeline finished",
		"request_id", requestID,
		"intent", result.Intent,
		"confidence", result.Confidence,
		"status", status,
		"classify_ms", classifyDur.Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
	)
}
