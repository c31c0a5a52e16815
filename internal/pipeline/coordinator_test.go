package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"voicecmd/internal/asr"
	"voicecmd/internal/audit"
	"voicecmd/internal/auth"
	"voicecmd/internal/catalog"
	"voicecmd/internal/domain"
	"voicecmd/internal/mapper"
	"voicecmd/internal/nlu"
)

type fixedScorer struct {
	intent string
	score  float64
}

func (f *fixedScorer) Score(_ context.Context, _ string, candidates []nlu.Candidate) ([]domain.IntentScore, error) {
	out := make([]domain.IntentScore, 0, len(candidates))
	for _, c := range candidates {
		s := 0.0
		if c.Intent == f.intent {
			s = f.score
		}
		out = append(out, domain.IntentScore{Intent: c.Intent, Score: s})
	}
	return out, nil
}

type failingTranscriber struct{}

func (failingTranscriber) Transcribe(context.Context, []byte, string) (asr.Transcription, error) {
	return asr.Transcription{}, fmt.Errorf("speech engine offline")
}

func trackingSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot(
		[]domain.IntentDefinition{
			{Name: "stop_tracking", Patterns: []string{"stop tracking"}, Defaults: map[string]string{"action": "stop", "immediate": "true"}},
			{Name: "start_tracking", Patterns: []string{"start tracking"}, Defaults: map[string]string{"action": "start"}},
		},
		[]domain.CommandDefinition{
			{Name: "stop_tracking", CommandType: "tracking", Parameters: map[string]string{"action": "stop", "immediate": "true"}, Description: "Stop the active tracking task"},
			{Name: "start_tracking", CommandType: "tracking", Parameters: map[string]string{"action": "start"}, Description: "Start tracking"},
		},
	)
}

type fixture struct {
	coordinator *Coordinator
	policy      *auth.Policy
	sink        *captureSink
}

type captureSink struct {
	events []domain.AuditEvent
}

func (c *captureSink) Record(_ context.Context, ev domain.AuditEvent) {
	c.events = append(c.events, ev)
}

type option func(*options)

type options struct {
	snap        *catalog.Snapshot
	scorer      nlu.Scorer
	threshold   float64
	whitelist   []string
	transcriber asr.Transcriber
}

func withSnapshot(snap *catalog.Snapshot) option { return func(o *options) { o.snap = snap } }
func withScorer(s nlu.Scorer) option             { return func(o *options) { o.scorer = s } }
func withThreshold(v float64) option             { return func(o *options) { o.threshold = v } }
func withWhitelist(names ...string) option       { return func(o *options) { o.whitelist = names } }
func withTranscriber(tr asr.Transcriber) option  { return func(o *options) { o.transcriber = tr } }

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	o := &options{
		snap:      trackingSnapshot(),
		threshold: 0.7,
		whitelist: []string{"stop_tracking", "start_tracking"},
	}
	for _, apply := range opts {
		apply(o)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := &captureSink{}
	policy := auth.NewPolicy(o.whitelist, o.threshold)

	coordinator := NewCoordinator(
		catalog.NewStore(o.snap),
		nlu.NewClassifier(o.scorer, 0.35, logger),
		nlu.NewExtractor(),
		auth.NewGate(policy, sink, logger),
		mapper.NewAssembler(logger),
		o.transcriber,
		logger,
	)
	return &fixture{coordinator: coordinator, policy: policy, sink: sink}
}

var _ audit.Sink = (*captureSink)(nil)

func TestProcessAuthorizedCommand(t *testing.T) {
	f := newFixture(t, withScorer(&fixedScorer{intent: "stop_tracking", score: 0.95}))

	record, err := f.coordinator.ProcessText(context.Background(), "stop tracking", Options{})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if record.Status != domain.StatusAuthorized {
		t.Fatalf("status=%s, want authorized", record.Status)
	}
	if record.CommandType != "tracking" || record.Intent != "stop_tracking" {
		t.Fatalf("record=(%s,%s)", record.CommandType, record.Intent)
	}
	if record.Parameters["action"] != "stop" || record.Parameters["immediate"] != "true" {
		t.Fatalf("parameters=%v", record.Parameters)
	}
	if record.TranscribedText != "stop tracking" || record.RequestID == "" {
		t.Fatalf("record=%+v", record)
	}
}

func TestProcessHighThresholdRejects(t *testing.T) {
	f := newFixture(t,
		withScorer(&fixedScorer{intent: "stop_tracking", score: 0.95}),
		withThreshold(0.99),
	)

	record, err := f.coordinator.ProcessText(context.Background(), "stop tracking", Options{})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if record.Status != domain.StatusRejected {
		t.Fatalf("status=%s, want rejected", record.Status)
	}
	// The rejection still shows what was denied.
	if record.Intent != "stop_tracking" || record.CommandType != "tracking" {
		t.Fatalf("rejected record not populated: %+v", record)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Reason != string(auth.ReasonLowConfidence) {
		t.Fatalf("audit events=%+v", f.sink.events)
	}
}

func TestProcessUnrecognizedText(t *testing.T) {
	f := newFixture(t)

	record, err := f.coordinator.ProcessText(context.Background(), "xyzzy plugh", Options{})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if record.Status != domain.StatusRejected {
		t.Fatalf("status=%s, want rejected", record.Status)
	}
	if record.Intent != "" || record.Confidence != 0 {
		t.Fatalf("record=(%q,%v), want empty intent at zero confidence", record.Intent, record.Confidence)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Reason != string(auth.ReasonUnrecognized) {
		t.Fatalf("audit events=%+v", f.sink.events)
	}
}

func TestProcessCatalogMismatchFails(t *testing.T) {
	// Intent "foo" exists with no command definition: misconfiguration, never
	// a rejected record.
	snap := catalog.NewSnapshot(
		[]domain.IntentDefinition{{Name: "foo", Patterns: []string{"do foo"}}},
		nil,
	)
	f := newFixture(t,
		withSnapshot(snap),
		withScorer(&fixedScorer{intent: "foo", score: 1.0}),
		withWhitelist("foo"),
	)

	_, err := f.coordinator.ProcessText(context.Background(), "do foo", Options{})
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("err=%v, want *Error", err)
	}
	if perr.Stage != StageMapper || perr.Kind != KindUnknownIntent {
		t.Fatalf("failure=(%s,%s), want (mapper,unknown_intent)", perr.Stage, perr.Kind)
	}
	if !errors.Is(err, mapper.ErrUnknownIntent) {
		t.Fatalf("unwrap chain lost the sentinel: %v", err)
	}
}

func TestProcessEmptyTextIsInvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.ProcessText(context.Background(), "   ", Options{})
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("err=%v, want *Error", err)
	}
	if perr.Stage != StageNLU || perr.Kind != KindInvalidInput {
		t.Fatalf("failure=(%s,%s), want (nlu,invalid_input)", perr.Stage, perr.Kind)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.coordinator.ProcessText(context.Background(), "stop tracking", Options{})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	second, err := f.coordinator.ProcessText(context.Background(), "stop tracking", Options{})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}

	// Identical up to request identity and assembly time.
	first.RequestID, second.RequestID = "", ""
	first.Timestamp, second.Timestamp = "", ""
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("records differ:\n%+v\n%+v", first, second)
	}
}

func TestProcessMinConfidenceOverride(t *testing.T) {
	f := newFixture(t, withScorer(&fixedScorer{intent: "stop_tracking", score: 0.8}))

	record, err := f.coordinator.ProcessText(context.Background(), "stop tracking", Options{MinConfidence: 0.9})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if record.Status != domain.StatusRejected {
		t.Fatalf("status=%s, want rejected under override", record.Status)
	}
	if f.policy.Threshold() != 0.7 {
		t.Fatalf("override mutated shared policy: %v", f.policy.Threshold())
	}
}

func TestProcessExtractionWinsMerge(t *testing.T) {
	// "immediate" appears in the text, so extraction supplies it and must win
	// over the command default even though both agree on the key.
	snap := catalog.NewSnapshot(
		[]domain.IntentDefinition{
			{Name: "stop_tracking", Patterns: []string{"stop tracking"}, Defaults: map[string]string{"immediate": "confirmed"}},
		},
		[]domain.CommandDefinition{
			{Name: "stop_tracking", CommandType: "tracking", Parameters: map[string]string{"immediate": "true", "action": "stop"}, Description: "stop"},
		},
	)
	f := newFixture(t, withSnapshot(snap), withWhitelist("stop_tracking"))

	record, err := f.coordinator.ProcessText(context.Background(), "stop tracking immediate", Options{})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if record.Parameters["immediate"] != "confirmed" {
		t.Fatalf("immediate=%q, want extracted value", record.Parameters["immediate"])
	}
	if record.Parameters["action"] != "stop" {
		t.Fatalf("action=%q, default lost", record.Parameters["action"])
	}
}

func TestProcessAudio(t *testing.T) {
	f := newFixture(t, withTranscriber(asr.NewMock("stop tracking")))

	record, err := f.coordinator.ProcessAudio(context.Background(), []byte{1, 2, 3}, Options{})
	if err != nil {
		t.Fatalf("ProcessAudio: %v", err)
	}
	if record.Status != domain.StatusAuthorized || record.TranscribedText != "stop tracking" {
		t.Fatalf("record=%+v", record)
	}
}

func TestProcessAudioFailures(t *testing.T) {
	tests := []struct {
		name      string
		tr        asr.Transcriber
		wantStage Stage
		wantKind  Kind
	}{
		{name: "engine offline", tr: failingTranscriber{}, wantStage: StageASR, wantKind: KindUpstreamUnavailable},
		{name: "no speech detected", tr: asr.NewMock("   "), wantStage: StageASR, wantKind: KindInvalidInput},
		{name: "not configured", tr: nil, wantStage: StageASR, wantKind: KindUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, withTranscriber(tt.tr))
			_, err := f.coordinator.ProcessAudio(context.Background(), []byte{1}, Options{})
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("err=%v, want *Error", err)
			}
			if perr.Stage != tt.wantStage || perr.Kind != tt.wantKind {
				t.Fatalf("failure=(%s,%s), want (%s,%s)", perr.Stage, perr.Kind, tt.wantStage, tt.wantKind)
			}
		})
	}
}

func TestProcessSeesReloadedCatalogAtomically(t *testing.T) {
	store := catalog.NewStore(trackingSnapshot())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := &captureSink{}
	policy := auth.NewPolicy([]string{"stop_tracking", "mute_audio"}, 0.7)

	coordinator := NewCoordinator(
		store,
		nlu.NewClassifier(nil, 0.35, logger),
		nlu.NewExtractor(),
		auth.NewGate(policy, sink, logger),
		mapper.NewAssembler(logger),
		nil,
		logger,
	)

	store.Swap(catalog.NewSnapshot(
		[]domain.IntentDefinition{{Name: "mute_audio", Patterns: []string{"mute audio"}}},
		[]domain.CommandDefinition{{Name: "mute_audio", CommandType: "audio", Description: "mute"}},
	))

	record, err := coordinator.ProcessText(context.Background(), "mute audio", Options{})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if record.Intent != "mute_audio" || record.Status != domain.StatusAuthorized {
		t.Fatalf("record=%+v", record)
	}

	// The old catalog's intents are gone in full.
	old, err := coordinator.ProcessText(context.Background(), "stop tracking", Options{})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if old.Intent == "stop_tracking" {
		t.Fatalf("stale catalog visible: %+v", old)
	}
	if old.Status != domain.StatusRejected {
		t.Fatalf("status=%s, want rejected for retired intent", old.Status)
	}
}
