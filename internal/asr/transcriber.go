package asr

import (
	"context"
	"fmt"
	"time"
)

// Transcription is the speech engine's output for one audio submission.
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcriber converts audio bytes to text. The engine itself is an external
// collaborator; this package only defines the boundary and its variants.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Transcription, error)
}

type Config struct {
	Mode     string
	BaseURL  string
	Timeout  time.Duration
	MockText string
}

// NewTranscriber selects the engine variant by configuration. Mode "" means
// audio input is disabled and nil is returned.
func NewTranscriber(cfg Config) (Transcriber, error) {
	switch cfg.Mode {
	case "http":
		return NewClient(cfg.BaseURL, cfg.Timeout), nil
	case "mock":
		return NewMock(cfg.MockText), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported asr mode: %s", cfg.Mode)
	}
}

// Mock returns a fixed transcription; used in debug mode and tests.
type Mock struct {
	text string
}

func NewMock(text string) *Mock {
	if text == "" {
		text = "mock transcription"
	}
	return &Mock{text: text}
}

func (m *Mock) Transcribe(_ context.Context, _ []byte, _ string) (Transcription, error) {
	return Transcription{Text: m.text, Confidence: 1}, nil
}
