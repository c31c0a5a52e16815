package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientTranscribe(t *testing.T) {
	audio := []byte{0x52, 0x49, 0x46, 0x46}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transcribe" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if got := r.URL.Query().Get("language"); got != "en" {
			t.Errorf("language=%q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.Equal(body, audio) {
			t.Errorf("body=%v", body)
		}
		json.NewEncoder(w).Encode(Transcription{Text: "  stop tracking \n", Confidence: 0.91})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	got, err := client.Transcribe(context.Background(), audio, "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "stop tracking" {
		t.Fatalf("text=%q, want trimmed", got.Text)
	}
	if got.Confidence != 0.91 {
		t.Fatalf("confidence=%v", got.Confidence)
	}
}

func TestClientTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	if _, err := client.Transcribe(context.Background(), []byte{1}, ""); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestClientNotConfigured(t *testing.T) {
	client := NewClient("", 0)
	if client.Enabled() {
		t.Fatal("empty base URL should be disabled")
	}
	if _, err := client.Transcribe(context.Background(), nil, ""); err == nil {
		t.Fatal("expected error when not configured")
	}
}

func TestNewTranscriberVariants(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{name: "disabled", cfg: Config{}, wantNil: true},
		{name: "mock", cfg: Config{Mode: "mock", MockText: "hello"}},
		{name: "http", cfg: Config{Mode: "http", BaseURL: "http://asr:8080"}},
		{name: "unknown", cfg: Config{Mode: "whisper-native"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTranscriber(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTranscriber: %v", err)
			}
			if (tr == nil) != tt.wantNil {
				t.Fatalf("transcriber=%v, wantNil=%v", tr, tt.wantNil)
			}
		})
	}
}

func TestMockDefaultsText(t *testing.T) {
	got, err := NewMock("").Transcribe(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text == "" || got.Confidence != 1 {
		t.Fatalf("got=%+v", got)
	}
}
