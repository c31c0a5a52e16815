package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to an external speech-to-text service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, language string) (Transcription, error) {
	if !c.Enabled() {
		return Transcription{}, fmt.Errorf("speech service is not configured")
	}

	endpoint := c.baseURL + "/v1/transcribe"
	if language != "" {
		endpoint += "?language=" + url.QueryEscape(language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return Transcription{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return Transcription{}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return Transcription{}, fmt.Errorf("speech service status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out Transcription
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Transcription{}, err
	}
	out.Text = strings.TrimSpace(out.Text)
	return out, nil
}
