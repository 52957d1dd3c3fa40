package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPRenderer talks to a rendering service over a small JSON contract:
// POST {prompt, audio_url} -> {video_url}.
type HTTPRenderer struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewHTTPRenderer(endpoint, apiKey string) *HTTPRenderer {
	return &HTTPRenderer{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (r *HTTPRenderer) Name() string { return "http-renderer" }

type renderRequest struct {
	Prompt   string `json:"prompt"`
	AudioURL string `json:"audio_url"`
}

type renderResponse struct {
	VideoURL string `json:"video_url"`
	Error    string `json:"error,omitempty"`
}

func (r *HTTPRenderer) Render(ctx context.Context, promptText, audioRef string) (string, error) {
	body, err := json.Marshal(renderRequest{Prompt: promptText, AudioURL: audioRef})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	const maxBytes = 1 << 20
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBytes))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("renderer returned %d: %s", resp.StatusCode, string(raw))
	}

	var out renderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if out.VideoURL == "" {
		return "", fmt.Errorf("renderer returned no video_url: %s", out.Error)
	}
	return out.VideoURL, nil
}
