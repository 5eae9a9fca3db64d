// Package elevenlabs is a stateless client for the ElevenLabs generation
// API: speech synthesis, sound effects, music and the voice catalog. It
// shapes requests (tag injection, duration clamping, quality mapping) but
// performs no caching, retries or playback.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"

	speechModelID      = "eleven_v3"
	soundEffectModelID = "eleven_text_to_sound_v2"
	musicModelID       = "music_v1"

	// DefaultVoiceID is used when settings carry no voice selection.
	DefaultVoiceID = "pNInz6obpgDQGcFmaJgB"

	errorBodyLimit = 4 * 1024
)

// ErrNoAPIKey is returned before any network I/O when the client has no
// credential configured.
var ErrNoAPIKey = errors.New("elevenlabs: api key not configured")

// APIError carries the remote error payload for a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("elevenlabs: api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("elevenlabs: api error: status %d: %s", e.StatusCode, e.Message)
}

// Options configures optional client behavior.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client issues generation requests against the ElevenLabs API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given credential. An empty key is
// allowed at construction time; every call will then fail with ErrNoAPIKey.
func NewClient(apiKey string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Music generation can take over a minute.
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) postAudio(ctx context.Context, path string, body any) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readAPIError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs: empty audio response from %s", path)
	}
	return audio, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs: call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("elevenlabs: decode %s response: %w", path, err)
	}
	return nil
}

// readAPIError recovers the remote error message when the body is readable
// as text; binary or unreadable bodies degrade to a bare status error.
func readAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var detail struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &detail) == nil && len(detail.Detail) > 0 {
		apiErr.Message = strings.TrimSpace(string(detail.Detail))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
