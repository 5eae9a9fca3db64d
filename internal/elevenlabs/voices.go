package elevenlabs

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Voice is one entry of the voice catalog.
type Voice struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// VoiceSearchOptions are the optional facets of a catalog search.
type VoiceSearchOptions struct {
	Category string // premade, cloned, generated, professional
	Language string
	Accent   string
	Age      string // young, middle_aged, old
	Gender   string
	UseCase  string // narration, news, conversational, ...
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// Voices lists the available voices.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	var resp voicesResponse
	if err := c.getJSON(ctx, "/voices", &resp); err != nil {
		return nil, err
	}
	return resp.Voices, nil
}

// SearchVoices queries the catalog by free text plus optional facets. When
// the search endpoint fails, the full catalog is fetched and filtered
// locally by name, id and description.
func (c *Client) SearchVoices(ctx context.Context, query string, opts VoiceSearchOptions) ([]Voice, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	for key, value := range map[string]string{
		"category": opts.Category,
		"language": opts.Language,
		"accent":   opts.Accent,
		"age":      opts.Age,
		"gender":   opts.Gender,
		"use_case": opts.UseCase,
	} {
		if value != "" {
			params.Set(key, value)
		}
	}

	var resp voicesResponse
	err := c.getJSON(ctx, "/voices/search?"+params.Encode(), &resp)
	if err == nil {
		return resp.Voices, nil
	}
	if errors.Is(err, ErrNoAPIKey) {
		return nil, err
	}

	all, listErr := c.Voices(ctx)
	if listErr != nil {
		return nil, listErr
	}
	if query == "" {
		return all, nil
	}

	needle := strings.ToLower(query)
	var matched []Voice
	for _, v := range all {
		if strings.Contains(strings.ToLower(v.Name), needle) ||
			strings.Contains(strings.ToLower(v.VoiceID), needle) ||
			strings.Contains(strings.ToLower(v.Description), needle) {
			matched = append(matched, v)
		}
	}
	return matched, nil
}

// VoiceByID fetches a single voice's details.
func (c *Client) VoiceByID(ctx context.Context, voiceID string) (Voice, error) {
	var voice Voice
	if err := c.getJSON(ctx, "/voices/"+url.PathEscape(voiceID), &voice); err != nil {
		return Voice{}, err
	}
	return voice, nil
}
