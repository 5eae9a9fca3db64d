// Package board defines the grid content model shared by the audio engine,
// the stores and the API surface: buttons, their generation parameters and
// the caching policy derived from them.
package board

import "encoding/json"

// ButtonType selects the generation path for a button.
type ButtonType string

const (
	TypeSpeech      ButtonType = "speech"
	TypeSoundEffect ButtonType = "sound_effect"
	TypeMusic       ButtonType = "music"
)

// Valid reports whether t is one of the known button types.
func (t ButtonType) Valid() bool {
	switch t {
	case TypeSpeech, TypeSoundEffect, TypeMusic:
		return true
	}
	return false
}

// Button is one grid cell's configuration.
//
// CachePolicy is a tri-state: buttons created before the field existed carry
// nil and fall back to the type-based default (see EffectiveCachePolicy).
// The JSON name "localStorage" is the historical field name and is kept for
// grid-data compatibility.
type Button struct {
	ID                string     `json:"id"`
	Type              ButtonType `json:"type"`
	Content           string     `json:"content"`
	AudioTag          string     `json:"audioTag,omitempty"`
	CachePolicy       *bool      `json:"localStorage,omitempty"`
	Duration          float64    `json:"duration,omitempty"`
	Loop              bool       `json:"loop,omitempty"`
	ForceInstrumental bool       `json:"forceInstrumental,omitempty"`
	Emoji             string     `json:"emoji,omitempty"`
	Label             string     `json:"label,omitempty"`
}

// DisplayLabel returns the label shown for the button, falling back to its
// content when no explicit label is set.
func (b Button) DisplayLabel() string {
	if b.Label != "" {
		return b.Label
	}
	return b.Content
}

// EffectiveCachePolicy resolves whether audio generated for b may be
// persisted. An explicit value always wins; absent one, speech is never
// cached and every other type is. All policy decisions in the repository go
// through this function.
func EffectiveCachePolicy(b Button) bool {
	if b.CachePolicy != nil {
		return *b.CachePolicy
	}
	return b.Type != TypeSpeech
}

// StorageKey derives the audio store key for a button id. The mapping is
// total and injective: two distinct button ids never share a key, and a
// button has at most one stored record at any time.
func StorageKey(buttonID string) string {
	return "button_" + buttonID
}

// GridData is the full grid configuration: buttons grouped by category id.
type GridData map[string][]Button

// FindButton returns the button with the given id and its category.
func (g GridData) FindButton(id string) (Button, string, bool) {
	for category, buttons := range g {
		for _, b := range buttons {
			if b.ID == id {
				return b, category, true
			}
		}
	}
	return Button{}, "", false
}

// Settings are the configuration values the audio engine reads. Volume is in
// [0, 1]; AudioQuality is one of low/medium/high/highest.
type Settings struct {
	APIKey       string  `json:"apiKey"`
	VoiceID      string  `json:"voiceId"`
	AudioQuality string  `json:"audioQuality"`
	Volume       float64 `json:"volume"`
}

// DefaultVolume is applied when settings carry no usable volume.
const DefaultVolume = 0.8

// EffectiveVolume returns the playback volume, defaulting out-of-range or
// unset values.
func (s Settings) EffectiveVolume() float64 {
	if s.Volume <= 0 || s.Volume > 1 {
		return DefaultVolume
	}
	return s.Volume
}

// DecodeSettings parses a raw settings config value. Empty input yields zero
// settings rather than an error so that a fresh install behaves like an
// unconfigured one.
func DecodeSettings(raw []byte) (Settings, error) {
	var s Settings
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
