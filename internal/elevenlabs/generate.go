package elevenlabs

import "context"

// Accepted parameter ranges of the generation models.
const (
	minEffectDurationSec = 0.5
	maxEffectDurationSec = 30

	minMusicLengthMS = 10_000
	maxMusicLengthMS = 300_000
)

// Quality tiers accepted in settings, mapped to concrete output encodings.
const (
	QualityLow     = "low"
	QualityMedium  = "medium"
	QualityHigh    = "high"
	QualityHighest = "highest"
)

// OutputFormat maps a quality tier to the encoding sent to the API. Unknown
// tiers fall back to high.
func OutputFormat(quality string) string {
	switch quality {
	case QualityLow:
		return "mp3_22050_32"
	case QualityMedium:
		return "mp3_44100_64"
	case QualityHighest:
		return "mp3_44100_192"
	default:
		return "mp3_44100_128"
	}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
	OutputFormat  string        `json:"output_format,omitempty"`
}

// TextToSpeech synthesizes speech for text with the given voice. The text is
// expected to already carry its emotion-tag prefix (see EnsureAudioTag);
// quality selects the output encoding tier.
func (c *Client) TextToSpeech(ctx context.Context, text, voiceID, quality string) ([]byte, error) {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	req := speechRequest{
		Text:    text,
		ModelID: speechModelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.5,
			UseSpeakerBoost: true,
		},
		OutputFormat: OutputFormat(quality),
	}
	return c.postAudio(ctx, "/text-to-speech/"+voiceID, req)
}

// SoundEffectOptions shape a sound-effect generation request.
type SoundEffectOptions struct {
	// DurationSeconds requests a clip length; zero means "let the model
	// choose" and the parameter is omitted from the request. Any other
	// value is clamped into the accepted range, so even a negative
	// request becomes the minimum rather than being dropped.
	DurationSeconds float64
	// Loop asks for a clip authored to loop seamlessly.
	Loop bool
}

type soundEffectRequest struct {
	Text            string   `json:"text"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Loop            bool     `json:"loop"`
	ModelID         string   `json:"model_id"`
}

// SoundEffect generates a sound effect from a free-text description.
// Requested durations are clamped into the model's accepted range; an
// unset duration is omitted entirely rather than sent as a clamped zero.
func (c *Client) SoundEffect(ctx context.Context, description string, opts SoundEffectOptions) ([]byte, error) {
	req := soundEffectRequest{
		Text:    description,
		Loop:    opts.Loop,
		ModelID: soundEffectModelID,
	}
	if opts.DurationSeconds != 0 {
		clamped := clampFloat(opts.DurationSeconds, minEffectDurationSec, maxEffectDurationSec)
		req.DurationSeconds = &clamped
	}
	return c.postAudio(ctx, "/sound-generation", req)
}

// MusicOptions shape a music generation request.
type MusicOptions struct {
	DurationSeconds   float64
	ForceInstrumental bool
}

type musicRequest struct {
	Prompt            string `json:"prompt"`
	MusicLengthMS     int    `json:"music_length_ms"`
	ForceInstrumental bool   `json:"force_instrumental"`
	ModelID           string `json:"model_id"`
}

// Music generates a music clip from a free-text description. Unlike sound
// effects the model has no "decide yourself" mode: a duration is always
// sent, converted to milliseconds and clamped into the accepted range.
func (c *Client) Music(ctx context.Context, description string, opts MusicOptions) ([]byte, error) {
	req := musicRequest{
		Prompt:            description,
		MusicLengthMS:     musicLengthMS(opts.DurationSeconds),
		ForceInstrumental: opts.ForceInstrumental,
		ModelID:           musicModelID,
	}
	return c.postAudio(ctx, "/music", req)
}

func musicLengthMS(seconds float64) int {
	ms := int(seconds * 1000)
	if ms < minMusicLengthMS {
		return minMusicLengthMS
	}
	if ms > maxMusicLengthMS {
		return maxMusicLengthMS
	}
	return ms
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
