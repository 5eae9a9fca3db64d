package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type capturedRequest struct {
	path string
	body map[string]any
}

// newGenerationServer records generation requests and answers with audio.
func newGenerationServer(t *testing.T, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") == "" {
			t.Error("request missing xi-api-key header")
		}
		captured.path = r.URL.Path
		if r.Method == http.MethodPost {
			captured.body = map[string]any{}
			if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
				t.Errorf("decode request body: %v", err)
			}
		}
		w.Write([]byte("audio-bytes"))
	}))
}

func TestTextToSpeechRequestShape(t *testing.T) {
	var captured capturedRequest
	srv := newGenerationServer(t, &captured)
	defer srv.Close()

	c := NewClient("key", &Options{BaseURL: srv.URL})
	audio, err := c.TextToSpeech(context.Background(), "[cheerful] Hello", "voice-1", QualityLow)
	if err != nil {
		t.Fatalf("text to speech: %v", err)
	}
	if string(audio) != "audio-bytes" {
		t.Fatalf("audio = %q", audio)
	}
	if captured.path != "/text-to-speech/voice-1" {
		t.Fatalf("path = %q", captured.path)
	}
	if captured.body["text"] != "[cheerful] Hello" {
		t.Fatalf("text = %v", captured.body["text"])
	}
	if captured.body["model_id"] != speechModelID {
		t.Fatalf("model_id = %v", captured.body["model_id"])
	}
	if captured.body["output_format"] != "mp3_22050_32" {
		t.Fatalf("output_format = %v", captured.body["output_format"])
	}
}

func TestTextToSpeechDefaultsVoice(t *testing.T) {
	var captured capturedRequest
	srv := newGenerationServer(t, &captured)
	defer srv.Close()

	c := NewClient("key", &Options{BaseURL: srv.URL})
	if _, err := c.TextToSpeech(context.Background(), "hi", "", ""); err != nil {
		t.Fatalf("text to speech: %v", err)
	}
	if captured.path != "/text-to-speech/"+DefaultVoiceID {
		t.Fatalf("path = %q", captured.path)
	}
	if captured.body["output_format"] != "mp3_44100_128" {
		t.Fatalf("unknown quality should fall back to high, got %v", captured.body["output_format"])
	}
}

func TestSoundEffectDurationClamping(t *testing.T) {
	cases := []struct {
		name     string
		duration float64
		want     any // nil means the field must be omitted
	}{
		{"zero omitted", 0, nil},
		{"negative clamped to min", -5, 0.5},
		{"above max clamped", 100, 30.0},
		{"below min clamped", 0.1, 0.5},
		{"in range passed through", 5, 5.0},
	}

	for _, tc := range cases {
		var captured capturedRequest
		srv := newGenerationServer(t, &captured)

		c := NewClient("key", &Options{BaseURL: srv.URL})
		if _, err := c.SoundEffect(context.Background(), "rain", SoundEffectOptions{DurationSeconds: tc.duration}); err != nil {
			t.Fatalf("%s: sound effect: %v", tc.name, err)
		}
		srv.Close()

		got, present := captured.body["duration_seconds"]
		if tc.want == nil {
			if present {
				t.Fatalf("%s: duration_seconds should be omitted, got %v", tc.name, got)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("%s: duration_seconds = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSoundEffectLoopFlag(t *testing.T) {
	var captured capturedRequest
	srv := newGenerationServer(t, &captured)
	defer srv.Close()

	c := NewClient("key", &Options{BaseURL: srv.URL})
	if _, err := c.SoundEffect(context.Background(), "wind", SoundEffectOptions{Loop: true}); err != nil {
		t.Fatalf("sound effect: %v", err)
	}
	if captured.path != "/sound-generation" {
		t.Fatalf("path = %q", captured.path)
	}
	if captured.body["loop"] != true {
		t.Fatalf("loop = %v", captured.body["loop"])
	}
}

func TestMusicLengthClamping(t *testing.T) {
	cases := []struct {
		seconds float64
		wantMS  float64
	}{
		{0, 10_000},
		{5, 10_000},
		{30, 30_000},
		{600, 300_000},
	}

	for _, tc := range cases {
		var captured capturedRequest
		srv := newGenerationServer(t, &captured)

		c := NewClient("key", &Options{BaseURL: srv.URL})
		if _, err := c.Music(context.Background(), "calm piano", MusicOptions{DurationSeconds: tc.seconds, ForceInstrumental: true}); err != nil {
			t.Fatalf("music(%v): %v", tc.seconds, err)
		}
		srv.Close()

		if captured.path != "/music" {
			t.Fatalf("path = %q", captured.path)
		}
		if captured.body["music_length_ms"] != tc.wantMS {
			t.Fatalf("music_length_ms for %vs = %v, want %v", tc.seconds, captured.body["music_length_ms"], tc.wantMS)
		}
		if captured.body["force_instrumental"] != true {
			t.Fatalf("force_instrumental = %v", captured.body["force_instrumental"])
		}
	}
}

func TestMissingAPIKeyShortCircuits(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewClient("", &Options{BaseURL: srv.URL})
	ctx := context.Background()

	if _, err := c.TextToSpeech(ctx, "hi", "v", ""); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("tts error = %v, want ErrNoAPIKey", err)
	}
	if _, err := c.SoundEffect(ctx, "x", SoundEffectOptions{}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("sfx error = %v, want ErrNoAPIKey", err)
	}
	if _, err := c.Music(ctx, "x", MusicOptions{}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("music error = %v, want ErrNoAPIKey", err)
	}
	if _, err := c.Voices(ctx); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("voices error = %v, want ErrNoAPIKey", err)
	}
	if calls != 0 {
		t.Fatalf("expected no network calls without a credential, got %d", calls)
	}
}

func TestAPIErrorCarriesRemoteMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":{"status":"invalid_request","message":"duration too long"}}`))
	}))
	defer srv.Close()

	c := NewClient("key", &Options{BaseURL: srv.URL})
	_, err := c.SoundEffect(context.Background(), "x", SoundEffectOptions{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Message == "" {
		t.Fatal("expected remote message to be extracted")
	}
}
