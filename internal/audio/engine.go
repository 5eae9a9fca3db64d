// Package audio is the orchestration core: given a button activation it
// decides between fetching stored audio and synthesizing fresh audio,
// drives playback, and persists cache-eligible results in the background.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/voiceboard-ai/voiceboard/internal/audioio"
	"github.com/voiceboard-ai/voiceboard/internal/audiostore"
	"github.com/voiceboard-ai/voiceboard/internal/board"
	"github.com/voiceboard-ai/voiceboard/internal/elevenlabs"
	"github.com/voiceboard-ai/voiceboard/internal/events"
	"github.com/voiceboard-ai/voiceboard/internal/playback"
)

var (
	// ErrNotConfigured indicates no generation credential is configured.
	// Detected before any network or storage I/O.
	ErrNotConfigured = errors.New("audio: no API key configured")
	// ErrSuperseded reports that a newer activation took over while this
	// one was still generating.
	ErrSuperseded = playback.ErrSuperseded
)

const persistTimeout = 30 * time.Second

// Generator produces audio for the three button types. Satisfied by
// *elevenlabs.Client.
type Generator interface {
	TextToSpeech(ctx context.Context, text, voiceID, quality string) ([]byte, error)
	SoundEffect(ctx context.Context, description string, opts elevenlabs.SoundEffectOptions) ([]byte, error)
	Music(ctx context.Context, description string, opts elevenlabs.MusicOptions) ([]byte, error)
}

// Store is the slice of the audio object store the engine drives.
// Satisfied by *audiostore.Store.
type Store interface {
	Store(ctx context.Context, id string, blob []byte, meta audiostore.Metadata) (string, error)
	Fetch(ctx context.Context, id string) (audiostore.Record, error)
	DeleteWhereType(ctx context.Context, audioType string) (int64, error)
}

// SettingsSource supplies the current settings on every activation so that
// key, voice and volume changes take effect without restart. Satisfied by
// *store.Store.
type SettingsSource interface {
	LoadSettings(ctx context.Context) (board.Settings, error)
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine coordinates generation, caching and playback. At most one
// activation is authoritative at a time; starting a new one supersedes the
// previous one rather than queueing behind it.
type Engine struct {
	generator Generator
	store     Store
	settings  SettingsSource
	player    *playback.Player
	bus       *events.Bus
	logger    *log.Logger

	mu        sync.Mutex
	token     uint64
	lastVoice string

	persistWG sync.WaitGroup
}

// New constructs an engine over its collaborators.
func New(generator Generator, store Store, settings SettingsSource, player *playback.Player, bus *events.Bus, opts ...Option) *Engine {
	e := &Engine{
		generator: generator,
		store:     store,
		settings:  settings,
		player:    player,
		bus:       bus,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result reports what an activation produced. Audio carries the generated
// bytes when the clip was synthesized fresh (callers use this for
// preview-before-save workflows); it is nil on a cache hit.
type Result struct {
	Audio     []byte
	FromCache bool
}

// Activate runs the decision procedure for one button press. category is
// the grid category the button lives in, recorded with any persisted
// audio. When preview is true the result is played but never persisted and
// the generated bytes are always returned.
//
// The call resolves once playback has started; persisting a cache miss
// happens in the background and cannot fail the activation.
func (e *Engine) Activate(ctx context.Context, btn board.Button, category string, preview bool) (Result, error) {
	settings, err := e.settings.LoadSettings(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("audio: load settings: %w", err)
	}
	if settings.APIKey == "" {
		return Result{}, ErrNotConfigured
	}

	token, voiceChanged := e.begin(settings.VoiceID)
	if voiceChanged {
		if _, err := e.InvalidateStaleCache(ctx); err != nil {
			e.logger.Printf("[Audio] voice change sweep failed: %v", err)
		}
	}

	e.publishState(events.PlaybackState{ButtonID: btn.ID, State: events.StateGenerating})

	policy := board.EffectiveCachePolicy(btn)
	key := board.StorageKey(btn.ID)

	// Preview and non-caching buttons always synthesize fresh audio and
	// never persist it.
	if preview || !policy {
		blob, err := e.generate(ctx, btn, settings)
		if err != nil {
			e.failIfCurrent(token, btn.ID, err)
			return Result{}, err
		}
		if err := e.play(token, btn, blob, settings); err != nil {
			return Result{}, err
		}
		return Result{Audio: blob}, nil
	}

	// Caching enabled: any stored record wins over the network. A fetch
	// failure is treated as a miss, never as a fatal error.
	if rec, err := e.store.Fetch(ctx, key); err == nil {
		if err := e.play(token, btn, rec.Blob, settings); err != nil {
			return Result{}, err
		}
		return Result{FromCache: true}, nil
	} else if !errors.Is(err, audiostore.ErrNotFound) {
		e.logger.Printf("[Audio] cache fetch for %s failed, regenerating: %v", btn.ID, err)
	}

	blob, err := e.generate(ctx, btn, settings)
	if err != nil {
		e.failIfCurrent(token, btn.ID, err)
		return Result{}, err
	}
	if err := e.play(token, btn, blob, settings); err != nil {
		return Result{}, err
	}
	e.persistAsync(btn, category, blob)
	return Result{Audio: blob}, nil
}

// SaveForButton persists audio for a button being edited, bypassing
// playback. A pregenerated blob (typically from a preview) is stored as-is
// to avoid a redundant remote call; otherwise the audio is synthesized
// first. When the button's effective policy forbids caching the call is a
// successful no-op, since no stored file is the correct outcome.
func (e *Engine) SaveForButton(ctx context.Context, btn board.Button, category string, pregenerated []byte) error {
	if !board.EffectiveCachePolicy(btn) {
		return nil
	}

	blob := pregenerated
	if len(blob) == 0 {
		settings, err := e.settings.LoadSettings(ctx)
		if err != nil {
			return fmt.Errorf("audio: load settings: %w", err)
		}
		if settings.APIKey == "" {
			return ErrNotConfigured
		}
		blob, err = e.generate(ctx, btn, settings)
		if err != nil {
			return err
		}
	}

	if _, err := e.store.Store(ctx, board.StorageKey(btn.ID), blob, e.metadataFor(btn, category)); err != nil {
		return fmt.Errorf("audio: persist %s: %w", btn.ID, err)
	}
	e.bus.Publish(events.TopicCacheChanged, events.CacheChange{Op: "stored", ButtonID: btn.ID})
	return nil
}

// InvalidateStaleCache purges every stored record of type speech. Safe to
// run at any time; with no stale entries it is a no-op reporting zero.
func (e *Engine) InvalidateStaleCache(ctx context.Context) (int64, error) {
	removed, err := e.store.DeleteWhereType(ctx, string(board.TypeSpeech))
	if err != nil {
		return 0, fmt.Errorf("audio: invalidate stale cache: %w", err)
	}
	if removed > 0 {
		e.bus.Publish(events.TopicCacheChanged, events.CacheChange{Op: "swept", Removed: removed})
	}
	return removed, nil
}

// Stop supersedes any in-flight activation and silences playback.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.token++
	e.mu.Unlock()
	e.player.Stop()
}

// Flush waits for background persist tasks to land. Called on shutdown so
// fire-and-forget writes are not lost to process exit.
func (e *Engine) Flush() {
	e.persistWG.Wait()
}

// begin claims a new activation token and reports whether the synthesis
// voice changed since the previous activation.
func (e *Engine) begin(voiceID string) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.token++
	changed := e.lastVoice != "" && voiceID != "" && e.lastVoice != voiceID
	if voiceID != "" {
		e.lastVoice = voiceID
	}
	return e.token, changed
}

func (e *Engine) currentToken() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// play starts playback unless the activation has been superseded while
// generating, in which case the result is discarded.
func (e *Engine) play(token uint64, btn board.Button, blob []byte, settings board.Settings) error {
	if e.currentToken() != token {
		return ErrSuperseded
	}
	_, err := e.player.Play(context.Background(), playback.Request{
		ButtonID: btn.ID,
		Audio:    blob,
		MIMEType: audioio.MIMEType(blob),
		Volume:   settings.EffectiveVolume(),
		Loop:     btn.Loop,
	})
	if errors.Is(err, playback.ErrNoOutput) {
		// No listener connected. The activation still succeeds so the
		// caller gets its bytes; there is just nothing to hear them on.
		e.logger.Printf("[Audio] no playback output connected, skipping playback for %s", btn.ID)
		return nil
	}
	return err
}

// failIfCurrent reports a generation failure on the event bus unless a
// newer activation already owns the state.
func (e *Engine) failIfCurrent(token uint64, buttonID string, err error) {
	if e.currentToken() != token {
		return
	}
	e.publishState(events.PlaybackState{ButtonID: buttonID, State: events.StateError, Error: err.Error()})
}

// generate dispatches to the synthesis path for the button's type.
func (e *Engine) generate(ctx context.Context, btn board.Button, settings board.Settings) ([]byte, error) {
	switch btn.Type {
	case board.TypeSpeech:
		text := elevenlabs.EnsureAudioTag(btn.Content, firstTag(btn.AudioTag))
		return e.generator.TextToSpeech(ctx, text, settings.VoiceID, settings.AudioQuality)
	case board.TypeSoundEffect:
		return e.generator.SoundEffect(ctx, btn.Content, elevenlabs.SoundEffectOptions{
			DurationSeconds: btn.Duration,
			Loop:            btn.Loop,
		})
	case board.TypeMusic:
		return e.generator.Music(ctx, btn.Content, elevenlabs.MusicOptions{
			DurationSeconds:   btn.Duration,
			ForceInstrumental: btn.ForceInstrumental,
		})
	default:
		return nil, fmt.Errorf("audio: unknown button type %q", btn.Type)
	}
}

// persistAsync stores a freshly generated blob without blocking the
// activation. Failures are logged and swallowed: caching is best-effort.
func (e *Engine) persistAsync(btn board.Button, category string, blob []byte) {
	e.persistWG.Add(1)
	go func() {
		defer e.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if _, err := e.store.Store(ctx, board.StorageKey(btn.ID), blob, e.metadataFor(btn, category)); err != nil {
			e.logger.Printf("[Audio] background persist for %s failed: %v", btn.ID, err)
			return
		}
		e.bus.Publish(events.TopicCacheChanged, events.CacheChange{Op: "stored", ButtonID: btn.ID})
	}()
}

func (e *Engine) metadataFor(btn board.Button, category string) audiostore.Metadata {
	return audiostore.Metadata{
		Type:     string(btn.Type),
		Category: category,
		Label:    btn.DisplayLabel(),
		Content:  btn.Content,
		AudioTag: btn.AudioTag,
		Duration: btn.Duration,
	}
}

func (e *Engine) publishState(state events.PlaybackState) {
	e.bus.Publish(events.TopicPlaybackState, state)
}

// firstTag picks the first entry of a comma-joined tag record.
func firstTag(audioTag string) string {
	if audioTag == "" {
		return ""
	}
	first, _, _ := strings.Cut(audioTag, ",")
	return strings.TrimSpace(first)
}
