// Package server exposes the daemon's HTTP API: configuration CRUD,
// button activation, cache management, backup transfer, voice search and
// the websocket playback channel.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voiceboard-ai/voiceboard/internal/audio"
	"github.com/voiceboard-ai/voiceboard/internal/audiostore"
	"github.com/voiceboard-ai/voiceboard/internal/backup"
	"github.com/voiceboard-ai/voiceboard/internal/config/store"
	"github.com/voiceboard-ai/voiceboard/internal/elevenlabs"
	"github.com/voiceboard-ai/voiceboard/internal/events"
	"github.com/voiceboard-ai/voiceboard/internal/playback"
)

// configNames are the configuration values the API exposes. Anything else
// is rejected so the flat namespace stays closed.
var configNames = map[string]string{
	"settings":       store.KeySettings,
	"gridData":       store.KeyGridData,
	"categoryNames":  store.KeyCategoryNames,
	"customizations": store.KeyCustomizations,
}

// VoiceCatalog searches the remote voice catalog. Satisfied by
// *elevenlabs.Client.
type VoiceCatalog interface {
	SearchVoices(ctx context.Context, query string, opts elevenlabs.VoiceSearchOptions) ([]elevenlabs.Voice, error)
}

// Options carries the server's collaborators.
type Options struct {
	Config  *store.Store
	Audio   *audiostore.Store
	Engine  *audio.Engine
	Player  *playback.Player
	Codec   *backup.Codec
	Voices  VoiceCatalog
	Bus     *events.Bus
	Logger  *log.Logger
	Version string
}

// Server handles the daemon API.
type Server struct {
	config  *store.Store
	audio   *audiostore.Store
	engine  *audio.Engine
	player  *playback.Player
	codec   *backup.Codec
	voices  VoiceCatalog
	bus     *events.Bus
	logger  *log.Logger
	version string
}

// New constructs the server and its router.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		config:  opts.Config,
		audio:   opts.Audio,
		engine:  opts.Engine,
		player:  opts.Player,
		codec:   opts.Codec,
		voices:  opts.Voices,
		bus:     opts.Bus,
		logger:  logger,
		version: opts.Version,
	}
}

// Router builds the chi handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handlePlaybackSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/config/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetConfig)
			r.Put("/", s.handlePutConfig)
			r.Delete("/", s.handleDeleteConfig)
		})

		r.Post("/activate", s.handleActivate)
		r.Post("/buttons/{id}/activate", s.handleActivateByID)
		r.Post("/buttons/{id}/save", s.handleSaveButton)
		r.Post("/playback/stop", s.handleStop)

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.handleCacheStats)
			r.Get("/records", s.handleCacheRecords)
			r.Get("/records/{id}/audio", s.handleCacheAudio)
			r.Delete("/records/{id}", s.handleCacheDelete)
			r.Post("/sweep", s.handleCacheSweep)
			r.Delete("/", s.handleCacheClear)
		})

		r.Get("/backup/export", s.handleExport)
		r.Post("/backup/import", s.handleImport)

		r.Get("/voices", s.handleVoices)
	})

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("[Server] encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain failures onto HTTP statuses.
func statusFor(err error) int {
	var apiErr *elevenlabs.APIError
	switch {
	case errors.Is(err, audio.ErrNotConfigured), errors.Is(err, elevenlabs.ErrNoAPIKey):
		return http.StatusPreconditionFailed
	case errors.Is(err, audio.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, audiostore.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, backup.ErrMissingManifest), errors.Is(err, backup.ErrInvalidManifest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings, err := s.config.LoadSettings(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"version":          s.version,
		"configured":       settings.APIKey != "",
		"playbackAttached": s.player.Connected(),
	})
}
