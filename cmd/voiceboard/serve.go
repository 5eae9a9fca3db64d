package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voiceboard-ai/voiceboard/internal/audio"
	"github.com/voiceboard-ai/voiceboard/internal/audiostore"
	"github.com/voiceboard-ai/voiceboard/internal/backup"
	"github.com/voiceboard-ai/voiceboard/internal/config"
	"github.com/voiceboard-ai/voiceboard/internal/config/store"
	"github.com/voiceboard-ai/voiceboard/internal/elevenlabs"
	"github.com/voiceboard-ai/voiceboard/internal/events"
	"github.com/voiceboard-ai/voiceboard/internal/playback"
	"github.com/voiceboard-ai/voiceboard/internal/server"
	boardversion "github.com/voiceboard-ai/voiceboard/internal/version"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the voiceboard daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	cmd.Flags().String("listen", "", "Listen address (defaults to --addr)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.Default()

	addr, _ := cmd.Flags().GetString("listen")
	if addr == "" {
		addr, _ = cmd.Flags().GetString("addr")
	}

	paths, err := config.EnsureDirs()
	if err != nil {
		return err
	}

	cfg, err := store.Open(store.Options{DBPath: paths.ConfigDB})
	if err != nil {
		return err
	}
	defer cfg.Close()

	audioDB, err := audiostore.Open(audiostore.Options{DBPath: paths.AudioDB})
	if err != nil {
		return err
	}
	defer audioDB.Close()

	bus := events.New(events.WithLogger(logger))
	defer bus.Shutdown()

	gen := &keyedGenerator{settings: cfg}
	player := playback.New(bus, playback.WithLogger(logger))
	engine := audio.New(gen, audioDB, cfg, player, bus, audio.WithLogger(logger))
	codec := backup.New(cfg, audioDB, backup.WithLogger(logger), backup.WithAppVersion(boardversion.String()))

	api := server.New(server.Options{
		Config:  cfg,
		Audio:   audioDB,
		Engine:  engine,
		Player:  player,
		Codec:   codec,
		Voices:  gen,
		Bus:     bus,
		Logger:  logger,
		Version: boardversion.String(),
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("[Daemon] voiceboard %s listening on %s (home %s)", boardversion.String(), addr, paths.Home)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Printf("[Daemon] shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("[Daemon] shutdown: %v", err)
	}

	// Let fire-and-forget cache writes land before closing the stores.
	engine.Flush()
	return nil
}

// keyedGenerator adapts the remote client to the engine, rebuilding it
// whenever the configured API key changes so key edits take effect
// without a daemon restart.
type keyedGenerator struct {
	settings *store.Store

	mu     sync.Mutex
	key    string
	client *elevenlabs.Client
}

func (g *keyedGenerator) get(ctx context.Context) (*elevenlabs.Client, error) {
	settings, err := g.settings.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil || g.key != settings.APIKey {
		g.key = settings.APIKey
		g.client = elevenlabs.NewClient(settings.APIKey, nil)
	}
	return g.client, nil
}

func (g *keyedGenerator) TextToSpeech(ctx context.Context, text, voiceID, quality string) ([]byte, error) {
	c, err := g.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.TextToSpeech(ctx, text, voiceID, quality)
}

func (g *keyedGenerator) SoundEffect(ctx context.Context, description string, opts elevenlabs.SoundEffectOptions) ([]byte, error) {
	c, err := g.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.SoundEffect(ctx, description, opts)
}

func (g *keyedGenerator) Music(ctx context.Context, description string, opts elevenlabs.MusicOptions) ([]byte, error) {
	c, err := g.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.Music(ctx, description, opts)
}

func (g *keyedGenerator) SearchVoices(ctx context.Context, query string, opts elevenlabs.VoiceSearchOptions) ([]elevenlabs.Voice, error) {
	c, err := g.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.SearchVoices(ctx, query, opts)
}
