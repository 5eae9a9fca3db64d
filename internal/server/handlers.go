package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voiceboard-ai/voiceboard/internal/audioio"
	"github.com/voiceboard-ai/voiceboard/internal/backup"
	"github.com/voiceboard-ai/voiceboard/internal/board"
	"github.com/voiceboard-ai/voiceboard/internal/config/store"
	"github.com/voiceboard-ai/voiceboard/internal/elevenlabs"
	"github.com/voiceboard-ai/voiceboard/internal/events"
)

const maxImportSize = 512 << 20

func (s *Server) configKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	key, ok := configNames[name]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown config value %q", name))
		return "", false
	}
	return key, true
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	key, ok := s.configKey(w, r)
	if !ok {
		return
	}
	value, err := s.config.GetValue(r.Context(), key)
	if err != nil {
		if store.IsNotFound(err) {
			s.writeJSON(w, http.StatusOK, nil)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(value)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	key, ok := s.configKey(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.config.SetValue(r.Context(), key, body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if key == store.KeySettings {
		s.bus.Publish(events.TopicSettingsChanged, nil)
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	key, ok := s.configKey(w, r)
	if !ok {
		return
	}
	if err := s.config.RemoveValue(r.Context(), key); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// activateRequest activates an ad hoc button payload, typically a not yet
// saved button being previewed from the editor.
type activateRequest struct {
	Button   board.Button `json:"button"`
	Category string       `json:"category"`
	Preview  bool         `json:"preview"`
}

type activateResponse struct {
	FromCache bool   `json:"fromCache"`
	Audio     string `json:"audio,omitempty"` // base64, present when synthesized fresh
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Button.ID == "" || !req.Button.Type.Valid() {
		s.writeError(w, http.StatusBadRequest, errors.New("button id and valid type required"))
		return
	}
	s.activate(w, r, req.Button, req.Category, req.Preview)
}

func (s *Server) handleActivateByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	grid, err := s.config.LoadGridData(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	btn, category, ok := grid.FindButton(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("button %q not found", id))
		return
	}
	preview := r.URL.Query().Get("preview") == "true"
	s.activate(w, r, btn, category, preview)
}

func (s *Server) activate(w http.ResponseWriter, r *http.Request, btn board.Button, category string, preview bool) {
	result, err := s.engine.Activate(r.Context(), btn, category, preview)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	resp := activateResponse{FromCache: result.FromCache}
	if len(result.Audio) > 0 {
		resp.Audio = base64.StdEncoding.EncodeToString(result.Audio)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type saveRequest struct {
	Button   board.Button `json:"button"`
	Category string       `json:"category"`
	Audio    string       `json:"audio,omitempty"` // base64 preview blob, optional
}

func (s *Server) handleSaveButton(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Button.ID == "" {
		req.Button.ID = id
	}
	if req.Button.ID != id {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("button id %q does not match path id %q", req.Button.ID, id))
		return
	}
	if !req.Button.Type.Valid() {
		s.writeError(w, http.StatusBadRequest, errors.New("valid button type required"))
		return
	}

	var pregenerated []byte
	if req.Audio != "" {
		blob, err := base64.StdEncoding.DecodeString(req.Audio)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode audio: %w", err))
			return
		}
		pregenerated = blob
	}

	if err := s.engine.SaveForButton(r.Context(), req.Button, req.Category, pregenerated); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.audio.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// recordSummary is a listing entry without the blob payload.
type recordSummary struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Category  string  `json:"category"`
	Label     string  `json:"label"`
	Size      int64   `json:"size"`
	Duration  float64 `json:"duration"`
	Timestamp int64   `json:"timestamp"`
}

func (s *Server) handleCacheRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.audio.ListAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	summaries := make([]recordSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, recordSummary{
			ID:        rec.ID,
			Type:      rec.Metadata.Type,
			Category:  rec.Metadata.Category,
			Label:     rec.Metadata.Label,
			Size:      rec.Size,
			Duration:  rec.Metadata.Duration,
			Timestamp: rec.Timestamp.UnixMilli(),
		})
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleCacheAudio(w http.ResponseWriter, r *http.Request) {
	rec, err := s.audio.Fetch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", audioio.MIMEType(rec.Blob))
	w.Write(rec.Blob)
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.audio.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.InvalidateStaleCache(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.audio.ClearAll(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.bus.Publish(events.TopicCacheChanged, events.CacheChange{Op: "cleared"})
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	fileName := backup.FileName(time.Now().UTC())
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)

	if _, err := s.codec.Export(r.Context(), w, r.URL.Query().Get("description")); err != nil {
		// Headers are already gone; all we can do is log and cut off.
		s.logger.Printf("[Server] export failed mid-stream: %v", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	file, header, err := r.FormFile("archive")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("archive file required"))
		return
	}
	defer file.Close()

	replace := r.FormValue("replaceExisting") == "true"
	result, err := s.codec.Import(r.Context(), file, header.Size, backup.ImportOptions{ReplaceExisting: replace})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	voices, err := s.voices.SearchVoices(r.Context(), q.Get("query"), elevenlabs.VoiceSearchOptions{
		Category: q.Get("category"),
		Language: q.Get("language"),
		Accent:   q.Get("accent"),
		Age:      q.Get("age"),
		Gender:   q.Get("gender"),
		UseCase:  q.Get("useCase"),
	})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, voices)
}
