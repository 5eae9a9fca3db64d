// Package backup serializes the full board state, configuration values
// plus every stored audio record, into a single portable zip archive and
// restores such archives.
package backup

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/voiceboard-ai/voiceboard/internal/audioio"
	"github.com/voiceboard-ai/voiceboard/internal/audiostore"
	"github.com/voiceboard-ai/voiceboard/internal/config/store"
)

// FormatVersion is written into every manifest. Bump on incompatible
// archive layout changes.
const FormatVersion = "1.0"

var (
	// ErrMissingManifest indicates the archive has no manifest.json.
	ErrMissingManifest = errors.New("backup: archive has no manifest")
	// ErrInvalidManifest indicates the manifest is unreadable or carries
	// no version.
	ErrInvalidManifest = errors.New("backup: invalid manifest")
)

// Manifest describes an archive.
type Manifest struct {
	Version     string `json:"version"`
	ExportDate  string `json:"exportDate"`
	AppVersion  string `json:"appVersion"`
	Description string `json:"description"`
}

// ConfigStore is the slice of the configuration store the codec uses.
// Satisfied by *store.Store.
type ConfigStore interface {
	GetValue(ctx context.Context, name string) ([]byte, error)
	SetValue(ctx context.Context, name string, value []byte) error
}

// AudioStore is the slice of the audio object store the codec uses.
// Satisfied by *audiostore.Store.
type AudioStore interface {
	ListAll(ctx context.Context) ([]audiostore.Record, error)
	StoreAt(ctx context.Context, id string, blob []byte, meta audiostore.Metadata, ts time.Time) (string, error)
	ClearAll(ctx context.Context) error
}

// Option configures the Codec.
type Option func(*Codec)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAppVersion records the producing application version in manifests.
func WithAppVersion(version string) Option {
	return func(c *Codec) {
		if version != "" {
			c.appVersion = version
		}
	}
}

// Codec exports and imports backup archives.
type Codec struct {
	config     ConfigStore
	audio      AudioStore
	logger     *log.Logger
	appVersion string
}

// New constructs a codec over the two stores.
func New(config ConfigStore, audio AudioStore, opts ...Option) *Codec {
	c := &Codec{
		config:     config,
		audio:      audio,
		logger:     log.Default(),
		appVersion: "dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// configEntries maps archive member names to configuration value names.
// Each member is independently optional on import.
var configEntries = []struct {
	file string
	key  string
}{
	{"settings.json", store.KeySettings},
	{"gridData.json", store.KeyGridData},
	{"categoryNames.json", store.KeyCategoryNames},
	{"customizations.json", store.KeyCustomizations},
}

// ExportResult summarises a produced archive.
type ExportResult struct {
	FileName   string `json:"fileName"`
	AudioCount int    `json:"audioCount"`
	ByteSize   int64  `json:"byteSize"`
}

// FileName returns the suggested archive name for an export happening now.
func FileName(now time.Time) string {
	return "voiceboard-backup-" + now.Format("2006-01-02") + ".zip"
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Export writes a complete archive to w. An empty audio store produces a
// valid archive with zero audio entries.
func (c *Codec) Export(ctx context.Context, w io.Writer, description string) (ExportResult, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	now := time.Now().UTC()
	manifest := Manifest{
		Version:     FormatVersion,
		ExportDate:  now.Format(time.RFC3339),
		AppVersion:  c.appVersion,
		Description: description,
	}
	if err := writeJSON(zw, "manifest.json", manifest); err != nil {
		return ExportResult{}, err
	}

	for _, entry := range configEntries {
		value, err := c.config.GetValue(ctx, entry.key)
		if err != nil {
			if !store.IsNotFound(err) {
				return ExportResult{}, fmt.Errorf("backup: read %s: %w", entry.key, err)
			}
			value = []byte("null")
		}
		if err := writeRaw(zw, entry.file, value); err != nil {
			return ExportResult{}, err
		}
	}

	records, err := c.audio.ListAll(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("backup: list audio records: %w", err)
	}
	for _, rec := range records {
		ext := audioio.Extension(rec.Blob)
		if err := writeRaw(zw, "audio/"+rec.ID+"."+ext, rec.Blob); err != nil {
			return ExportResult{}, err
		}
		if err := writeJSON(zw, "audio/"+rec.ID+".json", recordSidecar(rec)); err != nil {
			return ExportResult{}, err
		}
	}

	if err := zw.Close(); err != nil {
		return ExportResult{}, fmt.Errorf("backup: finalize archive: %w", err)
	}

	return ExportResult{
		FileName:   FileName(now),
		AudioCount: len(records),
		ByteSize:   cw.n,
	}, nil
}

// sidecar is the metadata file written next to each audio blob.
type sidecar struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Category  string  `json:"category,omitempty"`
	Label     string  `json:"label"`
	Content   string  `json:"content"`
	AudioTag  string  `json:"audioTag"`
	Timestamp int64   `json:"timestamp"`
	Size      int64   `json:"size"`
	Duration  float64 `json:"duration"`
}

func recordSidecar(rec audiostore.Record) sidecar {
	return sidecar{
		ID:        rec.ID,
		Type:      rec.Metadata.Type,
		Category:  rec.Metadata.Category,
		Label:     rec.Metadata.Label,
		Content:   rec.Metadata.Content,
		AudioTag:  rec.Metadata.AudioTag,
		Timestamp: rec.Timestamp.UnixMilli(),
		Size:      rec.Size,
		Duration:  rec.Metadata.Duration,
	}
}

// ImportOptions control restore behaviour.
type ImportOptions struct {
	// ReplaceExisting clears the audio store before inserting.
	ReplaceExisting bool
}

// ImportResult summarises a restore.
type ImportResult struct {
	Manifest               Manifest `json:"manifest"`
	AudioCount             int      `json:"audioCount"`
	SettingsRestored       bool     `json:"settingsRestored"`
	GridDataRestored       bool     `json:"gridDataRestored"`
	CategoryNamesRestored  bool     `json:"categoryNamesRestored"`
	CustomizationsRestored bool     `json:"customizationsRestored"`
}

// Import restores an archive. The manifest is validated before anything is
// mutated; after that each configuration value and each audio entry is
// restored independently, so one corrupt member never sinks the rest.
func (c *Codec) Import(ctx context.Context, r io.ReaderAt, size int64, opts ImportOptions) (ImportResult, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return ImportResult{}, fmt.Errorf("backup: open archive: %w", err)
	}

	manifest, err := readManifest(zr)
	if err != nil {
		return ImportResult{}, err
	}
	result := ImportResult{Manifest: manifest}

	if opts.ReplaceExisting {
		if err := c.audio.ClearAll(ctx); err != nil {
			return ImportResult{}, fmt.Errorf("backup: clear audio store: %w", err)
		}
	}

	for _, entry := range configEntries {
		restored := c.restoreConfigValue(ctx, zr, entry.file, entry.key)
		switch entry.key {
		case store.KeySettings:
			result.SettingsRestored = restored
		case store.KeyGridData:
			result.GridDataRestored = restored
		case store.KeyCategoryNames:
			result.CategoryNamesRestored = restored
		case store.KeyCustomizations:
			result.CustomizationsRestored = restored
		}
	}

	result.AudioCount = c.restoreAudio(ctx, zr)
	return result, nil
}

func readManifest(zr *zip.Reader) (Manifest, error) {
	raw, err := readMember(zr, "manifest.json")
	if err != nil {
		return Manifest{}, ErrMissingManifest
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if manifest.Version == "" {
		return Manifest{}, fmt.Errorf("%w: missing version", ErrInvalidManifest)
	}
	return manifest, nil
}

// restoreConfigValue writes one configuration member back into the config
// store. Missing, null and corrupt members are skipped.
func (c *Codec) restoreConfigValue(ctx context.Context, zr *zip.Reader, file, key string) bool {
	raw, err := readMember(zr, file)
	if err != nil {
		c.logger.Printf("[Backup] %s absent, skipping", file)
		return false
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		c.logger.Printf("[Backup] %s empty, skipping", file)
		return false
	}
	if err := c.config.SetValue(ctx, key, raw); err != nil {
		c.logger.Printf("[Backup] restore %s failed: %v", key, err)
		return false
	}
	return true
}

// restoreAudio inserts every audio blob found under audio/. A blob with no
// metadata sidecar restores with empty metadata; a corrupt sidecar is
// treated the same way.
func (c *Codec) restoreAudio(ctx context.Context, zr *zip.Reader) int {
	sidecars := make(map[string]sidecar)
	var blobs []*zip.File

	for _, f := range zr.File {
		dir, name := path.Split(f.Name)
		if dir != "audio/" {
			continue
		}
		if strings.HasSuffix(name, ".json") {
			raw, err := readFile(f)
			if err != nil {
				c.logger.Printf("[Backup] unreadable sidecar %s: %v", f.Name, err)
				continue
			}
			var sc sidecar
			if err := json.Unmarshal(raw, &sc); err != nil {
				c.logger.Printf("[Backup] corrupt sidecar %s: %v", f.Name, err)
				continue
			}
			sidecars[strings.TrimSuffix(name, ".json")] = sc
			continue
		}
		blobs = append(blobs, f)
	}

	restored := 0
	for _, f := range blobs {
		_, name := path.Split(f.Name)
		id := strings.TrimSuffix(name, path.Ext(name))
		if id == "" {
			continue
		}
		blob, err := readFile(f)
		if err != nil {
			c.logger.Printf("[Backup] unreadable audio entry %s: %v", f.Name, err)
			continue
		}

		sc := sidecars[id]
		meta := audiostore.Metadata{
			Type:     sc.Type,
			Category: sc.Category,
			Label:    sc.Label,
			Content:  sc.Content,
			AudioTag: sc.AudioTag,
			Duration: sc.Duration,
		}
		ts := time.UnixMilli(sc.Timestamp)
		if sc.Timestamp == 0 {
			ts = time.Now().UTC()
		}
		if _, err := c.audio.StoreAt(ctx, id, blob, meta, ts); err != nil {
			c.logger.Printf("[Backup] restore audio %s failed: %v", id, err)
			continue
		}
		restored++
	}
	return restored
}

func readMember(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return readFile(f)
		}
	}
	return nil, fmt.Errorf("backup: member %s not found", name)
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeJSON(zw *zip.Writer, name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: encode %s: %w", name, err)
	}
	return writeRaw(zw, name, raw)
}

func writeRaw(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("backup: create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("backup: write %s: %w", name, err)
	}
	return nil
}
