// Package audiostore persists generated audio blobs with their metadata,
// keyed by the deterministic id derived from a button's identity. It is the
// cache the audio engine populates and the backup codec snapshots.
package audiostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voiceboard-ai/voiceboard/internal/config"
)

const defaultBusyTimeout = 5 * time.Second

// ErrNotFound indicates no record exists for the requested id.
var ErrNotFound = errors.New("audiostore: record not found")

// Metadata is the denormalized button state captured when a record is
// stored. It is not re-validated against the live button on read.
type Metadata struct {
	Type     string  `json:"type"`
	Category string  `json:"category"`
	Label    string  `json:"label"`
	Content  string  `json:"content"`
	AudioTag string  `json:"audioTag"`
	Duration float64 `json:"duration"`
}

// Record is one persisted audio entry.
type Record struct {
	ID        string
	Blob      []byte
	Metadata  Metadata
	Timestamp time.Time
	Size      int64
}

// TypeStats aggregates count and byte size for one grouping key.
type TypeStats struct {
	Count int   `json:"count"`
	Size  int64 `json:"size"`
}

// Stats summarises store contents.
type Stats struct {
	TotalFiles int                  `json:"totalFiles"`
	TotalSize  int64                `json:"totalSize"`
	ByType     map[string]TypeStats `json:"byType"`
	ByCategory map[string]TypeStats `json:"byCategory"`
}

// Options describes parameters for opening an audio store.
type Options struct {
	DBPath string // Optional override for audio.db path (primarily for tests)
}

// Store provides access to the audio object database.
type Store struct {
	db *sql.DB
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audio_records (
		id TEXT PRIMARY KEY,
		blob BLOB NOT NULL,
		type TEXT NOT NULL DEFAULT 'speech',
		category TEXT NOT NULL DEFAULT 'basic',
		label TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		audio_tag TEXT NOT NULL DEFAULT '',
		duration REAL NOT NULL DEFAULT 0,
		size INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audio_records_type ON audio_records(type)`,
	`CREATE INDEX IF NOT EXISTS idx_audio_records_category ON audio_records(category)`,
}

// Open initialises the audio object store.
func Open(opts Options) (*Store, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		paths, err := config.EnsureDirs()
		if err != nil {
			return nil, fmt.Errorf("audiostore: ensure directories: %w", err)
		}
		dbPath = paths.AudioDB
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("audiostore: open sqlite store: %w", err)
	}

	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", int(defaultBusyTimeout.Milliseconds())),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("audiostore: apply pragma %q: %w", pragma, err)
		}
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("audiostore: apply schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Store upserts a record under id, overwriting any existing record with the
// same id. Missing metadata fields receive the historical defaults.
func (s *Store) Store(ctx context.Context, id string, blob []byte, meta Metadata) (string, error) {
	if s == nil || s.db == nil {
		return "", sql.ErrConnDone
	}
	if id == "" {
		return "", fmt.Errorf("audiostore: store: empty id")
	}

	if meta.Type == "" {
		meta.Type = "speech"
	}
	if meta.Category == "" {
		meta.Category = "basic"
	}
	if meta.Label == "" {
		meta.Label = "Unnamed Audio"
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO audio_records (id, blob, type, category, label, content, audio_tag, duration, size, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            blob = excluded.blob,
            type = excluded.type,
            category = excluded.category,
            label = excluded.label,
            content = excluded.content,
            audio_tag = excluded.audio_tag,
            duration = excluded.duration,
            size = excluded.size,
            created_at = excluded.created_at
    `, id, blob, meta.Type, meta.Category, meta.Label, meta.Content, meta.AudioTag,
		meta.Duration, int64(len(blob)), time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("audiostore: store %q: %w", id, err)
	}
	return id, nil
}

// StoreAt behaves like Store but keeps the supplied timestamp; the backup
// codec uses it to preserve creation times across an export/import cycle.
func (s *Store) StoreAt(ctx context.Context, id string, blob []byte, meta Metadata, ts time.Time) (string, error) {
	if _, err := s.Store(ctx, id, blob, meta); err != nil {
		return "", err
	}
	if ts.IsZero() {
		return id, nil
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE audio_records SET created_at = ? WHERE id = ?`, ts.UnixMilli(), id); err != nil {
		return "", fmt.Errorf("audiostore: restamp %q: %w", id, err)
	}
	return id, nil
}

const recordColumns = `id, blob, type, category, label, content, audio_tag, duration, size, created_at`

func scanRecord(scanner interface{ Scan(...any) error }) (Record, error) {
	var (
		rec       Record
		createdAt int64
	)
	err := scanner.Scan(
		&rec.ID,
		&rec.Blob,
		&rec.Metadata.Type,
		&rec.Metadata.Category,
		&rec.Metadata.Label,
		&rec.Metadata.Content,
		&rec.Metadata.AudioTag,
		&rec.Metadata.Duration,
		&rec.Size,
		&createdAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Timestamp = time.UnixMilli(createdAt)
	return rec, nil
}

// Fetch returns the record stored under id, or ErrNotFound.
func (s *Store) Fetch(ctx context.Context, id string) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, sql.ErrConnDone
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM audio_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	switch {
	case err == sql.ErrNoRows:
		return Record{}, ErrNotFound
	case err != nil:
		return Record{}, fmt.Errorf("audiostore: fetch %q: %w", id, err)
	default:
		return rec, nil
	}
}

// Exists reports whether a record is stored under id.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, sql.ErrConnDone
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM audio_records WHERE id = ?`, id).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("audiostore: exists %q: %w", id, err)
	default:
		return true, nil
	}
}

// Delete removes the record stored under id. Deleting an absent record is
// not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return sql.ErrConnDone
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM audio_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("audiostore: delete %q: %w", id, err)
	}
	return nil
}

// DeleteWhereType removes every record with the given denormalized type and
// returns the number removed. A single statement keeps the sweep atomic with
// respect to concurrent stores on unrelated ids.
func (s *Store) DeleteWhereType(ctx context.Context, audioType string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, sql.ErrConnDone
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM audio_records WHERE type = ?`, audioType)
	if err != nil {
		return 0, fmt.Errorf("audiostore: delete by type %q: %w", audioType, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audiostore: delete by type %q: rows affected: %w", audioType, err)
	}
	return count, nil
}

// ListAll returns every stored record including blobs, ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, sql.ErrConnDone
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM audio_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("audiostore: list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("audiostore: scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audiostore: iterate records: %w", err)
	}
	return records, nil
}

// Stats aggregates file counts and sizes, grouped by type and category.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.db == nil {
		return Stats{}, sql.ErrConnDone
	}

	stats := Stats{
		ByType:     make(map[string]TypeStats),
		ByCategory: make(map[string]TypeStats),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, category, size FROM audio_records`)
	if err != nil {
		return Stats{}, fmt.Errorf("audiostore: stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			audioType string
			category  string
			size      int64
		)
		if err := rows.Scan(&audioType, &category, &size); err != nil {
			return Stats{}, fmt.Errorf("audiostore: scan stats row: %w", err)
		}

		stats.TotalFiles++
		stats.TotalSize += size

		byType := stats.ByType[audioType]
		byType.Count++
		byType.Size += size
		stats.ByType[audioType] = byType

		byCategory := stats.ByCategory[category]
		byCategory.Count++
		byCategory.Size += size
		stats.ByCategory[category] = byCategory
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("audiostore: iterate stats rows: %w", err)
	}
	return stats, nil
}

// ClearAll removes every record.
func (s *Store) ClearAll(ctx context.Context) error {
	if s == nil || s.db == nil {
		return sql.ErrConnDone
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM audio_records`); err != nil {
		return fmt.Errorf("audiostore: clear all: %w", err)
	}
	return nil
}
