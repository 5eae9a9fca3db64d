package audiostore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audio.db")
	s, err := Open(Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreFetchRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	blob := []byte("mp3-bytes")
	meta := Metadata{Type: "music", Category: "fun", Label: "Jazz", Content: "smooth jazz", Duration: 30}

	id, err := s.Store(ctx, "button_1", blob, meta)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if id != "button_1" {
		t.Fatalf("store returned id %q", id)
	}

	rec, err := s.Fetch(ctx, "button_1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(rec.Blob, blob) {
		t.Fatalf("blob mismatch: %q", rec.Blob)
	}
	if rec.Metadata != meta {
		t.Fatalf("metadata mismatch: %+v", rec.Metadata)
	}
	if rec.Size != int64(len(blob)) {
		t.Fatalf("size = %d, want %d", rec.Size, len(blob))
	}
	if rec.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestStoreOverwritesSameID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Store(ctx, "button_7", []byte("first"), Metadata{Type: "music"}); err != nil {
		t.Fatalf("first store: %v", err)
	}
	if _, err := s.Store(ctx, "button_7", []byte("second"), Metadata{Type: "sound_effect"}); err != nil {
		t.Fatalf("second store: %v", err)
	}

	records, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
	if string(records[0].Blob) != "second" || records[0].Metadata.Type != "sound_effect" {
		t.Fatalf("overwrite did not win: %+v", records[0])
	}
}

func TestFetchMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Fetch(context.Background(), "button_absent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	exists, err := s.Exists(context.Background(), "button_absent")
	if err != nil || exists {
		t.Fatalf("exists = %v (err %v), want false", exists, err)
	}
}

func TestDeleteWhereType(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, m := range []Metadata{
		{Type: "speech"}, {Type: "speech"}, {Type: "speech"},
		{Type: "music"}, {Type: "sound_effect"},
	} {
		if _, err := s.Store(ctx, "button_"+string(rune('a'+i)), []byte("x"), m); err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
	}

	count, err := s.DeleteWhereType(ctx, "speech")
	if err != nil {
		t.Fatalf("delete where: %v", err)
	}
	if count != 3 {
		t.Fatalf("removed %d records, want 3", count)
	}

	records, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 surviving records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Metadata.Type == "speech" {
			t.Fatalf("speech record survived sweep: %+v", rec)
		}
	}

	// Sweeping again with no matches is a no-op, not an error.
	count, err = s.DeleteWhereType(ctx, "speech")
	if err != nil || count != 0 {
		t.Fatalf("second sweep: count=%d err=%v", count, err)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Store(ctx, "button_1", []byte("aaaa"), Metadata{Type: "music", Category: "fun"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := s.Store(ctx, "button_2", []byte("bb"), Metadata{Type: "music", Category: "basic"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := s.Store(ctx, "button_3", []byte("c"), Metadata{Type: "sound_effect", Category: "fun"}); err != nil {
		t.Fatalf("store: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalFiles != 3 || stats.TotalSize != 7 {
		t.Fatalf("totals = %d files / %d bytes, want 3 / 7", stats.TotalFiles, stats.TotalSize)
	}
	if got := stats.ByType["music"]; got.Count != 2 || got.Size != 6 {
		t.Fatalf("music stats = %+v", got)
	}
	if got := stats.ByCategory["fun"]; got.Count != 2 || got.Size != 5 {
		t.Fatalf("fun category stats = %+v", got)
	}
}

func TestClearAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Store(ctx, "button_1", []byte("x"), Metadata{}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("clear all: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalFiles != 0 {
		t.Fatalf("expected empty store, got %d files", stats.TotalFiles)
	}
}

func TestStoreAtPreservesTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.UnixMilli(1700000000000)
	if _, err := s.StoreAt(ctx, "button_1", []byte("x"), Metadata{Type: "music"}, ts); err != nil {
		t.Fatalf("store at: %v", err)
	}

	rec, err := s.Fetch(ctx, "button_1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !rec.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %v, want %v", rec.Timestamp, ts)
	}
}

func TestStoreDefaultsMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Store(ctx, "button_1", []byte("x"), Metadata{}); err != nil {
		t.Fatalf("store: %v", err)
	}
	rec, err := s.Fetch(ctx, "button_1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.Metadata.Type != "speech" || rec.Metadata.Category != "basic" || rec.Metadata.Label != "Unnamed Audio" {
		t.Fatalf("defaults not applied: %+v", rec.Metadata)
	}
}
