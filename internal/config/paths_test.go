package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetPathsHonoursHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	paths := GetPaths()
	if paths.Home != dir {
		t.Fatalf("home = %q, want %q", paths.Home, dir)
	}
	if paths.ConfigDB != filepath.Join(dir, "config.db") {
		t.Fatalf("config db path = %q", paths.ConfigDB)
	}
	if paths.AudioDB != filepath.Join(dir, "audio.db") {
		t.Fatalf("audio db path = %q", paths.AudioDB)
	}
}

func TestEnsureDirsCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, filepath.Join(dir, "nested", "home"))

	paths, err := EnsureDirs()
	if err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	for _, p := range []string{paths.Home, paths.Logs, paths.TempDir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist (err=%v)", p, err)
		}
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath(""); got != "" {
		t.Fatalf("empty path expanded to %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Fatalf("absolute path changed: %q", got)
	}
	if got := ExpandPath("~/data"); got == "~/data" || got == "" {
		t.Fatalf("tilde path not expanded: %q", got)
	}
}
