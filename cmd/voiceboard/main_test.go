package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
)

// newTestRoot builds an isolated root command carrying the persistent
// flags commands expect.
func newTestRoot(children ...*cobra.Command) *cobra.Command {
	root := &cobra.Command{Use: "voiceboard"}
	root.PersistentFlags().Bool("json", false, "")
	root.PersistentFlags().String("addr", defaultAddr, "")
	root.AddCommand(children...)
	return root
}

func TestStatsCommandAgainstDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cache/stats" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"totalFiles":3,"totalSize":42,"byType":{},"byCategory":{}}`))
	}))
	defer srv.Close()

	root := newTestRoot(newStatsCommand())
	root.SetArgs([]string{"stats", "--addr", srv.URL, "--json"})
	var out bytes.Buffer
	root.SetOut(&out)
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestSweepCommandReportsDaemonError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"database locked"}`))
	}))
	defer srv.Close()

	root := newTestRoot(newSweepCommand())
	root.SetArgs([]string{"sweep", "--addr", srv.URL})
	err := root.Execute()
	if err == nil {
		t.Fatal("expected daemon error to propagate")
	}
}

func TestClearRequiresConfirmation(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	root := newTestRoot(newClearCommand())
	root.SetArgs([]string{"clear", "--addr", srv.URL})
	if err := root.Execute(); err == nil {
		t.Fatal("clear without --yes should fail")
	}
	if called {
		t.Fatal("clear without --yes must not hit the daemon")
	}
}

func TestOutputFormatterJSON(t *testing.T) {
	f := &OutputFormatter{jsonMode: true}
	if err := f.Print(map[string]int{"a": 1}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if err := f.Success("done", map[string]interface{}{"n": 2}); err != nil {
		t.Fatalf("success: %v", err)
	}
}

func TestResponseErrorExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad button"})
	}))
	defer srv.Close()

	c := &apiClient{base: srv.URL, http: srv.Client()}
	err := c.getJSON("/whatever", nil)
	if err == nil || err.Error() != "daemon: bad button" {
		t.Fatalf("err = %v", err)
	}
}

func TestSuggestedFileName(t *testing.T) {
	got := suggestedFileName(`attachment; filename="backup.zip"`)
	if got != "backup.zip" {
		t.Fatalf("got %q", got)
	}
	if fallback := suggestedFileName(""); fallback == "" {
		t.Fatal("expected fallback name")
	}
}

func TestTail(t *testing.T) {
	if got := tail("abcdef", 4); got != "cdef" {
		t.Fatalf("tail = %q", got)
	}
	if got := tail("ab", 4); got != "ab" {
		t.Fatalf("tail = %q", got)
	}
}
