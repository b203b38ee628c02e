package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dancebreak/internal/config"
	"dancebreak/internal/services/llm"
	"dancebreak/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", " "); result.Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDiskSpace("disk", dir, 0); !result.Passed {
		t.Fatalf("expected pass with no minimum, got: %s", result.Detail)
	}
	// No test host has an exabyte free.
	result := CheckDiskSpace("disk", dir, 1<<30)
	if result.Passed {
		t.Fatalf("expected failure for huge minimum, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "need") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
	if result := CheckDiskSpace("disk", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func llmServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
}

func TestCheckLLM_OK(t *testing.T) {
	srv := llmServer(t, `{"ok":true}`)
	defer srv.Close()

	result := CheckLLM(context.Background(), "LLM", llm.Config{APIKey: "good-key", BaseURL: srv.URL, Model: "demo"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	srv := llmServer(t, `{"ok":true}`)
	defer srv.Close()

	result := CheckLLM(context.Background(), "LLM", llm.Config{APIKey: "bad-key", BaseURL: srv.URL, Model: "demo"})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "LLM", llm.Config{Model: "demo"})
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCheckRedis_BadURL(t *testing.T) {
	if result := CheckRedis(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for empty url")
	}
	if result := CheckRedis(context.Background(), "not-a-redis-url"); result.Passed {
		t.Fatal("expected failure for malformed url")
	}
}

func TestCheckPose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"landmarks":[]}`))
	}))
	defer srv.Close()

	result := CheckPose(context.Background(), config.Pose{Endpoint: srv.URL, TimeoutSeconds: 2, MaxWidth: 64, JPEGQuality: 80})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckPose(context.Background(), config.Pose{}); result.Passed {
		t.Fatal("expected failure for missing endpoint")
	}
}

func TestCheckPose_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := CheckPose(context.Background(), config.Pose{Endpoint: srv.URL, TimeoutSeconds: 2})
	if result.Passed {
		t.Fatal("expected failure for 500 response")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.MinFreeGiB = 0
	cfg.Pose.Endpoint = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	// state, work and object store directories
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesOptionalServices(t *testing.T) {
	srv := llmServer(t, `{"ok":true}`)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLLMKey("good-key"))
	cfg.Ingest.MinFreeGiB = 0
	cfg.Pose.Endpoint = ""
	cfg.LLM.BaseURL = srv.URL
	cfg.LLM.Model = "demo"
	cfg.Lock.Backend = config.LockBackendRedis
	cfg.Redis.URL = ""

	results := RunAll(context.Background(), cfg)
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	if r, ok := byName["Step LLM"]; !ok || !r.Passed {
		t.Fatalf("expected passing LLM check, got %+v", r)
	}
	if r, ok := byName["Redis lock backend"]; !ok || r.Passed {
		t.Fatalf("expected failing redis check, got %+v", r)
	}
	// Directories were never created.
	if r := byName["State directory"]; r.Passed {
		t.Fatalf("expected missing state dir to fail")
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	statuses := CheckSystemDeps(context.Background(), cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	for _, s := range statuses {
		if !s.Available {
			t.Fatalf("expected %s available: %s", s.Name, s.Detail)
		}
	}
}
