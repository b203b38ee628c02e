package objectstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dancebreak/internal/services"
)

func TestPlayableKey(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	// md5("abc") starts with 90015098
	got := PlayableKey("dance-breakdowns", "User 1", "abc", now)
	if got != "dance-breakdowns/user_1/20240305_140709_90015098.mp4" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := PlayableKey("", "", "abc", now); got != "anonymous/20240305_140709_90015098.mp4" {
		t.Fatalf("unexpected anonymous key %q", got)
	}
}

func TestFilesystemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewFilesystemStore(root, "media", "https://cdn.example.com/")
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	store.now = func() time.Time { return time.Unix(1000, 0) }

	src := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(src, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}
	url, err := store.Upload(ctx, src, "dance-breakdowns/u/clip.mp4")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example.com/dance-breakdowns/u/clip.mp4" {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := os.Stat(filepath.Join(root, "media", "dance-breakdowns", "u", "clip.mp4")); err != nil {
		t.Fatalf("expected object on disk: %v", err)
	}

	presigned, err := store.PresignedURL(ctx, "dance-breakdowns/u/clip.mp4", time.Hour)
	if err != nil {
		t.Fatalf("PresignedURL: %v", err)
	}
	if !strings.HasSuffix(presigned, "?expires=4600") {
		t.Fatalf("unexpected presigned url %q", presigned)
	}

	dst := filepath.Join(t.TempDir(), "out.mp4")
	if err := store.Download(ctx, "dance-breakdowns/u/clip.mp4", dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "frames" {
		t.Fatalf("unexpected download content %q err=%v", data, err)
	}

	if err := store.Delete(ctx, "dance-breakdowns/u/clip.mp4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Download(ctx, "dance-breakdowns/u/clip.mp4", dst); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestFilesystemStoreKeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root, "", "")
	if err != nil {
		t.Fatal(err)
	}
	p, err := store.objectPath("../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p, root) {
		t.Fatalf("object path escaped root: %q", p)
	}
	if _, err := store.objectPath(""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty key, got %v", err)
	}
}

func TestFilesystemStoreFileURLWithoutPublicBase(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "a.mp4")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	url, err := store.Upload(ctx, src, "a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "file:///") {
		t.Fatalf("expected file url, got %q", url)
	}
}
