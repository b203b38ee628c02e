package pose

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dancebreak/internal/services"
)

func TestHTTPEstimatorDownscalesAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		img, err := jpeg.Decode(r.Body)
		if err != nil {
			t.Errorf("decode upload: %v", err)
		}
		if img != nil && img.Bounds().Dx() != 64 {
			t.Errorf("expected downscaled width 64, got %d", img.Bounds().Dx())
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"landmarks":[{"name":"nose","x":0.5,"y":0.1,"confidence":0.9},{"index":16,"x":0.7,"y":0.8,"confidence":0.6}]}`))
	}))
	defer srv.Close()

	est := NewHTTPEstimator(srv.URL, time.Second, 64, 80)
	landmarks, err := est.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 256, 128)))
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(landmarks) != 2 || landmarks[0].Name != "nose" || landmarks[1].Index == nil || *landmarks[1].Index != 16 {
		t.Fatalf("unexpected landmarks %+v", landmarks)
	}
	kps := MapLandmarks(landmarks, 0)
	if len(kps) != 2 || kps[1].Type != RightAnkle {
		t.Fatalf("unexpected mapped keypoints %+v", kps)
	}
}

func TestHTTPEstimatorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	est := NewHTTPEstimator(srv.URL, time.Second, 0, 0)
	if _, err := est.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8))); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if err := NewHTTPEstimator("", time.Second, 0, 0).HealthCheck(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
