package pose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nfnt/resize"

	"dancebreak/internal/services"
)

// HTTPEstimator posts JPEG frames to a remote pose service.
//
// The service receives the image body with Content-Type image/jpeg and answers
// {"landmarks":[{"name":"left_wrist","x":0.4,"y":0.6,"confidence":0.9}, ...]}.
// An empty list means no person was detected.
type HTTPEstimator struct {
	endpoint   string
	maxWidth   int
	quality    int
	httpClient *http.Client
}

// HTTPOption customizes an HTTPEstimator.
type HTTPOption func(*HTTPEstimator)

// WithEstimatorHTTPClient overrides the HTTP client.
func WithEstimatorHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPEstimator) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// NewHTTPEstimator builds a remote estimator. maxWidth <= 0 disables downscaling.
func NewHTTPEstimator(endpoint string, timeout time.Duration, maxWidth, quality int, opts ...HTTPOption) *HTTPEstimator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	e := &HTTPEstimator{
		endpoint:   strings.TrimSpace(endpoint),
		maxWidth:   maxWidth,
		quality:    quality,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type inferResponse struct {
	Landmarks []Landmark `json:"landmarks"`
	Error     string     `json:"error,omitempty"`
}

// Infer encodes img and returns the detected landmarks.
func (e *HTTPEstimator) Infer(ctx context.Context, img image.Image) ([]Landmark, error) {
	if e.endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "pose", "infer", "pose.endpoint not configured", nil)
	}
	body, err := e.encode(img)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build pose request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pose", "infer", "request failed", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pose", "infer", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrExternalTool, "pose", "infer", fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}
	var decoded inferResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "pose", "infer", "decode response", err)
	}
	if decoded.Error != "" {
		return nil, services.Wrap(services.ErrExternalTool, "pose", "infer", decoded.Error, nil)
	}
	return decoded.Landmarks, nil
}

// HealthCheck posts a blank frame and expects a well-formed answer.
func (e *HTTPEstimator) HealthCheck(ctx context.Context) error {
	_, err := e.Infer(ctx, image.NewRGBA(image.Rect(0, 0, 32, 32)))
	return err
}

func (e *HTTPEstimator) encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, services.Wrap(services.ErrValidation, "pose", "encode", "nil image", nil)
	}
	if e.maxWidth > 0 && img.Bounds().Dx() > e.maxWidth {
		img = resize.Resize(uint(e.maxWidth), 0, img, resize.Bilinear)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
