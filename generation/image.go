package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultFalURL is the flux schnell endpoint.
const DefaultFalURL = "https://fal.run/fal-ai/flux/schnell"

// ImageClient turns a full prompt into an image URL.
type ImageClient interface {
	Generate(ctx context.Context, prompt string, aspect AspectRatio) (string, error)
}

// FalConfig configures FalImages.
type FalConfig struct {
	URL     string
	Key     string
	Timeout time.Duration
}

// FalImages calls a fal.ai flux endpoint over HTTP.
type FalImages struct {
	url    string
	key    string
	client *http.Client
	log    *zap.Logger
}

// NewFalImages builds a client from cfg.
func NewFalImages(cfg FalConfig, log *zap.Logger) *FalImages {
	url := cfg.URL
	if url == "" {
		url = DefaultFalURL
	}
	return &FalImages{
		url:    url,
		key:    cfg.Key,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Named("fal").With(zap.String("api_url", url)),
	}
}

type falRequest struct {
	Prompt            string      `json:"prompt"`
	ImageSize         AspectRatio `json:"image_size"`
	NumInferenceSteps int         `json:"num_inference_steps"`
	NumImages         int         `json:"num_images"`
}

type falResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Generate requests one image and returns its URL.
func (f *FalImages) Generate(ctx context.Context, prompt string, aspect AspectRatio) (string, error) {
	body, err := json.Marshal(falRequest{
		Prompt:            prompt,
		ImageSize:         aspect,
		NumInferenceSteps: 4,
		NumImages:         1,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+f.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: http request: %w", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrGenerationFailed, err)
	}
	if resp.StatusCode/100 != 2 {
		f.log.Warn("image API returned non-2xx status",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", data))
		return "", fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var out falResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrGenerationFailed, err)
	}
	if len(out.Images) == 0 || out.Images[0].URL == "" {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ErrEmptyResponse)
	}
	return out.Images[0].URL, nil
}
