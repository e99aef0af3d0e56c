// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ai generates hero images through an OpenAI-compatible images
// API. Generation is best-effort: after the retry budget is exhausted the
// caller gets a deterministic fallback banner instead of an error, so a
// flaky image provider never sinks a content batch.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"emailstudio/internal/imaging"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	// Two attempts per hero, a short pause between them, and a hard
	// per-attempt deadline that covers slow gpt-image-1 renders.
	imageAttempts   = 2
	attemptBackoff  = 500 * time.Millisecond
	attemptDeadline = 65 * time.Second

	rawQuality = 90
)

// HeroSpec describes one hero image to generate.
type HeroSpec struct {
	Campaign string
	Cluster  string
	Hint     string
	Index    int // 1-based variant position, for logging only
}

// HeroMeta is the provenance record persisted next to each hero. Size is
// the "WxH" requested from the provider; SizeNormalized is the "WxH" the
// stored JPEG actually has after normalization.
type HeroMeta struct {
	Model          string `json:"model"`
	Size           string `json:"size"`
	Quality        string `json:"quality,omitempty"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	SizeNormalized string `json:"sizeNormalized"`
	Fallback       bool   `json:"fallback,omitempty"`
}

// Hero is a generated (or fallback) hero image. Raw is the provider
// output re-encoded as JPEG; it is nil for fallback banners.
type Hero struct {
	Raw        []byte
	Normalized []byte
	Meta       HeroMeta
}

// ImageClient talks to an OpenAI-compatible images endpoint.
type ImageClient struct {
	apiKey  string
	baseURL string
	model   string
	size    string
	quality string
	http    *http.Client
}

// NewImageClient builds a client. An empty API key yields a client that
// always produces fallback banners, which keeps local development working
// without provider credentials.
func NewImageClient(apiKey, baseURL, model, size, quality string) *ImageClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "gpt-image-1"
	}
	return &ImageClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		size:    size,
		quality: quality,
		http:    &http.Client{},
	}
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateHero produces one normalized hero image. Provider
// failures are retried once; when both attempts fail the result is the
// fallback banner with Meta.Fallback set, never an error.
func (c *ImageClient) GenerateHero(ctx context.Context, spec HeroSpec) *Hero {
	size := pickSizeForModel(c.model, c.size)
	quality := normalizeQuality(c.model, c.quality)
	prompt := BuildHeroPrompt(spec.Campaign, spec.Cluster, spec.Hint)

	if c.apiKey == "" {
		slog.Warn("image provider not configured, using fallback banner", "variant", spec.Index)
		return c.fallback(size, quality)
	}

	var raw []byte
	backoff := retry.WithMaxRetries(imageAttempts-1, retry.NewConstant(attemptBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptDeadline)
		defer cancel()

		data, err := c.requestImage(attemptCtx, prompt, size, quality)
		if err != nil {
			slog.Warn("image generation attempt failed", "variant", spec.Index, "model", c.model, "error", err)
			return retry.RetryableError(err)
		}
		raw = data
		return nil
	})
	if err != nil {
		slog.Error("image generation exhausted retries, using fallback banner",
			"variant", spec.Index, "model", c.model, "error", err)
		return c.fallback(size, quality)
	}

	hero, err := c.finishHero(raw, size, quality)
	if err != nil {
		slog.Error("image post-processing failed, using fallback banner", "variant", spec.Index, "error", err)
		return c.fallback(size, quality)
	}
	return hero
}

// requestImage performs one provider round-trip and returns decoded bytes.
func (c *ImageClient) requestImage(ctx context.Context, prompt, size, quality string) ([]byte, error) {
	req := imageRequest{
		Model:   c.model,
		Prompt:  prompt,
		N:       1,
		Size:    size,
		Quality: quality,
	}
	// gpt-image-1 always returns base64 and rejects response_format.
	if strings.HasPrefix(c.model, "dall-e") {
		req.ResponseFormat = "b64_json"
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image provider read: %w", err)
	}

	var decoded imageResponse
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &decoded) == nil && decoded.Error != nil {
			msg = decoded.Error.Message
		}
		return nil, fmt.Errorf("image provider responded %d: %s", resp.StatusCode, truncate(msg, 500))
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("image provider payload: %w", err)
	}
	if len(decoded.Data) == 0 {
		return nil, fmt.Errorf("image provider returned no images")
	}

	item := decoded.Data[0]
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image base64: %w", err)
		}
		return data, nil
	case item.URL != "":
		return c.fetchURL(ctx, item.URL)
	default:
		return nil, fmt.Errorf("image provider returned neither b64_json nor url")
	}
}

func (c *ImageClient) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("image fetch request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch responded %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// finishHero re-encodes the provider output and normalizes it to the
// canonical hero dimensions.
func (c *ImageClient) finishHero(providerData []byte, size, quality string) (*Hero, error) {
	raw, _, err := imaging.EncodeJPEG(providerData, rawQuality)
	if err != nil {
		return nil, fmt.Errorf("re-encode provider image: %w", err)
	}
	normalized, normMeta, err := imaging.Normalize(providerData, imaging.Options{})
	if err != nil {
		return nil, fmt.Errorf("normalize hero: %w", err)
	}
	return &Hero{
		Raw:        raw,
		Normalized: normalized,
		Meta: HeroMeta{
			Model:          c.model,
			Size:           size,
			Quality:        quality,
			Width:          normMeta.Width,
			Height:         normMeta.Height,
			SizeNormalized: fmt.Sprintf("%dx%d", normMeta.Width, normMeta.Height),
		},
	}, nil
}

// fallback produces the deterministic banner hero.
func (c *ImageClient) fallback(size, quality string) *Hero {
	banner, meta, err := imaging.FallbackBanner(imaging.DefaultWidth, imaging.DefaultHeight)
	if err != nil {
		// Fixed positive dimensions make this unreachable outside of a
		// stdlib encoder failure.
		slog.Error("fallback banner encode failed", "error", err)
		return &Hero{Meta: HeroMeta{Model: c.model + " (fallback)", Size: size, Quality: quality, Fallback: true}}
	}
	return &Hero{
		Normalized: banner,
		Meta: HeroMeta{
			Model:          c.model + " (fallback)",
			Size:           size,
			Quality:        quality,
			Width:          meta.Width,
			Height:         meta.Height,
			SizeNormalized: fmt.Sprintf("%dx%d", meta.Width, meta.Height),
			Fallback:       true,
		},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
