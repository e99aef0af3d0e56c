// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestPickSizeForModel(t *testing.T) {
	tests := []struct {
		model, requested, want string
	}{
		{"gpt-image-1", "1536x1024", "1536x1024"},
		{"gpt-image-1", "auto", "auto"},
		{"gpt-image-1", "1792x1024", "1536x1024"}, // not supported, model default
		{"gpt-image-1", "", "1536x1024"},
		{"dall-e-3", "1792x1024", "1792x1024"},
		{"dall-e-3", "1536x1024", "1792x1024"},
		{"dall-e-2", "512x512", "512x512"},
		{"dall-e-2", "1792x1024", "1024x1024"},
		{"something-else", "1792x1024", "1024x1024"},
	}
	for _, tt := range tests {
		if got := pickSizeForModel(tt.model, tt.requested); got != tt.want {
			t.Errorf("pickSizeForModel(%q, %q) = %q, want %q", tt.model, tt.requested, got, tt.want)
		}
	}
}

func TestNormalizeQuality(t *testing.T) {
	tests := []struct {
		model, quality, want string
	}{
		{"gpt-image-1", "standard", "medium"},
		{"gpt-image-1", "hd", "high"},
		{"gpt-image-1", "low", "low"},
		{"gpt-image-1", "bogus", "medium"},
		{"dall-e-3", "hd", "hd"},
		{"dall-e-3", "high", "hd"},
		{"dall-e-3", "bogus", "standard"},
		{"dall-e-2", "hd", ""},
	}
	for _, tt := range tests {
		if got := normalizeQuality(tt.model, tt.quality); got != tt.want {
			t.Errorf("normalizeQuality(%q, %q) = %q, want %q", tt.model, tt.quality, got, tt.want)
		}
	}
}

func TestBuildHeroPrompt(t *testing.T) {
	p := BuildHeroPrompt("Mortgage", "Young families", "")
	if !strings.Contains(p, "Mortgage") || !strings.Contains(p, "Young families") {
		t.Errorf("prompt missing campaign/cluster: %q", p)
	}
	if !strings.Contains(p, "No text") {
		t.Errorf("prompt missing no-text constraint: %q", p)
	}
	if strings.Contains(p, "Additional direction") {
		t.Errorf("empty hint should not emit direction block: %q", p)
	}

	long := strings.Repeat("x", 500)
	p = BuildHeroPrompt("Mortgage", "Young families", long)
	if !strings.Contains(p, "Additional direction: ") {
		t.Fatalf("hint not merged: %q", p)
	}
	hintPart := p[strings.Index(p, "Additional direction: ")+len("Additional direction: "):]
	if len([]rune(hintPart)) != maxHintLen {
		t.Errorf("hint length = %d, want truncation at %d", len([]rune(hintPart)), maxHintLen)
	}
}

func TestGenerateHeroFallbackWithoutKey(t *testing.T) {
	c := NewImageClient("", "", "gpt-image-1", "1536x1024", "standard")
	hero := c.GenerateHero(context.Background(), HeroSpec{Campaign: "Mortgage", Cluster: "x", Index: 1})
	if !hero.Meta.Fallback {
		t.Fatal("expected fallback hero without API key")
	}
	if hero.Meta.Model != "gpt-image-1 (fallback)" {
		t.Errorf("Model = %q", hero.Meta.Model)
	}
	if hero.Raw != nil {
		t.Error("fallback hero should carry no raw image")
	}
	if len(hero.Normalized) == 0 {
		t.Error("fallback hero missing banner bytes")
	}
	if hero.Meta.Width != 1792 || hero.Meta.Height != 1024 {
		t.Errorf("banner dims = %dx%d", hero.Meta.Width, hero.Meta.Height)
	}
	if hero.Meta.SizeNormalized != "1792x1024" {
		t.Errorf("SizeNormalized = %q, want stored dimensions", hero.Meta.SizeNormalized)
	}
}

func TestGenerateHeroFallbackAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewImageClient("test-key", srv.URL, "dall-e-3", "1792x1024", "standard")
	hero := c.GenerateHero(context.Background(), HeroSpec{Campaign: "Mortgage", Cluster: "x", Index: 1})
	if !hero.Meta.Fallback {
		t.Fatal("expected fallback after provider failures")
	}
	if calls.Load() != 2 {
		t.Errorf("provider called %d times, want 2 attempts", calls.Load())
	}
	if hero.Meta.Model != "dall-e-3 (fallback)" {
		t.Errorf("Model = %q", hero.Meta.Model)
	}
	if hero.Meta.Size != "1792x1024" {
		t.Errorf("Size = %q", hero.Meta.Size)
	}
}

func TestRequestImageSendsNegotiatedParameters(t *testing.T) {
	var got imageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		decodeJSONBody(t, r, &got)
		// Fail so the test does not need a real image payload.
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewImageClient("test-key", srv.URL, "gpt-image-1", "1792x1024", "hd")
	c.GenerateHero(context.Background(), HeroSpec{Campaign: "Mortgage", Cluster: "x", Index: 1})

	if got.Size != "1536x1024" {
		t.Errorf("negotiated size = %q, want model default for unsupported request", got.Size)
	}
	if got.Quality != "high" {
		t.Errorf("quality = %q, want hd mapped to high", got.Quality)
	}
	if got.ResponseFormat != "" {
		t.Errorf("gpt-image-1 must not send response_format, got %q", got.ResponseFormat)
	}
	if got.N != 1 {
		t.Errorf("n = %d", got.N)
	}
}

func decodeJSONBody(t *testing.T, r *http.Request, out any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}
