package imaging

import (
	"bytes"
	"image/jpeg"
	"testing"
)

func TestFallbackBannerDimensions(t *testing.T) {
	tests := []struct{ w, h int }{
		{DefaultWidth, DefaultHeight},
		{640, 480},
		{1, 1},
	}
	for _, tt := range tests {
		data, meta, err := FallbackBanner(tt.w, tt.h)
		if err != nil {
			t.Fatalf("FallbackBanner(%d, %d) error: %v", tt.w, tt.h, err)
		}
		if meta.Width != tt.w || meta.Height != tt.h {
			t.Errorf("meta = %dx%d, want %dx%d", meta.Width, meta.Height, tt.w, tt.h)
		}

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode banner: %v", err)
		}
		if cfg.Width != tt.w || cfg.Height != tt.h {
			t.Errorf("encoded banner = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.w, tt.h)
		}
	}
}

func TestFallbackBannerDeterministic(t *testing.T) {
	a, _, err := FallbackBanner(320, 180)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := FallbackBanner(320, 180)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two banners with the same dimensions differ")
	}
}

func TestFallbackBannerRejectsBadDimensions(t *testing.T) {
	if _, _, err := FallbackBanner(0, 100); err == nil {
		t.Error("expected error for zero width")
	}
	if _, _, err := FallbackBanner(100, -1); err == nil {
		t.Error("expected error for negative height")
	}
}
