// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// bannerColor is the solid fill used when image generation fails upstream.
var bannerColor = color.RGBA{R: 235, G: 240, B: 248, A: 255}

// BannerQuality is the JPEG quality for fallback banners.
const BannerQuality = 90

// FallbackBanner produces a deterministic solid-colour JPEG at exactly
// width x height. It never depends on an upstream payload, so the caller
// can always honour the canonical hero resolution.
func FallbackBanner(width, height int) ([]byte, Meta, error) {
	if width <= 0 || height <= 0 {
		return nil, Meta{}, fmt.Errorf("imaging: banner dimensions must be positive, got %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bannerColor), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: BannerQuality}); err != nil {
		return nil, Meta{}, fmt.Errorf("imaging: banner encode: %w", err)
	}
	return buf.Bytes(), Meta{Width: width, Height: height}, nil
}
