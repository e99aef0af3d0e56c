// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging normalizes generated hero images to an exact target
// resolution using libvips. Any input image is forced to the target
// dimensions (default 1792x1024) and encoded as progressive sRGB JPEG.
// Resizing tries a content-aware (attention) crop first and retries once
// with a centre crop; a mismatch after both passes is an error, never a
// silently wrong size.
package imaging

import (
	"fmt"
	"log/slog"

	"github.com/davidbyttow/govips/v2/vips"
)

// Canonical hero resolution for the email layout.
const (
	DefaultWidth  = 1792
	DefaultHeight = 1024
)

// DefaultQuality is the JPEG quality used for normalized output.
const DefaultQuality = 88

// FitMode selects the resize strategy.
type FitMode string

const (
	// FitCover crops to fill the target exactly.
	FitCover FitMode = "cover"
	// FitContain letterboxes onto a white background.
	FitContain FitMode = "contain"
	// FitInside fits within the target without upscaling.
	FitInside FitMode = "inside"
)

// Options control a single normalization.
type Options struct {
	Mode    FitMode
	Width   int
	Height  int
	Quality int
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = FitCover
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	return o
}

// Meta describes a produced image.
type Meta struct {
	Width  int
	Height int
}

// Startup initialises the libvips library. Call once at application start.
// concurrency controls the number of libvips worker threads (0 = auto).
func Startup(concurrency int) {
	cfg := &vips.Config{
		ConcurrencyLevel: concurrency,
		MaxCacheSize:     100,
		MaxCacheMem:      50 * 1024 * 1024, // 50 MB
	}
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(cfg)
	slog.Info("libvips started", "version", vips.Version)
}

// Shutdown releases libvips resources. Call at application shutdown.
func Shutdown() {
	vips.Shutdown()
}

// Normalize forces src to exactly opts.Width x opts.Height JPEG. The first
// pass anchors the crop on the image's region of interest; if the output
// does not match the target exactly a second pass uses a centre anchor.
// A second mismatch returns an error naming requested vs actual dimensions.
func Normalize(src []byte, opts Options) ([]byte, Meta, error) {
	opts = opts.withDefaults()

	out, meta, err := resizePass(src, opts, vips.InterestingAttention)
	if err == nil && meta.Width == opts.Width && meta.Height == opts.Height {
		return out, meta, nil
	}
	if err != nil {
		slog.Warn("imaging: attention pass failed, retrying with centre crop", "error", err)
	}

	out, meta, err = resizePass(src, opts, vips.InterestingCentre)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("imaging: normalize: %w", err)
	}
	if meta.Width != opts.Width || meta.Height != opts.Height {
		return nil, Meta{}, fmt.Errorf(
			"imaging: normalize: requested %dx%d but got %dx%d",
			opts.Width, opts.Height, meta.Width, meta.Height,
		)
	}
	return out, meta, nil
}

// resizePass performs one resize + encode attempt with the given crop anchor.
func resizePass(src []byte, opts Options, anchor vips.Interesting) ([]byte, Meta, error) {
	var (
		img *vips.ImageRef
		err error
	)

	switch opts.Mode {
	case FitCover:
		img, err = vips.NewThumbnailFromBuffer(src, opts.Width, opts.Height, anchor)
	case FitContain, FitInside:
		size := vips.SizeBoth
		if opts.Mode == FitInside {
			size = vips.SizeDown
		}
		img, err = vips.NewThumbnailWithSizeFromBuffer(src, opts.Width, opts.Height, vips.InterestingNone, size)
	default:
		return nil, Meta{}, fmt.Errorf("unknown fit mode %q", opts.Mode)
	}
	if err != nil {
		return nil, Meta{}, fmt.Errorf("thumbnail: %w", err)
	}
	defer img.Close()

	// Orientation from EXIF must be applied before any cropping decision.
	if err := img.AutoRotate(); err != nil {
		return nil, Meta{}, fmt.Errorf("autorotate: %w", err)
	}

	if opts.Mode == FitContain && (img.Width() != opts.Width || img.Height() != opts.Height) {
		left := (opts.Width - img.Width()) / 2
		top := (opts.Height - img.Height()) / 2
		if err := img.EmbedBackground(left, top, opts.Width, opts.Height, &vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, Meta{}, fmt.Errorf("letterbox: %w", err)
		}
	}

	if err := img.ToColorSpace(vips.InterpretationSRGB); err != nil {
		return nil, Meta{}, fmt.Errorf("srgb: %w", err)
	}

	buf, meta, err := exportOnly(img, opts.Quality)
	if err != nil {
		return nil, Meta{}, err
	}
	return buf, meta, nil
}

// EncodeJPEG re-encodes src as sRGB JPEG at the given quality without
// resizing. Used for the raw (un-normalized) copy kept next to each hero.
func EncodeJPEG(src []byte, quality int) ([]byte, Meta, error) {
	if quality == 0 {
		quality = 90
	}
	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("imaging: decode: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, Meta{}, fmt.Errorf("imaging: autorotate: %w", err)
	}
	if err := img.ToColorSpace(vips.InterpretationSRGB); err != nil {
		return nil, Meta{}, fmt.Errorf("imaging: srgb: %w", err)
	}
	return exportOnly(img, quality)
}

func exportOnly(img *vips.ImageRef, quality int) ([]byte, Meta, error) {
	params := vips.NewJpegExportParams()
	params.Quality = quality
	params.Interlace = true // progressive
	params.SubsampleMode = vips.VipsForeignSubsampleOn
	params.StripMetadata = true

	buf, meta, err := img.ExportJpeg(params)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("jpeg export: %w", err)
	}
	return buf, Meta{Width: meta.Width, Height: meta.Height}, nil
}
