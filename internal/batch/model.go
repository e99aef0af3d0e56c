// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package batch orchestrates content generation: catalog validation,
// hero image generation, text-engine calls, sanitization, and batch
// persistence in object storage.
package batch

import (
	"time"

	"emailstudio/internal/ai"
)

// BatchType is the only content type produced today. The field is kept
// in the persisted document so other channels can share the bucket later.
const BatchType = "email"

// ContentBody is the structured body of one content set.
type ContentBody struct {
	Title    string  `json:"title"`
	Subtitle *string `json:"subtitle,omitempty"`
	Content  string  `json:"content"`
}

// ContentSet is one sanitized email variant.
type ContentSet struct {
	ID        int         `json:"id"`
	Subject   string      `json:"subject"`
	Preheader string      `json:"preheader"`
	Body      ContentBody `json:"body"`
	CTA       string      `json:"cta,omitempty"`
}

// ImageAsset records one stored hero image and its provenance.
type ImageAsset struct {
	FileName string      `json:"fileName"`
	HeroURL  string      `json:"heroUrl"`
	Meta     ai.HeroMeta `json:"meta"`
}

// Batch is the persisted batch document (batch.json).
type Batch struct {
	BatchID   string       `json:"batchId"`
	Type      string       `json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Campaign  string       `json:"campaign"`
	Cluster   string       `json:"cluster"`
	Sets      []ContentSet `json:"sets"`
	Images    []ImageAsset `json:"images"`
}

// ManifestImage records one hero file with its declared and normalized
// sizes, both in "WxH" form.
type ManifestImage struct {
	FileName       string `json:"fileName"`
	SizeDeclared   string `json:"sizeDeclared"`
	SizeNormalized string `json:"sizeNormalized"`
}

// Manifest is the lightweight sidecar (_manifest.json) written next to
// each batch. It survives even if batch.json is later corrupted and is
// the recovery source for updates.
type Manifest struct {
	BatchID     string          `json:"batchId"`
	Type        string          `json:"type"`
	CreatedAt   time.Time       `json:"createdAt"`
	Campaign    string          `json:"campaign"`
	Cluster     string          `json:"cluster"`
	Environment string          `json:"environment,omitempty"`
	TotalSets   int             `json:"totalSets"`
	TotalImages int             `json:"totalImages"`
	Images      []ManifestImage `json:"images"`
}

// Summary is the history listing entry for one batch. Count is the
// number of content sets, falling back to the image count for batches
// whose document predates content generation or failed to persist.
type Summary struct {
	BatchID   string    `json:"batchId"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Campaign  string    `json:"campaign,omitempty"`
	Cluster   string    `json:"cluster,omitempty"`
	Count     int       `json:"count"`
}

// Detail is a batch plus browser-resolved hero URLs.
type Detail struct {
	Batch
	HeroURLs []string `json:"heroUrls"`
}

func batchKey(batchID string) string    { return "batches/" + batchID + "/batch.json" }
func manifestKey(batchID string) string { return "batches/" + batchID + "/_manifest.json" }
func heroKey(batchID, fileName string) string {
	return "batches/" + batchID + "/" + fileName
}
