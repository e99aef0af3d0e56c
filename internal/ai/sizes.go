// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

// Per-model size allow-lists. A requested size outside the model's list
// falls back to the model default rather than failing the request.
var modelSizes = map[string]struct {
	allowed []string
	def     string
}{
	"gpt-image-1": {
		allowed: []string{"auto", "1024x1024", "1536x1024", "1024x1536"},
		def:     "1536x1024",
	},
	"dall-e-3": {
		allowed: []string{"1024x1024", "1792x1024", "1024x1792"},
		def:     "1792x1024",
	},
	"dall-e-2": {
		allowed: []string{"256x256", "512x512", "1024x1024"},
		def:     "1024x1024",
	},
}

// pickSizeForModel negotiates the provider size parameter: the requested
// size when the model supports it, the model default otherwise. Unknown
// models get a conservative 1024x1024.
func pickSizeForModel(model, requested string) string {
	entry, ok := modelSizes[model]
	if !ok {
		return "1024x1024"
	}
	for _, s := range entry.allowed {
		if s == requested {
			return s
		}
	}
	return entry.def
}

// normalizeQuality maps legacy quality names onto what each model accepts.
// gpt-image-1 speaks low/medium/high; the dall-e family speaks standard/hd;
// dall-e-2 has no quality knob at all.
func normalizeQuality(model, quality string) string {
	switch model {
	case "gpt-image-1":
		switch quality {
		case "standard":
			return "medium"
		case "hd":
			return "high"
		case "low", "medium", "high", "auto":
			return quality
		default:
			return "medium"
		}
	case "dall-e-3":
		switch quality {
		case "standard", "hd":
			return quality
		case "high":
			return "hd"
		default:
			return "standard"
		}
	default:
		return ""
	}
}
