// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"fmt"
	"strings"
)

// maxHintLen bounds the free-text hint merged into the prompt so an
// operator cannot blow past provider prompt limits.
const maxHintLen = 240

// BuildHeroPrompt assembles the image prompt for a campaign hero banner.
// The stylistic constraints are fixed; campaign, cluster, and an optional
// truncated hint are the only variable parts.
func BuildHeroPrompt(campaign, cluster, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional marketing hero banner for a banking email campaign: %s, targeted at the customer segment: %s.", campaign, cluster)
	b.WriteString(" Clean modern photographic style, bright natural lighting, optimistic mood, real people in everyday situations.")
	b.WriteString(" Wide landscape composition with clear space on the left for headline text.")
	b.WriteString(" No text, no words, no letters, no logos, no watermarks anywhere in the image.")

	hint = strings.TrimSpace(hint)
	if hint != "" {
		runes := []rune(hint)
		if len(runes) > maxHintLen {
			hint = string(runes[:maxHintLen])
		}
		b.WriteString(" Additional direction: ")
		b.WriteString(hint)
	}
	return b.String()
}
