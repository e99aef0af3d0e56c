// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package esp

import (
	"regexp"
	"strings"
)

// Duplicate-name errors from the provider embed an alternative, e.g.
// `Asset names within a category and asset type must be unique.
// Suggested name: hero_v01 (1)`. We honor the suggestion instead of
// inventing our own de-duplication scheme.
var suggestedName = regexp.MustCompile(`Suggested name:\s*([^"\n\r]+)`)

// SuggestedName extracts the provider-suggested replacement name from a
// duplicate-name error message. Returns ("", false) when the message
// carries none.
func SuggestedName(message string) (string, bool) {
	m := suggestedName.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(strings.Trim(m[1], `"\`))
	if name == "" {
		return "", false
	}
	return name, true
}

// isDuplicateName reports whether an API error looks like a unique-name
// violation.
func isDuplicateName(err *APIError) bool {
	if err.Status != 400 && err.Status != 409 {
		return false
	}
	msg := strings.ToLower(err.Message)
	return strings.Contains(msg, "must be unique") || strings.Contains(msg, "suggested name")
}
