// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package sanitize turns raw generated copy into email-safe text: emoji
// stripping, whitespace normalization, sentence casing, length clamping,
// spam-trigger removal, and the mandatory regulatory disclaimer. The rules
// run in a fixed order and are idempotent for subject and preheader.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Disclaimer is appended to every body unless already present.
const Disclaimer = "Subject to evaluation. Referential conditions."

// Length limits for email-safe copy.
const (
	MaxSubjectLen   = 60
	MaxPreheaderLen = 110
	MaxTitleLen     = 60
	MaxSubtitleLen  = 120
	MaxCTALen       = 24
)

// Copy is one email variant's raw text fields.
type Copy struct {
	Subject   string
	Preheader string
	Body      string
	CTA       string
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	doubleSpace   = regexp.MustCompile(`\s{2,}`)
	bangRun       = regexp.MustCompile(`[!¡]{2,}`)
	trailingDots  = regexp.MustCompile(`\.+$`)

	// Spam triggers removed from subject and preheader. The phrase form
	// precedes the single word so "100% gratis" is removed whole.
	spamTriggers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b100%\s*gratis\b`),
		regexp.MustCompile(`(?i)\bgratis\b`),
		regexp.MustCompile(`(?i)\bregalo\b`),
		regexp.MustCompile(`(?i)\burgente\b`),
		regexp.MustCompile(`(?i)\bgana dinero\b`),
		regexp.MustCompile(`[💰🎁🔥🎉✅⭐]`),
	}

	disclaimerMark = regexp.MustCompile(`(?i)subject to evaluation`)
)

// stripEmojis removes emoji and symbol runes: the general symbol block,
// the private-use area, and everything beyond the BMP. The ellipsis is
// deliberately kept so clamping stays idempotent.
func stripEmojis(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '…':
			// keep
		case r >= 0x2011 && r <= 0x27BF:
			continue
		case r >= 0xE000 && r <= 0xF8FF:
			continue
		case r >= 0x10000:
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sentenceCase upper-cases the first rune and leaves the rest untouched.
func sentenceCase(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return t
	}
	r, size := utf8.DecodeRuneInString(t)
	return strings.ToUpper(string(r)) + t[size:]
}

// clampChars collapses whitespace, trims, and clamps to max runes. When
// truncating it cuts at max-1, right-trims, and appends an ellipsis, so
// the result never exceeds max. Short strings are never padded.
func clampChars(s string, max int) string {
	t := strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	runes := []rune(t)
	if len(runes) <= max {
		return t
	}
	cut := strings.TrimRight(string(runes[:max-1]), " ")
	return cut + "…"
}

// SanitizeCopy applies the full email-safe rule set in fixed order.
// Empty fields sanitize to empty fields; it never errors.
func SanitizeCopy(raw Copy) Copy {
	subject := strings.TrimSpace(whitespaceRun.ReplaceAllString(bangRun.ReplaceAllString(stripEmojis(raw.Subject), "!"), " "))
	preheader := strings.TrimSpace(whitespaceRun.ReplaceAllString(stripEmojis(raw.Preheader), " "))
	body := strings.TrimSpace(stripEmojis(raw.Body))

	subject = sentenceCase(trailingDots.ReplaceAllString(subject, ""))
	preheader = sentenceCase(preheader)

	subject = clampChars(subject, MaxSubjectLen)
	preheader = clampChars(preheader, MaxPreheaderLen)

	for _, rx := range spamTriggers {
		subject = strings.TrimSpace(doubleSpace.ReplaceAllString(rx.ReplaceAllString(subject, ""), " "))
		preheader = strings.TrimSpace(doubleSpace.ReplaceAllString(rx.ReplaceAllString(preheader, ""), " "))
	}

	cta := raw.CTA
	if cta != "" {
		cta = strings.TrimSpace(doubleSpace.ReplaceAllString(stripEmojis(cta), " "))
		if utf8.RuneCountInString(cta) > MaxCTALen {
			words := strings.Fields(cta)
			if len(words) > 3 {
				words = words[:3]
			}
			cta = strings.Join(words, " ")
		}
	}

	if !disclaimerMark.MatchString(body) {
		body += "\n" + Disclaimer
	}

	return Copy{Subject: subject, Preheader: preheader, Body: body, CTA: cta}
}

// Clamp is the exported length clamp for callers that re-check operator
// edits without running the full sanitizer.
func Clamp(s string, max int) string {
	return clampChars(s, max)
}

// EnsureDisclaimer appends the mandatory disclaimer when the body does
// not already carry one.
func EnsureDisclaimer(body string) string {
	if disclaimerMark.MatchString(body) {
		return body
	}
	return body + "\n" + Disclaimer
}

// SanitizeHeading cleans a body title: trim, strip emoji, collapse
// whitespace, fall back when empty, sentence-case, clamp.
func SanitizeHeading(candidate, fallback string) string {
	s := strings.TrimSpace(whitespaceRun.ReplaceAllString(stripEmojis(strings.TrimSpace(candidate)), " "))
	if s == "" {
		s = fallback
	}
	s = sentenceCase(s)
	return clampChars(s, MaxTitleLen)
}

// SanitizeSubheading cleans a body subtitle the same way, returning nil
// when nothing remains after the fallback.
func SanitizeSubheading(candidate, fallback string) *string {
	s := strings.TrimSpace(whitespaceRun.ReplaceAllString(stripEmojis(strings.TrimSpace(candidate)), " "))
	if s == "" {
		s = strings.TrimSpace(fallback)
	}
	if s == "" {
		return nil
	}
	s = clampChars(sentenceCase(s), MaxSubtitleLen)
	return &s
}
