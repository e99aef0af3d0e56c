// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package render

import (
	"regexp"
	"strings"

	"emailstudio/internal/batch"
)

// TemplateMark identifies HTML produced from the corporate template.
// The draft publisher uses it to decide whether incoming HTML needs
// re-rendering or only image substitution.
const TemplateMark = "<!-- corporate-email-template -->"

// ImagePlaceholder is substituted with the final hosted image URL at
// publish time.
const ImagePlaceholder = "{{IMAGE_URL}}"

// IsCorporateTemplate reports whether html was rendered from the
// corporate template.
func IsCorporateTemplate(html string) bool {
	return strings.Contains(html, TemplateMark)
}

// Corporate renders a content set into the corporate template with the
// image slot left as a placeholder.
func Corporate(set batch.ContentSet) string {
	doc := Email(set, ImagePlaceholder)
	// Mark right after the doctype so detection survives minification of
	// the body.
	return strings.Replace(doc, "<!DOCTYPE html>", "<!DOCTYPE html>\n"+TemplateMark, 1)
}

var headTag = regexp.MustCompile(`(?i)<head[^>]*>`)

// EnsureCorporateHTML normalizes externally supplied HTML for ESP upload.
// Documents already rendered from the corporate template are reused with
// a UTF-8 charset guaranteed; anything else is scraped for its title,
// paragraphs, and image, and re-wrapped into the corporate layout.
func EnsureCorporateHTML(doc string) string {
	if IsCorporateTemplate(doc) {
		return ensureCharset(doc)
	}

	parsed := ParseSimpleEmailHTML(doc)
	set := batch.ContentSet{
		Subject: parsed.Title,
		Body: batch.ContentBody{
			Title:   parsed.Title,
			Content: strings.Join(parsed.Paragraphs, "\n"),
		},
	}
	wrapped := Corporate(set)
	if parsed.ImageURL != "" && parsed.ImageURL != ImagePlaceholder {
		wrapped = strings.ReplaceAll(wrapped, ImagePlaceholder, parsed.ImageURL)
	}
	return wrapped
}

// ensureCharset injects a UTF-8 charset meta so accented copy survives
// the draft round-trip.
func ensureCharset(doc string) string {
	if strings.Contains(strings.ToLower(doc), `charset=`) {
		return doc
	}
	if loc := headTag.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + "\n<meta charset=\"utf-8\">" + doc[loc[1]:]
	}
	return "<meta charset=\"utf-8\">\n" + doc
}

var (
	h1Pattern  = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	pPattern   = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	imgPattern = regexp.MustCompile(`(?is)<img[^>]+src="([^"]+)"`)
	tagPattern = regexp.MustCompile(`(?s)<[^>]+>`)
)

// SimpleEmail is the structure recovered from simple rendered HTML.
type SimpleEmail struct {
	Title      string
	Paragraphs []string
	ImageURL   string
}

// ParseSimpleEmailHTML extracts title, paragraphs, and the first image
// URL from rendered email HTML. It is a best-effort scrape for building
// the plain-text alternative, not a general HTML parser.
func ParseSimpleEmailHTML(doc string) SimpleEmail {
	var out SimpleEmail
	if m := h1Pattern.FindStringSubmatch(doc); m != nil {
		out.Title = cleanFragment(m[1])
	}
	for _, m := range pPattern.FindAllStringSubmatch(doc, -1) {
		if text := cleanFragment(m[1]); text != "" {
			out.Paragraphs = append(out.Paragraphs, text)
		}
	}
	if m := imgPattern.FindStringSubmatch(doc); m != nil {
		out.ImageURL = m[1]
	}
	return out
}

func cleanFragment(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&#34;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	return strings.Join(strings.Fields(s), " ")
}
