// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render builds email-client-safe HTML previews from content
// sets. Everything is inline-styled table-free markup because email
// clients ignore stylesheets; the palette and font stack are the brand
// defaults baked into the corporate template.
package render

import (
	"fmt"
	"html"
	"strings"

	"emailstudio/internal/batch"
	"emailstudio/internal/sanitize"
)

// Brand palette and typography.
const (
	brandPrimary = "#326295"
	brandBody    = "#777777"
	brandMuted   = "#97999b"
	fontStack    = "Arial, Helvetica, sans-serif"
)

// Email renders one content set as a standalone HTML document with an
// optional hero image. The preheader is emitted hidden so inbox previews
// pick it up without it showing in the rendered body.
func Email(set batch.ContentSet, heroURL string) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(set.Subject))
	b.WriteString("</head>\n")
	fmt.Fprintf(&b, "<body style=\"margin:0;padding:0;background-color:#f4f4f4;font-family:%s;\">\n", fontStack)

	if set.Preheader != "" {
		fmt.Fprintf(&b, "<div style=\"display:none;max-height:0;overflow:hidden;\">%s</div>\n", html.EscapeString(set.Preheader))
	}

	b.WriteString("<div style=\"max-width:600px;margin:0 auto;background-color:#ffffff;\">\n")
	if heroURL != "" {
		fmt.Fprintf(&b, "<img src=\"%s\" alt=\"\" width=\"600\" style=\"display:block;width:100%%;height:auto;\">\n", html.EscapeString(heroURL))
	}
	b.WriteString("<div style=\"padding:32px 40px;\">\n")
	fmt.Fprintf(&b, "<h1 style=\"color:%s;font-size:26px;line-height:32px;margin:0 0 8px;\">%s</h1>\n",
		brandPrimary, html.EscapeString(set.Body.Title))
	if set.Body.Subtitle != nil {
		fmt.Fprintf(&b, "<h2 style=\"color:%s;font-size:18px;line-height:24px;font-weight:normal;margin:0 0 16px;\">%s</h2>\n",
			brandMuted, html.EscapeString(*set.Body.Subtitle))
	}
	b.WriteString(linesToHTML(set.Body.Content))
	if set.CTA != "" {
		fmt.Fprintf(&b, "<div style=\"margin:24px 0;\"><a href=\"#\" style=\"display:inline-block;background-color:%s;color:#ffffff;text-decoration:none;padding:12px 28px;border-radius:4px;font-size:16px;\">%s</a></div>\n",
			brandPrimary, html.EscapeString(set.CTA))
	}
	b.WriteString("</div>\n")
	fmt.Fprintf(&b, "<div style=\"padding:16px 40px 24px;border-top:1px solid #eeeeee;\"><p style=\"color:%s;font-size:11px;line-height:16px;margin:0;\">%s</p></div>\n",
		brandMuted, html.EscapeString(sanitize.Disclaimer))
	b.WriteString("</div>\n</body>\n</html>\n")
	return b.String()
}

// linesToHTML converts plain-text body lines into paragraphs, grouping
// consecutive "- " lines into a single bullet list.
func linesToHTML(content string) string {
	var (
		b      strings.Builder
		inList bool
	)
	paragraphStyle := fmt.Sprintf("color:%s;font-size:15px;line-height:22px;margin:0 0 12px;", brandBody)
	listStyle := fmt.Sprintf("color:%s;font-size:15px;line-height:22px;margin:0 0 12px;padding-left:20px;", brandBody)

	closeList := func() {
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			closeList()
			continue
		}
		if item, ok := strings.CutPrefix(line, "- "); ok {
			if !inList {
				fmt.Fprintf(&b, "<ul style=\"%s\">\n", listStyle)
				inList = true
			}
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(strings.TrimSpace(item)))
			continue
		}
		closeList()
		fmt.Fprintf(&b, "<p style=\"%s\">%s</p>\n", paragraphStyle, html.EscapeString(line))
	}
	closeList()
	return b.String()
}
