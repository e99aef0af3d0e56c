// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package render

import (
	"strings"
	"testing"

	"emailstudio/internal/batch"
	"emailstudio/internal/sanitize"
)

func sampleSet() batch.ContentSet {
	sub := "A quieter second line"
	return batch.ContentSet{
		ID:        1,
		Subject:   "Your mortgage, simulated in minutes",
		Preheader: "See your monthly payment today",
		Body: batch.ContentBody{
			Title:    "A home within reach",
			Subtitle: &sub,
			Content:  "Intro paragraph.\n- First benefit\n- Second benefit\nClosing line.",
		},
		CTA: "Simulate now",
	}
}

func TestEmailStructure(t *testing.T) {
	doc := Email(sampleSet(), "https://cdn.example.com/hero.jpg")

	for _, want := range []string{
		`<meta charset="utf-8">`,
		`display:none`, // hidden preheader
		"See your monthly payment today",
		`<img src="https://cdn.example.com/hero.jpg"`,
		"<h1", "A home within reach",
		"<h2", "A quieter second line",
		"Simulate now",
		brandPrimary,
		sanitize.Disclaimer, // referential footer line
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
	// The footer sits in its own muted block after the content.
	if strings.Index(doc, sanitize.Disclaimer) < strings.Index(doc, "Simulate now") {
		t.Error("footer line should follow the CTA")
	}
}

func TestEmailWithoutHeroOrSubtitle(t *testing.T) {
	set := sampleSet()
	set.Body.Subtitle = nil
	set.CTA = ""
	doc := Email(set, "")
	if strings.Contains(doc, "<img") {
		t.Error("no hero URL should mean no img tag")
	}
	if strings.Contains(doc, "<h2") {
		t.Error("nil subtitle should mean no h2")
	}
	if strings.Contains(doc, "<a href") {
		t.Error("empty CTA should mean no button")
	}
}

func TestEmailEscapesContent(t *testing.T) {
	set := sampleSet()
	set.Body.Title = `<script>alert("x")</script>`
	doc := Email(set, "")
	if strings.Contains(doc, "<script>") {
		t.Fatal("title not escaped")
	}
	if !strings.Contains(doc, "&lt;script&gt;") {
		t.Error("escaped form missing")
	}
}

func TestLinesToHTMLBulletGrouping(t *testing.T) {
	got := linesToHTML("Before.\n- one\n- two\nAfter.\n- solo")
	if strings.Count(got, "<ul") != 2 {
		t.Errorf("want two lists, got:\n%s", got)
	}
	if strings.Count(got, "<li>") != 3 {
		t.Errorf("want three items, got:\n%s", got)
	}
	if strings.Count(got, "<p") != 2 {
		t.Errorf("want two paragraphs, got:\n%s", got)
	}
	if strings.Index(got, "Before.") > strings.Index(got, "<ul") {
		t.Error("paragraph/list order lost")
	}
}

func TestCorporateTemplateMarkAndPlaceholder(t *testing.T) {
	doc := Corporate(sampleSet())
	if !IsCorporateTemplate(doc) {
		t.Fatal("corporate output not detected as corporate")
	}
	if !strings.Contains(doc, ImagePlaceholder) {
		t.Error("image placeholder missing")
	}
	if IsCorporateTemplate(Email(sampleSet(), "")) {
		t.Error("plain render must not be detected as corporate")
	}
}

func TestEnsureCorporateHTMLReusesTemplate(t *testing.T) {
	// Template output is reused as-is, with a charset guaranteed.
	marked := TemplateMark + "<html><head><title>t</title></head><body><p>Keep me.</p></body></html>"
	fixed := EnsureCorporateHTML(marked)
	if !strings.Contains(fixed, `<meta charset="utf-8">`) {
		t.Errorf("charset not injected: %s", fixed)
	}
	if !strings.Contains(fixed, "Keep me.") {
		t.Error("template content lost")
	}

	withCharset := TemplateMark + `<html><head><meta charset="utf-8"></head><body></body></html>`
	if EnsureCorporateHTML(withCharset) != withCharset {
		t.Error("marked document with charset should be unchanged")
	}
}

func TestEnsureCorporateHTMLWrapsForeignHTML(t *testing.T) {
	foreign := `<html><body><h1>A home within reach</h1><p>First line.</p><p>Second line.</p><img src="https://cdn.example.com/hero.jpg"></body></html>`
	got := EnsureCorporateHTML(foreign)
	if !IsCorporateTemplate(got) {
		t.Fatal("foreign HTML not wrapped into the corporate template")
	}
	for _, want := range []string{"A home within reach", "First line.", "Second line.", "https://cdn.example.com/hero.jpg"} {
		if !strings.Contains(got, want) {
			t.Errorf("wrapped HTML missing %q", want)
		}
	}
	if strings.Contains(got, ImagePlaceholder) {
		t.Error("existing image URL should fill the placeholder")
	}

	// Foreign HTML without an image keeps the slot open for publishing.
	noImage := `<html><body><h1>Title</h1><p>Line.</p></body></html>`
	if got := EnsureCorporateHTML(noImage); !strings.Contains(got, ImagePlaceholder) {
		t.Error("wrap without image should keep the placeholder")
	}
}

func TestParseSimpleEmailHTML(t *testing.T) {
	doc := Email(sampleSet(), "https://cdn.example.com/hero.jpg")
	parsed := ParseSimpleEmailHTML(doc)
	if parsed.Title != "A home within reach" {
		t.Errorf("Title = %q", parsed.Title)
	}
	if parsed.ImageURL != "https://cdn.example.com/hero.jpg" {
		t.Errorf("ImageURL = %q", parsed.ImageURL)
	}
	if len(parsed.Paragraphs) < 2 {
		t.Errorf("Paragraphs = %v", parsed.Paragraphs)
	}
	if parsed.Paragraphs[0] != "Intro paragraph." {
		t.Errorf("Paragraphs[0] = %q", parsed.Paragraphs[0])
	}
}
