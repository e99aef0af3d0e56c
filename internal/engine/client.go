// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package engine is the HTTP client for the external text-generation
// engine. It validates engine payloads against a strict schema and maps
// them into canonical content-set variants; a shape mismatch fails closed
// with the full list of validation issues instead of coercing fields.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"emailstudio/internal/catalog"
)

// Per-call timeouts for the engine endpoints.
const (
	generateTimeout = 30 * time.Second
	metaTimeout     = 15 * time.Second
)

// Feedback carries optional operator hints merged into the engine prompt.
type Feedback struct {
	Subject     string `json:"subject,omitempty"`
	Preheader   string `json:"preheader,omitempty"`
	BodyContent string `json:"bodyContent,omitempty"`
}

// Request asks the engine for a number of content sets.
type Request struct {
	Campaign string
	Cluster  string
	Sets     int
	Feedback *Feedback
}

// Variant is one generated email variant in canonical shape.
type Variant struct {
	ID        int
	Subject   string
	Preheader string
	Body      VariantBody
	CTA       string // empty when the engine sent none
}

// VariantBody is the structured body block of a variant.
type VariantBody struct {
	Title    string
	Subtitle *string
	Content  string
}

// StatusError is an upstream failure carrying an HTTP status hint.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string { return e.Message }

// SchemaError reports a payload that does not match the engine schema,
// listing every validation failure found.
type SchemaError struct {
	Issues []string
}

func (e *SchemaError) Error() string {
	return "engine payload does not match schema: " + strings.Join(e.Issues, "; ")
}

// Client talks to the text-generation engine.
type Client struct {
	baseURL string
	enabled bool
	http    *http.Client
}

// New creates an engine client. When enabled is false the client is inert:
// GenerateContentSets returns an empty list without calling out.
func New(baseURL string, enabled bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		enabled: enabled,
		http:    &http.Client{},
	}
}

// Enabled reports whether the engine is administratively enabled.
func (c *Client) Enabled() bool { return c.enabled }

type generatePayload struct {
	Campaign string    `json:"campaign"`
	Cluster  string    `json:"cluster"`
	Sets     int       `json:"sets"`
	Feedback *Feedback `json:"feedback,omitempty"`
}

// Wire shapes. The id is decoded loosely because engines have been seen
// sending both numbers and strings like "v2"; everything else is strict.
type rawVariant struct {
	ID        json.RawMessage `json:"id"`
	Subject   string          `json:"subject"`
	Preheader string          `json:"preheader"`
	Body      rawBody         `json:"body"`
	CTA       *string         `json:"cta"`
}

type rawBody struct {
	Title    string  `json:"title"`
	Subtitle *string `json:"subtitle"`
	Content  string  `json:"content"`
}

type rawResponse struct {
	Engine   string         `json:"engine"`
	Variants []rawVariant   `json:"variants"`
	Metadata map[string]any `json:"metadata"`
}

// GenerateContentSets asks the engine for req.Sets content variants.
// A disabled engine yields (nil, nil); the caller treats an empty result
// as a failure condition upstream.
func (c *Client) GenerateContentSets(ctx context.Context, req Request) ([]Variant, error) {
	if !c.enabled {
		slog.Warn("engine disabled, returning no content sets")
		return nil, nil
	}

	// Catalog checks are a soft gate here; the orchestrator already
	// rejected hard failures.
	if !catalog.IsValidCampaign(req.Campaign) {
		slog.Warn("campaign outside catalog", "campaign", req.Campaign)
	}
	if !catalog.IsValidCluster(req.Cluster) {
		slog.Warn("cluster outside catalog", "cluster", req.Cluster)
	}

	payload, err := json.Marshal(generatePayload{
		Campaign: req.Campaign,
		Cluster:  req.Cluster,
		Sets:     req.Sets,
		Feedback: req.Feedback,
	})
	if err != nil {
		return nil, fmt.Errorf("engine marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("engine request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &StatusError{Status: http.StatusBadGateway, Message: fmt.Sprintf("engine network/timeout error: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &StatusError{Status: http.StatusBadGateway, Message: fmt.Sprintf("engine read body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("engine responded %d: %s", resp.StatusCode, truncate(string(body), 2000)),
		}
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &SchemaError{Issues: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}
	if issues := validateResponse(&raw); len(issues) > 0 {
		return nil, &SchemaError{Issues: issues}
	}

	variants := mapVariants(raw.Variants)
	slog.Info("engine variants received", "engine", raw.Engine, "count", len(variants))
	return variants, nil
}

// validateResponse checks the decoded payload against the engine schema,
// collecting every failure rather than stopping at the first.
func validateResponse(raw *rawResponse) []string {
	var issues []string
	if strings.TrimSpace(raw.Engine) == "" {
		issues = append(issues, "engine: must be a non-empty string")
	}
	if raw.Variants == nil {
		issues = append(issues, "variants: missing array")
	}
	for i, v := range raw.Variants {
		if strings.TrimSpace(v.Body.Title) == "" {
			issues = append(issues, fmt.Sprintf("variants[%d].body.title: must not be empty", i))
		}
		if strings.TrimSpace(v.Body.Content) == "" {
			issues = append(issues, fmt.Sprintf("variants[%d].body.content: must not be empty", i))
		}
	}
	return issues
}

var firstInteger = regexp.MustCompile(`\d+`)

// mapVariants converts wire variants into the canonical shape, dropping
// any variant with no subject, no preheader, and no body content.
func mapVariants(raws []rawVariant) []Variant {
	var out []Variant
	for i, v := range raws {
		mapped := Variant{
			ID:        extractID(v.ID, i+1),
			Subject:   strings.TrimSpace(v.Subject),
			Preheader: strings.TrimSpace(v.Preheader),
			Body: VariantBody{
				Title:    strings.TrimSpace(v.Body.Title),
				Subtitle: normalizeSubtitle(v.Body.Subtitle),
				Content:  strings.TrimSpace(v.Body.Content),
			},
		}
		if v.CTA != nil {
			mapped.CTA = strings.TrimSpace(*v.CTA)
		}
		if mapped.Subject == "" && mapped.Preheader == "" && mapped.Body.Content == "" {
			continue
		}
		out = append(out, mapped)
	}
	return out
}

// extractID pulls the first integer out of whatever the engine sent as id,
// falling back to the 1-based position.
func extractID(raw json.RawMessage, fallback int) int {
	if len(raw) == 0 {
		return fallback
	}
	if m := firstInteger.FindString(string(raw)); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return fallback
}

func normalizeSubtitle(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
