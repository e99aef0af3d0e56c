// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package esp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"emailstudio/internal/render"
)

// Content Builder asset type identifiers.
var assetTypeIDs = map[string]int{
	"gif":       20,
	"jpeg":      22,
	"jpg":       23,
	"png":       28,
	"htmlemail": 208,
}

// APIError is a non-2xx response from the provider REST API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("esp api responded %d: %s", e.Status, e.Message)
}

// Client is the provider REST client.
type Client struct {
	tokens     *tokenCache
	categoryID int
	http       *http.Client
}

// NewClient builds an ESP client. Returns nil when credentials are not
// configured; callers treat a nil client as publishing disabled.
func NewClient(authURL, clientID, clientSecret, accountID string, categoryID int) *Client {
	if authURL == "" || clientID == "" || clientSecret == "" {
		return nil
	}
	httpClient := &http.Client{}
	return &Client{
		tokens:     newTokenCache(authURL, clientID, clientSecret, accountID, httpClient),
		categoryID: categoryID,
		http:       httpClient,
	}
}

// Configured reports whether publishing is available.
func (c *Client) Configured() bool { return c != nil }

type assetRequest struct {
	Name      string `json:"name"`
	AssetType struct {
		Name string `json:"name"`
		ID   int    `json:"id"`
	} `json:"assetType"`
	File     string          `json:"file,omitempty"`
	Category *assetCategory  `json:"category,omitempty"`
	Views    map[string]view `json:"views,omitempty"`
}

type assetCategory struct {
	ID int `json:"id"`
}

type view struct {
	Content string `json:"content"`
}

type assetResponse struct {
	ID           int    `json:"id"`
	CustomerKey  string `json:"customerKey"`
	FileProperties struct {
		PublishedURL string `json:"publishedURL"`
	} `json:"fileProperties"`
}

// doAsset posts an asset, refreshing the token once on a 401.
func (c *Client) doAsset(ctx context.Context, req assetRequest) (*assetResponse, error) {
	resp, err := c.postAsset(ctx, req)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusUnauthorized {
		c.tokens.invalidate()
		resp, err = c.postAsset(ctx, req)
	}
	return resp, err
}

func (c *Client) postAsset(ctx context.Context, req assetRequest) (*assetResponse, error) {
	tok, err := c.tokens.get(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("esp asset marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tok.restBase+"/asset/v1/content/assets", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("esp asset request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+tok.accessToken)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("esp asset: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("esp asset read: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &APIError{Status: httpResp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var decoded assetResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("esp asset payload: %w", err)
	}
	return &decoded, nil
}

// UploadImage stores image bytes as a Content Builder asset and returns
// the asset id and its published URL.
func (c *Client) UploadImage(ctx context.Context, name, ext string, data []byte) (int, string, error) {
	typeID, ok := assetTypeIDs[ext]
	if !ok {
		return 0, "", fmt.Errorf("esp: unsupported image extension %q", ext)
	}

	req := assetRequest{Name: name, File: base64.StdEncoding.EncodeToString(data)}
	req.AssetType.Name = ext
	req.AssetType.ID = typeID
	if c.categoryID > 0 {
		req.Category = &assetCategory{ID: c.categoryID}
	}

	resp, err := c.doAsset(ctx, req)
	if err != nil {
		return 0, "", err
	}
	return resp.ID, resp.FileProperties.PublishedURL, nil
}

// CreateDraft creates an htmlemail asset with html, plain-text,
// subject, and preheader views. The email is left unsent; it appears as
// a draft in Content Builder.
func (c *Client) CreateDraft(ctx context.Context, name, html, subject, preheader string) (int, error) {
	req := assetRequest{
		Name: name,
		Views: map[string]view{
			"html":        {Content: html},
			"text":        {Content: htmlToPlain(html)},
			"subjectline": {Content: subject},
			"preheader":   {Content: preheader},
		},
	}
	req.AssetType.Name = "htmlemail"
	req.AssetType.ID = assetTypeIDs["htmlemail"]
	if c.categoryID > 0 {
		req.Category = &assetCategory{ID: c.categoryID}
	}

	resp, err := c.doAsset(ctx, req)
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// htmlToPlain builds the text alternative from rendered email HTML.
func htmlToPlain(html string) string {
	parsed := render.ParseSimpleEmailHTML(html)
	var parts []string
	if parsed.Title != "" {
		parts = append(parts, parsed.Title)
	}
	parts = append(parts, parsed.Paragraphs...)
	return strings.Join(parts, "\n\n")
}
