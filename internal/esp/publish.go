// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package esp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"emailstudio/internal/render"
	"emailstudio/internal/storage"
)

// ErrNotConfigured is returned when publishing is requested without
// provider credentials.
var ErrNotConfigured = errors.New("esp publishing is not configured")

// dryRunURL stands in for the hosted image URL in dry-run previews.
const dryRunURL = "<PUBLISHED_URL>"

// previewLimit bounds the dry-run preview so responses stay small even
// for image-heavy templates.
const previewLimit = 4000

// PublishRequest asks for one draft email in the provider.
type PublishRequest struct {
	BatchID   string
	Name      string
	HTML      string
	Subject   string
	Preheader string
	// Image accepts a data URI, raw base64, an http(s) URL, or a
	// store:<key> reference into our own bucket.
	Image  string
	DryRun bool
}

// PublishResult reports what was created.
type PublishResult struct {
	DryRun      bool   `json:"dryRun"`
	EmailID     int    `json:"emailId,omitempty"`
	EmailName   string `json:"emailName"`
	ImageID     int    `json:"imageId,omitempty"`
	ImageName   string `json:"imageName,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	PreviewHTML string `json:"previewHtml,omitempty"`
}

// Publisher drives the draft-publishing flow.
type Publisher struct {
	client *Client
	store  storage.Store
	http   *http.Client
	now    func() time.Time
}

// NewPublisher wires a publisher. store may be nil; the audit receipt is
// then skipped.
func NewPublisher(client *Client, store storage.Store) *Publisher {
	return &Publisher{client: client, store: store, http: &http.Client{}, now: time.Now}
}

// PublishDraft uploads the hero image, substitutes its hosted URL into
// the HTML, and creates the draft email. Name collisions follow the
// provider's suggested name, then a batch-scoped suffix.
func (p *Publisher) PublishDraft(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if !p.client.Configured() {
		return nil, ErrNotConfigured
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "emailstudio_" + req.BatchID
	}
	html := render.EnsureCorporateHTML(req.HTML)

	if req.DryRun {
		preview := strings.ReplaceAll(html, render.ImagePlaceholder, dryRunURL)
		if runes := []rune(preview); len(runes) > previewLimit {
			preview = string(runes[:previewLimit]) + "…"
		}
		return &PublishResult{
			DryRun:      true,
			EmailName:   name,
			PreviewHTML: preview,
		}, nil
	}

	result := &PublishResult{EmailName: name}

	if strings.Contains(html, render.ImagePlaceholder) || req.Image != "" {
		data, ext, err := p.resolveImage(ctx, req.Image)
		if err != nil {
			return nil, fmt.Errorf("resolve publish image: %w", err)
		}
		imageName := name + "_hero"
		id, url, finalName, err := p.uploadImageUnique(ctx, imageName, ext, data, req.BatchID)
		if err != nil {
			return nil, err
		}
		result.ImageID = id
		result.ImageName = finalName
		result.ImageURL = url
		html = strings.ReplaceAll(html, render.ImagePlaceholder, url)
	}

	emailID, finalName, err := p.createDraftUnique(ctx, name, html, req.Subject, req.Preheader, req.BatchID)
	if err != nil {
		return nil, err
	}
	result.EmailID = emailID
	result.EmailName = finalName

	p.writeReceipt(ctx, req.BatchID, result)
	return result, nil
}

// resolveImage turns the request's image reference into bytes plus a
// normalized extension.
func (p *Publisher) resolveImage(ctx context.Context, ref string) ([]byte, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, "", errors.New("image is required when the template has an image slot")
	}

	switch {
	case strings.HasPrefix(ref, "data:"):
		meta, payload, ok := strings.Cut(ref, ",")
		if !ok {
			return nil, "", errors.New("malformed data URI")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data URI: %w", err)
		}
		return data, extFromMime(meta), nil

	case strings.HasPrefix(ref, "store:"):
		if p.store == nil {
			return nil, "", errors.New("store reference without configured storage")
		}
		key := strings.TrimPrefix(ref, "store:")
		data, err := p.store.ReadBuffer(ctx, key)
		if err != nil {
			return nil, "", err
		}
		return data, normalizeExt(path.Ext(key)), nil

	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		// Our own hero URLs resolve through the store so private buckets
		// work without a public endpoint.
		if p.store != nil {
			if key, ok := p.store.ExtractKey(ref); ok {
				data, err := p.store.ReadBuffer(ctx, key)
				if err != nil {
					return nil, "", fmt.Errorf("read stored image %s: %w", key, err)
				}
				return data, normalizeExt(path.Ext(key)), nil
			}
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, "", fmt.Errorf("image fetch request: %w", err)
		}
		resp, err := p.http.Do(httpReq)
		if err != nil {
			return nil, "", fmt.Errorf("image fetch: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("image fetch responded %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("image fetch read: %w", err)
		}
		return data, normalizeExt(path.Ext(strings.SplitN(ref, "?", 2)[0])), nil

	default:
		// Raw base64 payload.
		data, err := base64.StdEncoding.DecodeString(ref)
		if err != nil {
			return nil, "", fmt.Errorf("image is neither a URI nor valid base64: %w", err)
		}
		return data, "jpg", nil
	}
}

func extFromMime(meta string) string {
	switch {
	case strings.Contains(meta, "image/png"):
		return "png"
	case strings.Contains(meta, "image/gif"):
		return "gif"
	default:
		return "jpg"
	}
}

func normalizeExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return "png"
	case "gif":
		return "gif"
	case "jpeg", "jpg", "":
		return "jpg"
	default:
		return "jpg"
	}
}

// uploadImageUnique uploads with collision handling: first the provider's
// suggested name, then a batch-and-timestamp suffix as the last resort.
func (p *Publisher) uploadImageUnique(ctx context.Context, name, ext string, data []byte, batchID string) (int, string, string, error) {
	id, url, err := p.client.UploadImage(ctx, name, ext, data)
	if err == nil {
		return id, url, name, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !isDuplicateName(apiErr) {
		return 0, "", "", err
	}
	if suggested, ok := SuggestedName(apiErr.Message); ok {
		slog.Info("esp image name taken, using suggested", "name", name, "suggested", suggested)
		if id, url, err := p.client.UploadImage(ctx, suggested, ext, data); err == nil {
			return id, url, suggested, nil
		}
	}

	fallback := fmt.Sprintf("%s_%s_%d", name, batchID, p.now().Unix())
	id, url, err = p.client.UploadImage(ctx, fallback, ext, data)
	if err != nil {
		return 0, "", "", err
	}
	return id, url, fallback, nil
}

// createDraftUnique mirrors uploadImageUnique for the email asset.
func (p *Publisher) createDraftUnique(ctx context.Context, name, html, subject, preheader, batchID string) (int, string, error) {
	id, err := p.client.CreateDraft(ctx, name, html, subject, preheader)
	if err == nil {
		return id, name, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !isDuplicateName(apiErr) {
		return 0, "", err
	}
	if suggested, ok := SuggestedName(apiErr.Message); ok {
		slog.Info("esp draft name taken, using suggested", "name", name, "suggested", suggested)
		if id, err := p.client.CreateDraft(ctx, suggested, html, subject, preheader); err == nil {
			return id, suggested, nil
		}
	}

	fallback := fmt.Sprintf("%s_%s_%d", name, batchID, p.now().Unix())
	id, err = p.client.CreateDraft(ctx, fallback, html, subject, preheader)
	if err != nil {
		return 0, "", err
	}
	return id, fallback, nil
}

// writeReceipt stores a best-effort audit record next to the batch. The
// receipt never contains credentials or the full HTML, only identifiers.
func (p *Publisher) writeReceipt(ctx context.Context, batchID string, result *PublishResult) {
	if p.store == nil || batchID == "" {
		return
	}
	receipt := map[string]any{
		"receiptId":   uuid.NewString(),
		"batchId":     batchID,
		"emailId":     result.EmailID,
		"emailName":   result.EmailName,
		"imageId":     result.ImageID,
		"imageName":   result.ImageName,
		"imageUrl":    result.ImageURL,
		"publishedAt": p.now().UTC().Format(time.RFC3339),
	}
	key := "batches/" + batchID + "/esp_receipt.json"
	if err := p.store.UploadJSON(ctx, key, receipt); err != nil {
		slog.Warn("esp receipt write failed", "batchId", batchID, "error", err)
	}
}
