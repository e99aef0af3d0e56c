// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON API. Every response uses the
// {"ok": bool} envelope; failures carry an error string and, for
// validation, a per-field details map.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"emailstudio/internal/batch"
	"emailstudio/internal/engine"
	"emailstudio/internal/esp"
	"emailstudio/internal/render"
	"emailstudio/internal/storage"
)

// maxBodyBytes bounds request bodies; publish payloads may carry a
// base64 image.
const maxBodyBytes = 16 << 20

// API aggregates the service dependencies behind the HTTP surface.
type API struct {
	Batches   *batch.Service
	Meta      *engine.MetaCache
	Publisher *esp.Publisher
	Store     storage.Store
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses: validation to 400,
// upstream and empty-content failures to 502, conflicts to 409, missing
// batches to 404, everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	var (
		vErr      *batch.ValidationError
		schemaErr *engine.SchemaError
		statusErr *engine.StatusError
		apiErr    *esp.APIError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok": false, "error": "validation failed", "details": vErr.Fields,
		})
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"ok": false, "error": schemaErr.Error(),
		})
	case errors.As(err, &statusErr):
		status := statusErr.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, map[string]any{"ok": false, "error": statusErr.Message})
	case errors.Is(err, batch.ErrNoContent):
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": err.Error()})
	case errors.Is(err, batch.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "batch not found"})
	case errors.Is(err, esp.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": apiErr.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "internal server error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok": false, "error": "invalid JSON body: " + err.Error(),
		})
		return false
	}
	return true
}

type generateBody struct {
	Campaign  string           `json:"campaign"`
	Cluster   string           `json:"cluster"`
	Sets      int              `json:"sets"`
	Images    int              `json:"images"`
	Feedback  *engine.Feedback `json:"feedback,omitempty"`
	ImageHint string           `json:"imageHint,omitempty"`
}

// Generate handles POST /api/generate.
func (a *API) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateBody
	if !decodeBody(w, r, &body) {
		return
	}

	b, err := a.Batches.Generate(r.Context(), batch.GenerateRequest{
		Campaign:  body.Campaign,
		Cluster:   body.Cluster,
		Sets:      body.Sets,
		Images:    body.Images,
		Feedback:  body.Feedback,
		ImageHint: body.ImageHint,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonURL, manifestURL := a.Batches.DocumentURLs(b.BatchID)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"batch":       b,
		"jsonUrl":     jsonURL,
		"manifestUrl": manifestURL,
	})
}

type updateBody struct {
	Sets []batch.ContentSet `json:"sets"`
}

// Update handles PUT /api/batch/{batchId}.
func (a *API) Update(w http.ResponseWriter, r *http.Request) {
	var body updateBody
	if !decodeBody(w, r, &body) {
		return
	}

	b, err := a.Batches.Update(r.Context(), chi.URLParam(r, "batchId"), body.Sets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"batchId":    b.BatchID,
		"setCount":   len(b.Sets),
		"imageCount": len(b.Images),
		"updatedAt":  b.UpdatedAt,
	})
}

// History handles GET /api/history.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	summaries, err := a.Batches.History(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "batches": summaries})
}

// GetBatch handles GET /api/batch/{batchId}.
func (a *API) GetBatch(w http.ResponseWriter, r *http.Request) {
	detail, err := a.Batches.Get(r.Context(), chi.URLParam(r, "batchId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "batch": detail})
}

// GetMeta handles GET /api/meta. ?refresh=1 bypasses the cache.
func (a *API) GetMeta(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "1"
	meta, err := a.Meta.Get(r.Context(), force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "meta": meta})
}

type renderBody struct {
	Set       batch.ContentSet `json:"set"`
	HeroURL   string           `json:"heroUrl,omitempty"`
	Corporate bool             `json:"corporate,omitempty"`
	// BatchID, when set, persists the rendered document next to the batch.
	BatchID    string `json:"batchId,omitempty"`
	ImageIndex int    `json:"imageIndex,omitempty"`
}

// RenderHTML handles POST /api/render-html. With a batchId the rendered
// document is also stored as email_Sxx_Ixx.html inside the batch folder.
func (a *API) RenderHTML(w http.ResponseWriter, r *http.Request) {
	var body renderBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Set.Subject == "" || body.Set.Body.Content == "" {
		writeError(w, &batch.ValidationError{Fields: map[string]string{
			"set": "subject and body.content are required",
		}})
		return
	}

	var html string
	if body.Corporate {
		html = render.Corporate(body.Set)
	} else {
		html = render.Email(body.Set, body.HeroURL)
	}

	resp := map[string]any{"ok": true, "html": html}
	if body.BatchID != "" && a.Store != nil {
		if !batch.IsValidBatchID(body.BatchID) {
			writeError(w, &batch.ValidationError{Fields: map[string]string{
				"batchId": "malformed batch id",
			}})
			return
		}
		imageIndex := body.ImageIndex
		if imageIndex <= 0 {
			imageIndex = body.Set.ID
		}
		key := fmt.Sprintf("batches/%s/email_S%02d_I%02d.html", body.BatchID, body.Set.ID, imageIndex)
		if err := a.Store.UploadBuffer(r.Context(), key, "text/html; charset=utf-8", []byte(html)); err != nil {
			slog.Warn("rendered html persistence failed", "key", key, "error", err)
		} else {
			resp["htmlUrl"] = a.Store.PublicURL(key)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type draftBody struct {
	BatchID   string `json:"batchId"`
	SetID     int    `json:"setId,omitempty"`
	Name      string `json:"name,omitempty"`
	HTML      string `json:"html,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Preheader string `json:"preheader,omitempty"`
	Image     string `json:"image,omitempty"`
	DryRun    bool   `json:"dryRun,omitempty"`
}

// PublishDraft handles POST /api/esp/draft. When html is omitted the
// draft is rendered from the stored batch set named by batchId and setId.
func (a *API) PublishDraft(w http.ResponseWriter, r *http.Request) {
	var body draftBody
	if !decodeBody(w, r, &body) {
		return
	}

	req := esp.PublishRequest{
		BatchID:   body.BatchID,
		Name:      body.Name,
		HTML:      body.HTML,
		Subject:   body.Subject,
		Preheader: body.Preheader,
		Image:     body.Image,
		DryRun:    body.DryRun,
	}

	if req.HTML == "" {
		if body.BatchID == "" || body.SetID == 0 {
			writeError(w, &batch.ValidationError{Fields: map[string]string{
				"html": "either html or batchId+setId is required",
			}})
			return
		}
		detail, err := a.Batches.Get(r.Context(), body.BatchID)
		if err != nil {
			writeError(w, err)
			return
		}
		set, heroURL, ok := findSet(detail, body.SetID)
		if !ok {
			writeError(w, &batch.ValidationError{Fields: map[string]string{
				"setId": "no such content set in batch",
			}})
			return
		}
		req.HTML = render.Corporate(set)
		if req.Subject == "" {
			req.Subject = set.Subject
		}
		if req.Preheader == "" {
			req.Preheader = set.Preheader
		}
		if req.Image == "" && heroURL != "" {
			req.Image = heroURL
		}
	}

	result, err := a.Publisher.PublishDraft(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

// findSet locates a content set by id and pairs it with the hero image
// at the same position when one exists.
func findSet(detail *batch.Detail, setID int) (batch.ContentSet, string, bool) {
	for i, set := range detail.Sets {
		if set.ID != setID {
			continue
		}
		heroURL := ""
		if i < len(detail.HeroURLs) {
			heroURL = detail.HeroURLs[i]
		} else if i < len(detail.Images) {
			heroURL = detail.Images[i].HeroURL
		}
		return set, heroURL, true
	}
	return batch.ContentSet{}, "", false
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz: ready only when object storage is wired.
func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded", "reason": "object storage not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
