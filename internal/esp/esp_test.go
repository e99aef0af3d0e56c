// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package esp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emailstudio/internal/render"
	"emailstudio/internal/storage"
)

func TestSuggestedName(t *testing.T) {
	tests := []struct {
		message string
		want    string
		ok      bool
	}{
		{`Asset names must be unique. Suggested name: hero_v01 (1)`, "hero_v01 (1)", true},
		{`Suggested name: plain`, "plain", true},
		{`Suggested name:   spaced out  `, "spaced out", true},
		{`names must be unique`, "", false},
		{``, "", false},
	}
	for _, tt := range tests {
		got, ok := SuggestedName(tt.message)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SuggestedName(%q) = %q, %v; want %q, %v", tt.message, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsDuplicateName(t *testing.T) {
	if !isDuplicateName(&APIError{Status: 400, Message: "Asset names within a category and asset type must be unique. Suggested name: x (1)"}) {
		t.Error("duplicate-name 400 not detected")
	}
	if isDuplicateName(&APIError{Status: 500, Message: "must be unique"}) {
		t.Error("500 should not count as duplicate name")
	}
	if isDuplicateName(&APIError{Status: 400, Message: "bad category"}) {
		t.Error("unrelated 400 should not count")
	}
}

// newAuthServer fakes the token endpoint and records fetch counts.
func newAuthServer(t *testing.T, calls *atomic.Int32, restBase string, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/token" {
			t.Errorf("auth path = %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("auth body: %v", err)
		}
		if body["grant_type"] != "client_credentials" {
			t.Errorf("grant_type = %q", body["grant_type"])
		}
		n := calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":      fmt.Sprintf("tok-%d", n),
			"expires_in":        expiresIn,
			"rest_instance_url": restBase,
		})
	}))
}

func TestTokenCacheReuseAndMargin(t *testing.T) {
	var calls atomic.Int32
	auth := newAuthServer(t, &calls, "https://rest.example.com", 3600)
	defer auth.Close()

	cache := newTokenCache(auth.URL, "id", "secret", "acct", &http.Client{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	first, err := cache.get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.restBase != "https://rest.example.com" {
		t.Errorf("restBase = %q", first.restBase)
	}

	// Within the valid window: cached.
	now = now.Add(30 * time.Minute)
	if _, err := cache.get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Fatalf("token fetched %d times inside validity", calls.Load())
	}

	// Inside the 60s expiry margin: refetched.
	now = now.Add(29*time.Minute + 30*time.Second)
	second, err := cache.get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("token not refreshed within expiry margin, calls = %d", calls.Load())
	}
	if second.accessToken == first.accessToken {
		t.Error("refreshed token should differ")
	}
}

func TestTokenCacheSingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok", "expires_in": 3600, "rest_instance_url": "https://rest.example.com",
		})
	}))
	defer auth.Close()

	cache := newTokenCache(auth.URL, "id", "secret", "acct", &http.Client{})
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.get(context.Background()); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("concurrent misses made %d auth calls, want 1", calls.Load())
	}
}

// newAPIServer fakes both auth and asset endpoints on one server.
func newAPIServer(t *testing.T, assets func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/token":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok", "expires_in": 3600, "rest_instance_url": srv.URL,
			})
		case "/asset/v1/content/assets":
			assets(w, r)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	return srv
}

func TestUploadImageRetriesOn401(t *testing.T) {
	var assetCalls atomic.Int32
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if assetCalls.Add(1) == 1 {
			http.Error(w, "token expired", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": 42, "fileProperties": map[string]any{"publishedURL": "https://img.example.com/a.jpg"},
		})
	})
	defer srv.Close()

	c := NewClient(srv.URL, "id", "secret", "acct", 0)
	id, url, err := c.UploadImage(context.Background(), "hero", "jpg", []byte("img"))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if id != 42 || url != "https://img.example.com/a.jpg" {
		t.Errorf("id=%d url=%q", id, url)
	}
	if assetCalls.Load() != 2 {
		t.Errorf("asset calls = %d, want refresh-and-retry", assetCalls.Load())
	}
}

func TestCreateDraftPayload(t *testing.T) {
	var got assetRequest
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode asset: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 7})
	})
	defer srv.Close()

	c := NewClient(srv.URL, "id", "secret", "acct", 123)
	html := "<html><head></head><body><h1>Title</h1><p>Line one.</p></body></html>"
	id, err := c.CreateDraft(context.Background(), "draft-name", html, "Subject", "Preheader")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if id != 7 {
		t.Errorf("id = %d", id)
	}
	if got.AssetType.Name != "htmlemail" || got.AssetType.ID != 208 {
		t.Errorf("assetType = %+v", got.AssetType)
	}
	if got.Category == nil || got.Category.ID != 123 {
		t.Errorf("category = %+v", got.Category)
	}
	if got.Views["subjectline"].Content != "Subject" || got.Views["preheader"].Content != "Preheader" {
		t.Errorf("views = %+v", got.Views)
	}
	text := got.Views["text"].Content
	if !strings.Contains(text, "Title") || !strings.Contains(text, "Line one.") {
		t.Errorf("text view = %q", text)
	}
	if strings.Contains(text, "<") {
		t.Errorf("text view contains markup: %q", text)
	}
}

func TestPublishDraftNotConfigured(t *testing.T) {
	p := NewPublisher(nil, nil)
	_, err := p.PublishDraft(context.Background(), PublishRequest{BatchID: "2026-03-15_103045"})
	if err != ErrNotConfigured {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
}

func TestPublishDraftDryRun(t *testing.T) {
	// Dry run must not hit the network at all; a client pointed at a dead
	// address proves it.
	c := NewClient("http://127.0.0.1:0", "id", "secret", "acct", 0)
	p := NewPublisher(c, nil)

	html := render.TemplateMark + `<html><body><img src="` + render.ImagePlaceholder + `"></body></html>`
	res, err := p.PublishDraft(context.Background(), PublishRequest{
		BatchID: "2026-03-15_103045", Name: "my-draft", HTML: html, DryRun: true,
	})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !res.DryRun {
		t.Error("DryRun flag not set")
	}
	if strings.Contains(res.PreviewHTML, render.ImagePlaceholder) {
		t.Error("placeholder not substituted in preview")
	}
	if !strings.Contains(res.PreviewHTML, dryRunURL) {
		t.Errorf("preview missing %s marker", dryRunURL)
	}
}

func TestPublishDraftUniqueNameChain(t *testing.T) {
	var names []string
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req assetRequest
		json.NewDecoder(r.Body).Decode(&req)
		names = append(names, req.Name)

		if req.AssetType.ID == 208 {
			json.NewEncoder(w).Encode(map[string]any{"id": 9})
			return
		}
		// First image upload collides, the suggested name succeeds.
		if req.Name == "my-draft_hero" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message": "Asset names must be unique. Suggested name: my-draft_hero (1)"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": 5, "fileProperties": map[string]any{"publishedURL": "https://img.example.com/h.jpg"},
		})
	})
	defer srv.Close()

	c := NewClient(srv.URL, "id", "secret", "acct", 0)
	p := NewPublisher(c, nil)

	html := `<html><head><meta charset="utf-8"></head><body><img src="` + render.ImagePlaceholder + `"></body></html>`
	res, err := p.PublishDraft(context.Background(), PublishRequest{
		BatchID: "2026-03-15_103045",
		Name:    "my-draft",
		HTML:    html,
		Subject: "S",
		Image:   "data:image/jpeg;base64," + base64JPEG(),
	})
	if err != nil {
		t.Fatalf("PublishDraft: %v", err)
	}
	if res.ImageName != "my-draft_hero (1)" {
		t.Errorf("ImageName = %q, want provider suggestion", res.ImageName)
	}
	if res.ImageURL != "https://img.example.com/h.jpg" {
		t.Errorf("ImageURL = %q", res.ImageURL)
	}
	if res.EmailID != 9 {
		t.Errorf("EmailID = %d", res.EmailID)
	}
	wantNames := []string{"my-draft_hero", "my-draft_hero (1)", "my-draft"}
	for i, want := range wantNames {
		if i >= len(names) || names[i] != want {
			t.Fatalf("asset names = %v, want %v", names, wantNames)
		}
	}
}

func base64JPEG() string {
	return "aGVyby1ieXRlcw==" // payload content is irrelevant to the API flow
}

// bucketStore is a minimal in-memory Store for publish tests.
type bucketStore struct {
	objects map[string][]byte
}

func (b *bucketStore) UploadJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.objects[key] = data
	return nil
}

func (b *bucketStore) UploadBuffer(ctx context.Context, key, contentType string, data []byte) error {
	b.objects[key] = data
	return nil
}

func (b *bucketStore) ReadJSON(ctx context.Context, key string, out any) error {
	data, err := b.ReadBuffer(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (b *bucketStore) ReadBuffer(ctx context.Context, key string) ([]byte, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (b *bucketStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, ok := b.objects[key]
	return ok, nil
}

func (b *bucketStore) ObjectUpdatedAt(ctx context.Context, key string) (time.Time, error) {
	return time.Time{}, storage.ErrNotFound
}

func (b *bucketStore) ListBatchIDs(ctx context.Context) ([]string, error) { return nil, nil }

func (b *bucketStore) ListFilesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}

func (b *bucketStore) ResolveReadURL(ctx context.Context, key string) (string, error) {
	return b.PublicURL(key), nil
}

func (b *bucketStore) PublicURL(key string) string {
	return "https://bucket.internal.invalid/" + key
}

func (b *bucketStore) ExtractKey(rawURL string) (string, bool) {
	rawURL = strings.SplitN(rawURL, "?", 2)[0]
	return strings.CutPrefix(rawURL, "https://bucket.internal.invalid/")
}

func TestPublishDraftReadsOwnStoreImage(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req assetRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.AssetType.ID == 208 {
			json.NewEncoder(w).Encode(map[string]any{"id": 11})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": 3, "fileProperties": map[string]any{"publishedURL": "https://img.example.com/h.jpg"},
		})
	})
	defer srv.Close()

	store := &bucketStore{objects: map[string][]byte{
		"batches/2026-03-15_103045/hero_v01.jpg": []byte("hero-bytes"),
	}}
	c := NewClient(srv.URL, "id", "secret", "acct", 0)
	p := NewPublisher(c, store)

	// The hero URL points at an unreachable host; only the store read can
	// satisfy it, cache-busting query string included.
	html := render.TemplateMark + `<html><head><meta charset="utf-8"></head><body><img src="` + render.ImagePlaceholder + `"></body></html>`
	res, err := p.PublishDraft(context.Background(), PublishRequest{
		BatchID: "2026-03-15_103045",
		Name:    "store-draft",
		HTML:    html,
		Subject: "S",
		Image:   "https://bucket.internal.invalid/batches/2026-03-15_103045/hero_v01.jpg?v=2026-03-15_103045",
	})
	if err != nil {
		t.Fatalf("PublishDraft: %v", err)
	}
	if res.ImageURL != "https://img.example.com/h.jpg" {
		t.Errorf("ImageURL = %q", res.ImageURL)
	}
	if res.EmailID != 11 {
		t.Errorf("EmailID = %d", res.EmailID)
	}
	// The audit receipt lands next to the batch.
	if _, ok := store.objects["batches/2026-03-15_103045/esp_receipt.json"]; !ok {
		t.Error("receipt not written")
	}
}
