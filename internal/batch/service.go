// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"emailstudio/internal/ai"
	"emailstudio/internal/catalog"
	"emailstudio/internal/engine"
	"emailstudio/internal/sanitize"
	"emailstudio/internal/storage"
)

// Bounds on the number of content sets and hero images per batch.
// Out-of-range requests are clamped rather than rejected; an omitted
// image count defaults to two variants.
const (
	minPerBatch   = 1
	maxPerBatch   = 5
	defaultImages = 2
)

// ErrConflict signals that the stored batch state cannot support the
// requested update (missing or unrecoverable documents).
var ErrConflict = errors.New("batch state conflict")

// ErrNoContent signals that the text engine produced nothing usable.
var ErrNoContent = errors.New("engine returned no usable content sets")

// ValidationError carries per-field failures for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HeroGenerator produces hero images. The concrete implementation never
// fails outright; it degrades to a fallback banner.
type HeroGenerator interface {
	GenerateHero(ctx context.Context, spec ai.HeroSpec) *ai.Hero
}

// TextGenerator produces content variants.
type TextGenerator interface {
	GenerateContentSets(ctx context.Context, req engine.Request) ([]engine.Variant, error)
}

// Service is the batch orchestrator.
type Service struct {
	store  storage.Store
	heroes HeroGenerator
	text   TextGenerator
	env    string
	now    func() time.Time
}

// NewService wires the orchestrator. store may be nil in storage-less
// development mode; generation then fails with a clear error. env is
// recorded in each batch manifest.
func NewService(store storage.Store, heroes HeroGenerator, text TextGenerator, env string) *Service {
	return &Service{store: store, heroes: heroes, text: text, env: env, now: time.Now}
}

// GenerateRequest is a request for a new content batch. Sets and Images
// are clamped independently; a zero Images asks for the default count.
type GenerateRequest struct {
	Campaign  string
	Cluster   string
	Sets      int
	Images    int
	Feedback  *engine.Feedback
	ImageHint string
}

func (s *Service) validateGenerate(req GenerateRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Campaign) == "" {
		fields["campaign"] = "is required"
	} else if !catalog.IsValidCampaign(req.Campaign) {
		fields["campaign"] = "unknown campaign"
	}
	if strings.TrimSpace(req.Cluster) == "" {
		fields["cluster"] = "is required"
	} else if !catalog.IsValidCluster(req.Cluster) {
		fields["cluster"] = "unknown cluster"
	}
	if len(fields) == 0 && !catalog.IsClusterAllowedForCampaign(req.Campaign, req.Cluster) {
		fields["cluster"] = fmt.Sprintf("not available for campaign %q", req.Campaign)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Generate runs the full pipeline: validate, generate and store heroes,
// generate text, sanitize, persist. Heroes are uploaded as soon as each
// one is ready so a later failure still leaves the images in the bucket
// for inspection.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Batch, error) {
	if err := s.validateGenerate(req); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	sets := clampCount(req.Sets)
	imageCount := req.Images
	if imageCount == 0 {
		imageCount = defaultImages
	}
	imageCount = clampCount(imageCount)

	// Without an explicit hint, operator feedback steers the image too.
	hint := strings.TrimSpace(req.ImageHint)
	if hint == "" && req.Feedback != nil {
		hint = req.Feedback.BodyContent
	}

	now := s.now()
	createdAt := now.UTC()
	batchID := NewBatchID(now)
	log := slog.With("batchId", batchID, "campaign", req.Campaign, "cluster", req.Cluster)
	log.Info("generating batch", "sets", sets, "images", imageCount)

	images := make([]ImageAsset, 0, imageCount)
	for i := 1; i <= imageCount; i++ {
		hero := s.heroes.GenerateHero(ctx, ai.HeroSpec{
			Campaign: req.Campaign,
			Cluster:  req.Cluster,
			Hint:     hint,
			Index:    i,
		})

		fileName := fmt.Sprintf("hero_v%02d.jpg", i)
		if hero.Raw != nil {
			rawName := fmt.Sprintf("hero_v%02d.raw.jpg", i)
			if err := s.store.UploadBuffer(ctx, heroKey(batchID, rawName), "image/jpeg", hero.Raw); err != nil {
				return nil, fmt.Errorf("store raw hero %d: %w", i, err)
			}
		}
		if err := s.store.UploadBuffer(ctx, heroKey(batchID, fileName), "image/jpeg", hero.Normalized); err != nil {
			return nil, fmt.Errorf("store hero %d: %w", i, err)
		}

		// Cache-busted so a regenerated batch id never serves a stale CDN
		// copy of an earlier hero.
		images = append(images, ImageAsset{
			FileName: fileName,
			HeroURL:  s.store.PublicURL(heroKey(batchID, fileName)) + "?v=" + batchID,
			Meta:     hero.Meta,
		})
		log.Info("hero stored", "file", fileName, "fallback", hero.Meta.Fallback)

		// Abort between heroes if the client went away; uploads already
		// made are deliberately left in place.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation aborted: %w", err)
		}
	}

	engineReq := engine.Request{
		Campaign: req.Campaign,
		Cluster:  req.Cluster,
		Sets:     sets,
		Feedback: mergeHeroHint(req.Feedback, images[0].HeroURL),
	}
	variants, err := s.text.GenerateContentSets(ctx, engineReq)
	if err != nil {
		return nil, err
	}

	contentSets := sanitizeVariants(variants)
	if len(contentSets) == 0 {
		return nil, ErrNoContent
	}

	b := &Batch{
		BatchID:   batchID,
		Type:      BatchType,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Campaign:  req.Campaign,
		Cluster:   req.Cluster,
		Sets:      contentSets,
		Images:    images,
	}
	if err := s.persist(ctx, b); err != nil {
		return nil, err
	}
	log.Info("batch persisted", "sets", len(contentSets), "images", len(images))
	return b, nil
}

// DocumentURLs returns the public URLs of the batch document and its
// manifest, for clients that want to link straight into the bucket.
func (s *Service) DocumentURLs(batchID string) (jsonURL, manifestURL string) {
	if s.store == nil {
		return "", ""
	}
	return s.store.PublicURL(batchKey(batchID)), s.store.PublicURL(manifestKey(batchID))
}

// mergeHeroHint appends the stored hero URL to the engine feedback so
// generated copy can reference the image verbatim.
func mergeHeroHint(fb *engine.Feedback, heroURL string) *engine.Feedback {
	merged := engine.Feedback{}
	if fb != nil {
		merged = *fb
	}
	hint := "Hero image URL (use as-is): " + heroURL
	if merged.BodyContent == "" {
		merged.BodyContent = hint
	} else {
		merged.BodyContent += "\n" + hint
	}
	return &merged
}

// sanitizeVariants runs the full sanitizer over engine output and maps
// it into persisted content sets. Variants that end up without a subject
// or body are dropped.
func sanitizeVariants(variants []engine.Variant) []ContentSet {
	var out []ContentSet
	for _, v := range variants {
		clean := sanitize.SanitizeCopy(sanitize.Copy{
			Subject:   v.Subject,
			Preheader: v.Preheader,
			Body:      v.Body.Content,
			CTA:       v.CTA,
		})
		if clean.Subject == "" || clean.Body == "" {
			continue
		}
		set := ContentSet{
			ID:        v.ID,
			Subject:   clean.Subject,
			Preheader: clean.Preheader,
			Body: ContentBody{
				Title:    sanitize.SanitizeHeading(v.Body.Title, clean.Subject),
				Subtitle: sanitize.SanitizeSubheading(deref(v.Body.Subtitle), clean.Preheader),
				Content:  clean.Body,
			},
			CTA: clean.CTA,
		}
		out = append(out, set)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func clampCount(n int) int {
	if n < minPerBatch {
		return minPerBatch
	}
	if n > maxPerBatch {
		return maxPerBatch
	}
	return n
}

func (s *Service) persist(ctx context.Context, b *Batch) error {
	if err := s.store.UploadJSON(ctx, batchKey(b.BatchID), b); err != nil {
		return fmt.Errorf("store batch document: %w", err)
	}
	manifest := Manifest{
		BatchID:     b.BatchID,
		Type:        b.Type,
		CreatedAt:   b.CreatedAt,
		Campaign:    b.Campaign,
		Cluster:     b.Cluster,
		Environment: s.env,
		TotalSets:   len(b.Sets),
		TotalImages: len(b.Images),
		Images:      manifestImages(b.Images),
	}
	if err := s.store.UploadJSON(ctx, manifestKey(b.BatchID), manifest); err != nil {
		return fmt.Errorf("store batch manifest: %w", err)
	}
	return nil
}

func manifestImages(images []ImageAsset) []ManifestImage {
	out := make([]ManifestImage, len(images))
	for i, img := range images {
		out[i] = ManifestImage{
			FileName:       img.FileName,
			SizeDeclared:   img.Meta.Size,
			SizeNormalized: img.Meta.SizeNormalized,
		}
	}
	return out
}

// Update replaces the content sets of an existing batch. Operator edits
// get a light re-sanitize (trim, clamp, disclaimer) that respects manual
// wording instead of rewriting it. When batch.json is gone the manifest
// is used to rebuild the document; with both gone the update conflicts.
func (s *Service) Update(ctx context.Context, batchID string, sets []ContentSet) (*Batch, error) {
	if !IsValidBatchID(batchID) {
		return nil, &ValidationError{Fields: map[string]string{"batchId": "malformed batch id"}}
	}
	if len(sets) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"sets": "must not be empty"}}
	}
	if s.store == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	cleaned := make([]ContentSet, 0, len(sets))
	fields := map[string]string{}
	for i, set := range sets {
		clean, err := resanitizeSet(set)
		if err != nil {
			fields[fmt.Sprintf("sets[%d]", i)] = err.Error()
			continue
		}
		cleaned = append(cleaned, clean)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	b, err := s.load(ctx, batchID)
	if err != nil {
		return nil, err
	}

	b.Sets = cleaned
	b.UpdatedAt = s.now().UTC()
	if err := s.persist(ctx, b); err != nil {
		return nil, err
	}
	slog.Info("batch updated", "batchId", batchID, "sets", len(cleaned))
	return b, nil
}

// resanitizeSet applies the light pass for operator-edited copy.
func resanitizeSet(set ContentSet) (ContentSet, error) {
	set.Subject = strings.TrimSpace(set.Subject)
	set.Preheader = strings.TrimSpace(set.Preheader)
	set.Body.Title = strings.TrimSpace(set.Body.Title)
	set.Body.Content = strings.TrimSpace(set.Body.Content)
	set.CTA = strings.TrimSpace(set.CTA)

	if set.ID <= 0 {
		return set, errors.New("id must be positive")
	}
	if set.Subject == "" {
		return set, errors.New("subject must not be empty")
	}
	if set.Body.Title == "" {
		return set, errors.New("body.title must not be empty")
	}
	if set.Body.Content == "" {
		return set, errors.New("body.content must not be empty")
	}

	set.Subject = sanitize.Clamp(set.Subject, sanitize.MaxSubjectLen)
	set.Preheader = sanitize.Clamp(set.Preheader, sanitize.MaxPreheaderLen)
	set.Body.Title = sanitize.Clamp(set.Body.Title, sanitize.MaxTitleLen)
	if set.Body.Subtitle != nil {
		sub := sanitize.Clamp(strings.TrimSpace(*set.Body.Subtitle), sanitize.MaxSubtitleLen)
		if sub == "" {
			set.Body.Subtitle = nil
		} else {
			set.Body.Subtitle = &sub
		}
	}
	set.Body.Content = sanitize.EnsureDisclaimer(set.Body.Content)
	return set, nil
}

// load reads the batch document, reconstructing it from the manifest when
// batch.json is missing or corrupted.
func (s *Service) load(ctx context.Context, batchID string) (*Batch, error) {
	var b Batch
	err := s.store.ReadJSON(ctx, batchKey(batchID), &b)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("batch document unreadable, trying manifest", "batchId", batchID, "error", err)
	}

	var m Manifest
	if mErr := s.store.ReadJSON(ctx, manifestKey(batchID), &m); mErr != nil {
		if errors.Is(err, storage.ErrNotFound) && errors.Is(mErr, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: batch %s has no recoverable state", ErrConflict, batchID)
		}
		return nil, fmt.Errorf("%w: batch %s manifest unreadable", ErrConflict, batchID)
	}

	slog.Warn("rebuilding batch document from manifest", "batchId", batchID)
	rebuilt := &Batch{
		BatchID:   m.BatchID,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.CreatedAt,
		Campaign:  m.Campaign,
		Cluster:   m.Cluster,
	}
	for _, mi := range m.Images {
		rebuilt.Images = append(rebuilt.Images, ImageAsset{
			FileName: mi.FileName,
			HeroURL:  s.store.PublicURL(heroKey(batchID, mi.FileName)),
			Meta:     ai.HeroMeta{Size: mi.SizeDeclared, SizeNormalized: mi.SizeNormalized},
		})
	}
	if len(rebuilt.Images) == 0 {
		rebuilt.Images = s.discoverHeroes(ctx, batchID)
	}
	return rebuilt, nil
}

var heroFilePattern = regexp.MustCompile(`^hero_v\d{2}\.jpg$`)

// discoverHeroes lists the batch folder for hero files when the manifest
// carries no image records (manifests written before sizes were tracked).
func (s *Service) discoverHeroes(ctx context.Context, batchID string) []ImageAsset {
	keys, err := s.store.ListFilesByPrefix(ctx, "batches/"+batchID+"/")
	if err != nil {
		slog.Warn("hero discovery listing failed", "batchId", batchID, "error", err)
		return nil
	}
	var images []ImageAsset
	for _, key := range keys {
		name := path.Base(key)
		if !heroFilePattern.MatchString(name) {
			continue
		}
		images = append(images, ImageAsset{
			FileName: name,
			HeroURL:  s.store.PublicURL(heroKey(batchID, name)),
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].FileName < images[j].FileName })
	return images
}

// History lists stored batches newest-first, optionally filtered by type.
// A batch whose document is missing or corrupted still gets an entry:
// the count falls back to the stored image count (zero when nothing is
// readable) and the timestamp to the object's last-modified time.
func (s *Service) History(ctx context.Context, typ string) ([]Summary, error) {
	if s.store == nil {
		return []Summary{}, nil
	}
	ids, err := s.store.ListBatchIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		var b Batch
		if err := s.store.ReadJSON(ctx, batchKey(id), &b); err != nil {
			slog.Warn("batch document unreadable in history", "batchId", id, "error", err)
			b = Batch{BatchID: id, Type: BatchType}
		}
		if b.BatchID == "" {
			b.BatchID = id
		}
		if typ != "" && b.Type != typ {
			continue
		}

		count := len(b.Sets)
		if count == 0 {
			count = len(b.Images)
		}
		createdAt := b.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.objectTime(ctx, id)
		}
		summaries = append(summaries, Summary{
			BatchID:   b.BatchID,
			Type:      b.Type,
			CreatedAt: createdAt,
			Campaign:  b.Campaign,
			Cluster:   b.Cluster,
			Count:     count,
		})
	}
	return summaries, nil
}

// objectTime recovers a creation timestamp from object metadata when the
// batch document carries none.
func (s *Service) objectTime(ctx context.Context, batchID string) time.Time {
	for _, key := range []string{batchKey(batchID), manifestKey(batchID)} {
		if ts, err := s.store.ObjectUpdatedAt(ctx, key); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Get returns one batch with browser-resolved hero URLs.
func (s *Service) Get(ctx context.Context, batchID string) (*Detail, error) {
	if !IsValidBatchID(batchID) {
		return nil, &ValidationError{Fields: map[string]string{"batchId": "malformed batch id"}}
	}
	if s.store == nil {
		return nil, storage.ErrNotFound
	}

	var b Batch
	if err := s.store.ReadJSON(ctx, batchKey(batchID), &b); err != nil {
		return nil, err
	}

	detail := &Detail{Batch: b, HeroURLs: make([]string, 0, len(b.Images))}
	for _, img := range b.Images {
		u, err := s.store.ResolveReadURL(ctx, heroKey(batchID, img.FileName))
		if err != nil {
			slog.Warn("hero URL resolution failed", "batchId", batchID, "file", img.FileName, "error", err)
			u = img.HeroURL
		}
		detail.HeroURLs = append(detail.HeroURLs, u)
	}
	return detail, nil
}
