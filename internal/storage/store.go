// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage provides the S3-compatible object store behind batch
// persistence. It wraps the AWS SDK v2 configured for path-style access
// and exposes the Store interface the orchestrator depends on.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Store is the persistence surface used by batch generation and history.
type Store interface {
	// UploadJSON marshals v with indentation and stores it under key.
	UploadJSON(ctx context.Context, key string, v any) error
	// UploadBuffer stores raw bytes under key with the given content type.
	UploadBuffer(ctx context.Context, key, contentType string, data []byte) error
	// ReadJSON fetches key and unmarshals it into out.
	ReadJSON(ctx context.Context, key string, out any) error
	// ReadBuffer fetches key and returns its raw bytes.
	ReadBuffer(ctx context.Context, key string) ([]byte, error)
	// ObjectExists reports whether key exists.
	ObjectExists(ctx context.Context, key string) (bool, error)
	// ObjectUpdatedAt returns the last-modified time of key.
	ObjectUpdatedAt(ctx context.Context, key string) (time.Time, error)
	// ListBatchIDs lists batch directories newest-first.
	ListBatchIDs(ctx context.Context) ([]string, error)
	// ListFilesByPrefix lists all object keys under prefix.
	ListFilesByPrefix(ctx context.Context, prefix string) ([]string, error)
	// ExtractKey maps a public object URL back to its key. Reports false
	// for URLs that do not belong to this store.
	ExtractKey(rawURL string) (string, bool)
	// ResolveReadURL returns a browser-usable URL for key: the public URL
	// when the bucket is world-readable, a time-limited signed URL otherwise.
	ResolveReadURL(ctx context.Context, key string) (string, error)
	// PublicURL builds the unauthenticated URL for key.
	PublicURL(key string) string
}
