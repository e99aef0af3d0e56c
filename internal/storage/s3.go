// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// URL styles for public links.
const (
	URLStyleDirect  = "direct"
	URLStyleConsole = "console"
)

const signedURLExpiry = time.Hour

// Client is the S3 implementation of Store. All keys are namespaced
// under a configurable prefix so several environments can share a bucket.
type Client struct {
	s3         *s3.Client
	presigner  *s3.PresignClient
	bucket     string
	endpoint   string
	prefix     string
	publicRead bool
	urlStyle   string
	consoleURL string

	aclUnsupported atomic.Bool
}

// Options configures a storage client.
type Options struct {
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Prefix     string
	PublicRead bool
	URLStyle   string // direct or console
	ConsoleURL string // console base, used when URLStyle is console
}

// New creates an S3 storage client with path-style addressing (required
// by MinIO/CEPH). Returns (nil, nil) if endpoint or credentials are empty,
// allowing the app to start without storage.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, nil
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required when endpoint is set")
	}

	endpoint := strings.TrimRight(opts.Endpoint, "/")

	s3Client := s3.New(s3.Options{
		Region:       opts.Region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		UsePathStyle: true,
	})

	return &Client{
		s3:         s3Client,
		presigner:  s3.NewPresignClient(s3Client),
		bucket:     opts.Bucket,
		endpoint:   endpoint,
		prefix:     strings.Trim(opts.Prefix, "/"),
		publicRead: opts.PublicRead,
		urlStyle:   opts.URLStyle,
		consoleURL: strings.TrimRight(opts.ConsoleURL, "/"),
	}, nil
}

// withPrefix namespaces a relative key under the configured prefix.
func (c *Client) withPrefix(key string) string {
	key = strings.TrimLeft(key, "/")
	if c.prefix == "" {
		return key
	}
	return c.prefix + "/" + key
}

// UploadJSON stores v under key as indented JSON.
func (c *Client) UploadJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage marshal %s: %w", key, err)
	}
	return c.UploadBuffer(ctx, key, "application/json", data)
}

// UploadBuffer stores raw bytes under key. When the bucket is configured
// for public reads the object gets a public-read ACL; buckets that reject
// ACLs (bucket-owner-enforced) degrade to a plain put.
func (c *Client) UploadBuffer(ctx context.Context, key, contentType string, data []byte) error {
	full := c.withPrefix(key)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(full),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	if c.publicRead && !c.aclUnsupported.Load() {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}

	_, err := c.s3.PutObject(ctx, input)
	if err != nil && input.ACL != "" && strings.Contains(err.Error(), "AccessControlListNotSupported") {
		// Bucket enforces ownership; remember and retry without the ACL.
		c.aclUnsupported.Store(true)
		slog.Warn("bucket rejects object ACLs, uploading without public-read", "bucket", c.bucket)
		input.ACL = ""
		_, err = c.s3.PutObject(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", c.bucket, full, err)
	}
	return nil
}

// ReadJSON fetches key and decodes it into out.
func (c *Client) ReadJSON(ctx context.Context, key string, out any) error {
	data, err := c.ReadBuffer(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("storage decode %s: %w", key, err)
	}
	return nil
}

// ReadBuffer fetches key and returns its raw bytes. A missing object
// yields ErrNotFound.
func (c *Client) ReadBuffer(ctx context.Context, key string) ([]byte, error) {
	full := c.withPrefix(key)
	output, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("s3 download %s/%s: %w", c.bucket, full, err)
	}
	defer output.Body.Close()
	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body %s/%s: %w", c.bucket, full, err)
	}
	return data, nil
}

// ObjectExists reports whether key exists in the bucket.
func (c *Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	full := c.withPrefix(key)
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head %s/%s: %w", c.bucket, full, err)
	}
	return true, nil
}

// ObjectUpdatedAt returns the last-modified time of key.
func (c *Client) ObjectUpdatedAt(ctx context.Context, key string) (time.Time, error) {
	full := c.withPrefix(key)
	output, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return time.Time{}, fmt.Errorf("s3 head %s/%s: %w", c.bucket, full, err)
	}
	if output.LastModified == nil {
		return time.Time{}, nil
	}
	return *output.LastModified, nil
}

// ListBatchIDs enumerates batch directories under batches/ using
// delimiter listing, returning the IDs sorted newest-first. Batch IDs
// are timestamp-shaped so a lexicographic sort is a chronological one.
func (c *Client) ListBatchIDs(ctx context.Context) ([]string, error) {
	basePrefix := c.withPrefix("batches/")
	var ids []string

	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(basePrefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s/%s: %w", c.bucket, basePrefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			id := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, basePrefix), "/")
			if id != "" {
				ids = append(ids, id)
			}
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// ListFilesByPrefix enumerates every object key under prefix, returned
// relative to the configured namespace prefix.
func (c *Client) ListFilesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	basePrefix := c.withPrefix(prefix)
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(basePrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s/%s: %w", c.bucket, basePrefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			key := *obj.Key
			if c.prefix != "" {
				key = strings.TrimPrefix(key, c.prefix+"/")
			}
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// ResolveReadURL returns the public URL when the bucket is world-readable,
// otherwise a signed GET URL valid for an hour.
func (c *Client) ResolveReadURL(ctx context.Context, key string) (string, error) {
	if c.publicRead && !c.aclUnsupported.Load() {
		return c.PublicURL(key), nil
	}
	return c.SignedReadURL(ctx, key, signedURLExpiry)
}

// SignedReadURL generates a pre-signed GET URL for key.
func (c *Client) SignedReadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	full := c.withPrefix(key)
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(full),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s/%s: %w", c.bucket, full, err)
	}
	return req.URL, nil
}

// PublicURL builds the unauthenticated URL for key. The console style
// produces a browser link into the storage console instead of a direct
// object URL, useful for buckets fronted by MinIO console access.
func (c *Client) PublicURL(key string) string {
	full := c.withPrefix(key)
	if c.urlStyle == URLStyleConsole && c.consoleURL != "" {
		return c.consoleURL + "/browser/" + c.bucket + "/" + url.PathEscape(full)
	}
	return c.endpoint + "/" + c.bucket + "/" + full
}

// ExtractKey extracts the prefix-relative object key from a direct public
// URL, ignoring any query string (hero URLs carry a cache-busting ?v=).
// Returns ("", false) when the URL does not belong to this store.
func (c *Client) ExtractKey(rawURL string) (string, bool) {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	base := c.endpoint + "/" + c.bucket + "/"
	if !strings.HasPrefix(rawURL, base) {
		return "", false
	}
	full := rawURL[len(base):]
	if c.prefix != "" {
		if !strings.HasPrefix(full, c.prefix+"/") {
			return "", false
		}
		full = full[len(c.prefix)+1:]
	}
	return full, true
}
