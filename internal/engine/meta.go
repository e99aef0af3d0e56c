// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Meta is the engine's advertised catalog and prompt knowledge. Only the
// first three fields are guaranteed; the rest are present when the engine
// exposes its prompt-assembly tables.
type Meta struct {
	Campaigns        []string            `json:"campaigns"`
	Clusters         []string            `json:"clusters"`
	CampaignClusters map[string][]string `json:"campaignClusters"`
	Benefits         map[string][]string `json:"benefits,omitempty"`
	CTAs             map[string][]string `json:"ctas,omitempty"`
	Subjects         map[string][]string `json:"subjects,omitempty"`
	ClusterTone      map[string]string   `json:"clusterTone,omitempty"`
}

// Meta fetches the engine's metadata document.
func (c *Client) Meta(ctx context.Context) (*Meta, error) {
	ctx, cancel := context.WithTimeout(ctx, metaTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/meta", nil)
	if err != nil {
		return nil, fmt.Errorf("engine meta request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &StatusError{Status: http.StatusBadGateway, Message: fmt.Sprintf("engine meta network/timeout error: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &StatusError{Status: http.StatusBadGateway, Message: fmt.Sprintf("engine meta read body: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("engine meta responded %d: %s", resp.StatusCode, truncate(string(body), 500)),
		}
	}

	var meta Meta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, &SchemaError{Issues: []string{fmt.Sprintf("meta: invalid JSON: %v", err)}}
	}
	return &meta, nil
}

// metaTTL is how long a fetched Meta stays fresh.
const metaTTL = 5 * time.Minute

// MetaCache is a TTL cache in front of Client.Meta. Concurrent misses
// collapse into a single upstream fetch.
type MetaCache struct {
	client *Client
	ttl    time.Duration

	mu        sync.Mutex
	value     *Meta
	fetchedAt time.Time
	group     singleflight.Group
}

// NewMetaCache wraps client with the default TTL.
func NewMetaCache(client *Client) *MetaCache {
	return &MetaCache{client: client, ttl: metaTTL}
}

// Get returns the cached Meta, refetching when stale or when force is set.
func (m *MetaCache) Get(ctx context.Context, force bool) (*Meta, error) {
	m.mu.Lock()
	if !force && m.value != nil && time.Since(m.fetchedAt) < m.ttl {
		v := m.value
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	v, err, shared := m.group.Do("meta", func() (any, error) {
		meta, err := m.client.Meta(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.value = meta
		m.fetchedAt = time.Now()
		m.mu.Unlock()
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("engine meta fetch shared across callers")
	}
	return v.(*Meta), nil
}
