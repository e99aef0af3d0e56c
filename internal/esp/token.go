// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package esp publishes email drafts and image assets to a Salesforce
// Marketing Cloud compatible provider. Access tokens are cached until
// shortly before expiry and refreshed through a single flight so bursts
// of publishes cost one auth round-trip.
package esp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// expiryMargin is subtracted from the provider TTL so a token is never
// used in the last minute of its life.
const expiryMargin = 60 * time.Second

type token struct {
	accessToken string
	restBase    string
	expiresAt   time.Time
}

type tokenCache struct {
	authURL      string
	clientID     string
	clientSecret string
	accountID    string
	http         *http.Client
	now          func() time.Time

	mu    sync.Mutex
	cur   token
	group singleflight.Group
}

func newTokenCache(authURL, clientID, clientSecret, accountID string, httpClient *http.Client) *tokenCache {
	return &tokenCache{
		authURL:      strings.TrimRight(authURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		accountID:    accountID,
		http:         httpClient,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken     string `json:"access_token"`
	ExpiresIn       int    `json:"expires_in"`
	RESTInstanceURL string `json:"rest_instance_url"`
}

// get returns a valid token, fetching one when the cache is empty or
// within the expiry margin.
func (c *tokenCache) get(ctx context.Context) (token, error) {
	c.mu.Lock()
	if c.cur.accessToken != "" && c.now().Before(c.cur.expiresAt) {
		t := c.cur
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("token", func() (any, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return token{}, err
	}
	return v.(token), nil
}

func (c *tokenCache) fetch(ctx context.Context) (token, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"account_id":    c.accountID,
	})
	if err != nil {
		return token{}, fmt.Errorf("esp token marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/v2/token", bytes.NewReader(payload))
	if err != nil {
		return token{}, fmt.Errorf("esp token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return token{}, fmt.Errorf("esp auth: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return token{}, fmt.Errorf("esp auth read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return token{}, fmt.Errorf("esp auth responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded tokenResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return token{}, fmt.Errorf("esp auth payload: %w", err)
	}
	if decoded.AccessToken == "" || decoded.RESTInstanceURL == "" {
		return token{}, fmt.Errorf("esp auth payload missing access_token or rest_instance_url")
	}

	t := token{
		accessToken: decoded.AccessToken,
		restBase:    strings.TrimRight(decoded.RESTInstanceURL, "/"),
		expiresAt:   c.now().Add(time.Duration(decoded.ExpiresIn)*time.Second - expiryMargin),
	}
	c.mu.Lock()
	c.cur = t
	c.mu.Unlock()
	return t, nil
}

// invalidate drops the cached token after an authorization failure.
func (c *tokenCache) invalidate() {
	c.mu.Lock()
	c.cur = token{}
	c.mu.Unlock()
}
