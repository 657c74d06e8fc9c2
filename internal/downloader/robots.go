package downloader

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsCache fetches and caches robots.txt per origin (scheme://host[:port]).
type RobotsCache struct {
	ttl       time.Duration
	userAgent string
	client    *http.Client

	mu      sync.Mutex
	entries map[string]robotsEntry
}

type robotsEntry struct {
	fetchedAt time.Time
	data      *robotstxt.RobotsData
}

func NewRobotsCache(userAgent string, ttl time.Duration, client *http.Client) *RobotsCache {
	return &RobotsCache{
		ttl:       ttl,
		userAgent: userAgent,
		client:    client,
		entries:   make(map[string]robotsEntry),
	}
}

func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// Allowed reports whether the user agent may fetch rawURL. On any failure to
// retrieve or parse robots.txt it defaults to allow, matching the
// "absent or unreachable robots.txt means unrestricted" convention.
func (c *RobotsCache) Allowed(ctx context.Context, rawURL string) bool {
	org := origin(rawURL)
	if org == "" {
		return true
	}

	c.mu.Lock()
	entry, ok := c.entries[org]
	fresh := ok && time.Since(entry.fetchedAt) < c.ttl
	c.mu.Unlock()

	if !fresh {
		entry = robotsEntry{fetchedAt: time.Now(), data: c.fetch(ctx, org)}
		c.mu.Lock()
		c.entries[org] = entry
		c.mu.Unlock()
	}

	if entry.data == nil {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if path == "" {
		path = "/"
	}

	group := entry.data.FindGroup(c.userAgent)
	return group.Test(path)
}

func (c *RobotsCache) fetch(ctx context.Context, org string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(org, "/")+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}
