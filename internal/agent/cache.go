package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lupppig/deliverynotify/internal/httpclient"
)

const CachePrefix = "deliverynotify-"

// DefaultShell is the app shell pre-cached on install.
var DefaultShell = []string{
	"/",
	"/offline",
	"/manifest.json",
	"/icons/icon-192x192.png",
	"/icons/badge-72x72.png",
}

func CacheName(version string) string {
	return CachePrefix + version
}

// Fetcher loads one shell resource.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// ShellCache holds shell resources keyed by cache name.
type ShellCache struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

func NewShellCache() *ShellCache {
	return &ShellCache{buckets: make(map[string]map[string][]byte)}
}

func (c *ShellCache) Put(name, path string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[name]
	if !ok {
		b = make(map[string][]byte)
		c.buckets[name] = b
	}
	b[path] = body
}

func (c *ShellCache) Get(name, path string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.buckets[name][path]
	return body, ok
}

func (c *ShellCache) Len(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buckets[name])
}

func (c *ShellCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.buckets))
	for name := range c.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EvictExcept drops every cache this agent owns other than keep and
// returns the evicted names.
func (c *ShellCache) EvictExcept(keep string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var evicted []string
	for name := range c.buckets {
		if name != keep && strings.HasPrefix(name, CachePrefix) {
			delete(c.buckets, name)
			evicted = append(evicted, name)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Clear drops all caches and returns how many there were.
func (c *ShellCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.buckets)
	c.buckets = make(map[string]map[string][]byte)
	return n
}

// HTTPFetcher pulls shell resources from the app origin.
type HTTPFetcher struct {
	client  *httpclient.Client
	baseURL string
}

func NewHTTPFetcher(client *httpclient.Client, baseURL string) *HTTPFetcher {
	return &HTTPFetcher{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	resp, err := f.client.Get(ctx, f.baseURL+path)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}

// HTTPAnalytics posts close reports to a collector endpoint.
type HTTPAnalytics struct {
	client *httpclient.Client
	url    string
}

func NewHTTPAnalytics(client *httpclient.Client, url string) *HTTPAnalytics {
	return &HTTPAnalytics{client: client, url: url}
}

func (a *HTTPAnalytics) ReportClose(ctx context.Context, e CloseEvent) error {
	resp, err := a.client.PostJSON(ctx, a.url, e)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("analytics: status %d", resp.StatusCode)
	}
	return nil
}
