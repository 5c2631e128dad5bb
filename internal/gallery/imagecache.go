// Package gallery fetches and caches treatment gallery images so repeated
// page loads don't refetch the same assets from storage.
package gallery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/esthetix/clinic-portal/pkg/logging"
)

const (
	defaultTTL         = time.Hour
	defaultConcurrency = 4
	maxImageBytes      = 10 << 20
)

type cacheEntry struct {
	data        []byte
	contentType string
	fetchedAt   time.Time
}

type inflight struct {
	done chan struct{}
	data []byte
	ct   string
	err  error
}

// ImageCache is an in-memory TTL cache over HTTP image fetches. Concurrent
// requests for the same URL are coalesced into one fetch, and total fetch
// concurrency is capped so a gallery page cannot stampede the image host.
type ImageCache struct {
	client *http.Client
	logger *logging.Logger
	ttl    time.Duration
	sem    chan struct{}

	mu       sync.Mutex
	entries  map[string]cacheEntry
	inflight map[string]*inflight

	now func() time.Time
}

// NewImageCache builds a cache with a one-hour TTL and four concurrent
// fetches. client may be nil, in which case http.DefaultClient is used.
func NewImageCache(client *http.Client, logger *logging.Logger) *ImageCache {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ImageCache{
		client:   client,
		logger:   logger,
		ttl:      defaultTTL,
		sem:      make(chan struct{}, defaultConcurrency),
		entries:  make(map[string]cacheEntry),
		inflight: make(map[string]*inflight),
		now:      time.Now,
	}
}

// Get returns the image bytes and content type for url, fetching on miss.
func (c *ImageCache) Get(ctx context.Context, url string) ([]byte, string, error) {
	c.mu.Lock()
	if entry, ok := c.entries[url]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.data, entry.contentType, nil
	}
	if fl, ok := c.inflight[url]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.data, fl.ct, fl.err
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	fl := &inflight{done: make(chan struct{})}
	c.inflight[url] = fl
	c.mu.Unlock()

	fl.data, fl.ct, fl.err = c.fetch(ctx, url)

	c.mu.Lock()
	delete(c.inflight, url)
	if fl.err == nil {
		c.entries[url] = cacheEntry{data: fl.data, contentType: fl.ct, fetchedAt: c.now()}
	}
	c.mu.Unlock()
	close(fl.done)

	return fl.data, fl.ct, fl.err
}

func (c *ImageCache) fetch(ctx context.Context, url string) ([]byte, string, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("gallery: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gallery: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("gallery: fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("gallery: read %s: %w", url, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Prefetch warms the cache for a list of URLs, fetching in batches bounded by
// the concurrency cap. Individual failures are logged and skipped.
func (c *ImageCache) Prefetch(ctx context.Context, urls []string) {
	var wg sync.WaitGroup
	for _, url := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if _, _, err := c.Get(ctx, u); err != nil {
				c.logger.Warn("image prefetch failed", "url", u, "error", err)
			}
		}(url)
	}
	wg.Wait()
}

// Invalidate drops a single URL from the cache.
func (c *ImageCache) Invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, url)
}

// Len reports how many entries are cached, expired ones included.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
