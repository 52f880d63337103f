package client

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// NewCachingHTTPClient creates an HTTP client that honours Cache-Control on responses.
// It backs the catalog HTTP resolver, whose platform, type and protocol entries change
// rarely. An empty cacheDir keeps the cache in memory.
func NewCachingHTTPClient(cacheDir string, timeout time.Duration) *http.Client {
	var cache httpcache.Cache = httpcache.NewMemoryCache()
	if cacheDir != "" {
		// persists across restarts
		cache = diskcache.New(cacheDir)
	}

	transport := httpcache.NewTransport(cache)
	transport.MarkCachedResponses = true

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// NewInMemoryCachingHTTPClient creates an HTTP client with in-memory caching only.
// Suitable for testing or when disk caching is not desired.
func NewInMemoryCachingHTTPClient() *http.Client {
	return NewCachingHTTPClient("", 0)
}

// IsCachedResponse reports whether resp was served from the cache.
func IsCachedResponse(resp *http.Response) bool {
	return resp.Header.Get(httpcache.XFromCache) == "1"
}
