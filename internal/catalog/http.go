package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/models"
)

// HTTPResolver resolves entries against the console's catalog REST API:
//
//	GET {base}/platforms/{id}
//	GET {base}/types/{id}
//	GET {base}/protocols/{id}
//
// Pair it with a caching client (see client.NewCachingHTTPClient) so that the
// API's Cache-Control headers keep repeated lookups off the network.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

var _ Resolver = (*HTTPResolver)(nil)

// NewHTTPResolver creates a resolver for the catalog API at baseURL.
func NewHTTPResolver(baseURL string, client *http.Client) *HTTPResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPResolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

func (r *HTTPResolver) ResolvePlatform(ctx context.Context, id string) (*models.Platform, error) {
	var p models.Platform
	if err := r.get(ctx, "platforms", id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *HTTPResolver) ResolveType(ctx context.Context, id string) (*models.AccountType, error) {
	var t models.AccountType
	if err := r.get(ctx, "types", id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *HTTPResolver) ResolveProtocol(ctx context.Context, id string) (*models.Protocol, error) {
	var p models.Protocol
	if err := r.get(ctx, "protocols", id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *HTTPResolver) get(ctx context.Context, kind, id string, out any) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s id", ErrNotFound, kind)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", r.baseURL, kind, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("catalog request %s returned %s", endpoint, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog %s %q: %w", kind, id, err)
	}

	log.Debug().
		Str("kind", kind).
		Str("id", id).
		Str("cache", resp.Header.Get("X-From-Cache")).
		Msg("Resolved catalog entry")

	return nil
}
