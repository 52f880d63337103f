package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/mailroster/internal/client"
	"github.com/wolfeidau/mailroster/internal/models"
)

func newCatalogAPI(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /platforms/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.PathValue("id") != "workspace" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=300")
		_ = json.NewEncoder(w).Encode(models.Platform{ID: "workspace", Name: "Hosted Workspace", AllowsReassignment: true})
	})
	mux.HandleFunc("GET /types/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(models.AccountType{ID: r.PathValue("id"), Name: "Mailbox"})
	})
	mux.HandleFunc("GET /protocols/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPResolver(t *testing.T) {
	var hits atomic.Int32
	srv := newCatalogAPI(t, &hits)
	ctx := context.Background()

	r := NewHTTPResolver(srv.URL+"/", client.NewInMemoryCachingHTTPClient())

	t.Run("resolves platform", func(t *testing.T) {
		p, err := r.ResolvePlatform(ctx, "workspace")
		require.NoError(t, err)
		require.Equal(t, "Hosted Workspace", p.Name)
		require.True(t, p.AllowsReassignment)
	})

	t.Run("cacheable responses are served from cache", func(t *testing.T) {
		before := hits.Load()
		_, err := r.ResolvePlatform(ctx, "workspace")
		require.NoError(t, err)
		require.Equal(t, before, hits.Load())
	})

	t.Run("not found", func(t *testing.T) {
		_, err := r.ResolvePlatform(ctx, "unknown")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("resolves type", func(t *testing.T) {
		typ, err := r.ResolveType(ctx, "mailbox")
		require.NoError(t, err)
		require.Equal(t, "mailbox", typ.ID)
	})

	t.Run("server error is not a not-found", func(t *testing.T) {
		_, err := r.ResolveProtocol(ctx, "imap")
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := r.ResolveType(ctx, "")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
