package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
)

func TestRetry(t *testing.T) {
	ctx := context.Background()
	conflict := connect.NewError(connect.CodeAborted, errors.New("ConcurrentModification"))

	t.Run("retries conflicts until success", func(t *testing.T) {
		calls := 0
		got, err := Retry(ctx, 5, func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", conflict
			}
			return "ok", nil
		})
		require.NoError(t, err)
		require.Equal(t, "ok", got)
		require.Equal(t, 3, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		rejected := connect.NewError(connect.CodeFailedPrecondition, errors.New("AlreadyInactive"))
		_, err := Retry(ctx, 5, func(ctx context.Context) (string, error) {
			calls++
			return "", rejected
		})
		require.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
		require.Equal(t, 1, calls)
	})

	t.Run("gives up after max tries", func(t *testing.T) {
		calls := 0
		_, err := Retry(ctx, 2, func(ctx context.Context) (string, error) {
			calls++
			return "", conflict
		})
		require.True(t, IsConflict(err))
		require.Equal(t, 2, calls)
	})
}

func TestBearerToken(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.ServerURL = srv.URL
	cfg.Token = "abc"
	clients, err := NewClients(cfg)
	require.NoError(t, err)

	_, err = clients.Accounts.GetHistory(context.Background(), connect.NewRequest(&accountv1.GetHistoryRequest{AccountID: "x"}))
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", gotAuth.Load())
}

func TestCachingHTTPClient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewCachingHTTPClient(t.TempDir(), 0)
	for i := range 2 {
		resp, err := c.Get(srv.URL)
		require.NoError(t, err)
		_, err = io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, i == 1, IsCachedResponse(resp))
	}
	require.Equal(t, int32(1), hits.Load())
}
