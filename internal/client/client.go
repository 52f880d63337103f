// Package client builds Connect clients for the account service.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	Debug     bool

	// Token is sent as a bearer token on every call when set.
	Token string

	// MaxRetries bounds retries of calls rejected with a concurrency conflict.
	MaxRetries uint
}

// Clients holds the Connect clients
type Clients struct {
	Accounts accountv1.AccountServiceClient
	config   Config
}

// NewClients creates new Connect clients with the given configuration
func NewClients(config Config) (*Clients, error) {
	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create otel interceptor: %w", err)
	}

	interceptors := []connect.Interceptor{otelInterceptor}
	if config.Token != "" {
		interceptors = append(interceptors, NewBearerToken(config.Token))
	}

	return &Clients{
		Accounts: accountv1.NewAccountServiceClient(httpClient, config.ServerURL, connect.WithInterceptors(interceptors...)),
		config:   config,
	}, nil
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL:  "http://localhost:8080",
		Timeout:    30 * time.Second,
		Debug:      false,
		MaxRetries: 3,
	}
}

// NewBearerToken returns an interceptor adding token to outgoing requests.
func NewBearerToken(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

// Retry runs call until it succeeds, fails with anything other than a concurrency
// conflict, or maxTries is exhausted. Only conflicts are retried as the engine guarantees
// a rejected operation had no effect.
func Retry[T any](ctx context.Context, maxTries uint, call func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		res, err := call(ctx)
		if err == nil {
			return res, nil
		}
		if connect.CodeOf(err) != connect.CodeAborted {
			return res, backoff.Permanent(err)
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("Concurrent modification, retrying")
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(max(maxTries, 1)))
}

// Retry runs call with the configured retry bound.
func (c *Clients) Retry(ctx context.Context, call func(ctx context.Context) error) error {
	_, err := Retry(ctx, c.config.MaxRetries, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}

// IsConflict reports whether err is a concurrency conflict reported by the service.
func IsConflict(err error) bool {
	var connectErr *connect.Error
	return errors.As(err, &connectErr) && connectErr.Code() == connect.CodeAborted
}
