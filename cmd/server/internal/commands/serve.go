package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"connectrpc.com/otelconnect"
	"github.com/rs/cors"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
	"github.com/wolfeidau/mailroster/internal/auth"
	httpmiddleware "github.com/wolfeidau/mailroster/internal/http"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
	"github.com/wolfeidau/mailroster/internal/logger"
	"github.com/wolfeidau/mailroster/internal/server"
	"github.com/wolfeidau/mailroster/internal/store"
	memorystore "github.com/wolfeidau/mailroster/internal/store/memory"
	postgresstore "github.com/wolfeidau/mailroster/internal/store/postgres"
	"github.com/wolfeidau/mailroster/internal/telemetry"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"MAILROSTER_LISTEN"`
	Cert   string `help:"path to TLS cert file, plaintext HTTP/2 (h2c) when empty" default:"" env:"MAILROSTER_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"MAILROSTER_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"MAILROSTER_CORS_ORIGINS"`
	TrustProxy  bool     `help:"take the client address from X-Forwarded-For" default:"false" env:"MAILROSTER_TRUST_PROXY"`

	// Authentication
	JWTPublicKey string `help:"PEM encoded ES256 public key used to verify actor tokens" env:"MAILROSTER_JWT_PUBLIC_KEY"`
	NoAuth       bool   `help:"disable authentication for API endpoints (development only)" default:"false" env:"MAILROSTER_NO_AUTH"`

	// Credentials at rest
	EncryptionKey string `help:"base64 encoded 32 byte key sealing account secrets" env:"MAILROSTER_ENCRYPTION_KEY"`

	// Telemetry
	Tracing     bool    `help:"enable tracing and metrics export" default:"false" env:"MAILROSTER_TRACING"`
	SampleRatio float64 `help:"fraction of traces sampled" default:"1" env:"MAILROSTER_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"MAILROSTER_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Catalog       CatalogFlags       `embed:"" prefix:"catalog-"`
	UsersFile     string             `help:"YAML user directory export imported on startup" env:"MAILROSTER_USERS_FILE"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	var interceptors []connect.Interceptor
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "mailroster-server",
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return fmt.Errorf("failed to create OTEL interceptor: %w", err)
		}
		interceptors = append(interceptors, otelInterceptor)
	}

	resolver, err := c.Catalog.resolver()
	if err != nil {
		return fmt.Errorf("failed to configure catalog: %w", err)
	}

	credSealer, err := sealer(c.EncryptionKey)
	if err != nil {
		return err
	}

	var (
		tx    store.Transactor
		users store.UserDirectory
	)

	switch c.StoreType {
	case "postgres":
		pool, err := c.PostgresStore.pool(ctx)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		pgStore, err := postgresstore.NewStore(ctx, pool, &postgresstore.StoreConfig{
			AutoMigrate:            c.PostgresStore.AutoMigrate,
			StatementTimeoutMillis: c.PostgresStore.StatementTimeout,
			LockTimeoutMillis:      c.PostgresStore.LockTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create account store: %w", err)
		}
		tx = pgStore
		users = postgresstore.NewUserDirectory(pool)

		log.Info().Msg("Using PostgreSQL store with shared connection pool")

	default:
		tx = memorystore.NewStore()
		users = memorystore.NewUserDirectory()
		log.Info().Msg("Using in-memory store")
	}

	if c.UsersFile != "" {
		imported, err := loadUsers(c.UsersFile)
		if err != nil {
			return err
		}
		if err := importUsers(ctx, users, imported); err != nil {
			return err
		}
	}

	engine := lifecycle.NewEngine(tx, users, resolver, lifecycle.WithSealer(credSealer))

	var authMiddleware func(http.Handler) http.Handler
	if !c.NoAuth {
		verifier, err := auth.NewJWTVerifier(c.JWTPublicKey)
		if err != nil {
			return fmt.Errorf("failed to configure JWT verification (--jwt-public-key or MAILROSTER_JWT_PUBLIC_KEY): %w", err)
		}
		authMiddleware = verifier.Middleware()
	} else {
		log.Warn().Msg("Authentication is disabled (--no-auth). This should only be used in development!")
		authMiddleware = func(next http.Handler) http.Handler { return next }
	}

	apiHandler := server.NewServer(engine, !c.NoAuth).Handler(log, interceptors...)

	// Client IP is captured before authentication so rejected calls are attributed too
	handler := withCORS(c.CORSOrigins,
		httpmiddleware.ClientIPMiddleware(c.TrustProxy)(authMiddleware(apiHandler)))

	log.Info().Str("path", "/"+accountv1.AccountServiceName+"/").Msg("AccountService registered")

	tls := c.Cert != "" || c.Key != ""
	if tls {
		if c.Cert == "" || c.Key == "" {
			return errors.New("both --cert and --key are required for TLS")
		}
		if _, err := os.Stat(c.Cert); err != nil {
			return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
		}
		if _, err := os.Stat(c.Key); err != nil {
			return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
		}
	} else {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("auth", !c.NoAuth).Bool("tls", tls).Msg("Starting HTTP server")
		if tls {
			errCh <- srv.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// withCORS adds CORS support to a Connect HTTP handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: append(connectcors.AllowedHeaders(), "Authorization"),
		ExposedHeaders: append(connectcors.ExposedHeaders(), server.ErrorCodeHeader),
	})
	return middleware.Handler(h)
}
