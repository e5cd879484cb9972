package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"connectrpc.com/otelconnect"
	"github.com/rs/cors"
	"github.com/wolfeidau/casekeeper/internal/auth"
	httpmiddleware "github.com/wolfeidau/casekeeper/internal/http"
	"github.com/wolfeidau/casekeeper/internal/logger"
	"github.com/wolfeidau/casekeeper/internal/server"
	"github.com/wolfeidau/casekeeper/internal/telemetry"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8443" env:"CASEKEEPER_LISTEN"`
	Cert   string `help:"path to TLS cert file, plain HTTP/2 when empty" default:"" env:"CASEKEEPER_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"CASEKEEPER_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"CASEKEEPER_CORS_ORIGINS"`

	// Authentication and authorization
	JWTPublicKey     string        `help:"path to the PEM encoded ES256 public key used to verify bearer tokens" env:"CASEKEEPER_JWT_PUBLIC_KEY"`
	RolesFile        string        `help:"path to a YAML role permission file, defaults to the built-in roles" env:"CASEKEEPER_ROLES_FILE"`
	IdentityCacheTTL time.Duration `help:"how long resolved identities are cached, 0 disables the cache" default:"30s" env:"CASEKEEPER_IDENTITY_CACHE_TTL"`
	IdentityCacheMax int           `help:"maximum cached identities" default:"10000" env:"CASEKEEPER_IDENTITY_CACHE_SIZE"`

	// Development and operational modes
	NoAuth      bool    `help:"trust the X-Subject-ID header instead of bearer tokens (development only)" default:"false" env:"CASEKEEPER_NO_AUTH"`
	Tracing     bool    `help:"enable tracing" default:"false" env:"CASEKEEPER_TRACING"`
	SampleRatio float64 `help:"fraction of traces sampled when tracing is enabled" default:"1.0" env:"CASEKEEPER_TRACE_SAMPLE_RATIO"`

	Store StoreFlags `embed:""`
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	interceptors := []connect.Interceptor{logger.NewConnectRequests(log)}
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "casekeeper-server", globals.Version, c.SampleRatio)
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

	registry := auth.DefaultRegistry()
	if c.RolesFile != "" {
		data, err := readFileFlag("roles file", c.RolesFile)
		if err != nil {
			return err
		}
		registry, err = auth.LoadRegistry(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to load roles file: %w", err)
		}
		log.Info().Str("path", c.RolesFile).Msg("Loaded role permissions")
	}

	authMiddleware, err := c.authMiddleware()
	if err != nil {
		return err
	}
	if c.NoAuth {
		log.Warn().Msg("Authentication is disabled (--no-auth). This should only be used in development!")
	}

	stores, closeStores, err := c.Store.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	srv := server.NewFromStores(stores, server.Config{
		Registry: registry,
		Resolver: auth.ResolverConfig{CacheSize: c.IdentityCacheMax, CacheTTL: c.IdentityCacheTTL},
	})

	handler := httpmiddleware.ClientIPMiddleware()(
		authMiddleware(
			withCORS(c.CORSOrigins, srv.Handler(interceptors...)),
		),
	)

	httpServer := configureHTTPServer(c.Listen, handler)
	tlsEnabled := c.Cert != "" || c.Key != ""
	if tlsEnabled {
		if c.Cert == "" || c.Key == "" {
			return errors.New("TLS requires both --cert and --key")
		}
		if _, err := os.Stat(c.Cert); err != nil {
			return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
		}
		if _, err := os.Stat(c.Key); err != nil {
			return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
		}
	} else {
		httpServer.Handler = h2c.NewHandler(handler, &http2.Server{})
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", tlsEnabled).Bool("auth", !c.NoAuth).Msg("Starting HTTP server")
		if tlsEnabled {
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (c *ServeCmd) authMiddleware() (func(http.Handler) http.Handler, error) {
	if c.NoAuth {
		return auth.HeaderSubjectMiddleware(), nil
	}
	if c.JWTPublicKey == "" {
		return nil, errors.New("a JWT public key is required (--jwt-public-key or CASEKEEPER_JWT_PUBLIC_KEY) unless --no-auth is set")
	}
	pem, err := readFileFlag("JWT public key", c.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	mw, err := auth.BearerMiddleware(string(pem))
	if err != nil {
		return nil, fmt.Errorf("failed to create bearer verifier: %w", err)
	}
	return mw, nil
}

// withCORS adds CORS support to a Connect HTTP handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: append(connectcors.AllowedHeaders(), "Authorization", auth.SubjectHeader),
		ExposedHeaders: connectcors.ExposedHeaders(),
	})
	return middleware.Handler(h)
}
