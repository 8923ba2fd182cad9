// Command consoled runs the agentfleet admin console API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/agentfleet/console/pkg/api"
	"github.com/agentfleet/console/pkg/apikeys"
	"github.com/agentfleet/console/pkg/auth"
	"github.com/agentfleet/console/pkg/config"
	"github.com/agentfleet/console/pkg/middleware"
	"github.com/agentfleet/console/pkg/observability"
	"github.com/agentfleet/console/pkg/session"
	"github.com/agentfleet/console/pkg/sso"
	"github.com/agentfleet/console/pkg/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "consoled: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"auth_mode": string(cfg.Auth.Mode),
		"addr":      cfg.Server.ListenAddr(),
	}).Info("starting console")

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	ctx := context.Background()

	var shutdownTracing func(context.Context) error
	if cfg.Observability.OTelEnabled {
		shutdownTracing, err = observability.InitTracing(ctx, observability.TracingConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	// Session codec, needed by oauth/builtin modes and the login flow
	var sessions *session.Codec
	if cfg.Session.Secret != "" {
		sessions, err = session.NewCodec(cfg.Session.Secret, cfg.Session.TTL,
			session.WithCookieName(cfg.Session.CookieName),
			session.WithSecureCookies(cfg.Session.Secure),
		)
		if err != nil {
			return fmt.Errorf("failed to create session codec: %w", err)
		}
	}

	// API key store
	var keyStore apikeys.Store
	var fileStore *apikeys.FileStore
	if cfg.APIKeys.Enabled {
		switch cfg.APIKeys.StoreType {
		case config.KeyStoreMemory:
			keyStore = apikeys.NewMemoryStore(apikeys.WithMaxKeysPerUser(cfg.APIKeys.MaxPerUser))
		case config.KeyStoreFile:
			fileStore, err = apikeys.NewFileStore(cfg.APIKeys.FilePath, logger)
			if err != nil {
				return fmt.Errorf("failed to open api key file store: %w", err)
			}
			keyStore = fileStore
		}
	}

	// Workspace source
	var clusterClient workspace.Client
	if cfg.Cluster.APIBaseURL != "" {
		opts := []workspace.HTTPClientOption{}
		if cfg.Cluster.APIToken != "" {
			opts = append(opts, workspace.WithBearerToken(cfg.Cluster.APIToken))
		}
		clusterClient = workspace.NewHTTPClient(cfg.Cluster.APIBaseURL, opts...)
	} else {
		clusterClient, err = workspace.NewManifestClient(cfg.Cluster.ManifestPath)
		if err != nil {
			return fmt.Errorf("failed to load workspace manifest: %w", err)
		}
	}

	cache := workspace.NewDecisionCache(cfg.Cluster.CacheSize, cfg.Cluster.CacheTTL)
	authorizer := workspace.NewAuthorizer(clusterClient, cache, logger, metrics)

	resolver := auth.NewResolver(auth.ResolverConfig{
		Mode:          cfg.Auth.Mode,
		Headers:       cfg.Auth.Headers,
		AdminGroups:   cfg.Auth.AdminGroups,
		EditorGroups:  cfg.Auth.EditorGroups,
		AnonymousRole: cfg.Auth.AnonymousRole,
	}, keyStore, sessions, logger, metrics)

	guard := middleware.NewGuard(resolver, authorizer, logger)

	serverOpts := []api.Option{}
	if keyStore != nil {
		serverOpts = append(serverOpts, api.WithKeyStore(keyStore, api.KeyPolicy{
			Enabled:       true,
			DefaultExpiry: cfg.APIKeys.DefaultExpiry,
		}))
	}
	if cfg.Auth.Mode == auth.ModeOAuth {
		ssoClient, err := sso.NewClient(ctx, cfg.OAuth)
		if err != nil {
			return fmt.Errorf("failed to configure oidc provider: %w", err)
		}
		serverOpts = append(serverOpts, api.WithSSO(ssoClient, sessions, api.SSOPolicy{
			AdminGroups:  cfg.Auth.AdminGroups,
			EditorGroups: cfg.Auth.EditorGroups,
		}))
	} else if sessions != nil {
		serverOpts = append(serverOpts, api.WithSessions(sessions))
	}
	if registry != nil {
		serverOpts = append(serverOpts, api.WithMetricsRegistry(registry))
	}
	if cfg.Observability.OTelEnabled {
		serverOpts = append(serverOpts, api.WithTracing())
	}

	apiServer := api.NewServer(guard, authorizer, logger, metrics, serverOpts...)

	// Periodic sweeps: expired cache entries and expired keys
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1m", func() {
		defer observability.RecoverPanic(logger, "authz cache sweep")
		authorizer.PruneExpiredCache()
	}); err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	if keyStore != nil {
		if _, err := scheduler.AddFunc(cfg.APIKeys.SweepSchedule, func() {
			defer observability.RecoverPanic(logger, "api key sweep")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			removed, err := keyStore.DeleteExpired(ctx)
			if err != nil {
				logger.WithError(err).Warn("api key sweep failed")
				return
			}
			if removed > 0 {
				logger.WithField("removed", removed).Info("removed expired api keys")
			}
			if metrics != nil {
				if active, err := keyStore.CountActive(ctx); err == nil {
					metrics.APIKeysActive.Set(float64(active))
				}
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule api key sweep: %w", err)
		}
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr(),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		scheduler.Stop()
		return nil
	})
	if fileStore != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return fileStore.Close()
		})
	}
	if shutdownTracing != nil {
		shutdown.RegisterShutdownFunc(shutdownTracing)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- shutdown.WaitForShutdown()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case err := <-done:
		return err
	}
}
