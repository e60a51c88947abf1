package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	httpcontext "github.com/dtroode/househelp-server/internal/api/http/context"
	"github.com/dtroode/househelp-server/internal/api/http/handler"
	"github.com/dtroode/househelp-server/internal/api/http/router"
	httpserver "github.com/dtroode/househelp-server/internal/api/http/server"
	"github.com/dtroode/househelp-server/internal/directory"
	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/server"
	"github.com/dtroode/househelp-server/internal/service"
	"github.com/dtroode/househelp-server/internal/token"
)

const (
	shutdownTimeout = 10 * time.Second
	maxHydrateDelay = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg
	logger := a.logger

	a.queue.Start(ctx)
	defer a.queue.Stop()

	users := directory.New(logger)
	tokenManager := token.NewJWT(cfg.JWT.Secret, token.DefaultAccessTTL)
	tokenService := service.NewTokenService(tokenManager, logger)
	authService := service.NewAuth(users, a.platform, a.anchor, a.index, tokenService, cfg.Stellar.StartingBalance, logger)
	certificates := service.NewCertificates(a.client, a.funder, a.metrics, logger)

	backoff := hydrateBackoff(cfg.Hydrate.BaseDelay, cfg.Hydrate.MaxAttempts)
	if _, err := users.Hydrate(ctx, authService, backoff); err != nil {
		// Registrations still work; logins for existing users fail until restart.
		logger.Error("failed to hydrate user directory", "error", err)
	}

	checks := map[string]handler.Pinger{
		"ledger": handler.PingFunc(func(ctx context.Context) error {
			_, err := a.client.LoadAccount(ctx, a.platform.Address())
			return err
		}),
	}
	if a.db != nil {
		checks["database"] = a.db
	}

	services := router.Services{
		Auth:         authService,
		Catalog:      service.NewCatalog(a.client, a.platform, a.index, logger),
		Jobs:         service.NewJobs(a.platform, a.anchor, a.index, logger),
		Attestations: service.NewAttestations(a.anchor, certificates, logger),
		Tokens:       tokenService,
	}
	opts := router.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequireToken:   cfg.Auth.RequireToken,
		Gatherer:       a.registry,
		Metrics:        a.metrics,
		HealthChecks:   checks,
		ContextManager: httpcontext.NewManager(),
	}
	httpServer := httpserver.NewHTTPServer(router.New(services, opts, logger).Register(), cfg.HTTP.Addr)

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address(), "platform", a.platform.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(httpServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}

// hydrateBackoff allows attempts calls in total. base must be positive.
func hydrateBackoff(base time.Duration, attempts uint64) retry.Backoff {
	b := retry.WithCappedDuration(maxHydrateDelay, retry.NewExponential(base))
	if attempts > 0 {
		attempts--
	}
	return retry.WithMaxRetries(attempts, b)
}
