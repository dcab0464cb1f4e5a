package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sessionhttp "github.com/Devilair/Replit-Wolfinder-sub003/internal/session/http"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/metrics"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
)

// Application is the session service with all of its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger
	clock  clockx.Clock

	db      store.Store
	keys    *jwtx.KeyRing
	metrics *metrics.Metrics

	issuer      *service.CredentialIssuer
	rotation    *service.RotationEngine
	revocation  *service.RevocationService
	verifier    *service.AccessVerifier
	housekeeper *service.Housekeeper // nil when the purge sweep is disabled

	server *http.Server
	router *sessionhttp.Router
}

// New validates cfg and wires every dependency. Nothing listens until Run.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg:   cfg,
		clock: clockx.System(),
		logger: slogx.New(slogx.Config{
			Service: "sessiond",
			Version: cfg.Version,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := OpenStore(ctx, cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	keys, err := InitSigningKeys(cfg, app.logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.keys = keys

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (app *Application) Run() error {
	if app.housekeeper != nil {
		app.housekeeper.Start()
	}

	app.logger.Info("session service starting",
		"addr", app.cfg.HTTPAddr,
		"store", app.cfg.StoreDriver,
		"algorithm", app.keys.Signer().Alg(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops the sweep and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGrace)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeeper != nil {
		app.housekeeper.Stop()
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("session service stopped")
	return nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

func (app *Application) initServices() {
	tokens := service.Tokens{
		Signer:     app.keys,
		Issuer:     app.cfg.Issuer,
		Audience:   app.cfg.Audience,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	app.issuer = &service.CredentialIssuer{
		Store:   app.db,
		Tokens:  tokens,
		Clock:   app.clock,
		Metrics: app.metrics,
	}
	app.rotation = &service.RotationEngine{
		Store:   app.db,
		Tokens:  tokens,
		Clock:   app.clock,
		Metrics: app.metrics,
	}
	app.revocation = &service.RevocationService{
		Store:   app.db,
		Clock:   app.clock,
		Metrics: app.metrics,
	}
	app.verifier = service.NewAccessVerifier(app.keys.KeySet(), jwtx.VerifyOptions{
		Issuer:   app.cfg.Issuer,
		Audience: app.cfg.VerifyAudience(),
		Leeway:   app.cfg.Leeway,
		Now:      app.clock.Now,
	})

	if app.cfg.PurgeInterval > 0 {
		app.housekeeper = service.NewHousekeeper(app.db, app.logger, app.cfg.PurgeInterval)
		app.housekeeper.Clock = app.clock
		app.housekeeper.Metrics = app.metrics
	} else {
		app.logger.Info("expired token purge disabled")
	}
}

func (app *Application) initHTTP() {
	router := sessionhttp.NewRouter(
		app.keys.KeySet(),
		app.cfg.IssueToken,
		app.cfg.Version,
		app.db,
		app.metrics,
		app.clock,
		app.logger,
	)

	router.Issuer = app.issuer
	router.Rotation = app.rotation
	router.Revocation = app.revocation
	router.Verifier = app.verifier
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
