package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authcleanup "github.com/AlibekovAA/session-auth/internal/auth/cleanup"
	authhttp "github.com/AlibekovAA/session-auth/internal/auth/http"
	authrepo "github.com/AlibekovAA/session-auth/internal/auth/repository"
	"github.com/AlibekovAA/session-auth/internal/auth/service"
	"github.com/AlibekovAA/session-auth/internal/auth/token"
	"github.com/AlibekovAA/session-auth/internal/common/bootstrap"
	commoncrypto "github.com/AlibekovAA/session-auth/internal/common/crypto"
	commonhttp "github.com/AlibekovAA/session-auth/internal/common/http"
	srv "github.com/AlibekovAA/session-auth/internal/common/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.NewAuthApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start auth service: %v\n", err)
		os.Exit(1)
	}
	log := app.Log
	cfg := app.Config

	if err := app.SeedAccount(ctx); err != nil {
		log.Fatalf("failed to seed bootstrap account: %v", err)
	}

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.TokenIssuer,
	}, commoncrypto.NewUUIDGenerator(), app.Clock)
	if err != nil {
		log.Fatalf("failed to initialize token codec: %v", err)
	}

	verifier, err := service.NewCredentialVerifier(app.Hasher)
	if err != nil {
		log.Fatalf("failed to initialize credential verifier: %v", err)
	}

	slots := service.NewSessionSlotManager(app.Slots, app.SlotsBreaker, app.Clock, log)
	authService := service.NewAuthService(app.Accounts, app.AccountsBreaker, verifier, codec, slots, log)

	if sweeper, ok := app.Slots.(authrepo.ExpiredSlotSweeper); ok {
		go authcleanup.StartSlotCleanup(ctx, sweeper, cfg.SlotCleanupInterval, log)
	}

	handler := authhttp.NewHandler(authService, codec, authhttp.Options{
		CookieSecure:   cfg.CookieSecure,
		RequestTimeout: cfg.RequestTimeout,
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/api/auth/", handler)
	mux.HandleFunc("/health", commonhttp.HealthHandler(log, app.HealthChecks()...))
	mux.Handle("/metrics", promhttp.Handler())

	baseHandler := commonhttp.BuildBaseHandler(log, mux)

	serverConfig := srv.DefaultServerConfig(cfg.HTTPPort)
	server := srv.NewServer(serverConfig, baseHandler)

	shutdownHooks := []srv.ShutdownHook{
		func(ctx context.Context) error {
			log.Infof("auth service: stopping background workers")
			cancel()
			return nil
		},
	}
	shutdownHooks = append(shutdownHooks, app.ShutdownHooks()...)

	srv.StartWithGracefulShutdownAndHooks(server, log, "auth", shutdownHooks)
}
