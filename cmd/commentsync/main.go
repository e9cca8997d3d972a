package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	restadapter "github.com/gleb165/commentsync/internal/adapter/driven/rest"
	sqliteadapter "github.com/gleb165/commentsync/internal/adapter/driven/sqlite"
	wsadapter "github.com/gleb165/commentsync/internal/adapter/driven/ws"
	httphandler "github.com/gleb165/commentsync/internal/adapter/driving/http"
	"github.com/gleb165/commentsync/internal/application"
	"github.com/gleb165/commentsync/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"api_base_url", cfg.APIBaseURL,
		"ws_url", cfg.WSURL,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"page_size", cfg.PageSize,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire the session: durable cache, in-memory store, auth client.
	sessionCache := sqliteadapter.NewSessionRepo(db, cfg.EncryptionKey)
	credStore := application.NewCredentialStore()

	authClient, err := restadapter.NewAuthClient(cfg.APIBaseURL)
	if err != nil {
		return err
	}

	sessionMgr := application.NewSessionManager(credStore, authClient, sessionCache)
	if err := sessionMgr.Hydrate(ctx); err != nil {
		slog.Warn("session hydration failed, starting unauthenticated", "error", err)
	}

	tokenMgr := application.NewTokenManager(credStore, authClient, sessionCache)

	// 6. Wire the authenticated gateway and the comment API client.
	gateway, err := restadapter.NewGateway(cfg.APIBaseURL, tokenMgr)
	if err != nil {
		return err
	}
	commentAPI := restadapter.NewClient(gateway)

	// 7. Wire the push channel.
	pushSource, err := wsadapter.NewChannel(cfg.WSURL)
	if err != nil {
		return err
	}

	// 8. Create and start the feed synchronizer; create the thread viewer.
	feed := application.NewFeedSynchronizer(commentAPI, pushSource, cfg.PageSize)
	go feed.Start(ctx)

	loader := application.NewThreadLoader(commentAPI, cfg.FetchConcurrency)
	thread := application.NewThreadViewer(loader, commentAPI, pushSource)
	defer thread.Close()

	// 9. Create the local HTTP API.
	apiHandler := httphandler.NewHandler(feed, thread, sessionMgr, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("commentsync started", "listen_addr", cfg.ListenAddr)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 11. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
