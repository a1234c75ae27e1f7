package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"playroom/internal/auth"
	"playroom/internal/config"
	"playroom/internal/logging"
	"playroom/internal/presence"
	"playroom/internal/store"
	"playroom/internal/store/memstore"
	httptransport "playroom/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadApp()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openBackend(ctx, cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Server.StoreBackend).Msg("store init failed")
	}
	defer closeStore()

	verifier, err := auth.NewVerifier(cfg.Server.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("jwt verifier init failed")
	}

	if cfg.Session.PresenceSweepEnabled {
		presence.NewSweeper(st, cfg.Session.PresenceStaleAfter).Start(ctx, cfg.Session.PresenceSweepInterval)
		log.Info().
			Dur("stale_after", cfg.Session.PresenceStaleAfter).
			Dur("interval", cfg.Session.PresenceSweepInterval).
			Msg("presence sweeper started")
	}

	r := httptransport.NewRouter(st, cfg.Server, cfg.Session, verifier)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Str("backend", cfg.Server.StoreBackend).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

// openBackend returns the configured substrate and its close function.
func openBackend(ctx context.Context, cfg config.ServerConfig) (store.Backend, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Warn().Msg("using in-memory store; state is lost on restart")
		st := memstore.New()
		return st, st.Close, nil
	case "postgres", "":
		st, err := store.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("db ping failed: %w", err)
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
