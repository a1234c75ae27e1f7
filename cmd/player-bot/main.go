package main

import (
	"context"
	"os/signal"
	"syscall"

	"playroom/internal/auth"
	"playroom/internal/client"
	"playroom/internal/config"
	"playroom/internal/logging"
	"playroom/internal/reconnect"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	token, err := botToken(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("no usable token")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var slot reconnect.Slot = reconnect.NewFileSlot(cfg.CapabilityPath)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		slot = reconnect.NewRedisSlot(rdb, cfg.DeviceID, cfg.CapabilityTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Str("device_id", cfg.DeviceID).Msg("capability slot in redis")
	}

	b := &bot{
		cfg:   cfg,
		api:   client.New(cfg.APIURL, token),
		slot:  slot,
		rolls: defaultRolls,
	}
	if err := b.run(ctx); err != nil {
		log.Fatal().Err(err).Str("room_id", cfg.RoomID).Msg("bot stopped")
	}
	log.Info().Str("room_id", cfg.RoomID).Msg("bot finished")
}

// botToken prefers an issued token and falls back to signing one locally.
func botToken(cfg config.BotConfig) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	if cfg.JWTSecret == "" {
		return "", auth.ErrMissingToken
	}
	return auth.NewSigner(cfg.JWTSecret, 0).Sign(auth.Identity{UserID: cfg.UserID, Username: cfg.Username})
}
